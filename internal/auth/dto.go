package auth

import "github.com/angelmondragon/coffeeshop-backend/internal/users"

// LoginRequest captures the credentials sent to the login endpoints.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password"`
}

// RegisterRequest creates an account and logs it in.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password"`
	Name     string `json:"name" validate:"notblank"`
}

// RefreshRequest rotates a session.
type RefreshRequest struct {
	AccessToken  string `json:"accessToken" validate:"required"`
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// LoginResponse contains the tokens and the user produced by a login.
type LoginResponse struct {
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"refreshToken"`
	User         *users.UserDTO `json:"user"`
	Created      bool           `json:"created,omitempty"`
}

// TokenPair is returned by a session refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
