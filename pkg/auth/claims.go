package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
)

// AccessTokenPayload is the input to MintAccessToken.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Role   enums.UserRole
	// JTI doubles as the redis session id; empty generates a fresh one.
	JTI string
}

type AccessTokenClaims struct {
	UserID uuid.UUID      `json:"user_id"`
	Role   enums.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// Validate runs after the registered claims checks pass.
func (c AccessTokenClaims) Validate() error {
	if c.UserID == uuid.Nil {
		return errors.New("token has no user id")
	}
	if c.Subject != c.UserID.String() {
		return errors.New("token subject does not match user id")
	}
	if !c.Role.IsValid() {
		return fmt.Errorf("token has unknown role %q", c.Role)
	}
	if c.ID == "" {
		return errors.New("token has no jti")
	}
	return nil
}
