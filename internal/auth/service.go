package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/coffeeshop-backend/internal/users"
	pkgAuth "github.com/angelmondragon/coffeeshop-backend/pkg/auth"
	"github.com/angelmondragon/coffeeshop-backend/pkg/auth/session"
	"github.com/angelmondragon/coffeeshop-backend/pkg/config"
	"github.com/angelmondragon/coffeeshop-backend/pkg/db/models"
	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
	"github.com/angelmondragon/coffeeshop-backend/pkg/security"
)

const invalidCredentialsMessage = "invalid credentials"

// Service defines the behavior needed by the auth controller.
type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	Register(ctx context.Context, req RegisterRequest) (*LoginResponse, error)
	AdminLogin(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	Logout(ctx context.Context, accessID string) error
	Refresh(ctx context.Context, req RefreshRequest) (*TokenPair, error)
	Me(ctx context.Context, userID uuid.UUID) (*users.ProfileDTO, error)
}

type sessionManager interface {
	Generate(ctx context.Context, accessID string) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	Users          users.Service
	SessionManager sessionManager
	JWTConfig      config.JWTConfig
	AdminConfig    config.AdminConfig
	AuthConfig     config.AuthConfig
	PasswordConfig config.PasswordConfig
	Logger         *logger.Logger
}

type service struct {
	users      users.Service
	session    sessionManager
	jwtCfg     config.JWTConfig
	admin      config.AdminConfig
	adminEmail string
	adminHash  string
	hasher     *security.Hasher
	latency    time.Duration
	guestName  string
	logg       *logger.Logger
	now        func() time.Time
}

// NewService constructs the auth service. The admin password is hashed once
// here and never kept in plain text.
func NewService(params ServiceParams) (Service, error) {
	if params.Users == nil {
		return nil, fmt.Errorf("users service is required")
	}
	if params.SessionManager == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	adminEmail, err := users.NormalizeEmail(params.AdminConfig.Email)
	if err != nil {
		return nil, fmt.Errorf("admin email: %w", err)
	}
	hasher := security.NewHasher(params.PasswordConfig)
	adminHash, err := hasher.Hash(params.AdminConfig.Password)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	guestName := strings.TrimSpace(params.AuthConfig.DefaultName)
	if guestName == "" {
		guestName = "Уважаемый Клиент"
	}
	return &service{
		users:      params.Users,
		session:    params.SessionManager,
		jwtCfg:     params.JWTConfig,
		admin:      params.AdminConfig,
		adminEmail: adminEmail,
		adminHash:  adminHash,
		hasher:     hasher,
		latency:    params.AuthConfig.Latency,
		guestName:  guestName,
		logg:       params.Logger,
		now:        time.Now,
	}, nil
}

// Login is mocked for shoppers: a known email logs in and an unknown one
// gets an account. Passwords are not checked. The admin account can only
// sign in through AdminLogin.
func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	if err := s.simulateLatency(ctx); err != nil {
		return nil, err
	}
	user, created, err := s.users.FindOrCreate(ctx, req.Email, s.guestName)
	if err != nil {
		return nil, err
	}
	if user.Role == enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	resp, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}
	resp.Created = created
	return resp, nil
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (*LoginResponse, error) {
	if err := s.simulateLatency(ctx); err != nil {
		return nil, err
	}
	user, err := s.users.Register(ctx, req.Email, req.Name)
	if err != nil {
		return nil, err
	}
	resp, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}
	resp.Created = true
	return resp, nil
}

// AdminLogin verifies the configured admin credential pair.
func (s *service) AdminLogin(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	if err := s.simulateLatency(ctx); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	valid, err := s.hasher.Verify(req.Password, s.adminHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if email != s.adminEmail || !valid {
		s.logg.Warn(s.logg.WithField(ctx, "email", email), "admin login rejected")
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	user, err := s.users.EnsureAdmin(ctx, s.adminEmail, s.admin.Name)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, user)
}

func (s *service) Logout(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session")
	}
	if err := s.session.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	return nil
}

// Refresh rotates the session bound to an (possibly expired) access token.
func (s *service) Refresh(ctx context.Context, req RefreshRequest) (*TokenPair, error) {
	claims, err := pkgAuth.ParseAccessTokenAllowExpired(s.jwtCfg, req.AccessToken)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid access token")
	}
	newAccessID, refreshToken, err := s.session.Rotate(ctx, claims.ID, req.RefreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate session")
	}
	accessToken, err := pkgAuth.MintAccessToken(s.jwtCfg, s.now().UTC(), pkgAuth.AccessTokenPayload{
		UserID: claims.UserID,
		Role:   claims.Role,
		JTI:    newAccessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Me returns the session user with its live orders.
func (s *service) Me(ctx context.Context, userID uuid.UUID) (*users.ProfileDTO, error) {
	return s.users.Profile(ctx, userID)
}

func (s *service) issue(ctx context.Context, user *models.User) (*LoginResponse, error) {
	if err := s.users.RecordLogin(ctx, user); err != nil {
		return nil, err
	}
	accessID := session.NewAccessID()
	accessToken, err := pkgAuth.MintAccessToken(s.jwtCfg, s.now().UTC(), pkgAuth.AccessTokenPayload{
		UserID: user.ID,
		Role:   user.Role,
		JTI:    accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	refreshToken, err := s.session.Generate(ctx, accessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store refresh token")
	}
	s.logg.Info(s.logg.WithUserID(ctx, user.ID.String()), "login succeeded")
	return &LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         users.FromModel(user),
	}, nil
}

func (s *service) simulateLatency(ctx context.Context) error {
	if s.latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return pkgerrors.Wrap(pkgerrors.CodeDependency, ctx.Err(), "request cancelled")
	case <-timer.C:
		return nil
	}
}
