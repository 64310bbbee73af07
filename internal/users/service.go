package users

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/angelmondragon/coffeeshop-backend/internal/orders"
	"github.com/angelmondragon/coffeeshop-backend/pkg/db"
	"github.com/angelmondragon/coffeeshop-backend/pkg/db/models"
	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
)

// emailKeys names the unique email key as Postgres and SQLite report it.
var emailKeys = []string{"users_email_key", "users.email"}

var validate = validator.New()

// Service manages user accounts. Orders are never stored on the user; views
// that show them query the orders service.
type Service interface {
	FindOrCreate(ctx context.Context, email, name string) (*models.User, bool, error)
	Register(ctx context.Context, email, name string) (*models.User, error)
	EnsureAdmin(ctx context.Context, email, name string) (*models.User, error)
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	Profile(ctx context.Context, id uuid.UUID) (*ProfileDTO, error)
	ListUsers(ctx context.Context) ([]orders.UserOrdersDTO, error)
	RecordLogin(ctx context.Context, user *models.User) error
}

type orderReader interface {
	GetUserOrders(ctx context.Context, userID uuid.UUID) ([]orders.OrderDTO, error)
	SyncOrdersWithUsers(ctx context.Context) (*orders.SyncResult, error)
}

// ServiceParams groups the users service dependencies.
type ServiceParams struct {
	Repo   *Repository
	Orders orderReader
	Logger *logger.Logger
}

type service struct {
	repo   *Repository
	orders orderReader
	logg   *logger.Logger
}

// NewService builds the users service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order reader required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: params.Repo, orders: params.Orders, logg: params.Logger}, nil
}

// NormalizeEmail trims and lowercases an address and checks its syntax.
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if err := validate.Var(email, "email"); err != nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "email is invalid")
	}
	return email, nil
}

// FindOrCreate returns the user with the email, creating it with name when
// it does not exist yet. The bool reports whether a user was created.
func (s *service) FindOrCreate(ctx context.Context, email, name string) (*models.User, bool, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, false, err
	}
	user, err := s.repo.FindByEmail(ctx, normalized)
	if err == nil {
		return user, false, nil
	}
	if !db.IsNotFound(err) {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: lookup user")
	}

	user, err = s.repo.Create(ctx, CreateUserDTO{Email: normalized, Name: strings.TrimSpace(name)})
	if err != nil {
		if db.IsUniqueViolation(err, emailKeys...) {
			// lost a race with a concurrent login for the same email
			user, err = s.repo.FindByEmail(ctx, normalized)
			if err == nil {
				return user, false, nil
			}
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: create user")
	}
	s.logg.Info(s.logg.WithUserID(ctx, user.ID.String()), "user created on first login")
	return user, true, nil
}

func (s *service) Register(ctx context.Context, email, name string) (*models.User, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	user, err := s.repo.Create(ctx, CreateUserDTO{Email: normalized, Name: name})
	if err != nil {
		if db.IsUniqueViolation(err, emailKeys...) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "a user with this email already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: create user")
	}
	s.logg.Info(s.logg.WithUserID(ctx, user.ID.String()), "user registered")
	return user, nil
}

// EnsureAdmin upserts the back-office account with role admin.
func (s *service) EnsureAdmin(ctx context.Context, email, name string) (*models.User, error) {
	user, _, err := s.FindOrCreate(ctx, email, name)
	if err != nil {
		return nil, err
	}
	if user.Role == enums.UserRoleAdmin && user.Name == name {
		return user, nil
	}
	if err := s.repo.UpdateRole(ctx, user.ID, enums.UserRoleAdmin, name); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: promote admin")
	}
	user.Role = enums.UserRoleAdmin
	user.Name = name
	return user, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load user")
	}
	return user, nil
}

// Profile returns the user with its live orders, newest first.
func (s *service) Profile(ctx context.Context, id uuid.UUID) (*ProfileDTO, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	userOrders, err := s.orders.GetUserOrders(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ProfileDTO{UserDTO: *FromModel(user), Orders: userOrders}, nil
}

func (s *service) ListUsers(ctx context.Context) ([]orders.UserOrdersDTO, error) {
	synced, err := s.orders.SyncOrdersWithUsers(ctx)
	if err != nil {
		return nil, err
	}
	return synced.Users, nil
}

func (s *service) RecordLogin(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	if err := s.repo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update last login")
	}
	user.LastLoginAt = &now
	return nil
}
