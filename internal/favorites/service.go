package favorites

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/coffeeshop-backend/internal/catalog"
	"github.com/angelmondragon/coffeeshop-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
)

// ToggleResultDTO reports the favorite state after a toggle.
type ToggleResultDTO struct {
	ProductID  string `json:"productId"`
	IsFavorite bool   `json:"isFavorite"`
}

// FavoritesDTO lists a user's favorites as ids and resolved products.
type FavoritesDTO struct {
	ProductIDs []string             `json:"productIds"`
	Products   []catalog.ProductDTO `json:"products"`
}

// ServiceParams groups dependencies for the favorites service.
type ServiceParams struct {
	Repo    *Repository
	Catalog ProductCatalog
	Logger  *logger.Logger
}

// ProductCatalog is the slice of the catalog used by favorites.
type ProductCatalog interface {
	Lookup(ctx context.Context, id string) (*models.Product, error)
	ListByIDs(ctx context.Context, ids []string) ([]catalog.ProductDTO, error)
}

// Service exposes the favorites toggle and listing rules.
type Service interface {
	Toggle(ctx context.Context, userID uuid.UUID, productID string) (ToggleResultDTO, error)
	List(ctx context.Context, userID uuid.UUID) (FavoritesDTO, error)
	IsFavorite(ctx context.Context, userID uuid.UUID, productID string) (bool, error)
}

type service struct {
	repo    *Repository
	catalog ProductCatalog
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds a favorites service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "favorites repo is required")
	}
	if params.Catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "catalog is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	return &service{
		repo:    params.Repo,
		catalog: params.Catalog,
		logg:    params.Logger,
		now:     time.Now,
	}, nil
}

// Toggle removes the product when it is a favorite and adds it otherwise.
func (s *service) Toggle(ctx context.Context, userID uuid.UUID, productID string) (ToggleResultDTO, error) {
	productID = strings.TrimSpace(productID)
	if err := validateIDs(userID, productID); err != nil {
		return ToggleResultDTO{}, err
	}

	removed, err := s.repo.Remove(ctx, userID, productID)
	if err != nil {
		return ToggleResultDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: remove favorite")
	}
	if removed {
		return ToggleResultDTO{ProductID: productID, IsFavorite: false}, nil
	}

	if _, err := s.catalog.Lookup(ctx, productID); err != nil {
		return ToggleResultDTO{}, err
	}
	if err := s.repo.Add(ctx, userID, productID, s.now().UTC()); err != nil {
		return ToggleResultDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: add favorite")
	}
	s.logg.Debug(s.logg.WithField(ctx, "product_id", productID), "favorite added")
	return ToggleResultDTO{ProductID: productID, IsFavorite: true}, nil
}

// List returns the user's favorite ids and the products that still exist.
func (s *service) List(ctx context.Context, userID uuid.UUID) (FavoritesDTO, error) {
	if userID == uuid.Nil {
		return FavoritesDTO{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	ids, err := s.repo.ListIDs(ctx, userID)
	if err != nil {
		return FavoritesDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list favorites")
	}
	if ids == nil {
		ids = []string{}
	}
	products, err := s.catalog.ListByIDs(ctx, ids)
	if err != nil {
		return FavoritesDTO{}, err
	}
	if products == nil {
		products = []catalog.ProductDTO{}
	}
	return FavoritesDTO{ProductIDs: ids, Products: products}, nil
}

func (s *service) IsFavorite(ctx context.Context, userID uuid.UUID, productID string) (bool, error) {
	productID = strings.TrimSpace(productID)
	if err := validateIDs(userID, productID); err != nil {
		return false, err
	}
	ok, err := s.repo.Exists(ctx, userID, productID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: check favorite")
	}
	return ok, nil
}

func validateIDs(userID uuid.UUID, productID string) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if productID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	return nil
}
