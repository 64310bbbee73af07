package reviews

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/angelmondragon/coffeeshop-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
	"github.com/angelmondragon/coffeeshop-backend/pkg/types"
)

const (
	minRating        = 1
	maxRating        = 5
	minCommentLength = 3
)

// Author identifies the shopper writing a review.
type Author struct {
	UserID uuid.UUID
	Name   string
}

// AddReviewInput is the validated payload to post a review.
type AddReviewInput struct {
	ProductID string
	Rating    int
	Comment   string
}

// ReviewDTO is a review as returned to clients.
type ReviewDTO struct {
	ID        uuid.UUID `json:"id"`
	ProductID string    `json:"productId"`
	UserID    uuid.UUID `json:"userId"`
	UserName  string    `json:"userName"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

// ProductReviewsDTO bundles the review list with its aggregates.
type ProductReviewsDTO struct {
	Reviews      []ReviewDTO   `json:"reviews"`
	Average      float64       `json:"averageRating"`
	Count        int           `json:"reviewCount"`
	Distribution types.Ratings `json:"distribution"`
}

// Service manages product reviews.
type Service interface {
	AddReview(ctx context.Context, author Author, input AddReviewInput) (*ReviewDTO, error)
	GetProductReviews(ctx context.Context, productID string) (*ProductReviewsDTO, error)
	GetAverageRating(ctx context.Context, productID string) (float64, error)
	Stats(ctx context.Context, productIDs []string) (map[string]types.RatingSummary, error)
}

type productChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

type service struct {
	repo     *Repository
	products productChecker
	logg     *logger.Logger
	now      func() time.Time
}

// NewService constructs the review service.
func NewService(repo *Repository, products productChecker, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("review repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product checker required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, products: products, logg: logg, now: time.Now}, nil
}

func (s *service) AddReview(ctx context.Context, author Author, input AddReviewInput) (*ReviewDTO, error) {
	if author.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in to leave a review")
	}
	if input.Rating < minRating || input.Rating > maxRating {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "rating must be between %d and %d", minRating, maxRating)
	}
	comment := strings.TrimSpace(input.Comment)
	if utf8.RuneCountInString(comment) < minCommentLength {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "comment must be at least %d characters", minCommentLength)
	}
	exists, err := s.products.Exists(ctx, input.ProductID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: check product")
	}
	if !exists {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}

	review := &models.Review{
		ID:        uuid.New(),
		ProductID: input.ProductID,
		UserID:    author.UserID,
		UserName:  strings.TrimSpace(author.Name),
		Rating:    input.Rating,
		Comment:   comment,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, review); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert review")
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{"product_id": review.ProductID, "rating": review.Rating})
	s.logg.Info(logCtx, "review added")

	dto := toDTO(*review)
	return &dto, nil
}

func (s *service) GetProductReviews(ctx context.Context, productID string) (*ProductReviewsDTO, error) {
	rows, err := s.repo.ListByProduct(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list reviews")
	}
	out := &ProductReviewsDTO{
		Reviews:      make([]ReviewDTO, 0, len(rows)),
		Distribution: types.NewRatings(),
	}
	sum := 0
	for _, row := range rows {
		out.Reviews = append(out.Reviews, toDTO(row))
		out.Distribution.Add(row.Rating)
		sum += row.Rating
	}
	out.Count = len(rows)
	if out.Count > 0 {
		out.Average = float64(sum) / float64(out.Count)
	}
	return out, nil
}

// GetAverageRating returns 0 when the product has no reviews.
func (s *service) GetAverageRating(ctx context.Context, productID string) (float64, error) {
	stats, err := s.Stats(ctx, []string{productID})
	if err != nil {
		return 0, err
	}
	return stats[productID].Rating, nil
}

func (s *service) Stats(ctx context.Context, productIDs []string) (map[string]types.RatingSummary, error) {
	stats, err := s.repo.Stats(ctx, productIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: review stats")
	}
	return stats, nil
}

func toDTO(row models.Review) ReviewDTO {
	return ReviewDTO{
		ID:        row.ID,
		ProductID: row.ProductID,
		UserID:    row.UserID,
		UserName:  row.UserName,
		Rating:    row.Rating,
		Comment:   row.Comment,
		CreatedAt: row.CreatedAt,
	}
}
