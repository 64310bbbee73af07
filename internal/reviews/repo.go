package reviews

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/coffeeshop-backend/pkg/db/models"
	"github.com/angelmondragon/coffeeshop-backend/pkg/types"
)

// Repository persists product reviews.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a review repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, review *models.Review) error {
	return r.db.WithContext(ctx).Create(review).Error
}

// ListByProduct returns the reviews of a product, newest first.
func (r *Repository) ListByProduct(ctx context.Context, productID string) ([]models.Review, error) {
	var rows []models.Review
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).
		Error
	return rows, err
}

type statRow struct {
	ProductID   string
	Average     float64
	ReviewCount int
}

// Stats aggregates average rating and review count per product. Products
// without reviews are absent from the result.
func (r *Repository) Stats(ctx context.Context, productIDs []string) (map[string]types.RatingSummary, error) {
	out := make(map[string]types.RatingSummary, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	var rows []statRow
	err := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Select("product_id, AVG(rating) AS average, COUNT(*) AS review_count").
		Where("product_id IN ?", productIDs).
		Group("product_id").
		Scan(&rows).
		Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ProductID] = types.RatingSummary{Rating: row.Average, ReviewCount: row.ReviewCount}
	}
	return out, nil
}

// Distribution counts reviews per star value for one product.
func (r *Repository) Distribution(ctx context.Context, productID string) (types.Ratings, error) {
	type bucket struct {
		Rating int
		Count  int
	}
	var rows []bucket
	err := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Select("rating, COUNT(*) AS count").
		Where("product_id = ?", productID).
		Group("rating").
		Scan(&rows).
		Error
	if err != nil {
		return nil, err
	}
	out := types.NewRatings()
	for _, row := range rows {
		for i := 0; i < row.Count; i++ {
			out.Add(row.Rating)
		}
	}
	return out, nil
}
