package favorites

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/coffeeshop-backend/pkg/db/models"
)

// Repository encapsulates favorites persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a favorites repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Add inserts a favorite and ignores duplicates.
func (r *Repository) Add(ctx context.Context, userID uuid.UUID, productID string, at time.Time) error {
	if userID == uuid.Nil || productID == "" {
		return gorm.ErrInvalidValue
	}

	return r.db.WithContext(ctx).
		Exec(`INSERT INTO favorites (user_id, product_id, created_at) VALUES (?, ?, ?) ON CONFLICT (user_id, product_id) DO NOTHING`, userID, productID, at).
		Error
}

// Remove deletes the user-product favorite and reports whether a row existed.
func (r *Repository) Remove(ctx context.Context, userID uuid.UUID, productID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&models.Favorite{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListIDs returns the favorite product ids of a user in the order they were added.
func (r *Repository) ListIDs(ctx context.Context, userID uuid.UUID) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.Favorite{}).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Order("product_id ASC").
		Pluck("product_id", &ids).
		Error
	return ids, err
}

func (r *Repository) Exists(ctx context.Context, userID uuid.UUID, productID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Favorite{}).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Count(&count).
		Error
	return count > 0, err
}
