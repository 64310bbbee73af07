package models

import (
	"time"

	"github.com/google/uuid"
)

// Favorite links a user to a product they saved.
type Favorite struct {
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	ProductID string    `gorm:"column:product_id;type:text;primaryKey;index:favorites_product_id_idx"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
