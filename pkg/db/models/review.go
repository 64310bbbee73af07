package models

import (
	"time"

	"github.com/google/uuid"
)

// Review is a shopper's rating of a product.
type Review struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID string    `gorm:"column:product_id;type:text;not null;index:reviews_product_id_idx"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null"`
	UserName  string    `gorm:"column:user_name;not null"`
	Rating    int       `gorm:"column:rating;not null"`
	Comment   string    `gorm:"column:comment;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
