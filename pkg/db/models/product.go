package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
	"github.com/angelmondragon/coffeeshop-backend/pkg/types"
)

// Product is a catalog entry. Rating and review count are not stored; they are
// aggregated from reviews when the product is read.
type Product struct {
	ID               string                `gorm:"column:id;type:text;primaryKey"`
	Name             string                `gorm:"column:name;not null"`
	ShortDescription string                `gorm:"column:short_description;not null;default:''"`
	Description      string                `gorm:"column:description;not null;default:''"`
	Price            decimal.Decimal       `gorm:"column:price;type:numeric(12,2);not null"`
	Category         enums.ProductCategory `gorm:"column:category;type:text;not null"`
	Image            string                `gorm:"column:image;not null;default:''"`
	Tags             pq.StringArray        `gorm:"column:tags;type:text[];not null"`
	Customizable     bool                  `gorm:"column:customizable;not null;default:false"`
	Ingredients      pq.StringArray        `gorm:"column:ingredients;type:text[];not null"`
	Calories         types.Calories        `gorm:"embedded;embeddedPrefix:calories_"`
	InStock          bool                  `gorm:"column:in_stock;not null;default:true"`
	Variations       []ProductVariation    `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// ProductVariation overrides the product price for one size.
type ProductVariation struct {
	ProductID string            `gorm:"column:product_id;type:text;primaryKey"`
	Size      enums.ProductSize `gorm:"column:size;type:text;primaryKey"`
	Price     decimal.Decimal   `gorm:"column:price;type:numeric(12,2);not null"`
}

// Snapshot copies the fields a cart line or order item needs.
func (p Product) Snapshot() types.ProductSnapshot {
	snap := types.ProductSnapshot{
		ID:               p.ID,
		Name:             p.Name,
		ShortDescription: p.ShortDescription,
		Price:            p.Price,
		Category:         p.Category,
		Image:            p.Image,
		Customizable:     p.Customizable,
		InStock:          p.InStock,
	}
	if len(p.Variations) > 0 {
		snap.Variations = make([]types.Variation, 0, len(p.Variations))
		for _, v := range p.Variations {
			snap.Variations = append(snap.Variations, types.Variation{Size: v.Size, Price: v.Price})
		}
	}
	return snap
}
