package catalog

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/coffeeshop-backend/pkg/db/models"
	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
	"github.com/angelmondragon/coffeeshop-backend/pkg/types"
)

// ProductInput is the full set of editable product fields. Updates replace
// every field.
type ProductInput struct {
	Name             string
	ShortDescription string
	Description      string
	Price            decimal.Decimal
	Category         enums.ProductCategory
	Image            string
	Tags             []string
	Customizable     bool
	Ingredients      []string
	Calories         types.Calories
	InStock          bool
	Variations       []types.Variation
}

// ListQuery holds the catalog browse filters.
type ListQuery struct {
	Category *enums.ProductCategory
	Search   string
	Sort     enums.ProductSort
}

// ProductDTO is the product as served to shoppers and admins.
type ProductDTO struct {
	ID               string                `json:"id"`
	Name             string                `json:"name"`
	ShortDescription string                `json:"shortDescription"`
	Description      string                `json:"description"`
	Price            decimal.Decimal       `json:"price"`
	Category         enums.ProductCategory `json:"category"`
	Image            string                `json:"image"`
	Tags             []string              `json:"tags"`
	Rating           float64               `json:"rating"`
	ReviewCount      int                   `json:"reviewCount"`
	Customizable     bool                  `json:"customizable"`
	Calories         types.Calories        `json:"calories"`
	Ingredients      []string              `json:"ingredients"`
	InStock          bool                  `json:"inStock"`
	CreatedAt        time.Time             `json:"createdAt"`
	Variations       []types.Variation     `json:"variations,omitempty"`
}

func toDTO(p models.Product, rating types.RatingSummary) ProductDTO {
	dto := ProductDTO{
		ID:               p.ID,
		Name:             p.Name,
		ShortDescription: p.ShortDescription,
		Description:      p.Description,
		Price:            p.Price,
		Category:         p.Category,
		Image:            p.Image,
		Tags:             nonNil(p.Tags),
		Rating:           rating.Rating,
		ReviewCount:      rating.ReviewCount,
		Customizable:     p.Customizable,
		Calories:         p.Calories,
		Ingredients:      nonNil(p.Ingredients),
		InStock:          p.InStock,
		CreatedAt:        p.CreatedAt,
	}
	if len(p.Variations) > 0 {
		dto.Variations = make([]types.Variation, 0, len(p.Variations))
		for _, v := range p.Variations {
			dto.Variations = append(dto.Variations, types.Variation{Size: v.Size, Price: v.Price})
		}
	}
	return dto
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return append([]string(nil), values...)
}
