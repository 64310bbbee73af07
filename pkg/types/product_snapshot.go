package types

import (
	"database/sql/driver"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
)

// Variation overrides the flat price for one size.
type Variation struct {
	Size  enums.ProductSize `json:"size"`
	Price decimal.Decimal   `json:"price"`
}

// ProductSnapshot is the copy of a product carried on cart lines and order
// items. It keeps everything needed to price and display the line even after
// the catalog entry changes or disappears.
type ProductSnapshot struct {
	ID               string                `json:"id"`
	Name             string                `json:"name"`
	ShortDescription string                `json:"shortDescription,omitempty"`
	Price            decimal.Decimal       `json:"price"`
	Category         enums.ProductCategory `json:"category"`
	Image            string                `json:"image,omitempty"`
	Customizable     bool                  `json:"customizable"`
	InStock          bool                  `json:"inStock"`
	Variations       []Variation           `json:"variations,omitempty"`
}

// VariationFor returns the variation priced for size, if any.
func (p ProductSnapshot) VariationFor(size enums.ProductSize) (Variation, bool) {
	if size == "" {
		return Variation{}, false
	}
	for _, v := range p.Variations {
		if v.Size == size {
			return v, true
		}
	}
	return Variation{}, false
}

// Value stores the snapshot as JSON.
func (p ProductSnapshot) Value() (driver.Value, error) {
	return marshalJSONValue(p)
}

// Scan decodes a JSON snapshot column.
func (p *ProductSnapshot) Scan(value interface{}) error {
	if value == nil {
		*p = ProductSnapshot{}
		return nil
	}
	var decoded ProductSnapshot
	if err := scanJSON("product snapshot", value, &decoded); err != nil {
		return err
	}
	*p = decoded
	return nil
}
