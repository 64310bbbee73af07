package cart

import (
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
	"github.com/angelmondragon/coffeeshop-backend/pkg/types"
)

// Unit prices of paid additions. They are the same for every product.
var (
	SugarUnitPrice    = decimal.NewFromInt(5)
	ParvardaUnitPrice = decimal.NewFromInt(50)
)

// CalculateItemPrice prices one line: the size variation price (or the flat
// price when the size has no variation) plus additions, times quantity.
func CalculateItemPrice(product types.ProductSnapshot, quantity int, customization types.Customization) decimal.Decimal {
	c := customization.Normalize()
	base := product.Price
	if variation, ok := product.VariationFor(c.Size); ok {
		base = variation.Price
	}
	additions := SugarUnitPrice.Mul(decimal.NewFromInt(int64(c.Sugar))).
		Add(ParvardaUnitPrice.Mul(decimal.NewFromInt(int64(c.Parvarda))))
	return base.Add(additions).Mul(decimal.NewFromInt(int64(quantity)))
}

// ValidateCustomization rejects values the storefront never offers.
func ValidateCustomization(c types.Customization) error {
	if c.Size != "" && !c.Size.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid size %q", c.Size)
	}
	if c.Sugar < 0 || c.Sugar > types.MaxAdditionUnits {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "sugar must be between 0 and %d", types.MaxAdditionUnits)
	}
	if c.Parvarda < 0 || c.Parvarda > types.MaxAdditionUnits {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "parvarda must be between 0 and %d", types.MaxAdditionUnits)
	}
	return nil
}
