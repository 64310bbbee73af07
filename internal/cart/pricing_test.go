package cart

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
	"github.com/angelmondragon/coffeeshop-backend/pkg/types"
)

func espressoSnapshot() types.ProductSnapshot {
	return types.ProductSnapshot{
		ID:    "1",
		Name:  "Эспрессо",
		Price: decimal.NewFromInt(120),
		Variations: []types.Variation{
			{Size: enums.ProductSizeSmall, Price: decimal.NewFromInt(120)},
			{Size: enums.ProductSizeMedium, Price: decimal.NewFromInt(150)},
		},
	}
}

func TestCalculateItemPrice(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name          string
		quantity      int
		customization types.Customization
		want          int64
	}{
		{"flat price", 1, types.Customization{}, 120},
		{"size variation", 2, types.Customization{Size: enums.ProductSizeMedium}, 300},
		{"size without variation falls back", 1, types.Customization{Size: enums.ProductSizeLarge}, 120},
		{"additions", 1, types.Customization{Sugar: 2, Parvarda: 1}, 180},
		{"size and additions", 3, types.Customization{Size: enums.ProductSizeMedium, Sugar: 1}, 465},
		{"negative counts ignored", 1, types.Customization{Sugar: -3}, 120},
		{"zero quantity", 0, types.Customization{Sugar: 1}, 0},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := CalculateItemPrice(espressoSnapshot(), tc.quantity, tc.customization)
			if !got.Equal(decimal.NewFromInt(tc.want)) {
				t.Fatalf("expected %d, got %s", tc.want, got)
			}
		})
	}
}

func TestValidateCustomization(t *testing.T) {
	t.Parallel()

	valid := []types.Customization{
		{},
		{Size: enums.ProductSizeLarge, Sugar: 5, Parvarda: 5},
	}
	for _, c := range valid {
		if err := ValidateCustomization(c); err != nil {
			t.Fatalf("expected %+v to be valid, got %v", c, err)
		}
	}

	invalid := []types.Customization{
		{Size: "huge"},
		{Sugar: 6},
		{Parvarda: 6},
		{Sugar: -1},
	}
	for _, c := range invalid {
		err := ValidateCustomization(c)
		if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("expected validation error for %+v, got %v", c, err)
		}
	}
}
