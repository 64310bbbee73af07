package enums

import "fmt"

// ProductCategory represents the storefront sections a product is listed under.
type ProductCategory string

const (
	ProductCategoryCoffee    ProductCategory = "coffee"
	ProductCategorySweets    ProductCategory = "sweets"
	ProductCategoryAccessory ProductCategory = "accessory"
	ProductCategoryGift      ProductCategory = "gift"
)

var validProductCategories = []ProductCategory{
	ProductCategoryCoffee,
	ProductCategorySweets,
	ProductCategoryAccessory,
	ProductCategoryGift,
}

// String implements fmt.Stringer.
func (c ProductCategory) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ProductCategory.
func (c ProductCategory) IsValid() bool {
	for _, candidate := range validProductCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseProductCategory converts raw input into a ProductCategory.
func ParseProductCategory(value string) (ProductCategory, error) {
	for _, candidate := range validProductCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product category %q", value)
}

// ProductSize is the cup/box size a variation prices.
type ProductSize string

const (
	ProductSizeSmall  ProductSize = "small"
	ProductSizeMedium ProductSize = "medium"
	ProductSizeLarge  ProductSize = "large"
)

var validProductSizes = []ProductSize{
	ProductSizeSmall,
	ProductSizeMedium,
	ProductSizeLarge,
}

func (s ProductSize) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ProductSize.
func (s ProductSize) IsValid() bool {
	for _, candidate := range validProductSizes {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseProductSize converts raw input into a ProductSize.
func ParseProductSize(value string) (ProductSize, error) {
	for _, candidate := range validProductSizes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product size %q", value)
}

// ProductSort selects the catalog listing order.
type ProductSort string

const (
	ProductSortNewest    ProductSort = "newest"
	ProductSortOldest    ProductSort = "oldest"
	ProductSortPriceAsc  ProductSort = "price-asc"
	ProductSortPriceDesc ProductSort = "price-desc"
)

var validProductSorts = []ProductSort{
	ProductSortNewest,
	ProductSortOldest,
	ProductSortPriceAsc,
	ProductSortPriceDesc,
}

// IsValid reports whether the value is a known ProductSort.
func (s ProductSort) IsValid() bool {
	for _, candidate := range validProductSorts {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseProductSort converts raw input into a ProductSort. Empty input selects newest.
func ParseProductSort(value string) (ProductSort, error) {
	if value == "" {
		return ProductSortNewest, nil
	}
	for _, candidate := range validProductSorts {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sort option %q", value)
}
