package types

import "strings"

// ShippingAddress is the delivery destination captured at checkout.
type ShippingAddress struct {
	Address    string `json:"address" gorm:"column:address;not null"`
	City       string `json:"city" gorm:"column:city;not null"`
	PostalCode string `json:"postalCode" gorm:"column:postal_code;not null"`
	Country    string `json:"country" gorm:"column:country;not null"`
}

// MissingFields lists required fields that are blank after trimming.
func (s ShippingAddress) MissingFields() []string {
	var missing []string
	if strings.TrimSpace(s.Address) == "" {
		missing = append(missing, "address")
	}
	if strings.TrimSpace(s.City) == "" {
		missing = append(missing, "city")
	}
	if strings.TrimSpace(s.PostalCode) == "" {
		missing = append(missing, "postalCode")
	}
	return missing
}

// Trimmed returns a copy with surrounding whitespace removed.
func (s ShippingAddress) Trimmed() ShippingAddress {
	return ShippingAddress{
		Address:    strings.TrimSpace(s.Address),
		City:       strings.TrimSpace(s.City),
		PostalCode: strings.TrimSpace(s.PostalCode),
		Country:    strings.TrimSpace(s.Country),
	}
}
