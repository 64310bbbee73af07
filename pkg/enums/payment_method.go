package enums

import (
	"fmt"
	"strings"
)

// PaymentMethod is the mocked gateway a shopper picked at checkout.
type PaymentMethod string

const (
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodPayPal PaymentMethod = "paypal"
)

// paymentMethodAliases maps spellings sent by older clients.
var paymentMethodAliases = map[string]PaymentMethod{
	"card":        PaymentMethodCard,
	"bank_card":   PaymentMethodCard,
	"credit_card": PaymentMethodCard,
	"paypal":      PaymentMethodPayPal,
	"pay_pal":     PaymentMethodPayPal,
}

func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid only accepts canonical values; aliases go through ParsePaymentMethod.
func (p PaymentMethod) IsValid() bool {
	return p == PaymentMethodCard || p == PaymentMethodPayPal
}

// ParsePaymentMethod normalizes case, dashes and known aliases.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), "-", "_")
	if method, ok := paymentMethodAliases[key]; ok {
		return method, nil
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
