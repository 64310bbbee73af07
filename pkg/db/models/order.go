package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
	"github.com/angelmondragon/coffeeshop-backend/pkg/types"
)

// Order is the single stored copy of a placed order.
type Order struct {
	ID                   string                `gorm:"column:id;type:text;primaryKey"`
	UserID               *uuid.UUID            `gorm:"column:user_id;type:uuid;index:orders_user_id_idx"`
	Status               enums.OrderStatus     `gorm:"column:status;type:text;not null"`
	TotalPrice           decimal.Decimal       `gorm:"column:total_price;type:numeric(12,2);not null"`
	Shipping             types.ShippingAddress `gorm:"embedded;embeddedPrefix:shipping_"`
	PaymentMethod        enums.PaymentMethod   `gorm:"column:payment_method;type:text;not null"`
	PaymentTransactionID string                `gorm:"column:payment_transaction_id;not null;default:''"`
	Items                []OrderItem           `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt            time.Time             `gorm:"column:created_at"`
	UpdatedAt            time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem is one priced line copied from the cart at checkout.
type OrderItem struct {
	OrderID       string                `gorm:"column:order_id;type:text;primaryKey"`
	Position      int                   `gorm:"column:position;primaryKey"`
	ProductID     string                `gorm:"column:product_id;type:text;not null"`
	Product       types.ProductSnapshot `gorm:"column:product;type:jsonb;not null"`
	Quantity      int                   `gorm:"column:quantity;not null"`
	TotalPrice    decimal.Decimal       `gorm:"column:total_price;type:numeric(12,2);not null"`
	Customization types.Customization   `gorm:"column:customization;type:jsonb;not null"`
}
