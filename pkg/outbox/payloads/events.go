package payloads

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
)

// OrderCreatedEvent is emitted once checkout persists an order.
type OrderCreatedEvent struct {
	OrderID       string              `json:"order_id"`
	UserID        *uuid.UUID          `json:"user_id,omitempty"`
	TotalPrice    decimal.Decimal     `json:"total_price"`
	ItemCount     int                 `json:"item_count"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	TransactionID string              `json:"transaction_id"`
}

// OrderStatusChangedEvent records an accepted status transition.
type OrderStatusChangedEvent struct {
	OrderID string            `json:"order_id"`
	From    enums.OrderStatus `json:"from"`
	To      enums.OrderStatus `json:"to"`
}

// ProductChangedEvent carries the catalog fields carts are priced from.
type ProductChangedEvent struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	InStock   bool            `json:"in_stock"`
}

// ProductDeletedEvent is emitted when an admin removes a product.
type ProductDeletedEvent struct {
	ProductID string `json:"product_id"`
}
