package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/coffeeshop-backend/pkg/db/models"
	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
	"github.com/angelmondragon/coffeeshop-backend/pkg/types"
)

// ItemInput is one line copied from the cart.
type ItemInput struct {
	Product       types.ProductSnapshot
	Quantity      int
	Customization types.Customization
	TotalPrice    decimal.Decimal
}

// CreateOrderInput carries everything needed to persist an order.
type CreateOrderInput struct {
	UserID        *uuid.UUID
	Items         []ItemInput
	Status        enums.OrderStatus
	Shipping      types.ShippingAddress
	PaymentMethod enums.PaymentMethod
	TransactionID string
	CreatedAt     time.Time
}

// ListParams filters the admin order list.
type ListParams struct {
	Limit  int
	Cursor string
	Status *enums.OrderStatus
}

type OrderItemDTO struct {
	Product       types.ProductSnapshot `json:"product"`
	Quantity      int                   `json:"quantity"`
	Customization types.Customization   `json:"customization"`
	TotalPrice    decimal.Decimal       `json:"totalPrice"`
}

type PaymentDTO struct {
	Method        enums.PaymentMethod `json:"method"`
	TransactionID string              `json:"transactionId"`
}

// OrderDTO is an order as served to shoppers and admins.
type OrderDTO struct {
	ID         string                `json:"id"`
	UserID     *uuid.UUID            `json:"userId,omitempty"`
	Items      []OrderItemDTO        `json:"items"`
	TotalPrice decimal.Decimal       `json:"totalPrice"`
	Status     enums.OrderStatus     `json:"status"`
	Shipping   types.ShippingAddress `json:"shipping"`
	Payment    PaymentDTO            `json:"payment"`
	CreatedAt  time.Time             `json:"createdAt"`
}

// UserOrdersDTO is a user with the orders currently stored for it.
type UserOrdersDTO struct {
	ID        uuid.UUID      `json:"id"`
	Email     string         `json:"email"`
	Name      string         `json:"name"`
	Role      enums.UserRole `json:"role"`
	CreatedAt time.Time      `json:"createdAt"`
	Orders    []OrderDTO     `json:"orders"`
}

// SyncResult is the user to orders grouping rebuilt from the orders table.
type SyncResult struct {
	Users       []UserOrdersDTO `json:"users"`
	Orphans     []OrderDTO      `json:"orphans"`
	GuestOrders int             `json:"guestOrders"`
}

// StatisticsDTO feeds the admin dashboard.
type StatisticsDTO struct {
	TotalUsers     int                         `json:"totalUsers"`
	TotalOrders    int64                       `json:"totalOrders"`
	ActiveUsers    int                         `json:"activeUsers"`
	Revenue        decimal.Decimal             `json:"revenue"`
	OrdersByStatus map[enums.OrderStatus]int64 `json:"ordersByStatus"`
}

func toDTO(order models.Order) OrderDTO {
	items := make([]OrderItemDTO, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemDTO{
			Product:       item.Product,
			Quantity:      item.Quantity,
			Customization: item.Customization,
			TotalPrice:    item.TotalPrice,
		})
	}
	return OrderDTO{
		ID:         order.ID,
		UserID:     order.UserID,
		Items:      items,
		TotalPrice: order.TotalPrice,
		Status:     order.Status,
		Shipping:   order.Shipping,
		Payment: PaymentDTO{
			Method:        order.PaymentMethod,
			TransactionID: order.PaymentTransactionID,
		},
		CreatedAt: order.CreatedAt,
	}
}

func toDTOs(rows []models.Order) []OrderDTO {
	out := make([]OrderDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDTO(row))
	}
	return out
}
