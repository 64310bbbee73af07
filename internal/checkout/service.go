package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/coffeeshop-backend/internal/cart"
	"github.com/angelmondragon/coffeeshop-backend/internal/orders"
	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
	"github.com/angelmondragon/coffeeshop-backend/pkg/metrics"
	"github.com/angelmondragon/coffeeshop-backend/pkg/types"
)

type cartDrainer interface {
	Drain(ctx context.Context, owner string, fn func(*cart.CartDTO) error) error
}

type orderCreator interface {
	AddOrder(ctx context.Context, input orders.CreateOrderInput) (*orders.OrderDTO, error)
}

// CheckoutInput is the shipping and payment form.
type CheckoutInput struct {
	Shipping      types.ShippingAddress
	PaymentMethod enums.PaymentMethod
}

// Service executes checkout orchestration.
type Service interface {
	Checkout(ctx context.Context, owner string, userID *uuid.UUID, input CheckoutInput) (*orders.OrderDTO, error)
}

// ServiceParams groups checkout dependencies.
type ServiceParams struct {
	Cart           cartDrainer
	Orders         orderCreator
	Gateway        PaymentGateway
	DefaultCountry string
	Metrics        *metrics.ShopMetrics
	Logger         *logger.Logger
}

type service struct {
	cart    cartDrainer
	orders  orderCreator
	gateway PaymentGateway
	country string
	metrics *metrics.ShopMetrics
	logg    *logger.Logger
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Cart == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	country := strings.TrimSpace(params.DefaultCountry)
	if country == "" {
		country = orders.DefaultCountry
	}
	return &service{
		cart:    params.Cart,
		orders:  params.Orders,
		gateway: params.Gateway,
		country: country,
		metrics: params.Metrics,
		logg:    params.Logger,
	}, nil
}

// Checkout charges the cart total, stores the order as processing and clears
// the cart, all under the owner's cart lock. A failed charge leaves the cart
// untouched and creates no order.
func (s *service) Checkout(ctx context.Context, owner string, userID *uuid.UUID, input CheckoutInput) (*orders.OrderDTO, error) {
	shipping := input.Shipping.Trimmed()
	if missing := shipping.MissingFields(); len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address is incomplete").
			WithDetails(map[string]any{"missing": missing})
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid payment method %q", input.PaymentMethod)
	}
	if shipping.Country == "" {
		shipping.Country = s.country
	}

	logCtx := s.logg.WithCartOwner(ctx, owner)
	var order *orders.OrderDTO
	err := s.cart.Drain(ctx, owner, func(current *cart.CartDTO) error {
		if len(current.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}
		payment, err := s.gateway.Charge(ctx, PaymentRequest{Amount: current.TotalPrice, Method: input.PaymentMethod})
		if err != nil {
			s.metrics.IncPaymentFailures()
			s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "payment failed")
			if errors.Is(err, ErrPaymentDeclined) {
				return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "payment was declined")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment failed")
		}

		items := make([]orders.ItemInput, 0, len(current.Items))
		for _, line := range current.Items {
			items = append(items, orders.ItemInput{
				Product:       line.Product,
				Quantity:      line.Quantity,
				Customization: line.Customization,
				TotalPrice:    line.TotalPrice,
			})
		}
		order, err = s.orders.AddOrder(ctx, orders.CreateOrderInput{
			UserID:        userID,
			Items:         items,
			Status:        enums.OrderStatusProcessing,
			Shipping:      shipping,
			PaymentMethod: input.PaymentMethod,
			TransactionID: payment.TransactionID,
			CreatedAt:     payment.ProcessedAt,
		})
		if err != nil {
			s.logg.Error(s.logg.WithField(logCtx, "transaction_id", payment.TransactionID), "order not stored after payment", err)
			return err
		}
		return nil
	})
	switch {
	case errors.Is(err, cart.ErrNotCleared):
		s.logg.Error(s.logg.WithOrderID(logCtx, order.ID), "clear cart after checkout", err)
	case err != nil:
		return nil, err
	}
	s.logg.Info(s.logg.WithOrderID(logCtx, order.ID), "checkout completed")
	return order, nil
}
