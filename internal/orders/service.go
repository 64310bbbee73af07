package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/coffeeshop-backend/pkg/db"
	"github.com/angelmondragon/coffeeshop-backend/pkg/db/models"
	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
	"github.com/angelmondragon/coffeeshop-backend/pkg/metrics"
	"github.com/angelmondragon/coffeeshop-backend/pkg/outbox"
	"github.com/angelmondragon/coffeeshop-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/coffeeshop-backend/pkg/pagination"
)

// DefaultCountry is stored when checkout does not name a country.
const DefaultCountry = "Россия"

// Service owns the orders table, the only stored copy of every order.
type Service interface {
	AddOrder(ctx context.Context, input CreateOrderInput) (*OrderDTO, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status enums.OrderStatus) (*OrderDTO, error)
	GetOrder(ctx context.Context, orderID string) (*OrderDTO, error)
	GetUserOrder(ctx context.Context, userID uuid.UUID, orderID string) (*OrderDTO, error)
	GetUserOrders(ctx context.Context, userID uuid.UUID) ([]OrderDTO, error)
	ListOrders(ctx context.Context, params ListParams) (*pagination.Page[OrderDTO], error)
	SyncOrdersWithUsers(ctx context.Context) (*SyncResult, error)
	Statistics(ctx context.Context) (*StatisticsDTO, error)
}

// ServiceParams groups dependencies for the orders service.
type ServiceParams struct {
	Repo    Repository
	Users   UserDirectory
	Tx      txRunner
	Outbox  outboxPublisher
	Metrics *metrics.ShopMetrics
	Logger  *logger.Logger
}

type service struct {
	repo    Repository
	users   UserDirectory
	tx      txRunner
	outbox  outboxPublisher
	metrics *metrics.ShopMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds the orders service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user directory required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:    params.Repo,
		users:   params.Users,
		tx:      params.Tx,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     time.Now,
	}, nil
}

// AddOrder persists the order with its items and the order_created event in
// one transaction. The order total is recomputed from the item totals.
func (s *service) AddOrder(ctx context.Context, input CreateOrderInput) (*OrderDTO, error) {
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid payment method %q", input.PaymentMethod)
	}
	status := input.Status
	if status == "" {
		status = enums.OrderStatusPending
	}
	if !status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid order status %q", status)
	}
	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	createdAt = createdAt.UTC()

	id, err := NewOrderID(createdAt)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order id")
	}

	shipping := input.Shipping.Trimmed()
	if shipping.Country == "" {
		shipping.Country = DefaultCountry
	}

	order := &models.Order{
		ID:                   id,
		UserID:               input.UserID,
		Status:               status,
		Shipping:             shipping,
		PaymentMethod:        input.PaymentMethod,
		PaymentTransactionID: strings.TrimSpace(input.TransactionID),
		CreatedAt:            createdAt,
		TotalPrice:           decimal.Zero,
	}
	for i, item := range input.Items {
		if item.Quantity < 1 {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "item %d quantity must be at least 1", i)
		}
		if item.Product.ID == "" {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "item %d product is required", i)
		}
		order.Items = append(order.Items, models.OrderItem{
			OrderID:       id,
			Position:      i,
			ProductID:     item.Product.ID,
			Product:       item.Product,
			Quantity:      item.Quantity,
			Customization: item.Customization.Normalize(),
			TotalPrice:    item.TotalPrice,
		})
		order.TotalPrice = order.TotalPrice.Add(item.TotalPrice)
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert order")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:   enums.EventOrderCreated,
			AggregateID: order.ID,
			Actor:       buildActor(order.UserID),
			Data: payloads.OrderCreatedEvent{
				OrderID:       order.ID,
				UserID:        order.UserID,
				TotalPrice:    order.TotalPrice,
				ItemCount:     len(order.Items),
				PaymentMethod: order.PaymentMethod,
				TransactionID: order.PaymentTransactionID,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncOrdersPlaced()
	s.logg.Info(s.logg.WithFields(s.logg.WithOrderID(ctx, order.ID), map[string]any{
		"status":      order.Status,
		"total_price": order.TotalPrice.String(),
		"items":       len(order.Items),
	}), "order created")

	dto := toDTO(*order)
	return &dto, nil
}

// UpdateOrderStatus applies a legal transition. Re-applying the current
// status succeeds without writing.
func (s *service) UpdateOrderStatus(ctx context.Context, orderID string, status enums.OrderStatus) (*OrderDTO, error) {
	if !status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid order status %q", status)
	}

	var (
		updated *models.Order
		from    enums.OrderStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load order")
		}
		from = order.Status
		updated = order
		if order.Status == status {
			return nil
		}
		if !order.Status.CanTransitionTo(status) {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot change order status from %s to %s", order.Status, status).
				WithDetails(map[string]any{"from": order.Status, "to": status})
		}
		if err := repo.UpdateStatus(ctx, order.ID, status); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update order status")
		}
		order.Status = status
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:   enums.EventOrderStatusChanged,
			AggregateID: order.ID,
			Data: payloads.OrderStatusChangedEvent{
				OrderID: order.ID,
				From:    from,
				To:      status,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if from != status {
		s.metrics.IncStatusChange(status.String())
		s.logg.Info(s.logg.WithFields(s.logg.WithOrderID(ctx, orderID), map[string]any{
			"from": from,
			"to":   status,
		}), "order status changed")
	}
	dto := toDTO(*updated)
	return &dto, nil
}

func (s *service) GetOrder(ctx context.Context, orderID string) (*OrderDTO, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load order")
	}
	dto := toDTO(*order)
	return &dto, nil
}

// GetUserOrder hides orders of other users behind not found.
func (s *service) GetUserOrder(ctx context.Context, userID uuid.UUID, orderID string) (*OrderDTO, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID == nil || *order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

// GetUserOrders returns the user's orders, newest first.
func (s *service) GetUserOrders(ctx context.Context, userID uuid.UUID) ([]OrderDTO, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list user orders")
	}
	return toDTOs(rows), nil
}

func (s *service) ListOrders(ctx context.Context, params ListParams) (*pagination.Page[OrderDTO], error) {
	if params.Status != nil && !params.Status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid order status %q", *params.Status)
	}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.List(ctx, pagination.Params{Limit: params.Limit, Cursor: params.Cursor}, params.Status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list orders")
	}
	return &pagination.Page[OrderDTO]{Items: toDTOs(rows), NextCursor: next}, nil
}

func buildActor(userID *uuid.UUID) *outbox.ActorRef {
	if userID == nil {
		return outbox.GuestActor()
	}
	return outbox.UserActor(*userID, enums.UserRoleUser)
}
