package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/coffeeshop-backend/internal/orders"
	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
)

type orderSyncer interface {
	SyncOrdersWithUsers(ctx context.Context) (*orders.SyncResult, error)
}

type OrderSyncJobParams struct {
	Logger *logger.Logger
	Orders orderSyncer
}

// NewOrderSyncJob rebuilds the user to orders grouping and reports orders
// whose owner no longer exists.
func NewOrderSyncJob(params OrderSyncJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	return &orderSyncJob{logg: params.Logger, orders: params.Orders}, nil
}

type orderSyncJob struct {
	logg   *logger.Logger
	orders orderSyncer
}

func (j *orderSyncJob) Name() string { return "order-user-sync" }

func (j *orderSyncJob) Run(ctx context.Context) error {
	result, err := j.orders.SyncOrdersWithUsers(ctx)
	if err != nil {
		return fmt.Errorf("sync orders with users: %w", err)
	}
	for _, orphan := range result.Orphans {
		orphanCtx := j.logg.WithOrderID(ctx, orphan.ID)
		if orphan.UserID != nil {
			orphanCtx = j.logg.WithUserID(orphanCtx, orphan.UserID.String())
		}
		j.logg.Warn(orphanCtx, "order references unknown user")
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"users":        len(result.Users),
		"orphans":      len(result.Orphans),
		"guest_orders": result.GuestOrders,
	})
	j.logg.Info(logCtx, "order sync complete")
	return nil
}
