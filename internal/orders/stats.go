package orders

import (
	"context"

	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
)

// Statistics aggregates the admin dashboard counters. Revenue excludes
// cancelled orders.
func (s *service) Statistics(ctx context.Context) (*StatisticsDTO, error) {
	synced, err := s.SyncOrdersWithUsers(ctx)
	if err != nil {
		return nil, err
	}
	byStatus, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: count orders")
	}
	revenue, err := s.repo.Revenue(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: sum revenue")
	}

	stats := &StatisticsDTO{
		TotalUsers:     len(synced.Users),
		Revenue:        revenue,
		OrdersByStatus: make(map[enums.OrderStatus]int64, len(enums.OrderStatuses())),
	}
	for _, status := range enums.OrderStatuses() {
		stats.OrdersByStatus[status] = byStatus[status]
		stats.TotalOrders += byStatus[status]
	}
	for _, u := range synced.Users {
		if len(u.Orders) > 0 {
			stats.ActiveUsers++
		}
	}
	return stats, nil
}
