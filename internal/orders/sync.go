package orders

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/coffeeshop-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
)

// SyncOrdersWithUsers rebuilds the user to orders grouping from the orders
// table. Every user is present, even without orders. Orders pointing at a
// missing user are reported as orphans. Nothing is written.
func (s *service) SyncOrdersWithUsers(ctx context.Context) (*SyncResult, error) {
	users, err := s.users.ListAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list users")
	}
	orders, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list orders")
	}
	return groupOrders(users, orders), nil
}

func groupOrders(users []models.User, orders []models.Order) *SyncResult {
	result := &SyncResult{
		Users:   make([]UserOrdersDTO, 0, len(users)),
		Orphans: []OrderDTO{},
	}
	index := make(map[uuid.UUID]int, len(users))
	for _, u := range users {
		index[u.ID] = len(result.Users)
		result.Users = append(result.Users, UserOrdersDTO{
			ID:        u.ID,
			Email:     u.Email,
			Name:      u.Name,
			Role:      u.Role,
			CreatedAt: u.CreatedAt,
			Orders:    []OrderDTO{},
		})
	}
	for _, order := range orders {
		if order.UserID == nil {
			result.GuestOrders++
			continue
		}
		pos, ok := index[*order.UserID]
		if !ok {
			result.Orphans = append(result.Orphans, toDTO(order))
			continue
		}
		result.Users[pos].Orders = append(result.Users[pos].Orders, toDTO(order))
	}
	return result
}
