package catalog

import (
	"context"

	"github.com/angelmondragon/coffeeshop-backend/pkg/db/models"
	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
)

// ProductChange describes a committed catalog mutation. Product is nil for deletes.
type ProductChange struct {
	Event     enums.OutboxEventType
	ProductID string
	Product   *models.Product
}

// ProductListener is notified after a catalog mutation commits.
type ProductListener interface {
	OnProductChanged(ctx context.Context, change ProductChange) error
}

// ProductListenerFunc adapts a function to ProductListener.
type ProductListenerFunc func(ctx context.Context, change ProductChange) error

func (f ProductListenerFunc) OnProductChanged(ctx context.Context, change ProductChange) error {
	return f(ctx, change)
}
