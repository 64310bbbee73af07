package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
)

type cartRepricer interface {
	RepriceAll(ctx context.Context) (int, error)
}

type CartRepriceJobParams struct {
	Logger *logger.Logger
	Carts  cartRepricer
}

// NewCartRepriceJob refreshes stored carts against the current catalog. It
// catches carts missed when a product change was made by another process.
func NewCartRepriceJob(params CartRepriceJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	return &cartRepriceJob{logg: params.Logger, carts: params.Carts}, nil
}

type cartRepriceJob struct {
	logg  *logger.Logger
	carts cartRepricer
}

func (j *cartRepriceJob) Name() string { return "cart-reprice" }

func (j *cartRepriceJob) Run(ctx context.Context) error {
	updated, err := j.carts.RepriceAll(ctx)
	if err != nil {
		return fmt.Errorf("reprice carts: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "carts_updated", updated), "cart reprice complete")
	return nil
}
