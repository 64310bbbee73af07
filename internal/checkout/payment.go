package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
)

// ErrPaymentDeclined is returned by the mock gateway when configured to fail.
var ErrPaymentDeclined = errors.New("payment declined")

// PaymentRequest is one charge attempt.
type PaymentRequest struct {
	Amount decimal.Decimal
	Method enums.PaymentMethod
}

// PaymentResult identifies an accepted charge.
type PaymentResult struct {
	TransactionID string
	ProcessedAt   time.Time
}

// PaymentGateway charges a shopper.
type PaymentGateway interface {
	Charge(ctx context.Context, req PaymentRequest) (*PaymentResult, error)
}

// MockGateway simulates a payment provider: it waits for the configured
// latency and then accepts the charge unless told to fail.
type MockGateway struct {
	latency time.Duration
	fail    bool
	now     func() time.Time
}

// NewMockGateway builds the simulated gateway.
func NewMockGateway(latency time.Duration, fail bool) *MockGateway {
	return &MockGateway{latency: latency, fail: fail, now: time.Now}
}

func (g *MockGateway) Charge(ctx context.Context, req PaymentRequest) (*PaymentResult, error) {
	if g.latency > 0 {
		timer := time.NewTimer(g.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}
	if g.fail {
		return nil, ErrPaymentDeclined
	}
	now := g.now().UTC()
	return &PaymentResult{
		TransactionID: fmt.Sprintf("TR-%d", now.UnixMilli()),
		ProcessedAt:   now,
	}, nil
}
