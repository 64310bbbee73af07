package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// markStore is the slice of the redis client the guard needs.
type markStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Guard records which outbox events a worker has already handed off. Keys
// look like cs:idempotency:evt:<worker>:<event_id>.
type Guard struct {
	store markStore
	ttl   time.Duration
}

// NewGuard keeps marks for ttl. A zero ttl keeps them until deleted.
func NewGuard(store markStore, ttl time.Duration) (*Guard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, fmt.Errorf("ttl must be non-negative, got %s", ttl)
	}
	return &Guard{store: store, ttl: ttl}, nil
}

// MarkSeen marks eventID for worker and reports whether it was marked already.
func (g *Guard) MarkSeen(ctx context.Context, worker, eventID string) (bool, error) {
	key, err := g.key(worker, eventID)
	if err != nil {
		return false, err
	}
	fresh, err := g.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), g.ttl)
	if err != nil {
		return false, fmt.Errorf("mark event %s: %w", eventID, err)
	}
	return !fresh, nil
}

// Forget drops the mark so the event can be handed off again.
func (g *Guard) Forget(ctx context.Context, worker, eventID string) error {
	key, err := g.key(worker, eventID)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

func (g *Guard) key(worker, eventID string) (string, error) {
	worker = strings.TrimSpace(worker)
	if worker == "" {
		return "", errors.New("worker name is required")
	}
	id, err := uuid.Parse(strings.TrimSpace(eventID))
	if err != nil {
		return "", fmt.Errorf("event id %q: %w", eventID, err)
	}
	return g.store.IdempotencyKey("evt:"+worker, id.String()), nil
}
