package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/coffeeshop-backend/pkg/kv"
	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
	"github.com/angelmondragon/coffeeshop-backend/pkg/types"
)

const (
	keyPrefix   = "cart:"
	blobVersion = 1
)

// Line is one stored cart line.
type Line struct {
	Product       types.ProductSnapshot `json:"product"`
	Quantity      int                   `json:"quantity"`
	Customization types.Customization   `json:"customization"`
	TotalPrice    decimal.Decimal       `json:"totalPrice"`
}

type blob struct {
	Version int    `json:"version"`
	Items   []Line `json:"items"`
}

// Store persists one JSON blob per cart owner in a kv.Store.
type Store struct {
	kv   kv.Store
	logg *logger.Logger
}

// NewStore wraps a key-value backend.
func NewStore(backend kv.Store, logg *logger.Logger) (*Store, error) {
	if backend == nil {
		return nil, fmt.Errorf("kv store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Store{kv: backend, logg: logg}, nil
}

func ownerKey(owner string) string {
	return keyPrefix + owner
}

// Load returns the owner's lines. A missing or undecodable blob is an empty cart.
func (s *Store) Load(ctx context.Context, owner string) ([]Line, error) {
	raw, err := s.kv.Get(ctx, ownerKey(owner))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return []Line{}, nil
		}
		return nil, err
	}
	var decoded blob
	if err := json.Unmarshal(raw, &decoded); err != nil {
		s.logg.Warn(s.logg.WithField(s.logg.WithCartOwner(ctx, owner), "error", err.Error()), "cart blob unreadable, treating as empty")
		return []Line{}, nil
	}
	if decoded.Items == nil {
		decoded.Items = []Line{}
	}
	return decoded.Items, nil
}

// Save replaces the owner's blob. An empty cart deletes the key.
func (s *Store) Save(ctx context.Context, owner string, lines []Line) error {
	if len(lines) == 0 {
		return s.kv.Delete(ctx, ownerKey(owner))
	}
	raw, err := json.Marshal(blob{Version: blobVersion, Items: lines})
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	return s.kv.Put(ctx, ownerKey(owner), raw)
}

// Owners lists every owner with a stored cart.
func (s *Store) Owners(ctx context.Context) ([]string, error) {
	keys, err := s.kv.Keys(ctx, keyPrefix)
	if err != nil {
		return nil, err
	}
	owners := make([]string, 0, len(keys))
	for _, key := range keys {
		owners = append(owners, strings.TrimPrefix(key, keyPrefix))
	}
	return owners, nil
}
