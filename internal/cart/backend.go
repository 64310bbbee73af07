package cart

import (
	"fmt"

	"github.com/angelmondragon/coffeeshop-backend/pkg/config"
	"github.com/angelmondragon/coffeeshop-backend/pkg/db"
	"github.com/angelmondragon/coffeeshop-backend/pkg/kv"
	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
	"github.com/angelmondragon/coffeeshop-backend/pkg/redis"
)

const (
	BackendRedis = "redis"
	BackendDB    = "db"
)

// NewBackend returns the store and locker selected by cfg.Store. Redis carts
// take a distributed lock; database carts are locked in process.
func NewBackend(cfg config.CartConfig, dbClient *db.Client, redisClient *redis.Client, logg *logger.Logger) (*Store, Locker, error) {
	switch cfg.Store {
	case BackendDB:
		if dbClient == nil {
			return nil, nil, fmt.Errorf("database client required for %q cart store", cfg.Store)
		}
		backend, err := kv.NewGormStore(dbClient.DB())
		if err != nil {
			return nil, nil, err
		}
		store, err := NewStore(backend, logg)
		if err != nil {
			return nil, nil, err
		}
		return store, NewLocalLocker(), nil
	case BackendRedis:
		if redisClient == nil {
			return nil, nil, fmt.Errorf("redis client required for %q cart store", cfg.Store)
		}
		backend, err := kv.NewRedisStore(redisClient, cfg.TTL)
		if err != nil {
			return nil, nil, err
		}
		store, err := NewStore(backend, logg)
		if err != nil {
			return nil, nil, err
		}
		return store, NewRedisLocker(redisClient, cfg.LockTTL), nil
	default:
		return nil, nil, fmt.Errorf("unknown cart store %q", cfg.Store)
	}
}
