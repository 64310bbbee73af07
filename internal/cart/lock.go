package cart

import (
	"context"
	"sync"
	"time"

	"github.com/angelmondragon/coffeeshop-backend/pkg/redis"
)

const lockRetry = 20 * time.Millisecond

// Locker serializes writes to one owner's cart.
type Locker interface {
	Lock(ctx context.Context, owner string) (unlock func(), err error)
}

type lockClient interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DeleteIfEquals(ctx context.Context, key, expected string) (bool, error)
	LockKey(name string) string
}

// RedisLocker takes a SETNX lock per owner so concurrent API replicas do not
// lose cart updates.
type RedisLocker struct {
	client lockClient
	ttl    time.Duration
}

// NewRedisLocker builds a locker on the shared redis client.
func NewRedisLocker(client lockClient, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl}
}

func (l *RedisLocker) Lock(ctx context.Context, owner string) (func(), error) {
	lock, err := redis.NewLock(l.client, l.client.LockKey(keyPrefix+owner), l.ttl)
	if err != nil {
		return nil, err
	}
	if err := lock.Obtain(ctx, lockRetry); err != nil {
		return nil, err
	}
	return func() {
		_ = lock.Release(context.WithoutCancel(ctx))
	}, nil
}

// LocalLocker serializes owners inside one process. Entries are dropped once
// no caller holds or waits on them.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*localLock
}

type localLock struct {
	sync.Mutex
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: map[string]*localLock{}}
}

func (l *LocalLocker) Lock(_ context.Context, owner string) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[owner]
	if !ok {
		m = &localLock{}
		l.locks[owner] = m
	}
	m.refs++
	l.mu.Unlock()

	m.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			m.Unlock()
			l.mu.Lock()
			m.refs--
			if m.refs == 0 {
				delete(l.locks, owner)
			}
			l.mu.Unlock()
		})
	}, nil
}

func (l *LocalLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
