package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestIncrWithTTLExpiresOnlyOnce(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	for want := int64(1); want <= 3; want++ {
		count, err := client.IncrWithTTL(ctx, "cs:rate_limit:login:ip:1.2.3.4", time.Minute)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != want {
			t.Fatalf("expected count %d, got %d", want, count)
		}
	}
	if got := mock.ttls["cs:rate_limit:login:ip:1.2.3.4"]; got != time.Minute {
		t.Fatalf("expected minute ttl, got %v", got)
	}
	if mock.expireSets != 1 {
		t.Fatalf("expected ttl set once, set %d times", mock.expireSets)
	}
}

func TestUninitializedClientFails(t *testing.T) {
	client := &Client{}
	if _, err := client.Get(context.Background(), "k"); !errors.Is(err, errNotInitialized) {
		t.Fatalf("expected errNotInitialized, got %v", err)
	}
	if _, err := client.IncrWithTTL(context.Background(), "k", time.Second); !errors.Is(err, errNotInitialized) {
		t.Fatalf("expected errNotInitialized, got %v", err)
	}
}

func TestScanKeysFollowsCursor(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	mock.scanPages = [][]string{{"cs:kv:cart:a", "cs:kv:cart:b"}, {"cs:kv:cart:c"}}
	client := &Client{store: mock}

	keys, err := client.ScanKeys(ctx, "cs:kv:cart:*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 3 {
		t.Fatalf("expected 3 keys across pages, got %v", keys)
	}
	if mock.scanCalls != 2 {
		t.Fatalf("expected 2 scan calls, got %d", mock.scanCalls)
	}
}

func TestLockAcquireAndRelease(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	first, err := NewLock(client, client.LockKey("cart:u1"), time.Second)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	second, _ := NewLock(client, client.LockKey("cart:u1"), time.Second)

	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("expected first acquire, ok=%v err=%v", ok, err)
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatalf("expected second acquire to fail while held")
	}

	shortCtx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	if err := second.Obtain(shortCtx, 5*time.Millisecond); !errors.Is(err, ErrLockHeld) {
		t.Fatalf("expected ErrLockHeld, got %v", err)
	}

	if err := second.Release(ctx); err != nil {
		t.Fatalf("release by non-owner: %v", err)
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatalf("non-owner release must not free the lock")
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := second.Obtain(ctx, time.Millisecond); err != nil {
		t.Fatalf("expected obtain after release, got %v", err)
	}
}

func TestGetMissingKeyReturnsNil(t *testing.T) {
	client := &Client{store: newMockCmdable()}
	if _, err := client.Get(context.Background(), "missing"); !errors.Is(err, redis.Nil) {
		t.Fatalf("expected redis.Nil, got %v", err)
	}
}

func TestGetDelConsumesKey(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}
	if err := client.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v, err := client.GetDel(ctx, "k"); err != nil || v != "v" {
		t.Fatalf("expected v, got %q err=%v", v, err)
	}
	if _, err := client.GetDel(ctx, "k"); !errors.Is(err, redis.Nil) {
		t.Fatalf("expected redis.Nil on second read, got %v", err)
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	if got := client.IdempotencyKey("scope", "id"); got != "cs:idempotency:scope:id" {
		t.Fatalf("unexpected idempotency key %s", got)
	}
	if got := client.RateLimitKey("scope"); got != "cs:rate_limit:scope" {
		t.Fatalf("unexpected rate limit key %s", got)
	}
	if got := client.LockKey("cron"); got != "cs:lock:cron" {
		t.Fatalf("unexpected lock key %s", got)
	}
	if got := client.KVKey("cart:u1"); got != "cs:kv:cart:u1" {
		t.Fatalf("unexpected kv key %s", got)
	}
	if got := client.AccessSessionKey("jti"); got != "cs:session:access:jti" {
		t.Fatalf("unexpected session key %s", got)
	}
}

type mockCmdable struct {
	data       map[string]string
	incr       map[string]int64
	ttls       map[string]time.Duration
	expireSets int
	scanPages  [][]string
	scanCalls  int
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data: map[string]string{},
		incr: map[string]int64{},
		ttls: map[string]time.Duration{},
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) GetDel(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	delete(m.data, key)
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Incr(ctx context.Context, key string) *redis.IntCmd {
	m.incr[key]++
	return redis.NewIntResult(m.incr[key], nil)
}

func (m *mockCmdable) ExpireNX(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	if _, ok := m.ttls[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	m.ttls[key] = expiration
	m.expireSets++
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (m *mockCmdable) Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	if len(keys) == 1 && len(args) == 1 && m.data[keys[0]] == fmt.Sprint(args[0]) {
		delete(m.data, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func (m *mockCmdable) Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd {
	m.scanCalls++
	if int(cursor) >= len(m.scanPages) {
		return redis.NewScanCmdResult(nil, 0, nil)
	}
	next := cursor + 1
	if int(next) >= len(m.scanPages) {
		next = 0
	}
	return redis.NewScanCmdResult(m.scanPages[cursor], next, nil)
}
