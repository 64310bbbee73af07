package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/coffeeshop-backend/api/controllers"
	"github.com/angelmondragon/coffeeshop-backend/internal/auth"
	"github.com/angelmondragon/coffeeshop-backend/internal/cart"
	"github.com/angelmondragon/coffeeshop-backend/internal/catalog"
	"github.com/angelmondragon/coffeeshop-backend/internal/checkout"
	"github.com/angelmondragon/coffeeshop-backend/internal/favorites"
	"github.com/angelmondragon/coffeeshop-backend/internal/orders"
	"github.com/angelmondragon/coffeeshop-backend/internal/reviews"
	"github.com/angelmondragon/coffeeshop-backend/internal/testdb"
	"github.com/angelmondragon/coffeeshop-backend/internal/users"
	"github.com/angelmondragon/coffeeshop-backend/pkg/auth/session"
	"github.com/angelmondragon/coffeeshop-backend/pkg/config"
	"github.com/angelmondragon/coffeeshop-backend/pkg/kv"
	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
	"github.com/angelmondragon/coffeeshop-backend/pkg/metrics"
	"github.com/angelmondragon/coffeeshop-backend/pkg/outbox"
)

type memSessions struct {
	mu       sync.Mutex
	sessions map[string]string
}

func (m *memSessions) Generate(_ context.Context, accessID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[accessID] = "refresh-" + accessID
	return m.sessions[accessID], nil
}

func (m *memSessions) Rotate(_ context.Context, oldAccessID, provided string) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if provided == "" || m.sessions[oldAccessID] != provided {
		return "", "", session.ErrInvalidRefreshToken
	}
	delete(m.sessions, oldAccessID)
	next := session.NewAccessID()
	m.sessions[next] = "refresh-" + next
	return next, m.sessions[next], nil
}

func (m *memSessions) Revoke(_ context.Context, accessID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, accessID)
	return nil
}

func (m *memSessions) HasSession(_ context.Context, accessID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[accessID]
	return ok, nil
}

type memRedis struct {
	mu   sync.Mutex
	data map[string]string
	hits map[string]int64
}

func newMemRedis() *memRedis {
	return &memRedis{data: map[string]string{}, hits: map[string]int64{}}
}

func (m *memRedis) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memRedis) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	str, _ := value.(string)
	m.data[key] = str
	return nil
}

func (m *memRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	m.data[key] = str
	return true, nil
}

func (m *memRedis) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memRedis) IdempotencyKey(scope, id string) string {
	return "idempotency:" + scope + ":" + id
}

func (m *memRedis) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits[key]++
	return m.hits[key], nil
}

func (m *memRedis) RateLimitKey(scope string) string {
	return "rl:" + scope
}

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	client := testdb.Client(t)
	db := client.DB()
	logg := logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard})
	events := outbox.NewService(outbox.NewRepository(db), logg)

	cfg := &config.Config{
		App:  config.AppConfig{Env: "test", Port: "0"},
		JWT:  config.JWTConfig{Secret: "secret", Issuer: "coffeeshop", ExpirationMinutes: 30, SessionTTLMinutes: 120},
		CORS: config.CORSConfig{AllowedOrigins: []string{"http://localhost:5173"}},
		Idempotency: config.IdempotencyConfig{
			TTL:         time.Hour,
			CheckoutTTL: time.Hour,
			PendingTTL:  time.Minute,
		},
		AuthRateLimit: config.AuthRateLimitConfig{
			LoginWindow:     time.Minute,
			LoginIPLimit:    100,
			LoginEmailLimit: 100,
		},
	}

	reviewRepo := reviews.NewRepository(db)
	catalogRepo := catalog.NewRepository(db)
	catalogSvc, err := catalog.NewService(catalogRepo, client, reviewRepo, events, logg)
	require.NoError(t, err)
	_, err = catalogSvc.SeedIfEmpty(context.Background())
	require.NoError(t, err)
	reviewSvc, err := reviews.NewService(reviewRepo, catalogRepo, logg)
	require.NoError(t, err)

	backend, err := kv.NewGormStore(db)
	require.NoError(t, err)
	store, err := cart.NewStore(backend, logg)
	require.NoError(t, err)
	cartSvc, err := cart.NewService(cart.ServiceParams{Store: store, Catalog: catalogSvc, Locker: cart.NewLocalLocker(), Logger: logg})
	require.NoError(t, err)
	catalogSvc.Subscribe(cartSvc)

	userRepo := users.NewRepository(db)
	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repo:   orders.NewRepository(db),
		Users:  userRepo,
		Tx:     client,
		Outbox: events,
		Logger: logg,
	})
	require.NoError(t, err)
	userSvc, err := users.NewService(users.ServiceParams{Repo: userRepo, Orders: orderSvc, Logger: logg})
	require.NoError(t, err)

	favoriteSvc, err := favorites.NewService(favorites.ServiceParams{Repo: favorites.NewRepository(db), Catalog: catalogSvc, Logger: logg})
	require.NoError(t, err)

	checkoutSvc, err := checkout.NewService(checkout.ServiceParams{
		Cart:           cartSvc,
		Orders:         orderSvc,
		Gateway:        checkout.NewMockGateway(0, false),
		DefaultCountry: "Россия",
		Logger:         logg,
	})
	require.NoError(t, err)

	sessions := &memSessions{sessions: map[string]string{}}
	authSvc, err := auth.NewService(auth.ServiceParams{
		Users:          userSvc,
		SessionManager: sessions,
		JWTConfig:      cfg.JWT,
		AdminConfig:    config.AdminConfig{Email: "admin@coffee.com", Password: "admin123", Name: "Администратор"},
		AuthConfig:     config.AuthConfig{DefaultName: "Уважаемый Клиент"},
		PasswordConfig: config.PasswordConfig{ArgonMemoryKB: 64, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32},
		Logger:         logg,
	})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	return NewRouter(Deps{
		Config:    cfg,
		Logger:    logg,
		Sessions:  sessions,
		Redis:     newMemRedis(),
		Ready:     map[string]controllers.Pinger{"db": stubPinger{}},
		Gatherer:  reg,
		Metrics:   metrics.NewHTTPMetrics(reg),
		Auth:      authSvc,
		Users:     userSvc,
		Catalog:   catalogSvc,
		Cart:      cartSvc,
		Checkout:  checkoutSvc,
		Orders:    orderSvc,
		Reviews:   reviewSvc,
		Favorites: favoriteSvc,
	})
}

type call struct {
	method  string
	path    string
	body    any
	headers map[string]string
}

func do(t *testing.T, h http.Handler, c call) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	if c.body != nil {
		raw, err := json.Marshal(c.body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(c.method, c.path, reader)
	if c.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var payload map[string]any
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	}
	return rec, payload
}

func dataMap(t *testing.T, payload map[string]any) map[string]any {
	t.Helper()
	data, ok := payload["data"].(map[string]any)
	require.True(t, ok, "payload has no data object: %v", payload)
	return data
}

func login(t *testing.T, h http.Handler, path, email, password string) string {
	t.Helper()
	rec, payload := do(t, h, call{method: http.MethodPost, path: path, body: map[string]string{"email": email, "password": password}})
	require.Contains(t, []int{http.StatusOK, http.StatusCreated}, rec.Code, rec.Body.String())
	token, _ := dataMap(t, payload)["accessToken"].(string)
	require.NotEmpty(t, token)
	return token
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestRouter(t)

	rec, payload := do(t, h, call{method: http.MethodGet, path: "/health/live"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get("X-Coffeeshop-Env"))
	assert.Equal(t, "live", dataMap(t, payload)["status"])

	rec, _ = do(t, h, call{method: http.MethodGet, path: "/health/ready"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, h, call{method: http.MethodGet, path: "/metrics"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/health/live")
}

func TestProductRoutes(t *testing.T) {
	h := newTestRouter(t)

	rec, payload := do(t, h, call{method: http.MethodGet, path: "/api/products?category=coffee&sort=price-asc"})
	require.Equal(t, http.StatusOK, rec.Code)
	list, ok := payload["data"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, list)
	for _, item := range list {
		assert.Equal(t, "coffee", item.(map[string]any)["category"])
	}

	rec, payload = do(t, h, call{method: http.MethodGet, path: "/api/products/1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Эспрессо", dataMap(t, payload)["name"])

	rec, _ = do(t, h, call{method: http.MethodGet, path: "/api/products/does-not-exist"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, h, call{method: http.MethodGet, path: "/api/products?category=tea"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGuestCartCheckoutIsIdempotent(t *testing.T) {
	h := newTestRouter(t)
	guest := map[string]string{"X-Cart-Id": "guest-router-test"}

	rec, payload := do(t, h, call{method: http.MethodPost, path: "/api/cart/items", headers: guest, body: map[string]any{
		"productId":     "1",
		"quantity":      2,
		"customization": map[string]any{"size": "small"},
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "guest-router-test", rec.Header().Get("X-Cart-Id"))
	cartData := dataMap(t, payload)["cart"].(map[string]any)
	assert.EqualValues(t, 2, cartData["totalItems"])

	checkoutHeaders := map[string]string{"X-Cart-Id": "guest-router-test", "Idempotency-Key": "order-1"}
	body := map[string]any{
		"shipping":      map[string]string{"address": "ул. Ленина 1", "city": "Москва", "postalCode": "101000"},
		"paymentMethod": "card",
	}
	rec, payload = do(t, h, call{method: http.MethodPost, path: "/api/checkout", headers: checkoutHeaders, body: body})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := dataMap(t, payload)
	assert.Equal(t, "processing", order["status"])
	orderID := order["id"]

	rec, payload = do(t, h, call{method: http.MethodPost, path: "/api/checkout", headers: checkoutHeaders, body: body})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "true", rec.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, orderID, dataMap(t, payload)["id"])

	rec, payload = do(t, h, call{method: http.MethodGet, path: "/api/cart", headers: guest})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, dataMap(t, payload)["totalItems"])

	delete(checkoutHeaders, "Idempotency-Key")
	rec, _ = do(t, h, call{method: http.MethodPost, path: "/api/checkout", headers: checkoutHeaders, body: body})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCartRejectsOversizedQuantityAndUserShapedIDs(t *testing.T) {
	h := newTestRouter(t)
	guest := map[string]string{"X-Cart-Id": "guest-router-limits"}

	rec, _ := do(t, h, call{method: http.MethodPost, path: "/api/cart/items", headers: guest, body: map[string]any{
		"productId": "1",
		"quantity":  100,
	}})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec, _ = do(t, h, call{method: http.MethodGet, path: "/api/cart", headers: map[string]string{
		"X-Cart-Id": "3f2b6a1e-9c4d-4e7a-8b21-0d5f6c7e8a90",
	}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestShopperRoutesRequireAuth(t *testing.T) {
	h := newTestRouter(t)

	rec, _ := do(t, h, call{method: http.MethodGet, path: "/api/orders"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := login(t, h, "/api/auth/login", "anna@example.com", "secret")

	rec, payload := do(t, h, call{method: http.MethodGet, path: "/api/auth/me", headers: bearer(token)})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anna@example.com", dataMap(t, payload)["email"])

	rec, _ = do(t, h, call{method: http.MethodPost, path: "/api/favorites/2/toggle", headers: bearer(token)})
	require.Equal(t, http.StatusOK, rec.Code)
	rec, payload = do(t, h, call{method: http.MethodGet, path: "/api/favorites", headers: bearer(token)})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"2"}, dataMap(t, payload)["productIds"])

	rec, _ = do(t, h, call{method: http.MethodGet, path: "/api/admin/statistics", headers: bearer(token)})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = do(t, h, call{method: http.MethodPost, path: "/api/auth/logout", headers: bearer(token)})
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, h, call{method: http.MethodGet, path: "/api/auth/me", headers: bearer(token)})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoutes(t *testing.T) {
	h := newTestRouter(t)

	rec, _ := do(t, h, call{method: http.MethodGet, path: "/api/admin/statistics"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := login(t, h, "/api/auth/admin/login", "admin@coffee.com", "admin123")

	rec, payload := do(t, h, call{method: http.MethodGet, path: "/api/admin/statistics", headers: bearer(token)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, dataMap(t, payload), "totalOrders")

	rec, _ = do(t, h, call{method: http.MethodDelete, path: "/api/admin/products/1", headers: bearer(token)})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec, _ = do(t, h, call{method: http.MethodGet, path: "/api/products/1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
