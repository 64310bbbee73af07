package auth

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/coffeeshop-backend/internal/orders"
	"github.com/angelmondragon/coffeeshop-backend/internal/testdb"
	"github.com/angelmondragon/coffeeshop-backend/internal/users"
	pkgAuth "github.com/angelmondragon/coffeeshop-backend/pkg/auth"
	"github.com/angelmondragon/coffeeshop-backend/pkg/auth/session"
	"github.com/angelmondragon/coffeeshop-backend/pkg/config"
	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
	"github.com/angelmondragon/coffeeshop-backend/pkg/outbox"
)

type stubSessions struct {
	sessions map[string]string
	revoked  []string
}

func (s *stubSessions) Generate(_ context.Context, accessID string) (string, error) {
	token := "refresh-" + accessID
	s.sessions[accessID] = token
	return token, nil
}

func (s *stubSessions) Rotate(_ context.Context, oldAccessID, provided string) (string, string, error) {
	if s.sessions[oldAccessID] != provided || provided == "" {
		return "", "", session.ErrInvalidRefreshToken
	}
	delete(s.sessions, oldAccessID)
	next := session.NewAccessID()
	s.sessions[next] = "refresh-" + next
	return next, s.sessions[next], nil
}

func (s *stubSessions) Revoke(_ context.Context, accessID string) error {
	delete(s.sessions, accessID)
	s.revoked = append(s.revoked, accessID)
	return nil
}

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "coffeeshop", ExpirationMinutes: 30, SessionTTLMinutes: 120}

func newTestService(t *testing.T, latency time.Duration) (Service, *stubSessions) {
	t.Helper()
	client := testdb.Client(t)
	logg := logger.New(logger.Options{ServiceName: "auth-test", Output: io.Discard})
	userRepo := users.NewRepository(client.DB())
	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repo:   orders.NewRepository(client.DB()),
		Users:  userRepo,
		Tx:     client,
		Outbox: outbox.NewService(outbox.NewRepository(client.DB()), logg),
		Logger: logg,
	})
	require.NoError(t, err)
	userSvc, err := users.NewService(users.ServiceParams{Repo: userRepo, Orders: orderSvc, Logger: logg})
	require.NoError(t, err)

	sessions := &stubSessions{sessions: map[string]string{}}
	svc, err := NewService(ServiceParams{
		Users:          userSvc,
		SessionManager: sessions,
		JWTConfig:      testJWT,
		AdminConfig:    config.AdminConfig{Email: "admin@coffee.com", Password: "admin123", Name: "Администратор"},
		AuthConfig:     config.AuthConfig{Latency: latency, DefaultName: "Уважаемый Клиент"},
		PasswordConfig: config.PasswordConfig{ArgonMemoryKB: 64, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32},
		Logger:         logg,
	})
	require.NoError(t, err)
	return svc, sessions
}

func TestLoginCreatesUnknownUser(t *testing.T) {
	svc, sessions := newTestService(t, 0)
	ctx := context.Background()

	resp, err := svc.Login(ctx, LoginRequest{Email: "New@Example.com", Password: "anything"})
	require.NoError(t, err)
	assert.True(t, resp.Created)
	assert.Equal(t, "new@example.com", resp.User.Email)
	assert.Equal(t, "Уважаемый Клиент", resp.User.Name)
	assert.Equal(t, enums.UserRoleUser, resp.User.Role)

	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.Equal(t, resp.RefreshToken, sessions.sessions[claims.ID])

	again, err := svc.Login(ctx, LoginRequest{Email: "new@example.com", Password: "other"})
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, resp.User.ID, again.User.ID)
}

func TestRegisterAndDuplicate(t *testing.T) {
	svc, _ := newTestService(t, 0)
	ctx := context.Background()

	resp, err := svc.Register(ctx, RegisterRequest{Email: "anna@example.com", Password: "pw", Name: "Анна"})
	require.NoError(t, err)
	assert.Equal(t, "Анна", resp.User.Name)

	_, err = svc.Register(ctx, RegisterRequest{Email: "anna@example.com", Password: "pw", Name: "Анна"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestAdminLogin(t *testing.T) {
	svc, _ := newTestService(t, 0)
	ctx := context.Background()

	_, err := svc.AdminLogin(ctx, LoginRequest{Email: "admin@coffee.com", Password: "wrong"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	_, err = svc.AdminLogin(ctx, LoginRequest{Email: "someone@coffee.com", Password: "admin123"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	resp, err := svc.AdminLogin(ctx, LoginRequest{Email: " ADMIN@coffee.com ", Password: "admin123"})
	require.NoError(t, err)
	assert.Equal(t, enums.UserRoleAdmin, resp.User.Role)

	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, enums.UserRoleAdmin, claims.Role)

	_, err = svc.Login(ctx, LoginRequest{Email: "admin@coffee.com"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestLatencyHonoursCancellation(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := svc.Login(ctx, LoginRequest{Email: "slow@example.com"})
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRefreshAndLogout(t *testing.T) {
	svc, sessions := newTestService(t, 0)
	ctx := context.Background()

	resp, err := svc.Login(ctx, LoginRequest{Email: "u1@example.com"})
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, RefreshRequest{AccessToken: resp.AccessToken, RefreshToken: "bogus"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	pair, err := svc.Refresh(ctx, RefreshRequest{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken})
	require.NoError(t, err)
	claims, err := pkgAuth.ParseAccessToken(testJWT, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.Equal(t, pair.RefreshToken, sessions.sessions[claims.ID])

	require.NoError(t, svc.Logout(ctx, claims.ID))
	assert.Contains(t, sessions.revoked, claims.ID)
	assert.NotContains(t, sessions.sessions, claims.ID)

	_, err = svc.Refresh(ctx, RefreshRequest{AccessToken: "garbage", RefreshToken: pair.RefreshToken})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestMeReturnsProfile(t *testing.T) {
	svc, _ := newTestService(t, 0)
	ctx := context.Background()

	resp, err := svc.Login(ctx, LoginRequest{Email: "me@example.com"})
	require.NoError(t, err)

	profile, err := svc.Me(ctx, resp.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", profile.Email)
	assert.Empty(t, profile.Orders)
}
