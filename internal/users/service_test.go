package users

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/coffeeshop-backend/internal/orders"
	"github.com/angelmondragon/coffeeshop-backend/internal/testdb"
	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
	"github.com/angelmondragon/coffeeshop-backend/pkg/outbox"
	"github.com/angelmondragon/coffeeshop-backend/pkg/types"
)

type fixture struct {
	users  Service
	orders orders.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client := testdb.Client(t)
	logg := logger.New(logger.Options{ServiceName: "users-test", Output: io.Discard})
	repo := NewRepository(client.DB())
	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repo:   orders.NewRepository(client.DB()),
		Users:  repo,
		Tx:     client,
		Outbox: outbox.NewService(outbox.NewRepository(client.DB()), logg),
		Logger: logg,
	})
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{Repo: repo, Orders: orderSvc, Logger: logg})
	require.NoError(t, err)
	return fixture{users: svc, orders: orderSvc}
}

func TestFindOrCreateNormalizesEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, created, err := f.users.FindOrCreate(ctx, "  Guest@Example.COM ", "Уважаемый Клиент")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "guest@example.com", user.Email)
	assert.Equal(t, enums.UserRoleUser, user.Role)

	again, created, err := f.users.FindOrCreate(ctx, "guest@example.com", "Другое имя")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, user.ID, again.ID)
	assert.Equal(t, "Уважаемый Клиент", again.Name)

	_, _, err = f.users.FindOrCreate(ctx, "not-an-email", "x")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.users.Register(ctx, "anna@example.com", " Анна ")
	require.NoError(t, err)
	assert.Equal(t, "Анна", user.Name)

	_, err = f.users.Register(ctx, "ANNA@example.com", "Анна 2")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	_, err = f.users.Register(ctx, "oleg@example.com", "  ")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestEnsureAdminPromotesExistingUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	existing, _, err := f.users.FindOrCreate(ctx, "admin@coffee.com", "Уважаемый Клиент")
	require.NoError(t, err)

	admin, err := f.users.EnsureAdmin(ctx, "admin@coffee.com", "Администратор")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, admin.ID)
	assert.Equal(t, enums.UserRoleAdmin, admin.Role)

	loaded, err := f.users.Get(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.UserRoleAdmin, loaded.Role)
	assert.Equal(t, "Администратор", loaded.Name)
}

func TestProfileShowsLiveOrderStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.users.Register(ctx, "u1@example.com", "Покупатель")
	require.NoError(t, err)
	require.NoError(t, f.users.RecordLogin(ctx, user))

	order, err := f.orders.AddOrder(ctx, orders.CreateOrderInput{
		UserID: &user.ID,
		Items: []orders.ItemInput{{
			Product:    types.ProductSnapshot{ID: "1", Name: "Эспрессо", Price: decimal.NewFromInt(120)},
			Quantity:   1,
			TotalPrice: decimal.NewFromInt(120),
		}},
		Status:        enums.OrderStatusProcessing,
		Shipping:      types.ShippingAddress{Address: "ул. Мира 5", City: "Казань", PostalCode: "420000"},
		PaymentMethod: enums.PaymentMethodPayPal,
	})
	require.NoError(t, err)

	_, err = f.orders.UpdateOrderStatus(ctx, order.ID, enums.OrderStatusShipped)
	require.NoError(t, err)

	profile, err := f.users.Profile(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, profile.Orders, 1)
	assert.Equal(t, enums.OrderStatusShipped, profile.Orders[0].Status)
	assert.NotNil(t, profile.LastLoginAt)

	listed, err := f.users.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Len(t, listed[0].Orders, 1)
	assert.Equal(t, enums.OrderStatusShipped, listed[0].Orders[0].Status)
}

func TestGetUnknownUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.users.Get(context.Background(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
