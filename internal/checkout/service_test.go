package checkout

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/coffeeshop-backend/internal/cart"
	"github.com/angelmondragon/coffeeshop-backend/internal/catalog"
	"github.com/angelmondragon/coffeeshop-backend/internal/orders"
	"github.com/angelmondragon/coffeeshop-backend/internal/testdb"
	"github.com/angelmondragon/coffeeshop-backend/pkg/db/models"
	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
	"github.com/angelmondragon/coffeeshop-backend/pkg/kv"
	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
	"github.com/angelmondragon/coffeeshop-backend/pkg/outbox"
	"github.com/angelmondragon/coffeeshop-backend/pkg/types"
)

type noRatings struct{}

func (noRatings) Stats(context.Context, []string) (map[string]types.RatingSummary, error) {
	return map[string]types.RatingSummary{}, nil
}

type noUsers struct{}

func (noUsers) ListAll(context.Context) ([]models.User, error) { return nil, nil }

type fixture struct {
	checkout Service
	cart     cart.Service
	orders   orders.Service
	gateway  *MockGateway
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client := testdb.Client(t)
	logg := logger.New(logger.Options{ServiceName: "checkout-test", Output: io.Discard})
	events := outbox.NewService(outbox.NewRepository(client.DB()), logg)

	catalogSvc, err := catalog.NewService(catalog.NewRepository(client.DB()), client, noRatings{}, events, logg)
	require.NoError(t, err)
	_, err = catalogSvc.SeedIfEmpty(context.Background())
	require.NoError(t, err)

	backend, err := kv.NewGormStore(client.DB())
	require.NoError(t, err)
	store, err := cart.NewStore(backend, logg)
	require.NoError(t, err)
	cartSvc, err := cart.NewService(cart.ServiceParams{Store: store, Catalog: catalogSvc, Locker: cart.NewLocalLocker(), Logger: logg})
	require.NoError(t, err)

	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repo:   orders.NewRepository(client.DB()),
		Users:  noUsers{},
		Tx:     client,
		Outbox: events,
		Logger: logg,
	})
	require.NoError(t, err)

	gateway := NewMockGateway(0, false)
	gateway.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	svc, err := NewService(ServiceParams{
		Cart:           cartSvc,
		Orders:         orderSvc,
		Gateway:        gateway,
		DefaultCountry: "Россия",
		Logger:         logg,
	})
	require.NoError(t, err)
	return fixture{checkout: svc, cart: cartSvc, orders: orderSvc, gateway: gateway}
}

func validInput() CheckoutInput {
	return CheckoutInput{
		Shipping:      types.ShippingAddress{Address: " ул. Ленина 1 ", City: "Москва", PostalCode: "101000"},
		PaymentMethod: enums.PaymentMethodCard,
	}
}

func TestCheckoutCreatesProcessingOrderAndClearsCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	owner := userID.String()

	_, err := f.cart.AddToCart(ctx, owner, cart.AddItemInput{
		ProductID:     "1",
		Quantity:      2,
		Customization: types.Customization{Size: enums.ProductSizeMedium},
	})
	require.NoError(t, err)
	before, err := f.cart.GetCart(ctx, owner)
	require.NoError(t, err)

	order, err := f.checkout.Checkout(ctx, owner, &userID, validInput())
	require.NoError(t, err)
	assert.Regexp(t, `^order-\d+-[0-9a-z]+$`, order.ID)
	assert.Equal(t, enums.OrderStatusProcessing, order.Status)
	assert.Equal(t, "TR-1717243200000", order.Payment.TransactionID)
	assert.Equal(t, "Россия", order.Shipping.Country)
	assert.Equal(t, "ул. Ленина 1", order.Shipping.Address)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.True(t, order.TotalPrice.Equal(before.TotalPrice))

	after, err := f.cart.GetCart(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, after.Items)
	assert.True(t, after.TotalPrice.Equal(decimal.Zero))

	mine, err := f.orders.GetUserOrders(ctx, userID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, order.ID, mine[0].ID)
	assert.Equal(t, enums.OrderStatusProcessing, mine[0].Status)
}

func TestCheckoutGuestKeepsCountryOverride(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.cart.AddToCart(ctx, "guest-1", cart.AddItemInput{ProductID: "1", Quantity: 1})
	require.NoError(t, err)

	input := validInput()
	input.Shipping.Country = "Беларусь"
	order, err := f.checkout.Checkout(ctx, "guest-1", nil, input)
	require.NoError(t, err)
	assert.Nil(t, order.UserID)
	assert.Equal(t, "Беларусь", order.Shipping.Country)
}

func TestCheckoutPaymentFailureLeavesCart(t *testing.T) {
	f := newFixture(t)
	f.gateway.fail = true
	ctx := context.Background()
	userID := uuid.New()
	owner := userID.String()
	_, err := f.cart.AddToCart(ctx, owner, cart.AddItemInput{ProductID: "1", Quantity: 1})
	require.NoError(t, err)

	_, err = f.checkout.Checkout(ctx, owner, &userID, validInput())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	current, err := f.cart.GetCart(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, current.Items, 1)

	mine, err := f.orders.GetUserOrders(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, mine)
}

type addDuringChargeGateway struct {
	inner   PaymentGateway
	cart    cart.Service
	owner   string
	added   chan error
	blocked bool
}

func (g *addDuringChargeGateway) Charge(ctx context.Context, req PaymentRequest) (*PaymentResult, error) {
	go func() {
		_, err := g.cart.AddToCart(context.Background(), g.owner, cart.AddItemInput{ProductID: "2", Quantity: 1})
		g.added <- err
	}()
	select {
	case err := <-g.added:
		g.added <- err
	case <-time.After(50 * time.Millisecond):
		g.blocked = true
	}
	return g.inner.Charge(ctx, req)
}

func TestCheckoutKeepsLinesAddedDuringPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	owner := userID.String()
	_, err := f.cart.AddToCart(ctx, owner, cart.AddItemInput{ProductID: "1", Quantity: 1})
	require.NoError(t, err)

	gateway := &addDuringChargeGateway{inner: f.gateway, cart: f.cart, owner: owner, added: make(chan error, 1)}
	svc, err := NewService(ServiceParams{
		Cart:    f.cart,
		Orders:  f.orders,
		Gateway: gateway,
		Logger:  logger.New(logger.Options{ServiceName: "checkout-test", Output: io.Discard}),
	})
	require.NoError(t, err)

	order, err := svc.Checkout(ctx, owner, &userID, validInput())
	require.NoError(t, err)
	require.NoError(t, <-gateway.added)
	assert.True(t, gateway.blocked, "cart write should wait for checkout")

	require.Len(t, order.Items, 1)
	assert.Equal(t, "1", order.Items[0].Product.ID)

	current, err := f.cart.GetCart(ctx, owner)
	require.NoError(t, err)
	require.Len(t, current.Items, 1)
	assert.Equal(t, "2", current.Items[0].Product.ID)
}

func TestCheckoutValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.checkout.Checkout(ctx, "u1", nil, validInput())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "empty cart")

	_, err = f.cart.AddToCart(ctx, "u1", cart.AddItemInput{ProductID: "1", Quantity: 1})
	require.NoError(t, err)

	missing := validInput()
	missing.Shipping.City = "  "
	_, err = f.checkout.Checkout(ctx, "u1", nil, missing)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	badMethod := validInput()
	badMethod.PaymentMethod = "cash"
	_, err = f.checkout.Checkout(ctx, "u1", nil, badMethod)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestMockGatewayHonoursCancellation(t *testing.T) {
	gateway := NewMockGateway(time.Minute, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := gateway.Charge(ctx, PaymentRequest{Amount: decimal.NewFromInt(10), Method: enums.PaymentMethodCard})
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewServiceRequiresDeps(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}
