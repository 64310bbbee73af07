package catalog

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/coffeeshop-backend/internal/testdb"
	"github.com/angelmondragon/coffeeshop-backend/pkg/db/models"
	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
	"github.com/angelmondragon/coffeeshop-backend/pkg/outbox"
	"github.com/angelmondragon/coffeeshop-backend/pkg/types"
)

type stubRatings struct {
	stats map[string]types.RatingSummary
}

func (s stubRatings) Stats(_ context.Context, ids []string) (map[string]types.RatingSummary, error) {
	out := map[string]types.RatingSummary{}
	for _, id := range ids {
		if stat, ok := s.stats[id]; ok {
			out[id] = stat
		}
	}
	return out, nil
}

type recordingListener struct {
	changes []ProductChange
}

func (r *recordingListener) OnProductChanged(_ context.Context, change ProductChange) error {
	r.changes = append(r.changes, change)
	return nil
}

type fixture struct {
	svc      Service
	repo     *Repository
	listener *recordingListener
	outbox   *outbox.Repository
}

func newFixture(t *testing.T, ratings map[string]types.RatingSummary) fixture {
	t.Helper()
	client := testdb.Client(t)
	logg := logger.New(logger.Options{ServiceName: "catalog-test", Output: io.Discard})
	repo := NewRepository(client.DB())
	outboxRepo := outbox.NewRepository(client.DB())
	svc, err := NewService(repo, client, stubRatings{stats: ratings}, outbox.NewService(outboxRepo, logg), logg)
	require.NoError(t, err)
	listener := &recordingListener{}
	svc.Subscribe(listener)
	return fixture{svc: svc, repo: repo, listener: listener, outbox: outboxRepo}
}

func espressoInput() ProductInput {
	return ProductInput{
		Name:         "Espresso Doppio",
		Price:        decimal.NewFromInt(120),
		Category:     enums.ProductCategoryCoffee,
		Customizable: true,
		InStock:      true,
		Tags:         []string{"popular", " "},
		Variations: []types.Variation{
			{Size: enums.ProductSizeLarge, Price: decimal.NewFromInt(180)},
			{Size: enums.ProductSizeMedium, Price: decimal.NewFromInt(150)},
		},
	}
}

func TestAddProductGeneratesSlugIDAndNotifies(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	created, err := f.svc.AddProduct(ctx, espressoInput())
	require.NoError(t, err)
	require.Regexp(t, `^espresso-doppio-[0-9a-z]{6}$`, created.ID)
	require.Equal(t, []string{"popular"}, created.Tags)
	require.Len(t, created.Variations, 2)
	require.Equal(t, enums.ProductSizeMedium, created.Variations[0].Size)

	require.Len(t, f.listener.changes, 1)
	require.Equal(t, enums.EventProductCreated, f.listener.changes[0].Event)

	pending, err := f.outbox.PendingCount(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, pending)
}

func TestAddProductRejectsDuplicateNameCaseInsensitive(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	input := espressoInput()
	input.Name = "Латте"
	_, err := f.svc.AddProduct(ctx, input)
	require.NoError(t, err)

	input.Name = "  ЛАТТЕ "
	_, err = f.svc.AddProduct(ctx, input)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)

	count, err := f.repo.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.Len(t, f.listener.changes, 1)
}

func TestAddProductValidation(t *testing.T) {
	f := newFixture(t, nil)
	cases := map[string]func(*ProductInput){
		"blank name":        func(in *ProductInput) { in.Name = " " },
		"bad category":      func(in *ProductInput) { in.Category = "tea" },
		"negative price":    func(in *ProductInput) { in.Price = decimal.NewFromInt(-1) },
		"duplicate size":    func(in *ProductInput) { in.Variations = append(in.Variations, in.Variations[0]) },
		"unknown size":      func(in *ProductInput) { in.Variations[0].Size = "xl" },
		"negative calories": func(in *ProductInput) { in.Calories.Fat = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			input := espressoInput()
			mutate(&input)
			_, err := f.svc.AddProduct(context.Background(), input)
			require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}
}

func TestUpdateProductReplacesFieldsAndVariations(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	created, err := f.svc.AddProduct(ctx, espressoInput())
	require.NoError(t, err)

	input := espressoInput()
	input.Price = decimal.NewFromInt(130)
	input.InStock = false
	input.Variations = []types.Variation{{Size: enums.ProductSizeMedium, Price: decimal.NewFromInt(170)}}
	updated, err := f.svc.UpdateProduct(ctx, created.ID, input)
	require.NoError(t, err)
	require.True(t, updated.Price.Equal(decimal.NewFromInt(130)))
	require.False(t, updated.InStock)

	stored, err := f.repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.False(t, stored.InStock)
	require.Len(t, stored.Variations, 1)
	require.True(t, stored.Variations[0].Price.Equal(decimal.NewFromInt(170)))

	require.Len(t, f.listener.changes, 2)
	require.Equal(t, enums.EventProductUpdated, f.listener.changes[1].Event)
	require.NotNil(t, f.listener.changes[1].Product)
}

func TestUpdateProductKeepsOwnNameAndRejectsOthers(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first, err := f.svc.AddProduct(ctx, espressoInput())
	require.NoError(t, err)
	other := espressoInput()
	other.Name = "Flat White"
	second, err := f.svc.AddProduct(ctx, other)
	require.NoError(t, err)

	_, err = f.svc.UpdateProduct(ctx, first.ID, espressoInput())
	require.NoError(t, err)

	clash := espressoInput()
	clash.Name = "flat white"
	_, err = f.svc.UpdateProduct(ctx, first.ID, clash)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	stored, err := f.repo.FindByID(ctx, second.ID)
	require.NoError(t, err)
	require.Equal(t, "Flat White", stored.Name)

	_, err = f.svc.UpdateProduct(ctx, "missing", espressoInput())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestDeleteProduct(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	created, err := f.svc.AddProduct(ctx, espressoInput())
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteProduct(ctx, created.ID))
	_, err = f.svc.GetProduct(ctx, created.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	err = f.svc.DeleteProduct(ctx, created.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	last := f.listener.changes[len(f.listener.changes)-1]
	require.Equal(t, enums.EventProductDeleted, last.Event)
	require.Nil(t, last.Product)
}

func TestSeedListAndSearch(t *testing.T) {
	f := newFixture(t, map[string]types.RatingSummary{"7": {Rating: 4.5, ReviewCount: 2}})
	ctx := context.Background()

	n, err := f.svc.SeedIfEmpty(ctx)
	require.NoError(t, err)
	require.Equal(t, 10, n)
	n, err = f.svc.SeedIfEmpty(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	all, err := f.svc.ListProducts(ctx, ListQuery{})
	require.NoError(t, err)
	require.Len(t, all, 10)
	require.Equal(t, "10", all[0].ID, "newest first")

	sweets := enums.ProductCategorySweets
	list, err := f.svc.ListProducts(ctx, ListQuery{Category: &sweets, Sort: enums.ProductSortPriceDesc})
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "7", list[0].ID)
	require.Equal(t, 4.5, list[0].Rating)
	require.Equal(t, 2, list[0].ReviewCount)
	require.Zero(t, list[1].ReviewCount)

	list, err = f.svc.ListProducts(ctx, ListQuery{Search: "ТИРАМИСУ"})
	require.NoError(t, err)
	require.Len(t, list, 1)

	list, err = f.svc.ListProducts(ctx, ListQuery{Search: "new", Sort: enums.ProductSortPriceAsc})
	require.NoError(t, err)
	require.NotEmpty(t, list)
	for i := 1; i < len(list); i++ {
		require.True(t, list[i-1].Price.LessThanOrEqual(list[i].Price))
	}

	_, err = f.svc.ListProducts(ctx, ListQuery{Sort: "cheapest"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestListByIDsKeepsOrderAndSkipsUnknown(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.svc.SeedIfEmpty(ctx)
	require.NoError(t, err)

	list, err := f.svc.ListByIDs(ctx, []string{"3", "missing", "1", "3"})
	require.NoError(t, err)
	ids := make([]string, 0, len(list))
	for _, p := range list {
		ids = append(ids, p.ID)
	}
	require.Equal(t, []string{"3", "1", "3"}, ids)
}

func TestListenerErrorsAreNotSurfaced(t *testing.T) {
	f := newFixture(t, nil)
	f.svc.Subscribe(ProductListenerFunc(func(context.Context, ProductChange) error {
		return pkgerrors.New(pkgerrors.CodeInternal, "listener down")
	}))
	_, err := f.svc.AddProduct(context.Background(), espressoInput())
	require.NoError(t, err)
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Espresso Doppio":              "espresso-doppio",
		"Кружка \"Coffee & Delights\"": "kruzhka-coffee-delights",
		"Crème brûlée":                 "creme-brulee",
		"!!!":                          "product",
		"Подъезд":                      "podezd",
	}
	for in, want := range cases {
		require.Equal(t, want, slugify(in), in)
	}
	require.LessOrEqual(t, len(slugify(strings.Repeat("long name ", 20))), maxSlugLen)
}

func TestSnapshotCarriesVariations(t *testing.T) {
	p := models.Product{ID: "1", Name: "Espresso", Price: decimal.NewFromInt(120), Variations: []models.ProductVariation{
		{ProductID: "1", Size: enums.ProductSizeMedium, Price: decimal.NewFromInt(150)},
	}}
	snap := p.Snapshot()
	v, ok := snap.VariationFor(enums.ProductSizeMedium)
	require.True(t, ok)
	require.True(t, v.Price.Equal(decimal.NewFromInt(150)))
}
