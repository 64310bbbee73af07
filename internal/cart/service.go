package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/coffeeshop-backend/internal/catalog"
	"github.com/angelmondragon/coffeeshop-backend/pkg/db/models"
	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
	"github.com/angelmondragon/coffeeshop-backend/pkg/metrics"
	"github.com/angelmondragon/coffeeshop-backend/pkg/types"
)

// MaxLineQuantity caps the quantity of a single cart line.
const MaxLineQuantity = 99

func errQuantityTooLarge() error {
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity must not exceed %d", MaxLineQuantity))
}

// ProductSource resolves current catalog products by id.
type ProductSource interface {
	LookupMany(ctx context.Context, ids []string) (map[string]models.Product, error)
}

// AddItemInput describes a line to add.
type AddItemInput struct {
	ProductID     string
	Quantity      int
	Customization types.Customization
}

// CartDTO is the priced view of a cart. Totals are always derived from lines.
type CartDTO struct {
	Items      []Line          `json:"items"`
	TotalItems int             `json:"totalItems"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

// Message is the confirmation shown to the shopper after a mutation.
type Message struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// MutationResult pairs the updated cart with its confirmation.
type MutationResult struct {
	Cart    *CartDTO `json:"cart"`
	Message Message  `json:"message"`
}

// Service exposes the cart engine.
type Service interface {
	GetCart(ctx context.Context, owner string) (*CartDTO, error)
	AddToCart(ctx context.Context, owner string, input AddItemInput) (*MutationResult, error)
	UpdateQuantity(ctx context.Context, owner string, index, quantity int) (*CartDTO, error)
	UpdateCustomization(ctx context.Context, owner string, index int, customization types.Customization) (*CartDTO, error)
	RemoveFromCart(ctx context.Context, owner string, index int) (*MutationResult, error)
	ClearCart(ctx context.Context, owner string) (*MutationResult, error)
	Drain(ctx context.Context, owner string, fn func(*CartDTO) error) error
	RepriceAll(ctx context.Context) (int, error)
	catalog.ProductListener
}

// ServiceParams groups dependencies for the cart service.
type ServiceParams struct {
	Store   *Store
	Catalog ProductSource
	Locker  Locker
	Metrics *metrics.ShopMetrics
	Logger  *logger.Logger
}

type service struct {
	store   *Store
	catalog ProductSource
	locker  Locker
	metrics *metrics.ShopMetrics
	logg    *logger.Logger
}

// NewService builds the cart service.
func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("product source required")
	}
	if params.Locker == nil {
		return nil, fmt.Errorf("cart locker required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		store:   params.Store,
		catalog: params.Catalog,
		locker:  params.Locker,
		metrics: params.Metrics,
		logg:    params.Logger,
	}, nil
}

func (s *service) GetCart(ctx context.Context, owner string) (*CartDTO, error) {
	if err := validateOwner(owner); err != nil {
		return nil, err
	}
	lines, err := s.load(ctx, owner)
	if err != nil {
		return nil, err
	}
	lines, err = s.reprice(ctx, lines)
	if err != nil {
		return nil, err
	}
	return buildView(lines), nil
}

// AddToCart merges into an existing line with the same product and
// customization, or appends a new one. Quantities below one count as one.
func (s *service) AddToCart(ctx context.Context, owner string, input AddItemInput) (*MutationResult, error) {
	if err := validateOwner(owner); err != nil {
		return nil, err
	}
	productID := strings.TrimSpace(input.ProductID)
	if productID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if err := ValidateCustomization(input.Customization); err != nil {
		return nil, err
	}
	quantity := input.Quantity
	if quantity < 1 {
		quantity = 1
	}
	if quantity > MaxLineQuantity {
		return nil, errQuantityTooLarge()
	}
	customization := input.Customization.Normalize()

	var msg Message
	view, err := s.mutate(ctx, owner, func(lines []Line) ([]Line, error) {
		products, err := s.catalog.LookupMany(ctx, []string{productID})
		if err != nil {
			return nil, err
		}
		product, ok := products[productID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		snapshot := product.Snapshot()

		for i := range lines {
			if lines[i].Product.ID == productID && lines[i].Customization.Equal(customization) {
				if lines[i].Quantity > MaxLineQuantity-quantity {
					return nil, errQuantityTooLarge()
				}
				lines[i].Product = snapshot
				lines[i].Quantity += quantity
				lines[i].TotalPrice = CalculateItemPrice(snapshot, lines[i].Quantity, lines[i].Customization)
				msg = Message{
					Title:       "Товар обновлен",
					Description: fmt.Sprintf("%s (%d) добавлен в корзину", snapshot.Name, quantity),
				}
				return lines, nil
			}
		}
		msg = Message{Title: "Товар добавлен", Description: fmt.Sprintf("%s добавлен в корзину", snapshot.Name)}
		return append(lines, Line{
			Product:       snapshot,
			Quantity:      quantity,
			Customization: customization,
			TotalPrice:    CalculateItemPrice(snapshot, quantity, customization),
		}), nil
	})
	if err != nil {
		return nil, err
	}
	return &MutationResult{Cart: view, Message: msg}, nil
}

// UpdateQuantity ignores quantities below one.
func (s *service) UpdateQuantity(ctx context.Context, owner string, index, quantity int) (*CartDTO, error) {
	if err := validateOwner(owner); err != nil {
		return nil, err
	}
	if quantity > MaxLineQuantity {
		return nil, errQuantityTooLarge()
	}
	return s.mutate(ctx, owner, func(lines []Line) ([]Line, error) {
		if err := checkIndex(lines, index); err != nil {
			return nil, err
		}
		if quantity < 1 {
			return lines, nil
		}
		lines[index].Quantity = quantity
		lines[index].TotalPrice = CalculateItemPrice(lines[index].Product, quantity, lines[index].Customization)
		return lines, nil
	})
}

// UpdateCustomization replaces a line's customization without merging it
// into an identical line.
func (s *service) UpdateCustomization(ctx context.Context, owner string, index int, customization types.Customization) (*CartDTO, error) {
	if err := validateOwner(owner); err != nil {
		return nil, err
	}
	if err := ValidateCustomization(customization); err != nil {
		return nil, err
	}
	customization = customization.Normalize()
	return s.mutate(ctx, owner, func(lines []Line) ([]Line, error) {
		if err := checkIndex(lines, index); err != nil {
			return nil, err
		}
		lines[index].Customization = customization
		lines[index].TotalPrice = CalculateItemPrice(lines[index].Product, lines[index].Quantity, customization)
		return lines, nil
	})
}

func (s *service) RemoveFromCart(ctx context.Context, owner string, index int) (*MutationResult, error) {
	if err := validateOwner(owner); err != nil {
		return nil, err
	}
	var msg Message
	view, err := s.mutate(ctx, owner, func(lines []Line) ([]Line, error) {
		if err := checkIndex(lines, index); err != nil {
			return nil, err
		}
		msg = Message{Title: "Товар удален", Description: fmt.Sprintf("%s удален из корзины", lines[index].Product.Name)}
		return append(lines[:index], lines[index+1:]...), nil
	})
	if err != nil {
		return nil, err
	}
	return &MutationResult{Cart: view, Message: msg}, nil
}

func (s *service) ClearCart(ctx context.Context, owner string) (*MutationResult, error) {
	if err := validateOwner(owner); err != nil {
		return nil, err
	}
	unlock, err := s.lock(ctx, owner)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := s.store.Save(ctx, owner, nil); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "kv: clear cart")
	}
	return &MutationResult{
		Cart:    buildView(nil),
		Message: Message{Title: "Корзина очищена", Description: "Все товары удалены из корзины"},
	}, nil
}

// ErrNotCleared reports that Drain's callback succeeded but the cart could
// not be emptied afterwards.
var ErrNotCleared = errors.New("cart not cleared")

// Drain holds the owner lock while fn consumes the current cart, then empties
// it when fn succeeds. Writes for the owner wait until Drain returns, so a line
// added while fn runs is never discarded unseen.
func (s *service) Drain(ctx context.Context, owner string, fn func(*CartDTO) error) error {
	if err := validateOwner(owner); err != nil {
		return err
	}
	unlock, err := s.lock(ctx, owner)
	if err != nil {
		return err
	}
	defer unlock()

	lines, err := s.load(ctx, owner)
	if err != nil {
		return err
	}
	lines, err = s.reprice(ctx, lines)
	if err != nil {
		return err
	}
	if err := fn(buildView(lines)); err != nil {
		return err
	}
	if err := s.store.Save(ctx, owner, nil); err != nil {
		return fmt.Errorf("%w: %v", ErrNotCleared, err)
	}
	return nil
}

// OnProductChanged reprices stored carts after a catalog mutation. Deleted
// products leave lines on their last snapshot, so deletes need no pass.
func (s *service) OnProductChanged(ctx context.Context, change catalog.ProductChange) error {
	if change.Event == enums.EventProductDeleted {
		return nil
	}
	_, err := s.RepriceAll(ctx)
	return err
}

// RepriceAll rewrites every stored cart whose lines are stale against the
// catalog and returns how many carts changed.
func (s *service) RepriceAll(ctx context.Context) (int, error) {
	owners, err := s.store.Owners(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "kv: list carts")
	}
	changed := 0
	for _, owner := range owners {
		if err := ctx.Err(); err != nil {
			return changed, err
		}
		updated, err := s.repriceOwner(ctx, owner)
		if err != nil {
			s.logg.Error(s.logg.WithCartOwner(ctx, owner), "cart reprice failed", err)
			continue
		}
		if updated {
			changed++
		}
	}
	s.metrics.AddCartsRepriced(changed)
	if changed > 0 {
		s.logg.Info(s.logg.WithField(ctx, "carts", changed), "carts repriced")
	}
	return changed, nil
}

func (s *service) repriceOwner(ctx context.Context, owner string) (bool, error) {
	unlock, err := s.lock(ctx, owner)
	if err != nil {
		return false, err
	}
	defer unlock()

	lines, err := s.load(ctx, owner)
	if err != nil {
		return false, err
	}
	before, err := json.Marshal(lines)
	if err != nil {
		return false, err
	}
	lines, err = s.reprice(ctx, lines)
	if err != nil {
		return false, err
	}
	after, err := json.Marshal(lines)
	if err != nil {
		return false, err
	}
	if string(before) == string(after) {
		return false, nil
	}
	if err := s.store.Save(ctx, owner, lines); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "kv: save cart")
	}
	return true, nil
}

// mutate runs fn on the repriced lines under the owner's lock and persists
// the result.
func (s *service) mutate(ctx context.Context, owner string, fn func([]Line) ([]Line, error)) (*CartDTO, error) {
	unlock, err := s.lock(ctx, owner)
	if err != nil {
		return nil, err
	}
	defer unlock()

	lines, err := s.load(ctx, owner)
	if err != nil {
		return nil, err
	}
	lines, err = s.reprice(ctx, lines)
	if err != nil {
		return nil, err
	}
	lines, err = fn(lines)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, owner, lines); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "kv: save cart")
	}
	return buildView(lines), nil
}

func (s *service) lock(ctx context.Context, owner string) (func(), error) {
	unlock, err := s.locker.Lock(ctx, owner)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cart is busy, try again")
	}
	return unlock, nil
}

func (s *service) load(ctx context.Context, owner string) ([]Line, error) {
	lines, err := s.store.Load(ctx, owner)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "kv: load cart")
	}
	return lines, nil
}

// reprice refreshes snapshots and totals from the live catalog. Lines whose
// product no longer exists keep their snapshot.
func (s *service) reprice(ctx context.Context, lines []Line) ([]Line, error) {
	if len(lines) == 0 {
		return lines, nil
	}
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.Product.ID)
	}
	products, err := s.catalog.LookupMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range lines {
		if product, ok := products[lines[i].Product.ID]; ok {
			lines[i].Product = product.Snapshot()
		}
		lines[i].TotalPrice = CalculateItemPrice(lines[i].Product, lines[i].Quantity, lines[i].Customization)
	}
	return lines, nil
}

func buildView(lines []Line) *CartDTO {
	view := &CartDTO{Items: lines, TotalPrice: decimal.Zero}
	if view.Items == nil {
		view.Items = []Line{}
	}
	for _, line := range lines {
		view.TotalItems += line.Quantity
		view.TotalPrice = view.TotalPrice.Add(line.TotalPrice)
	}
	return view
}

func validateOwner(owner string) error {
	if strings.TrimSpace(owner) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart owner is required")
	}
	return nil
}

func checkIndex(lines []Line, index int) error {
	if index < 0 || index >= len(lines) {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "cart line %d not found", index)
	}
	return nil
}
