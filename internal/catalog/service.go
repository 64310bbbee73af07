package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gorm.io/gorm"

	"github.com/angelmondragon/coffeeshop-backend/pkg/db"
	"github.com/angelmondragon/coffeeshop-backend/pkg/db/models"
	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
	"github.com/angelmondragon/coffeeshop-backend/pkg/outbox"
	"github.com/angelmondragon/coffeeshop-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/coffeeshop-backend/pkg/security"
	"github.com/angelmondragon/coffeeshop-backend/pkg/types"
)

const productIDSuffixLen = 6

// Service exposes catalog reads and admin mutations.
type Service interface {
	AddProduct(ctx context.Context, input ProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, id string, input ProductInput) (*ProductDTO, error)
	DeleteProduct(ctx context.Context, id string) error
	GetProduct(ctx context.Context, id string) (*ProductDTO, error)
	ListProducts(ctx context.Context, query ListQuery) ([]ProductDTO, error)
	ListByIDs(ctx context.Context, ids []string) ([]ProductDTO, error)
	Lookup(ctx context.Context, id string) (*models.Product, error)
	LookupMany(ctx context.Context, ids []string) (map[string]models.Product, error)
	SeedIfEmpty(ctx context.Context) (int, error)
	Subscribe(listener ProductListener)
}

// RatingReader supplies the live review aggregate per product.
type RatingReader interface {
	Stats(ctx context.Context, productIDs []string) (map[string]types.RatingSummary, error)
}

type service struct {
	repo    *Repository
	db      *db.Client
	ratings RatingReader
	outbox  outbox.Emitter
	logg    *logger.Logger

	mu        sync.RWMutex
	listeners []ProductListener
}

// NewService constructs the catalog service.
func NewService(repo *Repository, dbClient *db.Client, ratings RatingReader, emitter outbox.Emitter, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if ratings == nil {
		return nil, fmt.Errorf("rating reader required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:    repo,
		db:      dbClient,
		ratings: ratings,
		outbox:  emitter,
		logg:    logg,
	}, nil
}

// Subscribe registers a listener for committed catalog changes.
func (s *service) Subscribe(listener ProductListener) {
	if listener == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, listener)
}

func (s *service) AddProduct(ctx context.Context, input ProductInput) (*ProductDTO, error) {
	input, err := normalizeInput(input)
	if err != nil {
		return nil, err
	}
	suffix, err := security.RandomBase36(productIDSuffixLen)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate product id")
	}
	product := buildProduct(slugify(input.Name)+"-"+suffix, input)

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := ensureUniqueName(ctx, txRepo, input.Name, ""); err != nil {
			return err
		}
		if err := txRepo.Create(ctx, product); err != nil {
			if db.IsUniqueViolation(err) {
				return duplicateNameError(input.Name)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert product")
		}
		return s.emitChange(ctx, tx, enums.EventProductCreated, product)
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, ProductChange{Event: enums.EventProductCreated, ProductID: product.ID, Product: product})
	dto := toDTO(*product, types.RatingSummary{})
	return &dto, nil
}

func (s *service) UpdateProduct(ctx context.Context, id string, input ProductInput) (*ProductDTO, error) {
	input, err := normalizeInput(input)
	if err != nil {
		return nil, err
	}
	var updated *models.Product
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		existing, err := txRepo.FindByID(ctx, id)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product")
		}
		if err := ensureUniqueName(ctx, txRepo, input.Name, id); err != nil {
			return err
		}
		product := buildProduct(id, input)
		product.CreatedAt = existing.CreatedAt
		if err := txRepo.Replace(ctx, product); err != nil {
			if db.IsUniqueViolation(err) {
				return duplicateNameError(input.Name)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update product")
		}
		updated = product
		return s.emitChange(ctx, tx, enums.EventProductUpdated, product)
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, ProductChange{Event: enums.EventProductUpdated, ProductID: id, Product: updated})
	stats, err := s.ratings.Stats(ctx, []string{id})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load ratings")
	}
	dto := toDTO(*updated, stats[id])
	return &dto, nil
}

func (s *service) DeleteProduct(ctx context.Context, id string) error {
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		affected, err := s.repo.WithTx(tx).Delete(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete product")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:   enums.EventProductDeleted,
			AggregateID: id,
			Data:        payloads.ProductDeletedEvent{ProductID: id},
		})
	})
	if err != nil {
		return err
	}
	s.notify(ctx, ProductChange{Event: enums.EventProductDeleted, ProductID: id})
	return nil
}

func (s *service) GetProduct(ctx context.Context, id string) (*ProductDTO, error) {
	product, err := s.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	stats, err := s.ratings.Stats(ctx, []string{id})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load ratings")
	}
	dto := toDTO(*product, stats[id])
	return &dto, nil
}

func (s *service) ListProducts(ctx context.Context, query ListQuery) ([]ProductDTO, error) {
	if query.Category != nil && !query.Category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid category")
	}
	if query.Sort == "" {
		query.Sort = enums.ProductSortNewest
	}
	if !query.Sort.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid sort option")
	}
	rows, err := s.repo.List(ctx, query.Category, query.Sort)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list products")
	}
	rows = filterBySearch(rows, query.Search)
	return s.withRatings(ctx, rows)
}

// ListByIDs returns the products in the order of ids, skipping unknown ones.
func (s *service) ListByIDs(ctx context.Context, ids []string) ([]ProductDTO, error) {
	byID, err := s.LookupMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	rows := make([]models.Product, 0, len(byID))
	for _, id := range ids {
		if product, ok := byID[id]; ok {
			rows = append(rows, product)
		}
	}
	return s.withRatings(ctx, rows)
}

func (s *service) Lookup(ctx context.Context, id string) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product")
	}
	return product, nil
}

func (s *service) LookupMany(ctx context.Context, ids []string) (map[string]models.Product, error) {
	byID, err := s.repo.FindByIDs(ctx, dedupe(ids))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load products")
	}
	return byID, nil
}

func (s *service) withRatings(ctx context.Context, rows []models.Product) ([]ProductDTO, error) {
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	stats, err := s.ratings.Stats(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load ratings")
	}
	out := make([]ProductDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDTO(row, stats[row.ID]))
	}
	return out, nil
}

func (s *service) emitChange(ctx context.Context, tx *gorm.DB, event enums.OutboxEventType, product *models.Product) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:   event,
		AggregateID: product.ID,
		Data: payloads.ProductChangedEvent{
			ProductID: product.ID,
			Name:      product.Name,
			Price:     product.Price,
			InStock:   product.InStock,
		},
	})
}

// notify runs listeners after commit. Failures are logged, never returned to
// the admin caller.
func (s *service) notify(ctx context.Context, change ProductChange) {
	s.mu.RLock()
	listeners := append([]ProductListener(nil), s.listeners...)
	s.mu.RUnlock()

	for _, listener := range listeners {
		if err := listener.OnProductChanged(ctx, change); err != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"product_id": change.ProductID,
				"event":      change.Event,
			})
			s.logg.Error(logCtx, "product listener failed", err)
		}
	}
}

func normalizeInput(input ProductInput) (ProductInput, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return input, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if !input.Category.IsValid() {
		return input, pkgerrors.New(pkgerrors.CodeValidation, "invalid category")
	}
	if input.Price.IsNegative() {
		return input, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}
	c := input.Calories
	if c.Total < 0 || c.Fat < 0 || c.Protein < 0 || c.Carbs < 0 {
		return input, pkgerrors.New(pkgerrors.CodeValidation, "calories must not be negative")
	}
	seen := map[enums.ProductSize]bool{}
	for _, v := range input.Variations {
		if !v.Size.IsValid() {
			return input, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid variation size %q", v.Size)
		}
		if seen[v.Size] {
			return input, pkgerrors.Newf(pkgerrors.CodeValidation, "duplicate variation for size %s", v.Size)
		}
		if v.Price.IsNegative() {
			return input, pkgerrors.New(pkgerrors.CodeValidation, "variation price must not be negative")
		}
		seen[v.Size] = true
	}
	input.ShortDescription = strings.TrimSpace(input.ShortDescription)
	input.Description = strings.TrimSpace(input.Description)
	input.Image = strings.TrimSpace(input.Image)
	input.Tags = cleanList(input.Tags)
	input.Ingredients = cleanList(input.Ingredients)
	return input, nil
}

func buildProduct(id string, input ProductInput) *models.Product {
	product := &models.Product{
		ID:               id,
		Name:             input.Name,
		ShortDescription: input.ShortDescription,
		Description:      input.Description,
		Price:            input.Price.Round(2),
		Category:         input.Category,
		Image:            input.Image,
		Tags:             input.Tags,
		Customizable:     input.Customizable,
		Ingredients:      input.Ingredients,
		Calories:         input.Calories,
		InStock:          input.InStock,
	}
	for _, v := range input.Variations {
		product.Variations = append(product.Variations, models.ProductVariation{
			ProductID: id,
			Size:      v.Size,
			Price:     v.Price.Round(2),
		})
	}
	sort.SliceStable(product.Variations, func(i, j int) bool {
		return sizeRank(product.Variations[i].Size) < sizeRank(product.Variations[j].Size)
	})
	return product
}

func ensureUniqueName(ctx context.Context, repo *Repository, name, excludeID string) error {
	names, err := repo.ListNames(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list product names")
	}
	key := foldKey(name)
	for _, existing := range names {
		if existing.ID != excludeID && foldKey(existing.Name) == key {
			return duplicateNameError(name)
		}
	}
	return nil
}

func duplicateNameError(name string) error {
	return pkgerrors.Newf(pkgerrors.CodeConflict, "product %q already exists", name)
}

func filterBySearch(rows []models.Product, search string) []models.Product {
	term := foldKey(search)
	if term == "" {
		return rows
	}
	out := rows[:0:0]
	for _, row := range rows {
		if matchesSearch(row, term) {
			out = append(out, row)
		}
	}
	return out
}

func matchesSearch(p models.Product, term string) bool {
	if strings.Contains(foldKey(p.Name), term) ||
		strings.Contains(foldKey(p.Description), term) ||
		strings.Contains(foldKey(p.ShortDescription), term) ||
		strings.Contains(foldKey(string(p.Category)), term) {
		return true
	}
	for _, tag := range p.Tags {
		if strings.Contains(foldKey(tag), term) {
			return true
		}
	}
	return false
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func sizeRank(size enums.ProductSize) int {
	switch size {
	case enums.ProductSizeSmall:
		return 0
	case enums.ProductSizeMedium:
		return 1
	default:
		return 2
	}
}
