package catalog

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/coffeeshop-backend/pkg/db/models"
	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
)

// Repository persists products and their size variations.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindByID loads a product with its variations.
func (r *Repository) FindByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Variations", orderVariations).
		First(&product, "id = ?", id).
		Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDs loads the given products keyed by id. Missing ids are skipped.
func (r *Repository) FindByIDs(ctx context.Context, ids []string) (map[string]models.Product, error) {
	out := make(map[string]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Preload("Variations", orderVariations).
		Where("id IN ?", ids).
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

// Exists reports whether a product with the id is in the catalog.
func (r *Repository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// List returns products filtered by category and ordered by sort.
func (r *Repository) List(ctx context.Context, category *enums.ProductCategory, sort enums.ProductSort) ([]models.Product, error) {
	query := r.db.WithContext(ctx).Preload("Variations", orderVariations)
	if category != nil {
		query = query.Where("category = ?", *category)
	}
	switch sort {
	case enums.ProductSortOldest:
		query = query.Order("created_at ASC").Order("id ASC")
	case enums.ProductSortPriceAsc:
		query = query.Order("price ASC").Order("created_at DESC")
	case enums.ProductSortPriceDesc:
		query = query.Order("price DESC").Order("created_at DESC")
	default:
		query = query.Order("created_at DESC").Order("id ASC")
	}
	var rows []models.Product
	err := query.Find(&rows).Error
	return rows, err
}

// ProductName is the id/name pair used for duplicate-name checks.
type ProductName struct {
	ID   string
	Name string
}

// ListNames returns every product id and name.
func (r *Repository) ListNames(ctx context.Context) ([]ProductName, error) {
	var rows []ProductName
	err := r.db.WithContext(ctx).Model(&models.Product{}).Select("id", "name").Scan(&rows).Error
	return rows, err
}

// Count returns the number of products.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Product{}).Count(&count).Error
	return count, err
}

// Create inserts the product and its variations.
func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// Replace overwrites the product row and swaps its variations.
func (r *Repository) Replace(ctx context.Context, product *models.Product) error {
	tx := r.db.WithContext(ctx)
	variations := product.Variations
	product.Variations = nil
	err := tx.Model(&models.Product{ID: product.ID}).
		Select(editableColumns).
		Updates(product).
		Error
	if err != nil {
		return err
	}
	if err := tx.Where("product_id = ?", product.ID).Delete(&models.ProductVariation{}).Error; err != nil {
		return err
	}
	product.Variations = variations
	if len(variations) == 0 {
		return nil
	}
	return tx.Create(&variations).Error
}

// Delete removes the product and its variations. It returns the rows affected.
func (r *Repository) Delete(ctx context.Context, id string) (int64, error) {
	tx := r.db.WithContext(ctx)
	if err := tx.Where("product_id = ?", id).Delete(&models.ProductVariation{}).Error; err != nil {
		return 0, err
	}
	res := tx.Where("id = ?", id).Delete(&models.Product{})
	return res.RowsAffected, res.Error
}

var editableColumns = []string{
	"name", "short_description", "description", "price", "category", "image",
	"tags", "customizable", "ingredients", "calories_total", "calories_fat",
	"calories_protein", "calories_carbs", "in_stock", "updated_at",
}

func orderVariations(db *gorm.DB) *gorm.DB {
	return db.Order("CASE size WHEN 'small' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END")
}
