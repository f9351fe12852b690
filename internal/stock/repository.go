package stock

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fashionmarket/storefront-backend/pkg/db"
	"github.com/fashionmarket/storefront-backend/pkg/db/models"
)

// Repository persists variant stock rows and the product stock cache.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{db: conn}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindProduct loads a product by id.
func (r *Repository) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// LockProduct loads the product row FOR UPDATE, serializing stock writers.
func (r *Repository) LockProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := db.ForUpdate(r.db.WithContext(ctx)).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// ListActiveProducts returns every active product ordered by name.
func (r *Repository) ListActiveProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name ASC").
		Order("id ASC").
		Find(&products).Error
	return products, err
}

func scopeKey(q *gorm.DB, key VariantKey) *gorm.DB {
	if key.Size == nil {
		q = q.Where("size IS NULL")
	} else {
		q = q.Where("size = ?", *key.Size)
	}
	if key.Color == nil {
		q = q.Where("color IS NULL")
	} else {
		q = q.Where("color = ?", *key.Color)
	}
	return q
}

// FindVariant returns the row for the exact slot, or gorm.ErrRecordNotFound.
func (r *Repository) FindVariant(ctx context.Context, productID uuid.UUID, key VariantKey) (*models.VariantStock, error) {
	var row models.VariantStock
	q := scopeKey(r.db.WithContext(ctx).Where("product_id = ?", productID), key)
	if err := q.First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// ListVariants range-scans a product's rows.
func (r *Repository) ListVariants(ctx context.Context, productID uuid.UUID) ([]models.VariantStock, error) {
	var rows []models.VariantStock
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// ListVariantsForProducts loads rows for many products in one query.
func (r *Repository) ListVariantsForProducts(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID][]models.VariantStock, error) {
	out := make(map[uuid.UUID][]models.VariantStock, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	var rows []models.VariantStock
	if err := r.db.WithContext(ctx).
		Where("product_id IN ?", productIDs).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ProductID] = append(out[row.ProductID], row)
	}
	return out, nil
}

// InsertVariant creates a new slot row.
func (r *Repository) InsertVariant(ctx context.Context, row *models.VariantStock) error {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(row).Error
}

// UpdateQuantity overwrites a row's quantity.
func (r *Repository) UpdateQuantity(ctx context.Context, id uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).
		Model(&models.VariantStock{}).
		Where("id = ?", id).
		Update("quantity", qty).Error
}

// SumVariants returns the summed quantity and the number of rows.
func (r *Repository) SumVariants(ctx context.Context, productID uuid.UUID) (int, int, error) {
	var agg struct {
		Total    int
		RowCount int
	}
	err := r.db.WithContext(ctx).
		Model(&models.VariantStock{}).
		Select("COALESCE(SUM(quantity), 0) AS total, COUNT(*) AS row_count").
		Where("product_id = ?", productID).
		Scan(&agg).Error
	return agg.Total, agg.RowCount, err
}

// UpdateProductStock persists the cached aggregate.
func (r *Repository) UpdateProductStock(ctx context.Context, productID uuid.UUID, total int) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Update("stock", total).Error
}
