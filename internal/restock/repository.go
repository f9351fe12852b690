package restock

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fashionmarket/storefront-backend/internal/stock"
	"github.com/fashionmarket/storefront-backend/pkg/db/models"
)

// Repository persists waitlist entries.
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

func scopeSlot(q *gorm.DB, productID uuid.UUID, key stock.VariantKey) *gorm.DB {
	q = q.Where("product_id = ?", productID)
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

// FindPending returns the unnotified entry for the exact triple, if any.
func (r *Repository) FindPending(ctx context.Context, productID uuid.UUID, key stock.VariantKey, email string) (*models.StockNotification, error) {
	var entry models.StockNotification
	err := scopeSlot(r.db.WithContext(ctx), productID, key).
		Where("notified = ?", false).
		Where("lower(email) = ?", strings.ToLower(email)).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Insert creates a pending entry.
func (r *Repository) Insert(ctx context.Context, entry *models.StockNotification) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

// LockPending selects the pending entries for one slot, skipping rows
// another notifier already holds.
func (r *Repository) LockPending(ctx context.Context, productID uuid.UUID, key stock.VariantKey) ([]models.StockNotification, error) {
	q := scopeSlot(r.db.WithContext(ctx), productID, key).Where("notified = ?", false)
	if r.db.Dialector == nil || r.db.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	}
	var entries []models.StockNotification
	err := q.Order("created_at ASC").Order("id ASC").Find(&entries).Error
	return entries, err
}

// MarkNotified flips the given pending entries in one statement and returns
// how many changed.
func (r *Repository) MarkNotified(ctx context.Context, ids []uuid.UUID, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.StockNotification{}).
		Where("id IN ?", ids).
		Where("notified = ?", false).
		Updates(map[string]any{"notified": true, "notified_at": at})
	return res.RowsAffected, res.Error
}

// DeleteNotifiedBefore purges notified entries older than cutoff.
func (r *Repository) DeleteNotifiedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("notified = ? AND notified_at < ?", true, cutoff).
		Delete(&models.StockNotification{})
	return res.RowsAffected, res.Error
}

// ListForProduct returns every entry for a product: pending ones first, then
// newest first.
func (r *Repository) ListForProduct(ctx context.Context, productID uuid.UUID) ([]models.StockNotification, error) {
	var entries []models.StockNotification
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("notified ASC").
		Order("created_at DESC").
		Order("id ASC").
		Find(&entries).Error
	return entries, err
}
