package documents

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fashionmarket/storefront-backend/pkg/db/models"
)

// SequenceTable names a year-scoped counter table.
type SequenceTable string

const (
	InvoiceSequences    SequenceTable = "invoice_sequences"
	CreditNoteSequences SequenceTable = "credit_note_sequences"
)

// Repository persists invoices, credit notes and their sequences.
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

// NextSequence increments and returns the counter for year, creating the row
// on first use. Must run inside the transaction that consumes the value.
func (r *Repository) NextSequence(ctx context.Context, table SequenceTable, year int) (int, error) {
	switch table {
	case InvoiceSequences, CreditNoteSequences:
	default:
		return 0, fmt.Errorf("unknown sequence table %q", table)
	}
	query := fmt.Sprintf(
		`INSERT INTO %[1]s (year, last_value) VALUES (?, 1)
ON CONFLICT (year) DO UPDATE SET last_value = %[1]s.last_value + 1
RETURNING last_value`, table)

	var value int
	if err := r.db.WithContext(ctx).Raw(query, year).Scan(&value).Error; err != nil {
		return 0, err
	}
	if value <= 0 {
		return 0, fmt.Errorf("sequence %s returned %d", table, value)
	}
	return value, nil
}

// FindOrder loads an order with its items.
func (r *Repository) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC").Order("id ASC") }).
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *Repository) FindInvoice(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).First(&invoice, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *Repository) FindInvoiceByOrder(ctx context.Context, orderID uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).First(&invoice, "order_id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *Repository) InsertInvoice(ctx context.Context, invoice *models.Invoice) error {
	if invoice.ID == uuid.Nil {
		invoice.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *Repository) FindCreditNote(ctx context.Context, id uuid.UUID) (*models.CreditNote, error) {
	var note models.CreditNote
	if err := r.db.WithContext(ctx).First(&note, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &note, nil
}

func (r *Repository) FindCreditNoteByReturn(ctx context.Context, returnID uuid.UUID) (*models.CreditNote, error) {
	var note models.CreditNote
	if err := r.db.WithContext(ctx).First(&note, "return_id = ?", returnID).Error; err != nil {
		return nil, err
	}
	return &note, nil
}

func (r *Repository) InsertCreditNote(ctx context.Context, note *models.CreditNote) error {
	if note.ID == uuid.Nil {
		note.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(note).Error
}

// ListOrdersWithoutInvoice returns paid orders created before cutoff that
// still lack an invoice, oldest first.
func (r *Repository) ListOrdersWithoutInvoice(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("orders.created_at < ?", cutoff).
		Where("orders.paid_at IS NOT NULL").
		Where("NOT EXISTS (SELECT 1 FROM invoices WHERE invoices.order_id = orders.id)").
		Order("orders.created_at ASC").
		Limit(limit).
		Pluck("orders.id", &ids).Error
	return ids, err
}
