package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/fashionmarket/storefront-backend/pkg/enums"
	"github.com/fashionmarket/storefront-backend/pkg/types"
)

// DocumentItem is one printed line on an invoice or credit note. Amounts are
// always non-negative magnitudes.
type DocumentItem struct {
	OrderItemID    uuid.UUID `json:"order_item_id"`
	Description    string    `json:"description"`
	Size           *string   `json:"size,omitempty"`
	Color          *string   `json:"color,omitempty"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int       `json:"unit_price_cents"`
	LineTotalCents int       `json:"line_total_cents"`
}

// Invoice is immutable once issued; corrections go through credit notes.
// ItemsSubtotalCents is the order subtotal; SubtotalCents is the pre-tax base
// so that Subtotal + Tax - Discount == Total.
type Invoice struct {
	ID                 uuid.UUID                    `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	InvoiceNumber      string                       `gorm:"column:invoice_number;not null;uniqueIndex"`
	OrderID            uuid.UUID                    `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	CustomerEmail      string                       `gorm:"column:customer_email;not null"`
	CustomerName       string                       `gorm:"column:customer_name;not null"`
	BillingAddress     types.ShippingAddress        `gorm:"column:billing_address;type:jsonb;not null"`
	Items              types.JSONList[DocumentItem] `gorm:"column:items;type:jsonb;not null"`
	ItemsSubtotalCents int                          `gorm:"column:items_subtotal_cents;not null"`
	SubtotalCents      int                          `gorm:"column:subtotal_cents;not null"`
	DiscountCents      int                          `gorm:"column:discount_cents;not null"`
	ShippingCents      int                          `gorm:"column:shipping_cents;not null"`
	TaxRate            int                          `gorm:"column:tax_rate;not null"`
	TaxCents           int                          `gorm:"column:tax_cents;not null"`
	TotalCents         int                          `gorm:"column:total_cents;not null"`
	Currency           string                       `gorm:"column:currency;not null"`
	Status             enums.InvoiceStatus          `gorm:"column:status;not null"`
	IssuedAt           time.Time                    `gorm:"column:issued_at;not null"`
	PaidDate           *time.Time                   `gorm:"column:paid_date"`
	CreatedAt          time.Time                    `gorm:"column:created_at;autoCreateTime"`
}

// CreditNote reverses part or all of an invoice for one approved return.
type CreditNote struct {
	ID               uuid.UUID                    `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CreditNoteNumber string                       `gorm:"column:credit_note_number;not null;uniqueIndex"`
	InvoiceID        uuid.UUID                    `gorm:"column:invoice_id;type:uuid;not null"`
	ReturnID         uuid.UUID                    `gorm:"column:return_id;type:uuid;not null;uniqueIndex"`
	OrderID          uuid.UUID                    `gorm:"column:order_id;type:uuid;not null"`
	InvoiceNumber    string                       `gorm:"column:invoice_number;not null"`
	CustomerEmail    string                       `gorm:"column:customer_email;not null"`
	CustomerName     string                       `gorm:"column:customer_name;not null"`
	Items            types.JSONList[DocumentItem] `gorm:"column:items;type:jsonb;not null"`
	SubtotalCents    int                          `gorm:"column:subtotal_cents;not null"`
	ShippingCents    int                          `gorm:"column:shipping_cents;not null"`
	TaxRate          int                          `gorm:"column:tax_rate;not null"`
	TaxCents         int                          `gorm:"column:tax_cents;not null"`
	TotalCents       int                          `gorm:"column:total_cents;not null"`
	Currency         string                       `gorm:"column:currency;not null"`
	IssuedAt         time.Time                    `gorm:"column:issued_at;not null"`
	CreatedAt        time.Time                    `gorm:"column:created_at;autoCreateTime"`
}

// DocumentSequence is a year-scoped monotonic counter (invoice_sequences,
// credit_note_sequences).
type DocumentSequence struct {
	Year      int `gorm:"column:year;primaryKey"`
	LastValue int `gorm:"column:last_value;not null"`
}
