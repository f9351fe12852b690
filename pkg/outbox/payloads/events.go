package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/fashionmarket/storefront-backend/pkg/enums"
)

// OrderCreatedEvent is emitted once per order, in the creating transaction.
type OrderCreatedEvent struct {
	OrderID          uuid.UUID `json:"order_id"`
	OrderNumber      string    `json:"order_number"`
	CustomerEmail    string    `json:"customer_email"`
	TotalCents       int       `json:"total_cents"`
	Currency         string    `json:"currency"`
	PaymentReference string    `json:"payment_reference"`
}

// OrderStatusChangedEvent records one status transition.
type OrderStatusChangedEvent struct {
	OrderID   uuid.UUID         `json:"order_id"`
	From      enums.OrderStatus `json:"from"`
	To        enums.OrderStatus `json:"to"`
	ChangedAt time.Time         `json:"changed_at"`
}

// InvoiceIssuedEvent is emitted when an invoice number is assigned.
type InvoiceIssuedEvent struct {
	InvoiceID     uuid.UUID `json:"invoice_id"`
	InvoiceNumber string    `json:"invoice_number"`
	OrderID       uuid.UUID `json:"order_id"`
	TotalCents    int       `json:"total_cents"`
}

// InvoiceGenerationFailedEvent flags an order left without an invoice.
type InvoiceGenerationFailedEvent struct {
	OrderID  uuid.UUID `json:"order_id"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

// StockRestockedEvent reports a 0 -> positive edge on one variant.
type StockRestockedEvent struct {
	ProductID     uuid.UUID `json:"product_id"`
	Size          *string   `json:"size,omitempty"`
	Color         *string   `json:"color,omitempty"`
	NotifiedCount int       `json:"notified_count"`
}

// ReturnRequestedEvent is emitted when a customer opens a return.
type ReturnRequestedEvent struct {
	ReturnID          uuid.UUID          `json:"return_id"`
	ReturnNumber      string             `json:"return_number"`
	OrderID           uuid.UUID          `json:"order_id"`
	Reason            enums.ReturnReason `json:"reason"`
	RefundAmountCents int                `json:"refund_amount_cents"`
}

// ReturnApprovedEvent carries the credit note minted by the approval.
type ReturnApprovedEvent struct {
	ReturnID          uuid.UUID `json:"return_id"`
	OrderID           uuid.UUID `json:"order_id"`
	CreditNoteID      uuid.UUID `json:"credit_note_id"`
	CreditNoteNumber  string    `json:"credit_note_number"`
	RefundAmountCents int       `json:"refund_amount_cents"`
}

// ReturnRejectedEvent carries the admin's reason.
type ReturnRejectedEvent struct {
	ReturnID   uuid.UUID `json:"return_id"`
	OrderID    uuid.UUID `json:"order_id"`
	AdminNotes string    `json:"admin_notes"`
}
