package controllers

import (
	"time"

	"github.com/google/uuid"

	"github.com/fashionmarket/storefront-backend/internal/documents"
	"github.com/fashionmarket/storefront-backend/internal/stock"
	"github.com/fashionmarket/storefront-backend/pkg/db/models"
	"github.com/fashionmarket/storefront-backend/pkg/enums"
	"github.com/fashionmarket/storefront-backend/pkg/pagination"
	"github.com/fashionmarket/storefront-backend/pkg/types"
)

type orderItemDTO struct {
	ID             uuid.UUID `json:"id"`
	ProductID      uuid.UUID `json:"product_id"`
	ProductName    string    `json:"product_name"`
	Size           *string   `json:"size,omitempty"`
	Color          *string   `json:"color,omitempty"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int       `json:"unit_price_cents"`
	LineTotalCents int       `json:"line_total_cents"`
}

type orderDTO struct {
	ID              uuid.UUID             `json:"id"`
	OrderNumber     string                `json:"order_number"`
	Status          enums.OrderStatus     `json:"status"`
	CustomerEmail   string                `json:"customer_email"`
	CustomerName    string                `json:"customer_name"`
	SubtotalCents   int                   `json:"subtotal_cents"`
	DiscountCents   int                   `json:"discount_cents"`
	ShippingCents   int                   `json:"shipping_cents"`
	TaxRate         int                   `json:"tax_rate"`
	TaxCents        int                   `json:"tax_cents"`
	TotalCents      int                   `json:"total_cents"`
	Currency        string                `json:"currency"`
	ShippingAddress types.ShippingAddress `json:"shipping_address"`
	PaidAt          *time.Time            `json:"paid_at,omitempty"`
	ShippedAt       *time.Time            `json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time            `json:"delivered_at,omitempty"`
	CancelledAt     *time.Time            `json:"cancelled_at,omitempty"`
	RefundedAt      *time.Time            `json:"refunded_at,omitempty"`
	Items           []orderItemDTO        `json:"items"`
	CreatedAt       time.Time             `json:"created_at"`
}

func newOrderDTO(o models.Order) orderDTO {
	items := make([]orderItemDTO, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemDTO{
			ID:             it.ID,
			ProductID:      it.ProductID,
			ProductName:    it.ProductName,
			Size:           it.Size,
			Color:          it.Color,
			Quantity:       it.Quantity,
			UnitPriceCents: it.UnitPriceCents,
			LineTotalCents: it.LineTotalCents,
		})
	}
	return orderDTO{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		Status:          o.Status,
		CustomerEmail:   o.CustomerEmail,
		CustomerName:    o.CustomerName,
		SubtotalCents:   o.SubtotalCents,
		DiscountCents:   o.DiscountCents,
		ShippingCents:   o.ShippingCents,
		TaxRate:         o.TaxRate,
		TaxCents:        o.TaxCents,
		TotalCents:      o.TotalCents,
		Currency:        o.Currency,
		ShippingAddress: o.ShippingAddress,
		PaidAt:          o.PaidAt,
		ShippedAt:       o.ShippedAt,
		DeliveredAt:     o.DeliveredAt,
		CancelledAt:     o.CancelledAt,
		RefundedAt:      o.RefundedAt,
		Items:           items,
		CreatedAt:       o.CreatedAt,
	}
}

type returnItemDTO struct {
	OrderItemID    uuid.UUID `json:"order_item_id"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int       `json:"unit_price_cents"`
}

type returnDTO struct {
	ID                uuid.UUID          `json:"id"`
	ReturnNumber      string             `json:"return_number"`
	OrderID           uuid.UUID          `json:"order_id"`
	Status            enums.ReturnStatus `json:"status"`
	Reason            enums.ReturnReason `json:"reason"`
	CustomerNotes     *string            `json:"customer_notes,omitempty"`
	AdminNotes        *string            `json:"admin_notes,omitempty"`
	RefundAmountCents int                `json:"refund_amount_cents"`
	IncludesShipping  bool               `json:"includes_shipping"`
	RequestedAt       time.Time          `json:"requested_at"`
	ResolvedAt        *time.Time         `json:"resolved_at,omitempty"`
	Items             []returnItemDTO    `json:"items"`
}

func newReturnDTO(r models.Return) returnDTO {
	items := make([]returnItemDTO, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, returnItemDTO{OrderItemID: it.OrderItemID, Quantity: it.Quantity, UnitPriceCents: it.UnitPriceCents})
	}
	return returnDTO{
		ID:                r.ID,
		ReturnNumber:      r.ReturnNumber,
		OrderID:           r.OrderID,
		Status:            r.Status,
		Reason:            r.Reason,
		CustomerNotes:     r.CustomerNotes,
		AdminNotes:        r.AdminNotes,
		RefundAmountCents: r.RefundAmountCents,
		IncludesShipping:  r.IncludesShipping,
		RequestedAt:       r.RequestedAt,
		ResolvedAt:        r.ResolvedAt,
		Items:             items,
	}
}

func newReturnDTOs(list []models.Return) []returnDTO {
	out := make([]returnDTO, 0, len(list))
	for _, r := range list {
		out = append(out, newReturnDTO(r))
	}
	return out
}

type pageDTO[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

func mapPage[M, T any](page pagination.Page[M], fn func(M) T) pageDTO[T] {
	items := make([]T, 0, len(page.Items))
	for _, m := range page.Items {
		items = append(items, fn(m))
	}
	return pageDTO[T]{Items: items, NextCursor: page.NextCursor}
}

type waitlistDTO struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"product_id"`
	Size      *string   `json:"size,omitempty"`
	Color     *string   `json:"color,omitempty"`
	Email     string    `json:"email"`
	Notified  bool      `json:"notified"`
	CreatedAt time.Time `json:"created_at"`
}

func newWaitlistDTO(n models.StockNotification) waitlistDTO {
	return waitlistDTO{
		ID:        n.ID,
		ProductID: n.ProductID,
		Size:      n.Size,
		Color:     n.Color,
		Email:     n.Email,
		Notified:  n.Notified,
		CreatedAt: n.CreatedAt,
	}
}

type variantRowDTO struct {
	Size      *string   `json:"size"`
	Color     *string   `json:"color"`
	Quantity  int       `json:"quantity"`
	Level     string    `json:"level"`
	UpdatedAt time.Time `json:"updated_at"`
}

type productStockDTO struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Sizes     []string        `json:"sizes"`
	Colors    []string        `json:"colors"`
	IsActive  bool            `json:"is_active"`
	Rows      []variantRowDTO `json:"rows"`
	Summary   stock.Summary   `json:"summary"`
	Matrix    *stock.Matrix   `json:"matrix,omitempty"`
}

func newProductStockDTO(ps stock.ProductStock) productStockDTO {
	rows := make([]variantRowDTO, 0, len(ps.Rows))
	for _, row := range ps.Rows {
		rows = append(rows, variantRowDTO{
			Size:      row.Size,
			Color:     row.Color,
			Quantity:  row.Quantity,
			Level:     string(stock.LevelOf(row.Quantity)),
			UpdatedAt: row.UpdatedAt,
		})
	}
	return productStockDTO{
		ProductID: ps.Product.ID,
		Name:      ps.Product.Name,
		Sizes:     []string(ps.Product.Sizes),
		Colors:    []string(ps.Product.Colors),
		IsActive:  ps.Product.IsActive,
		Rows:      rows,
		Summary:   ps.Summary,
		Matrix:    ps.Matrix,
	}
}

type documentDTO struct {
	ID       uuid.UUID          `json:"id"`
	OrderID  uuid.UUID          `json:"order_id"`
	Number   string             `json:"number"`
	Rendered documents.Rendered `json:"rendered"`
}

func newInvoiceDTO(inv models.Invoice) documentDTO {
	return documentDTO{
		ID:       inv.ID,
		OrderID:  inv.OrderID,
		Number:   inv.InvoiceNumber,
		Rendered: documents.Render(documents.InvoiceDocument(inv)),
	}
}

func newCreditNoteDTO(note models.CreditNote) documentDTO {
	return documentDTO{
		ID:       note.ID,
		OrderID:  note.OrderID,
		Number:   note.CreditNoteNumber,
		Rendered: documents.Render(documents.CreditNoteDocument(note)),
	}
}
