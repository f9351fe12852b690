package documents

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fashionmarket/storefront-backend/pkg/db/models"
	"github.com/fashionmarket/storefront-backend/pkg/enums"
	pkgerrors "github.com/fashionmarket/storefront-backend/pkg/errors"
	"github.com/fashionmarket/storefront-backend/pkg/money"
	"github.com/fashionmarket/storefront-backend/pkg/types"
)

// BuildInvoice snapshots an order into an invoice. Prices are tax inclusive:
// the order figures are copied verbatim and Subtotal is the pre-tax base, so
// Subtotal + Tax - Discount == Total.
func BuildInvoice(order models.Order, number string, issuedAt time.Time) (*models.Invoice, error) {
	if len(order.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order has no items")
	}
	items := make(types.JSONList[models.DocumentItem], 0, len(order.Items))
	itemsTotal := 0
	for _, item := range order.Items {
		items = append(items, models.DocumentItem{
			OrderItemID:    item.ID,
			Description:    item.ProductName,
			Size:           item.Size,
			Color:          item.Color,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			LineTotalCents: item.LineTotalCents,
		})
		itemsTotal += item.LineTotalCents
	}
	if itemsTotal != order.SubtotalCents {
		return nil, pkgerrors.Newf(pkgerrors.CodeInternal, "order %s items sum to %d, subtotal is %d", order.OrderNumber, itemsTotal, order.SubtotalCents)
	}

	status := enums.InvoiceStatusIssued
	if order.PaidAt != nil {
		status = enums.InvoiceStatusPaid
	}
	invoice := &models.Invoice{
		ID:                 uuid.New(),
		InvoiceNumber:      number,
		OrderID:            order.ID,
		CustomerEmail:      order.CustomerEmail,
		CustomerName:       order.CustomerName,
		BillingAddress:     order.ShippingAddress,
		Items:              items,
		ItemsSubtotalCents: order.SubtotalCents,
		SubtotalCents:      order.TotalCents + order.DiscountCents - order.TaxCents,
		DiscountCents:      order.DiscountCents,
		ShippingCents:      order.ShippingCents,
		TaxRate:            order.TaxRate,
		TaxCents:           order.TaxCents,
		TotalCents:         order.TotalCents,
		Currency:           order.Currency,
		Status:             status,
		IssuedAt:           issuedAt.UTC(),
		PaidDate:           order.PaidAt,
	}
	if err := checkInvoice(*invoice, order); err != nil {
		return nil, err
	}
	return invoice, nil
}

func checkInvoice(inv models.Invoice, order models.Order) error {
	if inv.TotalCents != order.TotalCents {
		return pkgerrors.Newf(pkgerrors.CodeInternal, "invoice total %d differs from order total %d", inv.TotalCents, order.TotalCents)
	}
	if inv.SubtotalCents+inv.TaxCents-inv.DiscountCents != inv.TotalCents {
		return pkgerrors.Newf(pkgerrors.CodeInternal, "invoice %s does not balance", inv.InvoiceNumber)
	}
	if inv.SubtotalCents < 0 {
		return pkgerrors.Newf(pkgerrors.CodeInternal, "invoice %s has a negative base", inv.InvoiceNumber)
	}
	return nil
}

// BuildCreditNote reverses the returned items of an invoice. Amounts are
// magnitudes; Total equals the return's refund amount.
func BuildCreditNote(ret models.Return, invoice models.Invoice, number string, issuedAt time.Time) (*models.CreditNote, error) {
	if len(ret.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "return has no items")
	}
	byItem := make(map[uuid.UUID]models.DocumentItem, len(invoice.Items))
	for _, item := range invoice.Items {
		byItem[item.OrderItemID] = item
	}

	items := make(types.JSONList[models.DocumentItem], 0, len(ret.Items))
	goods := 0
	for _, ri := range ret.Items {
		source, ok := byItem[ri.OrderItemID]
		if !ok {
			return nil, pkgerrors.Newf(pkgerrors.CodeInternal, "order item %s is not on invoice %s", ri.OrderItemID, invoice.InvoiceNumber)
		}
		if ri.Quantity <= 0 || ri.Quantity > source.Quantity {
			return nil, pkgerrors.Newf(pkgerrors.CodeInternal, "refunded quantity %d out of range for %s", ri.Quantity, source.Description)
		}
		line := ri.UnitPriceCents * ri.Quantity
		items = append(items, models.DocumentItem{
			OrderItemID:    ri.OrderItemID,
			Description:    source.Description,
			Size:           source.Size,
			Color:          source.Color,
			Quantity:       ri.Quantity,
			UnitPriceCents: ri.UnitPriceCents,
			LineTotalCents: line,
		})
		goods += line
	}

	shipping := 0
	if ret.IncludesShipping {
		shipping = invoice.ShippingCents
	}
	total := goods + shipping
	if total != ret.RefundAmountCents {
		return nil, pkgerrors.Newf(pkgerrors.CodeInternal, "credit note total %d differs from refund %d", total, ret.RefundAmountCents)
	}
	tax := money.Prorate(invoice.TaxCents, goods, invoice.ItemsSubtotalCents)
	if tax > goods {
		tax = goods
	}

	note := &models.CreditNote{
		ID:               uuid.New(),
		CreditNoteNumber: number,
		InvoiceID:        invoice.ID,
		ReturnID:         ret.ID,
		OrderID:          invoice.OrderID,
		InvoiceNumber:    invoice.InvoiceNumber,
		CustomerEmail:    invoice.CustomerEmail,
		CustomerName:     invoice.CustomerName,
		Items:            items,
		SubtotalCents:    total - tax,
		ShippingCents:    shipping,
		TaxRate:          invoice.TaxRate,
		TaxCents:         tax,
		TotalCents:       total,
		Currency:         invoice.Currency,
		IssuedAt:         issuedAt.UTC(),
	}
	if note.SubtotalCents < 0 || note.TaxCents < 0 || note.TotalCents < 0 {
		return nil, pkgerrors.Newf(pkgerrors.CodeInternal, "credit note %s has negative figures", number)
	}
	return note, nil
}

func describeVariant(size, color *string) string {
	var parts []string
	if size != nil {
		parts = append(parts, *size)
	}
	if color != nil {
		parts = append(parts, *color)
	}
	return strings.Join(parts, " / ")
}
