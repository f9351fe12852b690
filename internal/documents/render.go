package documents

import (
	"fmt"
	"strings"
	"time"

	"github.com/fashionmarket/storefront-backend/pkg/db/models"
	"github.com/fashionmarket/storefront-backend/pkg/money"
)

// Kind tells invoices and credit notes apart.
type Kind string

const (
	KindInvoice    Kind = "invoice"
	KindCreditNote Kind = "credit_note"
)

// Document is the renderer input shared by invoices and credit notes.
// Amounts are stored magnitudes; signs are applied by Render.
type Document struct {
	Kind          Kind
	Number        string
	Reference     string
	IssuedAt      time.Time
	CustomerName  string
	CustomerEmail string
	Address       []string
	Items         []models.DocumentItem
	ItemsCents    int
	DiscountCents int
	ShippingCents int
	SubtotalCents int
	TaxRate       int
	TaxCents      int
	TotalCents    int
	Currency      string
}

// InvoiceDocument adapts a stored invoice.
func InvoiceDocument(inv models.Invoice) Document {
	return Document{
		Kind:          KindInvoice,
		Number:        inv.InvoiceNumber,
		IssuedAt:      inv.IssuedAt,
		CustomerName:  inv.CustomerName,
		CustomerEmail: inv.CustomerEmail,
		Address:       inv.BillingAddress.Lines(),
		Items:         inv.Items,
		ItemsCents:    inv.ItemsSubtotalCents,
		DiscountCents: inv.DiscountCents,
		ShippingCents: inv.ShippingCents,
		SubtotalCents: inv.SubtotalCents,
		TaxRate:       inv.TaxRate,
		TaxCents:      inv.TaxCents,
		TotalCents:    inv.TotalCents,
		Currency:      inv.Currency,
	}
}

// CreditNoteDocument adapts a stored credit note.
func CreditNoteDocument(note models.CreditNote) Document {
	items := 0
	for _, item := range note.Items {
		items += item.LineTotalCents
	}
	return Document{
		Kind:          KindCreditNote,
		Number:        note.CreditNoteNumber,
		Reference:     note.InvoiceNumber,
		IssuedAt:      note.IssuedAt,
		CustomerName:  note.CustomerName,
		CustomerEmail: note.CustomerEmail,
		Items:         note.Items,
		ItemsCents:    items,
		ShippingCents: note.ShippingCents,
		SubtotalCents: note.SubtotalCents,
		TaxRate:       note.TaxRate,
		TaxCents:      note.TaxCents,
		TotalCents:    note.TotalCents,
		Currency:      note.Currency,
	}
}

// RenderedLine is one formatted item row.
type RenderedLine struct {
	Description string `json:"description"`
	Variant     string `json:"variant,omitempty"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	LineTotal   string `json:"line_total"`
}

// Figure is one labelled amount in the totals block.
type Figure struct {
	Label  string `json:"label"`
	Cents  int    `json:"cents"`
	Amount string `json:"amount"`
}

// Rendered is the printable form of a document.
type Rendered struct {
	Kind      Kind           `json:"kind"`
	Title     string         `json:"title"`
	Number    string         `json:"number"`
	Reference string         `json:"reference,omitempty"`
	IssuedOn  string         `json:"issued_on"`
	Customer  []string       `json:"customer"`
	Lines     []RenderedLine `json:"lines"`
	Totals    []Figure       `json:"totals"`
	Currency  string         `json:"currency"`
}

// Render formats a document. Credit note amounts are negated here and only
// here. The output depends on the input alone.
func Render(doc Document) Rendered {
	sign := 1
	title := "Invoice"
	if doc.Kind == KindCreditNote {
		sign = -1
		title = "Credit note"
	}
	amount := func(cents int) string { return money.Format(sign*cents, doc.Currency) }
	figure := func(label string, cents int) Figure {
		return Figure{Label: label, Cents: sign * cents, Amount: amount(cents)}
	}

	customer := []string{doc.CustomerName, doc.CustomerEmail}
	customer = append(customer, doc.Address...)

	lines := make([]RenderedLine, 0, len(doc.Items))
	for _, item := range doc.Items {
		lines = append(lines, RenderedLine{
			Description: item.Description,
			Variant:     describeVariant(item.Size, item.Color),
			Quantity:    item.Quantity,
			UnitPrice:   amount(item.UnitPriceCents),
			LineTotal:   amount(item.LineTotalCents),
		})
	}

	totals := []Figure{figure("Items", doc.ItemsCents)}
	if doc.DiscountCents > 0 {
		totals = append(totals, Figure{Label: "Discount", Cents: -sign * doc.DiscountCents, Amount: amount(-doc.DiscountCents)})
	}
	totals = append(totals,
		figure("Shipping", doc.ShippingCents),
		figure("Net amount", doc.SubtotalCents),
		figure(fmt.Sprintf("VAT %d%% (included)", doc.TaxRate), doc.TaxCents),
		figure("Total", doc.TotalCents),
	)

	return Rendered{
		Kind:      doc.Kind,
		Title:     title,
		Number:    doc.Number,
		Reference: doc.Reference,
		IssuedOn:  doc.IssuedAt.UTC().Format("2006-01-02"),
		Customer:  customer,
		Lines:     lines,
		Totals:    totals,
		Currency:  strings.ToUpper(doc.Currency),
	}
}

// RenderText lays out a rendered document as the plain-text email attachment.
func RenderText(r Rendered) string {
	var b strings.Builder
	fmt.Fprintf(&b, "FashionMarket %s %s\n", r.Title, r.Number)
	if r.Reference != "" {
		fmt.Fprintf(&b, "Corrects invoice %s\n", r.Reference)
	}
	fmt.Fprintf(&b, "Date: %s\n\n", r.IssuedOn)
	for _, line := range r.Customer {
		if strings.TrimSpace(line) == "" {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	for _, line := range r.Lines {
		desc := line.Description
		if line.Variant != "" {
			desc += " (" + line.Variant + ")"
		}
		fmt.Fprintf(&b, "%-40s %3d x %14s %14s\n", desc, line.Quantity, line.UnitPrice, line.LineTotal)
	}
	b.WriteByte('\n')
	for _, fig := range r.Totals {
		fmt.Fprintf(&b, "%-40s %33s\n", fig.Label, fig.Amount)
	}
	return b.String()
}
