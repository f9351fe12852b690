package orders

import (
	"github.com/fashionmarket/storefront-backend/pkg/config"
	pkgerrors "github.com/fashionmarket/storefront-backend/pkg/errors"
	"github.com/fashionmarket/storefront-backend/pkg/money"
)

// Totals are the order figures in integer cents. Prices include tax, so Tax
// is reported but never added to Total.
type Totals struct {
	SubtotalCents int `json:"subtotal_cents"`
	DiscountCents int `json:"discount_cents"`
	ShippingCents int `json:"shipping_cents"`
	TaxRate       int `json:"tax_rate"`
	TaxCents      int `json:"tax_cents"`
	TotalCents    int `json:"total_cents"`
}

// ComputeTotals prices a basket under the store rules.
func ComputeTotals(items []ItemInput, discountCents int, store config.StoreConfig) (Totals, error) {
	subtotal := 0
	for _, item := range items {
		if item.Quantity < 1 {
			return Totals{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
		}
		if item.UnitPriceCents < 0 {
			return Totals{}, pkgerrors.New(pkgerrors.CodeValidation, "unit price must not be negative")
		}
		subtotal += item.UnitPriceCents * item.Quantity
	}
	if discountCents < 0 || discountCents > subtotal {
		return Totals{}, pkgerrors.New(pkgerrors.CodeValidation, "discount must be between zero and the subtotal")
	}

	shipping := store.StandardShippingCents
	if subtotal >= store.FreeShippingThresholdCents {
		shipping = 0
	}
	return Totals{
		SubtotalCents: subtotal,
		DiscountCents: discountCents,
		ShippingCents: shipping,
		TaxRate:       store.TaxRatePercent,
		TaxCents:      money.Percent(subtotal-discountCents, store.TaxRatePercent),
		TotalCents:    subtotal - discountCents + shipping,
	}, nil
}
