package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Percent returns amount*rate/100 rounded half away from zero.
func Percent(amountCents, ratePercent int) int {
	v := decimal.NewFromInt(int64(amountCents)).
		Mul(decimal.NewFromInt(int64(ratePercent))).
		Div(decimal.NewFromInt(100)).
		Round(0)
	return int(v.IntPart())
}

// Prorate returns total*part/whole rounded half away from zero. A zero whole
// yields zero.
func Prorate(totalCents, partCents, wholeCents int) int {
	if wholeCents == 0 {
		return 0
	}
	v := decimal.NewFromInt(int64(totalCents)).
		Mul(decimal.NewFromInt(int64(partCents))).
		Div(decimal.NewFromInt(int64(wholeCents))).
		Round(0)
	return int(v.IntPart())
}

// Format renders cents as "12.34 EUR".
func Format(cents int, currency string) string {
	amount := decimal.New(int64(cents), -2).StringFixed(2)
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return amount
	}
	return amount + " " + currency
}
