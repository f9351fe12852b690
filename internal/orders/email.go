package orders

import (
	"fmt"
	"strings"

	"github.com/fashionmarket/storefront-backend/pkg/db/models"
	"github.com/fashionmarket/storefront-backend/pkg/mailer"
	"github.com/fashionmarket/storefront-backend/pkg/money"
)

func confirmationMessage(order models.Order) mailer.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\nThanks for your order %s. Here is what you bought:\n\n", order.CustomerName, order.OrderNumber)
	for _, item := range order.Items {
		name := item.ProductName
		var variant []string
		if item.Size != nil {
			variant = append(variant, *item.Size)
		}
		if item.Color != nil {
			variant = append(variant, *item.Color)
		}
		if len(variant) > 0 {
			name += " (" + strings.Join(variant, " / ") + ")"
		}
		fmt.Fprintf(&b, "  %d x %s  %s\n", item.Quantity, name, money.Format(item.LineTotalCents, order.Currency))
	}
	b.WriteString("\n")
	if order.DiscountCents > 0 {
		fmt.Fprintf(&b, "Discount: -%s\n", money.Format(order.DiscountCents, order.Currency))
	}
	fmt.Fprintf(&b, "Shipping: %s\n", money.Format(order.ShippingCents, order.Currency))
	fmt.Fprintf(&b, "Total: %s (VAT %d%% included: %s)\n\n", money.Format(order.TotalCents, order.Currency), order.TaxRate, money.Format(order.TaxCents, order.Currency))
	b.WriteString("Shipping to:\n")
	for _, line := range order.ShippingAddress.Lines() {
		b.WriteString("  " + line + "\n")
	}
	b.WriteString("\nFashionMarket")

	return mailer.Message{
		To:      order.CustomerEmail,
		ToName:  order.CustomerName,
		Subject: "Your FashionMarket order " + order.OrderNumber,
		Body:    b.String(),
	}
}
