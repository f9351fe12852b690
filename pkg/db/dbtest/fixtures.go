package dbtest

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fashionmarket/storefront-backend/pkg/db/models"
	"github.com/fashionmarket/storefront-backend/pkg/enums"
	"github.com/fashionmarket/storefront-backend/pkg/types"
)

// CreateProduct inserts an active product with the given axes.
func CreateProduct(t *testing.T, conn *gorm.DB, name string, priceCents int, sizes, colors []string) *models.Product {
	t.Helper()
	if sizes == nil {
		sizes = []string{}
	}
	if colors == nil {
		colors = []string{}
	}
	product := &models.Product{
		ID:         uuid.New(),
		Name:       name,
		Slug:       strings.ToLower(strings.ReplaceAll(name, " ", "-")) + "-" + uuid.NewString()[:8],
		PriceCents: priceCents,
		Sizes:      pq.StringArray(sizes),
		Colors:     pq.StringArray(colors),
		IsActive:   true,
	}
	require.NoError(t, conn.Create(product).Error)
	return product
}

// OrderLine is one item of a fixture order.
type OrderLine struct {
	Product   *models.Product
	Quantity  int
	Size      *string
	Color     *string
	UnitPrice int
}

// CreateOrder inserts a paid order with the given lines. Totals follow the
// checkout rules for a 21% rate and 499 shipping below 10000.
func CreateOrder(t *testing.T, conn *gorm.DB, userID *uuid.UUID, discount int, lines ...OrderLine) *models.Order {
	t.Helper()
	paidAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	order := &models.Order{
		ID:            uuid.New(),
		OrderNumber:   "FM-" + strings.ToUpper(uuid.NewString()[:6]),
		UserID:        userID,
		CustomerEmail: "buyer@example.com",
		CustomerName:  "Mia Buyer",
		Status:        enums.OrderStatusPaid,
		Currency:      "EUR",
		TaxRate:       21,
		ShippingAddress: types.ShippingAddress{
			FullName:   "Mia Buyer",
			Line1:      "Calle Mayor 1",
			City:       "Madrid",
			PostalCode: "28013",
			Country:    "ES",
		},
		PaymentReference: "pi_" + uuid.NewString(),
		PaymentProvider:  "stripe",
		PaidAt:           &paidAt,
		DiscountCents:    discount,
		CreatedAt:        paidAt,
	}
	for _, line := range lines {
		price := line.UnitPrice
		if price == 0 {
			price = line.Product.PriceCents
		}
		item := models.OrderItem{
			ID:             uuid.New(),
			OrderID:        order.ID,
			ProductID:      line.Product.ID,
			ProductName:    line.Product.Name,
			UnitPriceCents: price,
			Quantity:       line.Quantity,
			Size:           line.Size,
			Color:          line.Color,
			LineTotalCents: price * line.Quantity,
		}
		order.Items = append(order.Items, item)
		order.SubtotalCents += item.LineTotalCents
	}
	if order.SubtotalCents < 10000 {
		order.ShippingCents = 499
	}
	base := order.SubtotalCents - discount
	order.TaxCents = (base*21 + 50) / 100
	order.TotalCents = base + order.ShippingCents
	require.NoError(t, conn.Create(order).Error)
	return order
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
