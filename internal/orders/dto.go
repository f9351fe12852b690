package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/fashionmarket/storefront-backend/pkg/enums"
	"github.com/fashionmarket/storefront-backend/pkg/types"
)

// ItemInput is one purchased line as priced at checkout.
type ItemInput struct {
	ProductID      uuid.UUID `validate:"required"`
	ProductName    string    `validate:"required"`
	UnitPriceCents int       `validate:"gte=0"`
	Quantity       int       `validate:"gte=1"`
	Size           *string
	Color          *string
}

// CreateOrderInput captures a confirmed payment.
type CreateOrderInput struct {
	UserID           *uuid.UUID
	CustomerEmail    string      `validate:"required,email"`
	CustomerName     string      `validate:"required"`
	Items            []ItemInput `validate:"required,min=1,dive"`
	ShippingAddress  types.ShippingAddress
	PaymentReference string `validate:"required"`
	PaymentProvider  string
	DiscountCents    int `validate:"gte=0"`
	PaidAt           *time.Time
}

// ListFilters narrow the admin and customer order lists.
type ListFilters struct {
	Status *enums.OrderStatus
	UserID *uuid.UUID
}
