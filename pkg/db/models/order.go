package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/fashionmarket/storefront-backend/pkg/enums"
	"github.com/fashionmarket/storefront-backend/pkg/types"
)

// Order is created once per confirmed payment and never deleted.
type Order struct {
	ID               uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber      string                `gorm:"column:order_number;not null;uniqueIndex"`
	UserID           *uuid.UUID            `gorm:"column:user_id;type:uuid"`
	CustomerEmail    string                `gorm:"column:customer_email;not null"`
	CustomerName     string                `gorm:"column:customer_name;not null"`
	Status           enums.OrderStatus     `gorm:"column:status;not null;default:'pending'"`
	SubtotalCents    int                   `gorm:"column:subtotal_cents;not null"`
	DiscountCents    int                   `gorm:"column:discount_cents;not null;default:0"`
	ShippingCents    int                   `gorm:"column:shipping_cents;not null;default:0"`
	TaxCents         int                   `gorm:"column:tax_cents;not null;default:0"`
	TaxRate          int                   `gorm:"column:tax_rate;not null"`
	TotalCents       int                   `gorm:"column:total_cents;not null"`
	Currency         string                `gorm:"column:currency;not null"`
	ShippingAddress  types.ShippingAddress `gorm:"column:shipping_address;type:jsonb;not null"`
	PaymentReference string                `gorm:"column:payment_reference;not null;uniqueIndex"`
	PaymentProvider  string                `gorm:"column:payment_provider;not null;default:'stripe'"`
	PaidAt           *time.Time            `gorm:"column:paid_at"`
	ShippedAt        *time.Time            `gorm:"column:shipped_at"`
	DeliveredAt      *time.Time            `gorm:"column:delivered_at"`
	CancelledAt      *time.Time            `gorm:"column:cancelled_at"`
	RefundedAt       *time.Time            `gorm:"column:refunded_at"`
	Items            []OrderItem           `gorm:"foreignKey:OrderID"`
	CreatedAt        time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem snapshots the product at purchase time.
type OrderItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID `gorm:"column:order_id;type:uuid;not null"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	ProductName    string    `gorm:"column:product_name;not null"`
	UnitPriceCents int       `gorm:"column:unit_price_cents;not null"`
	Quantity       int       `gorm:"column:quantity;not null"`
	Size           *string   `gorm:"column:size"`
	Color          *string   `gorm:"column:color"`
	LineTotalCents int       `gorm:"column:line_total_cents;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}
