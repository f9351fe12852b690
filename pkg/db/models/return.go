package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/fashionmarket/storefront-backend/pkg/enums"
)

// Return is a customer return request against a delivered order.
type Return struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ReturnNumber      string             `gorm:"column:return_number;not null;uniqueIndex"`
	OrderID           uuid.UUID          `gorm:"column:order_id;type:uuid;not null"`
	UserID            uuid.UUID          `gorm:"column:user_id;type:uuid;not null"`
	Status            enums.ReturnStatus `gorm:"column:status;not null;default:'requested'"`
	Reason            enums.ReturnReason `gorm:"column:reason;not null"`
	CustomerNotes     *string            `gorm:"column:customer_notes"`
	AdminNotes        *string            `gorm:"column:admin_notes"`
	RefundAmountCents int                `gorm:"column:refund_amount_cents;not null"`
	IncludesShipping  bool               `gorm:"column:includes_shipping;not null;default:false"`
	RequestedAt       time.Time          `gorm:"column:requested_at;not null"`
	ResolvedAt        *time.Time         `gorm:"column:resolved_at"`
	Items             []ReturnItem       `gorm:"foreignKey:ReturnID"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// ReturnItem references a returned quantity of one order item.
type ReturnItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ReturnID       uuid.UUID `gorm:"column:return_id;type:uuid;not null"`
	OrderItemID    uuid.UUID `gorm:"column:order_item_id;type:uuid;not null"`
	Quantity       int       `gorm:"column:quantity;not null"`
	UnitPriceCents int       `gorm:"column:unit_price_cents;not null"`
}
