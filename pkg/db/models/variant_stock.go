package models

import (
	"time"

	"github.com/google/uuid"
)

// VariantStock is the quantity on hand for one (product, size, color) slot.
// A nil Size or Color is its own slot, distinct from every concrete value.
type VariantStock struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Size      *string   `gorm:"column:size"`
	Color     *string   `gorm:"column:color"`
	Quantity  int       `gorm:"column:quantity;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (VariantStock) TableName() string { return "variant_stock" }
