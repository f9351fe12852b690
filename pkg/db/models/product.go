package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Product is a catalog listing. Stock is a cache of the variant rows and is
// only authoritative for legacy products without any.
type Product struct {
	ID         uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name       string         `gorm:"column:name;not null"`
	Slug       string         `gorm:"column:slug;not null;uniqueIndex"`
	PriceCents int            `gorm:"column:price_cents;not null"`
	Stock      int            `gorm:"column:stock;not null;default:0"`
	Sizes      pq.StringArray `gorm:"column:sizes;type:text[];not null;default:'{}'"`
	Colors     pq.StringArray `gorm:"column:colors;type:text[];not null;default:'{}'"`
	IsActive   bool           `gorm:"column:is_active;not null;default:true"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
