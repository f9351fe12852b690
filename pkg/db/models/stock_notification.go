package models

import (
	"time"

	"github.com/google/uuid"
)

// StockNotification is a restock waitlist entry.
type StockNotification struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID  uuid.UUID  `gorm:"column:product_id;type:uuid;not null"`
	Size       *string    `gorm:"column:size"`
	Color      *string    `gorm:"column:color"`
	Email      string     `gorm:"column:email;not null"`
	Notified   bool       `gorm:"column:notified;not null;default:false"`
	NotifiedAt *time.Time `gorm:"column:notified_at"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
}
