package stock

import (
	"strings"

	"github.com/google/uuid"
)

// VariantKey identifies a slot within one product. Nil means "no size" or
// "no color" and is a slot of its own.
type VariantKey struct {
	Size  *string `json:"size"`
	Color *string `json:"color"`
}

// NewVariantKey normalizes blank values to nil.
func NewVariantKey(size, color *string) VariantKey {
	return VariantKey{Size: normalize(size), Color: normalize(color)}
}

func normalize(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// Equal compares by value, treating nil as distinct from every string.
func (k VariantKey) Equal(other VariantKey) bool {
	return equalPtr(k.Size, other.Size) && equalPtr(k.Color, other.Color)
}

// String renders the key for logs and map lookups.
func (k VariantKey) String() string {
	return deref(k.Size, "-") + "/" + deref(k.Color, "-")
}

// id is a collision-free map key; "-" in String would clash with a real size "-".
func (k VariantKey) id() string {
	return marker(k.Size) + "\x00" + marker(k.Color)
}

func marker(v *string) string {
	if v == nil {
		return "\x01"
	}
	return "v" + *v
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func deref(v *string, fallback string) string {
	if v == nil {
		return fallback
	}
	return *v
}

// VariantQuantity is one entry of a bulk stock edit.
type VariantQuantity struct {
	Key      VariantKey
	Quantity int
}

// VariantChange records one applied write.
type VariantChange struct {
	Key      VariantKey `json:"key"`
	Previous int        `json:"previous"`
	Quantity int        `json:"quantity"`
}

// Restocked reports a 0 -> positive edge.
func (c VariantChange) Restocked() bool {
	return c.Previous == 0 && c.Quantity > 0
}

// BulkResult is returned by SetStock and BulkSet.
type BulkResult struct {
	ProductID          uuid.UUID       `json:"product_id"`
	TotalStock         int             `json:"total_stock"`
	Changes            []VariantChange `json:"changes"`
	Restocked          []VariantKey    `json:"restocked"`
	NotificationsFired int             `json:"notifications_fired"`
}
