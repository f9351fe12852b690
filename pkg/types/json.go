package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONList stores a slice as a jsonb array.
type JSONList[T any] []T

// Value marshals the list; nil is stored as an empty array.
func (l JSONList[T]) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	raw, err := json.Marshal([]T(l))
	if err != nil {
		return nil, fmt.Errorf("json list: marshal %w", err)
	}
	return string(raw), nil
}

// Scan decodes a stored jsonb array.
func (l *JSONList[T]) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}
	raw, ok := toBytes(value)
	if !ok {
		return fmt.Errorf("json list: unsupported scan type %T", value)
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("json list: decode %w", err)
	}
	*l = out
	return nil
}
