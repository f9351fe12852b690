package validators

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/fashionmarket/storefront-backend/pkg/errors"
)

func queryValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

func invalidQuery(key, message string, err error, extra map[string]any) error {
	details := map[string]any{"field": key}
	for k, v := range extra {
		details[k] = v
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, message).WithDetails(details)
}

// QueryInt returns def when key is absent and rejects values outside [min, max].
func QueryInt(r *http.Request, key string, def, min, max int) (int, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return def, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidQuery(key, key+" must be an integer", err, nil)
	}
	if value < min || value > max {
		return 0, invalidQuery(key, key+" out of range", nil, map[string]any{"min": min, "max": max})
	}
	return value, nil
}

// QueryUUID returns nil when key is absent.
func QueryUUID(r *http.Request, key string) (*uuid.UUID, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, invalidQuery(key, "invalid "+key, err, nil)
	}
	return &id, nil
}

// QueryEnum parses key with one of the enums Parse functions. It returns
// nil when the key is absent.
func QueryEnum[T any](r *http.Request, key string, parse func(string) (T, error)) (*T, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return nil, nil
	}
	value, err := parse(raw)
	if err != nil {
		return nil, invalidQuery(key, "invalid "+key, err, nil)
	}
	return &value, nil
}
