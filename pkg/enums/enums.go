// Package enums holds the string enumerations persisted in the database and
// exchanged over the API.
package enums

import (
	"fmt"
	"slices"
)

func known[T ~string](v T, valid []T) bool {
	return slices.Contains(valid, v)
}

// parse matches value exactly; kind names the enum in the error.
func parse[T ~string](value string, valid []T, kind string) (T, error) {
	if i := slices.Index(valid, T(value)); i >= 0 {
		return valid[i], nil
	}
	return "", fmt.Errorf("invalid %s %q", kind, value)
}
