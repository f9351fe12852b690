package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique constraint violation.
// With no names any unique violation matches; otherwise one of names must
// appear as the Postgres constraint name or inside the driver message
// (SQLite reports "table.column" or the index name).
func IsUniqueViolation(err error, names ...string) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return false
		}
		return matchesAny(pgErr.ConstraintName, names, func(have, want string) bool { return have == want })
	}

	msg := err.Error()
	unique := strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
	if !unique {
		return false
	}
	return matchesAny(msg, names, strings.Contains)
}

func matchesAny(have string, names []string, match func(have, want string) bool) bool {
	if len(names) == 0 {
		return true
	}
	for _, name := range names {
		if name != "" && match(have, name) {
			return true
		}
	}
	return false
}
