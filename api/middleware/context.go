package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/fashionmarket/storefront-backend/pkg/enums"
)

// Principal is the caller authenticated by Auth.
type Principal struct {
	UserID uuid.UUID
	Email  string
	Role   enums.Role
}

func (p Principal) IsAdmin() bool { return p.Role == enums.RoleAdmin }

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns false for anonymous requests.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalKey{}).(Principal)
	if !ok || p.UserID == uuid.Nil {
		return Principal{}, false
	}
	return p, true
}
