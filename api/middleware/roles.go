package middleware

import (
	"net/http"
	"slices"

	"github.com/fashionmarket/storefront-backend/api/responses"
	"github.com/fashionmarket/storefront-backend/pkg/enums"
	pkgerrors "github.com/fashionmarket/storefront-backend/pkg/errors"
	"github.com/fashionmarket/storefront-backend/pkg/logger"
)

// RequireRole must run after Auth. Anonymous callers get 401, authenticated
// callers outside roles get 403.
func RequireRole(logg *logger.Logger, roles ...enums.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
				return
			}
			if !slices.Contains(roles, p.Role) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Newf(pkgerrors.CodeForbidden, "role %s may not access this resource", p.Role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
