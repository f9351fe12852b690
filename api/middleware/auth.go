package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/fashionmarket/storefront-backend/api/responses"
	pkgAuth "github.com/fashionmarket/storefront-backend/pkg/auth"
	"github.com/fashionmarket/storefront-backend/pkg/config"
	pkgerrors "github.com/fashionmarket/storefront-backend/pkg/errors"
	"github.com/fashionmarket/storefront-backend/pkg/logger"
)

const bearerScheme = "bearer"

// Auth requires a valid access token and stores its Principal on the context.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	if logg == nil {
		logg = logger.Nop()
	}
	verifier, verifierErr := pkgAuth.NewVerifier(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if verifierErr != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, verifierErr, "token verification unavailable"))
				return
			}
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="storefront"`)
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "bearer token required"))
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				reason := "invalid token"
				if errors.Is(err, pkgAuth.ErrTokenExpired) {
					reason = "token expired"
				}
				w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer realm="storefront", error="invalid_token", error_description=%q`, reason))
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, reason))
				return
			}

			ctx = WithPrincipal(ctx, Principal{UserID: claims.UserID, Email: claims.Email, Role: claims.Role})
			ctx = logg.WithUserID(ctx, claims.UserID.String())
			ctx = logg.WithActorRole(ctx, string(claims.Role))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken accepts only the Bearer scheme, case-insensitively.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
