// Package authtest signs access tokens the way the storefront auth service does, for tests.
package authtest

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/fashionmarket/storefront-backend/pkg/auth"
	"github.com/fashionmarket/storefront-backend/pkg/config"
	"github.com/fashionmarket/storefront-backend/pkg/enums"
)

// Config is a JWT config suitable for tests.
var Config = config.JWTConfig{Secret: "test-secret", Issuer: "fashionmarket"}

// Token signs a token for userID with role, valid for one hour.
func Token(t *testing.T, cfg config.JWTConfig, userID uuid.UUID, role enums.Role) string {
	t.Helper()
	return sign(t, cfg, userID, role, time.Now().Add(time.Hour))
}

// ExpiredToken signs a token that expired a minute ago.
func ExpiredToken(t *testing.T, cfg config.JWTConfig, userID uuid.UUID, role enums.Role) string {
	t.Helper()
	return sign(t, cfg, userID, role, time.Now().Add(-time.Minute))
}

func sign(t *testing.T, cfg config.JWTConfig, userID uuid.UUID, role enums.Role, expiry time.Time) string {
	t.Helper()
	claims := auth.AccessTokenClaims{
		UserID: userID,
		Email:  "customer@example.com",
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Minute)),
			ExpiresAt: jwt.NewNumericDate(expiry),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
