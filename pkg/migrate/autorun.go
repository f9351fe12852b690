package migrate

import (
	"context"
	"fmt"

	"github.com/fashionmarket/storefront-backend/pkg/config"
	"github.com/fashionmarket/storefront-backend/pkg/db"
	"github.com/fashionmarket/storefront-backend/pkg/logger"
)

// MaybeRunDev brings a local database up to date from the embedded files.
// Anything other than dev with FASHIONMARKET_AUTO_MIGRATE set is a no-op;
// shared environments migrate through cmd/migrate.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	runner, err := NewRunner(sqlDB, EmbeddedSource())
	if err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	applied, err := runner.Up(ctx)
	for _, m := range applied {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"migration":   m.File,
			"duration_ms": m.Duration.Milliseconds(),
		}), "migration applied")
	}
	if err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	if len(applied) == 0 {
		logg.Debug(ctx, "schema already current")
	}
	return nil
}
