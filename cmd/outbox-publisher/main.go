package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fashionmarket/storefront-backend/pkg/config"
	"github.com/fashionmarket/storefront-backend/pkg/db"
	"github.com/fashionmarket/storefront-backend/pkg/logger"
	"github.com/fashionmarket/storefront-backend/pkg/metrics"
	"github.com/fashionmarket/storefront-backend/pkg/migrate"
	"github.com/fashionmarket/storefront-backend/pkg/outbox"
	"github.com/fashionmarket/storefront-backend/pkg/outbox/registry"
	"github.com/fashionmarket/storefront-backend/pkg/pubsub"
)

const serviceKind = "outbox-publisher"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := 0
	if err := run(ctx); err != nil {
		code = 1
	}
	stop()
	os.Exit(code)
}

// run owns every resource so deferred closes happen before the process exits.
func run(ctx context.Context) error {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{ServiceName: serviceKind}).Error(ctx, "load config", err)
		return err
	}
	cfg.Service.Kind = serviceKind

	logg := logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	ctx = logg.WithFields(ctx, map[string]any{
		"env":   cfg.App.Env,
		"topic": cfg.PubSub.DomainTopic,
	})
	if envErr != nil {
		logg.Debug(ctx, "no .env file, using process environment")
	}

	fail := func(step string, err error) error {
		logg.Error(ctx, step, err)
		return fmt.Errorf("%s: %w", step, err)
	}

	conn, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fail("connect database", err)
	}
	defer closeQuietly(ctx, logg, "database", conn.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, conn); err != nil {
		return fail("dev migrations", err)
	}

	broker, err := pubsub.NewClient(ctx, cfg.PubSub, logg)
	if err != nil {
		return fail("connect pubsub", err)
	}
	defer closeQuietly(ctx, logg, "pubsub", broker.Close)

	routes, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return fail("build event routes", err)
	}

	svc, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            conn,
		PubSub:        broker,
		Repository:    outbox.NewRepository(conn.DB()),
		Registry:      routes,
		DLQRepository: outbox.NewDLQRepository(conn.DB()),
		Metrics:       metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return fail("build publisher", err)
	}

	metrics.Serve(ctx, cfg.App.MetricsAddr, prometheus.DefaultGatherer, logg)
	logg.Info(ctx, "outbox publisher started")

	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fail("outbox publisher stopped", err)
	}
	logg.Info(ctx, "outbox publisher stopped")
	return nil
}

func closeQuietly(ctx context.Context, logg *logger.Logger, what string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Warn(logg.WithField(ctx, "resource", what), "close failed: "+err.Error())
	}
}
