package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fashionmarket/storefront-backend/api/routes"
	"github.com/fashionmarket/storefront-backend/internal/checkout"
	"github.com/fashionmarket/storefront-backend/internal/documents"
	"github.com/fashionmarket/storefront-backend/internal/orders"
	"github.com/fashionmarket/storefront-backend/internal/restock"
	"github.com/fashionmarket/storefront-backend/internal/returns"
	"github.com/fashionmarket/storefront-backend/internal/stock"
	stripewebhook "github.com/fashionmarket/storefront-backend/internal/webhooks/stripe"
	"github.com/fashionmarket/storefront-backend/pkg/config"
	"github.com/fashionmarket/storefront-backend/pkg/db"
	"github.com/fashionmarket/storefront-backend/pkg/logger"
	"github.com/fashionmarket/storefront-backend/pkg/mailer"
	"github.com/fashionmarket/storefront-backend/pkg/metrics"
	"github.com/fashionmarket/storefront-backend/pkg/migrate"
	"github.com/fashionmarket/storefront-backend/pkg/outbox"
	"github.com/fashionmarket/storefront-backend/pkg/redis"
	pkgstripe "github.com/fashionmarket/storefront-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	mail, err := mailer.New(cfg.Mail, cfg.FeatureFlags.SendEmails, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap mailer", err)
		os.Exit(1)
	}

	deps, err := buildDependencies(cfg, logg, dbClient, redisClient, stripeClient, mail)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	addr := ":" + cfg.App.Port
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"addr":        addr,
		"serviceKind": cfg.Service.Kind,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server shut down gracefully")
	}
}

func buildDependencies(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	stripeClient *pkgstripe.Client,
	mail mailer.Sender,
) (routes.Dependencies, error) {
	conn := dbClient.DB()
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)
	domainMetrics := metrics.NewDomainMetrics(prometheus.DefaultRegisterer)

	stockRepo := stock.NewRepository(conn)
	restockSvc, err := restock.NewService(restock.ServiceParams{
		Repo:     restock.NewRepository(conn),
		Products: stockRepo,
		Tx:       dbClient,
		Outbox:   emitter,
		Mailer:   mail,
		Metrics:  domainMetrics,
		Logger:   logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	stockSvc, err := stock.NewService(stock.ServiceParams{
		Repo:      stockRepo,
		Tx:        dbClient,
		Restocker: restockSvc,
		Logger:    logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	docs, err := documents.NewService(documents.ServiceParams{
		Repo:    documents.NewRepository(conn),
		Tx:      dbClient,
		Outbox:  emitter,
		Metrics: domainMetrics,
		Logger:  logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Repo:     orders.NewRepository(conn),
		Tx:       dbClient,
		Outbox:   emitter,
		Mailer:   mail,
		Invoices: docs,
		Store:    cfg.Store,
		Metrics:  domainMetrics,
		Logger:   logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	returnsSvc, err := returns.NewService(returns.ServiceParams{
		Repo:      returns.NewRepository(conn),
		Orders:    ordersSvc,
		Documents: docs,
		Tx:        dbClient,
		Outbox:    emitter,
		Mailer:    mail,
		Store:     cfg.Store,
		Metrics:   domainMetrics,
		Logger:    logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	checkoutSvc, err := checkout.NewService(checkout.ServiceParams{
		Products: stockRepo,
		Orders:   ordersSvc,
		Payments: stripeClient,
		Store:    cfg.Store,
		Logger:   logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	webhookSvc, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Checkout: checkoutSvc,
		Logger:   logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	guard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Redis.IdempotencyTTL)
	if err != nil {
		return routes.Dependencies{}, err
	}

	return routes.Dependencies{
		DB:            dbClient,
		Redis:         redisClient,
		Stock:         stockSvc,
		Waitlist:      restockSvc,
		Checkout:      checkoutSvc,
		Orders:        ordersSvc,
		Returns:       returnsSvc,
		Documents:     docs,
		Stripe:        stripeClient,
		StripeWebhook: webhookSvc,
		WebhookGuard:  guard,
		Metrics:       metrics.Handler(prometheus.DefaultGatherer),
	}, nil
}
