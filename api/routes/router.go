package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fashionmarket/storefront-backend/api/controllers"
	webhookcontrollers "github.com/fashionmarket/storefront-backend/api/controllers/webhooks"
	"github.com/fashionmarket/storefront-backend/api/middleware"
	"github.com/fashionmarket/storefront-backend/internal/checkout"
	"github.com/fashionmarket/storefront-backend/internal/documents"
	"github.com/fashionmarket/storefront-backend/internal/orders"
	"github.com/fashionmarket/storefront-backend/internal/restock"
	"github.com/fashionmarket/storefront-backend/internal/returns"
	"github.com/fashionmarket/storefront-backend/internal/stock"
	stripewebhook "github.com/fashionmarket/storefront-backend/internal/webhooks/stripe"
	"github.com/fashionmarket/storefront-backend/pkg/config"
	"github.com/fashionmarket/storefront-backend/pkg/db"
	"github.com/fashionmarket/storefront-backend/pkg/enums"
	"github.com/fashionmarket/storefront-backend/pkg/logger"
	"github.com/fashionmarket/storefront-backend/pkg/redis"
	"github.com/fashionmarket/storefront-backend/pkg/stripe"
)

// Dependencies carries everything the HTTP surface is wired to. Redis, Stripe
// and the webhook pieces may be nil in tests; the middleware that needs them
// then passes requests through.
type Dependencies struct {
	DB    db.Pinger
	Redis *redis.Client

	Stock     stock.Service
	Waitlist  restock.Service
	Checkout  checkout.Service
	Orders    orders.Service
	Returns   returns.Service
	Documents documents.Service

	Stripe        *stripe.Client
	StripeWebhook *stripewebhook.Service
	WebhookGuard  *stripewebhook.IdempotencyGuard

	Metrics http.Handler
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Recoverer(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	var (
		idempotencyStore middleware.IdempotencyStore
		rateLimitStore   middleware.RateLimitStore
		ready            = map[string]controllers.Pinger{}
	)
	if deps.DB != nil {
		ready["db"] = deps.DB
	}
	if deps.Redis != nil {
		idempotencyStore = deps.Redis
		rateLimitStore = deps.Redis
		ready["redis"] = deps.Redis
	}

	waitlistPolicy := middleware.NewRateLimitPolicy(
		"waitlist",
		cfg.RateLimit.WaitlistWindow,
		cfg.RateLimit.WaitlistIPLimit,
		cfg.RateLimit.WaitlistEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, ready, logg))
	})
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.RateLimit(waitlistPolicy, rateLimitStore, logg)).
			Post("/waitlist", controllers.JoinWaitlist(deps.Waitlist, logg))

		if deps.StripeWebhook != nil && deps.Stripe != nil && deps.WebhookGuard != nil {
			r.Post("/webhooks/stripe", webhookcontrollers.StripeWebhook(deps.StripeWebhook, deps.Stripe, deps.WebhookGuard, logg))
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(idempotencyStore, logg))

			r.Post("/checkout/confirm", controllers.ConfirmCheckout(deps.Checkout, logg))
			r.Get("/orders/{orderId}", controllers.OrderDetail(deps.Orders, logg))
			r.Get("/orders/{orderId}/returns", controllers.OrderReturns(deps.Returns, logg))
			r.Post("/orders/{orderId}/returns", controllers.RequestReturn(deps.Returns, logg))
		})

		// Groups rather than sub-routers so the idempotency middleware sees
		// the full route pattern.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.RequireRole(logg, enums.RoleAdmin))
			r.Use(middleware.Idempotency(idempotencyStore, logg))

			r.Get("/admin/stock", controllers.StockOverview(deps.Stock, logg))
			r.Get("/admin/products/{productId}/stock", controllers.ProductStock(deps.Stock, logg))
			r.Put("/admin/products/{productId}/stock", controllers.UpdateProductStock(deps.Stock, logg))
			r.Get("/admin/products/{productId}/waitlist", controllers.ProductWaitlist(deps.Waitlist, logg))
			r.Get("/admin/orders", controllers.ListOrders(deps.Orders, logg))
			r.Post("/admin/orders/{orderId}/status", controllers.UpdateOrderStatus(deps.Orders, logg))
			r.Get("/admin/returns", controllers.ListReturns(deps.Returns, logg))
			r.Post("/admin/returns/{returnId}/approve", controllers.ApproveReturn(deps.Returns, logg))
			r.Post("/admin/returns/{returnId}/reject", controllers.RejectReturn(deps.Returns, logg))
			r.Get("/admin/invoices/{invoiceId}", controllers.InvoiceDetail(deps.Documents, logg))
			r.Get("/admin/credit-notes/{creditNoteId}", controllers.CreditNoteDetail(deps.Documents, logg))
		})
	})

	return r
}
