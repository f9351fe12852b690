package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/fashionmarket/storefront-backend/internal/restock"
	"github.com/fashionmarket/storefront-backend/internal/stock"
	"github.com/fashionmarket/storefront-backend/pkg/auth/authtest"
	"github.com/fashionmarket/storefront-backend/pkg/config"
	"github.com/fashionmarket/storefront-backend/pkg/db/models"
	"github.com/fashionmarket/storefront-backend/pkg/enums"
	"github.com/fashionmarket/storefront-backend/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubStockService struct {
	stock.Service
	filters []enums.StockFilter
}

func (s *stubStockService) Overview(ctx context.Context, filter enums.StockFilter) ([]stock.Summary, error) {
	s.filters = append(s.filters, filter)
	return []stock.Summary{}, nil
}

type stubWaitlistService struct {
	restock.Service
	calls int
}

func (s *stubWaitlistService) RequestNotification(ctx context.Context, input restock.RequestInput) (*models.StockNotification, bool, error) {
	s.calls++
	return &models.StockNotification{ID: uuid.New(), ProductID: input.ProductID, Email: input.Email}, true, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret: "secret",
			Issuer: "fashionmarket-test",
		},
	}
}

func newTestRouter(cfg *config.Config, deps Dependencies) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	if deps.DB == nil {
		deps.DB = stubPinger{}
	}
	return NewRouter(cfg, logg, deps)
}

func TestHealthLive(t *testing.T) {
	router := newTestRouter(testConfig(), Dependencies{})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if got := resp.Header().Get("X-FashionMarket-Env"); got != "test" {
		t.Fatalf("expected env header, got %q", got)
	}
}

func TestHealthReadyPingsDatabase(t *testing.T) {
	router := newTestRouter(testConfig(), Dependencies{})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", resp.Code, resp.Body.String())
	}
}

func TestCustomerRoutesRequireJWT(t *testing.T) {
	router := newTestRouter(testConfig(), Dependencies{})
	for _, target := range []string{
		"/api/v1/orders/" + uuid.NewString(),
		"/api/v1/orders/" + uuid.NewString() + "/returns",
	} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, target, nil))
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 without token got %d", target, resp.Code)
		}
	}

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/checkout/confirm", strings.NewReader("{}")))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for checkout without token got %d", resp.Code)
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	cfg := testConfig()
	stockSvc := &stubStockService{}
	router := newTestRouter(cfg, Dependencies{Stock: stockSvc})

	customer := httptest.NewRequest(http.MethodGet, "/api/v1/admin/stock", nil)
	customer.Header.Set("Authorization", "Bearer "+authtest.Token(t, cfg.JWT, uuid.New(), enums.RoleCustomer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, customer)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer got %d", resp.Code)
	}
	if len(stockSvc.filters) != 0 {
		t.Fatalf("stock service should not be reached by a customer")
	}

	admin := httptest.NewRequest(http.MethodGet, "/api/v1/admin/stock?filter=low", nil)
	admin.Header.Set("Authorization", "Bearer "+authtest.Token(t, cfg.JWT, uuid.New(), enums.RoleAdmin))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, admin)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin got %d (%s)", resp.Code, resp.Body.String())
	}
	if len(stockSvc.filters) != 1 || stockSvc.filters[0] != enums.StockFilterLow {
		t.Fatalf("expected one low-filter overview call, got %v", stockSvc.filters)
	}
}

func TestAdminRoutesRejectExpiredToken(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, Dependencies{Stock: &stubStockService{}})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/stock", nil)
	req.Header.Set("Authorization", "Bearer "+authtest.ExpiredToken(t, cfg.JWT, uuid.New(), enums.RoleAdmin))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token got %d", resp.Code)
	}
}

func TestWaitlistIsPublic(t *testing.T) {
	waitlist := &stubWaitlistService{}
	router := newTestRouter(testConfig(), Dependencies{Waitlist: waitlist})
	body := `{"product_id":"` + uuid.NewString() + `","size":"M","email":"ana@example.com"}`
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/waitlist", strings.NewReader(body)))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d (%s)", resp.Code, resp.Body.String())
	}
	if waitlist.calls != 1 {
		t.Fatalf("expected waitlist service called once, got %d", waitlist.calls)
	}
}

func TestStripeWebhookNotMountedWithoutStripe(t *testing.T) {
	router := newTestRouter(testConfig(), Dependencies{})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader("{}")))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without stripe wiring got %d", resp.Code)
	}
}

func TestMetricsRouteServesHandler(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "fashionmarket_orders_created_total 1\n")
	})
	router := newTestRouter(testConfig(), Dependencies{Metrics: metrics})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "orders_created_total") {
		t.Fatalf("expected metrics body, got %d %q", resp.Code, resp.Body.String())
	}
}
