package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/fashionmarket/storefront-backend/pkg/db/models"
	pkgerrors "github.com/fashionmarket/storefront-backend/pkg/errors"
	pkgstripe "github.com/fashionmarket/storefront-backend/pkg/stripe"
)

type stubCheckout struct {
	complete func(ctx context.Context, intent *pkgstripe.PaymentIntent) (*models.Order, error)
	intents  []*pkgstripe.PaymentIntent
}

func (s *stubCheckout) CompletePayment(ctx context.Context, intent *pkgstripe.PaymentIntent) (*models.Order, error) {
	s.intents = append(s.intents, intent)
	if s.complete != nil {
		return s.complete(ctx, intent)
	}
	return &models.Order{ID: uuid.New()}, nil
}

func intentEvent(t *testing.T, eventType stripe.EventType, pi *stripe.PaymentIntent) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(pi)
	if err != nil {
		t.Fatalf("marshal intent: %v", err)
	}
	return &stripe.Event{ID: "evt_" + uuid.NewString(), Type: eventType, Data: &stripe.EventData{Raw: raw}}
}

func TestService_PaymentSucceededCompletesCheckout(t *testing.T) {
	checkout := &stubCheckout{}
	service, err := NewService(ServiceParams{Checkout: checkout})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}

	event := intentEvent(t, stripe.EventTypePaymentIntentSucceeded, &stripe.PaymentIntent{
		ID:       "pi_ok",
		Status:   stripe.PaymentIntentStatusSucceeded,
		Amount:   9899,
		Currency: stripe.CurrencyEUR,
		Metadata: map[string]string{"cart": "[]"},
	})
	if err := service.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(checkout.intents) != 1 {
		t.Fatalf("expected one completion, got %d", len(checkout.intents))
	}
	got := checkout.intents[0]
	if got.ID != "pi_ok" || got.AmountCents != 9899 || got.Currency != "EUR" || !got.Succeeded() {
		t.Fatalf("unexpected intent %+v", got)
	}
	if got.Metadata["cart"] != "[]" {
		t.Fatalf("expected metadata forwarded")
	}
}

func TestService_PropagatesCheckoutErrors(t *testing.T) {
	checkout := &stubCheckout{complete: func(context.Context, *pkgstripe.PaymentIntent) (*models.Order, error) {
		return nil, pkgerrors.New(pkgerrors.CodePreconditionFailed, "paid amount does not match the order total")
	}}
	service, _ := NewService(ServiceParams{Checkout: checkout})

	event := intentEvent(t, stripe.EventTypePaymentIntentSucceeded, &stripe.PaymentIntent{ID: "pi_bad"})
	err := service.HandleEvent(context.Background(), event)
	if !pkgerrors.IsCode(err, pkgerrors.CodePreconditionFailed) {
		t.Fatalf("expected precondition error, got %v", err)
	}
}

func TestService_IgnoresOtherEvents(t *testing.T) {
	checkout := &stubCheckout{}
	service, _ := NewService(ServiceParams{Checkout: checkout})

	failed := intentEvent(t, stripe.EventTypePaymentIntentPaymentFailed, &stripe.PaymentIntent{ID: "pi_f", Status: stripe.PaymentIntentStatusRequiresPaymentMethod})
	if err := service.HandleEvent(context.Background(), failed); err != nil {
		t.Fatalf("payment failed event: %v", err)
	}
	other := &stripe.Event{Type: stripe.EventTypeCustomerCreated, Data: &stripe.EventData{Raw: []byte(`{}`)}}
	if err := service.HandleEvent(context.Background(), other); err != nil {
		t.Fatalf("unhandled event: %v", err)
	}
	if len(checkout.intents) != 0 {
		t.Fatalf("expected no completions")
	}
}

func TestService_RejectsMalformedEvents(t *testing.T) {
	service, _ := NewService(ServiceParams{Checkout: &stubCheckout{}})
	if err := service.HandleEvent(context.Background(), nil); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation for nil event, got %v", err)
	}
	event := &stripe.Event{Type: stripe.EventTypePaymentIntentSucceeded, Data: &stripe.EventData{Raw: []byte(`{"id":""}`)}}
	if err := service.HandleEvent(context.Background(), event); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation for missing id, got %v", err)
	}
}

type memoryStore struct {
	mu   sync.Mutex
	keys map[string]bool
	err  error
}

func (m *memoryStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.keys, k)
	}
	return nil
}

func (m *memoryStore) WebhookEventKey(provider, eventID string) string {
	return "fm:webhook:" + provider + ":" + eventID
}

func TestIdempotencyGuard(t *testing.T) {
	store := &memoryStore{keys: map[string]bool{}}
	guard, err := NewIdempotencyGuard(store, time.Hour)
	if err != nil {
		t.Fatalf("guard: %v", err)
	}
	ctx := context.Background()

	seen, err := guard.CheckAndMark(ctx, "evt_1")
	if err != nil || seen {
		t.Fatalf("first delivery: seen=%v err=%v", seen, err)
	}
	if !store.keys["fm:webhook:stripe:evt_1"] {
		t.Fatalf("expected namespaced marker")
	}
	seen, _ = guard.CheckAndMark(ctx, "evt_1")
	if !seen {
		t.Fatalf("expected redelivery to be detected")
	}
	if err := guard.Delete(ctx, "evt_1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	seen, _ = guard.CheckAndMark(ctx, "evt_1")
	if seen {
		t.Fatalf("expected marker released")
	}

	if _, err := guard.CheckAndMark(ctx, ""); err == nil {
		t.Fatalf("expected error for empty id")
	}
	store.err = errors.New("redis down")
	if _, err := guard.CheckAndMark(ctx, "evt_2"); err == nil {
		t.Fatalf("expected store error")
	}
	if _, err := NewIdempotencyGuard(nil, time.Hour); err == nil {
		t.Fatalf("expected nil store rejected")
	}
}
