package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/fashionmarket/storefront-backend/api/responses"
	pkgerrors "github.com/fashionmarket/storefront-backend/pkg/errors"
	"github.com/fashionmarket/storefront-backend/pkg/logger"
)

// maxPayloadBytes matches the limit Stripe documents for event bodies.
const maxPayloadBytes = 64 << 10

const signatureHeader = "Stripe-Signature"

type EventHandler interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type eventGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type signingSecretSource interface {
	SigningSecret() string
}

// Ack is the body returned to Stripe for every accepted delivery.
type Ack struct {
	Received  bool   `json:"received"`
	EventID   string `json:"event_id"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

type stripeWebhook struct {
	events EventHandler
	secret signingSecretSource
	guard  eventGuard
	logg   *logger.Logger
}

// StripeWebhook verifies payment events and hands them to the handler once per
// event id. A failed handler releases the id so Stripe's retry is processed.
func StripeWebhook(events EventHandler, secret signingSecretSource, guard eventGuard, logg *logger.Logger) http.HandlerFunc {
	if logg == nil {
		logg = logger.Nop()
	}
	h := &stripeWebhook{events: events, secret: secret, guard: guard, logg: logg}
	return h.serve
}

func (h *stripeWebhook) serve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.events == nil || h.secret == nil || h.guard == nil {
		responses.WriteError(ctx, h.logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe webhook not configured"))
		return
	}

	event, err := h.verify(r)
	if err != nil {
		responses.WriteError(ctx, h.logg, w, err)
		return
	}
	ctx = h.logg.WithFields(ctx, map[string]any{
		"stripe_event_id":   event.ID,
		"stripe_event_type": string(event.Type),
	})

	seen, err := h.guard.CheckAndMark(ctx, event.ID)
	if err != nil {
		responses.WriteError(ctx, h.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record stripe event"))
		return
	}
	if seen {
		h.logg.Debug(ctx, "duplicate stripe delivery acknowledged")
		responses.WriteSuccess(w, Ack{Received: true, EventID: event.ID, Duplicate: true})
		return
	}

	if err := h.events.HandleEvent(ctx, &event); err != nil {
		if delErr := h.guard.Delete(ctx, event.ID); delErr != nil {
			h.logg.Error(ctx, "release stripe event marker", delErr)
		}
		responses.WriteError(ctx, h.logg, w, err)
		return
	}

	h.logg.Info(ctx, "stripe event processed")
	responses.WriteSuccess(w, Ack{Received: true, EventID: event.ID})
}

func (h *stripeWebhook) verify(r *http.Request) (stripe.Event, error) {
	signature := r.Header.Get(signatureHeader)
	if signature == "" {
		return stripe.Event{}, pkgerrors.New(pkgerrors.CodeValidation, "stripe signature missing")
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes+1))
	if err != nil {
		return stripe.Event{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read stripe payload")
	}
	if len(payload) > maxPayloadBytes {
		return stripe.Event{}, pkgerrors.New(pkgerrors.CodeValidation, "stripe payload too large")
	}

	event, err := webhook.ConstructEvent(payload, signature, h.secret.SigningSecret())
	if err != nil {
		return stripe.Event{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "verify stripe signature")
	}
	if event.ID == "" {
		return stripe.Event{}, pkgerrors.New(pkgerrors.CodeValidation, "stripe event id missing")
	}
	return event, nil
}
