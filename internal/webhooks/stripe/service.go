package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v84"

	"github.com/fashionmarket/storefront-backend/pkg/db/models"
	pkgerrors "github.com/fashionmarket/storefront-backend/pkg/errors"
	"github.com/fashionmarket/storefront-backend/pkg/logger"
	pkgstripe "github.com/fashionmarket/storefront-backend/pkg/stripe"
)

type paymentCompleter interface {
	CompletePayment(ctx context.Context, intent *pkgstripe.PaymentIntent) (*models.Order, error)
}

type ServiceParams struct {
	Checkout paymentCompleter
	Logger   *logger.Logger
}

type Service struct {
	checkout paymentCompleter
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Checkout == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "checkout service required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{checkout: params.Checkout, logg: logg}, nil
}

// HandleEvent dispatches a verified Stripe event. Unhandled types are
// acknowledged.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		intent, err := decodeIntent(event)
		if err != nil {
			return err
		}
		ctx = s.logg.WithField(ctx, "payment_intent_id", intent.ID)
		order, err := s.checkout.CompletePayment(ctx, intent)
		if err != nil {
			return err
		}
		ctx = s.logg.WithOrderID(ctx, order.ID.String())
		s.logg.Info(ctx, "order recorded from stripe payment")
		return nil
	case stripe.EventTypePaymentIntentPaymentFailed:
		intent, err := decodeIntent(event)
		if err != nil {
			return err
		}
		s.logg.Warn(s.logg.WithField(ctx, "payment_intent_id", intent.ID), fmt.Sprintf("payment failed (%s)", intent.Status))
		return nil
	default:
		return nil
	}
}

func decodeIntent(event *stripe.Event) (*pkgstripe.PaymentIntent, error) {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent event")
	}
	if pi.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id missing")
	}
	return pkgstripe.FromStripe(&pi), nil
}
