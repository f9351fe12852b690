// Package stripe is the storefront's narrow view of the Stripe API: payment
// intent lookups for checkout and the webhook signing secret.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/fashionmarket/storefront-backend/pkg/config"
	"github.com/fashionmarket/storefront-backend/pkg/logger"
)

const defaultTimeout = 10 * time.Second

// keyPrefixes lists the secret and restricted key prefixes each environment accepts.
var keyPrefixes = map[string][]string{
	"test": {"sk_test_", "rk_test_"},
	"live": {"sk_live_", "rk_live_"},
}

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errSecretRequired   = errors.New("stripe webhook secret is required")
	errInvalidStripeEnv = errors.New(`stripe environment must be "test" or "live"`)
)

// intentLookup fetches one payment intent from Stripe.
type intentLookup func(ctx context.Context, id string) (*stripe.PaymentIntent, error)

// Client holds the Stripe SDK client and the webhook signing secret for one
// environment.
type Client struct {
	api           *stripe.Client
	lookup        intentLookup
	environment   string
	signingSecret string
	timeout       time.Duration
}

// PaymentIntent is the subset of a Stripe PaymentIntent checkout relies on.
type PaymentIntent struct {
	ID          string
	Status      string
	AmountCents int64
	Currency    string
	Email       string
	Metadata    map[string]string
}

func (p *PaymentIntent) Succeeded() bool {
	return p != nil && p.Status == string(stripe.PaymentIntentStatusSucceeded)
}

// FromStripe converts the SDK object, e.g. one decoded from a webhook event.
// Currencies come back upper-cased.
func FromStripe(pi *stripe.PaymentIntent) *PaymentIntent {
	if pi == nil {
		return nil
	}
	return &PaymentIntent{
		ID:          pi.ID,
		Status:      string(pi.Status),
		AmountCents: pi.Amount,
		Currency:    strings.ToUpper(string(pi.Currency)),
		Email:       pi.ReceiptEmail,
		Metadata:    pi.Metadata,
	}
}

// NewClient checks that the key matches the configured environment before
// building the SDK client. No request is made to Stripe.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env := cfg.Environment()
	prefixes, ok := keyPrefixes[env]
	if !ok {
		return nil, errInvalidStripeEnv
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	secret := strings.TrimSpace(cfg.Secret)
	switch {
	case apiKey == "":
		return nil, errAPIKeyRequired
	case secret == "":
		return nil, errSecretRequired
	case !slices.ContainsFunc(prefixes, func(p string) bool { return strings.HasPrefix(apiKey, p) }):
		return nil, fmt.Errorf("stripe %s environment needs a key starting with %s", env, strings.Join(prefixes, " or "))
	}

	api := stripe.NewClient(apiKey)
	c := &Client{
		api:           api,
		environment:   env,
		signingSecret: secret,
		timeout:       cfg.Timeout,
		lookup: func(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
			return api.V1PaymentIntents.Retrieve(ctx, id, &stripe.PaymentIntentRetrieveParams{})
		},
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "stripe_env", env), "stripe client ready")
	}
	return c, nil
}

// PaymentIntent fetches a payment intent within the configured timeout.
func (c *Client) PaymentIntent(ctx context.Context, id string) (*PaymentIntent, error) {
	if c == nil || c.lookup == nil {
		return nil, errors.New("stripe client not initialized")
	}
	if id = strings.TrimSpace(id); id == "" {
		return nil, errors.New("payment intent id is required")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	pi, err := c.lookup(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("retrieve payment intent %s: %w", id, err)
	}
	return FromStripe(pi), nil
}

func (c *Client) API() *stripe.Client {
	if c == nil {
		return nil
	}
	return c.api
}

func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret is the webhook endpoint secret used to verify signatures.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}
