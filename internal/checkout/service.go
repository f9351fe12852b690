package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fashionmarket/storefront-backend/internal/orders"
	"github.com/fashionmarket/storefront-backend/internal/stock"
	"github.com/fashionmarket/storefront-backend/pkg/checkout"
	"github.com/fashionmarket/storefront-backend/pkg/config"
	"github.com/fashionmarket/storefront-backend/pkg/db/models"
	pkgerrors "github.com/fashionmarket/storefront-backend/pkg/errors"
	"github.com/fashionmarket/storefront-backend/pkg/logger"
	pkgstripe "github.com/fashionmarket/storefront-backend/pkg/stripe"
	"github.com/fashionmarket/storefront-backend/pkg/types"
)

// PaymentIntent metadata keys written by the storefront when it creates the
// intent.
const (
	MetaUserID          = "user_id"
	MetaCustomerEmail   = "customer_email"
	MetaCustomerName    = "customer_name"
	MetaCart            = "cart"
	MetaShippingAddress = "shipping_address"
	MetaDiscountCents   = "discount_cents"
)

type productLoader interface {
	FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type orderCreator interface {
	CreateOrder(ctx context.Context, input orders.CreateOrderInput) (*models.Order, error)
}

// PaymentVerifier looks a PaymentIntent up with the provider.
type PaymentVerifier interface {
	PaymentIntent(ctx context.Context, id string) (*pkgstripe.PaymentIntent, error)
}

// CartLine is one storefront cart entry.
type CartLine struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Size      *string   `json:"size,omitempty"`
	Color     *string   `json:"color,omitempty"`
}

// Quote is a priced cart.
type Quote struct {
	Items  []orders.ItemInput `json:"-"`
	Totals orders.Totals      `json:"totals"`
}

// ConfirmInput is the customer's post-payment confirmation.
type ConfirmInput struct {
	UserID          *uuid.UUID
	CustomerEmail   string
	CustomerName    string
	PaymentIntentID string
	Lines           []CartLine
	ShippingAddress types.ShippingAddress
	DiscountCents   int
}

// Service turns confirmed payments into orders.
type Service interface {
	Quote(ctx context.Context, lines []CartLine, discountCents int) (*Quote, error)
	Confirm(ctx context.Context, input ConfirmInput) (*models.Order, error)
	CompletePayment(ctx context.Context, intent *pkgstripe.PaymentIntent) (*models.Order, error)
}

// ServiceParams groups the checkout dependencies.
type ServiceParams struct {
	Products productLoader
	Orders   orderCreator
	Payments PaymentVerifier
	Store    config.StoreConfig
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	products productLoader
	orders   orderCreator
	payments PaymentVerifier
	store    config.StoreConfig
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order creator required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment verifier required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		products: params.Products,
		orders:   params.Orders,
		payments: params.Payments,
		store:    params.Store,
		logg:     logg,
		now:      now,
	}, nil
}

// Quote prices the cart at current catalog prices.
func (s *service) Quote(ctx context.Context, lines []CartLine, discountCents int) (*Quote, error) {
	checks := make([]checkout.LineCheck, 0, len(lines))
	items := make([]orders.ItemInput, 0, len(lines))
	for i, line := range lines {
		check := checkout.LineCheck{Index: i, ProductID: line.ProductID, Quantity: line.Quantity}
		product, err := s.products.FindProduct(ctx, line.ProductID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			checks = append(checks, check)
			continue
		case err != nil:
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		key := stock.NewVariantKey(line.Size, line.Color)
		check.Found = true
		check.Active = product.IsActive
		check.ProductName = product.Name
		check.VariantErr = stock.VariantProblem(*product, key)
		checks = append(checks, check)

		items = append(items, orders.ItemInput{
			ProductID:      product.ID,
			ProductName:    product.Name,
			UnitPriceCents: product.PriceCents,
			Quantity:       line.Quantity,
			Size:           key.Size,
			Color:          key.Color,
		})
	}
	if err := checkout.ValidateLines(checks); err != nil {
		return nil, err
	}
	totals, err := orders.ComputeTotals(items, discountCents, s.store)
	if err != nil {
		return nil, err
	}
	return &Quote{Items: items, Totals: totals}, nil
}

// Confirm verifies the PaymentIntent with Stripe before creating the order.
func (s *service) Confirm(ctx context.Context, input ConfirmInput) (*models.Order, error) {
	intentID := strings.TrimSpace(input.PaymentIntentID)
	if intentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment_intent_id is required")
	}
	quote, err := s.Quote(ctx, input.Lines, input.DiscountCents)
	if err != nil {
		return nil, err
	}
	intent, err := s.payments.PaymentIntent(ctx, intentID)
	if err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify payment")
		}
		return nil, err
	}
	if err := s.checkIntent(intent, quote.Totals); err != nil {
		return nil, err
	}
	return s.create(ctx, input, intent, quote)
}

// CompletePayment handles a signed payment_intent.succeeded event. The cart
// and customer travel in the intent metadata.
func (s *service) CompletePayment(ctx context.Context, intent *pkgstripe.PaymentIntent) (*models.Order, error) {
	if intent == nil || intent.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent required")
	}
	input, err := InputFromMetadata(intent)
	if err != nil {
		return nil, err
	}
	quote, err := s.Quote(ctx, input.Lines, input.DiscountCents)
	if err != nil {
		return nil, err
	}
	if err := s.checkIntent(intent, quote.Totals); err != nil {
		return nil, err
	}
	return s.create(ctx, input, intent, quote)
}

func (s *service) checkIntent(intent *pkgstripe.PaymentIntent, totals orders.Totals) error {
	if !intent.Succeeded() {
		return pkgerrors.Newf(pkgerrors.CodePreconditionFailed, "payment %s has not succeeded", intent.ID).
			WithDetails(map[string]any{"status": intent.Status})
	}
	if intent.AmountCents != int64(totals.TotalCents) {
		return pkgerrors.New(pkgerrors.CodePreconditionFailed, "paid amount does not match the order total").
			WithDetails(map[string]any{"paid_cents": intent.AmountCents, "total_cents": totals.TotalCents})
	}
	if intent.Currency != "" && !strings.EqualFold(intent.Currency, s.store.Currency) {
		return pkgerrors.Newf(pkgerrors.CodePreconditionFailed, "payment currency %s does not match %s", intent.Currency, s.store.Currency)
	}
	return nil
}

func (s *service) create(ctx context.Context, input ConfirmInput, intent *pkgstripe.PaymentIntent, quote *Quote) (*models.Order, error) {
	email := input.CustomerEmail
	if strings.TrimSpace(email) == "" {
		email = intent.Email
	}
	name := input.CustomerName
	if strings.TrimSpace(name) == "" {
		name = input.ShippingAddress.FullName
	}
	paidAt := s.now().UTC()
	return s.orders.CreateOrder(ctx, orders.CreateOrderInput{
		UserID:           input.UserID,
		CustomerEmail:    email,
		CustomerName:     name,
		Items:            quote.Items,
		ShippingAddress:  input.ShippingAddress,
		PaymentReference: intent.ID,
		PaymentProvider:  "stripe",
		DiscountCents:    quote.Totals.DiscountCents,
		PaidAt:           &paidAt,
	})
}

// InputFromMetadata decodes the checkout metadata attached to an intent.
func InputFromMetadata(intent *pkgstripe.PaymentIntent) (ConfirmInput, error) {
	meta := intent.Metadata
	input := ConfirmInput{
		PaymentIntentID: intent.ID,
		CustomerEmail:   strings.TrimSpace(meta[MetaCustomerEmail]),
		CustomerName:    strings.TrimSpace(meta[MetaCustomerName]),
	}
	if raw := strings.TrimSpace(meta[MetaUserID]); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return ConfirmInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user_id metadata")
		}
		input.UserID = &id
	}
	if err := decodeMeta(meta, MetaCart, &input.Lines); err != nil {
		return ConfirmInput{}, err
	}
	if err := decodeMeta(meta, MetaShippingAddress, &input.ShippingAddress); err != nil {
		return ConfirmInput{}, err
	}
	if raw := strings.TrimSpace(meta[MetaDiscountCents]); raw != "" {
		discount, err := strconv.Atoi(raw)
		if err != nil {
			return ConfirmInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid discount_cents metadata")
		}
		input.DiscountCents = discount
	}
	return input, nil
}

func decodeMeta(meta map[string]string, key string, dest any) error {
	raw := strings.TrimSpace(meta[key])
	if raw == "" {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "payment metadata %s is missing", key)
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment metadata "+key)
	}
	return nil
}
