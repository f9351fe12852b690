package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fashionmarket/storefront-backend/pkg/config"
	"github.com/fashionmarket/storefront-backend/pkg/db"
	"github.com/fashionmarket/storefront-backend/pkg/db/models"
	"github.com/fashionmarket/storefront-backend/pkg/enums"
	pkgerrors "github.com/fashionmarket/storefront-backend/pkg/errors"
	"github.com/fashionmarket/storefront-backend/pkg/humanid"
	"github.com/fashionmarket/storefront-backend/pkg/logger"
	"github.com/fashionmarket/storefront-backend/pkg/mailer"
	"github.com/fashionmarket/storefront-backend/pkg/metrics"
	"github.com/fashionmarket/storefront-backend/pkg/outbox"
	"github.com/fashionmarket/storefront-backend/pkg/outbox/payloads"
	"github.com/fashionmarket/storefront-backend/pkg/pagination"
)

const (
	orderNumberPrefix = "FM"
	defaultProvider   = "stripe"
)

// Service is the order ledger.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	TransitionStatus(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus) (*models.Order, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, params pagination.Params, filters ListFilters) (pagination.Page[models.Order], error)
}

// ServiceParams groups the order service dependencies. Numbers and Now are
// optional.
type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Outbox   outbox.Emitter
	Mailer   mailer.Sender
	Invoices InvoiceGenerator
	Store    config.StoreConfig
	Numbers  *humanid.Generator
	Metrics  *metrics.DomainMetrics
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outbox.Emitter
	mailer   mailer.Sender
	invoices InvoiceGenerator
	store    config.StoreConfig
	numbers  *humanid.Generator
	metrics  *metrics.DomainMetrics
	logg     *logger.Logger
	now      clock
	validate *validator.Validate
}

// NewService builds the order ledger with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case params.Mailer == nil:
		return nil, fmt.Errorf("mailer required")
	case params.Invoices == nil:
		return nil, fmt.Errorf("invoice generator required")
	}
	numbers := params.Numbers
	if numbers == nil {
		var err error
		numbers, err = humanid.New(orderNumberPrefix)
		if err != nil {
			return nil, err
		}
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
		repo:     params.Repo,
		tx:       params.Tx,
		outbox:   params.Outbox,
		mailer:   params.Mailer,
		invoices: params.Invoices,
		store:    params.Store,
		numbers:  numbers,
		metrics:  params.Metrics,
		logg:     logg,
		now:      now,
		validate: validator.New(),
	}, nil
}

// CreateOrder is idempotent on the payment reference. Only a newly created
// order triggers the confirmation email and invoice generation.
func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	input.CustomerEmail = strings.TrimSpace(input.CustomerEmail)
	input.CustomerName = strings.TrimSpace(input.CustomerName)
	input.PaymentReference = strings.TrimSpace(input.PaymentReference)
	if err := s.validate.Struct(input); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order")
	}
	totals, err := ComputeTotals(input.Items, input.DiscountCents, s.store)
	if err != nil {
		return nil, err
	}

	if existing, err := s.findByReference(ctx, input.PaymentReference); err != nil || existing != nil {
		return existing, err
	}

	var order *models.Order
	for attempt := 0; attempt < humanid.MaxAttempts; attempt++ {
		order, err = s.insert(ctx, input, totals)
		if err == nil {
			break
		}
		if db.IsUniqueViolation(err, "orders_payment_reference_key", "orders.payment_reference") {
			return s.findByReference(ctx, input.PaymentReference)
		}
		if !db.IsUniqueViolation(err, "orders_order_number_key", "orders.order_number") {
			if pkgerrors.As(err) == nil {
				err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
			}
			return nil, err
		}
	}
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order number generation exhausted")
	}

	s.metrics.OrderCreated()
	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(logCtx, "order created "+order.OrderNumber)

	s.afterCreate(logCtx, order)
	return order, nil
}

func (s *service) findByReference(ctx context.Context, reference string) (*models.Order, error) {
	existing, err := s.repo.FindByPaymentReference(ctx, reference)
	if err == nil {
		return existing, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by payment reference")
}

func (s *service) insert(ctx context.Context, input CreateOrderInput, totals Totals) (*models.Order, error) {
	number, err := s.numbers.Allocate(ctx, s.repo.OrderNumberExists, "order number")
	if err != nil {
		return nil, err
	}
	paidAt := s.now().UTC()
	if input.PaidAt != nil {
		paidAt = input.PaidAt.UTC()
	}
	provider := input.PaymentProvider
	if provider == "" {
		provider = defaultProvider
	}

	order := &models.Order{
		ID:               uuid.New(),
		OrderNumber:      number,
		UserID:           input.UserID,
		CustomerEmail:    input.CustomerEmail,
		CustomerName:     input.CustomerName,
		Status:           enums.OrderStatusPaid,
		SubtotalCents:    totals.SubtotalCents,
		DiscountCents:    totals.DiscountCents,
		ShippingCents:    totals.ShippingCents,
		TaxCents:         totals.TaxCents,
		TaxRate:          totals.TaxRate,
		TotalCents:       totals.TotalCents,
		Currency:         strings.ToUpper(s.store.Currency),
		ShippingAddress:  input.ShippingAddress,
		PaymentReference: input.PaymentReference,
		PaymentProvider:  provider,
		PaidAt:           &paidAt,
	}
	for _, item := range input.Items {
		order.Items = append(order.Items, models.OrderItem{
			ID:             uuid.New(),
			OrderID:        order.ID,
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			UnitPriceCents: item.UnitPriceCents,
			Quantity:       item.Quantity,
			Size:           item.Size,
			Color:          item.Color,
			LineTotalCents: item.UnitPriceCents * item.Quantity,
		})
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderCreatedEvent{
				OrderID:          order.ID,
				OrderNumber:      order.OrderNumber,
				CustomerEmail:    order.CustomerEmail,
				TotalCents:       order.TotalCents,
				Currency:         order.Currency,
				PaymentReference: order.PaymentReference,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// afterCreate runs once the order is committed. Neither step can fail the
// order: the email is best-effort and a missing invoice is picked up by the
// reconcile job.
func (s *service) afterCreate(ctx context.Context, order *models.Order) {
	if err := s.mailer.Send(ctx, confirmationMessage(*order)); err != nil {
		s.logg.Warn(ctx, "order confirmation email failed: "+err.Error())
	}

	if _, err := s.invoices.GenerateInvoice(ctx, order.ID); err != nil {
		s.metrics.InvoiceFailed()
		s.logg.Error(ctx, "invoice generation failed", err)
		emitErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventInvoiceGenerationFailed,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Data: payloads.InvoiceGenerationFailedEvent{
					OrderID:  order.ID,
					Error:    err.Error(),
					FailedAt: s.now().UTC(),
				},
			})
		})
		if emitErr != nil {
			s.logg.Error(ctx, "record invoice failure", emitErr)
		}
	}
}

// TransitionStatus moves an order along its lifecycle and stamps the
// matching timestamp.
func (s *service) TransitionStatus(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !to.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown order status %q", to)
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.LockByID(ctx, orderID)
		if err != nil {
			return mapLookupErr(err, "load order")
		}
		from := order.Status
		if !from.CanTransitionTo(to) {
			return pkgerrors.Newf(pkgerrors.CodePreconditionFailed, "cannot move order from %s to %s", from, to).
				WithDetails(map[string]any{"from": from, "to": to})
		}

		at := s.now().UTC()
		updates := map[string]any{"status": to, "updated_at": at}
		if column := timestampColumn(to); column != "" {
			updates[column] = at
		}
		if err := repo.UpdateStatus(ctx, orderID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:   orderID,
				From:      from,
				To:        to,
				ChangedAt: at,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, orderID)
}

func timestampColumn(status enums.OrderStatus) string {
	switch status {
	case enums.OrderStatusPaid:
		return "paid_at"
	case enums.OrderStatusShipped:
		return "shipped_at"
	case enums.OrderStatusDelivered:
		return "delivered_at"
	case enums.OrderStatusCancelled:
		return "cancelled_at"
	case enums.OrderStatusRefunded:
		return "refunded_at"
	default:
		return ""
	}
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupErr(err, "load order")
	}
	return order, nil
}

// GetForUser hides other customers' orders behind NotFound.
func (s *service) GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Order, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.UserID == nil || *order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, params pagination.Params, filters ListFilters) (pagination.Page[models.Order], error) {
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return pagination.Page[models.Order]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	page, err := s.repo.List(ctx, params, filters)
	if err != nil {
		return pagination.Page[models.Order]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return page, nil
}

func mapLookupErr(err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
