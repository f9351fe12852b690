package orders

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/fashionmarket/storefront-backend/internal/documents"
	"github.com/fashionmarket/storefront-backend/pkg/db"
	"github.com/fashionmarket/storefront-backend/pkg/db/dbtest"
	"github.com/fashionmarket/storefront-backend/pkg/db/models"
	"github.com/fashionmarket/storefront-backend/pkg/enums"
	pkgerrors "github.com/fashionmarket/storefront-backend/pkg/errors"
	"github.com/fashionmarket/storefront-backend/pkg/humanid"
	"github.com/fashionmarket/storefront-backend/pkg/mailer"
	"github.com/fashionmarket/storefront-backend/pkg/outbox"
	"github.com/fashionmarket/storefront-backend/pkg/pagination"
	"github.com/fashionmarket/storefront-backend/pkg/types"
)

type stubMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (m *stubMailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return m.err
}

type stubInvoices struct {
	generate func(ctx context.Context, orderID uuid.UUID) (*models.Invoice, error)
}

func (s stubInvoices) GenerateInvoice(ctx context.Context, orderID uuid.UUID) (*models.Invoice, error) {
	return s.generate(ctx, orderID)
}

type harness struct {
	conn *gorm.DB
	mail *stubMailer
	svc  Service
	now  time.Time
}

type option func(*ServiceParams)

func newHarness(t *testing.T, opts ...option) *harness {
	t.Helper()
	conn := dbtest.Open(t)
	h := &harness{conn: conn, mail: &stubMailer{}, now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	emitter := outbox.NewService(outbox.NewRepository(conn), nil)
	docs, err := documents.NewService(documents.ServiceParams{
		Repo:   documents.NewRepository(conn),
		Tx:     db.Wrap(conn),
		Outbox: emitter,
		Now:    func() time.Time { return h.now },
	})
	require.NoError(t, err)

	params := ServiceParams{
		Repo:     NewRepository(conn),
		Tx:       db.Wrap(conn),
		Outbox:   emitter,
		Mailer:   h.mail,
		Invoices: docs,
		Store:    testStore,
		Now:      func() time.Time { return h.now },
	}
	for _, opt := range opts {
		opt(&params)
	}
	h.svc, err = NewService(params)
	require.NoError(t, err)
	return h
}

func address() types.ShippingAddress {
	return types.ShippingAddress{FullName: "Mia Buyer", Line1: "Calle Mayor 1", City: "Madrid", PostalCode: "28013", Country: "ES"}
}

func (h *harness) input(t *testing.T, userID *uuid.UUID) CreateOrderInput {
	t.Helper()
	coat := dbtest.CreateProduct(t, h.conn, "Wool coat", 6900, []string{"M"}, nil)
	scarf := dbtest.CreateProduct(t, h.conn, "Scarf", 1500, nil, nil)
	return CreateOrderInput{
		UserID:        userID,
		CustomerEmail: "mia@example.com",
		CustomerName:  "Mia Buyer",
		Items: []ItemInput{
			{ProductID: coat.ID, ProductName: coat.Name, UnitPriceCents: 6900, Quantity: 1, Size: dbtest.Ptr("M")},
			{ProductID: scarf.ID, ProductName: scarf.Name, UnitPriceCents: 1500, Quantity: 2},
		},
		ShippingAddress:  address(),
		PaymentReference: "pi_" + uuid.NewString(),
		DiscountCents:    500,
	}
}

func countEvents(t *testing.T, conn *gorm.DB, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

func TestCreateOrderIssuesInvoiceMatchingTotals(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	order, err := h.svc.CreateOrder(ctx, h.input(t, nil))
	require.NoError(t, err)

	gen, _ := humanid.New("FM")
	assert.True(t, gen.Valid(order.OrderNumber), order.OrderNumber)
	assert.Equal(t, enums.OrderStatusPaid, order.Status)
	assert.Equal(t, 9900, order.SubtotalCents)
	assert.Equal(t, 499, order.ShippingCents)
	assert.Equal(t, 1974, order.TaxCents)
	assert.Equal(t, 9899, order.TotalCents)
	assert.Equal(t, "EUR", order.Currency)
	require.NotNil(t, order.PaidAt)

	var invoice models.Invoice
	require.NoError(t, h.conn.First(&invoice, "order_id = ?", order.ID).Error)
	assert.Equal(t, "FM-2026-000001", invoice.InvoiceNumber)
	assert.Equal(t, order.TotalCents, invoice.TotalCents)
	assert.Equal(t, invoice.TotalCents, invoice.SubtotalCents+invoice.TaxCents-invoice.DiscountCents)

	require.Len(t, h.mail.sent, 1)
	assert.Equal(t, "mia@example.com", h.mail.sent[0].To)
	assert.Contains(t, h.mail.sent[0].Body, "98.99 EUR")
	assert.Equal(t, int64(1), countEvents(t, h.conn, enums.EventOrderCreated))
	assert.Equal(t, int64(1), countEvents(t, h.conn, enums.EventInvoiceIssued))
}

func TestCreateOrderIsIdempotentOnPaymentReference(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	input := h.input(t, nil)

	first, err := h.svc.CreateOrder(ctx, input)
	require.NoError(t, err)
	second, err := h.svc.CreateOrder(ctx, input)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.OrderNumber, second.OrderNumber)
	assert.Len(t, h.mail.sent, 1, "redelivery must not re-send the confirmation")

	var orders int64
	require.NoError(t, h.conn.Model(&models.Order{}).Count(&orders).Error)
	assert.Equal(t, int64(1), orders)
}

func TestCreateOrderRetriesNumberCollisions(t *testing.T) {
	symbols := []string{"AAAAAA", "AAAAAA", "BBBBBB"}
	next := 0
	source := func() string { s := symbols[next]; next++; return s }
	h := newHarness(t, func(p *ServiceParams) { p.Numbers = humanid.NewWithSource("FM", source) })
	ctx := context.Background()

	first, err := h.svc.CreateOrder(ctx, h.input(t, nil))
	require.NoError(t, err)
	assert.Equal(t, "FM-AAAAAA", first.OrderNumber)

	second, err := h.svc.CreateOrder(ctx, h.input(t, nil))
	require.NoError(t, err)
	assert.Equal(t, "FM-BBBBBB", second.OrderNumber)
}

var orderNumberPattern = regexp.MustCompile(`^FM-[A-HJ-NP-Z2-9]{6}$`)

func TestConcurrentOrdersGetDistinctNumbers(t *testing.T) {
	const n = 12
	h := newHarness(t)
	inputs := make([]CreateOrderInput, n)
	for i := range inputs {
		inputs[i] = h.input(t, nil)
	}

	created := make([]*models.Order, n)
	var g errgroup.Group
	for i := range inputs {
		g.Go(func() error {
			order, err := h.svc.CreateOrder(context.Background(), inputs[i])
			created[i] = order
			return err
		})
	}
	require.NoError(t, g.Wait())

	seen := map[string]bool{}
	for _, order := range created {
		require.NotNil(t, order)
		assert.Regexp(t, orderNumberPattern, order.OrderNumber)
		assert.False(t, seen[order.OrderNumber], "duplicate order number %s", order.OrderNumber)
		seen[order.OrderNumber] = true
	}

	var invoices []models.Invoice
	require.NoError(t, h.conn.Order("invoice_number ASC").Find(&invoices).Error)
	require.Len(t, invoices, n)
	for i, invoice := range invoices {
		assert.Equal(t, documents.InvoiceNumber(2026, i+1), invoice.InvoiceNumber)
	}
}

func TestCreateOrderNumberExhaustion(t *testing.T) {
	h := newHarness(t, func(p *ServiceParams) {
		p.Numbers = humanid.NewWithSource("FM", func() string { return "AAAAAA" })
	})
	ctx := context.Background()
	_, err := h.svc.CreateOrder(ctx, h.input(t, nil))
	require.NoError(t, err)

	_, err = h.svc.CreateOrder(ctx, h.input(t, nil))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestCreateOrderSurvivesInvoiceFailure(t *testing.T) {
	h := newHarness(t, func(p *ServiceParams) {
		p.Invoices = stubInvoices{generate: func(context.Context, uuid.UUID) (*models.Invoice, error) {
			return nil, errors.New("sequence table locked")
		}}
	})
	h.mail.err = errors.New("mail down")

	order, err := h.svc.CreateOrder(context.Background(), h.input(t, nil))
	require.NoError(t, err)
	require.NotNil(t, order)

	assert.Equal(t, int64(1), countEvents(t, h.conn, enums.EventInvoiceGenerationFailed))
	var invoices int64
	require.NoError(t, h.conn.Model(&models.Invoice{}).Count(&invoices).Error)
	assert.Zero(t, invoices)
}

func TestCreateOrderValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	input := h.input(t, nil)
	input.CustomerEmail = "nope"
	_, err := h.svc.CreateOrder(ctx, input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	input = h.input(t, nil)
	input.Items = nil
	_, err = h.svc.CreateOrder(ctx, input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	input = h.input(t, nil)
	input.DiscountCents = 20000
	_, err = h.svc.CreateOrder(ctx, input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	input = h.input(t, nil)
	input.ShippingAddress.City = ""
	_, err = h.svc.CreateOrder(ctx, input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestTransitionStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order, err := h.svc.CreateOrder(ctx, h.input(t, nil))
	require.NoError(t, err)

	_, err = h.svc.TransitionStatus(ctx, order.ID, enums.OrderStatusShipped)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePreconditionFailed), "steps cannot be skipped")

	for _, next := range []enums.OrderStatus{enums.OrderStatusProcessing, enums.OrderStatusShipped, enums.OrderStatusDelivered} {
		h.now = h.now.Add(24 * time.Hour)
		order, err = h.svc.TransitionStatus(ctx, order.ID, next)
		require.NoError(t, err)
		assert.Equal(t, next, order.Status)
	}
	require.NotNil(t, order.ShippedAt)
	require.NotNil(t, order.DeliveredAt)
	assert.True(t, order.DeliveredAt.Equal(h.now), "delivered_at is stamped with the transition time")

	_, err = h.svc.TransitionStatus(ctx, order.ID, enums.OrderStatusCancelled)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePreconditionFailed), "delivered orders are final")
	assert.Equal(t, int64(3), countEvents(t, h.conn, enums.EventOrderStatusChanged))
}

func TestCancelBeforeDelivery(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order, err := h.svc.CreateOrder(ctx, h.input(t, nil))
	require.NoError(t, err)

	cancelled, err := h.svc.TransitionStatus(ctx, order.ID, enums.OrderStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)

	_, err = h.svc.TransitionStatus(ctx, uuid.New(), enums.OrderStatusCancelled)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestGetForUserHidesOtherCustomers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := uuid.New()
	order, err := h.svc.CreateOrder(ctx, h.input(t, &owner))
	require.NoError(t, err)

	got, err := h.svc.GetForUser(ctx, order.ID, owner)
	require.NoError(t, err)
	assert.Len(t, got.Items, 2)

	_, err = h.svc.GetForUser(ctx, order.ID, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestListPaginatesNewestFirst(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := uuid.New()
	for i := 0; i < 3; i++ {
		_, err := h.svc.CreateOrder(ctx, h.input(t, &owner))
		require.NoError(t, err)
	}
	_, err := h.svc.CreateOrder(ctx, h.input(t, nil))
	require.NoError(t, err)

	page, err := h.svc.List(ctx, pagination.Params{Limit: 2}, ListFilters{UserID: &owner})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.NotEmpty(t, page.NextCursor)

	rest, err := h.svc.List(ctx, pagination.Params{Limit: 2, Cursor: page.NextCursor}, ListFilters{UserID: &owner})
	require.NoError(t, err)
	require.Len(t, rest.Items, 1)
	assert.Empty(t, rest.NextCursor)
	for _, o := range page.Items {
		assert.NotEqual(t, o.ID, rest.Items[0].ID)
	}

	status := enums.OrderStatusPaid
	all, err := h.svc.List(ctx, pagination.Params{}, ListFilters{Status: &status})
	require.NoError(t, err)
	assert.Len(t, all.Items, 4)

	_, err = h.svc.List(ctx, pagination.Params{Cursor: "%%%"}, ListFilters{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
