package restock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fashionmarket/storefront-backend/internal/stock"
	"github.com/fashionmarket/storefront-backend/pkg/db"
	"github.com/fashionmarket/storefront-backend/pkg/db/dbtest"
	"github.com/fashionmarket/storefront-backend/pkg/db/models"
	"github.com/fashionmarket/storefront-backend/pkg/enums"
	pkgerrors "github.com/fashionmarket/storefront-backend/pkg/errors"
	"github.com/fashionmarket/storefront-backend/pkg/mailer"
	"github.com/fashionmarket/storefront-backend/pkg/outbox"
)

type stubMailer struct {
	mu   sync.Mutex
	send func(ctx context.Context, msg mailer.Message) error
	sent []mailer.Message
}

func (m *stubMailer) Send(ctx context.Context, msg mailer.Message) error {
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()
	if m.send != nil {
		return m.send(ctx, msg)
	}
	return nil
}

type fixture struct {
	conn  *gorm.DB
	mail  *stubMailer
	svc   Service
	stock stock.Service
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	f := &fixture{conn: conn, mail: &stubMailer{}, now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(conn),
		Products: stock.NewRepository(conn),
		Tx:       db.Wrap(conn),
		Outbox:   outbox.NewService(outbox.NewRepository(conn), nil),
		Mailer:   f.mail,
		Now:      func() time.Time { return f.now },
	})
	require.NoError(t, err)
	f.svc = svc

	stockSvc, err := stock.NewService(stock.ServiceParams{
		Repo:      stock.NewRepository(conn),
		Tx:        db.Wrap(conn),
		Restocker: svc,
	})
	require.NoError(t, err)
	f.stock = stockSvc
	return f
}

func strp(v string) *string { return &v }

func TestRequestNotificationIsIdempotentWhilePending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := dbtest.CreateProduct(t, f.conn, "Trench coat", 15900, []string{"S", "M"}, []string{"Beige"})
	key := stock.VariantKey{Size: strp("S"), Color: strp("Beige")}

	first, created, err := f.svc.RequestNotification(ctx, RequestInput{ProductID: product.ID, Key: key, Email: "Ana@Example.com"})
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := f.svc.RequestNotification(ctx, RequestInput{ProductID: product.ID, Key: key, Email: " ana@example.com "})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	_, created, err = f.svc.RequestNotification(ctx, RequestInput{ProductID: product.ID, Key: stock.VariantKey{Size: strp("M"), Color: strp("Beige")}, Email: "ana@example.com"})
	require.NoError(t, err)
	assert.True(t, created, "a different slot is a different entry")
}

func TestRequestNotificationValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := dbtest.CreateProduct(t, f.conn, "Loafers", 9900, []string{"41"}, nil)

	_, _, err := f.svc.RequestNotification(ctx, RequestInput{ProductID: product.ID, Key: stock.VariantKey{Size: strp("41")}, Email: "not-an-email"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, _, err = f.svc.RequestNotification(ctx, RequestInput{ProductID: product.ID, Key: stock.VariantKey{Size: strp("39")}, Email: "a@b.co"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, _, err = f.svc.RequestNotification(ctx, RequestInput{ProductID: uuid.New(), Email: "a@b.co"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestFireNotifiesOnceAndOnlyTheExactSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := dbtest.CreateProduct(t, f.conn, "Silk dress", 12900, []string{"S", "M"}, nil)

	_, _, err := f.svc.RequestNotification(ctx, RequestInput{ProductID: product.ID, Key: stock.VariantKey{Size: strp("S")}, Email: "one@example.com"})
	require.NoError(t, err)
	_, _, err = f.svc.RequestNotification(ctx, RequestInput{ProductID: product.ID, Key: stock.VariantKey{Size: strp("S")}, Email: "two@example.com"})
	require.NoError(t, err)
	other, _, err := f.svc.RequestNotification(ctx, RequestInput{ProductID: product.ID, Key: stock.VariantKey{Size: strp("M")}, Email: "three@example.com"})
	require.NoError(t, err)

	fired, err := f.svc.Fire(ctx, product.ID, []stock.VariantKey{{Size: strp("S")}})
	require.NoError(t, err)
	assert.Equal(t, 2, fired)
	assert.Len(t, f.mail.sent, 2)

	fired, err = f.svc.Fire(ctx, product.ID, []stock.VariantKey{{Size: strp("S")}})
	require.NoError(t, err)
	assert.Zero(t, fired, "entries are notified at most once")
	assert.Len(t, f.mail.sent, 2)

	var untouched models.StockNotification
	require.NoError(t, f.conn.First(&untouched, "id = ?", other.ID).Error)
	assert.False(t, untouched.Notified)

	var events int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventStockRestocked).Count(&events).Error)
	assert.Equal(t, int64(2), events)
}

func TestFireSendFailureKeepsFlag(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mail.send = func(context.Context, mailer.Message) error { return errors.New("smtp down") }
	product := dbtest.CreateProduct(t, f.conn, "Beanie", 1900, nil, nil)

	entry, _, err := f.svc.RequestNotification(ctx, RequestInput{ProductID: product.ID, Email: "c@example.com"})
	require.NoError(t, err)

	fired, err := f.svc.Fire(ctx, product.ID, []stock.VariantKey{{}})
	require.NoError(t, err)
	assert.Equal(t, 1, fired)

	var stored models.StockNotification
	require.NoError(t, f.conn.First(&stored, "id = ?", entry.ID).Error)
	assert.True(t, stored.Notified)
	require.NotNil(t, stored.NotifiedAt)

	again, created, err := f.svc.RequestNotification(ctx, RequestInput{ProductID: product.ID, Email: "c@example.com"})
	require.NoError(t, err)
	assert.True(t, created, "a new request after notification creates a new entry")
	assert.NotEqual(t, entry.ID, again.ID)
}

func TestStockEditFiresOnlyOnZeroToPositiveEdges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := dbtest.CreateProduct(t, f.conn, "Parka", 19900, []string{"L"}, nil)
	key := stock.VariantKey{Size: strp("L")}

	_, err := f.stock.SetStock(ctx, product.ID, key, 3)
	require.NoError(t, err)

	_, _, err = f.svc.RequestNotification(ctx, RequestInput{ProductID: product.ID, Key: key, Email: "d@example.com"})
	require.NoError(t, err)

	res, err := f.stock.SetStock(ctx, product.ID, key, 8)
	require.NoError(t, err)
	assert.Zero(t, res.NotificationsFired, "positive to positive is not an edge")

	res, err = f.stock.SetStock(ctx, product.ID, key, 0)
	require.NoError(t, err)
	assert.Zero(t, res.NotificationsFired)

	res, err = f.stock.SetStock(ctx, product.ID, key, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.NotificationsFired)
}

func TestRestockEndToEndScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := dbtest.CreateProduct(t, f.conn, "Oxford shirt", 4900, []string{"S", "M"}, []string{"Black", "White"})

	_, err := f.stock.BulkSet(ctx, product.ID, []stock.VariantQuantity{
		{Key: stock.VariantKey{Size: strp("S"), Color: strp("Black")}, Quantity: 0},
		{Key: stock.VariantKey{Size: strp("S"), Color: strp("White")}, Quantity: 3},
		{Key: stock.VariantKey{Size: strp("M"), Color: strp("Black")}, Quantity: 0},
		{Key: stock.VariantKey{Size: strp("M"), Color: strp("White")}, Quantity: 1},
	})
	require.NoError(t, err)
	total, err := f.stock.TotalStock(ctx, product.ID)
	require.NoError(t, err)
	require.Equal(t, 4, total)

	entry, _, err := f.svc.RequestNotification(ctx, RequestInput{
		ProductID: product.ID,
		Key:       stock.VariantKey{Size: strp("S"), Color: strp("Black")},
		Email:     "waiting@example.com",
	})
	require.NoError(t, err)

	res, err := f.stock.SetStock(ctx, product.ID, stock.VariantKey{Size: strp("S"), Color: strp("Black")}, 2)
	require.NoError(t, err)
	assert.Equal(t, 6, res.TotalStock)
	assert.Equal(t, 1, res.NotificationsFired)
	assert.Len(t, f.mail.sent, 1)
	assert.Equal(t, "waiting@example.com", f.mail.sent[0].To)

	var stored models.StockNotification
	require.NoError(t, f.conn.First(&stored, "id = ?", entry.ID).Error)
	assert.True(t, stored.Notified)

	mBlack, err := f.stock.GetStock(ctx, product.ID, stock.VariantKey{Size: strp("M"), Color: strp("Black")})
	require.NoError(t, err)
	assert.Zero(t, mBlack)

	detail, err := f.stock.ProductStock(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, detail.Summary.TotalStock)
	assert.Equal(t, 1, detail.Summary.OutCount)
}

func TestDeleteNotifiedBefore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := dbtest.CreateProduct(t, f.conn, "Gloves", 2900, nil, nil)
	repo := NewRepository(f.conn)

	_, _, err := f.svc.RequestNotification(ctx, RequestInput{ProductID: product.ID, Email: "old@example.com"})
	require.NoError(t, err)
	_, err = f.svc.Fire(ctx, product.ID, []stock.VariantKey{{}})
	require.NoError(t, err)
	_, _, err = f.svc.RequestNotification(ctx, RequestInput{ProductID: product.ID, Email: "pending@example.com"})
	require.NoError(t, err)

	deleted, err := repo.DeleteNotifiedBefore(ctx, f.now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	left, err := f.svc.Waitlist(ctx, product.ID)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "pending@example.com", left[0].Email)
}

func TestWaitlistListsPendingFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := dbtest.CreateProduct(t, f.conn, "Raincoat", 8900, []string{"M"}, nil)

	_, _, err := f.svc.RequestNotification(ctx, RequestInput{ProductID: product.ID, Key: stock.VariantKey{Size: strp("M")}, Email: "first@example.com"})
	require.NoError(t, err)
	_, err = f.svc.Fire(ctx, product.ID, []stock.VariantKey{{Size: strp("M")}})
	require.NoError(t, err)
	_, _, err = f.svc.RequestNotification(ctx, RequestInput{ProductID: product.ID, Key: stock.VariantKey{Size: strp("M")}, Email: "second@example.com"})
	require.NoError(t, err)

	entries, err := f.svc.Waitlist(ctx, product.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "second@example.com", entries[0].Email)
	assert.False(t, entries[0].Notified)
	assert.True(t, entries[1].Notified)

	_, err = f.svc.Waitlist(ctx, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
