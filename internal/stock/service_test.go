package stock

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fashionmarket/storefront-backend/pkg/db"
	"github.com/fashionmarket/storefront-backend/pkg/db/dbtest"
	"github.com/fashionmarket/storefront-backend/pkg/db/models"
	"github.com/fashionmarket/storefront-backend/pkg/enums"
	pkgerrors "github.com/fashionmarket/storefront-backend/pkg/errors"
)

type stubRestocker struct {
	fire  func(ctx context.Context, productID uuid.UUID, edges []VariantKey) (int, error)
	calls int
	edges []VariantKey
}

func (s *stubRestocker) Fire(ctx context.Context, productID uuid.UUID, edges []VariantKey) (int, error) {
	s.calls++
	s.edges = append(s.edges, edges...)
	if s.fire != nil {
		return s.fire(ctx, productID, edges)
	}
	return len(edges), nil
}

func newTestService(t *testing.T, restocker Restocker) (Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewService(ServiceParams{
		Repo:      NewRepository(conn),
		Tx:        db.Wrap(conn),
		Restocker: restocker,
	})
	require.NoError(t, err)
	return svc, conn
}

func TestNewServiceRequiresDeps(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{Repo: NewRepository(nil)})
	assert.Error(t, err)
}

func TestSetStockClampsNegativeAndRecomputesTotal(t *testing.T) {
	svc, conn := newTestService(t, nil)
	ctx := context.Background()
	product := dbtest.CreateProduct(t, conn, "Wool scarf", 2500, nil, []string{"Red", "Grey"})

	res, err := svc.SetStock(ctx, product.ID, VariantKey{Color: strp("Red")}, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, res.TotalStock)

	res, err = svc.SetStock(ctx, product.ID, VariantKey{Color: strp("Grey")}, -3)
	require.NoError(t, err)
	assert.Equal(t, 7, res.TotalStock)
	assert.Equal(t, 0, res.Changes[0].Quantity)

	qty, err := svc.GetStock(ctx, product.ID, VariantKey{Color: strp("Grey")})
	require.NoError(t, err)
	assert.Equal(t, 0, qty)

	var stored models.Product
	require.NoError(t, conn.First(&stored, "id = ?", product.ID).Error)
	assert.Equal(t, 7, stored.Stock)
}

func TestBulkSetLastEntryWinsAndReportsPriorValues(t *testing.T) {
	restocker := &stubRestocker{}
	svc, conn := newTestService(t, restocker)
	ctx := context.Background()
	product := dbtest.CreateProduct(t, conn, "Denim jacket", 8900, []string{"S", "M"}, []string{"Blue"})

	_, err := svc.SetStock(ctx, product.ID, VariantKey{Size: strp("S"), Color: strp("Blue")}, 4)
	require.NoError(t, err)
	restocker.calls, restocker.edges = 0, nil

	res, err := svc.BulkSet(ctx, product.ID, []VariantQuantity{
		{Key: VariantKey{Size: strp("S"), Color: strp("Blue")}, Quantity: 9},
		{Key: VariantKey{Size: strp("M"), Color: strp("Blue")}, Quantity: 2},
		{Key: VariantKey{Size: strp("S"), Color: strp("Blue")}, Quantity: 1},
	})
	require.NoError(t, err)
	require.Len(t, res.Changes, 2)
	assert.Equal(t, 4, res.Changes[0].Previous)
	assert.Equal(t, 1, res.Changes[0].Quantity)
	assert.Equal(t, 0, res.Changes[1].Previous)
	assert.Equal(t, 3, res.TotalStock)

	require.Len(t, res.Restocked, 1)
	assert.Equal(t, "M", *res.Restocked[0].Size)
	assert.Equal(t, 1, restocker.calls)
	assert.Equal(t, 1, res.NotificationsFired)

	total, err := svc.TotalStock(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, res.TotalStock, total)
}

func TestBulkSetRejectsUnknownVariantsAtomically(t *testing.T) {
	svc, conn := newTestService(t, nil)
	ctx := context.Background()
	product := dbtest.CreateProduct(t, conn, "Tee", 1500, []string{"S"}, nil)

	_, err := svc.BulkSet(ctx, product.ID, []VariantQuantity{
		{Key: VariantKey{Size: strp("S")}, Quantity: 5},
		{Key: VariantKey{Size: strp("XXL")}, Quantity: 5},
		{Key: VariantKey{Size: strp("S"), Color: strp("Red")}, Quantity: 5},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	rows, err := svc.Variants(ctx, product.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = svc.SetStock(ctx, product.ID, VariantKey{}, 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "size is required when the product has sizes")
}

func TestBulkSetUnknownProduct(t *testing.T) {
	svc, _ := newTestService(t, nil)
	_, err := svc.SetStock(context.Background(), uuid.New(), VariantKey{}, 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.BulkSet(context.Background(), uuid.New(), nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestNullSlotsAreDistinct(t *testing.T) {
	svc, conn := newTestService(t, nil)
	ctx := context.Background()
	product := dbtest.CreateProduct(t, conn, "Cap", 1200, nil, nil)

	_, err := svc.SetStock(ctx, product.ID, VariantKey{Size: strp("")}, 3)
	require.NoError(t, err)
	_, err = svc.SetStock(ctx, product.ID, VariantKey{}, 5)
	require.NoError(t, err)

	rows, err := svc.Variants(ctx, product.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].Size)
	assert.Equal(t, 5, rows[0].Quantity)
}

func TestTotalStockFallsBackToFlatStock(t *testing.T) {
	svc, conn := newTestService(t, nil)
	ctx := context.Background()
	product := dbtest.CreateProduct(t, conn, "Legacy belt", 900, nil, nil)
	require.NoError(t, conn.Model(&models.Product{}).Where("id = ?", product.ID).Update("stock", 11).Error)

	total, err := svc.TotalStock(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 11, total)

	_, err = svc.TotalStock(ctx, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestFirstVariantWriteOnFlatStockProduct(t *testing.T) {
	restocker := &stubRestocker{}
	svc, conn := newTestService(t, restocker)
	ctx := context.Background()
	legacy := dbtest.CreateProduct(t, conn, "Legacy tote", 4500, nil, nil)
	require.NoError(t, conn.Model(&models.Product{}).Where("id = ?", legacy.ID).Update("stock", 5).Error)

	res, err := svc.SetStock(ctx, legacy.ID, VariantKey{}, 8)
	require.NoError(t, err)
	require.Len(t, res.Changes, 1)
	assert.Equal(t, 5, res.Changes[0].Previous)
	assert.Empty(t, res.Restocked, "5 -> 8 is not a restock")
	assert.Equal(t, 0, restocker.calls)
	assert.Equal(t, 8, res.TotalStock)

	soldOut := dbtest.CreateProduct(t, conn, "Legacy clutch", 3900, nil, nil)
	res, err = svc.SetStock(ctx, soldOut.ID, VariantKey{}, 2)
	require.NoError(t, err)
	assert.Equal(t, []VariantKey{{}}, res.Restocked, "flat stock 0 -> 2 is a restock")
	assert.Equal(t, 1, restocker.calls)
}

func TestOverviewSurvivesCanceledCaller(t *testing.T) {
	svc, conn := newTestService(t, nil)
	dbtest.CreateProduct(t, conn, "Linen shirt", 5200, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	all, err := svc.Overview(ctx, enums.StockFilterAll)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRestockFailureDoesNotFailStockWrite(t *testing.T) {
	restocker := &stubRestocker{fire: func(context.Context, uuid.UUID, []VariantKey) (int, error) {
		return 0, errors.New("mail down")
	}}
	svc, conn := newTestService(t, restocker)
	product := dbtest.CreateProduct(t, conn, "Boots", 12000, []string{"40"}, nil)

	res, err := svc.SetStock(context.Background(), product.ID, VariantKey{Size: strp("40")}, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, res.NotificationsFired)
	assert.Equal(t, 2, res.TotalStock)
}

func TestProductStockAndOverview(t *testing.T) {
	svc, conn := newTestService(t, nil)
	ctx := context.Background()
	shirt := dbtest.CreateProduct(t, conn, "A shirt", 3000, []string{"S", "M"}, []string{"Black", "White"})
	healthy := dbtest.CreateProduct(t, conn, "B hat", 1000, nil, nil)

	_, err := svc.BulkSet(ctx, shirt.ID, []VariantQuantity{
		{Key: VariantKey{Size: strp("S"), Color: strp("White")}, Quantity: 3},
		{Key: VariantKey{Size: strp("M"), Color: strp("White")}, Quantity: 10},
	})
	require.NoError(t, err)
	_, err = svc.SetStock(ctx, healthy.ID, VariantKey{}, 40)
	require.NoError(t, err)

	detail, err := svc.ProductStock(ctx, shirt.ID)
	require.NoError(t, err)
	assert.Equal(t, 13, detail.Summary.TotalStock)
	require.NotNil(t, detail.Matrix)
	assert.Equal(t, 13, detail.Matrix.GrandTotal)

	all, err := svc.Overview(ctx, enums.StockFilterAll)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	low, err := svc.Overview(ctx, enums.StockFilterLow)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, shirt.ID, low[0].ProductID)

	out, err := svc.Overview(ctx, enums.StockFilterOut)
	require.NoError(t, err)
	require.Len(t, out, 1)

	_, err = svc.Overview(ctx, enums.StockFilter("nope"))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
