package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fashionmarket/storefront-backend/api/middleware"
	"github.com/fashionmarket/storefront-backend/internal/checkout"
	"github.com/fashionmarket/storefront-backend/internal/orders"
	"github.com/fashionmarket/storefront-backend/internal/restock"
	"github.com/fashionmarket/storefront-backend/internal/returns"
	"github.com/fashionmarket/storefront-backend/internal/stock"
	"github.com/fashionmarket/storefront-backend/pkg/db/models"
	"github.com/fashionmarket/storefront-backend/pkg/enums"
	pkgerrors "github.com/fashionmarket/storefront-backend/pkg/errors"
	"github.com/fashionmarket/storefront-backend/pkg/pagination"
)

func newRequest(t *testing.T, method, target string, body any, params map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func asUser(req *http.Request, userID uuid.UUID) *http.Request {
	return req.WithContext(middleware.WithPrincipal(req.Context(), middleware.Principal{UserID: userID, Role: enums.RoleCustomer}))
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, dest))
}

type stubWaitlist struct {
	created bool
	got     restock.RequestInput
}

func (s *stubWaitlist) RequestNotification(ctx context.Context, input restock.RequestInput) (*models.StockNotification, bool, error) {
	s.got = input
	return &models.StockNotification{
		ID:        uuid.New(),
		ProductID: input.ProductID,
		Size:      input.Key.Size,
		Color:     input.Key.Color,
		Email:     input.Email,
	}, s.created, nil
}

func TestJoinWaitlistStatusReflectsCreation(t *testing.T) {
	productID := uuid.New()
	size := " M "
	body := map[string]any{"product_id": productID, "size": size, "color": "", "email": "ana@example.com"}

	svc := &stubWaitlist{created: true}
	rec := httptest.NewRecorder()
	JoinWaitlist(svc, nil).ServeHTTP(rec, newRequest(t, http.MethodPost, "/api/v1/waitlist", body, nil))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, svc.got.Key.Size)
	assert.Equal(t, "M", *svc.got.Key.Size)
	assert.Nil(t, svc.got.Key.Color)

	svc.created = false
	rec = httptest.NewRecorder()
	JoinWaitlist(svc, nil).ServeHTTP(rec, newRequest(t, http.MethodPost, "/api/v1/waitlist", body, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var dto waitlistDTO
	decodeData(t, rec, &dto)
	assert.Equal(t, productID, dto.ProductID)
	assert.Equal(t, "ana@example.com", dto.Email)
}

func TestJoinWaitlistRejectsInvalidEmail(t *testing.T) {
	rec := httptest.NewRecorder()
	body := map[string]any{"product_id": uuid.New(), "email": "not-an-email"}
	JoinWaitlist(&stubWaitlist{}, nil).ServeHTTP(rec, newRequest(t, http.MethodPost, "/api/v1/waitlist", body, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubCheckout struct {
	got checkout.ConfirmInput
	err error
}

func (s *stubCheckout) Confirm(ctx context.Context, input checkout.ConfirmInput) (*models.Order, error) {
	s.got = input
	if s.err != nil {
		return nil, s.err
	}
	return &models.Order{ID: uuid.New(), OrderNumber: "FM-20261014-ABC123", Status: enums.OrderStatusPaid, TotalCents: 9899, Currency: "EUR"}, nil
}

var testAddress = map[string]any{"full_name": "Ana Lopez", "line1": "Calle 1", "city": "Madrid", "postal_code": "28001", "country": "ES"}

func TestConfirmCheckout(t *testing.T) {
	userID := uuid.New()
	productID := uuid.New()
	body := map[string]any{
		"payment_intent_id": "pi_123",
		"email":             "ana@example.com",
		"customer_name":     "  Ana Lopez ",
		"items":             []map[string]any{{"product_id": productID, "quantity": 2, "size": "M"}},
		"shipping_address":  testAddress,
	}

	svc := &stubCheckout{}
	rec := httptest.NewRecorder()
	req := asUser(newRequest(t, http.MethodPost, "/api/v1/checkout/confirm", body, nil), userID)
	ConfirmCheckout(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, svc.got.UserID)
	assert.Equal(t, userID, *svc.got.UserID)
	assert.Equal(t, "Ana Lopez", svc.got.CustomerName)
	assert.Equal(t, "pi_123", svc.got.PaymentIntentID)
	require.Len(t, svc.got.Lines, 1)
	assert.Equal(t, productID, svc.got.Lines[0].ProductID)
	assert.Equal(t, 2, svc.got.Lines[0].Quantity)

	var dto orderDTO
	decodeData(t, rec, &dto)
	assert.Equal(t, "FM-20261014-ABC123", dto.OrderNumber)
	assert.Equal(t, enums.OrderStatusPaid, dto.Status)
}

func TestConfirmCheckoutRequiresUser(t *testing.T) {
	rec := httptest.NewRecorder()
	ConfirmCheckout(&stubCheckout{}, nil).ServeHTTP(rec, newRequest(t, http.MethodPost, "/api/v1/checkout/confirm", map[string]any{}, nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestConfirmCheckoutPropagatesPaymentMismatch(t *testing.T) {
	body := map[string]any{
		"payment_intent_id": "pi_123",
		"email":             "ana@example.com",
		"items":             []map[string]any{{"product_id": uuid.New(), "quantity": 1}},
		"shipping_address":  testAddress,
	}
	svc := &stubCheckout{err: pkgerrors.New(pkgerrors.CodePreconditionFailed, "payment amount does not match order total")}
	rec := httptest.NewRecorder()
	ConfirmCheckout(svc, nil).ServeHTTP(rec, asUser(newRequest(t, http.MethodPost, "/api/v1/checkout/confirm", body, nil), uuid.New()))
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.Contains(t, rec.Body.String(), "payment amount does not match order total")
}

type stubReturns struct {
	got returns.RequestInput
}

func (s *stubReturns) Request(ctx context.Context, input returns.RequestInput) (*models.Return, error) {
	s.got = input
	return &models.Return{
		ID:           uuid.New(),
		ReturnNumber: "RET-20261014-XYZ789",
		OrderID:      input.OrderID,
		UserID:       input.UserID,
		Status:       enums.ReturnStatusRequested,
		Reason:       input.Reason,
		RequestedAt:  time.Now(),
	}, nil
}

func (s *stubReturns) ListForOrder(ctx context.Context, orderID uuid.UUID, userID *uuid.UUID) ([]models.Return, error) {
	return []models.Return{{ID: uuid.New(), OrderID: orderID, Status: enums.ReturnStatusRequested}}, nil
}

func TestRequestReturn(t *testing.T) {
	userID := uuid.New()
	orderID := uuid.New()
	itemID := uuid.New()
	body := map[string]any{"reason": "wrong_size", "items": []map[string]any{{"order_item_id": itemID, "quantity": 1}}}

	svc := &stubReturns{}
	rec := httptest.NewRecorder()
	req := asUser(newRequest(t, http.MethodPost, "/api/v1/orders/"+orderID.String()+"/returns", body, map[string]string{"orderId": orderID.String()}), userID)
	RequestReturn(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, orderID, svc.got.OrderID)
	assert.Equal(t, userID, svc.got.UserID)
	assert.Equal(t, enums.ReturnReasonWrongSize, svc.got.Reason)
	require.Len(t, svc.got.Items, 1)
	assert.Equal(t, itemID, svc.got.Items[0].OrderItemID)
}

func TestRequestReturnRejectsUnknownReason(t *testing.T) {
	orderID := uuid.New()
	rec := httptest.NewRecorder()
	req := asUser(newRequest(t, http.MethodPost, "/", map[string]any{"reason": "too_expensive"}, map[string]string{"orderId": orderID.String()}), uuid.New())
	RequestReturn(&stubReturns{}, nil).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrderDetailRejectsMalformedID(t *testing.T) {
	rec := httptest.NewRecorder()
	req := asUser(newRequest(t, http.MethodGet, "/", nil, map[string]string{"orderId": "nope"}), uuid.New())
	OrderDetail(nil, nil).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubStock struct {
	entries []stock.VariantQuantity
}

func (s *stubStock) Overview(ctx context.Context, filter enums.StockFilter) ([]stock.Summary, error) {
	return []stock.Summary{{Name: string(filter)}}, nil
}

func (s *stubStock) ProductStock(ctx context.Context, productID uuid.UUID) (*stock.ProductStock, error) {
	return &stock.ProductStock{
		Product: models.Product{ID: productID, Name: "Linen shirt"},
		Summary: stock.Summary{ProductID: productID, Name: "Linen shirt", TotalStock: 7, VariantCount: 2, LowCount: 1, HasLow: true},
	}, nil
}

func (s *stubStock) BulkSet(ctx context.Context, productID uuid.UUID, entries []stock.VariantQuantity) (*stock.BulkResult, error) {
	s.entries = entries
	return &stock.BulkResult{ProductID: productID, TotalStock: 7, NotificationsFired: 3}, nil
}

func TestUpdateProductStockAcceptsArrayBody(t *testing.T) {
	productID := uuid.New()
	body := []map[string]any{
		{"size": "M", "color": "navy", "stock": 5},
		{"size": "L", "color": "navy", "stock": 2},
	}
	svc := &stubStock{}
	rec := httptest.NewRecorder()
	UpdateProductStock(svc, nil).ServeHTTP(rec, newRequest(t, http.MethodPut, "/", body, map[string]string{"productId": productID.String()}))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, svc.entries, 2)
	assert.Equal(t, 5, svc.entries[0].Quantity)
	require.NotNil(t, svc.entries[1].Key.Size)
	assert.Equal(t, "L", *svc.entries[1].Key.Size)

	var resp updateStockResponse
	decodeData(t, rec, &resp)
	assert.Equal(t, 7, resp.TotalStock)
	assert.Equal(t, 3, resp.NotificationsFired)
	assert.True(t, resp.Summary.HasLow)
}

func TestUpdateProductStockValidation(t *testing.T) {
	productID := uuid.New()
	cases := map[string]any{
		"empty list":     []map[string]any{},
		"negative stock": []map[string]any{{"size": "M", "stock": -1}},
		"object body":    map[string]any{"stock": 1},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			svc := &stubStock{}
			rec := httptest.NewRecorder()
			UpdateProductStock(svc, nil).ServeHTTP(rec, newRequest(t, http.MethodPut, "/", body, map[string]string{"productId": productID.String()}))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Nil(t, svc.entries)
		})
	}
}

func TestStockOverviewRejectsUnknownFilter(t *testing.T) {
	rec := httptest.NewRecorder()
	StockOverview(&stubStock{}, nil).ServeHTTP(rec, newRequest(t, http.MethodGet, "/?filter=some", nil, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	StockOverview(&stubStock{}, nil).ServeHTTP(rec, newRequest(t, http.MethodGet, "/?filter=low", nil, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var summaries []stock.Summary
	decodeData(t, rec, &summaries)
	require.Len(t, summaries, 1)
	assert.Equal(t, "low", summaries[0].Name)
}

type stubReturnAdmin struct {
	approveNotes *string
	rejectNotes  string
}

func (s *stubReturnAdmin) Approve(ctx context.Context, returnID uuid.UUID, adminNotes *string) (*returns.Approval, error) {
	s.approveNotes = adminNotes
	return &returns.Approval{
		Return:     &models.Return{ID: returnID, Status: enums.ReturnStatusApproved, RefundAmountCents: 2500},
		CreditNote: &models.CreditNote{ID: uuid.New(), CreditNoteNumber: "CN-2026-000001", TotalCents: 2500, Currency: "EUR"},
	}, nil
}

func (s *stubReturnAdmin) Reject(ctx context.Context, returnID uuid.UUID, adminNotes string) (*models.Return, error) {
	s.rejectNotes = adminNotes
	if adminNotes == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "admin notes are required to reject a return")
	}
	return &models.Return{ID: returnID, Status: enums.ReturnStatusRejected, AdminNotes: &adminNotes}, nil
}

func (s *stubReturnAdmin) List(ctx context.Context, params pagination.Params, status *enums.ReturnStatus) (pagination.Page[models.Return], error) {
	return pagination.Page[models.Return]{}, nil
}

func TestApproveReturnAcceptsEmptyBody(t *testing.T) {
	returnID := uuid.New()
	svc := &stubReturnAdmin{}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", http.NoBody)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("returnId", returnID.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	ApproveReturn(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Nil(t, svc.approveNotes)
	var resp struct {
		Return     returnDTO `json:"return"`
		CreditNote struct {
			Number string `json:"number"`
		} `json:"credit_note"`
	}
	decodeData(t, rec, &resp)
	assert.Equal(t, enums.ReturnStatusApproved, resp.Return.Status)
	assert.Equal(t, "CN-2026-000001", resp.CreditNote.Number)
}

func TestRejectReturnRequiresNotes(t *testing.T) {
	returnID := uuid.New()
	params := map[string]string{"returnId": returnID.String()}

	svc := &stubReturnAdmin{}
	rec := httptest.NewRecorder()
	RejectReturn(svc, nil).ServeHTTP(rec, newRequest(t, http.MethodPost, "/", map[string]any{}, params))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	RejectReturn(svc, nil).ServeHTTP(rec, newRequest(t, http.MethodPost, "/", map[string]any{"admin_notes": "worn item"}, params))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "worn item", svc.rejectNotes)
}

type stubOrderAdmin struct {
	filters orders.ListFilters
	to      enums.OrderStatus
}

func (s *stubOrderAdmin) TransitionStatus(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus) (*models.Order, error) {
	s.to = to
	return &models.Order{ID: orderID, Status: to}, nil
}

func (s *stubOrderAdmin) List(ctx context.Context, params pagination.Params, filters orders.ListFilters) (pagination.Page[models.Order], error) {
	s.filters = filters
	return pagination.Page[models.Order]{Items: []models.Order{{ID: uuid.New(), Status: enums.OrderStatusPaid}}, NextCursor: "next"}, nil
}

func TestListOrdersParsesFilters(t *testing.T) {
	userID := uuid.New()
	svc := &stubOrderAdmin{}
	rec := httptest.NewRecorder()
	ListOrders(svc, nil).ServeHTTP(rec, newRequest(t, http.MethodGet, "/?status=paid&user_id="+userID.String(), nil, nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, svc.filters.Status)
	assert.Equal(t, enums.OrderStatusPaid, *svc.filters.Status)
	require.NotNil(t, svc.filters.UserID)
	assert.Equal(t, userID, *svc.filters.UserID)

	var page pageDTO[orderDTO]
	decodeData(t, rec, &page)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, "next", page.NextCursor)
}

func TestUpdateOrderStatus(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrderAdmin{}
	rec := httptest.NewRecorder()
	UpdateOrderStatus(svc, nil).ServeHTTP(rec, newRequest(t, http.MethodPost, "/", map[string]any{"status": "shipped"}, map[string]string{"orderId": orderID.String()}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, enums.OrderStatusShipped, svc.to)

	rec = httptest.NewRecorder()
	UpdateOrderStatus(svc, nil).ServeHTTP(rec, newRequest(t, http.MethodPost, "/", map[string]any{"status": "teleported"}, map[string]string{"orderId": orderID.String()}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubWaitlistAdmin struct {
	entries []models.StockNotification
	err     error
	got     uuid.UUID
}

func (s *stubWaitlistAdmin) Waitlist(ctx context.Context, productID uuid.UUID) ([]models.StockNotification, error) {
	s.got = productID
	return s.entries, s.err
}

func TestProductWaitlist(t *testing.T) {
	productID := uuid.New()
	svc := &stubWaitlistAdmin{entries: []models.StockNotification{
		{ID: uuid.New(), ProductID: productID, Email: "ana@example.com"},
		{ID: uuid.New(), ProductID: productID, Email: "ben@example.com", Notified: true},
	}}
	rec := httptest.NewRecorder()
	ProductWaitlist(svc, nil).ServeHTTP(rec, newRequest(t, http.MethodGet, "/", nil, map[string]string{"productId": productID.String()}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, productID, svc.got)

	var dtos []waitlistDTO
	decodeData(t, rec, &dtos)
	require.Len(t, dtos, 2)
	assert.Equal(t, "ana@example.com", dtos[0].Email)
	assert.True(t, dtos[1].Notified)

	rec = httptest.NewRecorder()
	svc.err = pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	ProductWaitlist(svc, nil).ServeHTTP(rec, newRequest(t, http.MethodGet, "/", nil, map[string]string{"productId": productID.String()}))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	ProductWaitlist(svc, nil).ServeHTTP(rec, newRequest(t, http.MethodGet, "/", nil, map[string]string{"productId": "nope"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
