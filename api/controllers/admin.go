package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/fashionmarket/storefront-backend/api/responses"
	"github.com/fashionmarket/storefront-backend/api/validators"
	"github.com/fashionmarket/storefront-backend/internal/orders"
	"github.com/fashionmarket/storefront-backend/internal/returns"
	"github.com/fashionmarket/storefront-backend/internal/stock"
	"github.com/fashionmarket/storefront-backend/pkg/db/models"
	"github.com/fashionmarket/storefront-backend/pkg/enums"
	pkgerrors "github.com/fashionmarket/storefront-backend/pkg/errors"
	"github.com/fashionmarket/storefront-backend/pkg/logger"
	"github.com/fashionmarket/storefront-backend/pkg/pagination"
)

type stockAdmin interface {
	Overview(ctx context.Context, filter enums.StockFilter) ([]stock.Summary, error)
	ProductStock(ctx context.Context, productID uuid.UUID) (*stock.ProductStock, error)
	BulkSet(ctx context.Context, productID uuid.UUID, entries []stock.VariantQuantity) (*stock.BulkResult, error)
}

type waitlistAdmin interface {
	Waitlist(ctx context.Context, productID uuid.UUID) ([]models.StockNotification, error)
}

type orderAdmin interface {
	TransitionStatus(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus) (*models.Order, error)
	List(ctx context.Context, params pagination.Params, filters orders.ListFilters) (pagination.Page[models.Order], error)
}

type returnAdmin interface {
	Approve(ctx context.Context, returnID uuid.UUID, adminNotes *string) (*returns.Approval, error)
	Reject(ctx context.Context, returnID uuid.UUID, adminNotes string) (*models.Return, error)
	List(ctx context.Context, params pagination.Params, status *enums.ReturnStatus) (pagination.Page[models.Return], error)
}

type documentReader interface {
	GetInvoice(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	GetCreditNote(ctx context.Context, id uuid.UUID) (*models.CreditNote, error)
}

// ProductWaitlist lists the restock sign-ups for one product, pending first.
func ProductWaitlist(svc waitlistAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := uuidParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entries, err := svc.Waitlist(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]waitlistDTO, 0, len(entries))
		for _, entry := range entries {
			out = append(out, newWaitlistDTO(entry))
		}
		responses.WriteSuccess(w, out)
	}
}

// StockOverview lists per-product stock summaries, optionally only those with
// low or sold-out variants.
func StockOverview(svc stockAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := enums.StockFilterAll
		parsed, err := validators.QueryEnum(r, "filter", enums.ParseStockFilter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if parsed != nil {
			filter = *parsed
		}
		summaries, err := svc.Overview(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summaries)
	}
}

func ProductStock(svc stockAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := uuidParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		detail, err := svc.ProductStock(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newProductStockDTO(*detail))
	}
}

type stockEntryRequest struct {
	Size  *string `json:"size"`
	Color *string `json:"color"`
	Stock int     `json:"stock" validate:"gte=0"`
}

type updateStockResponse struct {
	TotalStock         int           `json:"total_stock"`
	NotificationsFired int           `json:"notifications_fired"`
	Summary            stock.Summary `json:"summary"`
}

// UpdateProductStock applies a bulk edit, then answers with the refreshed
// summary.
func UpdateProductStock(svc stockAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := uuidParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body []stockEntryRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entries := make([]stock.VariantQuantity, 0, len(body))
		for _, e := range body {
			entries = append(entries, stock.VariantQuantity{Key: stock.NewVariantKey(e.Size, e.Color), Quantity: e.Stock})
		}
		result, err := svc.BulkSet(r.Context(), productID, entries)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		detail, err := svc.ProductStock(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updateStockResponse{
			TotalStock:         result.TotalStock,
			NotificationsFired: result.NotificationsFired,
			Summary:            detail.Summary,
		})
	}
}

type orderStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func UpdateOrderStatus(svc orderAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := uuidParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body orderStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseOrderStatus(strings.TrimSpace(body.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}
		order, err := svc.TransitionStatus(r.Context(), orderID, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderDTO(*order))
	}
}

// ListOrders pages through all orders, newest first.
func ListOrders(svc orderAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var filters orders.ListFilters
		if filters.Status, err = validators.QueryEnum(r, "status", enums.ParseOrderStatus); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filters.UserID, err = validators.QueryUUID(r, "user_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.List(r.Context(), params, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, mapPage(page, newOrderDTO))
	}
}

func ListReturns(svc returnAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := validators.QueryEnum(r, "status", enums.ParseReturnStatus)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.List(r.Context(), params, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, mapPage(page, newReturnDTO))
	}
}

type resolveReturnRequest struct {
	AdminNotes *string `json:"admin_notes"`
}

type approvalResponse struct {
	Return     returnDTO   `json:"return"`
	CreditNote documentDTO `json:"credit_note"`
}

// ApproveReturn approves a requested return and issues its credit note.
func ApproveReturn(svc returnAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		returnID, err := uuidParam(r, "returnId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body resolveReturnRequest
		if err := validators.DecodeOptionalJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		approval, err := svc.Approve(r.Context(), returnID, body.AdminNotes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, approvalResponse{
			Return:     newReturnDTO(*approval.Return),
			CreditNote: newCreditNoteDTO(*approval.CreditNote),
		})
	}
}

// RejectReturn rejects a requested return; admin_notes is mandatory.
func RejectReturn(svc returnAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		returnID, err := uuidParam(r, "returnId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body resolveReturnRequest
		if err := validators.DecodeOptionalJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		notes := ""
		if body.AdminNotes != nil {
			notes = *body.AdminNotes
		}
		ret, err := svc.Reject(r.Context(), returnID, notes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newReturnDTO(*ret))
	}
}

func InvoiceDetail(svc documentReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "invoiceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		inv, err := svc.GetInvoice(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newInvoiceDTO(*inv))
	}
}

func CreditNoteDetail(svc documentReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "creditNoteId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		note, err := svc.GetCreditNote(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCreditNoteDTO(*note))
	}
}
