package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/fashionmarket/storefront-backend/api/responses"
	"github.com/fashionmarket/storefront-backend/api/validators"
	"github.com/fashionmarket/storefront-backend/internal/checkout"
	"github.com/fashionmarket/storefront-backend/internal/restock"
	"github.com/fashionmarket/storefront-backend/internal/returns"
	"github.com/fashionmarket/storefront-backend/internal/stock"
	"github.com/fashionmarket/storefront-backend/pkg/db/models"
	"github.com/fashionmarket/storefront-backend/pkg/enums"
	pkgerrors "github.com/fashionmarket/storefront-backend/pkg/errors"
	"github.com/fashionmarket/storefront-backend/pkg/logger"
	"github.com/fashionmarket/storefront-backend/pkg/types"
)

type waitlistService interface {
	RequestNotification(ctx context.Context, input restock.RequestInput) (*models.StockNotification, bool, error)
}

type checkoutService interface {
	Confirm(ctx context.Context, input checkout.ConfirmInput) (*models.Order, error)
}

type customerOrders interface {
	GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Order, error)
}

type customerReturns interface {
	Request(ctx context.Context, input returns.RequestInput) (*models.Return, error)
	ListForOrder(ctx context.Context, orderID uuid.UUID, userID *uuid.UUID) ([]models.Return, error)
}

type waitlistRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Size      *string   `json:"size"`
	Color     *string   `json:"color"`
	Email     string    `json:"email" validate:"required,email"`
}

// JoinWaitlist registers a restock notification. A repeat request for the
// same pending slot answers 200 with the existing entry.
func JoinWaitlist(svc waitlistService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body waitlistRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entry, created, err := svc.RequestNotification(r.Context(), restock.RequestInput{
			ProductID: body.ProductID,
			Key:       stock.NewVariantKey(body.Size, body.Color),
			Email:     body.Email,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if created {
			responses.WriteCreated(w, newWaitlistDTO(*entry))
			return
		}
		responses.WriteSuccess(w, newWaitlistDTO(*entry))
	}
}

type cartLineRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity"`
	Size      *string   `json:"size"`
	Color     *string   `json:"color"`
}

type confirmCheckoutRequest struct {
	PaymentIntentID string                `json:"payment_intent_id" validate:"required"`
	Email           string                `json:"email" validate:"required,email"`
	CustomerName    string                `json:"customer_name"`
	Items           []cartLineRequest     `json:"items" validate:"required,min=1,dive"`
	ShippingAddress types.ShippingAddress `json:"shipping_address"`
	DiscountCents   int                   `json:"discount_cents" validate:"gte=0"`
}

// ConfirmCheckout records the order for a PaymentIntent the storefront has
// just completed.
func ConfirmCheckout(svc checkoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body confirmCheckoutRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lines := make([]checkout.CartLine, 0, len(body.Items))
		for _, item := range body.Items {
			lines = append(lines, checkout.CartLine{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Size:      item.Size,
				Color:     item.Color,
			})
		}
		order, err := svc.Confirm(r.Context(), checkout.ConfirmInput{
			UserID:          &userID,
			CustomerEmail:   body.Email,
			CustomerName:    strings.TrimSpace(body.CustomerName),
			PaymentIntentID: body.PaymentIntentID,
			Lines:           lines,
			ShippingAddress: body.ShippingAddress,
			DiscountCents:   body.DiscountCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, newOrderDTO(*order))
	}
}

// OrderDetail returns one of the caller's orders.
func OrderDetail(svc customerOrders, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := uuidParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.GetForUser(r.Context(), orderID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderDTO(*order))
	}
}

type returnItemRequest struct {
	OrderItemID uuid.UUID `json:"order_item_id" validate:"required"`
	Quantity    int       `json:"quantity"`
}

type requestReturnRequest struct {
	Reason string              `json:"reason" validate:"required"`
	Notes  *string             `json:"notes"`
	Items  []returnItemRequest `json:"items" validate:"dive"`
}

// RequestReturn opens a return against a delivered order. Omitting items
// returns the whole order.
func RequestReturn(svc customerReturns, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := uuidParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body requestReturnRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reason, err := enums.ParseReturnReason(strings.TrimSpace(body.Reason))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid return reason"))
			return
		}
		items := make([]returns.ItemSelection, 0, len(body.Items))
		for _, it := range body.Items {
			items = append(items, returns.ItemSelection{OrderItemID: it.OrderItemID, Quantity: it.Quantity})
		}
		ret, err := svc.Request(r.Context(), returns.RequestInput{
			OrderID: orderID,
			UserID:  userID,
			Reason:  reason,
			Notes:   body.Notes,
			Items:   items,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, newReturnDTO(*ret))
	}
}

// OrderReturns lists the returns of one of the caller's orders.
func OrderReturns(svc customerReturns, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := uuidParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListForOrder(r.Context(), orderID, &userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newReturnDTOs(list))
	}
}
