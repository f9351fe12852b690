package returns

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fashionmarket/storefront-backend/internal/documents"
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
	returnNumberPrefix = "RT"
	activeReturnIndex  = "idx_returns_one_active_per_order"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// OrderReader is the slice of the order ledger the workflow needs.
type OrderReader interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Order, error)
}

// Documents issues the invoice an approval credits and the credit note itself.
type Documents interface {
	GenerateInvoice(ctx context.Context, orderID uuid.UUID) (*models.Invoice, error)
	GenerateCreditNote(ctx context.Context, tx *gorm.DB, ret *models.Return, invoice *models.Invoice) (*models.CreditNote, error)
}

// ItemSelection picks a quantity of one order item.
type ItemSelection struct {
	OrderItemID uuid.UUID `json:"order_item_id"`
	Quantity    int       `json:"quantity"`
}

// RequestInput is a customer's return request. No items means the whole order.
type RequestInput struct {
	OrderID uuid.UUID
	UserID  uuid.UUID
	Reason  enums.ReturnReason
	Notes   *string
	Items   []ItemSelection
}

// Approval is the outcome of an approved return.
type Approval struct {
	Return     *models.Return     `json:"return"`
	CreditNote *models.CreditNote `json:"credit_note"`
}

// Service runs the return workflow.
type Service interface {
	Request(ctx context.Context, input RequestInput) (*models.Return, error)
	Approve(ctx context.Context, returnID uuid.UUID, adminNotes *string) (*Approval, error)
	Reject(ctx context.Context, returnID uuid.UUID, adminNotes string) (*models.Return, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Return, error)
	ListForOrder(ctx context.Context, orderID uuid.UUID, userID *uuid.UUID) ([]models.Return, error)
	List(ctx context.Context, params pagination.Params, status *enums.ReturnStatus) (pagination.Page[models.Return], error)
}

// ServiceParams groups the return workflow dependencies.
type ServiceParams struct {
	Repo      *Repository
	Orders    OrderReader
	Documents Documents
	Tx        txRunner
	Outbox    outbox.Emitter
	Mailer    mailer.Sender
	Store     config.StoreConfig
	Numbers   *humanid.Generator
	Metrics   *metrics.DomainMetrics
	Logger    *logger.Logger
	Now       func() time.Time
}

type service struct {
	repo    *Repository
	orders  OrderReader
	docs    Documents
	tx      txRunner
	outbox  outbox.Emitter
	mailer  mailer.Sender
	store   config.StoreConfig
	numbers *humanid.Generator
	metrics *metrics.DomainMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewService validates dependencies.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("returns repository required")
	case params.Orders == nil:
		return nil, fmt.Errorf("order reader required")
	case params.Documents == nil:
		return nil, fmt.Errorf("document generator required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case params.Mailer == nil:
		return nil, fmt.Errorf("mailer required")
	case params.Store.ReturnWindowDays <= 0:
		return nil, fmt.Errorf("return window must be positive")
	}
	numbers := params.Numbers
	if numbers == nil {
		var err error
		if numbers, err = humanid.New(returnNumberPrefix); err != nil {
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
		repo:    params.Repo,
		orders:  params.Orders,
		docs:    params.Documents,
		tx:      params.Tx,
		outbox:  params.Outbox,
		mailer:  params.Mailer,
		store:   params.Store,
		numbers: numbers,
		metrics: params.Metrics,
		logg:    logg,
		now:     now,
	}, nil
}

func (s *service) Request(ctx context.Context, input RequestInput) (*models.Return, error) {
	if input.OrderID == uuid.Nil || input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order and user are required")
	}
	order, err := s.orders.GetForUser(ctx, input.OrderID, input.UserID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if order.Status != enums.OrderStatusDelivered || order.DeliveredAt == nil {
		return nil, pkgerrors.New(pkgerrors.CodePreconditionFailed, "only delivered orders can be returned")
	}
	deadline := order.DeliveredAt.Add(s.store.ReturnWindow())
	if now.After(deadline) {
		return nil, pkgerrors.Newf(pkgerrors.CodePreconditionFailed, "the %d day return window has closed", s.store.ReturnWindowDays).
			WithDetails(map[string]any{"delivered_at": order.DeliveredAt, "deadline": deadline})
	}
	if !input.Reason.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown return reason %q", input.Reason)
	}

	items, full, err := selectItems(*order, input.Items)
	if err != nil {
		return nil, err
	}
	refund := 0
	for _, item := range items {
		refund += item.UnitPriceCents * item.Quantity
	}
	if full {
		refund += order.ShippingCents
	}

	active, err := s.repo.HasActive(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check active returns")
	}
	if active {
		return nil, errActiveReturn()
	}

	var notes *string
	if input.Notes != nil {
		if trimmed := strings.TrimSpace(*input.Notes); trimmed != "" {
			notes = &trimmed
		}
	}

	var ret *models.Return
	for attempt := 0; attempt < humanid.MaxAttempts; attempt++ {
		ret, err = s.insert(ctx, order, input.UserID, input.Reason, notes, items, refund, full, now)
		if err == nil {
			break
		}
		if db.IsUniqueViolation(err, activeReturnIndex, "returns.order_id") {
			return nil, errActiveReturn()
		}
		if !db.IsUniqueViolation(err, "returns_return_number_key", "returns.return_number") {
			if pkgerrors.As(err) == nil {
				err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create return")
			}
			return nil, err
		}
	}
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "return number generation exhausted")
	}

	s.metrics.ReturnTransition(string(enums.ReturnStatusRequested))
	return ret, nil
}

func errActiveReturn() error {
	return pkgerrors.New(pkgerrors.CodeConflict, "order already has an open return")
}

// selectItems resolves the selection against the order. It reports whether
// the selection covers every unit of the order.
func selectItems(order models.Order, selection []ItemSelection) ([]models.ReturnItem, bool, error) {
	byID := make(map[uuid.UUID]models.OrderItem, len(order.Items))
	for _, item := range order.Items {
		byID[item.ID] = item
	}

	if len(selection) == 0 {
		items := make([]models.ReturnItem, 0, len(order.Items))
		for _, item := range order.Items {
			items = append(items, models.ReturnItem{OrderItemID: item.ID, Quantity: item.Quantity, UnitPriceCents: item.UnitPriceCents})
		}
		return items, true, nil
	}

	seen := make(map[uuid.UUID]bool, len(selection))
	items := make([]models.ReturnItem, 0, len(selection))
	full := len(selection) == len(order.Items)
	for _, sel := range selection {
		item, ok := byID[sel.OrderItemID]
		if !ok {
			return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "item does not belong to this order").
				WithDetails(map[string]any{"order_item_id": sel.OrderItemID})
		}
		if seen[sel.OrderItemID] {
			return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "item selected twice").
				WithDetails(map[string]any{"order_item_id": sel.OrderItemID})
		}
		seen[sel.OrderItemID] = true
		if sel.Quantity < 1 || sel.Quantity > item.Quantity {
			return nil, false, pkgerrors.Newf(pkgerrors.CodeValidation, "quantity must be between 1 and %d", item.Quantity).
				WithDetails(map[string]any{"order_item_id": sel.OrderItemID, "quantity": sel.Quantity})
		}
		if sel.Quantity != item.Quantity {
			full = false
		}
		items = append(items, models.ReturnItem{OrderItemID: item.ID, Quantity: sel.Quantity, UnitPriceCents: item.UnitPriceCents})
	}
	return items, full, nil
}

func (s *service) insert(ctx context.Context, order *models.Order, userID uuid.UUID, reason enums.ReturnReason, notes *string, items []models.ReturnItem, refund int, full bool, now time.Time) (*models.Return, error) {
	number, err := s.numbers.Allocate(ctx, s.repo.ReturnNumberExists, "return number")
	if err != nil {
		return nil, err
	}
	ret := &models.Return{
		ID:                uuid.New(),
		ReturnNumber:      number,
		OrderID:           order.ID,
		UserID:            userID,
		Status:            enums.ReturnStatusRequested,
		Reason:            reason,
		CustomerNotes:     notes,
		RefundAmountCents: refund,
		IncludesShipping:  full,
		RequestedAt:       now,
		Items:             append([]models.ReturnItem(nil), items...),
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Insert(ctx, ret); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReturnRequested,
			AggregateType: enums.AggregateReturn,
			AggregateID:   ret.ID,
			Data: payloads.ReturnRequestedEvent{
				ReturnID:          ret.ID,
				ReturnNumber:      ret.ReturnNumber,
				OrderID:           ret.OrderID,
				Reason:            ret.Reason,
				RefundAmountCents: ret.RefundAmountCents,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// Approve credits the return in one transaction and then emails the credit
// note. The invoice is issued first if the reconcile job has not caught up.
func (s *service) Approve(ctx context.Context, returnID uuid.UUID, adminNotes *string) (*Approval, error) {
	current, err := s.Get(ctx, returnID)
	if err != nil {
		return nil, err
	}
	if current.Status != enums.ReturnStatusRequested {
		return nil, errNotRequested(current.Status)
	}
	invoice, err := s.docs.GenerateInvoice(ctx, current.OrderID)
	if err != nil {
		return nil, err
	}
	notes := trimmedPtr(adminNotes)

	var approval Approval
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ret, err := repo.LockByID(ctx, returnID)
		if err != nil {
			return mapLookupErr(err)
		}
		if ret.Status != enums.ReturnStatusRequested {
			return errNotRequested(ret.Status)
		}
		at := s.now().UTC()
		if err := repo.Resolve(ctx, ret.ID, enums.ReturnStatusApproved, notes, at); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "approve return")
		}
		ret.Status = enums.ReturnStatusApproved
		ret.AdminNotes = notes
		ret.ResolvedAt = &at

		note, err := s.docs.GenerateCreditNote(ctx, tx, ret, invoice)
		if err != nil {
			return err
		}
		approval = Approval{Return: ret, CreditNote: note}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReturnApproved,
			AggregateType: enums.AggregateReturn,
			AggregateID:   ret.ID,
			Data: payloads.ReturnApprovedEvent{
				ReturnID:          ret.ID,
				OrderID:           ret.OrderID,
				CreditNoteID:      note.ID,
				CreditNoteNumber:  note.CreditNoteNumber,
				RefundAmountCents: ret.RefundAmountCents,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ReturnTransition(string(enums.ReturnStatusApproved))
	s.notify(ctx, approval.Return, approvedMessage(*approval.Return, *approval.CreditNote))
	return &approval, nil
}

func (s *service) Reject(ctx context.Context, returnID uuid.UUID, adminNotes string) (*models.Return, error) {
	notes := strings.TrimSpace(adminNotes)
	if notes == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "admin notes are required to reject a return")
	}

	var rejected *models.Return
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ret, err := repo.LockByID(ctx, returnID)
		if err != nil {
			return mapLookupErr(err)
		}
		if ret.Status != enums.ReturnStatusRequested {
			return errNotRequested(ret.Status)
		}
		at := s.now().UTC()
		if err := repo.Resolve(ctx, ret.ID, enums.ReturnStatusRejected, &notes, at); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject return")
		}
		ret.Status = enums.ReturnStatusRejected
		ret.AdminNotes = &notes
		ret.ResolvedAt = &at
		rejected = ret
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReturnRejected,
			AggregateType: enums.AggregateReturn,
			AggregateID:   ret.ID,
			Data: payloads.ReturnRejectedEvent{
				ReturnID:   ret.ID,
				OrderID:    ret.OrderID,
				AdminNotes: notes,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ReturnTransition(string(enums.ReturnStatusRejected))
	s.notify(ctx, rejected, rejectedMessage(*rejected))
	return rejected, nil
}

// notify addresses msg to the order's customer. Failures are logged only.
func (s *service) notify(ctx context.Context, ret *models.Return, msg mailer.Message) {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"return_id": ret.ID.String(),
		"order_id":  ret.OrderID.String(),
	})
	order, err := s.orders.Get(ctx, ret.OrderID)
	if err != nil {
		s.logg.Error(logCtx, "load order for return email", err)
		return
	}
	msg.To = order.CustomerEmail
	msg.ToName = order.CustomerName
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logg.Warn(logCtx, "return email failed: "+err.Error())
	}
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Return, error) {
	ret, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupErr(err)
	}
	return ret, nil
}

// ListForOrder returns an order's returns. A non-nil userID must own the order.
func (s *service) ListForOrder(ctx context.Context, orderID uuid.UUID, userID *uuid.UUID) ([]models.Return, error) {
	if userID != nil {
		if _, err := s.orders.GetForUser(ctx, orderID, *userID); err != nil {
			return nil, err
		}
	}
	rows, err := s.repo.ListForOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list returns")
	}
	return rows, nil
}

func (s *service) List(ctx context.Context, params pagination.Params, status *enums.ReturnStatus) (pagination.Page[models.Return], error) {
	if status != nil && !status.IsValid() {
		return pagination.Page[models.Return]{}, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown return status %q", *status)
	}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return pagination.Page[models.Return]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	page, err := s.repo.List(ctx, params, status)
	if err != nil {
		return pagination.Page[models.Return]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list returns")
	}
	return page, nil
}

func errNotRequested(status enums.ReturnStatus) error {
	return pkgerrors.Newf(pkgerrors.CodePreconditionFailed, "return is already %s", status)
}

func mapLookupErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "return not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load return")
}

func trimmedPtr(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

var _ Documents = (documents.Service)(nil)
