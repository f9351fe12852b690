package documents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fashionmarket/storefront-backend/pkg/db"
	"github.com/fashionmarket/storefront-backend/pkg/db/models"
	"github.com/fashionmarket/storefront-backend/pkg/enums"
	pkgerrors "github.com/fashionmarket/storefront-backend/pkg/errors"
	"github.com/fashionmarket/storefront-backend/pkg/logger"
	"github.com/fashionmarket/storefront-backend/pkg/metrics"
	"github.com/fashionmarket/storefront-backend/pkg/outbox"
	"github.com/fashionmarket/storefront-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service issues and reads invoices and credit notes.
type Service interface {
	GenerateInvoice(ctx context.Context, orderID uuid.UUID) (*models.Invoice, error)
	GenerateCreditNote(ctx context.Context, tx *gorm.DB, ret *models.Return, invoice *models.Invoice) (*models.CreditNote, error)
	InvoiceForOrder(ctx context.Context, orderID uuid.UUID) (*models.Invoice, error)
	GetInvoice(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	GetCreditNote(ctx context.Context, id uuid.UUID) (*models.CreditNote, error)
	OrdersMissingInvoice(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
}

// ServiceParams groups the document service dependencies.
type ServiceParams struct {
	Repo    *Repository
	Tx      txRunner
	Outbox  outbox.Emitter
	Metrics *metrics.DomainMetrics
	Logger  *logger.Logger
	Now     func() time.Time
}

type service struct {
	repo    *Repository
	tx      txRunner
	outbox  outbox.Emitter
	metrics *metrics.DomainMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewService validates dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("documents repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
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
		tx:      params.Tx,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		logg:    logg,
		now:     now,
	}, nil
}

// GenerateInvoice issues the order's single invoice. A repeat call, or a
// call that loses a race with another generator, returns the stored one.
func (s *service) GenerateInvoice(ctx context.Context, orderID uuid.UUID) (*models.Invoice, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var (
		issued  *models.Invoice
		created bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.FindInvoiceByOrder(ctx, orderID)
		if err == nil {
			issued = existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
		}

		order, err := repo.FindOrder(ctx, orderID)
		if err != nil {
			return mapLookupErr(err, "order not found", "load order")
		}
		if order.Status == enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodePreconditionFailed, "order is not paid")
		}

		issuedAt := s.now().UTC()
		seq, err := repo.NextSequence(ctx, InvoiceSequences, issuedAt.Year())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate invoice number")
		}
		invoice, err := BuildInvoice(*order, InvoiceNumber(issuedAt.Year(), seq), issuedAt)
		if err != nil {
			return err
		}
		if err := repo.InsertInvoice(ctx, invoice); err != nil {
			return err
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInvoiceIssued,
			AggregateType: enums.AggregateInvoice,
			AggregateID:   invoice.ID,
			Data: payloads.InvoiceIssuedEvent{
				InvoiceID:     invoice.ID,
				InvoiceNumber: invoice.InvoiceNumber,
				OrderID:       invoice.OrderID,
				TotalCents:    invoice.TotalCents,
			},
		}); err != nil {
			return err
		}
		issued = invoice
		created = true
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err, "invoices_order_id_key", "invoices.order_id") {
			existing, findErr := s.repo.FindInvoiceByOrder(ctx, orderID)
			if findErr == nil {
				return existing, nil
			}
		}
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "issue invoice")
		}
		return nil, err
	}

	if created {
		s.metrics.InvoiceIssued()
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":       orderID.String(),
			"invoice_number": issued.InvoiceNumber,
		})
		s.logg.Info(logCtx, "invoice issued")
	}
	return issued, nil
}

// GenerateCreditNote runs inside the caller's approval transaction.
func (s *service) GenerateCreditNote(ctx context.Context, tx *gorm.DB, ret *models.Return, invoice *models.Invoice) (*models.CreditNote, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "credit notes require a transaction")
	}
	if ret == nil || invoice == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "return and invoice required")
	}
	if ret.OrderID != invoice.OrderID {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "invoice belongs to another order")
	}
	repo := s.repo.WithTx(tx)

	issuedAt := s.now().UTC()
	seq, err := repo.NextSequence(ctx, CreditNoteSequences, issuedAt.Year())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate credit note number")
	}
	note, err := BuildCreditNote(*ret, *invoice, CreditNoteNumber(issuedAt.Year(), seq), issuedAt)
	if err != nil {
		return nil, err
	}
	if err := repo.InsertCreditNote(ctx, note); err != nil {
		if db.IsUniqueViolation(err, "credit_notes_return_id_key", "credit_notes.return_id") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "return already has a credit note")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert credit note")
	}
	return note, nil
}

func (s *service) InvoiceForOrder(ctx context.Context, orderID uuid.UUID) (*models.Invoice, error) {
	invoice, err := s.repo.FindInvoiceByOrder(ctx, orderID)
	if err != nil {
		return nil, mapLookupErr(err, "invoice not found", "load invoice")
	}
	return invoice, nil
}

func (s *service) GetInvoice(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	invoice, err := s.repo.FindInvoice(ctx, id)
	if err != nil {
		return nil, mapLookupErr(err, "invoice not found", "load invoice")
	}
	return invoice, nil
}

func (s *service) GetCreditNote(ctx context.Context, id uuid.UUID) (*models.CreditNote, error) {
	note, err := s.repo.FindCreditNote(ctx, id)
	if err != nil {
		return nil, mapLookupErr(err, "credit note not found", "load credit note")
	}
	return note, nil
}

func (s *service) OrdersMissingInvoice(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = 100
	}
	ids, err := s.repo.ListOrdersWithoutInvoice(ctx, cutoff, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders without invoice")
	}
	return ids, nil
}

func mapLookupErr(err error, notFound, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
