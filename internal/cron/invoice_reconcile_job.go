package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/fashionmarket/storefront-backend/pkg/db/models"
	"github.com/fashionmarket/storefront-backend/pkg/logger"
)

const (
	defaultInvoiceReconcileAge = 5 * time.Minute
	invoiceReconcileBatch      = 100
)

type invoiceIssuer interface {
	OrdersMissingInvoice(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
	GenerateInvoice(ctx context.Context, orderID uuid.UUID) (*models.Invoice, error)
}

type InvoiceReconcileJobParams struct {
	Logger    *logger.Logger
	Documents invoiceIssuer
	// MinAge leaves freshly paid orders to the checkout path.
	MinAge    time.Duration
	BatchSize int
}

// NewInvoiceReconcileJob issues invoices for paid orders whose synchronous
// invoice generation failed.
func NewInvoiceReconcileJob(params InvoiceReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Documents == nil {
		return nil, fmt.Errorf("documents service required")
	}
	age := params.MinAge
	if age <= 0 {
		age = defaultInvoiceReconcileAge
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = invoiceReconcileBatch
	}
	return &invoiceReconcileJob{
		logg:  params.Logger,
		docs:  params.Documents,
		age:   age,
		batch: batch,
		now:   time.Now,
	}, nil
}

type invoiceReconcileJob struct {
	logg  *logger.Logger
	docs  invoiceIssuer
	age   time.Duration
	batch int
	now   func() time.Time
}

func (j *invoiceReconcileJob) Name() string { return "invoice-reconcile" }

func (j *invoiceReconcileJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.age)
	ids, err := j.docs.OrdersMissingInvoice(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("list orders missing invoice: %w", err)
	}

	var errs error
	issued := 0
	for _, id := range ids {
		if _, err := j.docs.GenerateInvoice(ctx, id); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", id, err))
			continue
		}
		issued++
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"pending": len(ids),
		"issued":  issued,
	})
	j.logg.Info(logCtx, "invoice reconcile complete")
	return errs
}
