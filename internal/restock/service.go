package restock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/fashionmarket/storefront-backend/internal/stock"
	"github.com/fashionmarket/storefront-backend/pkg/db"
	"github.com/fashionmarket/storefront-backend/pkg/db/models"
	"github.com/fashionmarket/storefront-backend/pkg/enums"
	pkgerrors "github.com/fashionmarket/storefront-backend/pkg/errors"
	"github.com/fashionmarket/storefront-backend/pkg/logger"
	"github.com/fashionmarket/storefront-backend/pkg/mailer"
	"github.com/fashionmarket/storefront-backend/pkg/metrics"
	"github.com/fashionmarket/storefront-backend/pkg/outbox"
	"github.com/fashionmarket/storefront-backend/pkg/outbox/payloads"
)

const pendingIndex = "idx_stock_notifications_pending"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// RequestInput is a waitlist sign-up.
type RequestInput struct {
	ProductID uuid.UUID
	Key       stock.VariantKey
	Email     string
}

// Service manages the restock waitlist.
type Service interface {
	RequestNotification(ctx context.Context, input RequestInput) (*models.StockNotification, bool, error)
	Fire(ctx context.Context, productID uuid.UUID, edges []stock.VariantKey) (int, error)
	Waitlist(ctx context.Context, productID uuid.UUID) ([]models.StockNotification, error)
}

// ServiceParams groups the restock service dependencies.
type ServiceParams struct {
	Repo     *Repository
	Products productLoader
	Tx       txRunner
	Outbox   outbox.Emitter
	Mailer   mailer.Sender
	Metrics  *metrics.DomainMetrics
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	repo     *Repository
	products productLoader
	tx       txRunner
	outbox   outbox.Emitter
	mailer   mailer.Sender
	metrics  *metrics.DomainMetrics
	logg     *logger.Logger
	now      func() time.Time
	validate *validator.Validate
}

// NewService validates dependencies.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("restock repository required")
	case params.Products == nil:
		return nil, fmt.Errorf("product loader required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case params.Mailer == nil:
		return nil, fmt.Errorf("mailer required")
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
		products: params.Products,
		tx:       params.Tx,
		outbox:   params.Outbox,
		mailer:   params.Mailer,
		metrics:  params.Metrics,
		logg:     logg,
		now:      now,
		validate: validator.New(),
	}, nil
}

// RequestNotification is idempotent while a pending entry exists for the
// same product, slot and (case-insensitive) email. The bool reports whether
// a new entry was created.
func (s *service) RequestNotification(ctx context.Context, input RequestInput) (*models.StockNotification, bool, error) {
	email := strings.TrimSpace(input.Email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "a valid email is required")
	}
	if input.ProductID == uuid.Nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	key := stock.NewVariantKey(input.Key.Size, input.Key.Color)

	product, err := s.products.FindProduct(ctx, input.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if err := stock.ValidateKey(*product, key); err != nil {
		return nil, false, err
	}

	existing, err := s.repo.FindPending(ctx, input.ProductID, key, email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load waitlist entry")
	}

	entry := &models.StockNotification{
		ProductID: input.ProductID,
		Size:      key.Size,
		Color:     key.Color,
		Email:     email,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Insert(ctx, entry); err != nil {
		if db.IsUniqueViolation(err, pendingIndex, "stock_notifications.") {
			existing, findErr := s.repo.FindPending(ctx, input.ProductID, key, email)
			if findErr == nil {
				return existing, false, nil
			}
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create waitlist entry")
	}
	return entry, true, nil
}

// Fire handles each edge independently: pending entries are flagged in one
// update, then each receives one best-effort email. A failed send never
// unflags an entry. Returns the number of entries flagged.
func (s *service) Fire(ctx context.Context, productID uuid.UUID, edges []stock.VariantKey) (int, error) {
	if len(edges) == 0 {
		return 0, nil
	}
	product, err := s.products.FindProduct(ctx, productID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	var (
		fired int
		errs  error
	)
	for _, edge := range edges {
		key := stock.NewVariantKey(edge.Size, edge.Color)
		notified, err := s.markEdge(ctx, productID, key)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("edge %s: %w", key, err))
			continue
		}
		fired += len(notified)
		s.metrics.RestockFired(len(notified))
		s.sendAll(ctx, *product, key, notified)
	}
	return fired, errs
}

func (s *service) markEdge(ctx context.Context, productID uuid.UUID, key stock.VariantKey) ([]models.StockNotification, error) {
	var notified []models.StockNotification
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		pending, err := repo.LockPending(ctx, productID, key)
		if err != nil {
			return err
		}
		if len(pending) > 0 {
			ids := make([]uuid.UUID, 0, len(pending))
			for _, entry := range pending {
				ids = append(ids, entry.ID)
			}
			if _, err := repo.MarkNotified(ctx, ids, s.now().UTC()); err != nil {
				return err
			}
			notified = pending
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStockRestocked,
			AggregateType: enums.AggregateProduct,
			AggregateID:   productID,
			Data: payloads.StockRestockedEvent{
				ProductID:     productID,
				Size:          key.Size,
				Color:         key.Color,
				NotifiedCount: len(pending),
			},
		})
	})
	return notified, err
}

func (s *service) sendAll(ctx context.Context, product models.Product, key stock.VariantKey, entries []models.StockNotification) {
	for _, entry := range entries {
		msg := restockMessage(product, key, entry.Email)
		if err := s.mailer.Send(ctx, msg); err != nil {
			s.metrics.RestockFailed()
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"product_id":  product.ID.String(),
				"variant":     key.String(),
				"waitlist_id": entry.ID.String(),
			})
			s.logg.Warn(logCtx, "restock email failed: "+err.Error())
		}
	}
}

func restockMessage(product models.Product, key stock.VariantKey, email string) mailer.Message {
	variant := describe(key)
	body := fmt.Sprintf("Good news! %s is back in stock", product.Name)
	if variant != "" {
		body += " in " + variant
	}
	body += ".\n\nQuantities are limited, so order soon.\n\nFashionMarket"
	return mailer.Message{
		To:      email,
		Subject: "Back in stock: " + product.Name,
		Body:    body,
	}
}

func describe(key stock.VariantKey) string {
	var parts []string
	if key.Size != nil {
		parts = append(parts, "size "+*key.Size)
	}
	if key.Color != nil {
		parts = append(parts, *key.Color)
	}
	return strings.Join(parts, ", ")
}

// Waitlist lists a product's sign-ups for the admin view.
func (s *service) Waitlist(ctx context.Context, productID uuid.UUID) ([]models.StockNotification, error) {
	if _, err := s.products.FindProduct(ctx, productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	entries, err := s.repo.ListForProduct(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list waitlist")
	}
	return entries, nil
}
