package stock

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/fashionmarket/storefront-backend/pkg/db/models"
	"github.com/fashionmarket/storefront-backend/pkg/enums"
	pkgerrors "github.com/fashionmarket/storefront-backend/pkg/errors"
	"github.com/fashionmarket/storefront-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Restocker is told about 0 -> positive edges once the stock write commits.
type Restocker interface {
	Fire(ctx context.Context, productID uuid.UUID, edges []VariantKey) (int, error)
}

// ProductStock is the admin detail view of one product.
type ProductStock struct {
	Product models.Product        `json:"product"`
	Rows    []models.VariantStock `json:"rows"`
	Summary Summary               `json:"summary"`
	Matrix  *Matrix               `json:"matrix,omitempty"`
}

// Service is the variant stock store.
type Service interface {
	SetStock(ctx context.Context, productID uuid.UUID, key VariantKey, qty int) (*BulkResult, error)
	BulkSet(ctx context.Context, productID uuid.UUID, entries []VariantQuantity) (*BulkResult, error)
	GetStock(ctx context.Context, productID uuid.UUID, key VariantKey) (int, error)
	TotalStock(ctx context.Context, productID uuid.UUID) (int, error)
	Variants(ctx context.Context, productID uuid.UUID) ([]models.VariantStock, error)
	ProductStock(ctx context.Context, productID uuid.UUID) (*ProductStock, error)
	Overview(ctx context.Context, filter enums.StockFilter) ([]Summary, error)
}

// ServiceParams groups the stock service dependencies.
type ServiceParams struct {
	Repo      *Repository
	Tx        txRunner
	Restocker Restocker
	Logger    *logger.Logger
}

type service struct {
	repo      *Repository
	tx        txRunner
	restocker Restocker
	logg      *logger.Logger
	loads     singleflight.Group
}

// NewService validates dependencies. Restocker is optional.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:      params.Repo,
		tx:        params.Tx,
		restocker: params.Restocker,
		logg:      logg,
	}, nil
}

func (s *service) SetStock(ctx context.Context, productID uuid.UUID, key VariantKey, qty int) (*BulkResult, error) {
	return s.BulkSet(ctx, productID, []VariantQuantity{{Key: key, Quantity: qty}})
}

// BulkSet applies every entry in one transaction. Later duplicates win and
// each change reports the value stored before the batch.
func (s *service) BulkSet(ctx context.Context, productID uuid.UUID, entries []VariantQuantity) (*BulkResult, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if len(entries) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one variant is required")
	}
	batch := dedupe(entries)

	result := &BulkResult{ProductID: productID}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		product, err := repo.LockProduct(ctx, productID)
		if err != nil {
			return mapLookupErr(err, "product not found", "lock product")
		}
		if err := validateKeys(*product, batch); err != nil {
			return err
		}

		// A product without rows keeps its stock in the flat column, which is
		// the prior value of its single unsized, uncolored variant.
		_, existing, err := repo.SumVariants(ctx, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum variant stock")
		}
		prior := map[string]int{}
		if existing == 0 {
			prior[VariantKey{}.id()] = max(product.Stock, 0)
		}

		for _, entry := range batch {
			change, err := s.apply(ctx, repo, productID, entry, prior[entry.Key.id()])
			if err != nil {
				return err
			}
			result.Changes = append(result.Changes, change)
			if change.Restocked() {
				result.Restocked = append(result.Restocked, change.Key)
			}
		}

		total, _, err := repo.SumVariants(ctx, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum variant stock")
		}
		if err := repo.UpdateProductStock(ctx, productID, total); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product stock")
		}
		result.TotalStock = total
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.loads.Forget(overviewKey)
	s.fire(ctx, result)
	return result, nil
}

// apply writes one slot. missing is the previous quantity reported when the
// slot has no row yet.
func (s *service) apply(ctx context.Context, repo *Repository, productID uuid.UUID, entry VariantQuantity, missing int) (VariantChange, error) {
	qty := max(entry.Quantity, 0)
	change := VariantChange{Key: entry.Key, Quantity: qty, Previous: missing}

	existing, err := repo.FindVariant(ctx, productID, entry.Key)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		row := &models.VariantStock{
			ProductID: productID,
			Size:      entry.Key.Size,
			Color:     entry.Key.Color,
			Quantity:  qty,
		}
		if err := repo.InsertVariant(ctx, row); err != nil {
			return change, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert variant stock")
		}
	case err != nil:
		return change, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant stock")
	default:
		change.Previous = existing.Quantity
		if err := repo.UpdateQuantity(ctx, existing.ID, qty); err != nil {
			return change, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update variant stock")
		}
	}
	return change, nil
}

func (s *service) fire(ctx context.Context, result *BulkResult) {
	if s.restocker == nil || len(result.Restocked) == 0 {
		return
	}
	fired, err := s.restocker.Fire(ctx, result.ProductID, result.Restocked)
	result.NotificationsFired = fired
	if err != nil {
		logCtx := s.logg.WithProductID(ctx, result.ProductID.String())
		s.logg.Error(logCtx, "restock notifications failed", err)
	}
}

func (s *service) GetStock(ctx context.Context, productID uuid.UUID, key VariantKey) (int, error) {
	row, err := s.repo.FindVariant(ctx, productID, NewVariantKey(key.Size, key.Color))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant stock")
	}
	return row.Quantity, nil
}

// TotalStock sums the rows, falling back to the flat product stock when none exist.
func (s *service) TotalStock(ctx context.Context, productID uuid.UUID) (int, error) {
	total, rows, err := s.repo.SumVariants(ctx, productID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum variant stock")
	}
	if rows > 0 {
		return total, nil
	}
	product, err := s.repo.FindProduct(ctx, productID)
	if err != nil {
		return 0, mapLookupErr(err, "product not found", "load product")
	}
	return product.Stock, nil
}

func (s *service) Variants(ctx context.Context, productID uuid.UUID) ([]models.VariantStock, error) {
	rows, err := s.repo.ListVariants(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list variant stock")
	}
	return rows, nil
}

func (s *service) ProductStock(ctx context.Context, productID uuid.UUID) (*ProductStock, error) {
	product, err := s.repo.FindProduct(ctx, productID)
	if err != nil {
		return nil, mapLookupErr(err, "product not found", "load product")
	}
	rows, err := s.Variants(ctx, productID)
	if err != nil {
		return nil, err
	}
	return &ProductStock{
		Product: *product,
		Rows:    rows,
		Summary: Summarize(*product, rows),
		Matrix:  BuildMatrix(*product, rows),
	}, nil
}

const (
	overviewKey         = "overview"
	overviewLoadTimeout = 15 * time.Second
)

// Overview summarizes every active product. Concurrent callers share one load.
func (s *service) Overview(ctx context.Context, filter enums.StockFilter) ([]Summary, error) {
	if !filter.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid stock filter %q", filter)
	}
	// The load is shared, so one caller going away must not fail the others.
	v, err, _ := s.loads.Do(overviewKey, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), overviewLoadTimeout)
		defer cancel()
		return s.loadOverview(loadCtx)
	})
	if err != nil {
		return nil, err
	}
	return Filter(v.([]Summary), filter), nil
}

func (s *service) loadOverview(ctx context.Context) ([]Summary, error) {
	products, err := s.repo.ListActiveProducts(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	ids := make([]uuid.UUID, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	rowsByProduct, err := s.repo.ListVariantsForProducts(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list variant stock")
	}
	summaries := make([]Summary, 0, len(products))
	for _, p := range products {
		summaries = append(summaries, Summarize(p, rowsByProduct[p.ID]))
	}
	return summaries, nil
}

func dedupe(entries []VariantQuantity) []VariantQuantity {
	index := make(map[string]int, len(entries))
	out := make([]VariantQuantity, 0, len(entries))
	for _, entry := range entries {
		entry.Key = NewVariantKey(entry.Key.Size, entry.Key.Color)
		if i, ok := index[entry.Key.id()]; ok {
			out[i].Quantity = entry.Quantity
			continue
		}
		index[entry.Key.id()] = len(out)
		out = append(out, entry)
	}
	return out
}

// InvalidVariant describes a key outside the product's axes.
type InvalidVariant struct {
	Size   *string `json:"size"`
	Color  *string `json:"color"`
	Reason string  `json:"reason"`
}

func validateKeys(product models.Product, entries []VariantQuantity) error {
	var invalid []InvalidVariant
	for _, entry := range entries {
		if reason := VariantProblem(product, entry.Key); reason != "" {
			invalid = append(invalid, InvalidVariant{Size: entry.Key.Size, Color: entry.Key.Color, Reason: reason})
		}
	}
	if len(invalid) == 0 {
		return nil
	}
	return pkgerrors.Newf(pkgerrors.CodeValidation, "%d variant(s) do not match the product", len(invalid)).
		WithDetails(map[string]any{"invalid_variants": invalid})
}

// VariantProblem explains why key is not a slot of product, or returns "".
func VariantProblem(product models.Product, key VariantKey) string {
	if reason := axisViolation(product.Sizes, key.Size, "size"); reason != "" {
		return reason
	}
	return axisViolation(product.Colors, key.Color, "color")
}

// ValidateKey checks a single key against the product's axes.
func ValidateKey(product models.Product, key VariantKey) error {
	return validateKeys(product, []VariantQuantity{{Key: NewVariantKey(key.Size, key.Color)}})
}

func axisViolation(axis []string, value *string, name string) string {
	if len(axis) == 0 {
		if value != nil {
			return "product has no " + name + " axis"
		}
		return ""
	}
	if value == nil {
		return name + " is required"
	}
	if !slices.Contains(axis, *value) {
		return "unknown " + name + " " + *value
	}
	return ""
}

func mapLookupErr(err error, notFound, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
