package returns

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fashionmarket/storefront-backend/pkg/db"
	"github.com/fashionmarket/storefront-backend/pkg/db/models"
	"github.com/fashionmarket/storefront-backend/pkg/enums"
	"github.com/fashionmarket/storefront-backend/pkg/pagination"
)

// Repository persists returns and their items.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{db: conn}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) Insert(ctx context.Context, ret *models.Return) error {
	if ret.ID == uuid.Nil {
		ret.ID = uuid.New()
	}
	for i := range ret.Items {
		if ret.Items[i].ID == uuid.Nil {
			ret.Items[i].ID = uuid.New()
		}
		ret.Items[i].ReturnID = ret.ID
	}
	return r.db.WithContext(ctx).Create(ret).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Return, error) {
	var ret models.Return
	if err := r.db.WithContext(ctx).Preload("Items").First(&ret, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &ret, nil
}

// LockByID loads the return row for update together with its items.
func (r *Repository) LockByID(ctx context.Context, id uuid.UUID) (*models.Return, error) {
	var ret models.Return
	if err := db.ForUpdate(r.db.WithContext(ctx)).First(&ret, "id = ?", id).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Where("return_id = ?", id).Find(&ret.Items).Error; err != nil {
		return nil, err
	}
	return &ret, nil
}

// HasActive reports whether the order already has a non-rejected return.
func (r *Repository) HasActive(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var id uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Return{}).
		Select("id").
		Where("order_id = ? AND status <> ?", orderID, enums.ReturnStatusRejected).
		Take(&id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (r *Repository) ReturnNumberExists(ctx context.Context, number string) (bool, error) {
	var id uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Return{}).
		Select("id").
		Where("return_number = ?", number).
		Take(&id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Resolve moves a requested return to its final status.
func (r *Repository) Resolve(ctx context.Context, id uuid.UUID, status enums.ReturnStatus, notes *string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.Return{}).
		Where("id = ? AND status = ?", id, enums.ReturnStatusRequested).
		Updates(map[string]any{
			"status":      status,
			"admin_notes": notes,
			"resolved_at": at,
			"updated_at":  at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repository) ListForOrder(ctx context.Context, orderID uuid.UUID) ([]models.Return, error) {
	var rows []models.Return
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("order_id = ?", orderID).
		Order("requested_at DESC").
		Find(&rows).Error
	return rows, err
}

// List pages returns newest first, optionally by status.
func (r *Repository) List(ctx context.Context, params pagination.Params, status *enums.ReturnStatus) (pagination.Page[models.Return], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[models.Return]{}, err
	}
	q := r.db.WithContext(ctx).Preload("Items").Model(&models.Return{})
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	var rows []models.Return
	if err := pagination.NewestFirst("requested_at").Apply(q, cursor, params.Limit).Find(&rows).Error; err != nil {
		return pagination.Page[models.Return]{}, err
	}
	return pagination.Trim(rows, params.Limit, func(ret models.Return) pagination.Cursor {
		return pagination.Cursor{At: ret.RequestedAt, ID: ret.ID}
	}), nil
}
