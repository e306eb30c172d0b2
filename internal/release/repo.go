package release

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tobiafolabi/nairamart-backend/pkg/db/models"
	"github.com/tobiafolabi/nairamart-backend/pkg/enums"
	"github.com/tobiafolabi/nairamart-backend/pkg/pagination"
)

// Repository persists fund release records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, release *models.FundRelease) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.FundRelease, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.FundRelease, error)
	FindBySubOrder(ctx context.Context, orderID, subOrderID uuid.UUID) (*models.FundRelease, error)
	FindBySubOrderForUpdate(ctx context.Context, orderID, subOrderID uuid.UUID) (*models.FundRelease, error)
	Save(ctx context.Context, release *models.FundRelease) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]models.FundRelease, error)
	ListByStore(ctx context.Context, storeID uuid.UUID, params pagination.Params) ([]models.FundRelease, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a fund release repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, release *models.FundRelease) error {
	return r.db.WithContext(ctx).Create(release).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.FundRelease, error) {
	var release models.FundRelease
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&release).Error; err != nil {
		return nil, err
	}
	return &release, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.FundRelease, error) {
	var release models.FundRelease
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&release).Error; err != nil {
		return nil, err
	}
	return &release, nil
}

func (r *repository) FindBySubOrder(ctx context.Context, orderID, subOrderID uuid.UUID) (*models.FundRelease, error) {
	var release models.FundRelease
	if err := r.db.WithContext(ctx).
		Where("order_id = ? AND sub_order_id = ?", orderID, subOrderID).
		First(&release).Error; err != nil {
		return nil, err
	}
	return &release, nil
}

func (r *repository) FindBySubOrderForUpdate(ctx context.Context, orderID, subOrderID uuid.UUID) (*models.FundRelease, error) {
	var release models.FundRelease
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_id = ? AND sub_order_id = ?", orderID, subOrderID).
		First(&release).Error; err != nil {
		return nil, err
	}
	return &release, nil
}

func (r *repository) Save(ctx context.Context, release *models.FundRelease) error {
	return r.db.WithContext(ctx).Save(release).Error
}

// ListDue returns non-terminal releases whose scheduled time has passed. The
// release worker feeds each through the evaluate-and-advance operation.
func (r *repository) ListDue(ctx context.Context, now time.Time, limit int) ([]models.FundRelease, error) {
	var due []models.FundRelease
	err := r.db.WithContext(ctx).
		Where("status IN ?", []enums.ReleaseStatus{
			enums.ReleaseStatusPending,
			enums.ReleaseStatusReady,
			enums.ReleaseStatusFailed,
		}).
		Where("scheduled_release_at <= ?", now).
		Order("scheduled_release_at ASC").
		Limit(limit).
		Find(&due).Error
	if err != nil {
		return nil, err
	}
	return due, nil
}

func (r *repository) ListByStore(ctx context.Context, storeID uuid.UUID, params pagination.Params) ([]models.FundRelease, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	query := r.db.WithContext(ctx).
		Where("store_id = ?", storeID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit)

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var releases []models.FundRelease
	if err := query.Find(&releases).Error; err != nil {
		return nil, err
	}
	return releases, nil
}
