package purchases

import (
	"context"

	"github.com/avenqor/avenqor-backend/pkg/db/models"
	"github.com/avenqor/avenqor-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository manages persistence for purchase records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, record *models.PurchaseRecord) error
	Save(ctx context.Context, record *models.PurchaseRecord) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PurchaseRecord, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID, kind *enums.PurchaseKind, limit, offset int) ([]models.PurchaseRecord, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a purchase record repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, record *models.PurchaseRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) Save(ctx context.Context, record *models.PurchaseRecord) error {
	return r.db.WithContext(ctx).Save(record).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PurchaseRecord, error) {
	var record models.PurchaseRecord
	if err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) ListByAccount(ctx context.Context, accountID uuid.UUID, kind *enums.PurchaseKind, limit, offset int) ([]models.PurchaseRecord, error) {
	query := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset)
	if kind != nil {
		query = query.Where("kind = ?", *kind)
	}

	var records []models.PurchaseRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
