package history

import (
	"context"

	"github.com/avenqor/avenqor-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository reads the unified transaction feed. Every purchase variant
// lives in the same table, so one ordered query paginates the whole
// history correctly regardless of how kinds interleave.
type Repository interface {
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]models.PurchaseRecord, error)
	CountByAccount(ctx context.Context, accountID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a history repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]models.PurchaseRecord, error) {
	var records []models.PurchaseRecord
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repository) CountByAccount(ctx context.Context, accountID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PurchaseRecord{}).
		Where("account_id = ?", accountID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
