package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/avenqor/avenqor-backend/pkg/db/models"
	"github.com/avenqor/avenqor-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository manages the generation job outbox rows. Attempts counts every
// delivery attempt, publish and processing alike, against the configured cap.
type Repository struct {
	db *gorm.DB
}

// NewRepository returns a job repository bound to the provided database.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Insert writes a job row inside the caller's transaction. The row must
// commit together with the purchase record and reservation it belongs to.
func (r *Repository) Insert(tx *gorm.DB, job *models.GenerationJob) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(job).Error
}

// FetchPendingForPublish returns the oldest pending rows still under the
// attempt cap.
func (r *Repository) FetchPendingForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.GenerationJob, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	var rows []models.GenerationJob
	err := tx.Where("status = ? AND attempts < ?", enums.JobStatusPending, maxAttempts).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// MarkPublishedTx moves a row to published inside the publisher's batch
// transaction.
func (r *Repository) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Model(&models.GenerationJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       enums.JobStatusPublished,
			"published_at": time.Now().UTC(),
		}).Error
}

// MarkFailedTx records a failed publish attempt, keeping the row pending
// for the next poll.
func (r *Repository) MarkFailedTx(tx *gorm.DB, id uuid.UUID, cause error) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	msg := cause.Error()
	return tx.Model(&models.GenerationJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_error": msg,
			"attempts":   gorm.Expr("attempts + 1"),
		}).Error
}

// MarkTerminalTx fails the row for good inside the publisher's transaction.
func (r *Repository) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, cause error) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	msg := cause.Error()
	return tx.Model(&models.GenerationJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     enums.JobStatusFailed,
			"last_error": msg,
			"attempts":   gorm.Expr("attempts + 1"),
		}).Error
}

// FindByRecordID loads the job for a purchase record.
func (r *Repository) FindByRecordID(ctx context.Context, recordID uuid.UUID) (*models.GenerationJob, error) {
	var job models.GenerationJob
	if err := r.db.WithContext(ctx).First(&job, "record_id = ?", recordID).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// RecordAttempt counts one processing attempt against the row.
func (r *Repository) RecordAttempt(ctx context.Context, recordID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.GenerationJob{}).
		Where("record_id = ?", recordID).
		UpdateColumn("attempts", gorm.Expr("attempts + 1")).Error
}

// MarkCompleted finalizes the row after a clean run.
func (r *Repository) MarkCompleted(ctx context.Context, recordID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.GenerationJob{}).
		Where("record_id = ?", recordID).
		UpdateColumn("status", enums.JobStatusCompleted).Error
}

// MarkTerminal fails the row for good from the consumer side.
func (r *Repository) MarkTerminal(ctx context.Context, recordID uuid.UUID, message string) error {
	return r.db.WithContext(ctx).Model(&models.GenerationJob{}).
		Where("record_id = ?", recordID).
		Updates(map[string]any{
			"status":     enums.JobStatusFailed,
			"last_error": message,
		}).Error
}

// RecordError stores the latest processing error without finalizing the row.
func (r *Repository) RecordError(ctx context.Context, recordID uuid.UUID, message string) error {
	return r.db.WithContext(ctx).Model(&models.GenerationJob{}).
		Where("record_id = ?", recordID).
		UpdateColumn("last_error", message).Error
}
