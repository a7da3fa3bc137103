package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/avenqor/avenqor-backend/pkg/db/models"
	"github.com/avenqor/avenqor-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Payload is the message body published for one generation job.
type Payload struct {
	RecordID  uuid.UUID          `json:"record_id"`
	AccountID uuid.UUID          `json:"account_id"`
	Kind      enums.PurchaseKind `json:"kind"`
}

// Queue writes generation jobs into the outbox table. It satisfies the
// intake service's JobQueue so the job row commits atomically with the
// reservation and the purchase record.
type Queue struct {
	repo *Repository
}

// NewQueue wires the outbox queue.
func NewQueue(repo *Repository) (*Queue, error) {
	if repo == nil {
		return nil, fmt.Errorf("job repository is required")
	}
	return &Queue{repo: repo}, nil
}

// Enqueue stages a job for the record inside the caller's transaction.
func (q *Queue) Enqueue(ctx context.Context, tx *gorm.DB, record *models.PurchaseRecord) error {
	if record == nil {
		return errors.New("purchase record required")
	}
	data, err := json.Marshal(Payload{
		RecordID:  record.ID,
		AccountID: record.AccountID,
		Kind:      record.Kind,
	})
	if err != nil {
		return err
	}
	job := &models.GenerationJob{
		ID:        uuid.New(),
		RecordID:  record.ID,
		AccountID: record.AccountID,
		Kind:      record.Kind,
		Status:    enums.JobStatusPending,
		Payload:   data,
	}
	return q.repo.Insert(tx, job)
}
