package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/avenqor/avenqor-backend/pkg/enums"
)

// GenerationJob is the outbox row that makes orchestration durable: it is
// written in the same transaction as the balance reservation and purchase
// record, then published to the queue by the worker's publisher loop.
type GenerationJob struct {
	ID          uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	RecordID    uuid.UUID          `gorm:"column:record_id;type:uuid;not null;uniqueIndex"`
	AccountID   uuid.UUID          `gorm:"column:account_id;type:uuid;not null;index"`
	Kind        enums.PurchaseKind `gorm:"column:kind;not null"`
	Status      enums.JobStatus    `gorm:"column:status;not null;default:'pending';index"`
	Attempts    int                `gorm:"column:attempts;not null;default:0"`
	LastError   *string            `gorm:"column:last_error"`
	Payload     json.RawMessage    `gorm:"column:payload;type:jsonb;not null"`
	PublishedAt *time.Time         `gorm:"column:published_at"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
