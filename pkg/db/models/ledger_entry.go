package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/avenqor/avenqor-backend/pkg/enums"
)

// LedgerEntry is the append-only audit trail of every balance mutation.
// Entries are written in the same transaction as the balance update and
// are never revised afterwards.
type LedgerEntry struct {
	ID           uuid.UUID             `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	AccountID    uuid.UUID             `gorm:"column:account_id;type:uuid;not null;index"`
	RecordID     *uuid.UUID            `gorm:"column:record_id;type:uuid;index"`
	Type         enums.LedgerEntryType `gorm:"column:type;not null"`
	Amount       int64                 `gorm:"column:amount;not null"`
	BalanceAfter int64                 `gorm:"column:balance_after;not null"`
	Metadata     json.RawMessage       `gorm:"column:metadata;type:jsonb"`
	CreatedAt    time.Time             `gorm:"column:created_at;autoCreateTime"`
}
