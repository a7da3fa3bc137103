package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/avenqor/avenqor-backend/pkg/enums"
	pkgerrors "github.com/avenqor/avenqor-backend/pkg/errors"
	"github.com/avenqor/avenqor-backend/pkg/redis"
	"github.com/google/uuid"
)

// Progress is the ephemeral, advisory view of one generation run. It is
// keyed by record id so concurrent runs never clobber each other, expires
// with a TTL, and has no bearing on the durable purchase record.
type Progress struct {
	RecordID  uuid.UUID             `json:"record_id"`
	Stage     enums.GenerationStage `json:"stage"`
	Percent   int                   `json:"percent"`
	Message   string                `json:"message,omitempty"`
	Error     string                `json:"error,omitempty"`
	Warnings  []string              `json:"warnings,omitempty"`
	Artifacts map[string]string     `json:"artifacts,omitempty"`
	UpdatedAt time.Time             `json:"updated_at"`
}

type progressBackend interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	ProgressKey(recordID string) string
}

// ProgressStore reads and writes per-record progress snapshots in Redis.
type ProgressStore struct {
	backend progressBackend
	ttl     time.Duration
}

// NewProgressStore wires a progress store over the provided Redis client.
func NewProgressStore(backend progressBackend, ttl time.Duration) (*ProgressStore, error) {
	if backend == nil {
		return nil, fmt.Errorf("progress backend required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ProgressStore{backend: backend, ttl: ttl}, nil
}

// Set overwrites the snapshot for the record.
func (p *ProgressStore) Set(ctx context.Context, progress Progress) error {
	if progress.RecordID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "record id is required")
	}
	if progress.Percent == 0 {
		progress.Percent = progress.Stage.Percent()
	}
	progress.UpdatedAt = time.Now().UTC()

	payload, err := json.Marshal(progress)
	if err != nil {
		return err
	}
	return p.backend.Set(ctx, p.backend.ProgressKey(progress.RecordID.String()), payload, p.ttl)
}

// Get returns the snapshot for the record, or NotFound once it has expired.
func (p *ProgressStore) Get(ctx context.Context, recordID uuid.UUID) (*Progress, error) {
	if recordID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "record id is required")
	}
	raw, err := p.backend.Get(ctx, p.backend.ProgressKey(recordID.String()))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no progress for record")
		}
		return nil, err
	}

	var progress Progress
	if err := json.Unmarshal([]byte(raw), &progress); err != nil {
		return nil, err
	}
	return &progress, nil
}
