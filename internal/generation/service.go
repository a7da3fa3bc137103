package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/avenqor/avenqor-backend/internal/ledger"
	"github.com/avenqor/avenqor-backend/internal/pricing"
	"github.com/avenqor/avenqor-backend/internal/purchases"
	"github.com/avenqor/avenqor-backend/pkg/db"
	"github.com/avenqor/avenqor-backend/pkg/db/models"
	"github.com/avenqor/avenqor-backend/pkg/enums"
	pkgerrors "github.com/avenqor/avenqor-backend/pkg/errors"
	"github.com/avenqor/avenqor-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Estimated turnaround shown to the buyer at request time.
const (
	customCourseTurnaround = 45 * time.Minute
	aiStrategyTurnaround   = 15 * time.Minute
)

// JobQueue enqueues the durable generation job inside the purchase
// transaction, so a request either fully exists (record, debit, job) or
// not at all.
type JobQueue interface {
	Enqueue(ctx context.Context, tx *gorm.DB, record *models.PurchaseRecord) error
}

// Service is the synchronous intake for paid generation requests: it
// prices the selection server-side, reserves tokens, and queues the job in
// one transaction, then returns immediately.
type Service interface {
	QuoteCustomCourse(sel pricing.Selections) int
	QuoteAIStrategy(sel pricing.Selections) int
	CreateCustomCourse(ctx context.Context, input RequestInput) (*models.PurchaseRecord, int64, error)
	CreateAIStrategy(ctx context.Context, input RequestInput) (*models.PurchaseRecord, int64, error)
}

// RequestInput is the validated request payload for either product line.
type RequestInput struct {
	AccountID  uuid.UUID
	Selections pricing.Selections
	Goals      string
}

type service struct {
	db       *db.Client
	records  purchases.Service
	ledger   ledger.Service
	queue    JobQueue
	progress *ProgressStore
	logg     *logger.Logger
}

// NewService wires the generation intake service.
func NewService(dbClient *db.Client, records purchases.Service, ledgerSvc ledger.Service, queue JobQueue, progress *ProgressStore, logg *logger.Logger) (Service, error) {
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if records == nil {
		return nil, fmt.Errorf("purchase record service required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if queue == nil {
		return nil, fmt.Errorf("job queue required")
	}
	if progress == nil {
		return nil, fmt.Errorf("progress store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		db:       dbClient,
		records:  records,
		ledger:   ledgerSvc,
		queue:    queue,
		progress: progress,
		logg:     logg,
	}, nil
}

func (s *service) QuoteCustomCourse(sel pricing.Selections) int {
	return pricing.CustomCoursePrice(sel)
}

func (s *service) QuoteAIStrategy(sel pricing.Selections) int {
	return pricing.AIStrategyPrice(sel)
}

func (s *service) CreateCustomCourse(ctx context.Context, input RequestInput) (*models.PurchaseRecord, int64, error) {
	if strings.TrimSpace(input.Goals) == "" {
		return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "goals are required for a custom course")
	}
	price := pricing.CustomCoursePrice(input.Selections)
	return s.create(ctx, input, enums.PurchaseKindCustomCourse, price, customCourseTurnaround)
}

func (s *service) CreateAIStrategy(ctx context.Context, input RequestInput) (*models.PurchaseRecord, int64, error) {
	price := pricing.AIStrategyPrice(input.Selections)
	return s.create(ctx, input, enums.PurchaseKindAIStrategy, price, aiStrategyTurnaround)
}

func (s *service) create(ctx context.Context, input RequestInput, kind enums.PurchaseKind, price int, turnaround time.Duration) (*models.PurchaseRecord, int64, error) {
	if input.AccountID == uuid.Nil {
		return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}

	estimatedReady := time.Now().UTC().Add(turnaround)
	createInput := purchases.CreateInput{
		AccountID:        input.AccountID,
		Kind:             kind,
		TokenDelta:       -int64(price),
		Goals:            optional(input.Goals),
		Markets:          compact(input.Selections.Markets),
		Instruments:      splitInstruments(input.Selections.Instruments),
		Experience:       optional(input.Selections.Experience),
		RiskTolerance:    optional(input.Selections.RiskTolerance),
		TradingStyle:     optional(input.Selections.TradingStyle),
		DepositBracket:   optional(input.Selections.DepositBracket),
		EstimatedReadyAt: &estimatedReady,
	}
	if languages := compact(input.Selections.Languages); len(languages) > 0 {
		createInput.Language = optional(languages[0])
		if len(languages) > 1 {
			createInput.SecondaryLanguage = optional(languages[1])
		}
	}

	var record *models.PurchaseRecord
	var balance int64
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		created, err := s.records.WithTx(tx).Create(ctx, createInput)
		if err != nil {
			return err
		}

		recordID := created.ID
		newBalance, err := s.ledger.WithTx(tx).Reserve(ctx, ledger.MutationInput{
			AccountID: input.AccountID,
			RecordID:  &recordID,
			Type:      enums.LedgerEntryTypeSpend,
			Amount:    int64(price),
		})
		if err != nil {
			return err
		}

		if err := s.queue.Enqueue(ctx, tx, created); err != nil {
			return err
		}

		record = created
		balance = newBalance
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	// Advisory only: a dropped progress write never fails the purchase.
	if err := s.progress.Set(ctx, Progress{RecordID: record.ID, Stage: enums.GenerationStageQueued, Message: "request queued"}); err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("initial progress write dropped: %v", err))
	}

	return record, balance, nil
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func compact(values []string) []string {
	var out []string
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func splitInstruments(list string) []string {
	return compact(strings.Split(list, ","))
}
