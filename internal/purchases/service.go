package purchases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avenqor/avenqor-backend/pkg/db/models"
	"github.com/avenqor/avenqor-backend/pkg/enums"
	pkgerrors "github.com/avenqor/avenqor-backend/pkg/errors"
	"github.com/avenqor/avenqor-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service owns the append-only purchase record store. Records are created
// once and then only patched through Update, which is idempotent under
// retries of the same patch.
type Service interface {
	WithTx(tx *gorm.DB) Service
	Create(ctx context.Context, input CreateInput) (*models.PurchaseRecord, error)
	Update(ctx context.Context, input UpdateInput) (*models.PurchaseRecord, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.PurchaseRecord, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID, kind *enums.PurchaseKind, page pagination.Params) ([]models.PurchaseRecord, error)
}

type service struct {
	repo Repository
}

// CreateInput captures everything fixed at purchase creation time.
type CreateInput struct {
	AccountID    uuid.UUID
	Kind         enums.PurchaseKind
	TokenDelta   int64
	FiatAmount   decimal.Decimal
	FiatCurrency enums.Currency
	// Terminal creates the record in completed state (top-ups).
	Terminal bool

	CourseRef *string
	Language  *string

	Goals             *string
	Markets           []string
	Instruments       []string
	Experience        *string
	RiskTolerance     *string
	TradingStyle      *string
	DepositBracket    *string
	SecondaryLanguage *string

	EstimatedReadyAt *time.Time
}

// Usage carries model token counters recorded after a generation run.
type Usage struct {
	ModelID          string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// UpdateInput is a partial patch; nil fields are left untouched.
type UpdateInput struct {
	RecordID     uuid.UUID
	Status       *enums.PurchaseStatus
	ContentRef   *string
	ErrorMessage *string
	Usage        *Usage
}

// NewService wires a purchase record service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("purchases repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	return &service{repo: s.repo.WithTx(tx)}
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.PurchaseRecord, error) {
	if input.AccountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	if !input.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid purchase kind %q", input.Kind))
	}
	if input.FiatCurrency != "" && !input.FiatCurrency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid currency %q", input.FiatCurrency))
	}

	status := enums.PurchaseStatusProcessing
	if input.Terminal {
		status = enums.PurchaseStatusCompleted
	}
	currency := input.FiatCurrency
	if currency == "" {
		currency = enums.CurrencyUSD
	}

	record := &models.PurchaseRecord{
		AccountID:    input.AccountID,
		Kind:         input.Kind,
		Status:       status,
		TokenDelta:   input.TokenDelta,
		FiatAmount:   input.FiatAmount,
		FiatCurrency: currency,

		CourseRef: input.CourseRef,
		Language:  input.Language,

		Goals:             input.Goals,
		Markets:           input.Markets,
		Instruments:       input.Instruments,
		Experience:        input.Experience,
		RiskTolerance:     input.RiskTolerance,
		TradingStyle:      input.TradingStyle,
		DepositBracket:    input.DepositBracket,
		SecondaryLanguage: input.SecondaryLanguage,

		EstimatedReadyAt: input.EstimatedReadyAt,
	}

	if err := s.repo.Create(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// Update applies a partial patch. Re-applying an identical patch is a no-op
// that yields the same stored record; status moves must follow
// processing → ready → completed | failed.
func (s *service) Update(ctx context.Context, input UpdateInput) (*models.PurchaseRecord, error) {
	if input.RecordID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "record id is required")
	}

	record, err := s.FindByID(ctx, input.RecordID)
	if err != nil {
		return nil, err
	}

	if input.Status != nil {
		next := *input.Status
		if !next.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid purchase status %q", next))
		}
		if next != record.Status {
			if !record.Status.CanTransitionTo(next) {
				msg := fmt.Sprintf("cannot move record from %s to %s", record.Status, next)
				return nil, pkgerrors.New(pkgerrors.CodeConflict, msg)
			}
			record.Status = next
		}
	}
	if input.ContentRef != nil {
		record.ContentRef = input.ContentRef
	}
	if input.ErrorMessage != nil {
		record.ErrorMessage = input.ErrorMessage
	}
	if input.Usage != nil {
		modelID := input.Usage.ModelID
		record.ModelID = &modelID
		record.PromptTokens = input.Usage.PromptTokens
		record.CompletionTokens = input.Usage.CompletionTokens
		record.TotalTokens = input.Usage.TotalTokens
	}

	if err := s.repo.Save(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *service) FindByID(ctx context.Context, id uuid.UUID) (*models.PurchaseRecord, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "record id is required")
	}
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "purchase record not found")
		}
		return nil, err
	}
	return record, nil
}

func (s *service) ListByAccount(ctx context.Context, accountID uuid.UUID, kind *enums.PurchaseKind, page pagination.Params) ([]models.PurchaseRecord, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	if kind != nil && !kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid purchase kind %q", *kind))
	}
	page = pagination.Normalize(page)
	return s.repo.ListByAccount(ctx, accountID, kind, page.Limit, page.Offset)
}
