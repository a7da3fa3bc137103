package topups

import (
	"context"
	"fmt"

	"github.com/avenqor/avenqor-backend/internal/ledger"
	"github.com/avenqor/avenqor-backend/internal/purchases"
	dbpkg "github.com/avenqor/avenqor-backend/pkg/db"
	"github.com/avenqor/avenqor-backend/pkg/db/models"
	"github.com/avenqor/avenqor-backend/pkg/enums"
	pkgerrors "github.com/avenqor/avenqor-backend/pkg/errors"
	"github.com/avenqor/avenqor-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// maxTokensPerTopup caps a single credit so a fat-fingered caller cannot
// mint an absurd balance in one call.
const maxTokensPerTopup = 1_000_000

// CreditInput carries one settled top-up. Fiat settlement happens
// upstream; the caller is trusted to report what was actually paid.
type CreditInput struct {
	AccountID    uuid.UUID
	Tokens       int64
	FiatAmount   decimal.Decimal
	FiatCurrency enums.Currency
}

// Service records settled top-ups: the purchase record and the balance
// credit land in one transaction.
type Service interface {
	Credit(ctx context.Context, input CreditInput) (*models.PurchaseRecord, int64, error)
}

type service struct {
	db      *dbpkg.Client
	records purchases.Service
	ledger  ledger.Service
	logg    *logger.Logger
}

// NewService wires a top-up service.
func NewService(db *dbpkg.Client, records purchases.Service, ledgerSvc ledger.Service, logg *logger.Logger) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("db client is required")
	}
	if records == nil {
		return nil, fmt.Errorf("purchases service is required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &service{db: db, records: records, ledger: ledgerSvc, logg: logg}, nil
}

func (s *service) Credit(ctx context.Context, input CreditInput) (*models.PurchaseRecord, int64, error) {
	if err := validateCredit(input); err != nil {
		return nil, 0, err
	}

	currency := input.FiatCurrency
	if currency == "" {
		currency = enums.CurrencyUSD
	}

	var (
		record  *models.PurchaseRecord
		balance int64
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		record, err = s.records.WithTx(tx).Create(ctx, purchases.CreateInput{
			AccountID:    input.AccountID,
			Kind:         enums.PurchaseKindTopup,
			TokenDelta:   input.Tokens,
			FiatAmount:   input.FiatAmount,
			FiatCurrency: currency,
			Terminal:     true,
		})
		if err != nil {
			return err
		}

		balance, err = s.ledger.WithTx(tx).Credit(ctx, ledger.MutationInput{
			AccountID: input.AccountID,
			RecordID:  &record.ID,
			Type:      enums.LedgerEntryTypeTopup,
			Amount:    input.Tokens,
		})
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	ctx = s.logg.WithAccountID(ctx, input.AccountID.String())
	s.logg.Info(s.logg.WithRecordID(ctx, record.ID.String()), fmt.Sprintf("credited %d tokens", input.Tokens))
	return record, balance, nil
}

func validateCredit(input CreditInput) error {
	if input.AccountID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	if input.Tokens <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "token amount must be positive")
	}
	if input.Tokens > maxTokensPerTopup {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("token amount exceeds the %d per-topup cap", maxTokensPerTopup))
	}
	if input.FiatAmount.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "fiat amount cannot be negative")
	}
	if input.FiatCurrency != "" && !input.FiatCurrency.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid currency %q", input.FiatCurrency))
	}
	return nil
}
