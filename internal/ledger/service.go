package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/avenqor/avenqor-backend/pkg/db/models"
	"github.com/avenqor/avenqor-backend/pkg/enums"
	pkgerrors "github.com/avenqor/avenqor-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service owns every mutation of account token balances. Balances are only
// ever changed through conditional updates here, never via read-then-write.
type Service interface {
	WithTx(tx *gorm.DB) Service
	Balance(ctx context.Context, accountID uuid.UUID) (int64, error)
	Reserve(ctx context.Context, input MutationInput) (int64, error)
	Credit(ctx context.Context, input MutationInput) (int64, error)
	Entries(ctx context.Context, accountID uuid.UUID) ([]models.LedgerEntry, error)
}

type service struct {
	repo Repository
}

// MutationInput captures one balance mutation and its audit data.
type MutationInput struct {
	AccountID uuid.UUID
	RecordID  *uuid.UUID
	Type      enums.LedgerEntryType
	Amount    int64
	Metadata  json.RawMessage
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	return &service{repo: s.repo.WithTx(tx)}
}

func (s *service) Balance(ctx context.Context, accountID uuid.UUID) (int64, error) {
	if accountID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "account not found")
		}
		return 0, err
	}
	return account.TokenBalance, nil
}

// Reserve atomically debits amount from the account, rejecting the debit
// when the balance does not cover it. Returns the new balance.
func (s *service) Reserve(ctx context.Context, input MutationInput) (int64, error) {
	if err := validateMutation(input); err != nil {
		return 0, err
	}
	if input.Type == "" {
		input.Type = enums.LedgerEntryTypeSpend
	}
	if input.Type.IsCredit() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("entry type %q cannot reserve", input.Type))
	}

	balance, found, err := s.repo.DebitIfSufficient(ctx, input.AccountID, input.Amount)
	if err != nil {
		return 0, err
	}
	if !found {
		// Distinguish a missing account from a balance that cannot cover the debit.
		if _, err := s.repo.GetAccount(ctx, input.AccountID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "account not found")
			}
			return 0, err
		}
		return 0, pkgerrors.New(pkgerrors.CodeInsufficientFunds, "token balance too low")
	}

	return s.appendEntry(ctx, input, -input.Amount, balance)
}

// Credit unconditionally increments the account balance. Returns the new balance.
func (s *service) Credit(ctx context.Context, input MutationInput) (int64, error) {
	if err := validateMutation(input); err != nil {
		return 0, err
	}
	if input.Type == "" {
		input.Type = enums.LedgerEntryTypeTopup
	}
	if !input.Type.IsCredit() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("entry type %q cannot credit", input.Type))
	}

	balance, found, err := s.repo.CreditBalance(ctx, input.AccountID, input.Amount)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
	}

	return s.appendEntry(ctx, input, input.Amount, balance)
}

func (s *service) Entries(ctx context.Context, accountID uuid.UUID) ([]models.LedgerEntry, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	return s.repo.ListByAccountID(ctx, accountID)
}

// appendEntry writes the audit row for a mutation that already landed.
// balanceAfter comes from the mutation's own RETURNING clause, so a
// concurrent update can never record someone else's balance here.
func (s *service) appendEntry(ctx context.Context, input MutationInput, signedAmount, balanceAfter int64) (int64, error) {
	entry := &models.LedgerEntry{
		AccountID:    input.AccountID,
		RecordID:     input.RecordID,
		Type:         input.Type,
		Amount:       signedAmount,
		BalanceAfter: balanceAfter,
		Metadata:     input.Metadata,
	}
	if err := s.repo.CreateEntry(ctx, entry); err != nil {
		return 0, err
	}
	return balanceAfter, nil
}

func validateMutation(input MutationInput) error {
	if input.AccountID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	if input.Amount <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if input.Type != "" && !input.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid ledger entry type %q", input.Type))
	}
	return nil
}
