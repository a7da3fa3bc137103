package ledger

import (
	"context"

	"github.com/avenqor/avenqor-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository manages account balance mutations and their audit entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetAccount(ctx context.Context, accountID uuid.UUID) (*models.Account, error)
	// DebitIfSufficient decrements the balance only when it covers amount
	// and returns the post-debit balance from the same statement. found is
	// false for a missing account or insufficient funds.
	DebitIfSufficient(ctx context.Context, accountID uuid.UUID, amount int64) (balance int64, found bool, err error)
	// CreditBalance increments the balance and returns the post-credit
	// balance from the same statement. found is false for a missing account.
	CreditBalance(ctx context.Context, accountID uuid.UUID, amount int64) (balance int64, found bool, err error)
	CreateEntry(ctx context.Context, entry *models.LedgerEntry) error
	ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]models.LedgerEntry, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetAccount(ctx context.Context, accountID uuid.UUID) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).First(&account, "id = ?", accountID).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) DebitIfSufficient(ctx context.Context, accountID uuid.UUID, amount int64) (int64, bool, error) {
	var account models.Account
	result := r.db.WithContext(ctx).
		Model(&account).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "token_balance"}}}).
		Where("id = ? AND token_balance >= ?", accountID, amount).
		UpdateColumn("token_balance", gorm.Expr("token_balance - ?", amount))
	if result.Error != nil {
		return 0, false, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, false, nil
	}
	return account.TokenBalance, true, nil
}

func (r *repository) CreditBalance(ctx context.Context, accountID uuid.UUID, amount int64) (int64, bool, error) {
	var account models.Account
	result := r.db.WithContext(ctx).
		Model(&account).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "token_balance"}}}).
		Where("id = ?", accountID).
		UpdateColumn("token_balance", gorm.Expr("token_balance + ?", amount))
	if result.Error != nil {
		return 0, false, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, false, nil
	}
	return account.TokenBalance, true, nil
}

func (r *repository) CreateEntry(ctx context.Context, entry *models.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
