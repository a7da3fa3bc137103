package generation

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/avenqor/avenqor-backend/internal/ledger"
	"github.com/avenqor/avenqor-backend/internal/pricing"
	"github.com/avenqor/avenqor-backend/internal/purchases"
	dbpkg "github.com/avenqor/avenqor-backend/pkg/db"
	"github.com/avenqor/avenqor-backend/pkg/db/dbtest"
	"github.com/avenqor/avenqor-backend/pkg/db/models"
	"github.com/avenqor/avenqor-backend/pkg/enums"
	pkgerrors "github.com/avenqor/avenqor-backend/pkg/errors"
	"github.com/avenqor/avenqor-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type fakeQueue struct {
	err     error
	records []uuid.UUID
}

func (f *fakeQueue) Enqueue(ctx context.Context, tx *gorm.DB, record *models.PurchaseRecord) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, record.ID)
	return nil
}

type intakeEnv struct {
	svc    Service
	ledger ledger.Service
	queue  *fakeQueue
	db     *gorm.DB
}

func newIntakeEnv(t *testing.T) *intakeEnv {
	t.Helper()
	conn := dbtest.Open(t)

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	if err != nil {
		t.Fatalf("ledger service: %v", err)
	}
	recordSvc, err := purchases.NewService(purchases.NewRepository(conn))
	if err != nil {
		t.Fatalf("purchases service: %v", err)
	}
	progress, err := NewProgressStore(newFakeProgressBackend(), time.Hour)
	if err != nil {
		t.Fatalf("progress store: %v", err)
	}

	queue := &fakeQueue{}
	svc, err := NewService(
		dbpkg.NewWithConn(conn),
		recordSvc,
		ledgerSvc,
		queue,
		progress,
		logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &intakeEnv{svc: svc, ledger: ledgerSvc, queue: queue, db: conn}
}

func (e *intakeEnv) seedAccount(t *testing.T, balance int64) uuid.UUID {
	t.Helper()
	account := models.Account{
		ID:           uuid.New(),
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "x",
		TokenBalance: balance,
	}
	if err := e.db.Create(&account).Error; err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return account.ID
}

func TestCreateCustomCourseReservesAndQueues(t *testing.T) {
	t.Parallel()
	env := newIntakeEnv(t)
	accountID := env.seedAccount(t, 5000)

	record, balance, err := env.svc.CreateCustomCourse(context.Background(), RequestInput{
		AccountID: accountID,
		Goals:     "master breakout entries",
		Selections: pricing.Selections{
			Markets:   []string{"crypto", "forex"},
			Languages: []string{"en"},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// base 3000 plus one extra market
	if record.TokenDelta != -3500 {
		t.Fatalf("expected server-side price -3500, got %d", record.TokenDelta)
	}
	if balance != 1500 {
		t.Fatalf("expected remaining balance 1500, got %d", balance)
	}
	if record.Status != enums.PurchaseStatusProcessing {
		t.Fatalf("expected processing, got %s", record.Status)
	}
	if record.Goals == nil || *record.Goals != "master breakout entries" {
		t.Fatalf("goals not stored: %+v", record.Goals)
	}
	if record.Language == nil || *record.Language != "en" {
		t.Fatalf("language not stored: %+v", record.Language)
	}
	if record.EstimatedReadyAt == nil || !record.EstimatedReadyAt.After(time.Now().UTC()) {
		t.Fatalf("estimated ready not set: %+v", record.EstimatedReadyAt)
	}
	if len(env.queue.records) != 1 || env.queue.records[0] != record.ID {
		t.Fatalf("job not enqueued for record: %+v", env.queue.records)
	}
}

func TestCreateAIStrategyUsesStrategyBase(t *testing.T) {
	t.Parallel()
	env := newIntakeEnv(t)
	accountID := env.seedAccount(t, 25000)

	record, balance, err := env.svc.CreateAIStrategy(context.Background(), RequestInput{
		AccountID:  accountID,
		Selections: pricing.Selections{},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if record.TokenDelta != -20000 {
		t.Fatalf("expected -20000, got %d", record.TokenDelta)
	}
	if balance != 5000 {
		t.Fatalf("expected 5000 remaining, got %d", balance)
	}
	if record.Kind != enums.PurchaseKindAIStrategy {
		t.Fatalf("unexpected kind %s", record.Kind)
	}
}

func TestCreateInsufficientFundsLeavesNothingBehind(t *testing.T) {
	t.Parallel()
	env := newIntakeEnv(t)
	accountID := env.seedAccount(t, 100)

	_, _, err := env.svc.CreateCustomCourse(context.Background(), RequestInput{
		AccountID:  accountID,
		Goals:      "anything",
		Selections: pricing.Selections{},
	})
	if err == nil {
		t.Fatal("expected insufficient funds error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficientFunds {
		t.Fatalf("unexpected error: %v", err)
	}

	var recordCount, entryCount int64
	if err := env.db.Model(&models.PurchaseRecord{}).Count(&recordCount).Error; err != nil {
		t.Fatalf("count records: %v", err)
	}
	if err := env.db.Model(&models.LedgerEntry{}).Count(&entryCount).Error; err != nil {
		t.Fatalf("count entries: %v", err)
	}
	if recordCount != 0 || entryCount != 0 {
		t.Fatalf("rejected purchase must leave no rows, got %d records %d entries", recordCount, entryCount)
	}
	if len(env.queue.records) != 0 {
		t.Fatal("rejected purchase must not enqueue a job")
	}

	balance, err := env.ledger.Balance(context.Background(), accountID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 100 {
		t.Fatalf("balance must be untouched, got %d", balance)
	}
}

func TestCreateEnqueueFailureRollsBack(t *testing.T) {
	t.Parallel()
	env := newIntakeEnv(t)
	env.queue.err = errors.New("outbox unavailable")
	accountID := env.seedAccount(t, 5000)

	_, _, err := env.svc.CreateCustomCourse(context.Background(), RequestInput{
		AccountID:  accountID,
		Goals:      "anything",
		Selections: pricing.Selections{},
	})
	if err == nil {
		t.Fatal("expected enqueue failure to surface")
	}

	balance, berr := env.ledger.Balance(context.Background(), accountID)
	if berr != nil {
		t.Fatalf("balance: %v", berr)
	}
	if balance != 5000 {
		t.Fatalf("reservation must roll back with the job, got %d", balance)
	}

	var recordCount int64
	if err := env.db.Model(&models.PurchaseRecord{}).Count(&recordCount).Error; err != nil {
		t.Fatalf("count records: %v", err)
	}
	if recordCount != 0 {
		t.Fatalf("record must roll back with the job, got %d", recordCount)
	}
}

func TestCreateCustomCourseRequiresGoals(t *testing.T) {
	t.Parallel()
	env := newIntakeEnv(t)
	accountID := env.seedAccount(t, 5000)

	_, _, err := env.svc.CreateCustomCourse(context.Background(), RequestInput{AccountID: accountID})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQuotesMatchCalculator(t *testing.T) {
	t.Parallel()
	env := newIntakeEnv(t)
	sel := pricing.Selections{Markets: []string{"crypto", "forex"}, Languages: []string{"en", "de"}}

	if got := env.svc.QuoteCustomCourse(sel); got != pricing.CustomCoursePrice(sel) {
		t.Fatalf("custom course quote mismatch: %d", got)
	}
	if got := env.svc.QuoteAIStrategy(sel); got != pricing.AIStrategyPrice(sel) {
		t.Fatalf("ai strategy quote mismatch: %d", got)
	}
}
