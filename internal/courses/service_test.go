package courses

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/avenqor/avenqor-backend/internal/generation"
	"github.com/avenqor/avenqor-backend/internal/ledger"
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

type fakeDelivery struct {
	err  error
	sent []generation.Delivery
}

func (f *fakeDelivery) SendDelivery(ctx context.Context, delivery generation.Delivery) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, delivery)
	return nil
}

type coursesEnv struct {
	svc      Service
	db       *gorm.DB
	delivery *fakeDelivery
}

func newCoursesEnv(t *testing.T) *coursesEnv {
	t.Helper()
	conn := dbtest.Open(t)

	ledgerRepo := ledger.NewRepository(conn)
	ledgerSvc, err := ledger.NewService(ledgerRepo)
	if err != nil {
		t.Fatalf("ledger service: %v", err)
	}
	recordSvc, err := purchases.NewService(purchases.NewRepository(conn))
	if err != nil {
		t.Fatalf("purchases service: %v", err)
	}

	delivery := &fakeDelivery{}
	svc, err := NewService(
		dbpkg.NewWithConn(conn),
		NewCatalog(),
		recordSvc,
		ledgerSvc,
		ledgerRepo,
		delivery,
		logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &coursesEnv{svc: svc, db: conn, delivery: delivery}
}

func (e *coursesEnv) seedAccount(t *testing.T, balance int64) uuid.UUID {
	t.Helper()
	account := models.Account{
		ID:           uuid.New(),
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "x",
		DisplayName:  "Buyer",
		TokenBalance: balance,
	}
	if err := e.db.Create(&account).Error; err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return account.ID
}

func TestPurchaseSpendsAndDelivers(t *testing.T) {
	t.Parallel()
	env := newCoursesEnv(t)
	accountID := env.seedAccount(t, 5000)

	record, balance, err := env.svc.Purchase(context.Background(), PurchaseInput{
		AccountID: accountID,
		CourseRef: "risk-management-essentials",
		Language:  "de",
	})
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if balance != 3500 {
		t.Fatalf("expected balance 3500, got %d", balance)
	}
	if record.Status != enums.PurchaseStatusCompleted {
		t.Fatalf("expected completed, got %s", record.Status)
	}
	if record.TokenDelta != -1500 {
		t.Fatalf("unexpected delta %d", record.TokenDelta)
	}
	if record.CourseRef == nil || *record.CourseRef != "risk-management-essentials" {
		t.Fatalf("course ref lost: %+v", record.CourseRef)
	}
	if record.Language == nil || *record.Language != "de" {
		t.Fatalf("language lost: %+v", record.Language)
	}

	if len(env.delivery.sent) != 1 {
		t.Fatalf("expected one delivery, got %d", len(env.delivery.sent))
	}
	if env.delivery.sent[0].ContentRef != "risk-management-essentials" || env.delivery.sent[0].Locale != "de" {
		t.Fatalf("unexpected delivery %+v", env.delivery.sent[0])
	}

	var entry models.LedgerEntry
	if err := env.db.First(&entry, "account_id = ?", accountID).Error; err != nil {
		t.Fatalf("entry missing: %v", err)
	}
	if entry.Type != enums.LedgerEntryTypeSpend || entry.Amount != -1500 {
		t.Fatalf("unexpected entry %+v", entry)
	}
}

func TestPurchaseCompletesWhenDeliveryFails(t *testing.T) {
	t.Parallel()
	env := newCoursesEnv(t)
	env.delivery.err = errors.New("smtp down")
	accountID := env.seedAccount(t, 5000)

	record, balance, err := env.svc.Purchase(context.Background(), PurchaseInput{
		AccountID: accountID,
		CourseRef: "trading-foundations",
	})
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if record.Status != enums.PurchaseStatusCompleted {
		t.Fatalf("delivery failure must not block completion, got %s", record.Status)
	}
	if balance != 4000 {
		t.Fatalf("expected balance 4000, got %d", balance)
	}
}

func TestPurchaseInsufficientFundsLeavesNothing(t *testing.T) {
	t.Parallel()
	env := newCoursesEnv(t)
	accountID := env.seedAccount(t, 100)

	_, _, err := env.svc.Purchase(context.Background(), PurchaseInput{
		AccountID: accountID,
		CourseRef: "trading-foundations",
	})
	if err == nil {
		t.Fatal("expected insufficient funds")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficientFunds {
		t.Fatalf("unexpected error: %v", err)
	}

	var records int64
	if err := env.db.Model(&models.PurchaseRecord{}).Count(&records).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if records != 0 {
		t.Fatalf("rejected purchase must leave no record, got %d", records)
	}
	if len(env.delivery.sent) != 0 {
		t.Fatal("no delivery expected")
	}
}

func TestPurchaseRejectsUnknownCourseAndLanguage(t *testing.T) {
	t.Parallel()
	env := newCoursesEnv(t)
	accountID := env.seedAccount(t, 5000)
	ctx := context.Background()

	_, _, err := env.svc.Purchase(ctx, PurchaseInput{AccountID: accountID, CourseRef: "nope"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	_, _, err = env.svc.Purchase(ctx, PurchaseInput{
		AccountID: accountID,
		CourseRef: "crypto-market-structure",
		Language:  "fr",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCatalogListing(t *testing.T) {
	t.Parallel()
	env := newCoursesEnv(t)

	items := env.svc.Catalog()
	if len(items) == 0 {
		t.Fatal("catalog must not be empty")
	}
	for _, item := range items {
		if item.Ref == "" || item.Price <= 0 || len(item.Languages) == 0 {
			t.Fatalf("malformed catalog item %+v", item)
		}
	}
}
