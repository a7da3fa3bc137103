package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/avenqor/avenqor-backend/pkg/db/dbtest"
	"github.com/avenqor/avenqor-backend/pkg/db/models"
	"github.com/avenqor/avenqor-backend/pkg/enums"
	pkgerrors "github.com/avenqor/avenqor-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func newHistoryDB(t *testing.T) *gorm.DB {
	t.Helper()
	return dbtest.Open(t)
}

func seedRecord(t *testing.T, db *gorm.DB, accountID uuid.UUID, kind enums.PurchaseKind, createdAt time.Time, mutate func(*models.PurchaseRecord)) uuid.UUID {
	t.Helper()
	record := models.PurchaseRecord{
		ID:        uuid.New(),
		AccountID: accountID,
		Kind:      kind,
		Status:    enums.PurchaseStatusCompleted,
		CreatedAt: createdAt,
	}
	if mutate != nil {
		mutate(&record)
	}
	if err := db.Create(&record).Error; err != nil {
		t.Fatalf("seed record: %v", err)
	}
	return record.ID
}

func TestListInterleavesKindsNewestFirst(t *testing.T) {
	t.Parallel()
	db := newHistoryDB(t)
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	accountID := uuid.New()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	courseRef := "breakout-foundations"
	seedRecord(t, db, accountID, enums.PurchaseKindCoursePurchase, base, func(r *models.PurchaseRecord) {
		r.CourseRef = &courseRef
		r.TokenDelta = -1000
	})
	seedRecord(t, db, accountID, enums.PurchaseKindTopup, base.Add(time.Minute), func(r *models.PurchaseRecord) {
		r.TokenDelta = 10000
		r.FiatAmount = decimal.RequireFromString("49.99")
	})
	seedRecord(t, db, accountID, enums.PurchaseKindCustomCourse, base.Add(2*time.Minute), func(r *models.PurchaseRecord) {
		r.TokenDelta = -3500
		r.Markets = []string{"crypto", "forex"}
	})

	page, err := svc.List(context.Background(), accountID, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 3 || len(page.Entries) != 3 {
		t.Fatalf("expected 3 rows, got total=%d len=%d", page.Total, len(page.Entries))
	}

	wantKinds := []enums.PurchaseKind{
		enums.PurchaseKindCustomCourse,
		enums.PurchaseKindTopup,
		enums.PurchaseKindCoursePurchase,
	}
	for i, want := range wantKinds {
		if page.Entries[i].Type != want {
			t.Fatalf("row %d: expected %s, got %s", i, want, page.Entries[i].Type)
		}
	}

	if page.Entries[0].MetaSummary != "markets: crypto, forex" {
		t.Fatalf("unexpected meta summary %q", page.Entries[0].MetaSummary)
	}
	if page.Entries[1].FiatAmount.String() != "49.99" {
		t.Fatalf("fiat amount lost: %s", page.Entries[1].FiatAmount)
	}
	if page.Entries[2].Detail != "Course purchase: breakout-foundations" {
		t.Fatalf("unexpected detail %q", page.Entries[2].Detail)
	}
}

func TestListPaginatesGloballyAcrossKinds(t *testing.T) {
	t.Parallel()
	db := newHistoryDB(t)
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	accountID := uuid.New()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	// Alternate kinds so any per-kind offset would scramble the window.
	kinds := []enums.PurchaseKind{
		enums.PurchaseKindTopup,
		enums.PurchaseKindCustomCourse,
		enums.PurchaseKindCoursePurchase,
		enums.PurchaseKindAIStrategy,
	}
	var want []uuid.UUID
	for i := 0; i < 12; i++ {
		id := seedRecord(t, db, accountID, kinds[i%len(kinds)], base.Add(time.Duration(i)*time.Minute), nil)
		want = append(want, id)
	}

	var got []uuid.UUID
	for offset := 0; offset < 12; offset += 5 {
		page, err := svc.List(context.Background(), accountID, 5, offset)
		if err != nil {
			t.Fatalf("list offset %d: %v", offset, err)
		}
		if page.Total != 12 {
			t.Fatalf("expected total 12, got %d", page.Total)
		}
		for _, entry := range page.Entries {
			got = append(got, entry.ID)
		}
	}

	if len(got) != 12 {
		t.Fatalf("expected 12 rows across pages, got %d", len(got))
	}
	for i, id := range got {
		// newest first, so page order is the reverse of insertion order
		if id != want[11-i] {
			t.Fatalf("row %d out of order: got %s want %s", i, id, want[11-i])
		}
	}
}

func TestListEmptyAccount(t *testing.T) {
	t.Parallel()
	db := newHistoryDB(t)
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	page, err := svc.List(context.Background(), uuid.New(), 25, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 0 || len(page.Entries) != 0 {
		t.Fatalf("expected empty page, got %+v", page)
	}
}

func TestListIgnoresOtherAccounts(t *testing.T) {
	t.Parallel()
	db := newHistoryDB(t)
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	mine := uuid.New()
	other := uuid.New()
	now := time.Now().UTC()

	seedRecord(t, db, mine, enums.PurchaseKindTopup, now, nil)
	for i := 0; i < 3; i++ {
		seedRecord(t, db, other, enums.PurchaseKindTopup, now.Add(time.Duration(i)*time.Second), nil)
	}

	page, err := svc.List(context.Background(), mine, 25, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 1 || len(page.Entries) != 1 {
		t.Fatalf("expected only my row, got %+v", page)
	}
}

func TestListClampsPagination(t *testing.T) {
	t.Parallel()
	db := newHistoryDB(t)
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	accountID := uuid.New()
	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		seedRecord(t, db, accountID, enums.PurchaseKindTopup, now.Add(time.Duration(i)*time.Second), nil)
	}

	page, err := svc.List(context.Background(), accountID, -5, -10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Limit != 25 || page.Offset != 0 {
		t.Fatalf("expected normalized pagination, got limit=%d offset=%d", page.Limit, page.Offset)
	}
	if len(page.Entries) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(page.Entries))
	}
}

func TestListUnknownKindStillRenders(t *testing.T) {
	t.Parallel()
	db := newHistoryDB(t)
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	accountID := uuid.New()
	seedRecord(t, db, accountID, enums.PurchaseKind("legacy_gift"), time.Now().UTC(), nil)

	page, err := svc.List(context.Background(), accountID, 25, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Entries) != 1 {
		t.Fatalf("expected 1 row, got %d", len(page.Entries))
	}
	if page.Entries[0].Detail != "Transaction" {
		t.Fatalf("unexpected detail %q", page.Entries[0].Detail)
	}
}

func TestListValidation(t *testing.T) {
	t.Parallel()
	svc, err := NewService(NewRepository(newHistoryDB(t)))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.List(context.Background(), uuid.Nil, 25, 0)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewServiceRequiresRepo(t *testing.T) {
	t.Parallel()
	if _, err := NewService(nil); err == nil {
		t.Fatal("expected constructor error")
	} else if fmt.Sprint(err) == "" {
		t.Fatal("expected message")
	}
}
