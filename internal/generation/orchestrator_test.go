package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/avenqor/avenqor-backend/internal/ledger"
	"github.com/avenqor/avenqor-backend/internal/purchases"
	dbpkg "github.com/avenqor/avenqor-backend/pkg/db"
	"github.com/avenqor/avenqor-backend/pkg/db/dbtest"
	"github.com/avenqor/avenqor-backend/pkg/db/models"
	"github.com/avenqor/avenqor-backend/pkg/enums"
	"github.com/avenqor/avenqor-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type fakeGenerator struct {
	result *Result
	err    error
	calls  int
}

func (f *fakeGenerator) Generate(ctx context.Context, req Request) (*Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeReceiptSender struct {
	err   error
	calls int
}

func (f *fakeReceiptSender) SendReceipt(ctx context.Context, receipt Receipt) error {
	f.calls++
	return f.err
}

type fakeDeliverySender struct {
	err   error
	calls int
	last  Delivery
}

func (f *fakeDeliverySender) SendDelivery(ctx context.Context, delivery Delivery) error {
	f.calls++
	f.last = delivery
	return f.err
}

type fakeRenderer struct {
	err   error
	calls int
}

func (f *fakeRenderer) Render(ctx context.Context, invoice Invoice) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []byte("pdf"), nil
}

type fakeProgressBackend struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeProgressBackend() *fakeProgressBackend {
	return &fakeProgressBackend{data: map[string]string{}}
}

func (f *fakeProgressBackend) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	default:
		f.data[key] = fmt.Sprint(v)
	}
	return nil
}

func (f *fakeProgressBackend) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.data[key]
	if !ok {
		return "", errors.New("missing key")
	}
	return value, nil
}

func (f *fakeProgressBackend) ProgressKey(recordID string) string {
	return "test:progress:" + recordID
}

type orchestratorEnv struct {
	orch     *Orchestrator
	records  purchases.Service
	ledger   ledger.Service
	gen      *fakeGenerator
	receipts *fakeReceiptSender
	delivery *fakeDeliverySender
	renderer *fakeRenderer
	backend  *fakeProgressBackend
	db       *gorm.DB
}

func newOrchestratorEnv(t *testing.T, gen *fakeGenerator) *orchestratorEnv {
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

	backend := newFakeProgressBackend()
	progress, err := NewProgressStore(backend, time.Hour)
	if err != nil {
		t.Fatalf("progress store: %v", err)
	}

	receipts := &fakeReceiptSender{}
	delivery := &fakeDeliverySender{}
	renderer := &fakeRenderer{}

	orch, err := NewOrchestrator(OrchestratorParams{
		DB:        dbpkg.NewWithConn(conn),
		Records:   recordSvc,
		Ledger:    ledgerSvc,
		Accounts:  ledger.NewRepository(conn),
		Progress:  progress,
		Generator: gen,
		Receipts:  receipts,
		Delivery:  delivery,
		Renderer:  renderer,
		Logger:    logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("orchestrator: %v", err)
	}

	return &orchestratorEnv{
		orch:     orch,
		records:  recordSvc,
		ledger:   ledgerSvc,
		gen:      gen,
		receipts: receipts,
		delivery: delivery,
		renderer: renderer,
		backend:  backend,
		db:       conn,
	}
}

func (e *orchestratorEnv) seedAccount(t *testing.T, balance int64) uuid.UUID {
	t.Helper()
	account := models.Account{
		ID:           uuid.New(),
		Email:        "trader@example.com",
		PasswordHash: "x",
		DisplayName:  "Trader",
		Locale:       "en",
		TokenBalance: balance,
	}
	if err := e.db.Create(&account).Error; err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return account.ID
}

func (e *orchestratorEnv) seedProcessingRecord(t *testing.T, accountID uuid.UUID, delta int64) *models.PurchaseRecord {
	t.Helper()
	record, err := e.records.Create(context.Background(), purchases.CreateInput{
		AccountID:  accountID,
		Kind:       enums.PurchaseKindCustomCourse,
		TokenDelta: delta,
	})
	if err != nil {
		t.Fatalf("seed record: %v", err)
	}
	return record
}

func TestRunHappyPath(t *testing.T) {
	t.Parallel()
	gen := &fakeGenerator{result: &Result{
		ContentRef:    "content/xyz",
		DocumentPaths: []string{"doc.pdf"},
		Usage:         Usage{ModelID: "model-x", PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
	}}
	env := newOrchestratorEnv(t, gen)
	accountID := env.seedAccount(t, 1500)
	record := env.seedProcessingRecord(t, accountID, -3500)

	if err := env.orch.Run(context.Background(), record.ID); err != nil {
		t.Fatalf("run: %v", err)
	}

	final, err := env.records.FindByID(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("reload record: %v", err)
	}
	if final.Status != enums.PurchaseStatusCompleted {
		t.Fatalf("expected completed, got %s", final.Status)
	}
	if final.ContentRef == nil || *final.ContentRef != "content/xyz" {
		t.Fatalf("content ref not stored: %+v", final.ContentRef)
	}
	if final.TotalTokens != 30 {
		t.Fatalf("usage not stored: %d", final.TotalTokens)
	}
	if env.receipts.calls != 1 || env.delivery.calls != 1 {
		t.Fatalf("expected both notifications attempted, got %d/%d", env.receipts.calls, env.delivery.calls)
	}
	if env.delivery.last.ContentRef != "content/xyz" {
		t.Fatalf("delivery missing content ref: %+v", env.delivery.last)
	}

	balance, err := env.ledger.Balance(context.Background(), accountID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 1500 {
		t.Fatalf("successful run must not touch the balance, got %d", balance)
	}
}

func TestRunGeneratorFailureRefunds(t *testing.T) {
	t.Parallel()
	gen := &fakeGenerator{err: errors.New("model unavailable")}
	env := newOrchestratorEnv(t, gen)
	accountID := env.seedAccount(t, 1500)
	record := env.seedProcessingRecord(t, accountID, -3500)

	if err := env.orch.Run(context.Background(), record.ID); err != nil {
		t.Fatalf("run: %v", err)
	}

	final, err := env.records.FindByID(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("reload record: %v", err)
	}
	if final.Status != enums.PurchaseStatusFailed {
		t.Fatalf("expected failed, got %s", final.Status)
	}
	if final.ErrorMessage == nil || *final.ErrorMessage != "model unavailable" {
		t.Fatalf("error message not stored: %+v", final.ErrorMessage)
	}
	if final.TokenDelta != -3500 {
		t.Fatalf("token delta must stay fixed, got %d", final.TokenDelta)
	}

	balance, err := env.ledger.Balance(context.Background(), accountID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 5000 {
		t.Fatalf("expected compensating refund to 5000, got %d", balance)
	}

	entries, err := env.ledger.Entries(context.Background(), accountID)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one refund entry, got %d", len(entries))
	}
	if entries[0].Type != enums.LedgerEntryTypeRefund || entries[0].Amount != 3500 {
		t.Fatalf("unexpected refund entry: %+v", entries[0])
	}

	if env.receipts.calls != 0 || env.delivery.calls != 0 {
		t.Fatal("failed run must not send notifications")
	}
}

func TestRunNotificationFailuresDoNotChangeStatus(t *testing.T) {
	t.Parallel()
	gen := &fakeGenerator{result: &Result{ContentRef: "content/abc"}}
	env := newOrchestratorEnv(t, gen)
	env.receipts.err = errors.New("smtp down")
	env.delivery.err = errors.New("smtp down")
	accountID := env.seedAccount(t, 100)
	record := env.seedProcessingRecord(t, accountID, -3000)

	if err := env.orch.Run(context.Background(), record.ID); err != nil {
		t.Fatalf("run: %v", err)
	}

	final, err := env.records.FindByID(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("reload record: %v", err)
	}
	if final.Status != enums.PurchaseStatusCompleted {
		t.Fatalf("notification failure must not demote the record, got %s", final.Status)
	}

	balance, err := env.ledger.Balance(context.Background(), accountID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 100 {
		t.Fatalf("notification failure must not refund, got %d", balance)
	}
}

func TestRunRendererFailureBlocksOnlyReceipt(t *testing.T) {
	t.Parallel()
	gen := &fakeGenerator{result: &Result{ContentRef: "content/abc"}}
	env := newOrchestratorEnv(t, gen)
	env.renderer.err = errors.New("render crash")
	accountID := env.seedAccount(t, 100)
	record := env.seedProcessingRecord(t, accountID, -3000)

	if err := env.orch.Run(context.Background(), record.ID); err != nil {
		t.Fatalf("run: %v", err)
	}

	if env.receipts.calls != 0 {
		t.Fatal("receipt email must be skipped when rendering fails")
	}
	if env.delivery.calls != 1 {
		t.Fatal("delivery email must still be attempted")
	}
}

func TestRunSkipsFinalizedRecords(t *testing.T) {
	t.Parallel()
	gen := &fakeGenerator{result: &Result{ContentRef: "content/abc"}}
	env := newOrchestratorEnv(t, gen)
	accountID := env.seedAccount(t, 100)
	record := env.seedProcessingRecord(t, accountID, -3000)

	if err := env.orch.Run(context.Background(), record.ID); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := env.orch.Run(context.Background(), record.ID); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if gen.calls != 1 {
		t.Fatalf("redelivery must not rerun generation, got %d calls", gen.calls)
	}
}

func TestRunUnknownRecordIsNoop(t *testing.T) {
	t.Parallel()
	gen := &fakeGenerator{result: &Result{ContentRef: "x"}}
	env := newOrchestratorEnv(t, gen)

	if err := env.orch.Run(context.Background(), uuid.New()); err != nil {
		t.Fatalf("unknown record should ack, got %v", err)
	}
	if gen.calls != 0 {
		t.Fatal("generator must not run for unknown records")
	}
}
