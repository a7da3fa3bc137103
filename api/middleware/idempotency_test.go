package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/avenqor/avenqor-backend/pkg/logger"
)

type fakeIdempotencyStore struct {
	values map[string]string
	ttls   map[string]time.Duration
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (s *fakeIdempotencyStore) Get(_ context.Context, key string) (string, error) {
	value, ok := s.values[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (s *fakeIdempotencyStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := s.values[key]; ok {
		return false, nil
	}
	s.values[key] = value.(string)
	s.ttls[key] = ttl
	return true, nil
}

func (s *fakeIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "avq:idempotency:" + scope + ":" + id
}

func (s *fakeIdempotencyStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.values, key)
	}
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func idempotentHandler(calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"ok":true}}`))
	})
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	t.Parallel()
	store := newFakeIdempotencyStore()
	calls := 0
	handler := Idempotency(store, testLogger())(idempotentHandler(&calls))

	body := `{"tokens":500}`
	first := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/topups", strings.NewReader(body))
	req.Header.Set("Idempotency-Key", "key-1")
	handler.ServeHTTP(first, req)

	if first.Code != http.StatusCreated {
		t.Fatalf("first call status = %d", first.Code)
	}
	if calls != 1 {
		t.Fatalf("handler calls = %d, want 1", calls)
	}

	second := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/topups", strings.NewReader(body))
	req.Header.Set("Idempotency-Key", "key-1")
	handler.ServeHTTP(second, req)

	if calls != 1 {
		t.Fatalf("replay re-invoked the handler, calls = %d", calls)
	}
	if second.Code != http.StatusCreated {
		t.Fatalf("replay status = %d, want %d", second.Code, http.StatusCreated)
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("replay body %q does not match original %q", second.Body.String(), first.Body.String())
	}
	if ct := second.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("replay content type = %q", ct)
	}
}

func TestIdempotencyRejectsKeyReuseWithDifferentBody(t *testing.T) {
	t.Parallel()
	store := newFakeIdempotencyStore()
	calls := 0
	handler := Idempotency(store, testLogger())(idempotentHandler(&calls))

	first := httptest.NewRequest(http.MethodPost, "/api/v1/topups", strings.NewReader(`{"tokens":500}`))
	first.Header.Set("Idempotency-Key", "key-1")
	handler.ServeHTTP(httptest.NewRecorder(), first)

	rec := httptest.NewRecorder()
	second := httptest.NewRequest(http.MethodPost, "/api/v1/topups", strings.NewReader(`{"tokens":9000}`))
	second.Header.Set("Idempotency-Key", "key-1")
	handler.ServeHTTP(rec, second)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
	if calls != 1 {
		t.Fatalf("conflicting reuse must not run the handler again, calls = %d", calls)
	}
}

func TestIdempotencyRequiresHeaderOnGuardedRoutes(t *testing.T) {
	t.Parallel()
	store := newFakeIdempotencyStore()
	calls := 0
	handler := Idempotency(store, testLogger())(idempotentHandler(&calls))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/purchases/custom-course", strings.NewReader(`{}`))
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if calls != 0 {
		t.Fatalf("handler must not run without a key, calls = %d", calls)
	}
}

func TestIdempotencyIgnoresUnguardedRoutes(t *testing.T) {
	t.Parallel()
	store := newFakeIdempotencyStore()
	calls := 0
	handler := Idempotency(store, testLogger())(idempotentHandler(&calls))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions", nil)
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	if calls != 1 {
		t.Fatalf("unguarded route should pass through, calls = %d", calls)
	}
	if len(store.values) != 0 {
		t.Fatalf("unguarded route must not persist a record")
	}
}

func TestIdempotencyUsesCriticalTTLForMoneyRoutes(t *testing.T) {
	t.Parallel()
	store := newFakeIdempotencyStore()
	calls := 0
	handler := Idempotency(store, testLogger())(idempotentHandler(&calls))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/topups", strings.NewReader(`{"tokens":1}`))
	req.Header.Set("Idempotency-Key", "key-ttl")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	for _, ttl := range store.ttls {
		if ttl != criticalIdempotencyTTL {
			t.Fatalf("ttl = %s, want %s", ttl, criticalIdempotencyTTL)
		}
	}
	if len(store.ttls) != 1 {
		t.Fatalf("expected one stored record, got %d", len(store.ttls))
	}
}
