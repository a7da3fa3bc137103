package errors

import (
	stdErrors "errors"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code   Code
		status int
	}{
		{CodeValidation, http.StatusBadRequest},
		{CodeInsufficientFunds, http.StatusPaymentRequired},
		{CodeNotFound, http.StatusNotFound},
		{CodeGeneration, http.StatusBadGateway},
		{CodeDependency, http.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		if got := MetadataFor(tc.code).HTTPStatus; got != tc.status {
			t.Fatalf("MetadataFor(%s).HTTPStatus = %d, want %d", tc.code, got, tc.status)
		}
	}
}

func TestMetadataForUnknownCodeFallsBack(t *testing.T) {
	meta := MetadataFor(Code("NOT_A_CODE"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal fallback, got %d", meta.HTTPStatus)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("db down")
	err := Wrap(CodeDependency, cause, "reading account")

	if !stdErrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to satisfy errors.Is")
	}
	if err.Code() != CodeDependency {
		t.Fatalf("unexpected code %s", err.Code())
	}
}

func TestAsUnwrapsThroughChain(t *testing.T) {
	inner := New(CodeInsufficientFunds, "balance too low")
	outer := Wrap(CodeInternal, inner, "purchase failed")

	typed := As(outer)
	if typed == nil {
		t.Fatal("expected typed error")
	}
	if typed.Code() != CodeInternal {
		t.Fatalf("expected outermost code, got %s", typed.Code())
	}
	if !IsCode(inner, CodeInsufficientFunds) {
		t.Fatal("IsCode should match the inner error")
	}
}

func TestDumpBuildsChain(t *testing.T) {
	err := Wrap(CodeDependency, stdErrors.New("socket closed"), "redis call")
	dump := Dump(err)

	if dump.Code != CodeDependency {
		t.Fatalf("unexpected dump code %s", dump.Code)
	}
	if len(dump.Chain) < 2 {
		t.Fatalf("expected chain of at least 2, got %d", len(dump.Chain))
	}
}

func TestDumpLogFields(t *testing.T) {
	err := Wrap(CodeDependency, stdErrors.New("socket closed"), "redis call")
	fields := Dump(err).LogFields()

	if fields["error_code"] != CodeDependency {
		t.Fatalf("unexpected error_code field: %v", fields["error_code"])
	}
	if fields["error"] == "" {
		t.Fatal("expected the outermost message")
	}
	if _, ok := fields["pg_code"]; ok {
		t.Fatal("non-driver errors must not emit pg fields")
	}
}
