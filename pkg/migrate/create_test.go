package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCreateMigrationWritesGooseStub(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	path, err := CreateMigration(dir, "Add Refund Index!")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasSuffix(path, "_add_refund_index.sql") {
		t.Fatalf("unexpected filename: %s", path)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("migration written outside dir: %s", path)
	}

	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for _, marker := range []string{"+goose Up", "+goose Down", "+goose StatementBegin"} {
		if !strings.Contains(string(body), marker) {
			t.Fatalf("stub missing %q:\n%s", marker, body)
		}
	}
}

func TestCreateMigrationRejectsBadNames(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	if _, err := CreateMigration(dir, "!!!"); err == nil {
		t.Fatal("expected an error for a name with no usable characters")
	}
	if _, err := CreateMigration("", "ok"); err == nil {
		t.Fatal("expected an error for a missing dir")
	}
}
