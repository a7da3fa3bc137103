package config

import (
	"strings"
	"testing"
)

func TestEnsureDSNFromParts(t *testing.T) {
	cfg := DBConfig{
		Host:     "localhost",
		Port:     5433,
		User:     "avenqor",
		Password: "p@ss/word",
		Name:     "avenqor",
		SSLMode:  "disable",
	}
	if err := cfg.ensureDSN(); err != nil {
		t.Fatalf("ensureDSN: %v", err)
	}
	if !strings.HasPrefix(cfg.DSN, "postgres://avenqor:") {
		t.Fatalf("unexpected DSN %q", cfg.DSN)
	}
	if !strings.Contains(cfg.DSN, "localhost:5433") {
		t.Fatalf("host missing from DSN %q", cfg.DSN)
	}
	if !strings.Contains(cfg.DSN, "sslmode=disable") {
		t.Fatalf("sslmode missing from DSN %q", cfg.DSN)
	}
}

func TestEnsureDSNPrefersExplicit(t *testing.T) {
	cfg := DBConfig{DSN: "postgres://explicit"}
	if err := cfg.ensureDSN(); err != nil {
		t.Fatalf("ensureDSN: %v", err)
	}
	if cfg.DSN != "postgres://explicit" {
		t.Fatalf("explicit DSN overwritten: %q", cfg.DSN)
	}
}

func TestEnsureDSNReportsMissingParts(t *testing.T) {
	cfg := DBConfig{Host: "localhost"}
	err := cfg.ensureDSN()
	if err == nil {
		t.Fatal("expected error for missing user/name")
	}
	if !strings.Contains(err.Error(), "AVENQOR_DB_USER") {
		t.Fatalf("error should name missing vars, got %v", err)
	}
}

func TestAppConfigEnvHelpers(t *testing.T) {
	if !(AppConfig{Env: "Dev"}).IsDev() {
		t.Fatal("IsDev should be case-insensitive")
	}
	if !(AppConfig{Env: "PROD"}).IsProd() {
		t.Fatal("IsProd should be case-insensitive")
	}
}
