package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.DBPath != "data/accounts.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "data/accounts.db")
	}
	if cfg.OutboxMaxAttempts != 5 {
		t.Errorf("OutboxMaxAttempts = %d, want 5", cfg.OutboxMaxAttempts)
	}
	if cfg.ReconcileGrace != time.Hour {
		t.Errorf("ReconcileGrace = %v, want 1h", cfg.ReconcileGrace)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9191")
	t.Setenv("IDP_BASE_URL", "https://idp.example.com")
	t.Setenv("OUTBOX_INTERVAL", "3s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 9191 {
		t.Errorf("Port = %d, want 9191", cfg.Port)
	}
	if cfg.IDPBaseURL != "https://idp.example.com" {
		t.Errorf("IDPBaseURL = %q", cfg.IDPBaseURL)
	}
	if cfg.OutboxInterval != 3*time.Second {
		t.Errorf("OutboxInterval = %v, want 3s", cfg.OutboxInterval)
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Errorf("CORSAllowedOrigins = %v, want two entries", cfg.CORSAllowedOrigins)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("PORT", "not-a-number")

	if _, err := Load(); err == nil {
		t.Fatal("Load() should fail on a non-numeric PORT")
	}
}
