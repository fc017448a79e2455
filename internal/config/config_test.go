package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.PollInterval != 10*time.Second {
		t.Fatalf("expected 10s poll interval, got %s", cfg.PollInterval)
	}
	if cfg.FetchLimit != 100 {
		t.Fatalf("expected fetch limit 100, got %d", cfg.FetchLimit)
	}
	if cfg.HTTPPort != "8081" {
		t.Fatalf("unexpected default port %q", cfg.HTTPPort)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "30s")
	t.Setenv("FETCH_LIMIT", "50")
	t.Setenv("ADMIN_IDS", "1, 2,bogus,3")

	cfg := Load()

	if cfg.PollInterval != 30*time.Second {
		t.Fatalf("expected 30s, got %s", cfg.PollInterval)
	}
	if cfg.FetchLimit != 50 {
		t.Fatalf("expected 50, got %d", cfg.FetchLimit)
	}
	if len(cfg.AdminIDs) != 3 {
		t.Fatalf("expected 3 admin ids, got %v", cfg.AdminIDs)
	}
}

func TestLoadInvalidDurationFallsBack(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "soon")

	cfg := Load()

	if cfg.PollInterval != 10*time.Second {
		t.Fatalf("expected fallback 10s, got %s", cfg.PollInterval)
	}
}

func TestIsAdmin(t *testing.T) {
	cfg := App{AdminIDs: []int64{1, 2}}

	if !cfg.IsAdmin(1) || !cfg.IsAdmin(2) {
		t.Fatal("configured ids must be admins")
	}
	if cfg.IsAdmin(3) {
		t.Fatal("unknown id must not be an admin")
	}
}
