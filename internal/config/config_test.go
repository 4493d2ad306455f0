package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.App.Port != "8080" {
		t.Errorf("port = %q, want 8080", cfg.App.Port)
	}
	if cfg.Cache.EntityTTLSeconds != 300 || cfg.Cache.ListTTLSeconds != 60 {
		t.Errorf("cache TTL defaults = %+v", cfg.Cache)
	}
	if cfg.Queue.BatchSize != 10 {
		t.Errorf("batch size = %d, want 10", cfg.Queue.BatchSize)
	}
	if cfg.Queue.InactiveDays != 7 {
		t.Errorf("inactive days = %d, want 7", cfg.Queue.InactiveDays)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9999")
	t.Setenv("CACHE_ENTITY_TTL_SECONDS", "42")
	t.Setenv("QUEUE_BATCH_SIZE", "25")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.Port != "9999" {
		t.Errorf("port = %q, want 9999", cfg.App.Port)
	}
	if got := cfg.Cache.EntityTTL(); got != 42*time.Second {
		t.Errorf("entity TTL = %v, want 42s", got)
	}
	if cfg.Queue.BatchSize != 25 {
		t.Errorf("batch size = %d, want 25", cfg.Queue.BatchSize)
	}
}

func TestAddr(t *testing.T) {
	app := AppConfig{Host: "127.0.0.1", Port: "3000"}
	if got := app.Addr(); got != "127.0.0.1:3000" {
		t.Errorf("Addr = %q", got)
	}
}
