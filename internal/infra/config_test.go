package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PORT", "")
	t.Setenv("STORAGE_PATH", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port mismatch: got %q want %q", cfg.Port, "8080")
	}
	if cfg.StoragePath != "data/artifacts" {
		t.Fatalf("StoragePath mismatch: got %q", cfg.StoragePath)
	}
	if cfg.MaxConcurrency != 2 {
		t.Fatalf("MaxConcurrency mismatch: got %d want 2", cfg.MaxConcurrency)
	}
	if cfg.MaxModerationAttempts != 5 {
		t.Fatalf("MaxModerationAttempts mismatch: got %d want 5", cfg.MaxModerationAttempts)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Fatalf("PollInterval mismatch: got %s", cfg.PollInterval)
	}
	// Must agree with the genai client's own fallback model.
	if cfg.GeminiModel != "gemini-2.5-flash" {
		t.Fatalf("GeminiModel mismatch: got %q", cfg.GeminiModel)
	}
}

func TestLoadConfigAllowsMissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.DatabaseURL != "" {
		t.Fatalf("DatabaseURL should be empty, got %q", cfg.DatabaseURL)
	}
}

func TestLoadConfigHonorsOverrides(t *testing.T) {
	t.Setenv("PORT", "1919")
	t.Setenv("RENDER_MAX_CONCURRENCY", "4")
	t.Setenv("MAX_MODERATION_ATTEMPTS", "3")
	t.Setenv("POLL_INTERVAL_SECONDS", "7")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "1919" {
		t.Fatalf("Port mismatch: got %q", cfg.Port)
	}
	if cfg.MaxConcurrency != 4 {
		t.Fatalf("MaxConcurrency mismatch: got %d", cfg.MaxConcurrency)
	}
	if cfg.MaxModerationAttempts != 3 {
		t.Fatalf("MaxModerationAttempts mismatch: got %d", cfg.MaxModerationAttempts)
	}
	if cfg.PollInterval != 7*time.Second {
		t.Fatalf("PollInterval mismatch: got %s", cfg.PollInterval)
	}
}

func TestLoadConfigIgnoresMalformedInt(t *testing.T) {
	t.Setenv("RENDER_MAX_CONCURRENCY", "lots")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.MaxConcurrency != 2 {
		t.Fatalf("MaxConcurrency should fall back to default, got %d", cfg.MaxConcurrency)
	}
}
