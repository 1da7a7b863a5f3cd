package infra

import (
	"testing"
	"time"
)

func TestLoadConfigRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig succeeded without JWT_SECRET")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PORT", "")
	t.Setenv("PROVIDER_TIMEOUT_SECONDS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port = %q, want %q", cfg.Port, "8080")
	}
	if cfg.DatabaseURL != "" {
		t.Fatalf("DatabaseURL = %q, want empty", cfg.DatabaseURL)
	}
	if cfg.ProviderTimeout != 30*time.Second {
		t.Fatalf("ProviderTimeout = %v, want 30s", cfg.ProviderTimeout)
	}
	if cfg.FalBaseURL != "https://fal.run" {
		t.Fatalf("FalBaseURL = %q", cfg.FalBaseURL)
	}
}

func TestLoadConfigHonorsOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PORT", "1919")
	t.Setenv("VIDEO_TIMEOUT_SECONDS", "45")
	t.Setenv("GEMINI_MODEL", "gemini-2.0-flash")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "1919" {
		t.Fatalf("Port = %q, want %q", cfg.Port, "1919")
	}
	if cfg.VideoTimeout != 45*time.Second {
		t.Fatalf("VideoTimeout = %v, want 45s", cfg.VideoTimeout)
	}
	if cfg.GeminiModel != "gemini-2.0-flash" {
		t.Fatalf("GeminiModel = %q", cfg.GeminiModel)
	}
}
