package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfgPath
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MOCKMATE_API_BASE_URL", "http://localhost:9100")
	t.Setenv("MOCKMATE_LOG_LEVEL", "debug")
	t.Setenv("MOCKMATE_VOICE", "nova")

	cfgPath := writeConfig(t, `
apiBaseURL: "http://localhost:8000"
logLevel: "info"
dataDir: "/tmp/mockmate-test"
`)
	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.APIBaseURL != "http://localhost:9100" {
		t.Fatalf("apiBaseURL = %q, want env override", cfg.APIBaseURL)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("logLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.Voice != "nova" {
		t.Fatalf("voice = %q, want nova", cfg.Voice)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfgPath := writeConfig(t, `
apiBaseURL: "http://localhost:8000"
dataDir: "/tmp/mockmate-test"
`)
	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Voice != "alloy" {
		t.Fatalf("voice = %q, want default alloy", cfg.Voice)
	}
}

func TestLoadRejectsBadBaseURL(t *testing.T) {
	cfgPath := writeConfig(t, `
apiBaseURL: "localhost:8000"
dataDir: "/tmp/mockmate-test"
`)
	if _, err := Load(cfgPath); err == nil {
		t.Fatalf("expected error for non-http base URL")
	}
}

func TestParseSessionListMaxAge(t *testing.T) {
	dur, err := ParseSessionListMaxAge("")
	if err != nil {
		t.Fatalf("default max age: %v", err)
	}
	if dur != 5*time.Minute {
		t.Fatalf("default max age = %v, want 5m", dur)
	}
	dur, err = ParseSessionListMaxAge("90s")
	if err != nil {
		t.Fatalf("parse max age: %v", err)
	}
	if dur != 90*time.Second {
		t.Fatalf("max age = %v, want 90s", dur)
	}
	if _, err := ParseSessionListMaxAge("bogus"); err == nil {
		t.Fatalf("expected error for invalid duration")
	}
}
