package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "production") // skip .env discovery
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg := Load()
	if cfg.APIBaseURL != "http://localhost:8080" {
		t.Fatalf("api base = %q", cfg.APIBaseURL)
	}
	if cfg.TypingShowWindow != 3*time.Second || cfg.TypingIdleStop != time.Second {
		t.Fatalf("typing windows = %v / %v", cfg.TypingShowWindow, cfg.TypingIdleStop)
	}
	if cfg.PreviewMaxLen != 50 {
		t.Fatalf("preview len = %d", cfg.PreviewMaxLen)
	}
}

func TestLoadYAMLAndEnvPrecedence(t *testing.T) {
	t.Setenv("APP_ENV", "production")

	dir := t.TempDir()
	path := filepath.Join(dir, "client.yaml")
	yaml := "api_base_url: https://play.example.com/\nws_url: wss://play.example.com/ws\ntyping_show_ms: 5000\npreview_max_len: 30\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)
	// Env beats YAML.
	t.Setenv("WS_URL", "wss://override.example.com/ws")
	t.Setenv("SESSION_COOKIE", "abc123")

	cfg := Load()
	if cfg.APIBaseURL != "https://play.example.com" {
		t.Fatalf("api base = %q (trailing slash must be trimmed)", cfg.APIBaseURL)
	}
	if cfg.WSURL != "wss://override.example.com/ws" {
		t.Fatalf("ws url = %q", cfg.WSURL)
	}
	if cfg.TypingShowWindow != 5*time.Second {
		t.Fatalf("typing show = %v", cfg.TypingShowWindow)
	}
	if cfg.PreviewMaxLen != 30 {
		t.Fatalf("preview len = %d", cfg.PreviewMaxLen)
	}
	if cfg.SessionCookie != "abc123" {
		t.Fatalf("session cookie not taken from env")
	}
}
