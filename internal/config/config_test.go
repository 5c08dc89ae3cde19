package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Chat.Provider != "gemini" {
		t.Fatalf("expected gemini provider, got %q", cfg.Chat.Provider)
	}
	if got := cfg.Provider().Model; got != "gemini-2.5-flash" {
		t.Fatalf("unexpected default model %q", got)
	}
	if cfg.Chat.ResponseTimeout != 0 {
		t.Fatalf("expected unbounded response timeout, got %s", cfg.Chat.ResponseTimeout)
	}
	if cfg.Auth.MinPasswordLength != 6 || cfg.Auth.DemoEmail != "demo@example.com" {
		t.Fatalf("unexpected auth defaults: %#v", cfg.Auth)
	}
	if cfg.Auth.TokenTTL != 24*time.Hour {
		t.Fatalf("unexpected token ttl %s", cfg.Auth.TokenTTL)
	}
}

func TestLoadReadsFileAndResolvesSqlitePath(t *testing.T) {
	path := writeConfig(t, `{
		"basic_config": {"server_address": ":9999", "database": "sqlite3"},
		"databases": {"sqlite3": {"dsn": "data/chat.db"}},
		"providers": {"gemini": {"model": "gemini-2.0-pro", "api_key": "k"}},
		"chat": {"provider": "gemini", "response_timeout": "45s"}
	}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.BasicConfig.ServerAddress != ":9999" {
		t.Fatalf("server address not read: %q", cfg.BasicConfig.ServerAddress)
	}
	if cfg.Chat.ResponseTimeout != 45*time.Second {
		t.Fatalf("response timeout not parsed: %s", cfg.Chat.ResponseTimeout)
	}
	want := filepath.Join(filepath.Dir(path), "data/chat.db")
	if got := cfg.Databases["sqlite3"].DSN; got != want {
		t.Fatalf("dsn not resolved, want %q got %q", want, got)
	}
	if cfg.Provider().APIKey != "k" {
		t.Fatalf("api key not read")
	}
}

func TestLoadGeminiKeyFromEnvironment(t *testing.T) {
	t.Setenv("GOOGLE_AI_API_KEY", "from-env")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got := cfg.Providers["gemini"].APIKey; got != "from-env" {
		t.Fatalf("expected env api key, got %q", got)
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	path := writeConfig(t, `{"chat": {"provider": "mystery"}}`)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "mystery") {
		t.Fatalf("expected provider error, got %v", err)
	}
}
