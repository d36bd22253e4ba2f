package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "SNAPSHOT_TTL", "SNAPSHOT_LIMIT", "LLM_CACHE_CAPACITY", "AUTH_DISABLED", "CORS_ALLOWED_ORIGINS", "MISTRAL_MODEL"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	if cfg.Port != 5000 {
		t.Errorf("expected port 5000, got %d", cfg.Port)
	}
	if cfg.SnapshotTTL != 300*time.Second {
		t.Errorf("expected snapshot ttl 300s, got %v", cfg.SnapshotTTL)
	}
	if cfg.SnapshotLimit != 100 {
		t.Errorf("expected snapshot limit 100, got %d", cfg.SnapshotLimit)
	}
	if cfg.LLMCacheCapacity != 50 {
		t.Errorf("expected llm cache capacity 50, got %d", cfg.LLMCacheCapacity)
	}
	if cfg.MistralModel != "mistral-large-latest" {
		t.Errorf("unexpected model %q", cfg.MistralModel)
	}
	if cfg.AuthDisabled {
		t.Error("auth should be enabled by default")
	}
	if diff := cmp.Diff([]string{"*"}, cfg.CORSAllowedOrigins); diff != "" {
		t.Errorf("cors origins mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SNAPSHOT_TTL", "60")
	t.Setenv("HTTP_TIMEOUT", "5s")
	t.Setenv("AUTH_DISABLED", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:5173, https://oficina.example.com,")

	cfg := Load()

	if cfg.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Port)
	}
	if cfg.SnapshotTTL != time.Minute {
		t.Errorf("bare seconds should parse, got %v", cfg.SnapshotTTL)
	}
	if cfg.HTTPTimeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %v", cfg.HTTPTimeout)
	}
	if !cfg.AuthDisabled {
		t.Error("expected auth disabled")
	}
	want := []string{"http://localhost:5173", "https://oficina.example.com"}
	if diff := cmp.Diff(want, cfg.CORSAllowedOrigins); diff != "" {
		t.Errorf("cors origins mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadDotEnv_ExistingEnvWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "MISTRAL_API_KEY=from-file\nOFICINA_TEST_ONLY_KEY=\"quoted value\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("MISTRAL_API_KEY", "from-env")
	t.Setenv("OFICINA_TEST_ONLY_KEY", "")
	os.Unsetenv("OFICINA_TEST_ONLY_KEY")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := os.Getenv("MISTRAL_API_KEY"); got != "from-env" {
		t.Errorf("env should win, got %q", got)
	}
	if got := os.Getenv("OFICINA_TEST_ONLY_KEY"); got != "quoted value" {
		t.Errorf("expected value from file, got %q", got)
	}
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Errorf("missing file should be ignored, got %v", err)
	}
}
