package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValidWithMocks(t *testing.T) {
	cfg := Default()
	cfg.AI.MockLLM = true
	cfg.AI.MockTranscription = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	if cfg.Pipe.Workers != 4 || cfg.Pipe.QueueSize != 256 {
		t.Errorf("unexpected pool defaults: %+v", cfg.Pipe)
	}
	if cfg.SignedURLTTL() != 24*time.Hour {
		t.Errorf("SignedURLTTL() = %v", cfg.SignedURLTTL())
	}
}

func TestValidateRequiresKeyWithoutMocks(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error without OPENAI_API_KEY")
	}
	if !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Errorf("error %q does not name the missing key", err)
	}
}

func TestValidateRejectsBadPool(t *testing.T) {
	cfg := Default()
	cfg.AI.MockLLM, cfg.AI.MockTranscription = true, true
	cfg.Pipe.Workers = 0
	cfg.Storage.SignedURLTTLSec = 8 * 24 * 3600
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"workers", "signed url ttl"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestLoadEnvAndOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := "pipeline:\n  workers: 9\n  queue_size: 12\n  adapter_timeout_sec: 5\n  merge_lock_wait_sec: 2\n"
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Chdir(dir)
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("USE_MOCK_LLM", "true")
	t.Setenv("USE_MOCK_TRANSCRIBE", "1")
	t.Setenv("DATABASE_URL", "sqlite://test.db")
	t.Setenv("PIPELINE_WORKERS", "2")
	t.Setenv("PROVIDER_RPS", "2.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.DatabaseURL != "sqlite://test.db" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	// the file overlay wins over the environment
	if cfg.Pipe.Workers != 9 || cfg.Pipe.QueueSize != 12 {
		t.Errorf("overlay not applied: %+v", cfg.Pipe)
	}
	if cfg.Pipe.ProviderRPS != 2.5 {
		t.Errorf("ProviderRPS = %v", cfg.Pipe.ProviderRPS)
	}
	if cfg.MergeLockWait() != 2*time.Second {
		t.Errorf("MergeLockWait() = %v", cfg.MergeLockWait())
	}
}

func TestLoadRejectsMalformedNumbers(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("USE_MOCK_LLM", "true")
	t.Setenv("USE_MOCK_TRANSCRIBE", "true")
	t.Setenv("PIPELINE_QUEUE_SIZE", "lots")
	if _, err := Load(); err == nil {
		t.Fatal("expected parse error")
	}
}
