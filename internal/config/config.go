// Package config resolves service settings from .env, the process
// environment and an optional YAML overlay.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        string `yaml:"port"`
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`

	DatabaseURL string `yaml:"database_url"`

	Storage StorageConfig  `yaml:"storage"`
	AI      AIConfig       `yaml:"ai"`
	Pipe    PipelineConfig `yaml:"pipeline"`
}

type StorageConfig struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Bucket          string `yaml:"bucket"`
	UseSSL          bool   `yaml:"use_ssl"`
	SignedURLTTLSec int    `yaml:"signed_url_ttl_sec"`
}

type AIConfig struct {
	OpenAIKey         string `yaml:"openai_api_key"`
	LLMModel          string `yaml:"llm_model"`
	TranscribeModel   string `yaml:"transcribe_model"`
	FallbackModel     string `yaml:"transcribe_fallback_model"` // tried when the primary model fails
	MockTranscription bool   `yaml:"mock_transcribe"`
	MockLLM           bool   `yaml:"mock_llm"`
}

type PipelineConfig struct {
	Workers           int     `yaml:"workers"`
	QueueSize         int     `yaml:"queue_size"`
	AdapterTimeoutSec int     `yaml:"adapter_timeout_sec"`
	MergeLockWaitSec  int     `yaml:"merge_lock_wait_sec"`
	ProviderRPS       float64 `yaml:"provider_rps"` // 0 disables limiting
}

// Default returns a Config populated with local development defaults.
func Default() *Config {
	return &Config{
		Port:        "8080",
		Environment: "local",
		LogLevel:    "info",
		DatabaseURL: "sqlite://voice-forms.db",
		Storage: StorageConfig{
			Bucket:          "form-responses",
			SignedURLTTLSec: 86400,
		},
		AI: AIConfig{
			LLMModel:        "gpt-4o-mini",
			TranscribeModel: "whisper-1",
		},
		Pipe: PipelineConfig{
			Workers:           4,
			QueueSize:         256,
			AdapterTimeoutSec: 30,
			MergeLockWaitSec:  10,
		},
	}
}

// Load applies .env, then the environment, then the CONFIG_FILE overlay.
func Load() (*Config, error) {
	_ = godotenv.Load() // loads .env when present

	cfg := Default()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Port, "PORT")
	setString(&c.Environment, "ENVIRONMENT")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.DatabaseURL, "DATABASE_URL")

	setString(&c.Storage.Endpoint, "MINIO_ENDPOINT")
	setString(&c.Storage.AccessKeyID, "MINIO_ACCESS_KEY_ID")
	setString(&c.Storage.SecretAccessKey, "MINIO_SECRET_ACCESS_KEY")
	setString(&c.Storage.Bucket, "MINIO_BUCKET_NAME")

	setString(&c.AI.OpenAIKey, "OPENAI_API_KEY")
	setString(&c.AI.LLMModel, "LLM_MODEL")
	setString(&c.AI.TranscribeModel, "TRANSCRIBE_MODEL")
	setString(&c.AI.FallbackModel, "TRANSCRIBE_FALLBACK_MODEL")

	var errs []error
	errs = append(errs,
		setBool(&c.Storage.UseSSL, "MINIO_USE_SSL"),
		setBool(&c.AI.MockTranscription, "USE_MOCK_TRANSCRIBE"),
		setBool(&c.AI.MockLLM, "USE_MOCK_LLM"),
		setInt(&c.Storage.SignedURLTTLSec, "SIGNED_URL_TTL_SEC"),
		setInt(&c.Pipe.Workers, "PIPELINE_WORKERS"),
		setInt(&c.Pipe.QueueSize, "PIPELINE_QUEUE_SIZE"),
		setInt(&c.Pipe.AdapterTimeoutSec, "ADAPTER_TIMEOUT_SEC"),
		setInt(&c.Pipe.MergeLockWaitSec, "MERGE_LOCK_WAIT_SEC"),
	)
	if v := os.Getenv("PROVIDER_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("PROVIDER_RPS: %w", err))
		} else {
			c.Pipe.ProviderRPS = f
		}
	}
	return errors.Join(errs...)
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.Pipe.Workers < 1 {
		errs = append(errs, fmt.Errorf("pipeline workers must be >= 1, got %d", c.Pipe.Workers))
	}
	if c.Pipe.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("pipeline queue size must be >= 1, got %d", c.Pipe.QueueSize))
	}
	if c.Pipe.AdapterTimeoutSec < 1 {
		errs = append(errs, errors.New("adapter timeout must be positive"))
	}
	if c.Pipe.MergeLockWaitSec < 1 {
		errs = append(errs, errors.New("merge lock wait must be positive"))
	}
	if c.Pipe.ProviderRPS < 0 {
		errs = append(errs, errors.New("provider rps must not be negative"))
	}
	// presigned URLs are capped at seven days
	if c.Storage.SignedURLTTLSec < 1 || c.Storage.SignedURLTTLSec > 7*24*3600 {
		errs = append(errs, fmt.Errorf("signed url ttl out of range: %d", c.Storage.SignedURLTTLSec))
	}
	if !c.AI.MockLLM && c.AI.OpenAIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is required unless USE_MOCK_LLM is set"))
	}
	if !c.AI.MockTranscription && c.AI.OpenAIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is required unless USE_MOCK_TRANSCRIBE is set"))
	}
	return errors.Join(errs...)
}

func (c *Config) AdapterTimeout() time.Duration {
	return time.Duration(c.Pipe.AdapterTimeoutSec) * time.Second
}

func (c *Config) MergeLockWait() time.Duration {
	return time.Duration(c.Pipe.MergeLockWaitSec) * time.Second
}

func (c *Config) SignedURLTTL() time.Duration {
	return time.Duration(c.Storage.SignedURLTTLSec) * time.Second
}

// UsesMemoryBlobs is true when no object store endpoint is configured.
func (c *Config) UsesMemoryBlobs() bool {
	return c.Storage.Endpoint == ""
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func setInt(dst *int, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}
