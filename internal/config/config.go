package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/text/language"
)

// Config holds all application configuration, read from environment
// variables with sensible defaults.
//
// Environment Variables:
// Translation:
// - PROVIDER_CHAIN: ordered provider fallback chain, comma separated (default: remote,local)
// - BATCH_SIZE: lines per provider call (default: 20)
// - MAX_RETRIES: extra attempts per provider on retryable failures (default: 2)
// - BACKOFF_BASE_MS: first retry delay in milliseconds (default: 500)
// - TARGET_LANGUAGE: BCP 47 tag of the output language (default: vi)
// - PRESERVE_NAMES: enable character name placeholders (default: true)
// - CONTEXT_HINT: free-text hint forwarded to providers (optional)
// - TRANSLATE_CONCURRENCY: batches in flight at once (default: 4)
//
// Remote provider:
// - LLM_API_KEY: API key (required when the chain contains "remote")
// - LLM_API_URL: API endpoint URL (default: https://openrouter.ai/api/v1)
// - LLM_MODEL: model name (default: openai/gpt-3.5-turbo)
// - LLM_MAX_TOKENS: response token cap (default: 8000)
// - LLM_TEMPERATURE: sampling temperature (default: 0.7)
// - LLM_TIMEOUT: request timeout in seconds (default: 30)
//
// Local provider:
// - LOCAL_MODEL_CMD: command line of the local inference process
// - LOCAL_MAX_BATCH: max texts per local inference call (default: 8)
//
// Service:
// - MEDIA_DIRS: directories to scan, comma separated
// - CRON_EXPR: scan schedule (default: 0 0 * * *)
// - DATA_DIR: sqlite databases and name files (default: ./data)
// - SUBTITLE_FILE: translate this one file and exit (one-shot mode)

type Config struct {
	LLM       LLMConfig       `json:"llm"`
	Local     LocalConfig     `json:"local"`
	Translate TranslateConfig `json:"translate"`
	Media     MediaConfig     `json:"media"`
	DataDir   string          `json:"data_dir"`

	// SubtitleFile switches the binary into one-shot mode.
	SubtitleFile string `json:"subtitle_file"`
}

type TranslateConfig struct {
	ProviderChain  []string     `json:"provider_chain"`
	BatchSize      int          `json:"batch_size"`
	MaxRetries     int          `json:"max_retries"`
	BackoffBase    time.Duration `json:"backoff_base"`
	TargetLanguage language.Tag `json:"target_language"`
	PreserveNames  bool         `json:"preserve_names"`
	ContextHint    string       `json:"context_hint"`
	Concurrency    int          `json:"concurrency"`
}

// LLMConfig configures the remote chat-completions provider.
type LLMConfig struct {
	APIKey      string  `json:"api_key"`
	APIURL      string  `json:"api_url"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Timeout     int     `json:"timeout"`
}

// LocalConfig configures the local inference provider.
type LocalConfig struct {
	ModelCmd string `json:"model_cmd"`
	MaxBatch int    `json:"max_batch"`
}

type MediaConfig struct {
	Dirs     []string `json:"dirs"`
	CronExpr string   `json:"cron_expr"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from
// environment variables and options.
func NewFromEnv(opts ...Option) (*Config, error) {
	target, err := language.Parse(getEnvString("TARGET_LANGUAGE", "vi"))
	if err != nil {
		return nil, fmt.Errorf("invalid TARGET_LANGUAGE: %w", err)
	}

	config := &Config{
		LLM: LLMConfig{
			APIKey:      getEnvString("LLM_API_KEY", ""),
			APIURL:      getEnvString("LLM_API_URL", "https://openrouter.ai/api/v1"),
			Model:       getEnvString("LLM_MODEL", "openai/gpt-3.5-turbo"),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 8000),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0.7),
			Timeout:     getEnvInt("LLM_TIMEOUT", 30),
		},
		Local: LocalConfig{
			ModelCmd: getEnvString("LOCAL_MODEL_CMD", ""),
			MaxBatch: getEnvInt("LOCAL_MAX_BATCH", 8),
		},
		Translate: TranslateConfig{
			ProviderChain:  splitList(getEnvString("PROVIDER_CHAIN", "remote,local")),
			BatchSize:      getEnvInt("BATCH_SIZE", 20),
			MaxRetries:     getEnvInt("MAX_RETRIES", 2),
			BackoffBase:    time.Duration(getEnvInt("BACKOFF_BASE_MS", 500)) * time.Millisecond,
			TargetLanguage: target,
			PreserveNames:  getEnvBool("PRESERVE_NAMES", true),
			ContextHint:    getEnvString("CONTEXT_HINT", ""),
			Concurrency:    getEnvInt("TRANSLATE_CONCURRENCY", 4),
		},
		Media: MediaConfig{
			Dirs:     splitList(getEnvString("MEDIA_DIRS", "")),
			CronExpr: getEnvString("CRON_EXPR", "0 0 * * *"),
		},
		DataDir:      getEnvString("DATA_DIR", "./data"),
		SubtitleFile: getEnvString("SUBTITLE_FILE", ""),
	}

	for _, opt := range opts {
		opt(config)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if len(c.Translate.ProviderChain) == 0 {
		return fmt.Errorf("PROVIDER_CHAIN must not be empty")
	}
	for _, id := range c.Translate.ProviderChain {
		switch id {
		case "remote":
			if c.LLM.APIKey == "" {
				return fmt.Errorf("LLM_API_KEY is required when the chain contains %q", id)
			}
		case "local":
			if c.Local.ModelCmd == "" {
				return fmt.Errorf("LOCAL_MODEL_CMD is required when the chain contains %q", id)
			}
		default:
			return fmt.Errorf("unknown provider %q in PROVIDER_CHAIN", id)
		}
	}
	if c.Translate.BatchSize <= 0 {
		return fmt.Errorf("BATCH_SIZE must be greater than 0")
	}
	if c.SubtitleFile == "" {
		if _, err := cron.ParseStandard(c.Media.CronExpr); err != nil {
			return fmt.Errorf("invalid CRON_EXPR: %w", err)
		}
		if len(c.Media.Dirs) == 0 {
			return fmt.Errorf("MEDIA_DIRS is required outside one-shot mode")
		}
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
