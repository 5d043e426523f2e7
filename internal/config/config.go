// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// State backends.
const (
	BackendDynamoDB = "dynamodb"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// LLM providers.
const (
	ProviderOpenAI    = "openai"
	ProviderWorkersAI = "workersai"
)

// Parameter sources.
const (
	ParamSourceSSM = "ssm"
	ParamSourceEnv = "env"
)

const defaultSQLitePath = "./data/coach.db"

// Config holds all application configuration.
type Config struct {
	Port     string
	LogLevel string

	StateBackend string
	StateTable   string
	DatabaseURL  string

	ParamPrefix string
	ParamSource string

	LLM LLMConfig

	MaxHistoryItems  int
	MaxMessageLength int
}

// LLMConfig selects and tunes the completion provider.
type LLMConfig struct {
	Provider           string
	Timeout            time.Duration
	Retries            int
	WorkersAIAccountID string
	WorkersAIModel     string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	stateTable := getEnv("STATE_TABLE", "")
	defaultBackend := BackendMemory
	if stateTable != "" {
		defaultBackend = BackendDynamoDB
	}

	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		StateBackend: strings.ToLower(getEnv("STATE_BACKEND", defaultBackend)),
		StateTable:   stateTable,
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		ParamPrefix:  strings.TrimRight(getEnv("PARAM_PREFIX", "/coach-agent"), "/"),
		ParamSource:  strings.ToLower(getEnv("PARAM_SOURCE", ParamSourceSSM)),
		LLM: LLMConfig{
			Provider:           strings.ToLower(getEnv("LLM_PROVIDER", ProviderOpenAI)),
			Timeout:            getEnvDuration("LLM_TIMEOUT", 8*time.Second),
			Retries:            getEnvInt("LLM_RETRIES", 1),
			WorkersAIAccountID: getEnv("WORKERS_AI_ACCOUNT_ID", ""),
			WorkersAIModel:     getEnv("WORKERS_AI_MODEL", ""),
		},
		MaxHistoryItems:  getEnvInt("MAX_HISTORY_ITEMS", 20),
		MaxMessageLength: getEnvInt("MAX_MESSAGE_LENGTH", 1000),
	}
	if cfg.StateBackend == BackendSQLite && cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultSQLitePath
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	switch c.StateBackend {
	case BackendDynamoDB:
		if c.StateTable == "" {
			return fmt.Errorf("STATE_TABLE is required for the dynamodb backend")
		}
	case BackendSQLite, BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the %s backend", c.StateBackend)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("STATE_BACKEND %q is not supported", c.StateBackend)
	}

	if c.ParamPrefix == "" {
		return fmt.Errorf("PARAM_PREFIX cannot be empty")
	}
	if c.ParamSource != ParamSourceSSM && c.ParamSource != ParamSourceEnv {
		return fmt.Errorf("PARAM_SOURCE %q is not supported", c.ParamSource)
	}

	switch c.LLM.Provider {
	case ProviderOpenAI:
	case ProviderWorkersAI:
		if c.LLM.WorkersAIAccountID == "" {
			return fmt.Errorf("WORKERS_AI_ACCOUNT_ID is required for the workersai provider")
		}
	default:
		return fmt.Errorf("LLM_PROVIDER %q is not supported", c.LLM.Provider)
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be > 0")
	}
	if c.LLM.Retries < 0 {
		return fmt.Errorf("LLM_RETRIES must be >= 0")
	}

	if c.MaxHistoryItems <= 0 {
		return fmt.Errorf("MAX_HISTORY_ITEMS must be > 0")
	}
	if c.MaxMessageLength <= 0 {
		return fmt.Errorf("MAX_MESSAGE_LENGTH must be > 0")
	}
	return nil
}

// UsesAWS reports whether any configured component talks to AWS.
func (c *Config) UsesAWS() bool {
	return c.StateBackend == BackendDynamoDB || c.ParamSource == ParamSourceSSM
}

// getEnv treats blank values as unset.
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go durations ("8s") or whole seconds ("8").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
