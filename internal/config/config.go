// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends accepted by DB_BACKEND.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendBolt   = "bolt"
)

// Chat providers accepted by PROVIDER.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds all server configuration.
type Config struct {
	Port                string
	LogLevel            string
	CORSOrigins         []string
	GRPCHealthPort      string
	HealthProbeInterval time.Duration
	Store               StoreConfig
	Provider            ProviderConfig
	ConversationLog     ConversationLogConfig
}

// StoreConfig selects and parameterises the conversation store.
type StoreConfig struct {
	Backend       string
	Path          string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// ProviderConfig selects the chat-completion provider.
type ProviderConfig struct {
	Name            string
	Model           string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	AnthropicAPIKey string
}

// APIKey returns the credential of the selected provider.
func (p ProviderConfig) APIKey() string {
	if p.Name == ProviderAnthropic {
		return p.AnthropicAPIKey
	}
	return p.OpenAIAPIKey
}

// ConversationLogConfig controls NDJSON transcript logging.
type ConversationLogConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:                getEnv("PORT", "3000"),
		LogLevel:            strings.ToLower(getEnv("LOG_LEVEL", "info")),
		CORSOrigins:         splitList(getEnv("CORS_ORIGINS", "*")),
		GRPCHealthPort:      getEnv("GRPC_HEALTH_PORT", ""),
		HealthProbeInterval: getEnvDuration("HEALTH_PROBE_INTERVAL", 10*time.Second),
		Store: StoreConfig{
			Backend:       strings.ToLower(getEnv("DB_BACKEND", BackendSQLite)),
			Path:          getEnv("DB_PATH", "./data/cgpt.db"),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
		},
		Provider: ProviderConfig{
			Name:            strings.ToLower(getEnv("PROVIDER", ProviderOpenAI)),
			Model:           getEnv("MODEL", ""),
			OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
			AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		},
		ConversationLog: ConversationLogConfig{
			Enabled:   getEnvBool("CONVERSATION_LOG_ENABLED", false),
			Dir:       getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			QueueSize: queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if err := c.Provider.Validate(); err != nil {
		return err
	}
	if c.HealthProbeInterval <= 0 {
		return fmt.Errorf("HEALTH_PROBE_INTERVAL must be > 0")
	}
	if c.ConversationLog.Enabled && c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// Validate checks the store selection.
func (s StoreConfig) Validate() error {
	switch s.Backend {
	case BackendSQLite, BackendBolt:
		if s.Path == "" {
			return fmt.Errorf("DB_PATH cannot be empty for %s backend", s.Backend)
		}
	case BackendRedis:
		if s.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR cannot be empty for redis backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown DB_BACKEND %q", s.Backend)
	}
	return nil
}

// Validate checks the provider selection and its credential.
func (p ProviderConfig) Validate() error {
	switch p.Name {
	case ProviderOpenAI:
		if p.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when PROVIDER=openai")
		}
	case ProviderAnthropic:
		if p.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when PROVIDER=anthropic")
		}
	default:
		return fmt.Errorf("unknown PROVIDER %q", p.Name)
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	return ParseLevel(c.LogLevel)
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
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

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
