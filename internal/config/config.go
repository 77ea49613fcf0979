// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Gate strategies.
const (
	GateLexical = "lexical"
	GateModel   = "model"
)

// LLM providers.
const (
	ProviderOpenAI = "openai"
	ProviderGenAI  = "genai"
	ProviderMock   = "mock"
)

// DefaultBaseURL is Gemini's OpenAI-compatible endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// DefaultModel is the model used for both answering and classification.
const DefaultModel = "gemini-2.0-flash"

// Config holds all application configuration.
type Config struct {
	Port               string
	FrontendURL        string
	DBPath             string
	SessionTTL         time.Duration
	GateStrategy       string
	CurriculumFile     string
	MaxRequestBodySize int64
	LLM                LLMConfig
	ConversationLog    ConversationLogConfig
	RateLimit          RateLimitConfig
}

// LLMConfig describes the remote model provider.
type LLMConfig struct {
	Provider string
	APIKey   string // may be empty; the provider rejects the first call
	BaseURL  string
	Model    string
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
	MaxOpenFiles  int
}

// RateLimitConfig controls the optional per-user submission limit.
// RequestsPerMinute of zero disables limiting.
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

// Enabled reports whether submissions are throttled.
func (r RateLimitConfig) Enabled() bool {
	return r.RequestsPerMinute > 0
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		FrontendURL:        getEnv("FRONTEND_URL", ""),
		DBPath:             getEnv("DB_PATH", "./data/unichat.db"),
		SessionTTL:         getEnvDuration("SESSION_TTL", 60*time.Minute),
		GateStrategy:       strings.ToLower(getEnv("GATE_STRATEGY", GateLexical)),
		CurriculumFile:     getEnv("CURRICULUM_FILE", ""),
		MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 1<<20)),
		LLM: LLMConfig{
			Provider: strings.ToLower(getEnv("LLM_PROVIDER", ProviderOpenAI)),
			APIKey:   getEnv("GEMINI_API_KEY", ""),
			BaseURL:  getEnv("LLM_BASE_URL", DefaultBaseURL),
			Model:    getEnv("LLM_MODEL", DefaultModel),
		},
		ConversationLog: ConversationLogConfig{
			Enabled:       getEnvBool("CONVERSATION_LOG_ENABLED", false),
			Dir:           getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			GlobalEnabled: getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("CONVERSATION_LOG_GLOBAL_PATH", "./data/logs/conversations/all.ndjson"),
			QueueSize:     queueSize,
			MaxOpenFiles:  getEnvInt("CONVERSATION_LOG_MAX_OPEN_FILES", 64),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 0),
			Burst:             getEnvInt("RATE_LIMIT_BURST", 5),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
// A missing GEMINI_API_KEY is deliberately not an error here.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	switch c.GateStrategy {
	case GateLexical, GateModel:
	default:
		return fmt.Errorf("GATE_STRATEGY %q not supported (want %s or %s)", c.GateStrategy, GateLexical, GateModel)
	}
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderGenAI, ProviderMock:
	default:
		return fmt.Errorf("LLM_PROVIDER %q not supported", c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("LLM_MODEL cannot be empty")
	}
	if c.LLM.Provider == ProviderOpenAI && c.LLM.BaseURL == "" {
		return fmt.Errorf("LLM_BASE_URL cannot be empty for the openai provider")
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0")
	}
	if c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalPath == "" {
		return fmt.Errorf("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	if c.RateLimit.RequestsPerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be >= 0")
	}
	if c.RateLimit.Enabled() && c.RateLimit.Burst <= 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be > 0 when rate limiting is enabled")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
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
