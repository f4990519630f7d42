package common

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/studynotes/constants"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	LLM      LLMConfig
	Inbox    InboxConfig
	Log      LogConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr string
	GRPCAddr string
}

// LLMConfig holds extraction provider configuration.
// API keys are not captured here; see Config.APIKey.
type LLMConfig struct {
	Provider      constants.Provider
	GeminiModel   string
	GeminiBaseURL string
	OpenAIModel   string
	OpenAIBaseURL string
	Temperature   float32
	Timeout       time.Duration
	FallbackDelay time.Duration
}

// InboxConfig holds watch-folder and worker pool configuration
type InboxConfig struct {
	Dir            string
	Include        []string
	Debounce       time.Duration
	InitialScan    bool
	Workers        int
	QueueSize      int
	ProcessTimeout time.Duration
	HEICConverter  string // heif-convert | magick | sips; empty sends HEIC as-is
}

// LogConfig holds logger configuration
type LogConfig struct {
	Format string // json | text
	Level  string // debug | info | warn | error
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", "file:studynotes.db?_pragma=busy_timeout(5000)"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 1),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
			GRPCAddr: getEnv("GRPC_ADDR", ":9090"),
		},
		LLM: LLMConfig{
			Provider:      constants.Provider(getEnv("LLM_PROVIDER", string(constants.ProviderGemini))),
			GeminiModel:   getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
			GeminiBaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1"),
			OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Temperature:   getEnvAsFloat32("LLM_TEMPERATURE", 0.0),
			Timeout:       getEnvAsDuration("LLM_TIMEOUT", 45*time.Second),
			FallbackDelay: getEnvAsDuration("FALLBACK_DELAY", 0),
		},
		Inbox: InboxConfig{
			Dir:            getEnv("INBOX_DIR", "./inbox"),
			Include:        getEnvAsList("INBOX_INCLUDE", ";", constants.DefaultIncludeGlobs), // globs use commas inside braces
			Debounce:       getEnvAsDuration("WATCH_DEBOUNCE", 500*time.Millisecond),
			InitialScan:    getEnvAsBool("WATCH_INITIAL_SCAN", true),
			Workers:        getEnvAsInt("WORKERS", 2),
			QueueSize:      getEnvAsInt("QUEUE_SIZE", 64),
			ProcessTimeout: getEnvAsDuration("PROCESS_TIMEOUT", 2*time.Minute),
			HEICConverter:  getEnv("HEIC_CONVERTER", ""),
		},
		Log: LogConfig{
			Format: getEnv("LOG_FORMAT", "text"),
			Level:  getEnv("LOG_LEVEL", "info"),
		},
	}
}

// APIKey returns the credential for the configured provider, read from the
// environment at call time so a run always reflects the current configuration.
func (c *Config) APIKey() string {
	switch c.LLM.Provider {
	case constants.ProviderOpenAI:
		return strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	default:
		return strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvAsList splits value on sep, dropping blanks.
func getEnvAsList(key, sep string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, p := range strings.Split(value, sep) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// Validate validates the loaded configuration. A missing API key is valid and
// selects the fallback generator.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if _, ok := constants.ParseProvider(string(c.LLM.Provider)); !ok {
		return NewAppError("CONFIG_ERROR", "unknown LLM_PROVIDER "+strconv.Quote(string(c.LLM.Provider)), ErrInvalidInput)
	}
	if c.LLM.Timeout <= 0 {
		return NewAppError("CONFIG_ERROR", "LLM_TIMEOUT must be positive", ErrInvalidInput)
	}
	if c.Inbox.Workers <= 0 {
		return NewAppError("CONFIG_ERROR", "WORKERS must be positive", ErrInvalidInput)
	}
	return nil
}
