package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	pkgRetry "github.com/malykhin/ragchat-backend/internal/pkg/retry"
)

// Config holds the application configuration
type Config struct {
	// Server configuration
	ServerAddr string `env:"SERVER_ADDR,notEmpty"`

	// Database configuration
	DatabaseURL         string        `env:"DATABASE_URL,notEmpty"`
	DBMaxConns          int           `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns          int           `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBMaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	DBHealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"1m"`

	// External service configurations
	LLMCfg    LLMConfig    `envPrefix:"LLM_"`
	EmbedCfg  EmbedConfig  `envPrefix:"EMBED_"`
	QdrantCfg QdrantConfig `envPrefix:"QDRANT_"`

	// Runtime settings cache
	SettingsCacheTTL time.Duration `env:"SETTINGS_CACHE_TTL" envDefault:"30s"`

	// Background maintenance
	ReapInterval time.Duration `env:"REAP_INTERVAL" envDefault:"10m"`

	// Logging configuration
	LogLevel string `env:"LOG_LEVEL,notEmpty"`

	// Mock configuration
	EnableMocks bool `env:"ENABLE_MOCKS" envDefault:"false"`

	// Telegram bot configuration (used by cmd/telegram-bot only)
	TelegramCfg TelegramConfig `envPrefix:"TELEGRAM_"`

	// Environment (set from flag, not from env var)
	Environment string
}

// LLMConfig configures the OpenAI-compatible completion endpoint (vLLM).
type LLMConfig struct {
	BaseURL string `env:"BASE_URL,notEmpty"`
	APIKey  string `env:"API_KEY"`
	Model   string `env:"MODEL,notEmpty"`

	// RewriteModel is a non-reasoning model alias used for calls that disable
	// extended reasoning (query contextualization, title generation). Falls
	// back to Model when unset.
	RewriteModel string `env:"REWRITE_MODEL"`

	Temperature float64 `env:"TEMPERATURE" envDefault:"0.7"`
	TopP        float64 `env:"TOP_P" envDefault:"1.0"`
	MaxTokens   int     `env:"MAX_TOKENS" envDefault:"2048"`

	Retry pkgRetry.RetryConfig `envPrefix:"RETRY_"`
}

// EmbedConfig configures the OpenAI-compatible embeddings endpoint.
type EmbedConfig struct {
	HTTPClientConfig
	Model      string               `env:"MODEL,notEmpty"`
	Dimensions int                  `env:"DIMENSIONS" envDefault:"1536"`
	Retry      pkgRetry.RetryConfig `envPrefix:"RETRY_"`
}

// QdrantConfig configures the vector store gRPC connection.
type QdrantConfig struct {
	Host   string `env:"HOST" envDefault:"localhost"`
	Port   int    `env:"PORT" envDefault:"6334"`
	UseTLS bool   `env:"USE_TLS" envDefault:"false"`
	APIKey string `env:"API_KEY"`
}

func (q QdrantConfig) Address() string {
	return fmt.Sprintf("%s:%d", q.Host, q.Port)
}

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	BotToken        string `env:"BOT_TOKEN"`
	UpdateTimeout   int    `env:"UPDATE_TIMEOUT" envDefault:"30"`
	ShutdownTimeout int    `env:"SHUTDOWN_TIMEOUT" envDefault:"10"` // seconds
}

type HTTPClientConfig struct {
	RequestTimeout        time.Duration `env:"TIMEOUT" envDefault:"30s"`
	ConnTimeout           time.Duration `env:"CONN_TIMEOUT" envDefault:"10s"`
	KeepAlive             time.Duration `env:"KEEP_ALIVE" envDefault:"90s"`
	IdleConnTimeout       time.Duration `env:"IDLE_CONN_TIMEOUT" envDefault:"90s"`
	ResponseHeaderTimeout time.Duration `env:"RESPONSE_HEADER_TIMEOUT" envDefault:"30s"`
	Token                 string        `env:"TOKEN"`
	Url                   string        `env:"SERVICE_URL,notEmpty"`
}

func LoadConfig() (*Config, error) {
	envFlag := flag.String("env", "local", "Environment to run (local, prod, or custom)")
	flag.Parse()

	envFile := getEnvFile(*envFlag)
	// Try to load env file, but don't fail if it's missing.
	// In containerized/prod environments variables are usually set externally.
	if err := godotenv.Load(envFile); err != nil {
		fmt.Printf("Warning: could not load %s file (this is ok if env vars are set externally): %v\n", envFile, err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	cfg.Environment = *envFlag

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.DBMaxConns < 1 || cfg.DBMaxConns > 200 {
		return fmt.Errorf("DB_MAX_CONNS must be between 1 and 200, got %d", cfg.DBMaxConns)
	}

	if cfg.DBMinConns < 0 || cfg.DBMinConns > cfg.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS(%d), got %d", cfg.DBMaxConns, cfg.DBMinConns)
	}

	if cfg.LLMCfg.Temperature < 0 || cfg.LLMCfg.Temperature > 2 {
		return fmt.Errorf("LLM_TEMPERATURE must be between 0 and 2, got %f", cfg.LLMCfg.Temperature)
	}

	if cfg.LLMCfg.MaxTokens < 1 {
		return fmt.Errorf("LLM_MAX_TOKENS must be positive, got %d", cfg.LLMCfg.MaxTokens)
	}

	if cfg.EmbedCfg.Dimensions < 1 {
		return fmt.Errorf("EMBED_DIMENSIONS must be positive, got %d", cfg.EmbedCfg.Dimensions)
	}

	return nil
}

func getEnvFile(environment string) string {
	switch environment {
	case "prod", "production":
		return ".env.prod"
	case "local", "dev", "development":
		return ".env.local"
	default:
		return fmt.Sprintf(".env.%s", environment)
	}
}
