package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	Auth       AuthConfig
	Mongo      MongoConfig
	Redis      RedisConfig
	Provider   ProviderConfig
	Ledger     LedgerConfig
	Transcribe TranscribeConfig
	Workers    int `env:"AUDIT_WORKERS, default=8"`
}

type AuthConfig struct {
	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"TOKEN_TTL, default=24h"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=studio"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR, default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,   default=0"`
}

type ProviderConfig struct {
	BaseURL      string        `env:"PROVIDER_BASE_URL, default=https://generativelanguage.googleapis.com"`
	APIKey       string        `env:"PROVIDER_API_KEY"`
	Timeout      time.Duration `env:"PROVIDER_TIMEOUT, default=120s"`
	TextModel    string        `env:"PROVIDER_TEXT_MODEL,    default=gemini-2.5-flash"`
	PremiumModel string        `env:"PROVIDER_PREMIUM_MODEL, default=gemini-2.5-pro"`
	ImageModel   string        `env:"PROVIDER_IMAGE_MODEL,   default=gemini-2.5-flash-image"`
	AudioModel   string        `env:"PROVIDER_AUDIO_MODEL,   default=gemini-2.5-flash"`
}

type LedgerConfig struct {
	// InitialGrant is the token balance given to newly registered accounts.
	InitialGrant int64 `env:"LEDGER_INITIAL_GRANT, default=0"`
}

type TranscribeConfig struct {
	PollInterval time.Duration `env:"TRANSCRIBE_POLL_INTERVAL, default=2s"`
	PollAttempts int           `env:"TRANSCRIBE_POLL_ATTEMPTS, default=30"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}
