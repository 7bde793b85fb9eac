package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "your-secret-key", "password",
}

const (
	ProviderHuggingFace = "huggingface"
	ProviderGemini      = "gemini"
	ProviderMock        = "mock"
)

type Config struct {
	Port        int    `env:"PORT" envDefault:"8000"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL,required"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	JWTSecretKey                string `env:"JWT_SECRET_KEY,required"`
	JWTAccessTokenExpireMinutes int    `env:"JWT_ACCESS_TOKEN_EXPIRE_MINUTES" envDefault:"60"`
	JWTRefreshTokenExpireDays   int    `env:"JWT_REFRESH_TOKEN_EXPIRE_DAYS" envDefault:"7"`

	SessionTTLSeconds     int `env:"REDIS_TTL_SESSION" envDefault:"86400"`
	InteractionTTLSeconds int `env:"REDIS_TTL_INTERACTION" envDefault:"1800"`

	RateLimitRequests      int `env:"RATE_LIMIT_REQUESTS" envDefault:"100"`
	RateLimitPeriodSeconds int `env:"RATE_LIMIT_PERIOD" envDefault:"3600"`

	LLMProvider        string `env:"LLM_PROVIDER" envDefault:"huggingface"`
	HuggingFaceToken   string `env:"HUGGINGFACE_TOKEN"`
	HuggingFaceModel   string `env:"HUGGINGFACE_MODEL" envDefault:"mistralai/Mistral-7B-Instruct-v0.2"`
	HuggingFaceBaseURL string `env:"HUGGINGFACE_BASE_URL" envDefault:"https://router.huggingface.co/v1"`
	GeminiAPIKey       string `env:"GEMINI_API_KEY"`
	GeminiModel        string `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`
	MaxTokens          int    `env:"MAX_TOKENS" envDefault:"10000"`
	MaxMessageLength   int    `env:"MAX_MESSAGE_LENGTH" envDefault:"10000"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:8080"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.JWTAccessTokenExpireMinutes) * time.Minute
}

func (c *Config) RefreshTokenTTL() time.Duration {
	return time.Duration(c.JWTRefreshTokenExpireDays) * 24 * time.Hour
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}

func (c *Config) InteractionTTL() time.Duration {
	return time.Duration(c.InteractionTTLSeconds) * time.Second
}

func (c *Config) RateLimitPeriod() time.Duration {
	return time.Duration(c.RateLimitPeriodSeconds) * time.Second
}

func (c *Config) Validate() error {
	if c.JWTAccessTokenExpireMinutes <= 0 || c.JWTRefreshTokenExpireDays <= 0 {
		return errors.New("token lifetimes must be positive")
	}
	if c.SessionTTLSeconds <= 0 || c.InteractionTTLSeconds <= 0 {
		return errors.New("REDIS_TTL_SESSION and REDIS_TTL_INTERACTION must be positive")
	}
	if c.RateLimitRequests <= 0 || c.RateLimitPeriodSeconds <= 0 {
		return errors.New("RATE_LIMIT_REQUESTS and RATE_LIMIT_PERIOD must be positive")
	}

	switch c.LLMProvider {
	case ProviderHuggingFace:
		if c.HuggingFaceToken == "" {
			return errors.New("HUGGINGFACE_TOKEN is required when LLM_PROVIDER=huggingface")
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return errors.New("GEMINI_API_KEY is required when LLM_PROVIDER=gemini")
		}
	case ProviderMock:
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}

	if c.IsProduction() {
		if err := validateSecret("JWT_SECRET_KEY", c.JWTSecretKey); err != nil {
			return err
		}
		if c.LLMProvider == ProviderMock {
			log.Warn().Msg("LLM_PROVIDER=mock in production: responses are echoed")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

// Load reads an optional .env file and then parses the environment.
// Variables already present in the environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("failed to read .env file")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
