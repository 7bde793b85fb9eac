package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigMethods(t *testing.T) {
	t.Run("Addr returns formatted port", func(t *testing.T) {
		cfg := &Config{Port: 3000}
		assert.Equal(t, ":3000", cfg.Addr())
	})

	t.Run("token TTLs convert to durations", func(t *testing.T) {
		cfg := &Config{JWTAccessTokenExpireMinutes: 60, JWTRefreshTokenExpireDays: 7}
		assert.Equal(t, time.Hour, cfg.AccessTokenTTL())
		assert.Equal(t, 7*24*time.Hour, cfg.RefreshTokenTTL())
	})

	t.Run("cache TTLs convert seconds to duration", func(t *testing.T) {
		cfg := &Config{SessionTTLSeconds: 86400, InteractionTTLSeconds: 1800, RateLimitPeriodSeconds: 3600}
		assert.Equal(t, 24*time.Hour, cfg.SessionTTL())
		assert.Equal(t, 30*time.Minute, cfg.InteractionTTL())
		assert.Equal(t, time.Hour, cfg.RateLimitPeriod())
	})

	t.Run("IsProduction is case insensitive", func(t *testing.T) {
		assert.True(t, (&Config{Environment: "Production"}).IsProduction())
		assert.False(t, (&Config{Environment: "development"}).IsProduction())
	})
}

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("JWT_SECRET_KEY", "test-secret")
}

func TestLoad(t *testing.T) {
	t.Run("loads config with defaults", func(t *testing.T) {
		setRequired(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 8000, cfg.Port)
		assert.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
		assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
		assert.Equal(t, 60, cfg.JWTAccessTokenExpireMinutes)
		assert.Equal(t, 7, cfg.JWTRefreshTokenExpireDays)
		assert.Equal(t, 86400, cfg.SessionTTLSeconds)
		assert.Equal(t, 1800, cfg.InteractionTTLSeconds)
		assert.Equal(t, 100, cfg.RateLimitRequests)
		assert.Equal(t, 3600, cfg.RateLimitPeriodSeconds)
		assert.Equal(t, 10000, cfg.MaxMessageLength)
		assert.Equal(t, ProviderHuggingFace, cfg.LLMProvider)
		assert.Equal(t, []string{"http://localhost:3000", "http://localhost:8080"}, cfg.CORSOrigins)
		assert.Equal(t, "info", cfg.LogLevel)
	})

	t.Run("loads custom values", func(t *testing.T) {
		setRequired(t)
		t.Setenv("PORT", "3000")
		t.Setenv("REDIS_TTL_INTERACTION", "60")
		t.Setenv("RATE_LIMIT_REQUESTS", "5")
		t.Setenv("LLM_PROVIDER", "gemini")
		t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Port)
		assert.Equal(t, 60, cfg.InteractionTTLSeconds)
		assert.Equal(t, 5, cfg.RateLimitRequests)
		assert.Equal(t, ProviderGemini, cfg.LLMProvider)
		assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	})

	t.Run("fails without required variables", func(t *testing.T) {
		for _, name := range []string{"DATABASE_URL", "REDIS_URL", "JWT_SECRET_KEY"} {
			setRequired(t)
			t.Setenv(name, "")
			os.Unsetenv(name)

			_, err := Load()
			assert.Error(t, err, name)
		}
	})
}

func validConfig() *Config {
	return &Config{
		Environment:                 "development",
		RedisURL:                    "redis://localhost:6379",
		JWTSecretKey:                "short",
		JWTAccessTokenExpireMinutes: 60,
		JWTRefreshTokenExpireDays:   7,
		SessionTTLSeconds:           86400,
		InteractionTTLSeconds:       1800,
		RateLimitRequests:           100,
		RateLimitPeriodSeconds:      3600,
		LLMProvider:                 ProviderMock,
	}
}

func TestValidate(t *testing.T) {
	t.Run("accepts development config with short secret", func(t *testing.T) {
		assert.NoError(t, validConfig().Validate())
	})

	t.Run("rejects short secret in production", func(t *testing.T) {
		cfg := validConfig()
		cfg.Environment = "production"
		assert.Error(t, cfg.Validate())

		cfg.JWTSecretKey = strings.Repeat("x", 32)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("requires provider credentials", func(t *testing.T) {
		cfg := validConfig()
		cfg.LLMProvider = ProviderHuggingFace
		assert.Error(t, cfg.Validate())
		cfg.HuggingFaceToken = "hf_token"
		assert.NoError(t, cfg.Validate())

		cfg.LLMProvider = ProviderGemini
		assert.Error(t, cfg.Validate())
		cfg.GeminiAPIKey = "key"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("rejects unknown provider", func(t *testing.T) {
		cfg := validConfig()
		cfg.LLMProvider = "openai"
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects non-positive limits", func(t *testing.T) {
		cfg := validConfig()
		cfg.RateLimitRequests = 0
		assert.Error(t, cfg.Validate())
	})
}
