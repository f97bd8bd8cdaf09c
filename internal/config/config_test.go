package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, time.Duration(0), cfg.Server.WriteTimeout)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, "mock", cfg.AI.Provider)
	assert.False(t, cfg.Server.AllowDevIdentity)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("CORS_ORIGINS", "https://app.msp.com, http://localhost:3000,")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("AI_TEMPERATURE", "0.2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, []string{"https://app.msp.com", "http://localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, 0.2, cfg.AI.Temperature)
	assert.Contains(t, cfg.PostgresDSN(), "port=6543")
}

func TestLoad_IgnoresMalformedValues(t *testing.T) {
	t.Setenv("DB_PORT", "not-a-port")
	t.Setenv("STREAM_HEARTBEAT", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5432, cfg.Store.PostgresPort)
	assert.Equal(t, 15*time.Second, cfg.Server.StreamHeartbeat)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"unknown driver", func(c *Config) { c.Store.Driver = "sqlite" }, "unknown store driver: sqlite"},
		{"mongo without uri", func(c *Config) { c.Store.Driver = DriverMongo; c.Store.MongoURI = "" }, "mongo URI is required"},
		{"openai without key", func(c *Config) { c.AI.Provider = "openai"; c.AI.APIKey = "" }, "AI API key is required"},
		{"unknown provider", func(c *Config) { c.AI.Provider = "zai" }, "unknown AI provider"},
		{"rate limit without redis", func(c *Config) { c.RateLimit.Enabled = true }, "rate limiting requires redis"},
		{"production without secret", func(c *Config) { c.Server.Environment = "production" }, "JWT secret must be set"},
		{"production with dev identity", func(c *Config) {
			c.Server.Environment = "production"
			c.Auth.JWTSecret = "s3cret"
			c.Server.AllowDevIdentity = true
		}, "development identity headers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConversions(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	ai := cfg.ToAIConfig()
	assert.Equal(t, "gpt-4o-mini", ai.QuoteModel)

	rl := cfg.ToRateLimitConfig()
	assert.Equal(t, 10, rl.Limit)
	assert.Equal(t, "opsdeck:quotes", rl.Prefix)

	assert.Equal(t, "opsdeck", cfg.ToLoggerConfig("opsdeck").ServiceName)
}
