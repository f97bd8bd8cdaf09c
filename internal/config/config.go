package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/opsdeck/opsdeck/internal/infra/logger"
	"github.com/opsdeck/opsdeck/internal/infra/ratelimit"
	"github.com/opsdeck/opsdeck/internal/ports"
)

// Store drivers
const (
	DriverMemory   = "memory"
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
)

// Config represents application configuration
type Config struct {
	Server    ServerConfig    `json:"server"`
	Store     StoreConfig     `json:"store"`
	Redis     RedisConfig     `json:"redis"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Auth      AuthConfig      `json:"auth"`
	AI        AIConfig        `json:"ai"`
	Logging   LoggingConfig   `json:"logging"`
	Metrics   MetricsConfig   `json:"metrics"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Port            string        `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	Environment     string        `json:"environment"`
	AllowedOrigins  []string      `json:"allowed_origins"`
	StreamHeartbeat time.Duration `json:"stream_heartbeat"`
	// AllowDevIdentity trusts X-User-* headers. Never enable outside development.
	AllowDevIdentity bool `json:"allow_dev_identity"`
}

// StoreConfig selects and configures the document store
type StoreConfig struct {
	Driver          string        `json:"driver"`
	MongoURI        string        `json:"mongo_uri"`
	MongoDatabase   string        `json:"mongo_database"`
	MongoCollection string        `json:"mongo_collection"`
	PostgresHost    string        `json:"postgres_host"`
	PostgresPort    int           `json:"postgres_port"`
	PostgresUser    string        `json:"postgres_user"`
	PostgresPass    string        `json:"-"`
	PostgresDB      string        `json:"postgres_db"`
	PostgresSSLMode string        `json:"postgres_sslmode"`
	MaxConnections  int           `json:"max_connections"`
	ConnectTimeout  time.Duration `json:"connect_timeout"`
	ConnectRetry    time.Duration `json:"connect_retry"`
}

// RedisConfig represents Redis configuration
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr"`
	Password string `json:"-"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// RateLimitConfig limits quote generation per user
type RateLimitConfig struct {
	Enabled  bool          `json:"enabled"`
	Requests int           `json:"requests"`
	Window   time.Duration `json:"window"`
}

// AuthConfig configures bearer token validation
type AuthConfig struct {
	JWTSecret string        `json:"-"`
	TokenTTL  time.Duration `json:"token_ttl"`
	Issuer    string        `json:"issuer"`
}

// AIConfig represents AI service configuration
type AIConfig struct {
	Provider    string  `json:"provider"`
	APIKey      string  `json:"-"`
	BaseURL     string  `json:"base_url"`
	QuoteModel  string  `json:"quote_model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	TimeoutMs   int     `json:"timeout_ms"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"` // json, text
}

// MetricsConfig configures the Prometheus listener
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    string `json:"port"`
}

// Load loads configuration from environment variables and defaults
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port:             getEnv("SERVER_PORT", "8080"),
			ReadTimeout:      getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:     getEnvDuration("SERVER_WRITE_TIMEOUT", 0),
			IdleTimeout:      getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			Environment:      getEnv("ENVIRONMENT", "development"),
			AllowedOrigins:   getEnvSlice("CORS_ORIGINS", []string{"http://localhost:3000"}),
			StreamHeartbeat:  getEnvDuration("STREAM_HEARTBEAT", 15*time.Second),
			AllowDevIdentity: getEnvBool("ALLOW_DEV_IDENTITY", false),
		},
		Store: StoreConfig{
			Driver:          getEnv("STORE_DRIVER", DriverMemory),
			MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017/?replicaSet=rs0"),
			MongoDatabase:   getEnv("MONGO_DATABASE", "opsdeck"),
			MongoCollection: getEnv("MONGO_COLLECTION", "documents"),
			PostgresHost:    getEnv("DB_HOST", "localhost"),
			PostgresPort:    getEnvInt("DB_PORT", 5432),
			PostgresUser:    getEnv("DB_USER", "postgres"),
			PostgresPass:    getEnv("DB_PASSWORD", ""),
			PostgresDB:      getEnv("DB_NAME", "opsdeck"),
			PostgresSSLMode: getEnv("DB_SSLMODE", "disable"),
			MaxConnections:  getEnvInt("DB_MAX_CONNECTIONS", 20),
			ConnectTimeout:  getEnvDuration("STORE_CONNECT_TIMEOUT", 10*time.Second),
			ConnectRetry:    getEnvDuration("STORE_CONNECT_RETRY", time.Minute),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 10),
		},
		RateLimit: RateLimitConfig{
			Enabled:  getEnvBool("RATE_LIMIT_ENABLED", false),
			Requests: getEnvInt("RATE_LIMIT_REQUESTS", 10),
			Window:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			TokenTTL:  getEnvDuration("JWT_EXPIRATION", 24*time.Hour),
			Issuer:    getEnv("JWT_ISSUER", "opsdeck"),
		},
		AI: AIConfig{
			Provider:    getEnv("AI_PROVIDER", "mock"),
			APIKey:      getEnv("AI_API_KEY", getEnv("OPENAI_API_KEY", "")),
			BaseURL:     getEnv("AI_BASE_URL", ""),
			QuoteModel:  getEnv("AI_QUOTE_MODEL", "gpt-4o-mini"),
			MaxTokens:   getEnvInt("AI_MAX_TOKENS", 600),
			Temperature: getEnvFloat("AI_TEMPERATURE", 0.7),
			TimeoutMs:   getEnvInt("AI_TIMEOUT_MS", 30000),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Port:    getEnv("METRICS_PORT", "9090"),
		},
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverMongo:
		if c.Store.MongoURI == "" {
			return fmt.Errorf("mongo URI is required for the mongo store")
		}
	case DriverPostgres:
		if c.Store.PostgresHost == "" || c.Store.PostgresUser == "" || c.Store.PostgresDB == "" {
			return fmt.Errorf("database host, user and name are required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store driver: %s", c.Store.Driver)
	}

	switch c.AI.Provider {
	case "mock":
	case "openai":
		if c.AI.APIKey == "" {
			return fmt.Errorf("AI API key is required for provider: %s", c.AI.Provider)
		}
	default:
		return fmt.Errorf("unknown AI provider: %s", c.AI.Provider)
	}

	if c.RateLimit.Enabled {
		if !c.Redis.Enabled {
			return fmt.Errorf("rate limiting requires redis")
		}
		if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate limit requests and window must be positive")
		}
	}

	if c.IsProduction() {
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("JWT secret must be set in production")
		}
		if c.Server.AllowDevIdentity {
			return fmt.Errorf("development identity headers cannot be enabled in production")
		}
	}

	return nil
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// PostgresDSN returns the lib/pq connection string
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Store.PostgresHost,
		c.Store.PostgresPort,
		c.Store.PostgresUser,
		c.Store.PostgresPass,
		c.Store.PostgresDB,
		c.Store.PostgresSSLMode,
	)
}

// ToAIConfig converts to ports.AIConfig
func (c *Config) ToAIConfig() ports.AIConfig {
	return ports.AIConfig{
		Provider:    c.AI.Provider,
		APIKey:      c.AI.APIKey,
		BaseURL:     c.AI.BaseURL,
		QuoteModel:  c.AI.QuoteModel,
		MaxTokens:   c.AI.MaxTokens,
		Temperature: c.AI.Temperature,
		TimeoutMs:   c.AI.TimeoutMs,
	}
}

// ToRateLimitConfig converts to ratelimit.Config
func (c *Config) ToRateLimitConfig() ratelimit.Config {
	return ratelimit.Config{
		Enabled: c.RateLimit.Enabled,
		Limit:   c.RateLimit.Requests,
		Window:  c.RateLimit.Window,
		Prefix:  "opsdeck:quotes",
	}
}

// ToLoggerConfig converts to logger.Config
func (c *Config) ToLoggerConfig(service string) logger.Config {
	return logger.Config{
		Level:       c.Logging.Level,
		Format:      c.Logging.Format,
		ServiceName: service,
	}
}

// Helper functions for environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
