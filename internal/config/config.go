package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Gateway  GatewayConfig
	Workflow WorkflowConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values. An empty DSN selects the
// in-memory store.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr disables the
// shared tenant config cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level       string
	Format      string
	Development bool
	Service     string
}

// GatewayConfig configures both directions of the platform gateway: the
// secret used to verify inbound interaction tokens and the REST endpoint for
// outbound calls. An empty BaseURL selects the in-memory platform.
type GatewayConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
	BaseURL   string
	Token     string
	Timeout   time.Duration
}

// WorkflowConfig holds the ticket lifecycle timings.
type WorkflowConfig struct {
	DeleteGrace            time.Duration
	AutoCloseDeleteDelay   time.Duration
	TranscriptHistoryLimit int
	TranscriptDir          string
	CleanupInterval        time.Duration
	MaxTimeoutHours        int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticketbot"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
			CacheTTL: getEnvAsDuration("REDIS_CONFIG_CACHE_TTL", 10*time.Minute),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Gateway: GatewayConfig{
			JWTSecret: getEnv("GATEWAY_JWT_SECRET", "dev-secret"),
			TokenTTL:  getEnvAsDuration("GATEWAY_TOKEN_TTL", 5*time.Minute),
			BaseURL:   os.Getenv("GATEWAY_BASE_URL"),
			Token:     os.Getenv("GATEWAY_TOKEN"),
			Timeout:   getEnvAsDuration("GATEWAY_TIMEOUT", 10*time.Second),
		},
		Workflow: WorkflowConfig{
			DeleteGrace:            getEnvAsDuration("TICKET_DELETE_GRACE", 10*time.Second),
			AutoCloseDeleteDelay:   getEnvAsDuration("TICKET_AUTOCLOSE_DELETE_DELAY", 30*time.Second),
			TranscriptHistoryLimit: getEnvAsInt("TICKET_TRANSCRIPT_HISTORY_LIMIT", 100),
			TranscriptDir:          getEnv("TICKET_TRANSCRIPT_DIR", "transcripts"),
			CleanupInterval:        getEnvAsDuration("TICKET_CLEANUP_INTERVAL", 6*time.Hour),
			MaxTimeoutHours:        getEnvAsInt("TICKET_MAX_TIMEOUT_HOURS", 720),
		},
	}

	cfg.Logger.Development = cfg.App.Env == "development"
	cfg.Logger.Service = cfg.App.Name

	if cfg.Workflow.TranscriptHistoryLimit <= 0 {
		return nil, fmt.Errorf("invalid TICKET_TRANSCRIPT_HISTORY_LIMIT: %d", cfg.Workflow.TranscriptHistoryLimit)
	}
	if cfg.Workflow.MaxTimeoutHours <= 0 {
		return nil, fmt.Errorf("invalid TICKET_MAX_TIMEOUT_HOURS: %d", cfg.Workflow.MaxTimeoutHours)
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
