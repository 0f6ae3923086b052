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
	Auth     AuthConfig
	Outbox   OutboxConfig
	Sweep    SweepConfig
	Notify   NotifyConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	Timezone              string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// OutboxConfig tunes outbox dispatch behavior.
type OutboxConfig struct {
	ClaimLeaseSeconds     int
	MaxAttempts           int
	ImmediateRetryDelayMs int
	SweepIntervalSeconds  int
	SweepBatchSize        int
}

// SweepConfig tunes the reminder sweep.
type SweepConfig struct {
	Enabled         bool
	IntervalMinutes int
	BatchSize       int
}

// NotifyConfig holds sender endpoints for the notification stubs.
type NotifyConfig struct {
	EmailFrom      string
	ChatWebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-engine"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			Timezone:              getEnv("APP_TIMEZONE", "Asia/Kolkata"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Outbox: OutboxConfig{
			ClaimLeaseSeconds:     getEnvAsInt("OUTBOX_CLAIM_LEASE_SECONDS", 120),
			MaxAttempts:           getEnvAsInt("OUTBOX_MAX_ATTEMPTS", 8),
			ImmediateRetryDelayMs: getEnvAsInt("OUTBOX_IMMEDIATE_RETRY_DELAY_MS", 500),
			SweepIntervalSeconds:  getEnvAsInt("OUTBOX_SWEEP_INTERVAL_SECONDS", 15),
			SweepBatchSize:        getEnvAsInt("OUTBOX_SWEEP_BATCH_SIZE", 25),
		},
		Sweep: SweepConfig{
			Enabled:         getEnvAsBool("REMINDER_SWEEP_ENABLED", true),
			IntervalMinutes: getEnvAsInt("REMINDER_SWEEP_INTERVAL_MINUTES", 60),
			BatchSize:       getEnvAsInt("REMINDER_SWEEP_BATCH_SIZE", 200),
		},
		Notify: NotifyConfig{
			EmailFrom:      getEnv("NOTIFY_EMAIL_FROM", "support@campus.example.com"),
			ChatWebhookURL: getEnv("NOTIFY_CHAT_WEBHOOK_URL", ""),
		},
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

// Location resolves the configured timezone, falling back to UTC.
func (a AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ClaimLease returns the outbox claim lease duration.
func (o OutboxConfig) ClaimLease() time.Duration {
	return time.Duration(o.ClaimLeaseSeconds) * time.Second
}

// ImmediateRetryDelay returns the delay before the single post-commit re-read.
func (o OutboxConfig) ImmediateRetryDelay() time.Duration {
	return time.Duration(o.ImmediateRetryDelayMs) * time.Millisecond
}

// SweepInterval returns the outbox sweep period.
func (o OutboxConfig) SweepInterval() time.Duration {
	return time.Duration(o.SweepIntervalSeconds) * time.Second
}

// Interval returns the reminder sweep period.
func (s SweepConfig) Interval() time.Duration {
	return time.Duration(s.IntervalMinutes) * time.Minute
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
