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
	Cache    CacheConfig
	Queue    QueueConfig
	Logger   LoggerConfig
	Auth     AuthConfig
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

// CacheConfig sets the TTLs for cached projections. The TTL bounds
// maximum staleness even when an invalidation is skipped or fails.
type CacheConfig struct {
	EntityTTLSeconds       int
	ListTTLSeconds         int
	InteractionsTTLSeconds int
}

// QueueConfig controls the maintenance task queue and its batch consumer.
type QueueConfig struct {
	BatchSize            int
	InactiveDays         int
	ArchiveAfterDays     int
	SystemActorID        int64
	InactiveCloseComment string
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

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "helpdesk"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
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
		Cache: CacheConfig{
			EntityTTLSeconds:       getEnvAsInt("CACHE_ENTITY_TTL_SECONDS", 300),
			ListTTLSeconds:         getEnvAsInt("CACHE_LIST_TTL_SECONDS", 60),
			InteractionsTTLSeconds: getEnvAsInt("CACHE_INTERACTIONS_TTL_SECONDS", 120),
		},
		Queue: QueueConfig{
			BatchSize:            getEnvAsInt("QUEUE_BATCH_SIZE", 10),
			InactiveDays:         getEnvAsInt("QUEUE_INACTIVE_DAYS", 7),
			ArchiveAfterDays:     getEnvAsInt("QUEUE_ARCHIVE_AFTER_DAYS", 90),
			SystemActorID:        int64(getEnvAsInt("QUEUE_SYSTEM_ACTOR_ID", 1)),
			InactiveCloseComment: getEnv("QUEUE_INACTIVE_CLOSE_COMMENT", "closed due to inactivity"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
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

// EntityTTL returns the TTL for single-entity cache keys.
func (c CacheConfig) EntityTTL() time.Duration {
	return time.Duration(c.EntityTTLSeconds) * time.Second
}

// ListTTL returns the TTL for list-query cache keys.
func (c CacheConfig) ListTTL() time.Duration {
	return time.Duration(c.ListTTLSeconds) * time.Second
}

// InteractionsTTL returns the TTL for per-ticket interaction lists.
func (c CacheConfig) InteractionsTTL() time.Duration {
	return time.Duration(c.InteractionsTTLSeconds) * time.Second
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
