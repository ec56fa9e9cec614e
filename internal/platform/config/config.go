// Package config centralizes the environment variables consumed by the API
// and worker binaries.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config aggregates every parameter needed by api and worker.
type Config struct {
	HTTPAddress string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	QueueKey          string
	CounterKeyPrefix  string
	BroadcastChannels string

	SessionTTLMinutes int
	IPHashSalt        string

	RateLimitEnabled       bool
	RateLimitMaxActions    int
	RateLimitWindowSeconds int
	RateLimitKeyPrefix     string

	RecomputeMaxAttempts int

	AutoMigrate bool

	WorkerMetricsAddress string
}

func Load() (Config, error) {
	// .env is a convenience for local runs; a missing file is not an error.
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddress:            getEnv("HTTP_ADDRESS", ":8080"),
		PostgresHost:           getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:           getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:           getEnv("POSTGRES_USER", "votemap"),
		PostgresPassword:       getEnv("POSTGRES_PASSWORD", "votemap"),
		PostgresDB:             getEnv("POSTGRES_DB", "votemap"),
		PostgresSSLMode:        getEnv("POSTGRES_SSLMODE", "disable"),
		RedisAddr:              getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		QueueKey:               getEnv("REDIS_QUEUE_KEY", "queue:recompute"),
		CounterKeyPrefix:       getEnv("REDIS_COUNTER_PREFIX", "counter"),
		BroadcastChannels:      getEnv("REDIS_BROADCAST_PREFIX", "votemap"),
		SessionTTLMinutes:      getEnvAsInt("SESSION_TTL_MINUTES", 60),
		IPHashSalt:             getEnv("IP_HASH_SALT", "votemap-forensics"),
		RateLimitEnabled:       getEnvAsBool("RATE_LIMIT_ENABLED", true),
		RateLimitMaxActions:    getEnvAsInt("RATE_LIMIT_MAX", 5),
		RateLimitWindowSeconds: getEnvAsInt("RATE_LIMIT_WINDOW", 60),
		RateLimitKeyPrefix:     getEnv("RATE_LIMIT_PREFIX", "ratelimit"),
		RecomputeMaxAttempts:   getEnvAsInt("RECOMPUTE_MAX_ATTEMPTS", 3),
		AutoMigrate:            getEnvAsBool("DB_AUTO_MIGRATE", true),
		WorkerMetricsAddress:   getEnv("WORKER_METRICS_ADDRESS", ":9090"),
	}

	dbStr := getEnv("REDIS_DB", "0")
	dbInt, err := strconv.Atoi(dbStr)
	if err != nil {
		return Config{}, fmt.Errorf("config: invalid REDIS_DB: %w", err)
	}
	cfg.RedisDB = dbInt

	if cfg.SessionTTLMinutes <= 0 {
		return Config{}, fmt.Errorf("config: SESSION_TTL_MINUTES must be positive")
	}

	return cfg, nil
}

func (c Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.PostgresUser,
		c.PostgresPassword,
		c.PostgresHost,
		c.PostgresPort,
		c.PostgresDB,
		c.PostgresSSLMode,
	)
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvAsInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return i
}

func getEnvAsBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	switch value {
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return true
	}
}
