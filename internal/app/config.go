package app

import (
	"os"
	"strconv"
	"time"
)

// StorageDriver задаёт тип хранилища приложения.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Имена переменных окружения.
const (
	envHTTPAddr      = "NEMEZ_HTTP_ADDR"
	envMetricsAddr   = "NEMEZ_METRICS_ADDR"
	envStorageDriver = "NEMEZ_STORAGE_DRIVER"
	envPostgresDSN   = "NEMEZ_POSTGRES_DSN"
	envKafkaBrokers  = "NEMEZ_KAFKA_BROKERS"
	envAutoMigrate   = "NEMEZ_POSTGRES_AUTO_MIGRATE"
)

// Config описывает настройки запуска приложения.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	KafkaBrokers string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int
}

// DefaultConfig возвращает базовые настройки: in-memory хранилище,
// REST на :8080 и метрики на :9090.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:                    ":8080",
		MetricsAddr:                 ":9090",
		StorageDriver:               StorageDriverMemory,
		PostgresAutoMigrate:         true,
		OutboxPollInterval:          time.Second,
		OutboxBatchSize:             100,
		OutboxMaxAttempts:           3,
		OutboxRetryDelay:            50 * time.Millisecond,
		IdempotencyCleanupInterval:  time.Minute,
		IdempotencyCleanupBatchSize: 500,
	}
}

// ConfigFromEnv накладывает значения из переменных окружения на дефолты.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if v := os.Getenv(envHTTPAddr); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv(envMetricsAddr); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv(envStorageDriver); v != "" {
		cfg.StorageDriver = v
	}
	if v := os.Getenv(envPostgresDSN); v != "" {
		cfg.PostgresDSN = v
	}
	if v := os.Getenv(envKafkaBrokers); v != "" {
		cfg.KafkaBrokers = v
	}
	if v := os.Getenv(envAutoMigrate); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			cfg.PostgresAutoMigrate = parsed
		}
	}

	return cfg
}
