package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/database"
)

type Config struct {
	AppName                       string   `env:"APP_NAME" envDefault:"medlemsregistret-import"`
	Version                       string   `env:"APP_VERSION" envDefault:"dev"`
	Port                          int      `env:"PORT" envDefault:"3000"`
	LogLevel                      string   `env:"LOG_LEVEL" envDefault:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" envDefault:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" envDefault:"300"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" envDefault:"60"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" envDefault:"10"`
	ReadHeaderTimeoutSeconds      int      `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" envDefault:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" envDefault:"64000"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" envDefault:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" envDefault:"GET,POST,PUT,DELETE"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" envDefault:"5"`

	DatabaseHost            string        `env:"DB_HOST" envDefault:"localhost"`
	DatabasePort            string        `env:"DB_PORT" envDefault:"5432"`
	DatabaseUserName        string        `env:"DB_USER_NAME" envDefault:"postgres"`
	DatabasePassword        string        `env:"DB_PASSWORD" envDefault:""`
	DatabaseName            string        `env:"DB_NAME" envDefault:"medlemsregistret"`
	DatabaseSSLMode         string        `env:"DB_SSL_MODE" envDefault:"disable"`
	DatabaseMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DatabaseMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DatabaseConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`

	DatabaseMigrationFolderPath   string `env:"DB_MIGRATION_FOLDER_PATH" envDefault:"db/pg"`
	DatabaseMigrationVersion      uint   `env:"DB_MIGRATION_VERSION" envDefault:"0"`
	DatabaseMigrationForce        int    `env:"DB_MIGRATION_FORCE" envDefault:"0"`
	DatabaseMigrationAutoRollback bool   `env:"DB_MIGRATION_AUTO_ROLLBACK" envDefault:"true"`

	// Upper bound for each uploaded fixture file.
	ImportMaxFileBytes int64 `env:"IMPORT_MAX_FILE_BYTES" envDefault:"26214400"`
	// Per-record transaction bounds.
	ImportTxTimeout time.Duration `env:"IMPORT_TX_TIMEOUT" envDefault:"20s"`
	ImportTxMaxWait time.Duration `env:"IMPORT_TX_MAX_WAIT" envDefault:"10s"`
	// Serialize imports per municipality through Redis.
	ImportLockEnabled bool          `env:"IMPORT_LOCK_ENABLED" envDefault:"false"`
	ImportLockTTL     time.Duration `env:"IMPORT_LOCK_TTL" envDefault:"15m"`

	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Empty disables import lifecycle events.
	KafkaBrokers     []string `env:"KAFKA_BROKERS"`
	KafkaImportTopic string   `env:"KAFKA_IMPORT_TOPIC" envDefault:"medlemsregistret.imports"`

	OtelEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	OtelProtocol string `env:"OTEL_EXPORTER_OTLP_PROTOCOL" envDefault:"grpc"`
	OtelInsecure bool   `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
}

// Load reads optional .env files, then parses the environment into Config.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env", ".env.local"}
	}

	existing := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}
	if len(existing) > 0 {
		if err := godotenv.Load(existing...); err != nil {
			return nil, fmt.Errorf("failed to load env files: %w", err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) Database() database.Config {
	return database.Config{
		Host:            c.DatabaseHost,
		Port:            c.DatabasePort,
		User:            c.DatabaseUserName,
		Password:        c.DatabasePassword,
		Name:            c.DatabaseName,
		SSLMode:         c.DatabaseSSLMode,
		MaxOpenConns:    c.DatabaseMaxOpenConns,
		MaxIdleConns:    c.DatabaseMaxIdleConns,
		ConnMaxLifetime: c.DatabaseConnMaxLifetime,
	}
}

func (c *Config) Migration() *database.MigrationConfig {
	return &database.MigrationConfig{
		MigrationFolderPath: c.DatabaseMigrationFolderPath,
		Version:             c.DatabaseMigrationVersion,
		Force:               c.DatabaseMigrationForce,
		AutoRollback:        c.DatabaseMigrationAutoRollback,
	}
}

func (c *Config) ImportTxOptions() database.TxOptions {
	return database.TxOptions{
		Timeout: c.ImportTxTimeout,
		MaxWait: c.ImportTxMaxWait,
	}
}
