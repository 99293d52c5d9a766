package config

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/kelseyhightower/envconfig"
)

const (
	TariffSourceFile = "file"
	TariffSourceDB   = "db"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	App      AppConfig
	Redis    RedisConfig
	Lock     LockConfig
	Tariff   TariffConfig
}

type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASSWORD" default:"postgres"`
	DBName   string `envconfig:"DB_NAME" default:"billing_db"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	MaxOpen  int    `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
	MaxIdle  int    `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
}

type ServerConfig struct {
	Port string `envconfig:"SERVER_PORT" default:"8080"`
}

type AppConfig struct {
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	BatchSize int    `envconfig:"BATCH_SIZE" default:"1000"`
}

// RedisConfig enables the Redis locker when Addr is set; otherwise locks are in-process.
type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

type LockConfig struct {
	TTL    time.Duration `envconfig:"LOCK_TTL" default:"30s"`
	Wait   time.Duration `envconfig:"LOCK_WAIT" default:"5s"`
	Prefix string        `envconfig:"LOCK_PREFIX" default:"billing:lock:"`
}

type TariffConfig struct {
	Source string `envconfig:"TARIFF_SOURCE" default:"file"`
	File   string `envconfig:"TARIFF_FILE" default:"config/tariff.yaml"`
}

// Load reads the configuration from environment variables. Sections are
// processed one by one so every variable keeps the exact name in its tag.
func Load() (*Config, error) {
	var cfg Config

	sections := map[string]interface{}{
		"database": &cfg.Database,
		"server":   &cfg.Server,
		"app":      &cfg.App,
		"redis":    &cfg.Redis,
		"lock":     &cfg.Lock,
		"tariff":   &cfg.Tariff,
	}
	for name, target := range sections {
		if err := envconfig.Process("", target); err != nil {
			return nil, fmt.Errorf("failed to load %s config: %w", name, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c Config) Validate() error {
	return validation.Errors{
		"batch_size":    validation.Validate(c.App.BatchSize, validation.Required, validation.Min(1)),
		"log_level":     validation.Validate(c.App.LogLevel, validation.In("debug", "info", "warn", "warning", "error")),
		"tariff_source": validation.Validate(c.Tariff.Source, validation.In(TariffSourceFile, TariffSourceDB)),
		"lock_ttl":      validation.Validate(c.Lock.TTL, validation.Min(time.Second)),
	}.Filter()
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}
