// Package config loads the server configuration from an optional TOML file
// and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	StorageMongo    = "mongo"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"

	minSecretLen = 16
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	ServiceName string `toml:"serviceName" env:"SERVICE_NAME" env-default:"linkshare"`
	Port        string `toml:"port" env:"PORT" env-default:"8080"`
	LogLevel    string `toml:"logLevel" env:"LOG_LEVEL" env-default:"info"`
	// Storage selects the backend: mongo, postgres or memory.
	Storage string `toml:"storage" env:"STORAGE" env-default:"mongo"`
	// Categories are suggested on the submit form.
	Categories []string `toml:"categories" env:"CATEGORIES" env-separator:"," env-default:"Programming,Design,Science,News,Books"`

	Mongo    Mongo    `toml:"mongo"`
	Postgres Postgres `toml:"postgres"`
	Session  Session  `toml:"session"`
	Redis    Redis    `toml:"redis"`
	Kafka    Kafka    `toml:"kafka"`
	Censor   Censor   `toml:"censor"`
}

type Mongo struct {
	URI    string `toml:"uri" env:"MONGODB_URI"`
	DBName string `toml:"dbName" env:"MONGODB_DB" env-default:"linkshare"`
}

type Postgres struct {
	URL string `toml:"url" env:"POSTGRES_URL"`
}

type Session struct {
	Secret       string        `toml:"secret" env:"SESSION_SECRET"`
	TTL          time.Duration `toml:"ttl" env:"SESSION_TTL" env-default:"24h"`
	SecureCookie bool          `toml:"secureCookie" env:"SESSION_SECURE_COOKIE"`
}

// Redis holds the session store connection. An empty Addr keeps sessions in memory.
type Redis struct {
	Addr     string `toml:"addr" env:"REDIS_ADDR"`
	Password string `toml:"password" env:"REDIS_PASSWORD"`
	DB       int    `toml:"db" env:"REDIS_DB"`
}

// Kafka holds the request log transport. An empty Addr disables log shipping.
type Kafka struct {
	Addr  string `toml:"addr" env:"KAFKA_ADDR"`
	Topic string `toml:"topic" env:"KAFKA_TOPIC" env-default:"logs"`
	Batch int    `toml:"batch" env:"KAFKA_BATCH" env-default:"1"`
}

// Censor enables moderation either with a local word list or a remote
// censorship service. Both empty disables moderation.
type Censor struct {
	WordsPath  string `toml:"wordsPath" env:"CENSOR_WORDS_PATH"`
	ServiceURL string `toml:"serviceURL" env:"CENSOR_SERVICE_URL"`
}

// Load reads the TOML file at path, if path is not empty, and applies
// environment overrides and defaults. Variables from a .env file in the
// working directory are loaded first without overriding the real environment.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	cfg.Storage = strings.ToLower(cfg.Storage)
	return &cfg, nil
}

// Validate checks the values required by the selected backends.
func (c *Config) Validate() error {
	var errs []error

	if c.Port == "" {
		errs = append(errs, errors.New("port is required"))
	}

	switch c.Storage {
	case StorageMongo:
		if c.Mongo.URI == "" {
			errs = append(errs, errors.New("mongo URI is required"))
		}
		if c.Mongo.DBName == "" {
			errs = append(errs, errors.New("mongo DB name is required"))
		}
	case StoragePostgres:
		if c.Postgres.URL == "" {
			errs = append(errs, errors.New("postgres URL is required"))
		}
	case StorageMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown storage %q", c.Storage))
	}

	if len(c.Session.Secret) < minSecretLen {
		errs = append(errs, fmt.Errorf("session secret must be at least %d bytes", minSecretLen))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("session TTL must be positive"))
	}

	if c.Kafka.Addr != "" && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka topic is required"))
	}
	if c.Censor.WordsPath != "" && c.Censor.ServiceURL != "" {
		errs = append(errs, errors.New("censor words path and service URL are mutually exclusive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}
