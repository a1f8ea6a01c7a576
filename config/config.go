// Package config loads the wire configuration from a YAML or TOML file.
// Environment variables in the format ${VAR_NAME} are expanded, and the
// DEV_MODE / *_ENDPOINT variables override the file the same way the
// deployment environment sets them.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const (
	BackendRedis  = "redis"
	BackendDynamo = "dynamodb"
	BackendMemory = "memory"
	BackendSQS    = "sqs"
	BackendNone   = "none"
)

type Config struct {
	DevMode  bool           `yaml:"dev_mode" toml:"dev_mode"`
	Store    StoreConfig    `yaml:"store" toml:"store"`
	Events   EventsConfig   `yaml:"events" toml:"events"`
	Security SecurityConfig `yaml:"security" toml:"security"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
}

// StoreConfig selects the key-value backend
type StoreConfig struct {
	Backend          string `yaml:"backend" toml:"backend"`
	RedisEndpoint    string `yaml:"redis_endpoint" toml:"redis_endpoint"`
	DynamoDBEndpoint string `yaml:"dynamodb_endpoint" toml:"dynamodb_endpoint"`
	DynamoDBTable    string `yaml:"dynamodb_table" toml:"dynamodb_table"`
}

// EventsConfig selects where thread activity events are published
type EventsConfig struct {
	Backend     string `yaml:"backend" toml:"backend"`
	SQSEndpoint string `yaml:"sqs_endpoint" toml:"sqs_endpoint"`
	SQSQueue    string `yaml:"sqs_queue" toml:"sqs_queue"`
	// Relay forwards queued events to redis pub/sub channels
	Relay bool `yaml:"relay" toml:"relay"`
}

type SecurityConfig struct {
	BcryptCost int `yaml:"bcrypt_cost" toml:"bcrypt_cost"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:       BackendRedis,
			RedisEndpoint: "localhost:6379",
			DynamoDBTable: "Wire",
		},
		Events: EventsConfig{
			Backend:  BackendRedis,
			SQSQueue: "WireEventsQueue",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the file at path (TOML when the extension is .toml, YAML
// otherwise) on top of Default(), applies environment overrides and validates.
// An empty path loads only defaults and environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		expanded := expandEnvVars(string(data))

		if strings.EqualFold(filepath.Ext(path), ".toml") {
			if _, err := toml.Decode(expanded, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

var envVarRe = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarRe.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarRe.FindStringSubmatch(match)[1])
	})
}

func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("DEV_MODE"); ok {
		cfg.DevMode = v == "true"
	}
	if v := os.Getenv("STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("REDIS_ENDPOINT"); v != "" {
		cfg.Store.RedisEndpoint = v
	}
	if v := os.Getenv("DYNAMODB_ENDPOINT"); v != "" {
		cfg.Store.DynamoDBEndpoint = v
	}
	if v := os.Getenv("EVENTS_BACKEND"); v != "" {
		cfg.Events.Backend = v
	}
	if v := os.Getenv("SQS_ENDPOINT"); v != "" {
		cfg.Events.SQSEndpoint = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendRedis:
		if c.Store.RedisEndpoint == "" {
			return fmt.Errorf("store.redis_endpoint is required for the redis backend")
		}
	case BackendDynamo:
		if c.Store.DynamoDBTable == "" {
			return fmt.Errorf("store.dynamodb_table is required for the dynamodb backend")
		}
		if c.DevMode && c.Store.DynamoDBEndpoint == "" {
			return fmt.Errorf("store.dynamodb_endpoint is required in dev mode")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unsupported store.backend %q", c.Store.Backend)
	}

	switch c.Events.Backend {
	case BackendRedis:
		if c.Store.RedisEndpoint == "" {
			return fmt.Errorf("store.redis_endpoint is required for redis events")
		}
	case BackendSQS:
		if c.Events.SQSQueue == "" {
			return fmt.Errorf("events.sqs_queue is required for the sqs backend")
		}
		if c.DevMode && c.Events.SQSEndpoint == "" {
			return fmt.Errorf("events.sqs_endpoint is required in dev mode")
		}
	case BackendNone:
	default:
		return fmt.Errorf("unsupported events.backend %q", c.Events.Backend)
	}

	if c.Events.Relay && c.Events.Backend != BackendSQS {
		return fmt.Errorf("events.relay requires the sqs events backend")
	}

	if c.Security.BcryptCost != 0 && (c.Security.BcryptCost < 4 || c.Security.BcryptCost > 31) {
		return fmt.Errorf("security.bcrypt_cost must be between 4 and 31")
	}

	return nil
}
