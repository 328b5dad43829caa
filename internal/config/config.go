// Package config loads process configuration from PHASEWISE_* environment
// variables. Command line flags override the parsed values.
package config

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
	StoreFile   = "file"
)

// Config is the runtime configuration of the phasewise binaries.
type Config struct {
	// Graph is a preset name, a graph file or a phase directory.
	Graph string `env:"PHASEWISE_GRAPH" envDefault:"stages"`
	// Watch reloads file and directory graphs when they change.
	Watch bool `env:"PHASEWISE_WATCH" envDefault:"false"`

	Store      string `env:"PHASEWISE_STORE" envDefault:"memory"`
	SQLitePath string `env:"PHASEWISE_SQLITE_PATH" envDefault:"phasewise.db"`
	FilePath   string `env:"PHASEWISE_FILE_PATH" envDefault:".phasewise/sessions"`

	Redis Redis `envPrefix:"PHASEWISE_REDIS_"`

	LockTTL time.Duration `env:"PHASEWISE_LOCK_TTL" envDefault:"10s"`

	// EncryptionKey seals collected fields at rest (base64, 32 bytes decoded).
	EncryptionKey string `env:"PHASEWISE_ENCRYPTION_KEY"`
	// FallbackKeys are retired keys still accepted for decryption.
	FallbackKeys []string `env:"PHASEWISE_ENCRYPTION_FALLBACK_KEYS" envSeparator:","`
	// RedactFields are field name patterns masked before they are stored.
	RedactFields []string `env:"PHASEWISE_REDACT_FIELDS" envSeparator:","`

	LogLevel  string `env:"PHASEWISE_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"PHASEWISE_LOG_FORMAT" envDefault:"text"`

	HTTPAddr string `env:"PHASEWISE_HTTP_ADDR" envDefault:":8080"`
	MCPPort  int    `env:"PHASEWISE_MCP_PORT" envDefault:"8081"`
}

// Redis configures the redis session store and lock.
type Redis struct {
	Addr     string        `env:"ADDR" envDefault:"localhost:6379"`
	Password string        `env:"PASSWORD"`
	DB       int           `env:"DB" envDefault:"0"`
	TTL      time.Duration `env:"TTL" envDefault:"0s"`
	Prefix   string        `env:"PREFIX" envDefault:"phasewise:"`
}

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate reports values no backend can accept.
func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreRedis, StoreSQLite, StoreFile:
	default:
		return fmt.Errorf("unknown store %q (expected memory, redis, sqlite or file)", c.Store)
	}
	if c.Graph == "" {
		return fmt.Errorf("PHASEWISE_GRAPH must not be empty")
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("PHASEWISE_LOCK_TTL must be positive, got %s", c.LockTTL)
	}
	if c.Redis.TTL < 0 {
		return fmt.Errorf("PHASEWISE_REDIS_TTL must not be negative, got %s", c.Redis.TTL)
	}
	if _, _, err := c.EncryptionKeys(); err != nil {
		return err
	}
	for _, p := range c.RedactFields {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("PHASEWISE_REDACT_FIELDS: bad pattern %q: %w", p, err)
		}
	}
	return nil
}

// EncryptionKeys decodes the active and fallback keys. A nil active key means
// encryption is disabled.
func (c Config) EncryptionKeys() (active []byte, fallback [][]byte, err error) {
	if c.EncryptionKey == "" {
		if len(c.FallbackKeys) > 0 {
			return nil, nil, fmt.Errorf("PHASEWISE_ENCRYPTION_FALLBACK_KEYS requires PHASEWISE_ENCRYPTION_KEY")
		}
		return nil, nil, nil
	}
	active, err = decodeKey("PHASEWISE_ENCRYPTION_KEY", c.EncryptionKey)
	if err != nil {
		return nil, nil, err
	}
	for _, k := range c.FallbackKeys {
		key, err := decodeKey("PHASEWISE_ENCRYPTION_FALLBACK_KEYS", k)
		if err != nil {
			return nil, nil, err
		}
		fallback = append(fallback, key)
	}
	return active, fallback, nil
}

func decodeKey(name, encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%s is not valid base64: %w", name, err)
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("%s must decode to %d bytes, got %d", name, keySize, len(key))
	}
	return key, nil
}

// keySize matches middleware.KeySize (AES-256).
const keySize = 32
