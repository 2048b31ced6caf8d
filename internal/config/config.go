// Package config loads runtime settings from an optional YAML file, a .env
// file and the process environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Supabase SupabaseConfig `yaml:"supabase"`
	Feed     FeedConfig     `yaml:"feed"`
	Upload   UploadConfig   `yaml:"upload"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	Mode            string        `yaml:"mode"` // gin mode: debug, release, test
	SessionSecret   string        `yaml:"session_secret"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// SupabaseConfig points at the identity and object-storage provider.
type SupabaseConfig struct {
	URL                   string        `yaml:"url"`
	Key                   string        `yaml:"key"`
	PasswordResetRedirect string        `yaml:"password_reset_redirect"`
	IdentityCacheTTL      time.Duration `yaml:"identity_cache_ttl"`
	IdentityCacheSize     int           `yaml:"identity_cache_size"`
	PostBucket            string        `yaml:"post_bucket"`
	AvatarBucket          string        `yaml:"avatar_bucket"`
}

type FeedConfig struct {
	PageSize int `yaml:"page_size"`
}

type UploadConfig struct {
	MaxImageBytes int64 `yaml:"max_image_bytes"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			Mode:            "release",
			SessionSecret:   "secret_key_change_me",
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			URL: "host=localhost user=postgres password=postgres dbname=socialconnect port=5432 sslmode=disable TimeZone=UTC",
		},
		Supabase: SupabaseConfig{
			IdentityCacheTTL:  time.Minute,
			IdentityCacheSize: 1024,
			PostBucket:        "posts",
			AvatarBucket:      "avatars",
		},
		Feed:    FeedConfig{PageSize: 10},
		Upload:  UploadConfig{MaxImageBytes: 2 * 1024 * 1024},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads .env (if present), then the YAML file named by CONFIG_FILE,
// then environment overrides.
func Load() (*Config, error) {
	// Missing .env is fine, the environment may already be populated.
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	setString(&c.Server.Port, "PORT")
	setString(&c.Server.Mode, "GIN_MODE")
	setString(&c.Server.SessionSecret, "SESSION_SECRET")
	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Supabase.URL, "SUPABASE_URL")
	setString(&c.Supabase.Key, "SUPABASE_KEY")
	setString(&c.Supabase.PasswordResetRedirect, "PASSWORD_RESET_REDIRECT")
	setString(&c.Logging.Level, "LOG_LEVEL")

	if v := os.Getenv("LOG_DEVELOPMENT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LOG_DEVELOPMENT: %w", err)
		}
		c.Logging.Development = b
	}
	if v := os.Getenv("FEED_PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FEED_PAGE_SIZE: %w", err)
		}
		c.Feed.PageSize = n
	}
	if v := os.Getenv("MAX_IMAGE_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MAX_IMAGE_BYTES: %w", err)
		}
		c.Upload.MaxImageBytes = n
	}
	if v := os.Getenv("IDENTITY_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("IDENTITY_CACHE_TTL: %w", err)
		}
		c.Supabase.IdentityCacheTTL = d
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.URL == "" {
		errs = append(errs, errors.New("database url is required"))
	}
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server port is required"))
	}
	if c.Feed.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("feed page size must be positive, got %d", c.Feed.PageSize))
	}
	if c.Upload.MaxImageBytes <= 0 {
		errs = append(errs, fmt.Errorf("max image bytes must be positive, got %d", c.Upload.MaxImageBytes))
	}
	if c.Supabase.IdentityCacheSize <= 0 {
		errs = append(errs, fmt.Errorf("identity cache size must be positive, got %d", c.Supabase.IdentityCacheSize))
	}
	return errors.Join(errs...)
}
