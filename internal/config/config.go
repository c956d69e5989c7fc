// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

// Package config holds the mirror settings and loads them from a YAML file,
// the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Environment variables consulted by LoadEnv.
const (
	EnvAPIKey = "NVD_API_KEY"
	EnvDir    = "NVD_MIRROR_DIR"
)

const (
	// DefaultAPIURL is the NVD CVE API 2.0 endpoint.
	DefaultAPIURL = "https://services.nvd.nist.gov/rest/json/cves/2.0"

	// PublicThrottle keeps unauthenticated clients under 5 requests per 30s.
	PublicThrottle = 6 * time.Second
	// KeyedThrottle is the pause used when an API key is configured.
	KeyedThrottle = time.Second

	MaxPageSize      = 2000
	MaxWindowDays    = 120
	DefaultChunkSize = 90 * 1024 * 1024

	dirName = "nvd-mirror"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Retry configures the backoff applied to transient upstream failures.
// MaxAttempts caps the attempts per request; 0 retries forever.
type Retry struct {
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
	MaxAttempts     int           `yaml:"max_attempts"`
}

// Config is the complete runtime configuration.
type Config struct {
	Dir            string         `yaml:"dir"`
	Reinit         bool           `yaml:"reinit"`
	APIKey         string         `yaml:"api_key"`
	APIURL         string         `yaml:"api_url"`
	Throttle       *time.Duration `yaml:"throttle"`
	PageSize       int            `yaml:"page_size"`
	MaxWindowDays  int            `yaml:"max_window_days"`
	ChunkSizeBytes int64          `yaml:"chunk_size_bytes"`
	Retry          Retry          `yaml:"retry"`
	HTTPTimeout    time.Duration  `yaml:"http_timeout"`
	Debug          bool           `yaml:"debug"`
}

// Default returns the built-in settings. Dir and Throttle are left unset and
// filled by Resolve once the API key is known. An explicit zero Throttle
// disables throttling.
func Default() Config {
	return Config{
		APIURL:         DefaultAPIURL,
		PageSize:       MaxPageSize,
		MaxWindowDays:  MaxWindowDays,
		ChunkSizeBytes: DefaultChunkSize,
		Retry: Retry{
			InitialInterval: 10 * time.Second,
			MaxInterval:     2 * time.Minute,
			MaxAttempts:     20,
		},
		HTTPTimeout: 60 * time.Second,
	}
}

// LoadFile overlays the YAML file at path onto c. Unknown keys are rejected.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return fmt.Errorf("%w: parsing %s: %v", ErrInvalid, path, err)
	}
	return nil
}

// LoadEnv overlays the environment onto c. Variables from envFile are loaded
// first without overriding the process environment; a missing envFile is not
// an error.
func (c *Config) LoadEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", envFile, err)
		}
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv(EnvDir); v != "" {
		c.Dir = v
	}
	return nil
}

// Resolve fills the settings that depend on others.
func (c *Config) Resolve() error {
	if c.Dir == "" {
		dir, err := DefaultDir()
		if err != nil {
			return err
		}
		c.Dir = dir
	}
	if c.Throttle == nil {
		throttle := PublicThrottle
		if c.APIKey != "" {
			throttle = KeyedThrottle
		}
		c.Throttle = &throttle
	}
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.Dir == "":
		return fmt.Errorf("%w: dir must not be empty", ErrInvalid)
	case c.APIURL == "":
		return fmt.Errorf("%w: api_url must not be empty", ErrInvalid)
	case c.PageSize < 1 || c.PageSize > MaxPageSize:
		return fmt.Errorf("%w: page_size must be between 1 and %d, got %d", ErrInvalid, MaxPageSize, c.PageSize)
	case c.MaxWindowDays < 1 || c.MaxWindowDays > MaxWindowDays:
		return fmt.Errorf("%w: max_window_days must be between 1 and %d, got %d", ErrInvalid, MaxWindowDays, c.MaxWindowDays)
	case c.ChunkSizeBytes < 1:
		return fmt.Errorf("%w: chunk_size_bytes must be positive", ErrInvalid)
	case c.Throttle != nil && *c.Throttle < 0:
		return fmt.Errorf("%w: throttle must not be negative", ErrInvalid)
	case c.Retry.InitialInterval <= 0 || c.Retry.MaxInterval < c.Retry.InitialInterval:
		return fmt.Errorf("%w: retry intervals must satisfy 0 < initial_interval <= max_interval", ErrInvalid)
	case c.Retry.MaxAttempts < 0:
		return fmt.Errorf("%w: retry.max_attempts must not be negative", ErrInvalid)
	case c.HTTPTimeout < 0:
		return fmt.Errorf("%w: http_timeout must not be negative", ErrInvalid)
	}
	return nil
}

// RequestThrottle returns the pause between requests, zero when unset.
func (c *Config) RequestThrottle() time.Duration {
	if c.Throttle == nil {
		return 0
	}
	return *c.Throttle
}

// MaxWindow returns the window width as a duration.
func (c *Config) MaxWindow() time.Duration {
	return time.Duration(c.MaxWindowDays) * 24 * time.Hour
}

// DefaultDir returns $XDG_DATA_HOME/nvd-mirror, or ~/.nvd-mirror when
// XDG_DATA_HOME is unset.
func DefaultDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, dirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}
	return filepath.Join(home, "."+dirName), nil
}
