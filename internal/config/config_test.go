// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault_IsValidOnceResolved(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")
	cfg := Default()
	require.NoError(t, cfg.Resolve())
	require.NoError(t, cfg.Validate())

	assert.Equal(t, filepath.Join("/data", "nvd-mirror"), cfg.Dir)
	assert.Equal(t, PublicThrottle, cfg.RequestThrottle())
	assert.Equal(t, 20, cfg.Retry.MaxAttempts)
	assert.Equal(t, 120*24*time.Hour, cfg.MaxWindow())
}

func TestResolve_KeyedThrottle(t *testing.T) {
	cfg := Default()
	cfg.Dir = t.TempDir()
	cfg.APIKey = "secret"
	require.NoError(t, cfg.Resolve())
	assert.Equal(t, KeyedThrottle, cfg.RequestThrottle())

	cfg.Throttle = durationPtr(3 * time.Second)
	require.NoError(t, cfg.Resolve())
	assert.Equal(t, 3*time.Second, cfg.RequestThrottle(), "explicit throttle must be kept")
}

func TestResolve_ExplicitZeroThrottle(t *testing.T) {
	cfg := Default()
	cfg.Dir = t.TempDir()
	cfg.Throttle = durationPtr(0)
	require.NoError(t, cfg.Resolve())
	require.NoError(t, cfg.Validate())
	assert.Equal(t, time.Duration(0), cfg.RequestThrottle(), "zero disables throttling")
}

func TestLoadFile_ZeroThrottle(t *testing.T) {
	cfg := Default()
	cfg.Dir = t.TempDir()
	require.NoError(t, cfg.LoadFile(writeFile(t, "config.yaml", "throttle: 0s\n")))
	require.NoError(t, cfg.Resolve())
	assert.Equal(t, time.Duration(0), cfg.RequestThrottle())
}

func durationPtr(d time.Duration) *time.Duration { return &d }

func TestDefaultDir_Home(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "")
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir, err := DefaultDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".nvd-mirror"), dir)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, "config.yaml", `
dir: /srv/nvd
page_size: 500
throttle: 2s
retry:
  max_attempts: 0
`)
	cfg := Default()
	require.NoError(t, cfg.LoadFile(path))

	assert.Equal(t, "/srv/nvd", cfg.Dir)
	assert.Equal(t, 500, cfg.PageSize)
	assert.Equal(t, 2*time.Second, cfg.RequestThrottle())
	assert.Equal(t, 0, cfg.Retry.MaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.Retry.InitialInterval, "unset keys keep their defaults")
	assert.Equal(t, MaxWindowDays, cfg.MaxWindowDays)
}

func TestLoadFile_Errors(t *testing.T) {
	cfg := Default()
	err := cfg.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	err = cfg.LoadFile(writeFile(t, "bad.yaml", "page_sise: 10\n"))
	require.ErrorIs(t, err, ErrInvalid)
}

// unsetenv removes key for the duration of the test.
func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestLoadEnv(t *testing.T) {
	unsetenv(t, EnvAPIKey)
	t.Setenv(EnvDir, "/from/env")
	envFile := writeFile(t, ".env", EnvAPIKey+"=from-dotenv\n")

	cfg := Default()
	cfg.Dir = "/from/file"
	require.NoError(t, cfg.LoadEnv(envFile))

	assert.Equal(t, "/from/env", cfg.Dir)
	assert.Equal(t, "from-dotenv", cfg.APIKey)
}

func TestLoadEnv_ProcessEnvWins(t *testing.T) {
	t.Setenv(EnvAPIKey, "from-process")
	envFile := writeFile(t, ".env", EnvAPIKey+"=from-dotenv\n")

	cfg := Default()
	require.NoError(t, cfg.LoadEnv(envFile))
	assert.Equal(t, "from-process", cfg.APIKey)
}

func TestLoadEnv_MissingFile(t *testing.T) {
	unsetenv(t, EnvAPIKey)
	cfg := Default()
	require.NoError(t, cfg.LoadEnv(filepath.Join(t.TempDir(), ".env")))
	assert.Empty(t, cfg.APIKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty dir", func(c *Config) { c.Dir = "" }},
		{"empty url", func(c *Config) { c.APIURL = "" }},
		{"page size zero", func(c *Config) { c.PageSize = 0 }},
		{"page size too large", func(c *Config) { c.PageSize = MaxPageSize + 1 }},
		{"window zero", func(c *Config) { c.MaxWindowDays = 0 }},
		{"window too large", func(c *Config) { c.MaxWindowDays = 121 }},
		{"chunk size", func(c *Config) { c.ChunkSizeBytes = 0 }},
		{"negative throttle", func(c *Config) { c.Throttle = durationPtr(-time.Second) }},
		{"inverted retry intervals", func(c *Config) { c.Retry.MaxInterval = time.Second }},
		{"negative attempts", func(c *Config) { c.Retry.MaxAttempts = -1 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			cfg.Dir = "/tmp/nvd"
			tc.modify(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}
