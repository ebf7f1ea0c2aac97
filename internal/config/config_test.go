// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearLivecapEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LIVECAP_CONFIG_FILE", "LIVECAP_PORT", "LIVECAP_OUT_ROOT",
		"LIVECAP_MODELS_DIR", "LIVECAP_WORKER_BIN", "LIVECAP_ARCHIVE_PATH",
		"LIVECAP_MAX_CUDA_SESSIONS", "LIVECAP_RETENTION_TTL",
		"LIVECAP_RETENTION_MAX_BYTES", "LIVECAP_RETENTION_INTERVAL",
		"LIVECAP_ADMIN_TOKEN", "LIVECAP_REDIS_ADDR", "LIVECAP_REDIS_PASSWORD",
		"LIVECAP_OTLP_ENDPOINT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearLivecapEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "./out", cfg.OutRoot)
	assert.Equal(t, 1, cfg.MaxCUDASessions)
	assert.Equal(t, 24*time.Hour, cfg.RetentionTTL)
	assert.Equal(t, 10*time.Minute, cfg.RetentionInterval)
	assert.Empty(t, cfg.RedisAddr)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearLivecapEnv(t)
	t.Setenv("LIVECAP_PORT", "9001")
	t.Setenv("LIVECAP_MAX_CUDA_SESSIONS", "2")
	t.Setenv("LIVECAP_RETENTION_TTL", "1h")
	t.Setenv("LIVECAP_RETENTION_MAX_BYTES", "1073741824")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9001, cfg.Port)
	assert.Equal(t, 2, cfg.MaxCUDASessions)
	assert.Equal(t, time.Hour, cfg.RetentionTTL)
	assert.EqualValues(t, 1<<30, cfg.RetentionMaxBytes)
}

func TestLoadFileThenEnvPrecedence(t *testing.T) {
	clearLivecapEnv(t)

	file := filepath.Join(t.TempDir(), "livecap.yaml")
	require.NoError(t, os.WriteFile(file, []byte(
		"port: 9100\nout_root: /srv/livecap\nretention_ttl: 2h\n",
	), 0o644))

	t.Setenv("LIVECAP_CONFIG_FILE", file)
	t.Setenv("LIVECAP_PORT", "9200")

	cfg, err := Load()
	require.NoError(t, err)
	// Env wins over file, file wins over built-in default.
	assert.Equal(t, 9200, cfg.Port)
	assert.Equal(t, "/srv/livecap", cfg.OutRoot)
	assert.Equal(t, 2*time.Hour, cfg.RetentionTTL)
	assert.Equal(t, "./models", cfg.ModelsDir)
}

func TestLoadRejectsUnknownFileKeys(t *testing.T) {
	clearLivecapEnv(t)

	file := filepath.Join(t.TempDir(), "livecap.yaml")
	require.NoError(t, os.WriteFile(file, []byte("prot: 9100\n"), 0o644))
	t.Setenv("LIVECAP_CONFIG_FILE", file)

	_, err := Load()
	require.ErrorIs(t, err, ErrInvalid)
}

func TestValidate(t *testing.T) {
	valid := Config{
		Port:              8080,
		OutRoot:           "./out",
		WorkerBin:         "livecap-worker",
		MaxCUDASessions:   1,
		RetentionInterval: time.Minute,
	}
	require.NoError(t, valid.Validate())

	cases := map[string]func(*Config){
		"port zero":          func(c *Config) { c.Port = 0 },
		"port too high":      func(c *Config) { c.Port = 70000 },
		"empty out root":     func(c *Config) { c.OutRoot = "" },
		"empty worker bin":   func(c *Config) { c.WorkerBin = "" },
		"zero cuda sessions": func(c *Config) { c.MaxCUDASessions = 0 },
		"negative ttl":       func(c *Config) { c.RetentionTTL = -time.Hour },
		"negative max bytes": func(c *Config) { c.RetentionMaxBytes = -1 },
		"zero interval":      func(c *Config) { c.RetentionInterval = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid
			mutate(&c)
			assert.ErrorIs(t, c.Validate(), ErrInvalid)
		})
	}
}
