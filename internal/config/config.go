// SPDX-License-Identifier: MIT

// Package config assembles the daemon configuration: an optional YAML
// file supplies defaults, LIVECAP_* environment variables override.
package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalid tags configuration errors so the CLI can map them to its
// config-error exit code.
var ErrInvalid = errors.New("invalid configuration")

// Config is the fully resolved daemon configuration.
type Config struct {
	// HTTP
	Port int

	// Paths
	OutRoot   string
	ModelsDir string
	WorkerBin string

	// ArchivePath is the sqlite commit journal. Empty disables it.
	ArchivePath string

	// Sessions
	MaxCUDASessions int

	// Retention over OutRoot
	RetentionTTL      time.Duration
	RetentionMaxBytes int64
	RetentionInterval time.Duration

	// Admin
	AdminToken string

	// Cache backend; empty RedisAddr selects the in-memory cache.
	RedisAddr     string
	RedisPassword string

	// Telemetry; empty disables tracing.
	OTLPEndpoint string
}

// Load resolves the configuration. When LIVECAP_CONFIG_FILE is set the
// file is read first and its values become the defaults the environment
// overrides.
func Load() (Config, error) {
	defaults := Config{
		Port:              8080,
		OutRoot:           "./out",
		ModelsDir:         "./models",
		WorkerBin:         "livecap-worker",
		MaxCUDASessions:   1,
		RetentionTTL:      24 * time.Hour,
		RetentionInterval: 10 * time.Minute,
	}

	if path := ParseString("LIVECAP_CONFIG_FILE", ""); path != "" {
		fileCfg, err := loadFile(path, defaults)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s", ErrInvalid, err)
		}
		defaults = fileCfg
	}

	cfg := Config{
		Port:              ParseInt("LIVECAP_PORT", defaults.Port),
		OutRoot:           ParseString("LIVECAP_OUT_ROOT", defaults.OutRoot),
		ModelsDir:         ParseString("LIVECAP_MODELS_DIR", defaults.ModelsDir),
		WorkerBin:         ParseString("LIVECAP_WORKER_BIN", defaults.WorkerBin),
		ArchivePath:       ParseString("LIVECAP_ARCHIVE_PATH", defaults.ArchivePath),
		MaxCUDASessions:   ParseInt("LIVECAP_MAX_CUDA_SESSIONS", defaults.MaxCUDASessions),
		RetentionTTL:      ParseDuration("LIVECAP_RETENTION_TTL", defaults.RetentionTTL),
		RetentionMaxBytes: ParseInt64("LIVECAP_RETENTION_MAX_BYTES", defaults.RetentionMaxBytes),
		RetentionInterval: ParseDuration("LIVECAP_RETENTION_INTERVAL", defaults.RetentionInterval),
		AdminToken:        ParseString("LIVECAP_ADMIN_TOKEN", defaults.AdminToken),
		RedisAddr:         ParseString("LIVECAP_REDIS_ADDR", defaults.RedisAddr),
		RedisPassword:     ParseString("LIVECAP_REDIS_PASSWORD", defaults.RedisPassword),
		OTLPEndpoint:      ParseString("LIVECAP_OTLP_ENDPOINT", defaults.OTLPEndpoint),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values that cannot produce a working daemon.
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalid, c.Port)
	}
	if c.OutRoot == "" {
		return fmt.Errorf("%w: output root must not be empty", ErrInvalid)
	}
	if c.WorkerBin == "" {
		return fmt.Errorf("%w: worker binary must not be empty", ErrInvalid)
	}
	if c.MaxCUDASessions < 1 {
		return fmt.Errorf("%w: max cuda sessions must be at least 1", ErrInvalid)
	}
	if c.RetentionTTL < 0 {
		return fmt.Errorf("%w: retention ttl must not be negative", ErrInvalid)
	}
	if c.RetentionMaxBytes < 0 {
		return fmt.Errorf("%w: retention max bytes must not be negative", ErrInvalid)
	}
	if c.RetentionInterval <= 0 {
		return fmt.Errorf("%w: retention interval must be positive", ErrInvalid)
	}
	return nil
}
