// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config with yaml tags. Pointer fields distinguish
// "absent" from zero so the file only overrides what it mentions.
type fileConfig struct {
	Port              *int    `yaml:"port"`
	OutRoot           *string `yaml:"out_root"`
	ModelsDir         *string `yaml:"models_dir"`
	WorkerBin         *string `yaml:"worker_bin"`
	ArchivePath       *string `yaml:"archive_path"`
	MaxCUDASessions   *int    `yaml:"max_cuda_sessions"`
	RetentionTTL      *string `yaml:"retention_ttl"`
	RetentionMaxBytes *int64  `yaml:"retention_max_bytes"`
	RetentionInterval *string `yaml:"retention_interval"`
	AdminToken        *string `yaml:"admin_token"`
	RedisAddr         *string `yaml:"redis_addr"`
	RedisPassword     *string `yaml:"redis_password"`
	OTLPEndpoint      *string `yaml:"otlp_endpoint"`
}

func loadFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied config path
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}

	out := base
	if fc.Port != nil {
		out.Port = *fc.Port
	}
	if fc.OutRoot != nil {
		out.OutRoot = *fc.OutRoot
	}
	if fc.ModelsDir != nil {
		out.ModelsDir = *fc.ModelsDir
	}
	if fc.WorkerBin != nil {
		out.WorkerBin = *fc.WorkerBin
	}
	if fc.ArchivePath != nil {
		out.ArchivePath = *fc.ArchivePath
	}
	if fc.MaxCUDASessions != nil {
		out.MaxCUDASessions = *fc.MaxCUDASessions
	}
	if fc.RetentionTTL != nil {
		d, err := time.ParseDuration(*fc.RetentionTTL)
		if err != nil {
			return Config{}, fmt.Errorf("retention_ttl: %w", err)
		}
		out.RetentionTTL = d
	}
	if fc.RetentionMaxBytes != nil {
		out.RetentionMaxBytes = *fc.RetentionMaxBytes
	}
	if fc.RetentionInterval != nil {
		d, err := time.ParseDuration(*fc.RetentionInterval)
		if err != nil {
			return Config{}, fmt.Errorf("retention_interval: %w", err)
		}
		out.RetentionInterval = d
	}
	if fc.AdminToken != nil {
		out.AdminToken = *fc.AdminToken
	}
	if fc.RedisAddr != nil {
		out.RedisAddr = *fc.RedisAddr
	}
	if fc.RedisPassword != nil {
		out.RedisPassword = *fc.RedisPassword
	}
	if fc.OTLPEndpoint != nil {
		out.OTLPEndpoint = *fc.OTLPEndpoint
	}
	return out, nil
}
