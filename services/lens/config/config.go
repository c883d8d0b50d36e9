// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config resolves antlens configuration.
//
// Sources, lowest precedence first: built-in defaults, .antlens.yaml or
// .antlens.toml in the source root (or an explicit file), a .env file in the
// source root, process environment, then editor settings. The source root is
// never read from a file; it is the editor's first workspace folder.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/antlens/services/lens/store"
)

// ErrConfigurationMissing indicates that no source root could be resolved.
var ErrConfigurationMissing = errors.New("no source root configured")

var configValidate = validator.New()

// Config is the resolved antlens configuration.
type Config struct {
	// BinaryPath is the store executable. A bare name is looked up in PATH.
	BinaryPath string `yaml:"binary_path" toml:"binary_path" validate:"required"`

	// SourceRoot is the absolute workspace root. Not read from files.
	SourceRoot string `yaml:"-" toml:"-"`

	Store     StoreConfig     `yaml:"store" toml:"store"`
	Cache     CacheConfig     `yaml:"cache" toml:"cache"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry" toml:"telemetry"`
}

// StoreConfig bounds store subprocess calls.
type StoreConfig struct {
	// Timeout bounds one store call. Zero disables the deadline.
	Timeout time.Duration `yaml:"timeout" toml:"timeout" validate:"gte=0"`

	// MaxCallsPerSecond limits store spawns. Zero means unlimited.
	MaxCallsPerSecond float64 `yaml:"max_calls_per_second" toml:"max_calls_per_second" validate:"gte=0"`
}

// CacheConfig controls the per-file annotation cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" toml:"enabled"`
	TTL     time.Duration `yaml:"ttl" toml:"ttl" validate:"gte=0"`
}

// LoggingConfig controls pkg/logging.
type LoggingConfig struct {
	Level string `yaml:"level" toml:"level" validate:"omitempty,oneof=debug info warn error"`
	JSON  bool   `yaml:"json" toml:"json"`
	Dir   string `yaml:"dir" toml:"dir"`
}

// TelemetryConfig selects the OpenTelemetry exporter.
type TelemetryConfig struct {
	Exporter string `yaml:"exporter" toml:"exporter" validate:"omitempty,oneof=none stdout otlp prometheus"`
	Endpoint string `yaml:"endpoint" toml:"endpoint"`
}

// Settings are the options an editor pushes at runtime.
type Settings struct {
	BinaryPath string `json:"binaryPath"`
}

// Default returns the built-in configuration for root.
func Default(root string) Config {
	return Config{
		BinaryPath: store.DefaultBinary,
		SourceRoot: root,
		Store: StoreConfig{
			Timeout: store.DefaultTimeout,
		},
		Cache: CacheConfig{
			Enabled: false,
			TTL:     30 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			Exporter: "none",
		},
	}
}

// Validate checks the configuration.
//
// An empty or relative source root yields ErrConfigurationMissing.
func (c Config) Validate() error {
	if c.SourceRoot == "" || !filepath.IsAbs(c.SourceRoot) {
		return ErrConfigurationMissing
	}
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// StoreConfig returns the store client settings.
func (c Config) StoreConfig() store.Config {
	return store.Config{
		BinaryPath:        c.BinaryPath,
		Root:              c.SourceRoot,
		Timeout:           c.Store.Timeout,
		MaxCallsPerSecond: c.Store.MaxCallsPerSecond,
	}
}

// ApplySettings overlays editor settings. Empty fields keep the current value.
func (c Config) ApplySettings(s Settings) Config {
	if s.BinaryPath != "" {
		c.BinaryPath = s.BinaryPath
	}
	return c
}
