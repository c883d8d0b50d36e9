// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileNames are the config files looked up in the source root, in order.
var FileNames = []string{".antlens.yaml", ".antlens.yml", ".antlens.toml"}

// EnvFileName is the dotenv file read from the source root.
const EnvFileName = ".env"

// Environment variables.
const (
	EnvBinaryPath   = "ANTLENS_BINARY_PATH"
	EnvStoreTimeout = "ANTLENS_STORE_TIMEOUT"
	EnvLogLevel     = "ANTLENS_LOG_LEVEL"
	EnvCacheEnabled = "ANTLENS_CACHE_ENABLED"
	EnvTelemetry    = "ANTLENS_TELEMETRY_EXPORTER"
)

// Load resolves the configuration for root.
//
// Description:
//
//	Starts from Default, decodes file (or the first of FileNames found in
//	root when file is empty), then applies root/.env and the process
//	environment. Process variables win over .env entries. A missing file
//	or .env is not an error.
//
// Inputs:
//
//	root - Source root. Made absolute. Empty yields ErrConfigurationMissing.
//	file - Explicit config file, or "" to search root.
//
// Outputs:
//
//	Config - The validated configuration.
//	error - ErrConfigurationMissing, a decode error or a validation error.
func Load(root, file string) (Config, error) {
	if root == "" {
		return Config{}, ErrConfigurationMissing
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return Config{}, fmt.Errorf("resolve root %q: %w", root, err)
	}

	cfg := Default(absRoot)

	if file == "" {
		file = FindFile(absRoot)
	}
	if file != "" {
		if err := decodeFile(file, &cfg); err != nil {
			return Config{}, err
		}
	}
	cfg.SourceRoot = absRoot

	dotenv, err := readDotenv(filepath.Join(absRoot, EnvFileName))
	if err != nil {
		return Config{}, err
	}
	if err := applyEnv(&cfg, lookupChain(os.LookupEnv, dotenv)); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FindFile returns the first config file present in root, or "".
func FindFile(root string) string {
	for _, name := range FileNames {
		path := filepath.Join(root, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// decodeFile parses path into cfg by extension.
func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("decode TOML %s: %w", path, err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode YAML %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	return nil
}

func readDotenv(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return values, nil
}

type lookupFunc func(key string) (string, bool)

// lookupChain consults the process environment, then the dotenv values.
func lookupChain(env lookupFunc, dotenv map[string]string) lookupFunc {
	return func(key string) (string, bool) {
		if v, ok := env(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
}

func applyEnv(cfg *Config, lookup lookupFunc) error {
	if v, ok := lookup(EnvBinaryPath); ok && v != "" {
		cfg.BinaryPath = v
	}
	if v, ok := lookup(EnvStoreTimeout); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvStoreTimeout, err)
		}
		cfg.Store.Timeout = d
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v, ok := lookup(EnvCacheEnabled); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvCacheEnabled, err)
		}
		cfg.Cache.Enabled = b
	}
	if v, ok := lookup(EnvTelemetry); ok && v != "" {
		cfg.Telemetry.Exporter = v
	}
	return nil
}
