// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badger opens the in-memory BadgerDB instances used for short-lived
// caches.
//
// Nothing is written to disk: store answers must not outlive the editor
// session, so only in-memory mode is offered.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package badger

import (
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

// Config holds configuration for an in-memory BadgerDB instance.
type Config struct {
	// Logger receives BadgerDB's internal logs.
	// If nil, BadgerDB's internal logging is disabled.
	Logger *slog.Logger

	// NumVersionsToKeep is the number of versions to keep per key.
	// Default: 1.
	NumVersionsToKeep int
}

// DefaultConfig returns the configuration used by the annotation cache.
func DefaultConfig() Config {
	return Config{
		NumVersionsToKeep: 1,
	}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Open creates an in-memory BadgerDB instance.
//
// Description:
//
//	Opens BadgerDB with InMemory set. Data is lost when the database is
//	closed.
//
// Inputs:
//
//	cfg - Database configuration.
//
// Outputs:
//
//	*badger.DB - The opened database. Caller must call Close() when done.
//	error - Non-nil if the database cannot be opened.
//
// Thread Safety: The returned *badger.DB is safe for concurrent use.
func Open(cfg Config) (*badger.DB, error) {
	versions := cfg.NumVersionsToKeep
	if versions <= 0 {
		versions = 1
	}

	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithSyncWrites(false).
		WithNumVersionsToKeep(versions)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open in-memory badger database: %w", err)
	}
	return db, nil
}

// OpenInMemory opens an in-memory database with DefaultConfig.
func OpenInMemory() (*badger.DB, error) {
	return Open(DefaultConfig())
}
