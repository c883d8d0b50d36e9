// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache memoizes store list results per (file, document revision).
//
// Entries live in an in-memory BadgerDB with a TTL. Concurrent misses for
// the same key share one store call. Failed fetches are never cached.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"golang.org/x/sync/singleflight"

	lensbadger "github.com/AleutianAI/antlens/services/lens/storage/badger"
	"github.com/AleutianAI/antlens/services/lens/store"
)

const keyPrefix = "ann/"

// FetchFunc loads annotations on a miss.
type FetchFunc func(ctx context.Context) ([]store.Annotation, error)

// Config configures an AnnotationCache.
type Config struct {
	// TTL bounds how long an entry is served. Zero keeps entries until
	// invalidated.
	TTL time.Duration

	// Logger receives cache and BadgerDB logs. May be nil.
	Logger *slog.Logger
}

// Stats reports cache effectiveness.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// AnnotationCache caches store list results.
//
// Thread Safety:
//
//	Safe for concurrent use. Invalidation bumps a per-file generation so a
//	fetch that started before the invalidation never writes its result back.
type AnnotationCache struct {
	db     *badger.DB
	ttl    time.Duration
	flight singleflight.Group
	logger *slog.Logger

	mu    sync.Mutex
	gens  map[string]uint64
	epoch uint64

	hits   int64
	misses int64
}

// New opens an in-memory cache.
//
// Description:
//
//	Opens an in-memory BadgerDB. Nothing is persisted; the cache is gone
//	when Close is called or the process exits.
//
// Inputs:
//
//	cfg - Cache configuration.
//
// Outputs:
//
//	*AnnotationCache - The cache. Caller must call Close().
//	error - Non-nil if the backing database cannot be opened.
func New(cfg Config) (*AnnotationCache, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	db, err := lensbadger.Open(lensbadger.Config{Logger: cfg.Logger, NumVersionsToKeep: 1})
	if err != nil {
		return nil, fmt.Errorf("open annotation cache: %w", err)
	}

	return &AnnotationCache{
		db:     db,
		ttl:    cfg.TTL,
		logger: logger,
		gens:   make(map[string]uint64),
	}, nil
}

// Get returns the annotations of relPath at revision, calling fetch on a miss.
//
// Description:
//
//	A hit is served from BadgerDB. On a miss, concurrent callers for the
//	same (file, revision, generation) share one fetch. A successful fetch
//	is stored unless the file was invalidated while it ran.
//
// Inputs:
//
//	ctx - Context passed to fetch.
//	relPath - Root-relative file path.
//	revision - Document revision the caller is looking at.
//	fetch - Loads annotations from the store.
//
// Outputs:
//
//	[]store.Annotation - Annotations for the file.
//	error - The fetch error, which is not cached.
func (c *AnnotationCache) Get(ctx context.Context, relPath string, revision int, fetch func(context.Context) ([]store.Annotation, error)) ([]store.Annotation, error) {
	key := entryKey(relPath, revision)

	if anns, ok := c.lookup(key); ok {
		atomic.AddInt64(&c.hits, 1)
		recordLookup(ctx, "hit")
		return anns, nil
	}
	atomic.AddInt64(&c.misses, 1)
	recordLookup(ctx, "miss")

	gen := c.generation(relPath)
	flightKey := string(key) + "@" + gen

	result, err, _ := c.flight.Do(flightKey, func() (interface{}, error) {
		anns, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.storeIfCurrent(relPath, gen, key, anns)
		return anns, nil
	})
	if err != nil {
		return []store.Annotation{}, err
	}
	return result.([]store.Annotation), nil
}

// Invalidate drops every cached revision of relPath.
func (c *AnnotationCache) Invalidate(relPath string) error {
	c.mu.Lock()
	c.gens[relPath]++
	c.mu.Unlock()

	prefix := filePrefix(relPath)
	var keys [][]byte
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan cached annotations for %s: %w", relPath, err)
	}
	if len(keys) == 0 {
		return nil
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("invalidate cached annotations for %s: %w", relPath, err)
	}
	return nil
}

// InvalidateAll drops every entry.
func (c *AnnotationCache) InvalidateAll() error {
	c.mu.Lock()
	c.epoch++
	c.gens = make(map[string]uint64)
	c.mu.Unlock()

	if err := c.db.DropAll(); err != nil {
		return fmt.Errorf("drop annotation cache: %w", err)
	}
	return nil
}

// Stats returns hit and miss counts.
func (c *AnnotationCache) Stats() Stats {
	return Stats{
		Hits:   atomic.LoadInt64(&c.hits),
		Misses: atomic.LoadInt64(&c.misses),
	}
}

// Close releases the backing database.
func (c *AnnotationCache) Close() error {
	return c.db.Close()
}

func (c *AnnotationCache) generation(relPath string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generationLocked(relPath)
}

func (c *AnnotationCache) generationLocked(relPath string) string {
	return strconv.FormatUint(c.epoch, 10) + "." + strconv.FormatUint(c.gens[relPath], 10)
}

// storeIfCurrent writes anns only if no invalidation happened since gen was
// read. Invalidations bump the generation under the same lock and then
// delete, so a write that wins the lock is removed by the scan that follows.
func (c *AnnotationCache) storeIfCurrent(relPath, gen string, key []byte, anns []store.Annotation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generationLocked(relPath) != gen {
		return
	}
	c.store(key, anns)
}

func (c *AnnotationCache) lookup(key []byte) ([]store.Annotation, bool) {
	var anns []store.Annotation
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &anns)
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			c.logger.Warn("Annotation cache read failed", slog.String("error", err.Error()))
		}
		return nil, false
	}
	if anns == nil {
		anns = []store.Annotation{}
	}
	return anns, true
}

func (c *AnnotationCache) store(key []byte, anns []store.Annotation) {
	val, err := json.Marshal(anns)
	if err != nil {
		c.logger.Warn("Annotation cache encode failed", slog.String("error", err.Error()))
		return
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(key, val)
		if c.ttl > 0 {
			e = e.WithTTL(c.ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		c.logger.Warn("Annotation cache write failed", slog.String("error", err.Error()))
	}
}

func filePrefix(relPath string) []byte {
	return []byte(keyPrefix + relPath + "\x00")
}

func entryKey(relPath string, revision int) []byte {
	return append(filePrefix(relPath), strconv.Itoa(revision)...)
}
