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
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses bursts of file events into one reload.
const DefaultDebounce = 100 * time.Millisecond

// Watcher reloads the configuration when its files change.
//
// Description:
//
//	Watches the directory holding the config file and the source root for
//	writes to the config file or .env. After a quiet period the
//	configuration is reloaded with Load and every OnChange callback runs
//	with the new value. A reload that fails is logged and the previous
//	configuration stays in effect.
//
// Thread Safety:
//
//	Safe for concurrent use. Start should only be called once. No callback
//	runs after Stop returns.
type Watcher struct {
	root     string
	file     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	mu       sync.Mutex
	onChange []func(Config)
	timer    *time.Timer
	stopped  bool
	running  sync.WaitGroup
}

// NewWatcher creates a watcher for the configuration of root.
//
// Inputs:
//
//	root - Absolute source root.
//	file - Explicit config file, or "" to watch the FileNames in root.
//	logger - Logger for reload failures. May be nil.
//
// Outputs:
//
//	*Watcher - Ready-to-start watcher.
//	error - Non-nil if the directories cannot be watched.
func NewWatcher(root, file string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}

	dirs := map[string]struct{}{root: {}}
	if file != "" {
		dirs[filepath.Dir(file)] = struct{}{}
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	return &Watcher{
		root:     root,
		file:     file,
		debounce: DefaultDebounce,
		watcher:  fw,
		logger:   logger,
	}, nil
}

// OnChange registers a callback for reloaded configurations.
func (w *Watcher) OnChange(cb func(Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, cb)
}

// Start processes file events until ctx is cancelled. Run it in a goroutine.
func (w *Watcher) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			w.schedule()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Config watcher error", slog.String("error", err.Error()))
		}
	}
}

// Stop cancels any pending reload, waits for a running one to finish and
// releases the underlying watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	w.running.Wait()
	return w.watcher.Close()
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
		return false
	}

	name := filepath.Clean(event.Name)
	if name == filepath.Join(w.root, EnvFileName) {
		return true
	}
	if w.file != "" {
		return name == filepath.Clean(w.file)
	}
	for _, candidate := range FileNames {
		if name == filepath.Join(w.root, candidate) {
			return true
		}
	}
	return false
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

// fire runs a scheduled reload unless Stop got there first.
func (w *Watcher) fire() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.running.Add(1)
	w.mu.Unlock()

	defer w.running.Done()
	w.reload()
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.root, w.file)
	if err != nil {
		w.logger.Warn("Config reload failed, keeping previous configuration",
			slog.String("root", w.root),
			slog.String("error", err.Error()),
		)
		return
	}

	w.mu.Lock()
	callbacks := append([]func(Config){}, w.onChange...)
	w.mu.Unlock()

	w.logger.Info("Configuration reloaded", slog.String("root", w.root))
	for _, cb := range callbacks {
		cb(cfg)
	}
}
