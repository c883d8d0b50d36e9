// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine keeps an editor's annotation overlay in sync with the store.
//
// The engine owns the visibility switch, turns store rows into decorations,
// answers hover queries with add/remove command links and runs the
// mutation commands. It talks to the editor only through Host and Editor,
// so the LSP server and the terminal CLI drive the same code.
//
// Every store call blocks; hosts call engine methods off their event loop.
// Refreshes carry a per-editor sequence number and a result is applied only
// if it is still the latest request for that editor and the overlay is
// still visible.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/AleutianAI/antlens/services/lens/config"
	"github.com/AleutianAI/antlens/services/lens/coord"
	"github.com/AleutianAI/antlens/services/lens/store"
)

// PromptText is the input prompt of the add command.
const PromptText = "Annotation text"

// StoreFactory builds the store client for a configuration.
type StoreFactory func(cfg store.Config, logger *slog.Logger) StoreClient

func defaultStoreFactory(cfg store.Config, logger *slog.Logger) StoreClient {
	return store.NewClient(cfg, store.WithLogger(logger))
}

// Engine is the annotation synchronization engine.
//
// Thread Safety:
//
//	Safe for concurrent use. Store calls run without holding engine locks;
//	applying a result and hiding the overlay are serialized by applyMu.
type Engine struct {
	host       Host
	visibility *Visibility
	seq        *sequencer
	cache      AnnotationCache
	newStore   StoreFactory
	logger     *slog.Logger

	mu     sync.RWMutex
	client StoreClient
	root   string

	// applyMu orders "check sequence, then paint" against "hide, then clear".
	applyMu sync.Mutex

	// painted holds editors with a non-empty decoration set. Guarded by applyMu.
	painted map[string]Editor
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithVisibility injects the visibility cell. Defaults to a new Hidden cell.
func WithVisibility(v *Visibility) Option {
	return func(e *Engine) {
		if v != nil {
			e.visibility = v
		}
	}
}

// WithCache enables list caching.
func WithCache(c AnnotationCache) Option {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithStoreFactory replaces how store clients are built.
func WithStoreFactory(f StoreFactory) Option {
	return func(e *Engine) {
		if f != nil {
			e.newStore = f
		}
	}
}

// New creates an engine for host.
//
// Description:
//
//	Builds the store client from cfg. The overlay starts Hidden unless an
//	injected Visibility says otherwise.
//
// Inputs:
//
//	host - The editor to paint into. Must not be nil.
//	cfg - Resolved configuration. cfg.SourceRoot must be set.
//	opts - Optional settings.
//
// Outputs:
//
//	*Engine - The engine.
//	error - config.ErrConfigurationMissing when no source root is known.
func New(host Host, cfg config.Config, opts ...Option) (*Engine, error) {
	if host == nil {
		return nil, errors.New("host must not be nil")
	}
	if cfg.SourceRoot == "" {
		return nil, config.ErrConfigurationMissing
	}

	e := &Engine{
		host:       host,
		visibility: &Visibility{},
		seq:        newSequencer(),
		newStore:   defaultStoreFactory,
		painted:    make(map[string]Editor),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.root = cfg.SourceRoot
	e.client = e.newStore(cfg.StoreConfig(), e.logger)
	return e, nil
}

// Visible reports whether the overlay is shown.
func (e *Engine) Visible() bool {
	return e.visibility.Visible()
}

// Root returns the current source root.
func (e *Engine) Root() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.root
}

// =============================================================================
// VISIBILITY
// =============================================================================

// Toggle flips visibility and returns the new value.
//
// Description:
//
//	Entering Visible refreshes every visible editor one after another.
//	Entering Hidden clears every visible editor, and every editor painted
//	while it was on screen, without calling the store. Refreshes still in
//	flight are invalidated.
//
// Inputs:
//
//	ctx - Context for the refresh store calls.
//
// Outputs:
//
//	bool - True when the overlay is now visible.
func (e *Engine) Toggle(ctx context.Context) bool {
	e.applyMu.Lock()
	visible := e.visibility.Flip()
	if !visible {
		for _, ed := range e.clearTargets() {
			e.seq.next(ed.ID())
			if err := e.host.SetDecorations(ctx, ed, nil); err != nil {
				e.logger.Warn("Failed to clear decorations",
					slog.String("editor", ed.ID()),
					slog.String("error", err.Error()),
				)
			}
		}
		e.painted = make(map[string]Editor)
	}
	e.applyMu.Unlock()

	e.logger.Debug("Overlay toggled", slog.Bool("visible", visible))
	if visible {
		e.RefreshVisible(ctx)
	}
	return visible
}

// clearTargets returns the visible editors followed by any painted editor
// that is no longer visible. Caller holds applyMu.
func (e *Engine) clearTargets() []Editor {
	targets := e.host.VisibleEditors()
	seen := make(map[string]bool, len(targets))
	for _, ed := range targets {
		seen[ed.ID()] = true
	}
	for id, ed := range e.painted {
		if !seen[id] {
			targets = append(targets, ed)
		}
	}
	return targets
}

// RefreshVisible refreshes every visible editor sequentially.
func (e *Engine) RefreshVisible(ctx context.Context) {
	for _, ed := range e.host.VisibleEditors() {
		if ctx.Err() != nil {
			return
		}
		_ = e.RefreshAnnotations(ctx, ed)
	}
}

// OnVisibleEditorsChanged refreshes editors that just became visible.
func (e *Engine) OnVisibleEditorsChanged(ctx context.Context, editors []Editor) {
	if !e.visibility.Visible() {
		return
	}
	for _, ed := range editors {
		if ctx.Err() != nil {
			return
		}
		_ = e.RefreshAnnotations(ctx, ed)
	}
}

// Forget drops per-editor state after the host closed an editor.
func (e *Engine) Forget(editorID string) {
	e.seq.forget(editorID)
	e.applyMu.Lock()
	delete(e.painted, editorID)
	e.applyMu.Unlock()
}

// =============================================================================
// RENDERING
// =============================================================================

// RefreshAnnotations replaces the decorations of ed with the store's view.
//
// Description:
//
//	No-op while Hidden. Otherwise lists the file and replaces the whole
//	decoration set. Spawn failures, timeouts and malformed output render as
//	no annotations. A store rejection shows the store's message and leaves
//	the current decorations untouched. A result that is no longer the
//	latest request for ed, or that arrives after the overlay was hidden, is
//	discarded.
//
// Inputs:
//
//	ctx - Context for the store call.
//	ed - Editor to refresh.
//
// Outputs:
//
//	error - The store failure for a rejection, else nil.
func (e *Engine) RefreshAnnotations(ctx context.Context, ed Editor) error {
	if !e.visibility.Visible() {
		return nil
	}
	seq := e.seq.next(ed.ID())

	rel, err := e.relative(ed.Path())
	if err != nil {
		e.logger.Debug("Editor outside annotation root",
			slog.String("path", ed.Path()),
			slog.String("error", err.Error()),
		)
		return nil
	}

	annotations, err := e.list(ctx, rel, ed.Revision())
	if err != nil {
		if msg, ok := store.RejectedOutput(err); ok {
			e.show(ctx, msg)
			return err
		}
		e.logger.Warn("Annotation refresh failed, rendering none",
			slog.String("path", rel),
			slog.String("error", err.Error()),
		)
		annotations = nil
	}

	decorations, skipped := Render(annotations, ed)
	for _, a := range skipped {
		e.logger.Warn("Annotation row not in document",
			slog.String("path", rel),
			slog.Int("row", a.Row),
		)
	}

	e.applyMu.Lock()
	defer e.applyMu.Unlock()
	if !e.seq.current(ed.ID(), seq) || !e.visibility.Visible() {
		e.logger.Debug("Discarding stale refresh",
			slog.String("editor", ed.ID()),
			slog.Uint64("seq", seq),
		)
		return nil
	}
	if err := e.host.SetDecorations(ctx, ed, decorations); err != nil {
		return fmt.Errorf("set decorations for %s: %w", ed.ID(), err)
	}
	if len(decorations) > 0 {
		e.painted[ed.ID()] = ed
	} else {
		delete(e.painted, ed.ID())
	}
	return nil
}

// =============================================================================
// MUTATIONS
// =============================================================================

// Add prompts for text and stores it at the target row.
//
// Description:
//
//	A nil args targets the active editor's cursor line. Cancelling or
//	entering empty text ends the command with no effect. Whitespace-only
//	text is stored as typed. The store's message
//	is shown whenever the store ran. On success the file's cache entries are
//	dropped and the active editor is refreshed.
//
// Inputs:
//
//	ctx - Context for the prompt and store call.
//	args - Target row, or nil.
//
// Outputs:
//
//	error - ErrNoActiveTarget, coord.ErrOutsideRoot, a prompt error, or
//	the store failure. Each has already been reported or logged.
func (e *Engine) Add(ctx context.Context, args *MutationArgs) error {
	target, err := e.target(ctx, args)
	if err != nil {
		return err
	}

	text, ok, err := e.host.PromptInput(ctx, PromptText)
	if err != nil {
		return fmt.Errorf("prompt for annotation text: %w", err)
	}
	if !ok || text == "" {
		return nil
	}

	rel, err := e.relativeFromURI(ctx, target.URI)
	if err != nil {
		return err
	}

	msg, err := e.storeClient().Add(ctx, rel, target.Row, text)
	return e.afterMutation(ctx, "add", rel, msg, err)
}

// Remove deletes the annotation at the target row.
//
// Same flow as Add without the prompt.
func (e *Engine) Remove(ctx context.Context, args *MutationArgs) error {
	target, err := e.target(ctx, args)
	if err != nil {
		return err
	}

	rel, err := e.relativeFromURI(ctx, target.URI)
	if err != nil {
		return err
	}

	msg, err := e.storeClient().Remove(ctx, rel, target.Row)
	return e.afterMutation(ctx, "remove", rel, msg, err)
}

func (e *Engine) afterMutation(ctx context.Context, op, rel, msg string, err error) error {
	if err != nil {
		if out, ok := store.RejectedOutput(err); ok {
			e.show(ctx, out)
			return err
		}
		e.logger.Error("Annotation command failed",
			slog.String("op", op),
			slog.String("path", rel),
			slog.String("error", err.Error()),
		)
		return err
	}

	e.show(ctx, msg)
	e.invalidate(rel)

	if active, ok := e.host.ActiveEditor(); ok {
		_ = e.RefreshAnnotations(ctx, active)
	}
	return nil
}

// =============================================================================
// COMMAND DISPATCH
// =============================================================================

// Commands returns the dispatch table.
func (e *Engine) Commands() map[CommandID]CommandHandler {
	return map[CommandID]CommandHandler{
		CommandToggle: func(ctx context.Context, _ *MutationArgs) error {
			e.Toggle(ctx)
			return nil
		},
		CommandAdd:    e.Add,
		CommandRemove: e.Remove,
	}
}

// Execute decodes raw arguments and runs the command id.
func (e *Engine) Execute(ctx context.Context, id CommandID, raw json.RawMessage) error {
	handler, ok := e.Commands()[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, id)
	}
	args, err := DecodeArgs(raw)
	if err != nil {
		return err
	}
	return handler(ctx, args)
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// Reconfigure applies a new configuration and forces a full re-render.
//
// Description:
//
//	Swaps the store client, drops every cached list and flips visibility
//	twice. The visible value is unchanged afterwards, but every visible
//	editor has been cleared and repainted (or repainted and cleared).
//
// Inputs:
//
//	ctx - Context for the re-render.
//	cfg - The new configuration.
//
// Outputs:
//
//	error - config.ErrConfigurationMissing when cfg has no root.
func (e *Engine) Reconfigure(ctx context.Context, cfg config.Config) error {
	if cfg.SourceRoot == "" {
		e.show(ctx, MsgMissingRoot)
		return config.ErrConfigurationMissing
	}

	client := e.newStore(cfg.StoreConfig(), e.logger)
	e.mu.Lock()
	e.client = client
	e.root = cfg.SourceRoot
	e.mu.Unlock()

	if e.cache != nil {
		if err := e.cache.InvalidateAll(); err != nil {
			e.logger.Warn("Failed to drop annotation cache", slog.String("error", err.Error()))
		}
	}

	e.logger.Info("Configuration applied",
		slog.String("root", cfg.SourceRoot),
		slog.String("binary", cfg.BinaryPath),
	)

	e.Toggle(ctx)
	e.Toggle(ctx)
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (e *Engine) storeClient() StoreClient {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.client
}

func (e *Engine) relative(absPath string) (string, error) {
	return coord.ToStoreRelative(absPath, e.Root())
}

// relativeFromURI resolves a command target and reports failures to the user.
func (e *Engine) relativeFromURI(ctx context.Context, uri string) (string, error) {
	path, err := coord.PathFromURI(uri)
	if err != nil {
		e.logger.Warn("Unusable command target", slog.String("uri", uri), slog.String("error", err.Error()))
		return "", fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	rel, err := e.relative(path)
	if err != nil {
		e.show(ctx, MsgOutsideRoot)
		return "", err
	}
	return rel, nil
}

// target fills in missing arguments from the active editor.
func (e *Engine) target(ctx context.Context, args *MutationArgs) (MutationArgs, error) {
	if args != nil {
		return *args, nil
	}
	ed, ok := e.host.ActiveEditor()
	if !ok {
		e.show(ctx, MsgNoActiveEditor)
		return MutationArgs{}, ErrNoActiveTarget
	}
	line, ok := ed.CursorLine()
	if !ok {
		line = 0
	}
	return MutationArgs{URI: ed.ID(), Row: coord.ToStoreRow(line)}, nil
}

// list fetches annotations, through the cache when one is configured.
func (e *Engine) list(ctx context.Context, rel string, revision int) ([]store.Annotation, error) {
	client := e.storeClient()
	if e.cache == nil {
		return client.List(ctx, rel)
	}
	return e.cache.Get(ctx, rel, revision, func(ctx context.Context) ([]store.Annotation, error) {
		return client.List(ctx, rel)
	})
}

func (e *Engine) invalidate(rel string) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Invalidate(rel); err != nil {
		e.logger.Warn("Failed to invalidate cached annotations",
			slog.String("path", rel),
			slog.String("error", err.Error()),
		)
	}
}

func (e *Engine) show(ctx context.Context, msg string) {
	if msg == "" {
		return
	}
	e.host.ShowInformation(ctx, msg)
}
