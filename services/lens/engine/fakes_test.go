// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/AleutianAI/antlens/services/lens/config"
	"github.com/AleutianAI/antlens/services/lens/store"
)

const testRoot = "/work/proj"

// fakeEditor is an in-memory document.
type fakeEditor struct {
	path   string
	rev    int
	lines  []string
	cursor int
}

func newEditor(rel string, lines ...string) *fakeEditor {
	return &fakeEditor{path: testRoot + "/" + rel, lines: lines, cursor: -1}
}

func (f *fakeEditor) ID() string    { return "file://" + f.path }
func (f *fakeEditor) Path() string  { return f.path }
func (f *fakeEditor) Revision() int { return f.rev }

func (f *fakeEditor) LineEnd(line int) (int, bool) {
	if line < 0 || line >= len(f.lines) {
		return 0, false
	}
	return utf8.RuneCountInString(f.lines[line]), true
}

func (f *fakeEditor) CursorLine() (int, bool) {
	if f.cursor < 0 {
		return 0, false
	}
	return f.cursor, true
}

// fakeHost records everything the engine asks of the editor.
type fakeHost struct {
	mu          sync.Mutex
	visible     []Editor
	active      Editor
	decorations map[string][]Decoration
	setCalls    int
	messages    []string

	promptText  string
	promptOK    bool
	promptErr   error
	promptCalls int
}

func newHost(editors ...Editor) *fakeHost {
	h := &fakeHost{
		visible:     editors,
		decorations: make(map[string][]Decoration),
		promptOK:    true,
	}
	if len(editors) > 0 {
		h.active = editors[0]
	}
	return h
}

func (h *fakeHost) VisibleEditors() []Editor {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Editor(nil), h.visible...)
}

func (h *fakeHost) ActiveEditor() (Editor, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active, h.active != nil
}

func (h *fakeHost) SetDecorations(_ context.Context, ed Editor, decorations []Decoration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.setCalls++
	h.decorations[ed.ID()] = append([]Decoration(nil), decorations...)
	return nil
}

func (h *fakeHost) ShowInformation(_ context.Context, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, message)
}

func (h *fakeHost) PromptInput(context.Context, string) (string, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.promptCalls++
	return h.promptText, h.promptOK, h.promptErr
}

func (h *fakeHost) decos(ed Editor) []Decoration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.decorations[ed.ID()]
}

func (h *fakeHost) shown() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.messages...)
}

// fakeStore is an in-memory store that behaves like the real binary.
type fakeStore struct {
	mu          sync.Mutex
	annotations map[string][]store.Annotation
	listErr     error
	mutateErr   error
	listCalls   int
	mutations   []string

	// listHook runs before each list returns; it may block.
	listHook func(call int)
}

func newFakeStore() *fakeStore {
	return &fakeStore{annotations: make(map[string][]store.Annotation)}
}

func (s *fakeStore) put(rel string, row int, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.annotations[rel] = append(s.annotations[rel], store.Annotation{Text: text, Source: rel, Row: row})
}

func (s *fakeStore) List(_ context.Context, rel string) ([]store.Annotation, error) {
	s.mu.Lock()
	s.listCalls++
	call := s.listCalls
	hook := s.listHook
	err := s.listErr
	out := append([]store.Annotation{}, s.annotations[rel]...)
	s.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	if err != nil {
		return []store.Annotation{}, err
	}
	return out, nil
}

func (s *fakeStore) Add(_ context.Context, rel string, row int, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mutations = append(s.mutations, fmt.Sprintf("add %s:%d %s", rel, row, text))
	if s.mutateErr != nil {
		return "", s.mutateErr
	}
	s.annotations[rel] = append(s.annotations[rel], store.Annotation{Text: text, Source: rel, Row: row})
	return fmt.Sprintf("Successfully added annotation to %s:%d", rel, row), nil
}

func (s *fakeStore) Remove(_ context.Context, rel string, row int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mutations = append(s.mutations, fmt.Sprintf("remove %s:%d", rel, row))
	if s.mutateErr != nil {
		return "", s.mutateErr
	}
	kept := s.annotations[rel][:0]
	for _, a := range s.annotations[rel] {
		if a.Row != row {
			kept = append(kept, a)
		}
	}
	s.annotations[rel] = kept
	return fmt.Sprintf("Successfully removed annotation from %s:%d", rel, row), nil
}

func (s *fakeStore) lists() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCalls
}

func (s *fakeStore) muts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.mutations...)
}

// fakeCache records invalidations and never caches.
type fakeCache struct {
	mu            sync.Mutex
	invalidated   []string
	invalidateAll int
}

func (c *fakeCache) Get(ctx context.Context, _ string, _ int,
	fetch func(context.Context) ([]store.Annotation, error)) ([]store.Annotation, error) {
	return fetch(ctx)
}

func (c *fakeCache) Invalidate(rel string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, rel)
	return nil
}

func (c *fakeCache) InvalidateAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateAll++
	return nil
}

func rejected(op, out string) error {
	return &store.Failure{Kind: store.FailureRejected, Op: op, ExitCode: 1, Output: out}
}

// newTestEngine wires an engine to a fake host and store.
func newTestEngine(host *fakeHost, st *fakeStore, opts ...Option) *Engine {
	opts = append([]Option{
		WithStoreFactory(func(store.Config, *slog.Logger) StoreClient { return st }),
	}, opts...)
	e, err := New(host, config.Default(testRoot), opts...)
	if err != nil {
		panic(err)
	}
	return e
}
