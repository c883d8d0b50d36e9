// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/AleutianAI/antlens/pkg/ux"
	"github.com/AleutianAI/antlens/services/lens/coord"
	"github.com/AleutianAI/antlens/services/lens/engine"
)

// fileEditor is a file read from disk. Character offsets are runes, which is
// what a terminal column count needs.
type fileEditor struct {
	path     string
	uri      string
	revision int
	lines    []string
	cursor   int
}

// openFileEditor reads path (relative to the working directory or absolute).
func openFileEditor(path string) (*fileEditor, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(string(data), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return &fileEditor{
		path:     abs,
		uri:      coord.URIFromPath(abs),
		revision: int(info.ModTime().UnixNano()),
		lines:    lines,
		cursor:   -1,
	}, nil
}

func (f *fileEditor) ID() string    { return f.uri }
func (f *fileEditor) Path() string  { return f.path }
func (f *fileEditor) Revision() int { return f.revision }

func (f *fileEditor) LineEnd(line int) (int, bool) {
	if line < 0 || line >= len(f.lines) {
		return 0, false
	}
	return utf8.RuneCountInString(f.lines[line]), true
}

func (f *fileEditor) CursorLine() (int, bool) {
	if f.cursor < 0 {
		return 0, false
	}
	return f.cursor, true
}

// promptFunc asks for annotation text.
type promptFunc func(ctx context.Context, prompt string) (string, bool, error)

// terminalHost shows one file in the terminal.
//
// Decorations are collected rather than painted; commands print them once
// the engine is done.
type terminalHost struct {
	editor  *fileEditor
	printer *ux.Printer
	prompt  promptFunc

	mu          sync.Mutex
	decorations []engine.Decoration
	painted     bool
	messages    []string
}

var _ engine.Host = (*terminalHost)(nil)

func newTerminalHost(ed *fileEditor, printer *ux.Printer, prompt promptFunc) *terminalHost {
	if prompt == nil {
		prompt = func(ctx context.Context, p string) (string, bool, error) {
			return ux.PromptLine(ctx, p, "")
		}
	}
	return &terminalHost{editor: ed, printer: printer, prompt: prompt}
}

func (h *terminalHost) VisibleEditors() []engine.Editor {
	return []engine.Editor{h.editor}
}

func (h *terminalHost) ActiveEditor() (engine.Editor, bool) {
	return h.editor, true
}

func (h *terminalHost) SetDecorations(ctx context.Context, ed engine.Editor, decorations []engine.Decoration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.decorations = append([]engine.Decoration(nil), decorations...)
	h.painted = true
	return nil
}

func (h *terminalHost) ShowInformation(ctx context.Context, message string) {
	h.mu.Lock()
	h.messages = append(h.messages, message)
	h.mu.Unlock()
	h.printer.Info(message)
}

func (h *terminalHost) PromptInput(ctx context.Context, prompt string) (string, bool, error) {
	return h.prompt(ctx, prompt)
}

// Decorations returns the last painted set and whether anything was painted.
func (h *terminalHost) Decorations() ([]engine.Decoration, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]engine.Decoration(nil), h.decorations...), h.painted
}

// Messages returns every message shown so far.
func (h *terminalHost) Messages() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.messages...)
}
