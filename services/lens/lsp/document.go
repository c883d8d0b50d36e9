// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lsp

import (
	"sort"
	"strings"
	"sync"
	"unicode/utf16"

	"github.com/AleutianAI/antlens/services/lens/coord"
	"github.com/AleutianAI/antlens/services/lens/engine"
)

// Document is an open text document. It implements engine.Editor with
// character offsets in UTF-16 code units, the LSP position encoding.
type Document struct {
	uri  string
	path string

	mu      sync.RWMutex
	version int
	lines   []string
	cursor  int
	hasCur  bool
}

var _ engine.Editor = (*Document)(nil)

func newDocument(uri string, version int, text string) (*Document, error) {
	path, err := coord.PathFromURI(uri)
	if err != nil {
		return nil, err
	}
	d := &Document{uri: uri, path: path}
	d.setText(version, text)
	return d, nil
}

// ID returns the document URI.
func (d *Document) ID() string { return d.uri }

// Path returns the absolute file path.
func (d *Document) Path() string { return d.path }

// Revision returns the client's document version.
func (d *Document) Revision() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.version
}

// LineEnd returns the UTF-16 length of line.
func (d *Document) LineEnd(line int) (int, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if line < 0 || line >= len(d.lines) {
		return 0, false
	}
	return len(utf16.Encode([]rune(d.lines[line]))), true
}

// CursorLine returns the last line the client reported for this document.
func (d *Document) CursorLine() (int, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cursor, d.hasCur
}

// LineCount returns the number of lines.
func (d *Document) LineCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.lines)
}

func (d *Document) setText(version int, text string) {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}

	d.mu.Lock()
	d.version = version
	d.lines = lines
	d.mu.Unlock()
}

func (d *Document) setCursor(line int) {
	d.mu.Lock()
	d.cursor = line
	d.hasCur = true
	d.mu.Unlock()
}

// =============================================================================
// DOCUMENT SET
// =============================================================================

// documents tracks open documents and what the client has on screen.
//
// Until the client sends ant/didChangeVisibleEditors every open document
// counts as visible and the most recently touched one is active.
type documents struct {
	mu       sync.RWMutex
	byURI    map[string]*Document
	explicit bool
	visible  []string
	active   string
}

func newDocuments() *documents {
	return &documents{byURI: make(map[string]*Document)}
}

func (s *documents) open(d *Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byURI[d.uri] = d
	if !s.explicit {
		s.active = d.uri
	}
}

func (s *documents) get(uri string) (*Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.byURI[uri]
	return d, ok
}

func (s *documents) touch(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.explicit {
		if _, ok := s.byURI[uri]; ok {
			s.active = uri
		}
	}
}

func (s *documents) close(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byURI, uri)
	if s.active == uri {
		s.active = ""
	}
}

// isVisible reports whether uri is on screen.
func (s *documents) isVisible(uri string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.explicit {
		return true
	}
	for _, u := range s.visible {
		if u == uri {
			return true
		}
	}
	return false
}

func (s *documents) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byURI)
}

// setVisible replaces the on-screen set and returns the documents that were
// not on screen before.
func (s *documents) setVisible(uris []string, active string) []engine.Editor {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := make(map[string]bool, len(s.visible))
	if s.explicit {
		for _, u := range s.visible {
			before[u] = true
		}
	}

	s.explicit = true
	s.visible = append([]string(nil), uris...)
	s.active = active

	var added []engine.Editor
	for _, u := range uris {
		if before[u] {
			continue
		}
		if d, ok := s.byURI[u]; ok {
			added = append(added, d)
		}
	}
	return added
}

func (s *documents) visibleEditors() []engine.Editor {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []engine.Editor
	if s.explicit {
		for _, u := range s.visible {
			if d, ok := s.byURI[u]; ok {
				out = append(out, d)
			}
		}
		return out
	}

	uris := make([]string, 0, len(s.byURI))
	for u := range s.byURI {
		uris = append(uris, u)
	}
	sort.Strings(uris)
	for _, u := range uris {
		out = append(out, s.byURI[u])
	}
	return out
}

func (s *documents) activeEditor() (*Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == "" {
		return nil, false
	}
	d, ok := s.byURI[s.active]
	return d, ok
}
