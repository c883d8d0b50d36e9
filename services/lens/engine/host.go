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

	"github.com/AleutianAI/antlens/services/lens/store"
)

// =============================================================================
// HOST CAPABILITIES
// =============================================================================

// Editor is one open document as the host sees it.
//
// Lines are 0-based. Character offsets are in whatever unit the host uses
// for positions; the engine only passes them back.
type Editor interface {
	// ID identifies the editor. For document hosts this is the document URI.
	ID() string

	// Path is the absolute filesystem path of the document.
	Path() string

	// Revision changes whenever the document content changes.
	Revision() int

	// LineEnd returns the character offset of the end of line. ok is false
	// when the line does not exist.
	LineEnd(line int) (character int, ok bool)

	// CursorLine returns the last known cursor line, if any.
	CursorLine() (line int, ok bool)
}

// Host is the editor the engine paints into.
//
// Thread Safety:
//
//	Implementations must be safe for concurrent use. The engine calls Host
//	methods from whatever goroutine runs the triggering operation.
type Host interface {
	// VisibleEditors returns the editors currently on screen.
	VisibleEditors() []Editor

	// ActiveEditor returns the focused editor, if any.
	ActiveEditor() (Editor, bool)

	// SetDecorations replaces the whole decoration set of an editor.
	SetDecorations(ctx context.Context, ed Editor, decorations []Decoration) error

	// ShowInformation shows a non-blocking informational message.
	ShowInformation(ctx context.Context, message string)

	// PromptInput asks for one line of text. ok is false when the user cancels.
	PromptInput(ctx context.Context, prompt string) (text string, ok bool, err error)
}

// StoreClient is the subset of *store.Client the engine drives.
type StoreClient interface {
	List(ctx context.Context, relPath string) ([]store.Annotation, error)
	Add(ctx context.Context, relPath string, row int, text string) (string, error)
	Remove(ctx context.Context, relPath string, row int) (string, error)
}

// AnnotationCache caches list results per (file, revision).
//
// Get must call fetch on a miss and must not cache a failed fetch.
type AnnotationCache interface {
	Get(ctx context.Context, relPath string, revision int,
		fetch func(context.Context) ([]store.Annotation, error)) ([]store.Annotation, error)
	Invalidate(relPath string) error
	InvalidateAll() error
}
