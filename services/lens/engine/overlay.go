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
	"github.com/AleutianAI/antlens/services/lens/coord"
	"github.com/AleutianAI/antlens/services/lens/store"
)

// LabelMaxLength is the longest inline label, in runes.
const LabelMaxLength = 80

const ellipsis = "..."

// Decoration is a zero-width overlay anchored at the end of a line.
type Decoration struct {
	// Line is the 0-based editor line.
	Line int `json:"line"`

	// Character is the end-of-line offset in the host's position unit.
	Character int `json:"character"`

	// Label is the inline text, at most LabelMaxLength runes.
	Label string `json:"label"`

	// Hover is the full annotation text, rendered as markdown.
	Hover string `json:"hover"`
}

// Truncate shortens s to at most max runes, ending in "..." when cut.
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= len(ellipsis) {
		return string(r[:max])
	}
	return string(r[:max-len(ellipsis)]) + ellipsis
}

// Render maps annotations onto decorations for ed.
//
// Description:
//
//	Every annotation becomes its own decoration, including several on one
//	row. Annotations whose row does not exist in the editor are dropped and
//	returned separately so the caller can log them.
//
// Inputs:
//
//	annotations - Store results for the editor's file.
//	ed - Editor providing line lengths.
//
// Outputs:
//
//	[]Decoration - Decorations in store order. Never nil.
//	[]store.Annotation - Annotations that could not be placed.
func Render(annotations []store.Annotation, ed Editor) ([]Decoration, []store.Annotation) {
	decorations := make([]Decoration, 0, len(annotations))
	var skipped []store.Annotation

	for _, a := range annotations {
		if a.Row < 1 {
			skipped = append(skipped, a)
			continue
		}
		line := coord.ToEditorLine(a.Row)
		end, ok := ed.LineEnd(line)
		if !ok {
			skipped = append(skipped, a)
			continue
		}
		decorations = append(decorations, Decoration{
			Line:      line,
			Character: end,
			Label:     Truncate(a.Text, LabelMaxLength),
			Hover:     a.Text,
		})
	}
	return decorations, skipped
}
