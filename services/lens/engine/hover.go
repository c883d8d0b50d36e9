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

	"github.com/AleutianAI/antlens/services/lens/coord"
	"github.com/AleutianAI/antlens/services/lens/store"
)

// Hover is the actionable content shown when hovering a line.
type Hover struct {
	// Action is CommandRemove when the row has an annotation, else CommandAdd.
	Action CommandID

	// Args targets the hovered row.
	Args MutationArgs

	// Annotation is the first annotation on the row, nil for an add action.
	Annotation *store.Annotation

	// Link is the encoded command link for Action.
	Link string

	// Markdown is the rendered hover body.
	Markdown string
}

// BuildHover decides the hover action for row of the document uri.
//
// The first annotation whose row matches wins; exactly one action is
// always produced.
func BuildHover(uri string, row int, annotations []store.Annotation) (*Hover, error) {
	h := &Hover{
		Action: CommandAdd,
		Args:   MutationArgs{URI: uri, Row: row},
	}
	for i := range annotations {
		if annotations[i].Row == row {
			a := annotations[i]
			h.Action = CommandRemove
			h.Annotation = &a
			break
		}
	}

	link, err := CommandLink(h.Action, h.Args)
	if err != nil {
		return nil, err
	}
	h.Link = link

	if h.Annotation != nil {
		h.Markdown = fmt.Sprintf("%s\n\n[Remove annotation](%s)", h.Annotation.Text, link)
	} else {
		h.Markdown = fmt.Sprintf("[Add annotation](%s)", link)
	}
	return h, nil
}

// Hover answers a hover query at a 0-based line of ed.
//
// Description:
//
//	Hidden returns nil without calling the store. Visible lists the file and
//	offers remove when the row carries an annotation, add otherwise. A store
//	rejection shows the store's message and returns nil. Any other store
//	failure counts as "no annotations".
//
// Inputs:
//
//	ctx - Context for cancellation.
//	ed - The hovered editor.
//	line - 0-based line under the cursor.
//
// Outputs:
//
//	*Hover - Hover content, or nil when there is nothing to show.
//	error - Non-nil only if the command link cannot be encoded.
func (e *Engine) Hover(ctx context.Context, ed Editor, line int) (*Hover, error) {
	if !e.visibility.Visible() {
		return nil, nil
	}

	rel, err := e.relative(ed.Path())
	if err != nil {
		e.logger.Debug("Hover outside annotation root",
			slog.String("path", ed.Path()),
			slog.String("error", err.Error()),
		)
		return nil, nil
	}

	annotations, err := e.list(ctx, rel, ed.Revision())
	if err != nil {
		if msg, ok := store.RejectedOutput(err); ok {
			e.show(ctx, msg)
			return nil, nil
		}
		e.logger.Warn("Hover list failed, treating as empty",
			slog.String("path", rel),
			slog.String("error", err.Error()),
		)
		annotations = nil
	}

	return BuildHover(ed.ID(), coord.ToStoreRow(line), annotations)
}
