// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"context"
	"errors"

	"github.com/charmbracelet/huh"
)

// ErrNotInteractive is returned when a prompt is needed but stdin is not a
// terminal.
var ErrNotInteractive = errors.New("input required but stdin is not a terminal")

// PromptLine asks for one line of text.
//
// Returns ok=false when the user aborts (Ctrl+C or Esc) and
// ErrNotInteractive when there is no terminal to ask on.
func PromptLine(ctx context.Context, title, placeholder string) (text string, ok bool, err error) {
	if !IsInteractive() {
		return "", false, ErrNotInteractive
	}

	input := huh.NewInput().
		Title(title).
		Placeholder(placeholder).
		Value(&text)

	err = huh.NewForm(huh.NewGroup(input)).
		WithTheme(huh.ThemeCharm()).
		RunWithContext(ctx)
	if errors.Is(err, huh.ErrUserAborted) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return text, true, nil
}
