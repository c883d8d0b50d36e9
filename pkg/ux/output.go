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
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // highlights, success
	ColorTealPrimary = lipgloss.Color("#20B9B4") // main accent
	ColorTealDeep    = lipgloss.Color("#16858E") // borders, gutters
	ColorSlate       = lipgloss.Color("#2C4A54") // muted text

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title     lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style

	// Gutter is the line-number column of an annotated listing.
	Gutter lipgloss.Style

	// Annotation is the inline annotation label.
	Annotation lipgloss.Style

	Box lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorTealBright).Bold(true),

	Gutter:     lipgloss.NewStyle().Foreground(ColorTealDeep).Width(6).Align(lipgloss.Right),
	Annotation: lipgloss.NewStyle().Foreground(ColorTealPrimary).Italic(true),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconArrow   Icon = "→"
)

// Render returns the icon with appropriate styling
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	default:
		return string(i)
	}
}

// =============================================================================
// PRINTER
// =============================================================================

// Printer writes styled output at the current personality level.
//
// Results go to Out, diagnostics to Err.
type Printer struct {
	Out io.Writer
	Err io.Writer
}

// NewPrinter returns a Printer on stdout and stderr.
func NewPrinter() *Printer {
	return &Printer{Out: os.Stdout, Err: os.Stderr}
}

// Title prints a styled title
func (p *Printer) Title(text string) {
	if GetPersonalityLevel() == PersonalityMachine {
		return
	}
	fmt.Fprintln(p.Out, Styles.Title.Render(text))
}

// Success prints a success message with checkmark
func (p *Printer) Success(text string) {
	switch GetPersonalityLevel() {
	case PersonalityMachine:
		fmt.Fprintf(p.Out, "OK: %s\n", text)
	case PersonalityMinimal:
		fmt.Fprintf(p.Out, "%s %s\n", IconSuccess.Render(), text)
	default:
		fmt.Fprintf(p.Out, "%s %s\n", IconSuccess.Render(), Styles.Success.Render(text))
	}
}

// Warning prints a warning message
func (p *Printer) Warning(text string) {
	switch GetPersonalityLevel() {
	case PersonalityMachine:
		fmt.Fprintf(p.Err, "WARN: %s\n", text)
	default:
		fmt.Fprintf(p.Err, "%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
	}
}

// Error prints an error message
func (p *Printer) Error(text string) {
	switch GetPersonalityLevel() {
	case PersonalityMachine:
		fmt.Fprintf(p.Err, "ERROR: %s\n", text)
	default:
		fmt.Fprintf(p.Err, "%s %s\n", IconError.Render(), Styles.Error.Render(text))
	}
}

// Info prints an informational message
func (p *Printer) Info(text string) {
	switch GetPersonalityLevel() {
	case PersonalityMachine:
		fmt.Fprintln(p.Out, text)
	default:
		fmt.Fprintf(p.Out, "%s %s\n", Styles.Muted.Render("│"), text)
	}
}

// Muted prints muted/secondary text
func (p *Printer) Muted(text string) {
	if GetPersonalityLevel() == PersonalityMachine {
		return
	}
	fmt.Fprintln(p.Out, Styles.Muted.Render(text))
}

// Box prints text in a rounded box
func (p *Printer) Box(title, content string) {
	if GetPersonalityLevel() == PersonalityMachine {
		fmt.Fprintf(p.Out, "%s: %s\n", title, content)
		return
	}
	titleLine := Styles.Title.Render(title)
	fmt.Fprintln(p.Out, Styles.Box.Width(72).Render(titleLine+"\n"+content))
}

// AnnotatedLine prints one annotation as "<row> │ <label>". row is 1-based.
func (p *Printer) AnnotatedLine(row int, label string) {
	switch GetPersonalityLevel() {
	case PersonalityMachine:
		fmt.Fprintf(p.Out, "%d\t%s\n", row, label)
	default:
		fmt.Fprintf(p.Out, "%s %s %s\n",
			Styles.Gutter.Render(fmt.Sprintf("%d", row)),
			Styles.Muted.Render("│"),
			Styles.Annotation.Render(label),
		)
	}
}
