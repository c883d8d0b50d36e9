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

import "errors"

// Sentinel errors for engine operations.
var (
	// ErrNoActiveTarget indicates a command needed an active editor and none exists.
	ErrNoActiveTarget = errors.New("no active editor")

	// ErrUnknownCommand indicates a command identifier with no handler.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrInvalidArguments indicates command arguments that do not decode to MutationArgs.
	ErrInvalidArguments = errors.New("invalid command arguments")
)

// User-facing messages shown through Host.ShowInformation.
const (
	// MsgMissingRoot is shown when no source root can be resolved.
	MsgMissingRoot = "Missing root folder"

	// MsgNoActiveEditor is shown when a command has no target editor.
	MsgNoActiveEditor = "No active editor"

	// MsgOutsideRoot is shown when a mutation targets a file outside the root.
	MsgOutsideRoot = "File is outside the annotation root"
)
