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
	"errors"
	"fmt"

	"github.com/AleutianAI/antlens/pkg/ux"
	"github.com/AleutianAI/antlens/services/lens/config"
	"github.com/AleutianAI/antlens/services/lens/store"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitConfig      = 2
	ExitRejected    = 3
	ExitUnavailable = 4
)

// CommandError carries the exit code of a failed subcommand.
//
// Description:
//
//	Reported is true when the user has already seen the failure (for
//	example the store's own rejection message), so main must not print it
//	again.
type CommandError struct {
	// Command is the subcommand that failed.
	Command string

	// ExitCode is the process exit code.
	ExitCode int

	// Reported suppresses the final error line.
	Reported bool

	// Wrapped is the underlying error.
	Wrapped error
}

// Error returns a formatted error message.
func (e *CommandError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %v", e.Command, e.Wrapped)
	}
	return fmt.Sprintf("%s failed (exit %d)", e.Command, e.ExitCode)
}

// Unwrap returns the underlying error.
func (e *CommandError) Unwrap() error {
	return e.Wrapped
}

// classify wraps err from command into a CommandError with the matching
// exit code. Returns nil for a nil err.
func classify(command string, err error) error {
	if err == nil {
		return nil
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return err
	}

	ce := &CommandError{Command: command, ExitCode: ExitFailure, Wrapped: err}
	switch {
	case errors.Is(err, config.ErrConfigurationMissing):
		ce.ExitCode = ExitConfig
	case errors.Is(err, store.ErrRejected):
		ce.ExitCode = ExitRejected
		out, _ := store.RejectedOutput(err)
		ce.Reported = out != ""
	case errors.Is(err, store.ErrSpawnFailed), errors.Is(err, store.ErrTimeout):
		ce.ExitCode = ExitUnavailable
	}
	return ce
}

// exitCode prints err unless already reported and returns the exit code.
func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		if !cmdErr.Reported {
			ux.NewPrinter().Error(cmdErr.Error())
		}
		return cmdErr.ExitCode
	}
	ux.NewPrinter().Error(err.Error())
	return ExitFailure
}
