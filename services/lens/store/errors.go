// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"errors"
	"fmt"
)

// Sentinel errors for store operations.
var (
	// ErrSpawnFailed indicates the store binary could not be launched.
	ErrSpawnFailed = errors.New("store binary could not be launched")

	// ErrRejected indicates the store ran and exited with a non-zero status.
	ErrRejected = errors.New("store rejected the request")

	// ErrMalformedResponse indicates list output that is not the expected JSON.
	ErrMalformedResponse = errors.New("malformed store response")

	// ErrTimeout indicates the store did not finish within the call timeout.
	ErrTimeout = errors.New("store call timed out")

	// ErrUnsupportedVersion indicates a store older than MinStoreVersion.
	ErrUnsupportedVersion = errors.New("unsupported store version")
)

// FailureKind classifies a failed store call.
type FailureKind int

const (
	// FailureSpawn means the process never started.
	FailureSpawn FailureKind = iota

	// FailureRejected means the process exited non-zero.
	FailureRejected

	// FailureMalformed means list output failed validation or decoding.
	FailureMalformed

	// FailureTimeout means the call deadline expired.
	FailureTimeout
)

// String returns a human-readable kind name.
func (k FailureKind) String() string {
	names := []string{"spawn", "rejected", "malformed", "timeout"}
	if int(k) >= 0 && int(k) < len(names) {
		return names[k]
	}
	return "unknown"
}

// Failure is the error returned by every failed store call.
//
// Output carries the store's own stdout so callers can show it verbatim;
// it is only meaningful for FailureRejected.
type Failure struct {
	// Kind classifies the failure.
	Kind FailureKind

	// Op is the store subcommand ("list", "add", "remove", "version").
	Op string

	// ExitCode is the process exit status for FailureRejected.
	ExitCode int

	// Output is the trimmed stdout of the process.
	Output string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	switch f.Kind {
	case FailureRejected:
		return fmt.Sprintf("store %s: exit status %d: %s", f.Op, f.ExitCode, f.Output)
	default:
		if f.Err != nil {
			return fmt.Sprintf("store %s: %s: %v", f.Op, f.Kind, f.Err)
		}
		return fmt.Sprintf("store %s: %s", f.Op, f.Kind)
	}
}

// Unwrap returns the underlying cause.
func (f *Failure) Unwrap() error {
	return f.Err
}

// Is matches the sentinel error for the failure kind.
func (f *Failure) Is(target error) bool {
	switch target {
	case ErrSpawnFailed:
		return f.Kind == FailureSpawn
	case ErrRejected:
		return f.Kind == FailureRejected
	case ErrMalformedResponse:
		return f.Kind == FailureMalformed
	case ErrTimeout:
		return f.Kind == FailureTimeout
	}
	return false
}

// RejectedOutput returns the store's message when err is a rejection.
func RejectedOutput(err error) (string, bool) {
	var f *Failure
	if errors.As(err, &f) && f.Kind == FailureRejected {
		return f.Output, true
	}
	return "", false
}
