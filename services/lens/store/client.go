// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store talks to the external annotation store binary.
//
// Every operation is one blocking subprocess call:
//
//	<binary> -s <root> -o <root> list <path> --json
//	<binary> -s <root> -o <root> add <path>:<row> <text>
//	<binary> -s <root> -o <root> remove <path>:<row>
//
// Failures come back as *Failure and match ErrSpawnFailed, ErrRejected,
// ErrMalformedResponse or ErrTimeout with errors.Is. Calls are never retried.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

// DefaultBinary is the store executable name resolved through PATH.
const DefaultBinary = "ant"

// DefaultTimeout bounds a single store call.
const DefaultTimeout = 10 * time.Second

// Config configures a Client.
type Config struct {
	// BinaryPath is the store executable. Empty means DefaultBinary.
	BinaryPath string

	// Root is the absolute source root, passed as both -s and -o.
	Root string

	// Timeout bounds each call. Zero disables the deadline.
	Timeout time.Duration

	// MaxCallsPerSecond limits subprocess spawns. Zero means unlimited.
	MaxCallsPerSecond float64
}

// Client invokes the store binary.
//
// Thread Safety:
//
//	Safe for concurrent use. Calls do not share state apart from the
//	optional rate limiter.
type Client struct {
	binary  string
	root    string
	timeout time.Duration
	limiter *rate.Limiter
	runner  Runner
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithRunner replaces the subprocess runner.
func WithRunner(r Runner) Option {
	return func(c *Client) {
		c.runner = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a store client.
func NewClient(cfg Config, opts ...Option) *Client {
	binary := cfg.BinaryPath
	if binary == "" {
		binary = DefaultBinary
	}

	c := &Client{
		binary:  binary,
		root:    cfg.Root,
		timeout: cfg.Timeout,
		runner:  ExecRunner{Dir: cfg.Root},
		logger:  slog.Default(),
	}
	if cfg.MaxCallsPerSecond > 0 {
		burst := int(cfg.MaxCallsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.MaxCallsPerSecond), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Binary returns the configured store executable.
func (c *Client) Binary() string {
	return c.binary
}

// Root returns the configured source root.
func (c *Client) Root() string {
	return c.root
}

// List returns the annotations stored for relPath.
//
// Description:
//
//	Runs `list <relPath> --json` and validates the output. The caller
//	decides how to degrade; for every failure the returned slice is empty
//	and non-nil, so a caller that ignores the error renders nothing.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	relPath - Path relative to the source root.
//
// Outputs:
//
//	[]Annotation - Annotations for the file, possibly empty.
//	error - *Failure on any failure.
func (c *Client) List(ctx context.Context, relPath string) ([]Annotation, error) {
	out, err := c.call(ctx, "list", relPath, "list", relPath, "--json")
	if err != nil {
		return []Annotation{}, err
	}

	annotations, err := ParseList(out)
	if err != nil {
		c.logger.Warn("Malformed store list output",
			slog.String("path", relPath),
			slog.String("error", err.Error()),
		)
		return []Annotation{}, &Failure{Kind: FailureMalformed, Op: "list", Output: trimOutput(out), Err: err}
	}

	recordListSize(ctx, len(annotations))
	return annotations, nil
}

// Add stores text as the annotation of relPath at row.
//
// Outputs:
//
//	string - The store's confirmation message.
//	error - *Failure on any failure.
func (c *Client) Add(ctx context.Context, relPath string, row int, text string) (string, error) {
	out, err := c.call(ctx, "add", relPath, "add", location(relPath, row), text)
	if err != nil {
		return "", err
	}
	return trimOutput(out), nil
}

// Remove deletes the annotation of relPath at row.
//
// Outputs:
//
//	string - The store's confirmation message.
//	error - *Failure on any failure.
func (c *Client) Remove(ctx context.Context, relPath string, row int) (string, error) {
	out, err := c.call(ctx, "remove", relPath, "remove", location(relPath, row))
	if err != nil {
		return "", err
	}
	return trimOutput(out), nil
}

// call runs one store subcommand with the root flags prepended.
func (c *Client) call(ctx context.Context, op, relPath string, subArgs ...string) ([]byte, error) {
	args := append([]string{"-s", c.root, "-o", c.root}, subArgs...)
	return c.exec(ctx, op, relPath, args)
}

// exec runs the binary, records telemetry and classifies the outcome.
func (c *Client) exec(ctx context.Context, op, relPath string, args []string) ([]byte, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}

	callID := uuid.NewString()[:8]
	ctx, span := startCallSpan(ctx, op, relPath, callID)
	defer span.End()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := c.run(ctx, op, args)
	duration := time.Since(start)

	outcome := "ok"
	if err != nil {
		var f *Failure
		if errors.As(err, &f) {
			outcome = f.Kind.String()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	recordCall(ctx, op, outcome, duration)

	c.logger.Debug("Store call finished",
		slog.String("call_id", callID),
		slog.String("op", op),
		slog.String("path", relPath),
		slog.String("outcome", outcome),
		slog.Duration("duration", duration),
	)
	return out, err
}

func (c *Client) run(ctx context.Context, op string, args []string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &Failure{Kind: FailureTimeout, Op: op, Err: err}
		}
	}

	res, err := c.runner.Run(ctx, c.binary, args...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, &Failure{Kind: FailureTimeout, Op: op, Err: err}
		}
		c.logger.Error("Failed to launch annotation store",
			slog.String("op", op),
			slog.String("binary", c.binary),
			slog.String("error", err.Error()),
		)
		return nil, &Failure{Kind: FailureSpawn, Op: op, Err: err}
	}

	if res.ExitCode != 0 {
		return nil, &Failure{
			Kind:     FailureRejected,
			Op:       op,
			ExitCode: res.ExitCode,
			Output:   trimOutput(res.Stdout),
		}
	}
	return res.Stdout, nil
}

func location(relPath string, row int) string {
	return relPath + ":" + strconv.Itoa(row)
}

func trimOutput(b []byte) string {
	return strings.TrimRight(string(b), "\r\n")
}
