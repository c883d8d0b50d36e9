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
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/antlens/services/lens/config"
	"github.com/AleutianAI/antlens/services/lens/debugapi"
	"github.com/AleutianAI/antlens/services/lens/lsp"
	"github.com/AleutianAI/antlens/services/lens/telemetry"
)

// runServe runs the language server on stdin/stdout.
//
// stdout carries the protocol, so logs, telemetry output and gin's own
// messages all go to stderr.
func runServe(ctx context.Context, opts *cliOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The editor sends the real root during initialize. This config only
	// drives logging and telemetry.
	cfg, cfgErr := opts.resolveConfig()
	if cfgErr != nil {
		cfg = config.Default("")
		if opts.logLevel != "" {
			cfg.Logging.Level = opts.logLevel
		}
		cfg.Logging.JSON = opts.logJSON
	}

	logger := newLogger(cfg)
	defer func() { _ = logger.Close() }()
	if cfgErr != nil {
		logger.Warn("Using default logging configuration", "error", cfgErr)
	}

	tcfg := telemetry.DefaultConfig()
	tcfg.ServiceVersion = version
	if cfg.Telemetry.Exporter != "" {
		tcfg.Exporter = cfg.Telemetry.Exporter
	}
	if cfg.Telemetry.Endpoint != "" {
		tcfg.OTLPEndpoint = cfg.Telemetry.Endpoint
	}
	tcfg.Writer = os.Stderr
	shutdownTelemetry, err := telemetry.Init(ctx, tcfg)
	if err != nil {
		logger.Warn("Telemetry disabled", "error", err)
		shutdownTelemetry = func(context.Context) error { return nil }
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("Telemetry shutdown failed", "error", err)
		}
	}()

	srv := lsp.NewServer(os.Stdin, os.Stdout, lsp.ServerOptions{
		Version:           version,
		ConfigFile:        opts.configFile,
		WatchConfig:       true,
		CheckStoreVersion: true,
		Logger:            logger.Slog(),
		Settings:          config.Settings{BinaryPath: opts.binary},
		StoreFactory:      storeFactory,
	})

	if opts.debugAddr != "" {
		gin.SetMode(gin.ReleaseMode)
		gin.DefaultWriter = os.Stderr
		gin.DefaultErrorWriter = os.Stderr
		go func() {
			router := debugapi.NewRouter(version, srv.State)
			if err := debugapi.Serve(ctx, opts.debugAddr, router, logger.Slog()); err != nil {
				logger.Error("Debug API stopped", "error", err)
			}
		}()
	}

	// A signal must also unblock the read loop, which waits on stdin.
	go func() {
		<-ctx.Done()
		if err := os.Stdin.Close(); err != nil {
			logger.Slog().Debug("Closing stdin", slog.String("error", err.Error()))
		}
	}()

	return srv.Serve(ctx)
}
