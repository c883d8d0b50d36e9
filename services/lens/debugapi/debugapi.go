// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package debugapi serves a local HTTP surface for inspecting a running
// language server: health, Prometheus metrics and a state snapshot.
//
// It is off unless `antlens serve --debug-addr` is given, and is meant to be
// bound to localhost.
package debugapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/antlens/services/lens/telemetry"
)

// ServiceName is the otelgin server name.
const ServiceName = "antlens-debug"

// State is a snapshot of the running server.
type State struct {
	SessionID   string    `json:"session_id"`
	StartedAt   time.Time `json:"started_at"`
	Root        string    `json:"root"`
	BinaryPath  string    `json:"binary_path"`
	Visible     bool      `json:"visible"`
	Documents   int       `json:"documents"`
	CacheHits   int64     `json:"cache_hits"`
	CacheMisses int64     `json:"cache_misses"`
}

// StateFunc produces the current State.
type StateFunc func() State

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// NewRouter builds the debug routes.
//
// Routes:
//
//	GET /health   - HealthResponse
//	GET /metrics  - Prometheus scrape, 404 unless the prometheus exporter is on
//	GET /v1/state - State
func NewRouter(version string, state StateFunc) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(ServiceName))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Version: version})
	})

	router.GET("/metrics", func(c *gin.Context) {
		h := telemetry.MetricsHandler()
		if h == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "prometheus exporter not enabled"})
			return
		}
		h.ServeHTTP(c.Writer, c.Request)
	})

	v1 := router.Group("/v1")
	v1.GET("/state", func(c *gin.Context) {
		c.JSON(http.StatusOK, state())
	})

	return router
}

// Serve runs handler on addr until ctx is cancelled.
//
// Description:
//
//	Shuts the server down gracefully with a 5 second budget once ctx ends.
//	Returns nil after a clean shutdown.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Debug API listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("debug api: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown debug api: %w", err)
		}
		return nil
	}
}
