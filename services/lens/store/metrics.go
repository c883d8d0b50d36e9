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
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("antlens.store")
	meter  = otel.Meter("antlens.store")
)

var (
	callLatency metric.Float64Histogram
	callTotal   metric.Int64Counter
	listSize    metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the instruments. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		callLatency, err = meter.Float64Histogram(
			"antlens_store_call_duration_seconds",
			metric.WithDescription("Duration of annotation store subprocess calls"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		callTotal, err = meter.Int64Counter(
			"antlens_store_call_total",
			metric.WithDescription("Total number of annotation store calls by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		listSize, err = meter.Int64Histogram(
			"antlens_store_list_annotations",
			metric.WithDescription("Number of annotations returned by list"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func startCallSpan(ctx context.Context, op, relPath, callID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "store."+op,
		trace.WithAttributes(
			attribute.String("store.op", op),
			attribute.String("store.path", relPath),
			attribute.String("store.call_id", callID),
		),
	)
}

// outcome is "ok" or the failure kind name.
func recordCall(ctx context.Context, op, outcome string, duration time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome),
	)
	callLatency.Record(ctx, duration.Seconds(), attrs)
	callTotal.Add(ctx, 1, attrs)
}

func recordListSize(ctx context.Context, n int) {
	if err := initMetrics(); err != nil {
		return
	}
	listSize.Record(ctx, int64(n))
}
