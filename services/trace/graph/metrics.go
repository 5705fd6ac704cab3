// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("rbcallgraph.graph")
	meter  = otel.Meter("rbcallgraph.graph")
)

var (
	walkTotal       metric.Int64Counter
	definersTotal   metric.Int64Counter
	attributedTotal metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		walkTotal, err = meter.Int64Counter(
			"graph_walk_total",
			metric.WithDescription("Total number of attribution walks"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		definersTotal, err = meter.Int64Counter(
			"graph_definers_total",
			metric.WithDescription("Method definitions with an attribution entry"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		attributedTotal, err = meter.Int64Counter(
			"graph_calls_attributed_total",
			metric.WithDescription("Receiver-less calls attributed to a definition"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordWalkMetrics(ctx context.Context, state *AttributionState) {
	if err := initMetrics(); err != nil {
		return
	}

	walkTotal.Add(ctx, 1)
	definersTotal.Add(ctx, int64(state.Len()))
	attributedTotal.Add(ctx, int64(state.CallCount()))
}
