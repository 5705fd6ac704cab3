// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry initializes OpenTelemetry for the rbcallgraph command.
//
// The ast and graph packages create their spans and counters through
// otel.Tracer and otel.Meter. Those are no-ops until Init installs real
// providers, so library use without Init costs nothing.
//
// # Trace Backends
//
// "stdout" pretty-prints spans to the configured writer (stderr in the
// command, since stdout carries the projections). "otlp" sends them to a
// collector over gRPC. "none" leaves the global no-op provider in place.
//
// # Metrics Backends
//
// "prometheus" collects into a private registry that WriteMetricsFile dumps
// in the text exposition format, for node_exporter's textfile collector or
// a batch job. "stdout" prints the final readings on Shutdown.
//
// # Usage
//
//	tel, err := telemetry.Init(ctx, cfg)
//	if err != nil {
//	    return fmt.Errorf("init telemetry: %w", err)
//	}
//	defer tel.Shutdown(context.Background())
//
// # Thread Safety
//
// Init installs global providers and should be called once at startup.
// The returned *Telemetry is safe for concurrent use.
package telemetry
