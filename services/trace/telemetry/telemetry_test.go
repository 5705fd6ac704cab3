// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInit_NilContext(t *testing.T) {
	_, err := Init(nil, Config{})

	assert.Equal(t, ErrNilContext, err)
}

func TestInit_NoopExporters(t *testing.T) {
	tel, err := Init(context.Background(), Config{TraceExporter: "none", MetricExporter: "none"})
	require.NoError(t, err)

	assert.Nil(t, tel.Registry())
	assert.True(t, errors.Is(tel.WriteMetricsFile(filepath.Join(t.TempDir(), "m.prom")), ErrMetricsUnavailable))
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestInit_UnknownExporter(t *testing.T) {
	_, err := Init(context.Background(), Config{TraceExporter: "jaeger"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownExporter))

	_, err = Init(context.Background(), Config{MetricExporter: "statsd"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownExporter))
}

func TestInit_StdoutTracesGoToWriter(t *testing.T) {
	var buf bytes.Buffer
	tel, err := Init(context.Background(), Config{
		ServiceName:   "rbcallgraph-test",
		TraceExporter: "stdout",
		Writer:        &buf,
	})
	require.NoError(t, err)

	_, span := otel.Tracer("telemetry-test").Start(context.Background(), "test.span")
	span.End()

	require.NoError(t, tel.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "test.span")
}

func TestWriteMetricsFile_Prometheus(t *testing.T) {
	tel, err := Init(context.Background(), Config{
		ServiceName:    "rbcallgraph-test",
		MetricExporter: "prometheus",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })
	require.NotNil(t, tel.Registry())

	counter, err := otel.Meter("telemetry-test").Int64Counter("rbcallgraph_test_runs")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	path := filepath.Join(t.TempDir(), "rbcallgraph.prom")
	require.NoError(t, tel.WriteMetricsFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "rbcallgraph_test_runs")
}

func TestWriteMetricsFile_BadPath(t *testing.T) {
	tel, err := Init(context.Background(), Config{MetricExporter: "prometheus"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })

	err = tel.WriteMetricsFile(filepath.Join(t.TempDir(), "missing", "dir", "m.prom"))

	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrMetricsUnavailable))
}

func TestShutdown_NilTelemetry(t *testing.T) {
	var tel *Telemetry
	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.Nil(t, tel.Registry())
}
