// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package neo4jstore loads attribution snapshots into Neo4j.
//
// Graph model:
//
//	(:RubyFile {path})
//	(:RubyMethod {file, name, defined, ordinal})-[:DEFINED_IN]->(:RubyFile)
//	(:RubyMethod)-[:CALLS {run_id, ordinal}]->(:RubyMethod)
//
// A method node exists for every definer and every call target. Targets no
// definer provides get defined=false. One CALLS relationship is created per
// recorded call, so duplicate calls stay visible as parallel relationships.
// Loading a file replaces whatever an earlier run stored for the same path.
package neo4jstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/rbcallgraph/services/trace/graph"
	"github.com/AleutianAI/rbcallgraph/services/trace/storage"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("rbcallgraph.storage.neo4j")

// DefaultBatchSize is the number of rows sent per UNWIND statement.
const DefaultBatchSize = 500

// ErrNoURI is returned by New when the connection URI is empty.
var ErrNoURI = errors.New("neo4j: uri must not be empty")

// Config holds connection settings.
type Config struct {
	URI      string
	Username string
	Password string

	// Database selects the target database. Empty uses the server default.
	Database string

	// BatchSize bounds the rows per UNWIND statement. Zero uses
	// DefaultBatchSize.
	BatchSize int
}

// runFunc executes one Cypher statement.
type runFunc func(ctx context.Context, cypher string, params map[string]any) error

// Exporter writes snapshots to a Neo4j database.
//
// Thread Safety: Safe for concurrent use; the driver pools sessions.
type Exporter struct {
	driver    neo4j.DriverWithContext
	run       runFunc
	batchSize int
}

// New connects to Neo4j and verifies connectivity.
//
// Outputs:
//
//	*Exporter - Ready exporter. Call Close when done.
//	error - ErrNoURI, or the driver or connectivity error.
func New(ctx context.Context, cfg Config) (*Exporter, error) {
	if cfg.URI == "" {
		return nil, ErrNoURI
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j connectivity %s: %w", cfg.URI, err)
	}

	var opts []neo4j.ExecuteQueryConfigurationOption
	if cfg.Database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(cfg.Database))
	}

	e := newExporter(func(ctx context.Context, cypher string, params map[string]any) error {
		_, err := neo4j.ExecuteQuery(ctx, driver, cypher, params, neo4j.EagerResultTransformer, opts...)
		return err
	}, cfg.BatchSize)
	e.driver = driver
	return e, nil
}

func newExporter(run runFunc, batchSize int) *Exporter {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Exporter{run: run, batchSize: batchSize}
}

// Close releases the underlying Neo4j driver resources.
func (e *Exporter) Close(ctx context.Context) error {
	if e == nil || e.driver == nil {
		return nil
	}
	return e.driver.Close(ctx)
}

const (
	cypherIndex = "CREATE INDEX ruby_method_key IF NOT EXISTS FOR (m:RubyMethod) ON (m.file, m.name)"

	cypherClean = `MATCH (m:RubyMethod {file: $file}) DETACH DELETE m`

	cypherFile = `MERGE (f:RubyFile {path: $file})
		 SET f.run_id = $run_id, f.generated_at_milli = $generated_at_milli`

	cypherMethods = `UNWIND $batch AS row
		 MERGE (m:RubyMethod {file: $file, name: row.name})
		 SET m.defined = row.defined, m.ordinal = row.ordinal, m.run_id = $run_id
		 WITH m
		 MATCH (f:RubyFile {path: $file})
		 MERGE (m)-[:DEFINED_IN]->(f)`

	cypherCalls = `UNWIND $batch AS row
		 MATCH (caller:RubyMethod {file: $file, name: row.caller})
		 MATCH (callee:RubyMethod {file: $file, name: row.callee})
		 CREATE (caller)-[:CALLS {run_id: $run_id, ordinal: row.ordinal}]->(callee)`
)

// Export replaces the stored graph of snap.FilePath with snap.
//
// Description:
//
//	Runs the index, clean, file, method and call statements in that order.
//	Statements are not wrapped in one transaction; a failure part way
//	leaves a partial graph that the next successful export replaces.
//
// Outputs:
//
//	error - Wraps storage.ErrOutput on any failure.
func (e *Exporter) Export(ctx context.Context, snap *graph.SerializableState) error {
	ctx, span := tracer.Start(ctx, "neo4jstore.Export")
	defer span.End()

	if snap == nil {
		return fmt.Errorf("%w: neo4j export: nil snapshot", storage.ErrOutput)
	}

	methods := methodRows(snap)
	calls := callRows(snap)
	base := map[string]any{
		"file":               snap.FilePath,
		"run_id":             snap.RunID,
		"generated_at_milli": snap.GeneratedAtMilli,
	}

	steps := []struct {
		name   string
		cypher string
		rows   []map[string]any
	}{
		{name: "index", cypher: cypherIndex},
		{name: "clean", cypher: cypherClean},
		{name: "file", cypher: cypherFile},
		{name: "methods", cypher: cypherMethods, rows: methods},
		{name: "calls", cypher: cypherCalls, rows: calls},
	}

	for _, step := range steps {
		if step.rows == nil {
			if err := e.run(ctx, step.cypher, paramsFor(step.cypher, base, nil)); err != nil {
				span.RecordError(err)
				return fmt.Errorf("%w: neo4j %s: %w", storage.ErrOutput, step.name, err)
			}
			continue
		}
		for _, batch := range batches(step.rows, e.batchSize) {
			if err := e.run(ctx, step.cypher, paramsFor(step.cypher, base, batch)); err != nil {
				span.RecordError(err)
				return fmt.Errorf("%w: neo4j %s: %w", storage.ErrOutput, step.name, err)
			}
		}
	}

	span.SetAttributes(
		attribute.Int("neo4j.methods", len(methods)),
		attribute.Int("neo4j.calls", len(calls)),
	)
	slog.Info("neo4j export loaded",
		slog.String("file", snap.FilePath),
		slog.String("run_id", snap.RunID),
		slog.Int("methods", len(methods)),
		slog.Int("calls", len(calls)),
	)
	return nil
}

// paramsFor returns the base parameters plus the batch. The index
// statement takes no parameters.
func paramsFor(cypher string, base map[string]any, batch []map[string]any) map[string]any {
	if cypher == cypherIndex {
		return nil
	}
	params := make(map[string]any, len(base)+1)
	for k, v := range base {
		params[k] = v
	}
	if batch != nil {
		params["batch"] = batch
	}
	return params
}

// methodRows lists every definer followed by every remote target.
func methodRows(snap *graph.SerializableState) []map[string]any {
	rows := make([]map[string]any, 0, len(snap.Definers)+len(snap.Remote))
	for i, d := range snap.Definers {
		rows = append(rows, map[string]any{"name": d.Name, "defined": true, "ordinal": int64(i)})
	}
	for _, r := range snap.Remote {
		rows = append(rows, map[string]any{"name": r.Name, "defined": false, "ordinal": int64(-1)})
	}
	return rows
}

// callRows lists one row per recorded call, duplicates included.
func callRows(snap *graph.SerializableState) []map[string]any {
	rows := make([]map[string]any, 0)
	for _, d := range snap.Definers {
		for i, target := range d.Calls {
			rows = append(rows, map[string]any{"caller": d.Name, "callee": target, "ordinal": int64(i)})
		}
	}
	return rows
}

// batches splits rows into chunks of at most size. It returns no chunks
// for empty input.
func batches(rows []map[string]any, size int) [][]map[string]any {
	out := make([][]map[string]any, 0, (len(rows)+size-1)/size)
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		out = append(out, rows[start:end])
	}
	return out
}
