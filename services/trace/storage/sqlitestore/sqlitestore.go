// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sqlitestore exports attribution snapshots to a SQLite database.
//
// Schema:
//
//	runs(run_id, file_path, schema_version, generated_at_milli)
//	definitions(run_id, name, ordinal)
//	calls(run_id, definer, ordinal, target)
//	remote_targets view: targets no definition of the same run provides
//
// Ordinals preserve the definer order and the per-definer call order, so
// the DOT graph and the projections can be rebuilt from the tables alone.
package sqlitestore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/AleutianAI/rbcallgraph/services/trace/graph"
	"github.com/AleutianAI/rbcallgraph/services/trace/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

var tracer = otel.Tracer("rbcallgraph.storage.sqlite")

const ddl = `
CREATE TABLE runs (
    run_id TEXT PRIMARY KEY,
    file_path TEXT NOT NULL,
    schema_version TEXT NOT NULL,
    generated_at_milli INTEGER NOT NULL
);

CREATE TABLE definitions (
    run_id TEXT NOT NULL REFERENCES runs(run_id),
    name TEXT NOT NULL,
    ordinal INTEGER NOT NULL,
    PRIMARY KEY (run_id, name)
);

CREATE TABLE calls (
    run_id TEXT NOT NULL REFERENCES runs(run_id),
    definer TEXT NOT NULL,
    ordinal INTEGER NOT NULL,
    target TEXT NOT NULL,
    PRIMARY KEY (run_id, definer, ordinal)
);

CREATE INDEX idx_calls_target ON calls(run_id, target);

CREATE VIEW remote_targets AS
SELECT DISTINCT c.run_id, c.target
FROM calls c
WHERE NOT EXISTS (
    SELECT 1 FROM definitions d WHERE d.run_id = c.run_id AND d.name = c.target
);
`

// Write stores snap in a new SQLite database at path.
//
// Description:
//
//	Each call produces a fresh database holding one run. An existing file
//	at path is replaced, not appended to; run_id only ties the rows to the
//	JSON and Neo4j exports of the same run. The database is built in a temp
//	file next to path and renamed into place after the transaction commits.
//
// Inputs:
//
//	ctx - Cancels long inserts through the connection interrupt.
//	path - Destination database file.
//	snap - Snapshot from graph.ToSerializable. Must not be nil.
//
// Outputs:
//
//	error - Wraps storage.ErrOutput on any failure.
func Write(ctx context.Context, path string, snap *graph.SerializableState) error {
	batch := storage.NewBatch()
	defer batch.Discard()

	if err := Stage(ctx, batch, path, snap); err != nil {
		return err
	}
	if err := batch.Commit(); err != nil {
		return err
	}
	slog.Info("sqlite export written", slog.String("path", path), slog.String("run_id", snap.RunID))
	return nil
}

// Stage builds the database for snap in batch. It appears at path when the
// batch commits; see Write for the file semantics.
func Stage(ctx context.Context, batch *storage.Batch, path string, snap *graph.SerializableState) error {
	ctx, span := tracer.Start(ctx, "sqlitestore.Stage")
	defer span.End()

	if snap == nil {
		return fmt.Errorf("%w: sqlite export: nil snapshot", storage.ErrOutput)
	}

	start := time.Now()
	err := batch.Stage(path, func(tmpPath string) error {
		return writeDB(ctx, tmpPath, snap)
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	span.SetAttributes(
		attribute.String("sqlite.path", path),
		attribute.Int("sqlite.definitions", len(snap.Definers)),
	)
	slog.Debug("sqlite export staged",
		slog.String("path", path),
		slog.String("run_id", snap.RunID),
		slog.Int("definitions", len(snap.Definers)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func writeDB(ctx context.Context, path string, snap *graph.SerializableState) (err error) {
	conn, err := sqlite.OpenConn(path, sqlite.OpenCreate, sqlite.OpenReadWrite)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close sqlite: %w", cerr)
		}
	}()
	conn.SetInterrupt(ctx.Done())

	if err := sqlitex.ExecuteScript(conn, ddl, nil); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	endFn, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer endFn(&err)

	if err := insertRun(conn, snap); err != nil {
		return err
	}
	if err := insertDefinitions(conn, snap); err != nil {
		return err
	}
	return insertCalls(conn, snap)
}

func insertRun(conn *sqlite.Conn, snap *graph.SerializableState) error {
	err := sqlitex.Execute(conn,
		`INSERT INTO runs (run_id, file_path, schema_version, generated_at_milli) VALUES (?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{snap.RunID, snap.FilePath, snap.SchemaVersion, snap.GeneratedAtMilli},
		})
	if err != nil {
		return fmt.Errorf("insert run %s: %w", snap.RunID, err)
	}
	return nil
}

func insertDefinitions(conn *sqlite.Conn, snap *graph.SerializableState) error {
	stmt, err := conn.Prepare(`INSERT INTO definitions (run_id, name, ordinal) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare definition insert: %w", err)
	}
	defer func() { _ = stmt.Finalize() }()

	for i, d := range snap.Definers {
		stmt.BindText(1, snap.RunID)
		stmt.BindText(2, d.Name)
		stmt.BindInt64(3, int64(i))

		if _, err := stmt.Step(); err != nil {
			return fmt.Errorf("insert definition %s: %w", d.Name, err)
		}
		_ = stmt.Reset()
	}
	return nil
}

func insertCalls(conn *sqlite.Conn, snap *graph.SerializableState) error {
	stmt, err := conn.Prepare(`INSERT INTO calls (run_id, definer, ordinal, target) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare call insert: %w", err)
	}
	defer func() { _ = stmt.Finalize() }()

	for _, d := range snap.Definers {
		for i, target := range d.Calls {
			stmt.BindText(1, snap.RunID)
			stmt.BindText(2, d.Name)
			stmt.BindInt64(3, int64(i))
			stmt.BindText(4, target)

			if _, err := stmt.Step(); err != nil {
				return fmt.Errorf("insert call %s→%s: %w", d.Name, target, err)
			}
			_ = stmt.Reset()
		}
	}
	return nil
}

// Load reads one run back from a database written by Write.
//
// Description:
//
//	Rebuilds the definer and call sequences in ordinal order and recomputes
//	the derived fields through graph.FromSerializable, so the result renders
//	the same DOT graph as the original state.
//
// Outputs:
//
//	*graph.SerializableState - The stored run.
//	error - Non-nil if the file cannot be opened or the run is missing.
func Load(ctx context.Context, path, runID string) (*graph.SerializableState, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("sqlite load: %w", err)
	}
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadOnly)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	defer func() { _ = conn.Close() }()
	conn.SetInterrupt(ctx.Done())

	snap := &graph.SerializableState{RunID: runID}
	found := false
	err = sqlitex.Execute(conn,
		`SELECT file_path, schema_version, generated_at_milli FROM runs WHERE run_id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{runID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				snap.FilePath = stmt.ColumnText(0)
				snap.SchemaVersion = stmt.ColumnText(1)
				snap.GeneratedAtMilli = stmt.ColumnInt64(2)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("run %q not found in %s", runID, path)
	}

	index := make(map[string]int)
	err = sqlitex.Execute(conn,
		`SELECT name FROM definitions WHERE run_id = ? ORDER BY ordinal`,
		&sqlitex.ExecOptions{
			Args: []any{runID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				name := stmt.ColumnText(0)
				index[name] = len(snap.Definers)
				snap.Definers = append(snap.Definers, graph.SerializableDefiner{Name: name, Calls: []string{}})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("query definitions: %w", err)
	}

	err = sqlitex.Execute(conn,
		`SELECT definer, target FROM calls WHERE run_id = ? ORDER BY definer, ordinal`,
		&sqlitex.ExecOptions{
			Args: []any{runID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				i, ok := index[stmt.ColumnText(0)]
				if !ok {
					return fmt.Errorf("call from unknown definer %q", stmt.ColumnText(0))
				}
				snap.Definers[i].Calls = append(snap.Definers[i].Calls, stmt.ColumnText(1))
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("query calls: %w", err)
	}

	for _, d := range snap.Definers {
		snap.DefinedNames = append(snap.DefinedNames, d.Name)
	}
	state, err := graph.FromSerializable(snap)
	if err != nil {
		return nil, err
	}
	out := graph.ToSerializable(state, snap.FilePath, runID)
	out.GeneratedAtMilli = snap.GeneratedAtMilli
	return out, nil
}

// RemoteTargets returns the remote_targets view rows of a run, sorted.
func RemoteTargets(ctx context.Context, path, runID string) ([]string, error) {
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadOnly)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	defer func() { _ = conn.Close() }()
	conn.SetInterrupt(ctx.Done())

	out := make([]string, 0)
	err = sqlitex.Execute(conn,
		`SELECT target FROM remote_targets WHERE run_id = ? ORDER BY target`,
		&sqlitex.ExecOptions{
			Args: []any{runID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				out = append(out, stmt.ColumnText(0))
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("query remote targets: %w", err)
	}
	return out, nil
}
