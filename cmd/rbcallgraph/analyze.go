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
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/AleutianAI/rbcallgraph/services/trace/ast"
	"github.com/AleutianAI/rbcallgraph/services/trace/config"
	"github.com/AleutianAI/rbcallgraph/services/trace/graph"
	"github.com/AleutianAI/rbcallgraph/services/trace/storage"
	"github.com/AleutianAI/rbcallgraph/services/trace/storage/neo4jstore"
	"github.com/AleutianAI/rbcallgraph/services/trace/storage/sqlitestore"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// runAnalyze is the body of the root command.
//
// Description:
//
//	Resolves settings, installs the logger and telemetry, parses and walks
//	the file and produces every requested output. File outputs (dot, json,
//	sqlite, metrics) are staged first and the Neo4j load runs next; the
//	files are renamed into place together only when all of that succeeded,
//	and the selected projection is printed last. A failure at any step
//	leaves no output file behind and nothing on stdout. The Neo4j load
//	cannot be rolled back if a later rename fails.
func runAnalyze(cmd *cobra.Command, opts *options, path string, stdout, stderr io.Writer) error {
	ctx := cmd.Context()

	cfg, err := loadSettings(ctx, cmd, opts)
	if err != nil {
		return err
	}

	logger, err := newLogger(stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return newSettingsError("logging", err)
	}
	slog.SetDefault(logger)

	tel, err := initTelemetry(ctx, cfg, stderr)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if serr := tel.Shutdown(shutdownCtx); serr != nil {
			slog.Warn("telemetry shutdown failed", slog.String("error", serr.Error()))
		}
	}()

	runID := uuid.NewString()
	slog.Debug("analysis started", slog.String("file", path), slog.String("run_id", runID))

	state, err := analyzeFile(ctx, path, cfg.Parser.MaxFileSize)
	if err != nil {
		return err
	}

	var projection bytes.Buffer
	if err := printProjection(&projection, opts, state); err != nil {
		return fmt.Errorf("%w: projection: %w", storage.ErrOutput, err)
	}

	snap := graph.ToSerializable(state, path, runID)

	batch := storage.NewBatch()
	defer batch.Discard()

	if opts.dotPath != "" {
		blacklist := config.MustLoadBlacklist()
		err := batch.StageWriter(opts.dotPath, func(w io.Writer) error {
			return graph.RenderDOT(w, state, blacklist)
		})
		if err != nil {
			return err
		}
	}

	if opts.jsonPath != "" {
		err := batch.StageWriter(opts.jsonPath, func(w io.Writer) error {
			return graph.WriteJSON(w, snap)
		})
		if err != nil {
			return err
		}
	}

	if opts.sqlitePath != "" {
		if err := sqlitestore.Stage(ctx, batch, opts.sqlitePath, snap); err != nil {
			return err
		}
	}

	if cfg.Neo4j.URI != "" {
		if err := exportNeo4j(ctx, cfg.Neo4j, snap); err != nil {
			return err
		}
	}

	if opts.metricsFile != "" {
		if err := batch.Stage(opts.metricsFile, tel.WriteMetricsFile); err != nil {
			return err
		}
	}

	if err := batch.Commit(); err != nil {
		return err
	}
	for _, out := range []struct{ kind, path string }{
		{"dot graph", opts.dotPath},
		{"json snapshot", opts.jsonPath},
		{"sqlite export", opts.sqlitePath},
		{"metrics", opts.metricsFile},
	} {
		if out.path != "" {
			slog.Info(out.kind+" written", slog.String("path", out.path), slog.String("run_id", runID))
		}
	}

	if _, err := projection.WriteTo(stdout); err != nil {
		return fmt.Errorf("%w: stdout: %w", storage.ErrOutput, err)
	}
	return nil
}

// analyzeFile reads, parses and walks one Ruby file.
func analyzeFile(ctx context.Context, path string, maxFileSize int64) (*graph.AttributionState, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errInput, err)
	}

	parser := ast.NewRubyParser(ast.WithMaxFileSize(maxFileSize))
	root, err := parser.Parse(ctx, content, path)
	if err != nil {
		return nil, err
	}

	return graph.WalkContext(ctx, root), nil
}

// printProjection prints at most one projection. Defined wins over called,
// and called over remote.
func printProjection(w io.Writer, opts *options, state *graph.AttributionState) error {
	switch {
	case opts.defined:
		return graph.WriteLines(w, graph.Defined(state))
	case opts.called:
		return graph.WriteLines(w, graph.Called(state))
	case opts.remote:
		return graph.WriteLines(w, graph.Remote(state))
	default:
		return nil
	}
}

func exportNeo4j(ctx context.Context, cfg config.Neo4jConfig, snap *graph.SerializableState) error {
	exporter, err := neo4jstore.New(ctx, neo4jstore.Config{
		URI:       cfg.URI,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Database:  cfg.Database,
		BatchSize: cfg.BatchSize,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrOutput, err)
	}
	defer func() {
		if cerr := exporter.Close(ctx); cerr != nil {
			slog.Warn("neo4j close failed", slog.String("error", cerr.Error()))
		}
	}()

	return exporter.Export(ctx, snap)
}
