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
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/AleutianAI/rbcallgraph/services/trace/config"
	"github.com/AleutianAI/rbcallgraph/services/trace/telemetry"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// options holds the parsed command-line flags.
type options struct {
	defined bool
	called  bool
	remote  bool

	dotPath    string
	jsonPath   string
	sqlitePath string

	neo4jURI  string
	neo4jUser string

	configPath  string
	logLevel    string
	logFormat   string
	metricsFile string
}

// run executes the command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)
	var uerr *usageError
	if errors.As(err, &uerr) && uerr.showUsage {
		fmt.Fprint(stderr, cmd.UsageString())
	}
	return exitCode(err)
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "rbcallgraph [options] path/to/file.rb",
		Short: "Build a static call graph for a Ruby source file",
		Long: `rbcallgraph records the methods a Ruby file defines and the receiver-less
calls each of them makes. It prints list projections to stdout and writes
the graph as Graphviz DOT, JSON, SQLite or into Neo4j.

When more than one of -d, -c and -r is given only the first in that order
is printed.

Two snapshots written with --json can be compared with the diff command.
A Ruby file literally named diff must be passed as ./diff.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 1 {
				return newUsageError(fmt.Sprintf("expected exactly one file argument, got %d", len(args)), nil)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, opts, args[0], stdout, stderr)
		},
	}

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.AddCommand(newDiffCmd(stdout))
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return newUsageError("invalid flags", err)
	})

	flags := cmd.Flags()
	flags.SortFlags = false
	flags.BoolVarP(&opts.defined, "defined", "d", false, "Print a list of defined methods")
	flags.BoolVarP(&opts.called, "called", "c", false, "Print a list of called methods")
	flags.BoolVarP(&opts.remote, "remote", "r", false, "Print a list of called-but-not-defined methods")
	flags.StringVar(&opts.dotPath, "dot", "", "Write a dot callgraph to `PATH`")
	flags.StringVar(&opts.jsonPath, "json", "", "Write a JSON snapshot of the call attribution to `PATH`")
	flags.StringVar(&opts.sqlitePath, "sqlite", "", "Write a SQLite database to `PATH`")
	flags.StringVar(&opts.neo4jURI, "neo4j-uri", "", "Load the graph into Neo4j at `URI` (password from "+config.EnvNeo4jPassword+")")
	flags.StringVar(&opts.neo4jUser, "neo4j-user", "", "Neo4j user name (default from config, else neo4j)")
	flags.StringVar(&opts.configPath, "config", "", "YAML runtime config `PATH`")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (default from config, else info)")
	flags.StringVar(&opts.logFormat, "log-format", "", "Log format: text or json (default text on a terminal, json otherwise)")
	flags.StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics to `PATH` after the run")

	return cmd
}

// loadSettings resolves config file, environment and flags, in that order of
// increasing precedence.
func loadSettings(ctx context.Context, cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.LoadConfig(ctx, opts.configPath)
	if err != nil {
		return nil, newSettingsError("config", err)
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = opts.logFormat
	}
	if flags.Changed("neo4j-uri") {
		cfg.Neo4j.URI = opts.neo4jURI
	}
	if flags.Changed("neo4j-user") {
		cfg.Neo4j.Username = opts.neo4jUser
	}
	if opts.metricsFile != "" {
		cfg.Telemetry.Metrics = "prometheus"
	}

	if err := cfg.Validate(); err != nil {
		return nil, newSettingsError("flags", err)
	}
	return cfg, nil
}

func initTelemetry(ctx context.Context, cfg *config.Config, stderr io.Writer) (*telemetry.Telemetry, error) {
	tel, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		TraceExporter:  cfg.Telemetry.Traces,
		MetricExporter: cfg.Telemetry.Metrics,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:   cfg.Telemetry.OTLPInsecure,
		Writer:         stderr,
	})
	if err != nil {
		return nil, newSettingsError("telemetry", err)
	}
	slog.Debug("telemetry initialized",
		slog.String("traces", cfg.Telemetry.Traces),
		slog.String("metrics", cfg.Telemetry.Metrics),
	)
	return tel, nil
}
