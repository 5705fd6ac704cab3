// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/AleutianAI/rbcallgraph/services/trace/ast"
	"github.com/AleutianAI/rbcallgraph/services/trace/storage/neo4jstore"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"
)

var configTracer = otel.Tracer("rbcallgraph.config")

// ErrInvalidConfig indicates a config file or environment value that cannot
// be used. The command reports it as a usage error.
var ErrInvalidConfig = errors.New("invalid config")

// =============================================================================
// Defaults
// =============================================================================

const (
	// MaxYAMLFileSize bounds the size of a config file read from disk.
	MaxYAMLFileSize = 1024 * 1024

	// DefaultMaxFileSize is the default Ruby source size limit in bytes.
	DefaultMaxFileSize = ast.DefaultMaxFileSize

	// DefaultNeo4jBatchSize is the default number of rows per UNWIND batch.
	DefaultNeo4jBatchSize = neo4jstore.DefaultBatchSize

	// DefaultServiceName is the otel service.name resource attribute.
	DefaultServiceName = "rbcallgraph"
)

// Environment variables that override file and default values.
const (
	EnvLogLevel        = "RBCALLGRAPH_LOG_LEVEL"
	EnvLogFormat       = "RBCALLGRAPH_LOG_FORMAT"
	EnvMaxFileSize     = "RBCALLGRAPH_MAX_FILE_SIZE"
	EnvTracesExporter  = "RBCALLGRAPH_TRACES_EXPORTER"
	EnvMetricsExporter = "RBCALLGRAPH_METRICS_EXPORTER"
	EnvOTLPEndpoint    = "RBCALLGRAPH_OTLP_ENDPOINT"
	EnvNeo4jURI        = "RBCALLGRAPH_NEO4J_URI"
	EnvNeo4jUser       = "RBCALLGRAPH_NEO4J_USER"
	EnvNeo4jPassword   = "RBCALLGRAPH_NEO4J_PASSWORD"
	EnvNeo4jDatabase   = "RBCALLGRAPH_NEO4J_DATABASE"
)

// =============================================================================
// Configuration Types
// =============================================================================

// Config is the runtime configuration of the rbcallgraph command.
//
// Description:
//
//	Built from DefaultConfig, then a YAML file, then RBCALLGRAPH_*
//	environment variables, in that order. Command-line flags are applied
//	last by the command itself.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Parser    ParserConfig    `yaml:"parser"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Neo4j     Neo4jConfig     `yaml:"neo4j"`
}

// LogConfig selects the slog handler. An empty Format lets the command pick
// text for terminals and JSON otherwise.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

// ParserConfig bounds the input handed to the Ruby parser.
type ParserConfig struct {
	MaxFileSize int64 `yaml:"max_file_size" validate:"gt=0"`
}

// TelemetryConfig selects the otel exporters.
type TelemetryConfig struct {
	// ServiceName is reported as the service.name resource attribute.
	ServiceName string `yaml:"service_name" validate:"required"`

	// Traces is one of none, stdout, otlp.
	Traces string `yaml:"traces" validate:"oneof=none stdout otlp"`

	// Metrics is one of none, stdout, prometheus.
	Metrics string `yaml:"metrics" validate:"oneof=none stdout prometheus"`

	// OTLPEndpoint is the collector host:port for the otlp trace exporter.
	OTLPEndpoint string `yaml:"otlp_endpoint" validate:"required_if=Traces otlp"`

	// OTLPInsecure disables TLS towards the collector.
	OTLPInsecure bool `yaml:"otlp_insecure"`
}

// Neo4jConfig configures the optional graph database export.
type Neo4jConfig struct {
	URI      string `yaml:"uri" validate:"omitempty,uri"`
	Username string `yaml:"username"`

	// Password is normally supplied through RBCALLGRAPH_NEO4J_PASSWORD
	// rather than a file.
	Password  string `yaml:"password"`
	Database  string `yaml:"database"`
	BatchSize int    `yaml:"batch_size" validate:"gt=0"`
}

var configValidate = validator.New()

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Parser: ParserConfig{
			MaxFileSize: DefaultMaxFileSize,
		},
		Telemetry: TelemetryConfig{
			ServiceName: DefaultServiceName,
			Traces:      "none",
			Metrics:     "prometheus",
		},
		Neo4j: Neo4jConfig{
			Username:  "neo4j",
			BatchSize: DefaultNeo4jBatchSize,
		},
	}
}

// LoadConfig builds the runtime configuration.
//
// Description:
//
//	Starts from DefaultConfig, merges the YAML file at path over it when
//	path is non-empty, applies environment overrides and validates the
//	result. Fields absent from the file keep their defaults.
//
// Inputs:
//
//	ctx - Context for tracing.
//	path - Config file path. Empty means no file.
//
// Outputs:
//
//	*Config - The validated configuration.
//	error - Wraps ErrInvalidConfig for unusable values; file read errors are
//	        returned wrapped as-is.
func LoadConfig(ctx context.Context, path string) (*Config, error) {
	_, span := configTracer.Start(ctx, "config.LoadConfig")
	defer span.End()

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("LoadConfig: reading %s: %w", path, err)
		}
		if err := cfg.merge(data); err != nil {
			return nil, fmt.Errorf("LoadConfig: %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, fmt.Errorf("LoadConfig: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("LoadConfig: %w", err)
	}

	span.SetAttributes(
		attribute.String("config.path", path),
		attribute.String("config.traces", cfg.Telemetry.Traces),
		attribute.String("config.metrics", cfg.Telemetry.Metrics),
		attribute.Bool("config.neo4j", cfg.Neo4j.URI != ""),
	)

	slog.Debug("config loaded",
		slog.String("path", path),
		slog.String("log_level", cfg.Log.Level),
		slog.Int64("max_file_size", cfg.Parser.MaxFileSize),
	)

	return cfg, nil
}

// merge decodes YAML data over the receiver.
func (c *Config) merge(data []byte) error {
	if len(data) > MaxYAMLFileSize {
		return fmt.Errorf("%w: YAML data exceeds maximum size (%d > %d)", ErrInvalidConfig, len(data), MaxYAMLFileSize)
	}
	if len(data) == 0 {
		return nil
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("%w: parsing YAML: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ApplyEnv overrides fields from environment variables.
//
// Inputs:
//
//	lookup - Environment accessor, os.LookupEnv outside tests.
//
// Outputs:
//
//	error - Wraps ErrInvalidConfig if a numeric variable does not parse.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	setString := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	setString(EnvLogLevel, &c.Log.Level)
	setString(EnvLogFormat, &c.Log.Format)
	setString(EnvTracesExporter, &c.Telemetry.Traces)
	setString(EnvMetricsExporter, &c.Telemetry.Metrics)
	setString(EnvOTLPEndpoint, &c.Telemetry.OTLPEndpoint)
	setString(EnvNeo4jURI, &c.Neo4j.URI)
	setString(EnvNeo4jUser, &c.Neo4j.Username)
	setString(EnvNeo4jPassword, &c.Neo4j.Password)
	setString(EnvNeo4jDatabase, &c.Neo4j.Database)

	if v, ok := lookup(EnvMaxFileSize); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, EnvMaxFileSize, v, err)
		}
		c.Parser.MaxFileSize = n
	}
	return nil
}

// Validate checks the struct tags of every section.
//
// Outputs:
//
//	error - Wraps ErrInvalidConfig and names every failing field.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("%w: %s", ErrInvalidConfig, describeValidationErrors(verrs))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func describeValidationErrors(verrs validator.ValidationErrors) string {
	msg := ""
	for i, fe := range verrs {
		if i > 0 {
			msg += "; "
		}
		if fe.Param() != "" {
			msg += fmt.Sprintf("%s failed %s=%s (got %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value())
		} else {
			msg += fmt.Sprintf("%s failed %s (got %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
	}
	return msg
}
