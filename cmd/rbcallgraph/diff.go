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
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/AleutianAI/rbcallgraph/services/trace/graph"
	"github.com/AleutianAI/rbcallgraph/services/trace/storage"
	"github.com/spf13/cobra"
)

func newDiffCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "diff base.json target.json",
		Short: "Compare two JSON snapshots written with --json",
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 2 {
				return newUsageError(fmt.Sprintf("expected two snapshot arguments, got %d", len(args)), nil)
			}
			return nil
		},
		RunE: func(_ *cobra.Command, args []string) error {
			return runDiff(stdout, args[0], args[1])
		},
	}
}

// runDiff loads both snapshots and prints their diff as indented JSON.
func runDiff(w io.Writer, basePath, targetPath string) error {
	base, err := readSnapshot(basePath)
	if err != nil {
		return err
	}
	target, err := readSnapshot(targetPath)
	if err != nil {
		return err
	}

	diff, err := graph.DiffSnapshots(base, target)
	if err != nil {
		return fmt.Errorf("%w: %w", errInput, err)
	}
	slog.Debug("snapshots compared",
		slog.String("base", basePath),
		slog.String("target", targetPath),
		slog.Int("total_changes", diff.Summary.TotalChanges),
	)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(diff); err != nil {
		return fmt.Errorf("%w: stdout: %w", storage.ErrOutput, err)
	}
	return nil
}

func readSnapshot(path string) (*graph.SerializableState, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errInput, err)
	}
	defer f.Close()

	snap, err := graph.ReadJSON(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errInput, path, err)
	}
	if _, err := graph.FromSerializable(snap); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errInput, path, err)
	}
	return snap, nil
}
