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
	"bufio"
	"fmt"
	"io"
)

// TargetFilter decides which call targets are left out of rendered edges.
//
// config.Blacklist is the production implementation.
type TargetFilter interface {
	Contains(name string) bool
}

// noFilter keeps every edge.
type noFilter struct{}

func (noFilter) Contains(string) bool { return false }

// DOT document framing.
const (
	dotHeader = "digraph G {\n"
	dotPage   = " page=\"8.5,11;\"\n"
	dotFooter = "}\n"
)

// RenderDOT writes the call graph as a Graphviz document.
//
// Description:
//
//	For every definer, in the order its definition was first encountered,
//	writes one filled node declaration followed by one edge per attributed
//	call target, in encounter order. Duplicate targets produce duplicate
//	edge lines. Targets the filter contains are skipped. Names are quoted
//	verbatim without escaping.
//
//	Output shape:
//
//	  digraph G {
//	   page="8.5,11;"
//	    "a" [style=filled];
//	    "a" -> "b";
//	  }
//
// Inputs:
//
//	w - Destination. Writes are buffered and flushed before returning.
//	state - Attribution result. Not modified.
//	filter - Edge target blacklist. Nil keeps every edge.
//
// Outputs:
//
//	error - Non-nil only when writing to w fails.
func RenderDOT(w io.Writer, state *AttributionState, filter TargetFilter) error {
	if filter == nil {
		filter = noFilter{}
	}

	bw := bufio.NewWriter(w)

	if _, err := bw.WriteString(dotHeader); err != nil {
		return fmt.Errorf("writing dot header: %w", err)
	}
	if _, err := bw.WriteString(dotPage); err != nil {
		return fmt.Errorf("writing dot header: %w", err)
	}

	if state != nil {
		for _, src := range state.definers {
			if _, err := fmt.Fprintf(bw, "  %s [style=filled];\n", quote(src)); err != nil {
				return fmt.Errorf("writing node %s: %w", src, err)
			}
			for _, dst := range state.calls[src] {
				if filter.Contains(dst) {
					continue
				}
				if _, err := fmt.Fprintf(bw, "  %s -> %s;\n", quote(src), quote(dst)); err != nil {
					return fmt.Errorf("writing edge %s -> %s: %w", src, dst, err)
				}
			}
		}
	}

	if _, err := bw.WriteString(dotFooter); err != nil {
		return fmt.Errorf("writing dot footer: %w", err)
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flushing dot output: %w", err)
	}
	return nil
}

// quote wraps name in double quotes. Embedded quotes are not escaped.
func quote(name string) string {
	return `"` + name + `"`
}
