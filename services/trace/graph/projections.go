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

// Defined returns every method with an attribution entry, in the order
// its definition was first encountered.
//
// For inputs without nested definitions this is the same set as
// AttributionState.DefinedNames.
func Defined(state *AttributionState) []string {
	if state == nil {
		return []string{}
	}
	return state.Definers()
}

// Called returns the distinct call targets across all definers.
//
// Targets are ordered by definer (first-encounter order) and, within a
// definer, by encounter order; only the first occurrence of each target
// is kept. The edge blacklist does not apply here.
func Called(state *AttributionState) []string {
	if state == nil {
		return []string{}
	}

	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, definer := range state.definers {
		for _, target := range state.calls[definer] {
			if _, ok := seen[target]; ok {
				continue
			}
			seen[target] = struct{}{}
			out = append(out, target)
		}
	}
	return out
}

// WriteLines writes one name per line.
func WriteLines(w io.Writer, names []string) error {
	bw := bufio.NewWriter(w)
	for _, name := range names {
		if _, err := fmt.Fprintln(bw, name); err != nil {
			return fmt.Errorf("writing %q: %w", name, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flushing lines: %w", err)
	}
	return nil
}
