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

// RemoteCall is a call target that no definer in the file provides.
//
// Description:
//
//	Remote methods come from a superclass, a mixin, another file or the
//	standard library. Exports annotate them with the definers that call
//	them so a reader can see where the file depends on the outside.
//
// Thread Safety: Immutable after creation.
type RemoteCall struct {
	// Name is the call target.
	Name string `json:"name"`

	// CalledFrom lists the definers that call Name, in definer order,
	// each at most once.
	CalledFrom []string `json:"called_from"`
}

// Remote returns the Called list minus the Defined list, preserving the
// Called order.
func Remote(state *AttributionState) []string {
	called := Called(state)
	defined := make(map[string]struct{})
	for _, name := range Defined(state) {
		defined[name] = struct{}{}
	}

	out := make([]string, 0, len(called))
	for _, name := range called {
		if _, ok := defined[name]; ok {
			continue
		}
		out = append(out, name)
	}
	return out
}

// ClassifyRemoteCalls returns every remote target with its callers.
//
// Description:
//
//	Targets appear in the same order as Remote(state). For each target,
//	CalledFrom holds the definers whose call sequence contains it.
//
// Complexity:
//
//	O(C) where C is the total number of attributed calls.
func ClassifyRemoteCalls(state *AttributionState) []RemoteCall {
	names := Remote(state)
	if len(names) == 0 {
		return []RemoteCall{}
	}

	index := make(map[string]int, len(names))
	result := make([]RemoteCall, len(names))
	for i, name := range names {
		index[name] = i
		result[i] = RemoteCall{Name: name, CalledFrom: make([]string, 0, 1)}
	}

	for _, definer := range state.definers {
		seen := make(map[string]struct{})
		for _, target := range state.calls[definer] {
			i, ok := index[target]
			if !ok {
				continue
			}
			if _, dup := seen[target]; dup {
				continue
			}
			seen[target] = struct{}{}
			result[i].CalledFrom = append(result[i].CalledFrom, definer)
		}
	}

	return result
}
