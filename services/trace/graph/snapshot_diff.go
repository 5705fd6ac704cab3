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
	"fmt"
	"slices"
	"sort"
)

// Change types reported in DefinerDiff.
const (
	ChangeCallsChanged   = "calls_changed"
	ChangeCallsReordered = "calls_reordered"
)

// SnapshotDiff contains the differences between two snapshots.
type SnapshotDiff struct {
	// BaseRunID is the run ID of the base snapshot.
	BaseRunID string `json:"base_run_id"`

	// TargetRunID is the run ID of the target snapshot.
	TargetRunID string `json:"target_run_id"`

	// DefinersAdded are definers present in target but not in base.
	DefinersAdded []string `json:"definers_added"`

	// DefinersRemoved are definers present in base but not in target.
	DefinersRemoved []string `json:"definers_removed"`

	// DefinersModified are definers whose call sequence changed.
	DefinersModified []DefinerDiff `json:"definers_modified"`

	// EdgesAdded is the count of distinct caller/target pairs in target but
	// not in base.
	EdgesAdded int `json:"edges_added"`

	// EdgesRemoved is the count of distinct caller/target pairs in base but
	// not in target.
	EdgesRemoved int `json:"edges_removed"`

	// RemoteAdded are remote targets new in target.
	RemoteAdded []string `json:"remote_added"`

	// RemoteRemoved are remote targets no longer called in target.
	RemoteRemoved []string `json:"remote_removed"`

	// Summary contains aggregate statistics about the diff.
	Summary DiffSummary `json:"summary"`
}

// DefinerDiff describes how a single definer changed between snapshots.
type DefinerDiff struct {
	// Name is the definer.
	Name string `json:"name"`

	// ChangeType is ChangeCallsChanged or ChangeCallsReordered.
	ChangeType string `json:"change_type"`
}

// DiffSummary contains aggregate statistics about a diff.
type DiffSummary struct {
	// TotalChanges is added + removed + modified definers + edge changes.
	TotalChanges int `json:"total_changes"`

	// ChangeRatio is the fraction of definers that changed (0.0 to 1.0).
	ChangeRatio float64 `json:"change_ratio"`
}

// Empty reports whether the diff has no changes.
func (d *SnapshotDiff) Empty() bool {
	return d.Summary.TotalChanges == 0 && len(d.RemoteAdded) == 0 && len(d.RemoteRemoved) == 0
}

// DiffSnapshots computes the differences between two snapshots.
//
// Description:
//
//	Compares definers by name. A definer present in both is modified when
//	its call sequence differs; a sequence holding the same multiset of
//	targets in another order is reported as reordered. Edges are compared
//	as distinct caller/target pairs, so duplicate calls do not count.
//
// Inputs:
//
//	base - The older snapshot. Must not be nil.
//	target - The newer snapshot. Must not be nil.
//
// Outputs:
//
//	*SnapshotDiff - The computed differences, with sorted name lists.
//	error - Non-nil if either snapshot is nil.
//
// Complexity:
//
//	O(D + C) where D is the number of definers and C the number of calls.
func DiffSnapshots(base, target *SerializableState) (*SnapshotDiff, error) {
	if base == nil {
		return nil, fmt.Errorf("base snapshot must not be nil")
	}
	if target == nil {
		return nil, fmt.Errorf("target snapshot must not be nil")
	}

	diff := &SnapshotDiff{
		BaseRunID:        base.RunID,
		TargetRunID:      target.RunID,
		DefinersAdded:    []string{},
		DefinersRemoved:  []string{},
		DefinersModified: []DefinerDiff{},
	}

	baseCalls := definerCalls(base)
	targetCalls := definerCalls(target)

	for name, tCalls := range targetCalls {
		bCalls, exists := baseCalls[name]
		if !exists {
			diff.DefinersAdded = append(diff.DefinersAdded, name)
			continue
		}
		if slices.Equal(bCalls, tCalls) {
			continue
		}
		diff.DefinersModified = append(diff.DefinersModified, DefinerDiff{
			Name:       name,
			ChangeType: classifyChange(bCalls, tCalls),
		})
	}
	for name := range baseCalls {
		if _, exists := targetCalls[name]; !exists {
			diff.DefinersRemoved = append(diff.DefinersRemoved, name)
		}
	}

	sort.Strings(diff.DefinersAdded)
	sort.Strings(diff.DefinersRemoved)
	sort.Slice(diff.DefinersModified, func(i, j int) bool {
		return diff.DefinersModified[i].Name < diff.DefinersModified[j].Name
	})

	baseEdges := buildEdgeSet(base)
	targetEdges := buildEdgeSet(target)
	for key := range targetEdges {
		if !baseEdges[key] {
			diff.EdgesAdded++
		}
	}
	for key := range baseEdges {
		if !targetEdges[key] {
			diff.EdgesRemoved++
		}
	}

	diff.RemoteAdded = subtractNames(remoteNames(target), remoteNames(base))
	diff.RemoteRemoved = subtractNames(remoteNames(base), remoteNames(target))

	total := len(baseCalls) + len(diff.DefinersAdded)
	changed := len(diff.DefinersAdded) + len(diff.DefinersRemoved) + len(diff.DefinersModified)
	ratio := 0.0
	if total > 0 {
		ratio = float64(changed) / float64(total)
	}
	diff.Summary = DiffSummary{
		TotalChanges: changed + diff.EdgesAdded + diff.EdgesRemoved,
		ChangeRatio:  ratio,
	}

	return diff, nil
}

func definerCalls(s *SerializableState) map[string][]string {
	out := make(map[string][]string, len(s.Definers))
	for _, d := range s.Definers {
		out[d.Name] = d.Calls
	}
	return out
}

// classifyChange tells a reorder apart from a change of targets.
func classifyChange(base, target []string) string {
	if len(base) != len(target) {
		return ChangeCallsChanged
	}
	counts := make(map[string]int, len(base))
	for _, name := range base {
		counts[name]++
	}
	for _, name := range target {
		counts[name]--
		if counts[name] < 0 {
			return ChangeCallsChanged
		}
	}
	return ChangeCallsReordered
}

// buildEdgeSet creates a set of edge keys for comparison.
// Key format: "caller|target"
func buildEdgeSet(s *SerializableState) map[string]bool {
	set := make(map[string]bool)
	for _, d := range s.Definers {
		for _, target := range d.Calls {
			set[d.Name+"|"+target] = true
		}
	}
	return set
}

func remoteNames(s *SerializableState) []string {
	names := make([]string, 0, len(s.Remote))
	for _, r := range s.Remote {
		names = append(names, r.Name)
	}
	return names
}

// subtractNames returns the sorted names in a that are not in b.
func subtractNames(a, b []string) []string {
	drop := make(map[string]struct{}, len(b))
	for _, name := range b {
		drop[name] = struct{}{}
	}
	out := []string{}
	for _, name := range a {
		if _, ok := drop[name]; !ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
