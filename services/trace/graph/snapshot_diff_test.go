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
	"slices"
	"testing"
)

func TestDiffSnapshots_IdenticalSnapshots(t *testing.T) {
	s := ToSerializable(sampleState(), "app.rb", "run-1")

	diff, err := DiffSnapshots(s, s)
	if err != nil {
		t.Fatalf("DiffSnapshots: %v", err)
	}

	if !diff.Empty() {
		t.Errorf("expected empty diff, got %+v", diff)
	}
	if diff.Summary.ChangeRatio != 0 {
		t.Errorf("change ratio = %f, want 0", diff.Summary.ChangeRatio)
	}
}

func TestDiffSnapshots_Changes(t *testing.T) {
	base := ToSerializable(sampleState(), "app.rb", "run-1")
	target := ToSerializable(Walk(other(
		def("a", call("log"), call("b"), call("b")),
		def("b", call("fetch"), call("save")),
		def("c"),
	)), "app.rb", "run-2")

	diff, err := DiffSnapshots(base, target)
	if err != nil {
		t.Fatalf("DiffSnapshots: %v", err)
	}

	if diff.BaseRunID != "run-1" || diff.TargetRunID != "run-2" {
		t.Errorf("run ids = %q, %q", diff.BaseRunID, diff.TargetRunID)
	}
	if !slices.Equal(diff.DefinersAdded, []string{"c"}) {
		t.Errorf("definers added = %v, want [c]", diff.DefinersAdded)
	}
	if !slices.Equal(diff.DefinersRemoved, []string{"empty"}) {
		t.Errorf("definers removed = %v, want [empty]", diff.DefinersRemoved)
	}

	wantModified := []DefinerDiff{
		{Name: "a", ChangeType: ChangeCallsReordered},
		{Name: "b", ChangeType: ChangeCallsChanged},
	}
	if !slices.Equal(diff.DefinersModified, wantModified) {
		t.Errorf("definers modified = %v, want %v", diff.DefinersModified, wantModified)
	}

	if diff.EdgesAdded != 1 {
		t.Errorf("edges added = %d, want 1", diff.EdgesAdded)
	}
	if diff.EdgesRemoved != 0 {
		t.Errorf("edges removed = %d, want 0", diff.EdgesRemoved)
	}
	if !slices.Equal(diff.RemoteAdded, []string{"save"}) {
		t.Errorf("remote added = %v, want [save]", diff.RemoteAdded)
	}
	if len(diff.RemoteRemoved) != 0 {
		t.Errorf("remote removed = %v, want none", diff.RemoteRemoved)
	}
	if diff.Summary.TotalChanges != 5 {
		t.Errorf("total changes = %d, want 5", diff.Summary.TotalChanges)
	}
	if diff.Summary.ChangeRatio != 1.0 {
		t.Errorf("change ratio = %f, want 1.0", diff.Summary.ChangeRatio)
	}
}

func TestDiffSnapshots_DuplicateCallsAreOneEdge(t *testing.T) {
	base := ToSerializable(Walk(other(def("a", call("b")))), "app.rb", "run-1")
	target := ToSerializable(Walk(other(def("a", call("b"), call("b")))), "app.rb", "run-2")

	diff, err := DiffSnapshots(base, target)
	if err != nil {
		t.Fatalf("DiffSnapshots: %v", err)
	}

	if diff.EdgesAdded != 0 || diff.EdgesRemoved != 0 {
		t.Errorf("edges added/removed = %d/%d, want 0/0", diff.EdgesAdded, diff.EdgesRemoved)
	}
	if len(diff.DefinersModified) != 1 || diff.DefinersModified[0].ChangeType != ChangeCallsChanged {
		t.Errorf("definers modified = %v", diff.DefinersModified)
	}
}

func TestDiffSnapshots_NilInputs(t *testing.T) {
	s := ToSerializable(nil, "app.rb", "run-1")

	if _, err := DiffSnapshots(nil, s); err == nil {
		t.Error("expected error for nil base")
	}
	if _, err := DiffSnapshots(s, nil); err == nil {
		t.Error("expected error for nil target")
	}
}
