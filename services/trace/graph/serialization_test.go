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
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func sampleState() *AttributionState {
	return Walk(other(
		def("a", call("b"), call("log"), call("b")),
		def("b", call("fetch")),
		def("empty"),
	))
}

func TestToSerializable_NilState(t *testing.T) {
	s := ToSerializable(nil, "x.rb", "run-1")

	if s.SchemaVersion != SnapshotSchemaVersion {
		t.Errorf("schema version = %q, want %q", s.SchemaVersion, SnapshotSchemaVersion)
	}
	if len(s.Definers) != 0 {
		t.Errorf("definers = %d, want 0", len(s.Definers))
	}
	if s.Called == nil || s.Remote == nil {
		t.Error("derived lists should be empty, not nil")
	}
}

func TestToSerializable_Fields(t *testing.T) {
	s := ToSerializable(sampleState(), "lib/app.rb", "run-1")

	if s.FilePath != "lib/app.rb" {
		t.Errorf("file path = %q, want %q", s.FilePath, "lib/app.rb")
	}
	if s.RunID != "run-1" {
		t.Errorf("run id = %q, want %q", s.RunID, "run-1")
	}
	if s.GeneratedAtMilli == 0 {
		t.Error("generated_at_milli should not be zero")
	}

	wantDefiners := []SerializableDefiner{
		{Name: "a", Calls: []string{"b", "log", "b"}},
		{Name: "b", Calls: []string{"fetch"}},
		{Name: "empty", Calls: []string{}},
	}
	if !reflect.DeepEqual(s.Definers, wantDefiners) {
		t.Errorf("definers = %+v, want %+v", s.Definers, wantDefiners)
	}
	if want := []string{"a", "b", "empty"}; !reflect.DeepEqual(s.DefinedNames, want) {
		t.Errorf("defined names = %v, want %v", s.DefinedNames, want)
	}
	if want := []string{"b", "log", "fetch"}; !reflect.DeepEqual(s.Called, want) {
		t.Errorf("called = %v, want %v", s.Called, want)
	}
	if len(s.Remote) != 2 || s.Remote[0].Name != "log" || s.Remote[1].Name != "fetch" {
		t.Errorf("remote = %+v, want log then fetch", s.Remote)
	}
}

func TestSerializable_RoundTrip(t *testing.T) {
	state := sampleState()

	var buf bytes.Buffer
	if err := WriteJSON(&buf, ToSerializable(state, "app.rb", "run-1")); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	decoded, err := ReadJSON(&buf)
	if err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	restored, err := FromSerializable(decoded)
	if err != nil {
		t.Fatalf("FromSerializable: %v", err)
	}

	if !reflect.DeepEqual(restored.Definers(), state.Definers()) {
		t.Errorf("definers = %v, want %v", restored.Definers(), state.Definers())
	}
	for _, name := range state.Definers() {
		want, _ := state.Calls(name)
		got, ok := restored.Calls(name)
		if !ok {
			t.Fatalf("missing definer %q after round trip", name)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("calls[%q] = %v, want %v", name, got, want)
		}
	}
	if !reflect.DeepEqual(Remote(restored), Remote(state)) {
		t.Errorf("remote = %v, want %v", Remote(restored), Remote(state))
	}
}

func TestWriteJSON_FieldNames(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, ToSerializable(sampleState(), "app.rb", "run-1")); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"schema_version", "run_id", "file_path", "generated_at_milli", "defined_names", "definers", "called", "remote"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing JSON key %q", key)
		}
	}
}

func TestFromSerializable_Errors(t *testing.T) {
	if _, err := FromSerializable(nil); err == nil {
		t.Error("expected error for nil snapshot")
	}

	s := ToSerializable(sampleState(), "app.rb", "run-1")
	s.SchemaVersion = "0.1"
	_, err := FromSerializable(s)
	if err == nil {
		t.Fatal("expected error for unsupported schema version")
	}
	if !strings.Contains(err.Error(), "unsupported schema version") {
		t.Errorf("error = %v, want unsupported schema version", err)
	}
}

func TestReadJSON_Malformed(t *testing.T) {
	if _, err := ReadJSON(strings.NewReader("{not json")); err == nil {
		t.Error("expected error for malformed JSON")
	}
}
