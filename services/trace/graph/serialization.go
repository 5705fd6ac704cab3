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
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// SnapshotSchemaVersion is the version of the serialization schema.
// Increment when the serialization format changes in a breaking way.
const SnapshotSchemaVersion = "1.0"

// SerializableState is the JSON-serializable representation of an
// AttributionState plus its derived projections.
//
// Description:
//
//	Definers keep first-encounter order and calls keep encounter order,
//	so the snapshot is deterministic for a given file apart from RunID and
//	GeneratedAtMilli.
//
// Thread Safety: SerializableState is a value type with no internal state.
type SerializableState struct {
	// SchemaVersion identifies the serialization format version.
	SchemaVersion string `json:"schema_version"`

	// RunID identifies the run that produced the snapshot. Exports written
	// by the same run share it.
	RunID string `json:"run_id"`

	// FilePath is the analyzed source file.
	FilePath string `json:"file_path"`

	// GeneratedAtMilli is the Unix timestamp in milliseconds of the export.
	GeneratedAtMilli int64 `json:"generated_at_milli"`

	// DefinedNames is every name seen on a definition, sorted.
	DefinedNames []string `json:"defined_names"`

	// Definers holds the per-method call sequences.
	Definers []SerializableDefiner `json:"definers"`

	// Called is the deduplicated call target list.
	Called []string `json:"called"`

	// Remote lists targets not defined in the file with their callers.
	Remote []RemoteCall `json:"remote"`
}

// SerializableDefiner is one definer and its attributed calls.
type SerializableDefiner struct {
	Name  string   `json:"name"`
	Calls []string `json:"calls"`
}

// ToSerializable converts a state to its JSON-serializable representation.
//
// Inputs:
//
//	state - The attribution result. A nil state yields an empty snapshot.
//	filePath - The analyzed file.
//	runID - Identifier shared by all exports of one run.
//
// Outputs:
//
//	*SerializableState - Never nil.
func ToSerializable(state *AttributionState, filePath, runID string) *SerializableState {
	if state == nil {
		state = NewAttributionState()
	}

	definers := make([]SerializableDefiner, 0, state.Len())
	for _, name := range state.definers {
		calls, _ := state.Calls(name)
		definers = append(definers, SerializableDefiner{Name: name, Calls: calls})
	}

	return &SerializableState{
		SchemaVersion:    SnapshotSchemaVersion,
		RunID:            runID,
		FilePath:         filePath,
		GeneratedAtMilli: time.Now().UnixMilli(),
		DefinedNames:     state.DefinedNames(),
		Definers:         definers,
		Called:           Called(state),
		Remote:           ClassifyRemoteCalls(state),
	}
}

// FromSerializable reconstructs an AttributionState from a snapshot.
//
// Description:
//
//	Rebuilds the defined set and the ordered call sequences through the
//	same insert-then-append path the walker uses. Derived fields (Called,
//	Remote) are ignored; they are recomputed from the sequences.
//
// Errors:
//
//	Returns error if s is nil or the schema version is unsupported.
func FromSerializable(s *SerializableState) (*AttributionState, error) {
	if s == nil {
		return nil, fmt.Errorf("serializable state must not be nil")
	}
	if s.SchemaVersion != SnapshotSchemaVersion {
		return nil, fmt.Errorf("unsupported schema version %q (expected %q)", s.SchemaVersion, SnapshotSchemaVersion)
	}

	state := NewAttributionState()
	for _, name := range s.DefinedNames {
		state.define(name)
	}
	for _, d := range s.Definers {
		state.ensure(d.Name)
		for _, target := range d.Calls {
			state.appendCall(d.Name, target)
		}
	}
	return state, nil
}

// WriteJSON encodes the snapshot as indented JSON.
func WriteJSON(w io.Writer, s *SerializableState) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return nil
}

// ReadJSON decodes a snapshot written by WriteJSON.
func ReadJSON(r io.Reader) (*SerializableState, error) {
	var s SerializableState
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &s, nil
}
