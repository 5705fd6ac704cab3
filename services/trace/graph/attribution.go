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
	"sort"
)

// AttributionState is the result of one attribution walk over a syntax tree.
//
// Description:
//
//	Holds the set of every defined method name and, per defining method,
//	the receiver-less call targets seen while that method was the active
//	definition. Definers keep the order in which their definitions were
//	first encountered; call targets keep encounter order and duplicates.
//
//	A definer has an entry as soon as its definition is visited, even when
//	its body makes no qualifying calls.
//
// Thread Safety:
//
//	Not safe for concurrent mutation. A state is owned by the walk that
//	builds it and is read-only afterwards; concurrent reads are safe.
type AttributionState struct {
	// active is the definition whose body is being walked.
	active    string
	hasActive bool

	definedNames map[string]struct{}

	// definers preserves key insertion order of calls.
	definers []string
	calls    map[string][]string
}

// NewAttributionState creates an empty state.
func NewAttributionState() *AttributionState {
	return &AttributionState{
		definedNames: make(map[string]struct{}),
		definers:     make([]string, 0),
		calls:        make(map[string][]string),
	}
}

// ensure creates an empty call sequence for name if none exists.
func (s *AttributionState) ensure(name string) {
	if _, ok := s.calls[name]; ok {
		return
	}
	s.definers = append(s.definers, name)
	s.calls[name] = make([]string, 0)
}

// appendCall inserts name if absent, then appends target to its sequence.
func (s *AttributionState) appendCall(name, target string) {
	s.ensure(name)
	s.calls[name] = append(s.calls[name], target)
}

func (s *AttributionState) define(name string) {
	s.definedNames[name] = struct{}{}
}

func (s *AttributionState) setActive(name string) {
	s.active = name
	s.hasActive = true
}

func (s *AttributionState) clearActive() {
	s.active = ""
	s.hasActive = false
}

// ActiveDefinition returns the current active definition and whether one is
// set. Outside a walk it always reports none.
func (s *AttributionState) ActiveDefinition() (string, bool) {
	return s.active, s.hasActive
}

// IsDefined reports whether name was seen on any definition.
func (s *AttributionState) IsDefined(name string) bool {
	_, ok := s.definedNames[name]
	return ok
}

// DefinedNames returns every defined method name, sorted.
//
// The underlying set has no order; sorting keeps output deterministic.
func (s *AttributionState) DefinedNames() []string {
	names := make([]string, 0, len(s.definedNames))
	for name := range s.definedNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definers returns the methods that have a call sequence, in the order
// their definitions were first encountered.
func (s *AttributionState) Definers() []string {
	out := make([]string, len(s.definers))
	copy(out, s.definers)
	return out
}

// Calls returns a copy of the call targets attributed to definer, in
// encounter order with duplicates. The bool is false when definer has no
// entry.
func (s *AttributionState) Calls(definer string) ([]string, bool) {
	calls, ok := s.calls[definer]
	if !ok {
		return nil, false
	}
	out := make([]string, len(calls))
	copy(out, calls)
	return out, true
}

// Len returns the number of definers.
func (s *AttributionState) Len() int {
	return len(s.definers)
}

// CallCount returns the total number of attributed calls, duplicates included.
func (s *AttributionState) CallCount() int {
	total := 0
	for _, calls := range s.calls {
		total += len(calls)
	}
	return total
}
