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
	_ "embed"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Blacklist
// =============================================================================

//go:embed blacklist.yaml
var defaultBlacklistYAML []byte

// =============================================================================
// Blacklist Type and Loading
// =============================================================================

// Blacklist is the set of call targets that never become DOT edges.
//
// The set is loaded from blacklist.yaml at startup and cached. It has no
// effect on the attribution state or on the text projections.
//
// # Thread Safety
//
// Safe for concurrent use after initialization (immutable after load).
type Blacklist map[string]struct{}

// blacklistFile is the on-disk layout of blacklist.yaml.
type blacklistFile struct {
	Targets []string `yaml:"targets"`
}

var (
	cachedBlacklist Blacklist
	blacklistOnce   sync.Once
	blacklistErr    error
)

// Contains reports whether name is blacklisted. A nil Blacklist contains
// nothing.
func (b Blacklist) Contains(name string) bool {
	_, ok := b[name]
	return ok
}

// Names returns the blacklisted targets, sorted.
func (b Blacklist) Names() []string {
	names := make([]string, 0, len(b))
	for name := range b {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseBlacklist parses blacklist YAML bytes.
//
// # Description
//
//	Expects a single `targets` list of strings. Empty entries are rejected
//	since an empty call name can never be produced by the parser.
//
// # Outputs
//
//   - Blacklist: The parsed set. Never nil on success.
//   - error: Non-nil if the YAML is malformed or an entry is empty.
func ParseBlacklist(data []byte) (Blacklist, error) {
	var raw blacklistFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing blacklist: %w", err)
	}

	out := make(Blacklist, len(raw.Targets))
	for i, name := range raw.Targets {
		if name == "" {
			return nil, fmt.Errorf("blacklist target[%d] must not be empty", i)
		}
		out[name] = struct{}{}
	}
	return out, nil
}

// LoadBlacklist loads and caches the embedded blacklist. Returns the cached
// result on subsequent calls.
//
// # Outputs
//
//   - Blacklist: The loaded set. Never nil on success.
//   - error: Non-nil if the embedded YAML fails to parse.
//
// # Thread Safety
//
// Safe for concurrent use (uses sync.Once internally).
func LoadBlacklist() (Blacklist, error) {
	blacklistOnce.Do(func() {
		cachedBlacklist, blacklistErr = ParseBlacklist(defaultBlacklistYAML)
		if blacklistErr != nil {
			blacklistErr = fmt.Errorf("blacklist.yaml: %w", blacklistErr)
			return
		}
		slog.Debug("blacklist loaded", slog.Int("target_count", len(cachedBlacklist)))
	})
	return cachedBlacklist, blacklistErr
}

// MustLoadBlacklist loads the blacklist or returns an empty one on error.
// Logs a warning if loading fails; the graph is then rendered unfiltered.
//
// # Thread Safety
//
// Safe for concurrent use.
func MustLoadBlacklist() Blacklist {
	b, err := LoadBlacklist()
	if err != nil {
		slog.Warn("blacklist loading failed, rendering without edge filter",
			slog.String("error", err.Error()),
		)
		return make(Blacklist)
	}
	return b
}
