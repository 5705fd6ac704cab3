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
	"testing"
)

func TestLoadBlacklist_Embedded(t *testing.T) {
	b, err := LoadBlacklist()
	if err != nil {
		t.Fatalf("LoadBlacklist failed on embedded YAML: %v", err)
	}

	want := []string{
		"__method__", "assert", "configatron", "gating_agent", "log",
		"param", "raise", "request", "soft_assert", "testing?",
	}
	got := b.Names()
	if len(got) != len(want) {
		t.Fatalf("expected %d targets, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("target[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLoadBlacklist_Cached(t *testing.T) {
	first, err := LoadBlacklist()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second := MustLoadBlacklist()

	if len(first) != len(second) {
		t.Errorf("expected cached blacklist, got sizes %d and %d", len(first), len(second))
	}
}

func TestBlacklist_Contains(t *testing.T) {
	b := MustLoadBlacklist()

	for _, name := range []string{"log", "testing?", "__method__"} {
		if !b.Contains(name) {
			t.Errorf("expected %q to be blacklisted", name)
		}
	}
	for _, name := range []string{"logger", "Log", "testing", ""} {
		if b.Contains(name) {
			t.Errorf("expected %q not to be blacklisted", name)
		}
	}

	var empty Blacklist
	if empty.Contains("log") {
		t.Error("nil blacklist should contain nothing")
	}
}

func TestParseBlacklist_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "malformed", yaml: "targets: [log"},
		{name: "empty entry", yaml: "targets:\n  - log\n  - \"\"\n"},
		{name: "wrong type", yaml: "targets: 3\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseBlacklist([]byte(tt.yaml)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParseBlacklist_Empty(t *testing.T) {
	b, err := ParseBlacklist([]byte("targets: []\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(b) != 0 {
		t.Errorf("expected empty blacklist, got %v", b.Names())
	}
}
