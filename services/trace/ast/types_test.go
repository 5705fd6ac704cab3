// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNodeKind_String(t *testing.T) {
	tests := []struct {
		kind NodeKind
		want string
	}{
		{NodeKindOther, "other"},
		{NodeKindDefinition, "definition"},
		{NodeKindCall, "call"},
		{NodeKind(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.String())
		})
	}
}

func TestNode_Constructors(t *testing.T) {
	recv := NewCall(nil, "obj")
	c := NewCall(recv, "run", NewCall(nil, "arg"))
	d := NewDefinition("main", c)
	o := NewOther(d)

	assert.Equal(t, NodeKindCall, c.Kind)
	assert.True(t, c.HasReceiver())
	assert.False(t, recv.HasReceiver())
	assert.Len(t, c.Children, 1)
	assert.Equal(t, "main", d.Name)
	assert.Same(t, d, o.Children[0])
}

func TestNode_Count(t *testing.T) {
	tree := NewOther(
		NewDefinition("a",
			NewCall(NewCall(nil, "recv"), "m", NewCall(nil, "arg")),
		),
		NewDefinition("b"),
	)

	assert.Equal(t, 2, tree.Count(NodeKindDefinition))
	assert.Equal(t, 3, tree.Count(NodeKindCall))

	var nilNode *Node
	assert.Equal(t, 0, nilNode.Count(NodeKindCall))
}

func TestLocation_String(t *testing.T) {
	loc := Location{FilePath: "app.rb", StartLine: 3, StartCol: 2}
	assert.Equal(t, "app.rb:3:2", loc.String())
}

func TestParseError_Error(t *testing.T) {
	withLine := NewParseErrorWithCause("a.rb", 4, 7, "unexpected end", ErrParseFailed)
	assert.Equal(t, "a.rb:4:7: unexpected end", withLine.Error())
	assert.True(t, errors.Is(withLine, ErrParseFailed))

	withoutLine := NewParseErrorWithCause("a.rb", 0, 0, "empty tree", ErrParseFailed)
	assert.Equal(t, "a.rb: empty tree", withoutLine.Error())
}

func TestIsInputError(t *testing.T) {
	assert.True(t, IsInputError(fmt.Errorf("wrapped: %w", ErrFileTooLarge)))
	assert.True(t, IsInputError(NewParseErrorWithCause("a.rb", 1, 0, "x", nil)))
	assert.False(t, IsInputError(errors.New("disk on fire")))
	assert.False(t, IsInputError(nil))
}
