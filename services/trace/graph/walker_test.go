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
	"context"
	"testing"

	"github.com/AleutianAI/rbcallgraph/services/trace/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// Helpers for building trees by hand.
func def(name string, body ...*ast.Node) *ast.Node { return ast.NewDefinition(name, body...) }
func call(name string, args ...*ast.Node) *ast.Node {
	return ast.NewCall(nil, name, args...)
}
func send(recv *ast.Node, name string, args ...*ast.Node) *ast.Node {
	return ast.NewCall(recv, name, args...)
}
func other(children ...*ast.Node) *ast.Node { return ast.NewOther(children...) }

func callsOf(t *testing.T, state *AttributionState, definer string) []string {
	t.Helper()
	calls, ok := state.Calls(definer)
	require.True(t, ok, "expected entry for %q", definer)
	return calls
}

func TestWalk_NilRoot(t *testing.T) {
	state := Walk(nil)

	require.NotNil(t, state)
	assert.Equal(t, 0, state.Len())
	assert.Empty(t, state.DefinedNames())
}

func TestWalk_NoDefinitions(t *testing.T) {
	// Calls outside any definition are ignored
	root := other(call("setup"), send(call("obj"), "run"), other(call("deep")))

	state := Walk(root)

	assert.Equal(t, 0, state.Len())
	assert.Empty(t, state.DefinedNames())
	assert.Empty(t, Defined(state))
	assert.Empty(t, Called(state))
	assert.Empty(t, Remote(state))
}

func TestWalk_SingleDefinitionKeepsDuplicatesAndOrder(t *testing.T) {
	root := other(def("foo", call("bar"), call("baz"), call("bar")))

	state := Walk(root)

	assert.Equal(t, []string{"bar", "baz", "bar"}, callsOf(t, state, "foo"))
	assert.True(t, state.IsDefined("foo"))
}

func TestWalk_EmptyBodyStillHasEntry(t *testing.T) {
	state := Walk(other(def("noop")))

	calls := callsOf(t, state, "noop")
	assert.Empty(t, calls)
	assert.Equal(t, []string{"noop"}, state.Definers())
}

func TestWalk_ReceiverCallsAreIgnored(t *testing.T) {
	root := other(
		def("foo",
			send(other(), "explicit"),
			other(other(send(call("helper"), "deep"))),
		),
	)

	state := Walk(root)

	// helper is the receiver-less receiver of deep and is recorded
	assert.Equal(t, []string{"helper"}, callsOf(t, state, "foo"))
}

func TestWalk_CallsNestedInArgumentsAndOtherNodes(t *testing.T) {
	root := other(
		def("foo",
			other( // e.g. an if statement
				call("outer", call("inner", call("innermost"))),
			),
			send(other(), "each", other(call("in_block"))),
		),
	)

	state := Walk(root)

	assert.Equal(t, []string{"outer", "inner", "innermost", "in_block"}, callsOf(t, state, "foo"))
}

func TestWalk_DefinitionOrderIsFirstEncounter(t *testing.T) {
	root := other(
		def("b", call("x")),
		def("a", call("y")),
		def("b", call("z")),
	)

	state := Walk(root)

	assert.Equal(t, []string{"b", "a"}, state.Definers())
	assert.Equal(t, []string{"x", "z"}, callsOf(t, state, "b"))
}

func TestWalk_NestedDefinitionClearsActiveDefinition(t *testing.T) {
	root := other(
		def("outer",
			call("before"),
			def("inner", call("within")),
			call("x"),
		),
	)

	state := Walk(root)

	assert.Equal(t, []string{"before"}, callsOf(t, state, "outer"))
	assert.Equal(t, []string{"within"}, callsOf(t, state, "inner"))
	assert.Equal(t, []string{"outer", "inner"}, state.Definers())
	assert.NotContains(t, Called(state), "x")

	_, active := state.ActiveDefinition()
	assert.False(t, active)
}

func TestWalk_Idempotent(t *testing.T) {
	root := other(
		def("a", call("b"), call("log"), send(call("c"), "d")),
		def("b"),
	)

	first := Walk(root)
	second := Walk(root)

	assert.Equal(t, first, second)
	assert.Equal(t, renderString(t, first, nil), renderString(t, second, nil))
}

func TestWalkContext_RecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	state := WalkContext(context.Background(), other(def("a", call("b"))))

	assert.Equal(t, []string{"b"}, callsOf(t, state, "a"))

	var names []string
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}
	assert.Contains(t, names, "graph.Walk")
}
