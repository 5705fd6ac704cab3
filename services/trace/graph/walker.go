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
	"log/slog"

	"github.com/AleutianAI/rbcallgraph/services/trace/ast"
	"go.opentelemetry.io/otel/attribute"
)

// Walk attributes receiver-less calls to their enclosing method definition.
//
// Description:
//
//	Performs one pre-order, depth-first pass over root, visiting every
//	child of every node:
//	  - Definition n: n is added to the defined set and given an (possibly
//	    empty) call sequence, becomes the active definition while its body
//	    is walked, and the active definition is cleared afterwards.
//	  - Call t without a receiver: t is appended to the active definition's
//	    sequence, if there is one. The receiver (if any) and the arguments
//	    are then walked, since calls nest inside both.
//	  - Any other node: children are walked in order.
//
// Inputs:
//
//	root - Root of the syntax tree. A nil root yields an empty state.
//
// Outputs:
//
//	*AttributionState - Never nil.
//
// Limitations:
//
//	The active definition is a single value, not a stack. Leaving a nested
//	definition clears it outright instead of restoring the enclosing one,
//	so calls in an outer body after a nested `def` closes are attributed
//	to no method at all.
//
// Thread Safety:
//
//	Safe for concurrent use on a shared tree; each call owns its state.
func Walk(root *ast.Node) *AttributionState {
	state := NewAttributionState()
	walkNode(state, root)
	return state
}

func walkNode(state *AttributionState, node *ast.Node) {
	if node == nil {
		return
	}

	switch node.Kind {
	case ast.NodeKindDefinition:
		state.define(node.Name)
		state.ensure(node.Name)
		state.setActive(node.Name)
		walkChildren(state, node.Children)
		state.clearActive()

	case ast.NodeKindCall:
		if !node.HasReceiver() {
			if active, ok := state.ActiveDefinition(); ok {
				state.appendCall(active, node.Name)
			}
		}
		walkNode(state, node.Receiver)
		walkChildren(state, node.Children)

	default:
		walkChildren(state, node.Children)
	}
}

func walkChildren(state *AttributionState, children []*ast.Node) {
	for _, child := range children {
		walkNode(state, child)
	}
}

// WalkContext runs Walk inside a tracing span and records walk metrics.
//
// Description:
//
//	The walk itself is synchronous and cannot be canceled; ctx only carries
//	the trace parent and is used for metric recording.
//
// Inputs:
//
//	ctx - Context for tracing and metrics.
//	root - Root of the syntax tree.
//
// Outputs:
//
//	*AttributionState - Same result as Walk(root).
func WalkContext(ctx context.Context, root *ast.Node) *AttributionState {
	ctx, span := tracer.Start(ctx, "graph.Walk")
	defer span.End()

	state := Walk(root)

	span.SetAttributes(
		attribute.Int("graph.definers", state.Len()),
		attribute.Int("graph.defined_names", len(state.definedNames)),
		attribute.Int("graph.calls_attributed", state.CallCount()),
	)
	recordWalkMetrics(ctx, state)

	slog.Debug("call attribution complete",
		slog.Int("definers", state.Len()),
		slog.Int("calls_attributed", state.CallCount()),
	)

	return state
}
