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
	"fmt"
)

// NodeKind identifies the shape of a syntax node.
//
// Only definitions and calls carry meaning for call attribution. Every
// other construct (classes, conditionals, blocks, literals) collapses into
// NodeKindOther so its children are still visited.
type NodeKind int

const (
	// NodeKindOther is any node not otherwise matched.
	NodeKindOther NodeKind = iota

	// NodeKindDefinition is a named method definition with a body.
	// Example: def foo; bar; end
	NodeKindDefinition

	// NodeKindCall is an invocation of a named method with an optional
	// receiver. Examples: foo(1), obj.foo, foo
	NodeKindCall
)

// nodeKindNames maps NodeKind values to their string representations.
var nodeKindNames = map[NodeKind]string{
	NodeKindOther:      "other",
	NodeKindDefinition: "definition",
	NodeKindCall:       "call",
}

// String returns the string representation of the NodeKind.
func (k NodeKind) String() string {
	if name, ok := nodeKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Location represents a position in a source file.
type Location struct {
	// FilePath is the path to the source file as given to the parser.
	FilePath string `json:"file_path"`

	// StartLine is the 1-indexed line number where the node starts.
	StartLine int `json:"start_line"`

	// StartCol is the 0-indexed column where the node starts on StartLine.
	StartCol int `json:"start_col"`
}

// String returns a human-readable representation of the location.
//
// Format: "file_path:start_line:start_col"
func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.FilePath, l.StartLine, l.StartCol)
}

// Node is a tagged syntax tree node produced by a Parser.
//
// Description:
//
//	The field set used depends on Kind:
//	  - NodeKindDefinition: Name is the method name, Children is the body.
//	  - NodeKindCall: Name is the call target, Receiver is the explicit
//	    receiver (nil when the call is unqualified), Children are the
//	    arguments including any attached block.
//	  - NodeKindOther: Children are the nested nodes in source order.
//
// Thread Safety:
//
//	Nodes are not modified after construction and may be read from
//	multiple goroutines.
type Node struct {
	Kind     NodeKind `json:"kind"`
	Name     string   `json:"name,omitempty"`
	Receiver *Node    `json:"receiver,omitempty"`
	Children []*Node  `json:"children,omitempty"`
	Location Location `json:"location"`
}

// NewDefinition creates a definition node with the given body.
func NewDefinition(name string, body ...*Node) *Node {
	return &Node{Kind: NodeKindDefinition, Name: name, Children: body}
}

// NewCall creates a call node. Pass a nil receiver for an unqualified call.
func NewCall(receiver *Node, name string, args ...*Node) *Node {
	return &Node{Kind: NodeKindCall, Name: name, Receiver: receiver, Children: args}
}

// NewOther creates a node of no particular interest that only groups children.
func NewOther(children ...*Node) *Node {
	return &Node{Kind: NodeKindOther, Children: children}
}

// At returns the node with its location set. It exists so constructors can
// be chained when the parser builds nodes.
func (n *Node) At(loc Location) *Node {
	n.Location = loc
	return n
}

// HasReceiver reports whether a call node has an explicit receiver.
func (n *Node) HasReceiver() bool {
	return n.Receiver != nil
}

// Count returns the number of nodes of the given kind in the subtree rooted
// at n, including n itself.
func (n *Node) Count(kind NodeKind) int {
	if n == nil {
		return 0
	}
	total := 0
	if n.Kind == kind {
		total++
	}
	total += n.Receiver.Count(kind)
	for _, child := range n.Children {
		total += child.Count(kind)
	}
	return total
}
