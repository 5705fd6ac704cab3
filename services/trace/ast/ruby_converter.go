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
	"regexp"

	sitter "github.com/smacker/go-tree-sitter"
)

// Tree-sitter Ruby node types the converter treats specially.
const (
	rubyNodeMethod          = "method"
	rubyNodeSingletonMethod = "singleton_method"
	rubyNodeClass           = "class"
	rubyNodeModule          = "module"
	rubyNodeSingletonClass  = "singleton_class"
	rubyNodeBlock           = "block"
	rubyNodeDoBlock         = "do_block"
	rubyNodeLambda          = "lambda"
	rubyNodeCall            = "call"
	rubyNodeIdentifier      = "identifier"
	rubyNodeScopeResolution = "scope_resolution"
	rubyNodeAssignment      = "assignment"
	rubyNodeOpAssignment    = "operator_assignment"
	rubyNodeExceptionVar    = "exception_variable"
	rubyNodeFor             = "for"
	rubyNodeSuper           = "super"
	rubyNodeAlias           = "alias"
	rubyNodeUndef           = "undef"
	rubyNodeInClause        = "in_clause"
	rubyNodeMatchPattern    = "match_pattern"
	rubyNodeTestPattern     = "test_pattern"
	rubyNodeKeywordPattern  = "keyword_pattern"
	rubyNodeAsPattern       = "as_pattern"
	rubyNodeVarRefPattern   = "variable_reference_pattern"
	rubyNodeExprRefPattern  = "expression_reference_pattern"
	rubyNodePair            = "pair"
	rubyNodeHashKeySymbol   = "hash_key_symbol"
	rubyNodeBinary          = "binary"
	rubyNodeRegex           = "regex"
	rubyNodeInterpolation   = "interpolation"
)

// rubyPatternContainers hold sub-patterns whose bare identifiers bind
// locals.
var rubyPatternContainers = map[string]bool{
	"array_pattern":         true,
	"find_pattern":          true,
	"hash_pattern":          true,
	"alternative_pattern":   true,
	"parenthesized_pattern": true,
}

// rubyPatternSplats are `*rest` and `**rest` inside a pattern.
var rubyPatternSplats = map[string]bool{
	"splat_parameter":      true,
	"hash_splat_parameter": true,
}

// rubyNamedCapture matches a named group that Ruby turns into a local when
// the regex literal is the left operand of =~.
var rubyNamedCapture = regexp.MustCompile(`\(\?<([a-z_][A-Za-z0-9_]*)>`)

// rubyParameterLists are the node types whose identifiers declare locals.
var rubyParameterLists = map[string]bool{
	"method_parameters":      true,
	"parameters":             true,
	"block_parameters":       true,
	"lambda_parameters":      true,
	"destructured_parameter": true,
}

// rubyNamedParameters are parameter nodes whose `name` field declares a
// local and whose `value` field (if any) is an ordinary expression.
var rubyNamedParameters = map[string]bool{
	"optional_parameter":   true,
	"keyword_parameter":    true,
	"splat_parameter":      true,
	"hash_splat_parameter": true,
	"block_parameter":      true,
	"forward_parameter":    true,
	"hash_splat_nil":       true,
}

// rubyAssignmentTargets are multiple-assignment shapes whose identifiers
// all declare locals.
var rubyAssignmentTargets = map[string]bool{
	"left_assignment_list":         true,
	"destructured_left_assignment": true,
	"rest_assignment":              true,
}

// localScope is the set of local variable names visible at a point.
type localScope map[string]struct{}

// rubyConverter maps a tree-sitter Ruby tree onto Nodes.
//
// It tracks local variables lexically so a bare word can be classified as
// either a variable read or a receiver-less method call. The scope stack is
// owned by a single conversion and discarded afterwards.
type rubyConverter struct {
	content  []byte
	filePath string
	scopes   []localScope
}

func newRubyConverter(content []byte, filePath string) *rubyConverter {
	return &rubyConverter{
		content:  content,
		filePath: filePath,
		scopes:   []localScope{make(localScope)},
	}
}

// convert maps one tree-sitter node and its subtree. It never returns nil.
func (c *rubyConverter) convert(n *sitter.Node) *Node {
	switch n.Type() {
	case rubyNodeMethod:
		return c.convertMethod(n)

	case rubyNodeSingletonMethod:
		c.pushFreshScope()
		defer c.popScope()
		return NewOther(c.convertChildrenExcept(n, n.ChildByFieldName("name"))...).At(c.location(n))

	case rubyNodeClass, rubyNodeModule, rubyNodeSingletonClass:
		c.pushFreshScope()
		defer c.popScope()
		return NewOther(c.convertChildrenExcept(n, nil)...).At(c.location(n))

	case rubyNodeBlock, rubyNodeDoBlock, rubyNodeLambda:
		c.pushInheritedScope()
		defer c.popScope()
		return NewOther(c.convertChildrenExcept(n, nil)...).At(c.location(n))

	case rubyNodeCall:
		return c.convertCall(n)

	case rubyNodeIdentifier:
		return c.convertIdentifier(n)

	case rubyNodeScopeResolution:
		return c.convertScopeResolution(n)

	case rubyNodeAssignment, rubyNodeOpAssignment:
		return c.convertAssignment(n)

	case rubyNodeExceptionVar:
		c.declareAll(n)
		return NewOther().At(c.location(n))

	case rubyNodeFor:
		return c.convertFor(n)

	case rubyNodeAlias, rubyNodeUndef:
		// Method names here are symbols, not sends
		return NewOther().At(c.location(n))

	case rubyNodeInClause:
		pattern := n.ChildByFieldName("pattern")
		children := make([]*Node, 0, 3)
		if pattern != nil {
			children = append(children, c.convertPattern(pattern))
		}
		children = append(children, c.convertChildrenExcept(n, pattern)...)
		return NewOther(children...).At(c.location(n))

	case rubyNodeMatchPattern, rubyNodeTestPattern:
		return c.convertPatternMatch(n)

	case rubyNodePair:
		return c.convertPair(n)

	case rubyNodeBinary:
		return c.convertBinary(n)
	}

	if rubyParameterLists[n.Type()] {
		return c.convertParameters(n)
	}

	return NewOther(c.convertChildrenExcept(n, nil)...).At(c.location(n))
}

// convertMethod maps `def name(params) body end` to a Definition.
func (c *rubyConverter) convertMethod(n *sitter.Node) *Node {
	nameNode := n.ChildByFieldName("name")
	name := ""
	if nameNode != nil {
		name = nameNode.Content(c.content)
	}

	c.pushFreshScope()
	defer c.popScope()

	return NewDefinition(name, c.convertChildrenExcept(n, nameNode)...).At(c.location(n))
}

// convertCall maps a tree-sitter call to a Call node.
//
// The argument list is flattened into the call's children and an attached
// block follows the arguments, matching the order Ruby evaluates them.
func (c *rubyConverter) convertCall(n *sitter.Node) *Node {
	receiverNode := n.ChildByFieldName("receiver")
	methodNode := n.ChildByFieldName("method")
	argsNode := n.ChildByFieldName("arguments")
	blockNode := n.ChildByFieldName("block")

	var receiver *Node
	if receiverNode != nil {
		receiver = c.convert(receiverNode)
	}

	args := make([]*Node, 0, 4)
	if argsNode != nil {
		args = append(args, c.convertChildrenExcept(argsNode, nil)...)
	}
	if blockNode != nil {
		args = append(args, c.convert(blockNode))
	}

	if methodNode != nil && methodNode.Type() == rubyNodeSuper {
		// super is not a method send
		children := make([]*Node, 0, len(args)+1)
		if receiver != nil {
			children = append(children, receiver)
		}
		children = append(children, args...)
		return NewOther(children...).At(c.location(n))
	}

	name := "call" // recv.() is sugar for recv.call()
	if methodNode != nil {
		name = methodNode.Content(c.content)
	}

	return NewCall(receiver, name, args...).At(c.location(n))
}

// convertIdentifier classifies a bare word as a local read or a call.
func (c *rubyConverter) convertIdentifier(n *sitter.Node) *Node {
	name := n.Content(c.content)
	if c.isLocal(name) {
		return NewOther().At(c.location(n))
	}
	return NewCall(nil, name).At(c.location(n))
}

// convertScopeResolution maps `Scope::name`. A lowercase name after `::`
// is a method call on the scope.
func (c *rubyConverter) convertScopeResolution(n *sitter.Node) *Node {
	scopeNode := n.ChildByFieldName("scope")
	nameNode := n.ChildByFieldName("name")

	var scope *Node
	if scopeNode != nil {
		scope = c.convert(scopeNode)
	}

	if nameNode != nil && nameNode.Type() == rubyNodeIdentifier && scope != nil {
		return NewCall(scope, nameNode.Content(c.content)).At(c.location(n))
	}

	if scope == nil {
		return NewOther().At(c.location(n))
	}
	return NewOther(scope).At(c.location(n))
}

// convertAssignment declares assignment targets before converting the
// right-hand side, so `x = x` reads the new local on the right.
func (c *rubyConverter) convertAssignment(n *sitter.Node) *Node {
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")

	children := make([]*Node, 0, 2)
	if left != nil {
		if target := c.convertTarget(left); target != nil {
			children = append(children, target)
		}
	}
	if right != nil {
		children = append(children, c.convert(right))
	}

	return NewOther(children...).At(c.location(n))
}

// convertTarget declares the locals in an assignment target. Targets that
// are not plain locals (attribute writers, index writers, instance
// variables) are converted as expressions.
func (c *rubyConverter) convertTarget(n *sitter.Node) *Node {
	switch {
	case n.Type() == rubyNodeIdentifier:
		c.declare(n.Content(c.content))
		return nil

	case rubyAssignmentTargets[n.Type()]:
		children := make([]*Node, 0, n.NamedChildCount())
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			if child == nil {
				continue
			}
			if target := c.convertTarget(child); target != nil {
				children = append(children, target)
			}
		}
		return NewOther(children...).At(c.location(n))
	}

	return c.convert(n)
}

// convertPatternMatch maps `value => pattern` and `value in pattern`. The
// value is evaluated before the pattern binds.
func (c *rubyConverter) convertPatternMatch(n *sitter.Node) *Node {
	value := n.ChildByFieldName("value")
	pattern := n.ChildByFieldName("pattern")

	children := make([]*Node, 0, 2)
	if value != nil {
		children = append(children, c.convert(value))
	}
	if pattern != nil {
		children = append(children, c.convertPattern(pattern))
	}
	return NewOther(children...).At(c.location(n))
}

// convertPattern declares the locals a pattern binds and converts the
// expressions it evaluates (pinned expressions, constants, literals).
func (c *rubyConverter) convertPattern(n *sitter.Node) *Node {
	switch {
	case n.Type() == rubyNodeIdentifier:
		c.declare(n.Content(c.content))
		return NewOther().At(c.location(n))

	case n.Type() == rubyNodeVarRefPattern:
		// ^name reads an existing local
		return NewOther().At(c.location(n))

	case n.Type() == rubyNodeExprRefPattern:
		return NewOther(c.convertChildrenExcept(n, nil)...).At(c.location(n))

	case n.Type() == rubyNodeKeywordPattern:
		key := n.ChildByFieldName("key")
		value := n.ChildByFieldName("value")
		if value != nil {
			return NewOther(c.convertPattern(value)).At(c.location(n))
		}
		if key != nil && key.Type() == rubyNodeHashKeySymbol {
			// `in {name:}` binds name
			c.declare(key.Content(c.content))
		}
		return NewOther().At(c.location(n))

	case n.Type() == rubyNodeAsPattern:
		children := make([]*Node, 0, 1)
		if value := n.ChildByFieldName("value"); value != nil {
			children = append(children, c.convertPattern(value))
		}
		if name := n.ChildByFieldName("name"); name != nil {
			c.declare(name.Content(c.content))
		}
		return NewOther(children...).At(c.location(n))

	case rubyPatternSplats[n.Type()]:
		c.declareAll(n)
		return NewOther().At(c.location(n))

	case rubyPatternContainers[n.Type()]:
		children := make([]*Node, 0, n.NamedChildCount())
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if child := n.NamedChild(i); child != nil {
				children = append(children, c.convertPattern(child))
			}
		}
		return NewOther(children...).At(c.location(n))
	}

	return c.convert(n)
}

// convertPair maps a hash or keyword-argument pair. The shorthand `{x:}`
// reads x, which is a call when x is not a local.
func (c *rubyConverter) convertPair(n *sitter.Node) *Node {
	key := n.ChildByFieldName("key")
	if n.ChildByFieldName("value") != nil || key == nil || key.Type() != rubyNodeHashKeySymbol {
		return NewOther(c.convertChildrenExcept(n, nil)...).At(c.location(n))
	}

	name := key.Content(c.content)
	if c.isLocal(name) || isConstantName(name) {
		return NewOther().At(c.location(n))
	}
	return NewOther(NewCall(nil, name).At(c.location(key))).At(c.location(n))
}

// convertBinary maps a binary operation. `/(?<name>..)/ =~ s` with a
// literal regex on the left and no interpolation declares each named
// capture as a local once the match is evaluated.
func (c *rubyConverter) convertBinary(n *sitter.Node) *Node {
	node := NewOther(c.convertChildrenExcept(n, nil)...).At(c.location(n))

	left := n.ChildByFieldName("left")
	operator := n.ChildByFieldName("operator")
	if left == nil || operator == nil || operator.Content(c.content) != "=~" {
		return node
	}
	if left.Type() != rubyNodeRegex || hasChildOfType(left, rubyNodeInterpolation) {
		return node
	}
	for _, m := range rubyNamedCapture.FindAllStringSubmatch(left.Content(c.content), -1) {
		c.declare(m[1])
	}
	return node
}

func isConstantName(name string) bool {
	return name != "" && name[0] >= 'A' && name[0] <= 'Z'
}

func hasChildOfType(n *sitter.Node, nodeType string) bool {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if child := n.NamedChild(i); child != nil && child.Type() == nodeType {
			return true
		}
	}
	return false
}

// convertFor maps `for x in xs`. The loop variable is a local of the
// enclosing scope.
func (c *rubyConverter) convertFor(n *sitter.Node) *Node {
	pattern := n.ChildByFieldName("pattern")

	children := make([]*Node, 0, 3)
	if pattern != nil {
		if target := c.convertTarget(pattern); target != nil {
			children = append(children, target)
		}
	}
	children = append(children, c.convertChildrenExcept(n, pattern)...)

	return NewOther(children...).At(c.location(n))
}

// convertParameters declares parameter names and converts default values.
func (c *rubyConverter) convertParameters(n *sitter.Node) *Node {
	children := make([]*Node, 0, n.NamedChildCount())

	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child == nil {
			continue
		}

		switch {
		case child.Type() == rubyNodeIdentifier:
			c.declare(child.Content(c.content))

		case rubyParameterLists[child.Type()]:
			children = append(children, c.convertParameters(child))

		case rubyNamedParameters[child.Type()]:
			if nameNode := child.ChildByFieldName("name"); nameNode != nil {
				c.declare(nameNode.Content(c.content))
			} else {
				c.declareAll(child)
			}
			if valueNode := child.ChildByFieldName("value"); valueNode != nil {
				children = append(children, c.convert(valueNode))
			}

		default:
			children = append(children, c.convert(child))
		}
	}

	return NewOther(children...).At(c.location(n))
}

// convertChildrenExcept converts every named child of n except skip.
func (c *rubyConverter) convertChildrenExcept(n *sitter.Node, skip *sitter.Node) []*Node {
	count := int(n.NamedChildCount())
	children := make([]*Node, 0, count)

	for i := 0; i < count; i++ {
		child := n.NamedChild(i)
		if child == nil || sameNode(child, skip) {
			continue
		}
		children = append(children, c.convert(child))
	}

	return children
}

// declareAll declares every identifier below n.
func (c *rubyConverter) declareAll(n *sitter.Node) {
	if n.Type() == rubyNodeIdentifier {
		c.declare(n.Content(c.content))
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if child := n.NamedChild(i); child != nil {
			c.declareAll(child)
		}
	}
}

func (c *rubyConverter) declare(name string) {
	c.scopes[len(c.scopes)-1][name] = struct{}{}
}

func (c *rubyConverter) isLocal(name string) bool {
	_, ok := c.scopes[len(c.scopes)-1][name]
	return ok
}

// pushFreshScope opens a scope that sees no outer locals (def, class, module).
func (c *rubyConverter) pushFreshScope() {
	c.scopes = append(c.scopes, make(localScope))
}

// pushInheritedScope opens a scope that sees the outer locals; names
// declared inside do not leak out (blocks, lambdas).
func (c *rubyConverter) pushInheritedScope() {
	outer := c.scopes[len(c.scopes)-1]
	inner := make(localScope, len(outer))
	for name := range outer {
		inner[name] = struct{}{}
	}
	c.scopes = append(c.scopes, inner)
}

func (c *rubyConverter) popScope() {
	c.scopes = c.scopes[:len(c.scopes)-1]
}

func (c *rubyConverter) location(n *sitter.Node) Location {
	point := n.StartPoint()
	return Location{
		FilePath:  c.filePath,
		StartLine: int(point.Row) + 1,
		StartCol:  int(point.Column),
	}
}

// sameNode reports whether a and b refer to the same tree-sitter node.
// Node values are rebuilt on every accessor call, so pointer equality
// cannot be used.
func sameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}
