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
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/ruby"
)

// RubyParserOption configures a RubyParser instance.
type RubyParserOption func(*RubyParser)

// WithMaxFileSize sets the maximum file size the parser will accept.
//
// Parameters:
//   - bytes: Maximum file size in bytes. Non-positive values are ignored.
//
// Example:
//
//	parser := NewRubyParser(WithMaxFileSize(5 * 1024 * 1024)) // 5MB limit
func WithMaxFileSize(bytes int64) RubyParserOption {
	return func(p *RubyParser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// RubyParser implements the Parser interface for Ruby source code.
//
// Description:
//
//	RubyParser uses tree-sitter to parse Ruby source files and maps the
//	concrete tree onto Definition, Call and Other nodes:
//	  - `def name ... end` becomes a Definition; the parameter list and the
//	    body both become its children so calls in default values count.
//	  - `def self.name` is not a Definition; it is kept as Other.
//	  - `recv.name(args)` and `name(args)` become Calls, with the receiver
//	    set only when one is written.
//	  - A bare word that is not a local variable in scope becomes a Call
//	    with no receiver and no arguments, the same way Ruby itself reads it.
//
// Thread Safety:
//
//	RubyParser instances are safe for concurrent use. Each Parse call
//	creates its own tree-sitter parser instance.
//
// Example:
//
//	parser := NewRubyParser()
//	root, err := parser.Parse(ctx, []byte("def a; b; end"), "a.rb")
//	if err != nil {
//	    return err
//	}
type RubyParser struct {
	maxFileSize int64
}

// NewRubyParser creates a new RubyParser with the given options.
//
// Outputs:
//   - *RubyParser: Configured parser instance, never nil
func NewRubyParser(opts ...RubyParserOption) *RubyParser {
	p := &RubyParser{
		maxFileSize: DefaultMaxFileSize,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Parse builds the syntax tree for Ruby source code.
//
// Description:
//
//	Validates the content, runs tree-sitter with the Ruby grammar and
//	converts the result. Any syntax error in the source fails the whole
//	parse; partially recovered trees are never converted.
//
// Inputs:
//   - ctx: Context for cancellation. Checked before and after parsing.
//   - content: Raw Ruby source bytes.
//   - filePath: Path to the file, used for locations and errors.
//
// Outputs:
//   - *Node: Root of the tree (an Other node for the program). Never nil on success.
//   - error: Non-nil for failures:
//   - ErrFileTooLarge: Content exceeds maxFileSize
//   - ErrInvalidContent: Content is not valid UTF-8
//   - *ParseError wrapping ErrParseFailed: Source has syntax errors
//   - Context errors: Context was canceled
//
// Thread Safety:
//
//	This method is safe for concurrent use.
func (p *RubyParser) Parse(ctx context.Context, content []byte, filePath string) (*Node, error) {
	ctx, span := startParseSpan(ctx, "ruby", filePath, len(content))
	defer span.End()

	start := time.Now()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "ruby", time.Since(start), 0, false)
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}

	if int64(len(content)) > p.maxFileSize {
		recordParseMetrics(ctx, "ruby", time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), p.maxFileSize)
	}

	if len(content) > WarnFileSize {
		slog.Warn("parsing large file",
			slog.String("file", filePath),
			slog.Int("size_bytes", len(content)))
	}

	if !utf8.Valid(content) {
		recordParseMetrics(ctx, "ruby", time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent)
	}

	// New instance per call for thread safety
	parser := sitter.NewParser()
	parser.SetLanguage(ruby.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		recordParseMetrics(ctx, "ruby", time.Since(start), 0, false)
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "ruby", time.Since(start), 0, false)
		return nil, fmt.Errorf("parse canceled after tree-sitter: %w", err)
	}

	rootNode := tree.RootNode()
	if rootNode == nil {
		recordParseMetrics(ctx, "ruby", time.Since(start), 0, false)
		return nil, NewParseErrorWithCause(filePath, 0, 0, "tree-sitter returned nil root node", ErrParseFailed)
	}

	if rootNode.HasError() {
		recordParseMetrics(ctx, "ruby", time.Since(start), 0, false)
		line, col := firstErrorPosition(rootNode)
		return nil, NewParseErrorWithCause(filePath, line, col, "source contains syntax errors", ErrParseFailed)
	}

	conv := newRubyConverter(content, filePath)
	root := conv.convert(rootNode)

	definitions := root.Count(NodeKindDefinition)
	calls := root.Count(NodeKindCall)

	slog.Debug("ruby source parsed",
		slog.String("file", filePath),
		slog.Int("definitions", definitions),
		slog.Int("calls", calls),
	)

	setParseSpanResult(span, definitions, calls)
	recordParseMetrics(ctx, "ruby", time.Since(start), definitions+calls, true)

	return root, nil
}

// Language returns the canonical language name for this parser.
func (p *RubyParser) Language() string {
	return "ruby"
}

// Extensions returns the file extensions this parser handles.
func (p *RubyParser) Extensions() []string {
	return []string{".rb", ".rake", ".gemspec"}
}

// firstErrorPosition returns the 1-indexed line and 0-indexed column of the
// first ERROR or MISSING node in document order.
func firstErrorPosition(root *sitter.Node) (int, int) {
	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if node.Type() == "ERROR" || node.IsMissing() {
			point := node.StartPoint()
			return int(point.Row) + 1, int(point.Column)
		}
		if !node.HasError() {
			continue
		}

		// Reverse order so children pop left-to-right
		for i := int(node.ChildCount()) - 1; i >= 0; i-- {
			if child := node.Child(i); child != nil {
				stack = append(stack, child)
			}
		}
	}

	point := root.StartPoint()
	return int(point.Row) + 1, int(point.Column)
}

// Compile-time interface compliance check.
var _ Parser = (*RubyParser)(nil)
