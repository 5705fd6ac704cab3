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
)

// Parser defines the contract for turning source text into a syntax tree.
//
// Description:
//
//	Parser implementations produce a read-only tree of Definition, Call and
//	Other nodes. The tree is the only input the call attribution walker
//	sees, so language-specific knowledge (what counts as a method
//	definition, when a bare word is a call) lives entirely in the Parser.
//
// Inputs:
//
//	ctx      - Context for cancellation. Checked before and after parsing.
//	content  - Raw source code bytes. Must be valid UTF-8.
//	filePath - Path to the file being parsed, used for node locations and
//	           error messages.
//
// Outputs:
//
//	*Node - Root of the tree. Never nil on success.
//	error - Non-nil when no tree could be produced. Unlike the symbol
//	        extractors this parser is not error tolerant: a source file with
//	        syntax errors fails with ErrParseFailed.
//
// Limitations:
//
//   - Single-file analysis only
//   - No scope or type analysis beyond local variable tracking
type Parser interface {
	// Parse builds the syntax tree for content.
	Parse(ctx context.Context, content []byte, filePath string) (*Node, error)

	// Language returns the canonical lowercase name of the language.
	Language() string

	// Extensions returns the file extensions this parser handles, with the
	// leading dot.
	Extensions() []string
}
