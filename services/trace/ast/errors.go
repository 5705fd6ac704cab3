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
)

// Sentinel errors for parse failure conditions.
//
// All of them describe input the parser could not turn into a syntax tree.
// Callers treat any of them as an input error and abort the run.
var (
	// ErrParseFailed indicates that the source has syntax errors and no
	// trustworthy tree could be produced.
	ErrParseFailed = errors.New("parse failed")

	// ErrInvalidContent indicates that the content is not valid UTF-8 text.
	ErrInvalidContent = errors.New("invalid content")

	// ErrFileTooLarge indicates that the content exceeds the parser's
	// configured size limit.
	ErrFileTooLarge = errors.New("file too large")
)

// DefaultMaxFileSize is the default upper bound on parsed content (10MB).
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

// WarnFileSize is the size above which a warning is logged before parsing.
const WarnFileSize = 1024 * 1024

// ParseError provides detailed information about a parse failure.
//
// ParseError wraps an underlying error with the location of the first
// syntax error in the source file.
//
// Example:
//
//	root, err := parser.Parse(ctx, content, "app.rb")
//	if err != nil {
//	    var parseErr *ParseError
//	    if errors.As(err, &parseErr) {
//	        fmt.Printf("Error at %s:%d:%d\n", parseErr.FilePath, parseErr.Line, parseErr.Column)
//	    }
//	}
type ParseError struct {
	// FilePath is the path to the file where the error occurred.
	FilePath string

	// Line is the 1-indexed line number where the error occurred.
	// May be 0 if the error is not associated with a specific line.
	Line int

	// Column is the 0-indexed column where the error occurred.
	Column int

	// Message describes the error in human-readable form.
	Message string

	// Cause is the underlying error that triggered this parse error.
	Cause error
}

// Error returns a formatted error message including file location.
//
// Format depends on available location information:
//   - With line: "file.rb:10:5: unexpected token"
//   - Without:   "file.rb: unexpected token"
func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.FilePath, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.FilePath, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// NewParseErrorWithCause creates a new ParseError wrapping an underlying error.
//
// Parameters:
//   - filePath: Path to the file where the error occurred.
//   - line: 1-indexed line number (0 if unknown).
//   - column: 0-indexed column number.
//   - message: Human-readable error description.
//   - cause: The underlying error that triggered this failure.
func NewParseErrorWithCause(filePath string, line, column int, message string, cause error) *ParseError {
	return &ParseError{
		FilePath: filePath,
		Line:     line,
		Column:   column,
		Message:  message,
		Cause:    cause,
	}
}

// IsInputError reports whether err means the source could not be parsed.
//
// Read errors from the file system are not included; the caller knows
// whether it failed before or after handing content to the parser.
func IsInputError(err error) bool {
	var parseErr *ParseError
	return errors.As(err, &parseErr) ||
		errors.Is(err, ErrParseFailed) ||
		errors.Is(err, ErrInvalidContent) ||
		errors.Is(err, ErrFileTooLarge)
}
