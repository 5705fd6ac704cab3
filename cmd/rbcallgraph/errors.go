// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"errors"

	"github.com/AleutianAI/rbcallgraph/services/trace/ast"
	"github.com/AleutianAI/rbcallgraph/services/trace/config"
	"github.com/AleutianAI/rbcallgraph/services/trace/storage"
)

// Process exit codes.
const (
	exitOK     = 0
	exitUsage  = 1
	exitInput  = 2
	exitOutput = 3
)

// errInput marks a source file that could not be read.
var errInput = errors.New("input error")

// usageError is a command-line or configuration mistake. Argument and flag
// mistakes print the usage text along with the message.
type usageError struct {
	msg       string
	cause     error
	showUsage bool
}

func (e *usageError) Error() string {
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}

func (e *usageError) Unwrap() error { return e.cause }

func newUsageError(msg string, cause error) *usageError {
	return &usageError{msg: msg, cause: cause, showUsage: true}
}

func newSettingsError(msg string, cause error) *usageError {
	return &usageError{msg: msg, cause: cause}
}

// exitCode maps an error returned by the root command to a process exit
// code. Unclassified errors count as usage errors.
func exitCode(err error) int {
	var uerr *usageError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &uerr), errors.Is(err, config.ErrInvalidConfig):
		return exitUsage
	case errors.Is(err, errInput), ast.IsInputError(err):
		return exitInput
	case errors.Is(err, storage.ErrOutput):
		return exitOutput
	default:
		return exitUsage
	}
}
