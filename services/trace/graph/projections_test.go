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
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjections_EndToEnd(t *testing.T) {
	state := Walk(other(
		def("a", call("b"), call("log")),
		def("b"),
	))

	assert.Equal(t, []string{"a", "b"}, Defined(state))
	assert.Equal(t, []string{"b", "log"}, Called(state))
	assert.Equal(t, []string{"log"}, Remote(state))
}

func TestCalled_DeduplicatesAcrossDefiners(t *testing.T) {
	state := Walk(other(
		def("foo", call("bar"), call("baz"), call("bar")),
		def("qux", call("baz"), call("zip")),
	))

	assert.Equal(t, []string{"bar", "baz", "zip"}, Called(state))
	assert.Equal(t, []string{"bar", "baz", "zip"}, Remote(state))
}

func TestRemote_ExcludesDefinedInAnyOrder(t *testing.T) {
	// b is called before it is defined
	state := Walk(other(
		def("a", call("b"), call("c")),
		def("b", call("a")),
	))

	assert.Equal(t, []string{"c"}, Remote(state))
}

func TestProjections_NilState(t *testing.T) {
	assert.Empty(t, Defined(nil))
	assert.Empty(t, Called(nil))
	assert.Empty(t, Remote(nil))
	assert.Empty(t, ClassifyRemoteCalls(nil))
}

func TestClassifyRemoteCalls(t *testing.T) {
	state := Walk(other(
		def("a", call("log"), call("b"), call("log")),
		def("b", call("log"), call("fetch")),
	))

	remote := ClassifyRemoteCalls(state)

	require.Len(t, remote, 2)
	assert.Equal(t, RemoteCall{Name: "log", CalledFrom: []string{"a", "b"}}, remote[0])
	assert.Equal(t, RemoteCall{Name: "fetch", CalledFrom: []string{"b"}}, remote[1])
}

func TestWriteLines(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteLines(&buf, []string{"a", "b"}))
	assert.Equal(t, "a\nb\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteLines(&buf, nil))
	assert.Empty(t, buf.String())
}
