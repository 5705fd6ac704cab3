// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package neo4jstore

import (
	"context"
	"errors"
	"testing"

	"github.com/AleutianAI/rbcallgraph/services/trace/ast"
	"github.com/AleutianAI/rbcallgraph/services/trace/graph"
	"github.com/AleutianAI/rbcallgraph/services/trace/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedQuery struct {
	cypher string
	params map[string]any
}

// recorder is a runFunc that stores every statement and optionally fails
// the statement at failAt.
type recorder struct {
	queries []recordedQuery
	failAt  int
	err     error
}

func (r *recorder) run(_ context.Context, cypher string, params map[string]any) error {
	r.queries = append(r.queries, recordedQuery{cypher: cypher, params: params})
	if r.err != nil && len(r.queries)-1 == r.failAt {
		return r.err
	}
	return nil
}

func sampleSnapshot() *graph.SerializableState {
	root := ast.NewOther(
		ast.NewDefinition("a",
			ast.NewCall(nil, "b"),
			ast.NewCall(nil, "log"),
			ast.NewCall(nil, "b"),
		),
		ast.NewDefinition("b"),
	)
	return graph.ToSerializable(graph.Walk(root), "app.rb", "run-1")
}

func TestMethodRows(t *testing.T) {
	rows := methodRows(sampleSnapshot())

	require.Len(t, rows, 3)
	assert.Equal(t, map[string]any{"name": "a", "defined": true, "ordinal": int64(0)}, rows[0])
	assert.Equal(t, map[string]any{"name": "b", "defined": true, "ordinal": int64(1)}, rows[1])
	assert.Equal(t, map[string]any{"name": "log", "defined": false, "ordinal": int64(-1)}, rows[2])
}

func TestCallRows_KeepsDuplicates(t *testing.T) {
	rows := callRows(sampleSnapshot())

	require.Len(t, rows, 3)
	assert.Equal(t, map[string]any{"caller": "a", "callee": "b", "ordinal": int64(0)}, rows[0])
	assert.Equal(t, map[string]any{"caller": "a", "callee": "log", "ordinal": int64(1)}, rows[1])
	assert.Equal(t, map[string]any{"caller": "a", "callee": "b", "ordinal": int64(2)}, rows[2])
}

func TestBatches(t *testing.T) {
	rows := make([]map[string]any, 5)
	for i := range rows {
		rows[i] = map[string]any{"i": i}
	}

	tests := []struct {
		name  string
		rows  []map[string]any
		size  int
		sizes []int
	}{
		{name: "empty", rows: nil, size: 2, sizes: []int{}},
		{name: "exact", rows: rows[:4], size: 2, sizes: []int{2, 2}},
		{name: "remainder", rows: rows, size: 2, sizes: []int{2, 2, 1}},
		{name: "single", rows: rows, size: 10, sizes: []int{5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := batches(tt.rows, tt.size)
			sizes := make([]int, 0, len(got))
			for _, b := range got {
				sizes = append(sizes, len(b))
			}
			assert.Equal(t, tt.sizes, sizes)
		})
	}
}

func TestExport_StatementOrderAndParams(t *testing.T) {
	rec := &recorder{}
	e := newExporter(rec.run, 2)

	require.NoError(t, e.Export(context.Background(), sampleSnapshot()))

	// index, clean, file, 2 method batches (3 rows), 2 call batches (3 rows)
	require.Len(t, rec.queries, 7)
	assert.Equal(t, cypherIndex, rec.queries[0].cypher)
	assert.Nil(t, rec.queries[0].params)
	assert.Equal(t, cypherClean, rec.queries[1].cypher)
	assert.Equal(t, "app.rb", rec.queries[1].params["file"])
	assert.Equal(t, cypherFile, rec.queries[2].cypher)
	assert.Equal(t, "run-1", rec.queries[2].params["run_id"])

	for _, q := range rec.queries[3:5] {
		assert.Equal(t, cypherMethods, q.cypher)
	}
	for _, q := range rec.queries[5:7] {
		assert.Equal(t, cypherCalls, q.cypher)
		assert.Equal(t, "app.rb", q.params["file"])
	}
	assert.Len(t, rec.queries[6].params["batch"], 1)
}

func TestExport_EmptySnapshotSkipsBatches(t *testing.T) {
	rec := &recorder{}
	e := newExporter(rec.run, 0)

	require.NoError(t, e.Export(context.Background(), graph.ToSerializable(nil, "empty.rb", "run-0")))

	assert.Len(t, rec.queries, 3)
}

func TestExport_Errors(t *testing.T) {
	boom := errors.New("connection reset")
	rec := &recorder{failAt: 3, err: boom}
	e := newExporter(rec.run, DefaultBatchSize)

	err := e.Export(context.Background(), sampleSnapshot())

	require.Error(t, err)
	assert.True(t, errors.Is(err, storage.ErrOutput))
	assert.True(t, errors.Is(err, boom))
	assert.Contains(t, err.Error(), "methods")
	assert.Len(t, rec.queries, 4, "export stops at the first failure")

	err = e.Export(context.Background(), nil)
	assert.True(t, errors.Is(err, storage.ErrOutput))
}

func TestNew_RequiresURI(t *testing.T) {
	_, err := New(context.Background(), Config{})

	assert.True(t, errors.Is(err, ErrNoURI))
}

func TestClose_WithoutDriver(t *testing.T) {
	var e *Exporter
	assert.NoError(t, e.Close(context.Background()))
	assert.NoError(t, newExporter((&recorder{}).run, 1).Close(context.Background()))
}
