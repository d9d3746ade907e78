// Package testutil holds the snapshot-test harness shared by the
// engine's test suites.
package testutil

import (
	"testing"

	"github.com/samsarahq/go/snapshotter"
	"github.com/stretchr/testify/require"

	"github.com/loomhq/weft/frontend"
	"github.com/loomhq/weft/interpreter"
	"github.com/loomhq/weft/interpreter/trace"
	"github.com/loomhq/weft/query"
	"github.com/loomhq/weft/schema"
	"github.com/loomhq/weft/value"
)

// Snapshotter runs queries against a fixed schema and adapter and
// snapshots their results and traces.
type Snapshotter struct {
	*snapshotter.Snapshotter
	t       *testing.T
	sch     *schema.Schema
	adapter interpreter.Adapter
}

// NewSnapshotter builds a harness; call Verify (usually deferred) to
// check recorded snapshots against the stored ones.
func NewSnapshotter(t *testing.T, sch *schema.Schema, adapter interpreter.Adapter) *Snapshotter {
	return &Snapshotter{
		Snapshotter: snapshotter.New(t),
		t:           t,
		sch:         sch,
		adapter:     adapter,
	}
}

// Compile parses and lowers queryText, failing the test on error.
func (s *Snapshotter) Compile(queryText string) *frontend.CompiledQuery {
	parsed, err := query.Parse(queryText)
	require.NoError(s.t, err)
	compiled, err := frontend.Compile(s.sch, parsed)
	require.NoError(s.t, err)
	return compiled
}

// ExecuteCollect runs queryText and drains the row stream.
func (s *Snapshotter) ExecuteCollect(queryText string, vars map[string]value.Value) []interpreter.OutputRow {
	compiled := s.Compile(queryText)
	stream, err := interpreter.Execute(s.sch, s.adapter, compiled.IR, vars)
	require.NoError(s.t, err)
	var rows []interpreter.OutputRow
	for row, err := range stream {
		require.NoError(s.t, err)
		rows = append(rows, row)
	}
	return rows
}

// SnapshotQuery executes queryText and snapshots the produced rows.
func (s *Snapshotter) SnapshotQuery(name, queryText string, vars map[string]value.Value) {
	s.Snapshot(name, s.ExecuteCollect(queryText, vars))
}

// SnapshotTrace executes queryText with tracing and snapshots the
// recorded operations.
func (s *Snapshotter) SnapshotTrace(name, queryText string, vars map[string]value.Value) *trace.Trace {
	compiled := s.Compile(queryText)
	recorded, _, err := trace.Execute(s.sch, s.adapter, compiled.IR, vars)
	require.NoError(s.t, err)
	s.Snapshot(name, recorded.Ops)
	return recorded
}
