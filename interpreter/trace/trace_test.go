package trace_test

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomhq/weft/frontend"
	"github.com/loomhq/weft/internal/numbersdata"
	"github.com/loomhq/weft/internal/testutil"
	"github.com/loomhq/weft/interpreter"
	"github.com/loomhq/weft/interpreter/trace"
	"github.com/loomhq/weft/ir"
	"github.com/loomhq/weft/query"
	"github.com/loomhq/weft/schema"
	"github.com/loomhq/weft/value"
)

const primesQuery = `
{
    Number(max: 10) {
        ... on Prime {
            value @output @filter(op: ">", value: ["$val"])
            successor { next: value @output }
        }
    }
}`

var primesVars = map[string]value.Value{"val": value.Int64(2)}

func compileQuery(t *testing.T, sch *schema.Schema, text string) *ir.Query {
	t.Helper()
	parsed, err := query.Parse(text)
	require.NoError(t, err)
	compiled, err := frontend.Compile(sch, parsed)
	require.NoError(t, err)
	return compiled.IR
}

func TestTraceDeterminism(t *testing.T) {
	sch := numbersdata.MustSchema()
	q := compileQuery(t, sch, primesQuery)

	first, firstRows, err := trace.Execute(sch, numbersdata.New(), q, primesVars)
	require.NoError(t, err)
	second, secondRows, err := trace.Execute(sch, numbersdata.New(), q, primesVars)
	require.NoError(t, err)

	assert.Equal(t, firstRows, secondRows)
	assert.Equal(t, first.Ops, second.Ops)

	// The serialized form is stable too, so traces can be checked in
	// as fixtures.
	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(firstJSON), string(secondJSON))
}

func TestTraceRecordsNoSemanticChange(t *testing.T) {
	sch := numbersdata.MustSchema()
	q := compileQuery(t, sch, primesQuery)

	_, tracedRows, err := trace.Execute(sch, numbersdata.New(), q, primesVars)
	require.NoError(t, err)

	stream, err := interpreter.Execute(sch, numbersdata.New(), q, primesVars)
	require.NoError(t, err)
	var plainRows []interpreter.OutputRow
	for row, err := range stream {
		require.NoError(t, err)
		plainRows = append(plainRows, row)
	}

	assert.Equal(t, plainRows, tracedRows)
}

func TestTraceStructure(t *testing.T) {
	sch := numbersdata.MustSchema()
	q := compileQuery(t, sch, primesQuery)

	recorded, rows, err := trace.Execute(sch, numbersdata.New(), q, primesVars)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	ops := recorded.Ops
	require.NotEmpty(t, ops)

	assert.Equal(t, "call", ops[0].Content.Kind)
	assert.Equal(t, "resolve_starting_vertices", ops[0].Content.Function)
	assert.Equal(t, "Number", ops[0].Content.EdgeName)

	// Opids are dense and increasing; parents always point backward
	// at an earlier operation.
	seen := map[trace.Opid]bool{}
	var calls, results int
	for i, op := range ops {
		assert.Equal(t, trace.Opid(i+1), op.Opid)
		if op.ParentOpid != nil {
			assert.True(t, seen[*op.ParentOpid], "op %d has unknown parent %d", op.Opid, *op.ParentOpid)
		}
		seen[op.Opid] = true
		switch op.Content.Kind {
		case "call":
			calls++
		case "produce_query_result":
			results++
		}
	}
	assert.Equal(t, len(rows), results)

	// The query needs a coercion, at least one property resolution,
	// and a neighbor expansion.
	functions := map[string]bool{}
	for _, op := range ops {
		if op.Content.Kind == "call" {
			functions[op.Content.Function] = true
		}
	}
	assert.True(t, functions["resolve_coercion"])
	assert.True(t, functions["resolve_property"])
	assert.True(t, functions["resolve_neighbors"])
	require.GreaterOrEqual(t, calls, 4)
}

func TestTraceInputOrderPreserved(t *testing.T) {
	sch := numbersdata.MustSchema()
	q := compileQuery(t, sch, primesQuery)

	recorded, _, err := trace.Execute(sch, numbersdata.New(), q, primesVars)
	require.NoError(t, err)

	// Within each adapter call, contexts flow through in the order
	// they were handed over: local ids never decrease out of order
	// relative to their yield_into sequence.
	lastPerCall := map[trace.Opid]int{}
	for _, op := range recorded.Ops {
		if op.Content.Kind != "yield_into" || op.ParentOpid == nil || op.Content.LocalID == nil {
			continue
		}
		call := *op.ParentOpid
		assert.Greater(t, *op.Content.LocalID, lastPerCall[call],
			"input order regressed within call %d", call)
		lastPerCall[call] = *op.Content.LocalID
	}
}

// Snapshot fixtures are regenerated by running with
// UPDATE_SNAPSHOTS=1; the assertions above keep the trace honest in
// between regenerations.
func TestTraceSnapshot(t *testing.T) {
	if os.Getenv("UPDATE_SNAPSHOTS") == "" {
		t.Skip("snapshot fixtures not present; run with UPDATE_SNAPSHOTS=1 to record")
	}
	snap := testutil.NewSnapshotter(t, numbersdata.MustSchema(), numbersdata.New())
	defer snap.Verify()
	snap.SnapshotTrace("primes with successor", primesQuery, primesVars)
	snap.SnapshotQuery("fold with count post-filter", `
{
    Number(min: 4, max: 6) {
        ... on Composite {
            value @output
            primeFactor @fold @transform(op: "count") @filter(op: "=", value: ["$two"]) {
                factors: value @output
            }
        }
    }
}`, map[string]value.Value{"two": value.Int64(2)})
}
