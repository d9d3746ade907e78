package interpreter_test

import (
	"errors"
	"iter"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomhq/weft/frontend"
	"github.com/loomhq/weft/internal/numbersdata"
	"github.com/loomhq/weft/interpreter"
	"github.com/loomhq/weft/ir"
	"github.com/loomhq/weft/query"
	"github.com/loomhq/weft/value"
)

func executeCollect(t *testing.T, adapter interpreter.Adapter, text string, vars map[string]value.Value) []interpreter.OutputRow {
	t.Helper()
	sch := numbersdata.MustSchema()
	parsed, err := query.Parse(text)
	require.NoError(t, err)
	compiled, err := frontend.Compile(sch, parsed)
	require.NoError(t, err)
	stream, err := interpreter.Execute(sch, adapter, compiled.IR, vars)
	require.NoError(t, err)

	var rows []interpreter.OutputRow
	for row, err := range stream {
		require.NoError(t, err)
		rows = append(rows, row)
	}
	return rows
}

func row(pairs ...interface{}) interpreter.OutputRow {
	out := make(interpreter.OutputRow, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out[pairs[i].(string)] = toValue(pairs[i+1])
	}
	return out
}

func toValue(v interface{}) value.Value {
	switch v := v.(type) {
	case nil:
		return value.Null()
	case int:
		return value.Int64(int64(v))
	case int64:
		return value.Int64(v)
	case string:
		return value.String(v)
	case []int:
		list := make([]value.Value, len(v))
		for i, elem := range v {
			list[i] = value.Int64(int64(elem))
		}
		return value.List(list)
	case value.Value:
		return v
	default:
		panic("unsupported test value")
	}
}

func TestBasicFilterAndProjection(t *testing.T) {
	rows := executeCollect(t, numbersdata.New(), `
{
    Number(max: 10) {
        ... on Prime {
            value @output @filter(op: ">", value: ["$val"])
            successor { next: value @output }
        }
    }
}`, map[string]value.Value{"val": value.Int64(2)})

	assert.Equal(t, []interpreter.OutputRow{
		row("value", 3, "next", 4),
		row("value", 5, "next", 6),
		row("value", 7, "next", 8),
	}, rows)
}

func TestFoldWithCountPostFilter(t *testing.T) {
	rows := executeCollect(t, numbersdata.New(), `
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

	assert.Equal(t, []interpreter.OutputRow{
		row("value", 6, "factors", []int{2, 3}),
	}, rows)
}

func TestEmptyFoldProducesEmptyLists(t *testing.T) {
	rows := executeCollect(t, numbersdata.New(), `
{
    Zero {
        zero: value @output
        predecessor @fold {
            predecessor: value @output
            successor { successors: value @output }
        }
    }
}`, nil)

	assert.Equal(t, []interpreter.OutputRow{
		row("zero", 0, "predecessor", []int{}, "successors", []int{}),
	}, rows)
}

func TestOptionalEdgeAbsent(t *testing.T) {
	rows := executeCollect(t, numbersdata.New(), `
{
    Zero {
        zero: value @output
        predecessor @optional {
            p: value @output
            successor { s: value @output }
        }
    }
}`, nil)

	assert.Equal(t, []interpreter.OutputRow{
		row("zero", 0, "p", nil, "s", nil),
	}, rows)
}

func TestOptionalEdgePresent(t *testing.T) {
	rows := executeCollect(t, numbersdata.New(), `
{
    Two {
        value @output
        predecessor @optional { p: value @output }
    }
}`, nil)

	assert.Equal(t, []interpreter.OutputRow{
		row("value", 2, "p", 1),
	}, rows)
}

func TestFilterOnSuspendedPathPasses(t *testing.T) {
	// The filter references a value below an absent optional edge:
	// the row is kept.
	rows := executeCollect(t, numbersdata.New(), `
{
    Zero {
        zero: value @output
        predecessor @optional {
            p: value @output @filter(op: "is_null")
        }
    }
}`, nil)
	assert.Equal(t, []interpreter.OutputRow{row("zero", 0, "p", nil)}, rows)

	// With a present edge the same filter evaluates normally and
	// excludes the row.
	rows = executeCollect(t, numbersdata.New(), `
{
    Two {
        value @output
        predecessor @optional {
            p: value @output @filter(op: "is_null")
        }
    }
}`, nil)
	assert.Empty(t, rows)
}

func TestAbsentOptionalTagPassesFilters(t *testing.T) {
	// Zero has no predecessor, so the tag's source never existed and
	// the downstream filter must pass.
	rows := executeCollect(t, numbersdata.New(), `
{
    Zero {
        zero: value @output
        predecessor @optional { value @tag(name: "pv") }
        successor { s: value @output @filter(op: "=", value: ["%pv"]) }
    }
}`, nil)
	assert.Equal(t, []interpreter.OutputRow{row("zero", 0, "s", 1)}, rows)

	// Two has a predecessor, so the tag binds to 1 and 3 = 1 fails.
	rows = executeCollect(t, numbersdata.New(), `
{
    Two {
        value @output
        predecessor @optional { value @tag(name: "pv") }
        successor { s: value @output @filter(op: "=", value: ["%pv"]) }
    }
}`, nil)
	assert.Empty(t, rows)
}

func TestCoercionFailureInsideOptionalSuspends(t *testing.T) {
	// 2's predecessor is 1, which is Neither, so the coercion to
	// Composite fails; inside @optional that suspends instead of
	// discarding.
	rows := executeCollect(t, numbersdata.New(), `
{
    Two {
        value @output
        predecessor @optional {
            ... on Composite { c: value @output }
        }
    }
}`, nil)
	assert.Equal(t, []interpreter.OutputRow{row("value", 2, "c", nil)}, rows)
}

func TestCoercionFailureOutsideOptionalDiscards(t *testing.T) {
	rows := executeCollect(t, numbersdata.New(), `
{
    Two {
        value @output
        predecessor {
            ... on Composite { c: value @output }
        }
    }
}`, nil)
	assert.Empty(t, rows)
}

func TestTagAcrossEdges(t *testing.T) {
	// A divisor of n+1 equal to n exists only for n = 1.
	rows := executeCollect(t, numbersdata.New(), `
{
    Number(min: 1, max: 5) {
        value @tag @output
        successor {
            divisor {
                witness: value @output @filter(op: "=", value: ["%value"])
            }
        }
    }
}`, nil)
	assert.Equal(t, []interpreter.OutputRow{row("value", 1, "witness", 1)}, rows)
}

func TestTagImportedIntoFold(t *testing.T) {
	rows := executeCollect(t, numbersdata.New(), `
{
    Number(min: 1, max: 3) {
        value @tag @output
        successor {
            divisor @fold {
                eq: value @output @filter(op: "=", value: ["%value"])
            }
        }
    }
}`, nil)

	assert.Equal(t, []interpreter.OutputRow{
		row("value", 1, "eq", []int{1}),
		row("value", 2, "eq", []int{}),
		row("value", 3, "eq", []int{}),
	}, rows)
}

func TestFoldCountOutput(t *testing.T) {
	rows := executeCollect(t, numbersdata.New(), `
{
    Number(min: 4, max: 5) {
        value @output
        divisor @fold @transform(op: "count") @output(name: "divisors") {
            d: value @output
        }
    }
}`, nil)

	assert.Equal(t, []interpreter.OutputRow{
		row("value", 4, "divisors", 2, "d", []int{1, 2}),
		row("value", 5, "divisors", 1, "d", []int{1}),
	}, rows)
}

func TestFoldCardinalityMatchesElements(t *testing.T) {
	rows := executeCollect(t, numbersdata.New(), `
{
    Number(min: 2, max: 12) {
        value @output
        primeFactor @fold @transform(op: "count") @output(name: "count") {
            factors: value @output
        }
    }
}`, nil)
	require.NotEmpty(t, rows)
	for _, r := range rows {
		count, ok := r["count"].AsInt64()
		require.True(t, ok)
		factors, ok := r["factors"].AsList()
		require.True(t, ok)
		assert.Equal(t, int(count), len(factors), "row %v", r)
	}
}

func TestNestedFoldsNestLists(t *testing.T) {
	rows := executeCollect(t, numbersdata.New(), `
{
    Number(min: 4, max: 6) {
        value @output
        primeFactor @fold {
            f: value @output
            divisor @fold { fd: value @output }
        }
    }
}`, nil)

	fd := func(lists ...[]int) value.Value {
		out := make([]value.Value, len(lists))
		for i, l := range lists {
			out[i] = toValue(l)
		}
		return value.List(out)
	}
	assert.Equal(t, []interpreter.OutputRow{
		row("value", 4, "f", []int{2}, "fd", fd([]int{1})),
		row("value", 5, "f", []int{5}, "fd", fd([]int{1})),
		row("value", 6, "f", []int{2, 3}, "fd", fd([]int{1}, []int{1})),
	}, rows)
}

func TestFoldUnderAbsentOptionalIsNull(t *testing.T) {
	rows := executeCollect(t, numbersdata.New(), `
{
    Zero {
        zero: value @output
        predecessor @optional {
            divisor @fold { d: value @output }
        }
    }
}`, nil)
	assert.Equal(t, []interpreter.OutputRow{row("zero", 0, "d", nil)}, rows)
}

func TestRecursion(t *testing.T) {
	rows := executeCollect(t, numbersdata.New(), `
{
    Number(min: 10, max: 12) {
        ... on Composite {
            base: value @output
            divisor @recurse(depth: 2) { value @output }
        }
    }
}`, nil)

	// Group the reached values per base and compare as multisets:
	// 0-hop ∪ 1-hop ∪ 2-hop, duplicates preserved.
	got := map[int64][]int64{}
	for _, r := range rows {
		base, _ := r["base"].AsInt64()
		v, _ := r["value"].AsInt64()
		got[base] = append(got[base], v)
	}
	for base := range got {
		sort.Slice(got[base], func(i, j int) bool { return got[base][i] < got[base][j] })
	}
	want := map[int64][]int64{
		10: {1, 1, 1, 2, 5, 10},
		12: {1, 1, 1, 1, 1, 2, 2, 2, 3, 3, 4, 6, 12},
	}
	assert.Equal(t, want, got)

	// The 0-hop rows come first, one per input vertex.
	require.GreaterOrEqual(t, len(rows), 2)
	first, _ := rows[0]["value"].AsInt64()
	second, _ := rows[1]["value"].AsInt64()
	assert.Equal(t, int64(10), first)
	assert.Equal(t, int64(12), second)
}

func TestRecursionWithFold(t *testing.T) {
	rows := executeCollect(t, numbersdata.New(), `
{
    Four {
        value @output
        divisor @recurse(depth: 2) @fold { d: value @output }
    }
}`, nil)

	require.Len(t, rows, 1)
	list, ok := rows[0]["d"].AsList()
	require.True(t, ok)
	var got []int64
	for _, v := range list {
		n, _ := v.AsInt64()
		got = append(got, n)
	}
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	// divisors(4) = {1, 2}; divisors(2) = {1}; plus the 0-hop 4.
	assert.Equal(t, []int64{1, 1, 2, 4}, got)
}

func TestOutputOrderDeterminism(t *testing.T) {
	text := `
{
    Number(min: 1, max: 20) {
        value @output
        divisor @fold @transform(op: "count") @output(name: "divisors") {
            d: value @output
        }
        successor { s: value @output }
    }
}`
	first := executeCollect(t, numbersdata.New(), text, nil)
	second := executeCollect(t, numbersdata.New(), text, nil)
	assert.Equal(t, first, second)
}

func TestPartialConsumptionStaysLazy(t *testing.T) {
	sch := numbersdata.MustSchema()
	parsed, err := query.Parse(`{ Number(max: 100000000) { value @output } }`)
	require.NoError(t, err)
	compiled, err := frontend.Compile(sch, parsed)
	require.NoError(t, err)
	stream, err := interpreter.Execute(sch, numbersdata.New(), compiled.IR, nil)
	require.NoError(t, err)

	// Pulling three rows from a hundred-million-vertex entry point
	// must not drain the adapter.
	var got []int64
	for row, err := range stream {
		require.NoError(t, err)
		n, _ := row["value"].AsInt64()
		got = append(got, n)
		if len(got) == 3 {
			break
		}
	}
	assert.Equal(t, []int64{0, 1, 2}, got)
}

func TestMissingVariable(t *testing.T) {
	sch := numbersdata.MustSchema()
	parsed, err := query.Parse(`{ Number(max: 5) { value @output @filter(op: "=", value: ["$v"]) } }`)
	require.NoError(t, err)
	compiled, err := frontend.Compile(sch, parsed)
	require.NoError(t, err)

	_, err = interpreter.Execute(sch, numbersdata.New(), compiled.IR, nil)
	assert.ErrorIs(t, err, interpreter.ErrMissingVariable)

	_, err = interpreter.Execute(sch, numbersdata.New(), compiled.IR,
		map[string]value.Value{"v": value.String("three")})
	assert.ErrorIs(t, err, interpreter.ErrVariableType)
}

func TestBadVariableRegexFailsBeforeStreaming(t *testing.T) {
	sch := numbersdata.MustSchema()
	parsed, err := query.Parse(`{ One { value @tag(name: "v") @output successor { t: __typename @output @filter(op: "regex", value: ["$pat"]) } } }`)
	require.NoError(t, err)
	compiled, err := frontend.Compile(sch, parsed)
	require.NoError(t, err)

	_, err = interpreter.Execute(sch, numbersdata.New(), compiled.IR,
		map[string]value.Value{"pat": value.String("([")})
	assert.ErrorIs(t, err, interpreter.ErrBadRegex)
}

func TestTypenameFilterAndOutput(t *testing.T) {
	rows := executeCollect(t, numbersdata.New(), `
{
    Number(min: 1, max: 4) {
        value @output
        kind: __typename @output @filter(op: "=", value: ["$kind"])
    }
}`, map[string]value.Value{"kind": value.String("Prime")})

	assert.Equal(t, []interpreter.OutputRow{
		row("value", 2, "kind", "Prime"),
		row("value", 3, "kind", "Prime"),
	}, rows)
}

// abortingAdapter fails neighbor resolution when it sees the vertex
// with value 3.
type abortingAdapter struct {
	*numbersdata.Adapter
}

var errBoom = errors.New("boom")

func (a *abortingAdapter) ResolveNeighbors(ctxs iter.Seq[*interpreter.Context], typeName, edgeName string, params *ir.EdgeParameters) iter.Seq2[*interpreter.Context, iter.Seq[any]] {
	checked := func(yield func(*interpreter.Context) bool) {
		for ctx := range ctxs {
			if n, ok := ctx.ActiveVertex().(numbersdata.Number); ok && n.Value == 3 {
				interpreter.Abort(errBoom)
			}
			if !yield(ctx) {
				return
			}
		}
	}
	return a.Adapter.ResolveNeighbors(checked, typeName, edgeName, params)
}

func TestAdapterErrorTerminatesStream(t *testing.T) {
	sch := numbersdata.MustSchema()
	parsed, err := query.Parse(`{ Number(min: 1, max: 5) { value @output successor { s: value @output } } }`)
	require.NoError(t, err)
	compiled, err := frontend.Compile(sch, parsed)
	require.NoError(t, err)
	stream, err := interpreter.Execute(sch, &abortingAdapter{numbersdata.New()}, compiled.IR, nil)
	require.NoError(t, err)

	var rows []interpreter.OutputRow
	var streamErr error
	for row, err := range stream {
		if err != nil {
			streamErr = err
			break
		}
		rows = append(rows, row)
	}
	require.Error(t, streamErr)
	assert.ErrorIs(t, streamErr, errBoom)
	// A prefix of rows was produced before the failure.
	assert.Equal(t, []interpreter.OutputRow{
		row("value", 1, "s", 2),
		row("value", 2, "s", 3),
	}, rows)
}
