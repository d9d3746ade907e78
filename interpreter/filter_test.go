package interpreter

import (
	"testing"

	"github.com/dlclark/regexp2"
	"github.com/stretchr/testify/assert"

	"github.com/loomhq/weft/ir"
	"github.com/loomhq/weft/value"
)

func newTestExecutor() *executor {
	return &executor{regexes: make(map[string]*regexp2.Regexp)}
}

func TestEvalOperatorBasics(t *testing.T) {
	ex := newTestExecutor()
	cases := []struct {
		name        string
		op          ir.Operator
		left, right value.Value
		want        bool
	}{
		{"equals ints", ir.OpEquals, value.Int64(3), value.Int64(3), true},
		{"equals across classes", ir.OpEquals, value.Int64(3), value.Uint64(3), true},
		{"not equals", ir.OpNotEquals, value.Int64(3), value.Int64(4), true},
		{"less than", ir.OpLessThan, value.Int64(1), value.Int64(2), true},
		{"lte equal", ir.OpLessThanOrEqual, value.Int64(2), value.Int64(2), true},
		{"greater", ir.OpGreaterThan, value.String("b"), value.String("a"), true},
		{"gte", ir.OpGreaterThanOrEqual, value.Float64(1.5), value.Float64(2.5), false},
		{"unorderable pair", ir.OpLessThan, value.Int64(1), value.String("2"), false},
		{"one_of hit", ir.OpOneOf, value.Int64(2), value.List([]value.Value{value.Int64(1), value.Int64(2)}), true},
		{"one_of miss", ir.OpOneOf, value.Int64(3), value.List([]value.Value{value.Int64(1), value.Int64(2)}), false},
		{"not_one_of", ir.OpNotOneOf, value.Int64(3), value.List([]value.Value{value.Int64(1)}), true},
		{"contains", ir.OpContains, value.List([]value.Value{value.String("a")}), value.String("a"), true},
		{"not_contains", ir.OpNotContains, value.List([]value.Value{value.String("a")}), value.String("b"), true},
		{"has_prefix", ir.OpHasPrefix, value.String("graph"), value.String("gr"), true},
		{"not_has_prefix", ir.OpNotHasPrefix, value.String("graph"), value.String("ph"), true},
		{"has_suffix", ir.OpHasSuffix, value.String("graph"), value.String("ph"), true},
		{"has_substring", ir.OpHasSubstring, value.String("graph"), value.String("rap"), true},
		{"regex", ir.OpRegex, value.String("abc123"), value.String(`^[a-z]+\d+$`), true},
		{"not_regex", ir.OpNotRegex, value.String("abc"), value.String(`^\d+$`), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ex.evalOperator(tc.op, tc.left, tc.right))
		})
	}
}

func TestEvalOperatorNullExcludes(t *testing.T) {
	ex := newTestExecutor()
	// Every non-null-aware operator treats a null operand as "row
	// excluded" — including the not_* variants.
	ops := []ir.Operator{
		ir.OpEquals, ir.OpNotEquals,
		ir.OpLessThan, ir.OpLessThanOrEqual, ir.OpGreaterThan, ir.OpGreaterThanOrEqual,
		ir.OpOneOf, ir.OpNotOneOf,
		ir.OpContains, ir.OpNotContains,
		ir.OpHasPrefix, ir.OpNotHasPrefix,
		ir.OpHasSuffix, ir.OpNotHasSuffix,
		ir.OpHasSubstring, ir.OpNotHasSubstring,
		ir.OpRegex, ir.OpNotRegex,
	}
	for _, op := range ops {
		assert.False(t, ex.evalOperator(op, value.Null(), value.Int64(1)), "%s with null left", op)
		assert.False(t, ex.evalOperator(op, value.Int64(1), value.Null()), "%s with null right", op)
		assert.False(t, ex.evalOperator(op, value.Null(), value.Null()), "%s with both null", op)
	}
}

func TestEvalOperatorNullAware(t *testing.T) {
	ex := newTestExecutor()
	assert.True(t, ex.evalOperator(ir.OpIsNull, value.Null(), value.Value{}))
	assert.False(t, ex.evalOperator(ir.OpIsNull, value.Int64(0), value.Value{}))
	assert.True(t, ex.evalOperator(ir.OpIsNotNull, value.Int64(0), value.Value{}))
	assert.False(t, ex.evalOperator(ir.OpIsNotNull, value.Null(), value.Value{}))
}

func TestFilterDuality(t *testing.T) {
	ex := newTestExecutor()
	pairs := []struct {
		op, notOp ir.Operator
	}{
		{ir.OpEquals, ir.OpNotEquals},
		{ir.OpOneOf, ir.OpNotOneOf},
		{ir.OpContains, ir.OpNotContains},
		{ir.OpHasPrefix, ir.OpNotHasPrefix},
		{ir.OpHasSuffix, ir.OpNotHasSuffix},
		{ir.OpHasSubstring, ir.OpNotHasSubstring},
		{ir.OpRegex, ir.OpNotRegex},
	}
	lefts := []value.Value{
		value.Int64(1), value.String("weft"), value.String(""),
		value.List([]value.Value{value.Int64(1), value.Int64(2)}),
		value.Bool(true),
	}
	rights := []value.Value{
		value.Int64(1), value.Int64(7), value.String("we"), value.String(`^w`),
		value.List([]value.Value{value.Int64(1)}),
	}
	for _, pair := range pairs {
		for _, left := range lefts {
			for _, right := range rights {
				pos := ex.evalOperator(pair.op, left, right)
				neg := ex.evalOperator(pair.notOp, left, right)
				assert.NotEqual(t, pos, neg,
					"%s and %s must disagree on (%s, %s)", pair.op, pair.notOp, left, right)
			}
		}
	}
}

func TestRegexCompiledOncePerQuery(t *testing.T) {
	ex := newTestExecutor()
	first, err := ex.regexFor(`^\d+$`)
	assert.NoError(t, err)
	second, err := ex.regexFor(`^\d+$`)
	assert.NoError(t, err)
	assert.Same(t, first, second)

	_, err = ex.regexFor(`([`)
	assert.ErrorIs(t, err, ErrBadRegex)
}
