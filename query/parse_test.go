package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomhq/weft/value"
)

func TestParseSupported(t *testing.T) {
	q, err := Parse(`
{
    Number(min: 1, max: 10) {
        ... on Prime {
            value @tag(name: "val") @output
            successor {
                next: value @output @filter(op: ">", value: ["$min"]) @filter(op: "<", value: ["%val"])
            }
            predecessor @optional {
                prior: value @output
            }
            multiple(max: 3) @fold @transform(op: "count") @output(name: "multiples") {
                m: value @output
            }
            divisor @recurse(depth: 2) {
                d: value @output
            }
        }
    }
}`)
	require.NoError(t, err)

	root := q.Root
	assert.Equal(t, "Number", root.Name)
	assert.Equal(t, "", root.Alias)
	require.Len(t, root.Arguments, 2)
	assert.Equal(t, "min", root.Arguments[0].Name)
	assert.Equal(t, Literal{Value: value.Int64(1)}, root.Arguments[0].Value)
	assert.Equal(t, "max", root.Arguments[1].Name)

	require.Len(t, root.SelectionSet.Fragments, 1)
	frag := root.SelectionSet.Fragments[0]
	assert.Equal(t, "Prime", frag.On)

	fields := frag.SelectionSet.Fields
	require.Len(t, fields, 5)

	valueField := fields[0]
	assert.Equal(t, "value", valueField.Name)
	require.NotNil(t, valueField.Tag)
	assert.Equal(t, "val", valueField.Tag.Name)
	require.NotNil(t, valueField.Output)
	assert.Equal(t, "", valueField.Output.Name)

	succ := fields[1]
	require.Len(t, succ.SelectionSet.Fields, 1)
	next := succ.SelectionSet.Fields[0]
	assert.Equal(t, "next", next.Alias)
	assert.Equal(t, "value", next.Name)
	require.Len(t, next.Filters, 2)
	assert.Equal(t, ">", next.Filters[0].Op)
	assert.Equal(t, []Operand{VariableOperand{Name: "min"}}, next.Filters[0].Operands)
	assert.Equal(t, "<", next.Filters[1].Op)
	assert.Equal(t, []Operand{TagOperand{Name: "val"}}, next.Filters[1].Operands)

	pred := fields[2]
	assert.True(t, pred.Optional)

	mult := fields[3]
	assert.True(t, mult.Fold)
	require.NotNil(t, mult.Transform)
	assert.Equal(t, "count", mult.Transform.Op)
	require.NotNil(t, mult.Output)
	assert.Equal(t, "multiples", mult.Output.Name)
	require.Len(t, mult.Arguments, 1)

	div := fields[4]
	require.NotNil(t, div.Recurse)
	assert.Equal(t, int64(2), div.Recurse.Depth)
}

func TestParseVariableArguments(t *testing.T) {
	q, err := Parse(`{ Number(max: $limit) { value @output } }`)
	require.NoError(t, err)
	require.Len(t, q.Root.Arguments, 1)
	assert.Equal(t, VariableRef{Name: "limit"}, q.Root.Arguments[0].Value)
}

func TestParseListLiteral(t *testing.T) {
	q, err := Parse(`{ Number(max: [1, 2, 3]) { value @output } }`)
	require.NoError(t, err)
	lit, ok := q.Root.Arguments[0].Value.(Literal)
	require.True(t, ok)
	list, ok := lit.Value.AsList()
	require.True(t, ok)
	assert.Len(t, list, 3)
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name  string
		query string
		want  error
	}{
		{"syntax", `{ Number( }`, ErrSyntax},
		{"mutation", `mutation { Number { value } }`, ErrSyntax},
		{"two root fields", `{ One { value @output } Two { value @output } }`, ErrSyntax},
		{"named fragment", `{ One { ...F } } fragment F on Number { value }`, ErrSyntax},
		{"unknown directive", `{ One { value @uppercase } }`, ErrUnknownDirective},
		{"duplicate output", `{ One { value @output @output } }`, ErrDuplicateDirective},
		{"duplicate optional", `{ One { successor @optional @optional { value @output } } }`, ErrDuplicateDirective},
		{"filter missing op", `{ One { value @filter(value: ["$x"]) } }`, ErrInvalidDirectiveArgs},
		{"filter bad operand", `{ One { value @filter(op: "=", value: ["literal"]) } }`, ErrInvalidDirectiveArgs},
		{"filter non-list value", `{ One { value @filter(op: "=", value: "$x") } }`, ErrInvalidDirectiveArgs},
		{"recurse without depth", `{ One { successor @recurse { value @output } } }`, ErrInvalidDirectiveArgs},
		{"recurse zero depth", `{ One { successor @recurse(depth: 0) { value @output } } }`, ErrInvalidDirectiveArgs},
		{"fold with args", `{ One { successor @fold(x: 1) { value @output } } }`, ErrInvalidDirectiveArgs},
		{"output wrong arg", `{ One { value @output(label: "x") } }`, ErrInvalidDirectiveArgs},
		{"fragment directive", `{ One { ... on Prime @optional { value @output } } }`, ErrInvalidDirectiveArgs},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.query)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestFilterBeforeOutputDirective(t *testing.T) {
	q, err := Parse(`{ One { value @filter(op: "one_of", value: ["$allowed"]) @output } }`)
	require.NoError(t, err)
	field := q.Root.SelectionSet.Fields[0]
	require.Len(t, field.Filters, 1)
	assert.Equal(t, "one_of", field.Filters[0].Op)
}

func TestMustParsePanics(t *testing.T) {
	assert.Panics(t, func() { MustParse(`{ broken`) })
}
