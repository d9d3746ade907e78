// Package numbersdata implements the in-tree test adapter: a universe
// of non-negative integers with arithmetic edges and Prime/Composite/
// Neither subtypes. Every end-to-end and property test in the repo
// runs against it because its results are cheap to compute
// independently.
package numbersdata

import (
	"iter"

	"github.com/loomhq/weft/interpreter"
	"github.com/loomhq/weft/ir"
	"github.com/loomhq/weft/schema"
	"github.com/loomhq/weft/value"
)

// SchemaText is the numbers schema in SDL form.
const SchemaText = `
schema {
    query: RootSchemaQuery
}
directive @filter(op: String!, value: [String!]) repeatable on FIELD | INLINE_FRAGMENT
directive @tag(name: String) on FIELD
directive @output(name: String) on FIELD
directive @optional on FIELD
directive @recurse(depth: Int!) on FIELD
directive @fold on FIELD
directive @transform(op: String!) on FIELD

type RootSchemaQuery {
    Number(min: Int = 0, max: Int!): [Number!]!
    Zero: Number!
    One: Number!
    Two: Number!
    Four: Number!
}

interface Number {
    value: Int!
    successor: Number!
    predecessor: Number
    multiple(max: Int!): [Composite!]
    divisor: [Number!]
    primeFactor: [Prime!]
}

type Prime implements Number {
    value: Int!
    successor: Number!
    predecessor: Number
    multiple(max: Int!): [Composite!]
    divisor: [Number!]
    primeFactor: [Prime!]
}

type Composite implements Number {
    value: Int!
    successor: Number!
    predecessor: Number
    multiple(max: Int!): [Composite!]
    divisor: [Number!]
    primeFactor: [Prime!]
}

type Neither implements Number {
    value: Int!
    successor: Number!
    predecessor: Number
    multiple(max: Int!): [Composite!]
    divisor: [Number!]
    primeFactor: [Prime!]
}
`

// MustSchema parses the numbers schema, panicking on error.
func MustSchema() *schema.Schema {
	sch, err := schema.Parse(SchemaText)
	if err != nil {
		panic(err)
	}
	return sch
}

// Number is the adapter's vertex: one non-negative integer.
type Number struct {
	Value int64 `json:"value"`
}

// TypeName classifies n: 0 and 1 are Neither, the rest Prime or
// Composite.
func TypeName(n int64) string {
	switch {
	case n < 2:
		return "Neither"
	case isPrime(n):
		return "Prime"
	default:
		return "Composite"
	}
}

func isPrime(n int64) bool {
	if n < 2 {
		return false
	}
	for d := int64(2); d*d <= n; d++ {
		if n%d == 0 {
			return false
		}
	}
	return true
}

// Adapter resolves the numbers universe.
type Adapter struct{}

// New returns a numbers adapter.
func New() *Adapter { return &Adapter{} }

// ResolveStartingVertices implements interpreter.Adapter.
func (a *Adapter) ResolveStartingVertices(edgeName string, params *ir.EdgeParameters) iter.Seq[any] {
	return func(yield func(any) bool) {
		switch edgeName {
		case "Number":
			min, _ := params.Get("min").AsInt64()
			max, _ := params.Get("max").AsInt64()
			for n := min; n <= max; n++ {
				if !yield(Number{Value: n}) {
					return
				}
			}
		case "Zero":
			yield(Number{Value: 0})
		case "One":
			yield(Number{Value: 1})
		case "Two":
			yield(Number{Value: 2})
		case "Four":
			yield(Number{Value: 4})
		default:
			interpreter.Abort(unknownEdge(edgeName))
		}
	}
}

// ResolveProperty implements interpreter.Adapter.
func (a *Adapter) ResolveProperty(ctxs iter.Seq[*interpreter.Context], typeName, fieldName string) iter.Seq2[*interpreter.Context, value.Value] {
	return func(yield func(*interpreter.Context, value.Value) bool) {
		for ctx := range ctxs {
			active := ctx.ActiveVertex()
			if active == nil {
				if !yield(ctx, value.Null()) {
					return
				}
				continue
			}
			n := active.(Number)
			var v value.Value
			switch fieldName {
			case "value":
				v = value.Int64(n.Value)
			case schema.TypenameField:
				v = value.String(TypeName(n.Value))
			default:
				interpreter.Abort(unknownField(typeName, fieldName))
			}
			if !yield(ctx, v) {
				return
			}
		}
	}
}

// ResolveNeighbors implements interpreter.Adapter.
func (a *Adapter) ResolveNeighbors(ctxs iter.Seq[*interpreter.Context], typeName, edgeName string, params *ir.EdgeParameters) iter.Seq2[*interpreter.Context, iter.Seq[any]] {
	return func(yield func(*interpreter.Context, iter.Seq[any]) bool) {
		for ctx := range ctxs {
			active := ctx.ActiveVertex()
			if active == nil {
				if !yield(ctx, emptyVertices()) {
					return
				}
				continue
			}
			n := active.(Number).Value
			var neighbors []int64
			switch edgeName {
			case "successor":
				neighbors = []int64{n + 1}
			case "predecessor":
				if n >= 1 {
					neighbors = []int64{n - 1}
				}
			case "multiple":
				max, _ := params.Get("max").AsInt64()
				for k := int64(2); k <= max; k++ {
					product := n * k
					if TypeName(product) == "Composite" {
						neighbors = append(neighbors, product)
					}
				}
			case "divisor":
				for d := int64(1); d < n; d++ {
					if n%d == 0 {
						neighbors = append(neighbors, d)
					}
				}
			case "primeFactor":
				for p := int64(2); p <= n; p++ {
					if n%p == 0 && isPrime(p) {
						neighbors = append(neighbors, p)
					}
				}
			default:
				interpreter.Abort(unknownEdge(edgeName))
			}
			if !yield(ctx, numberVertices(neighbors)) {
				return
			}
		}
	}
}

// ResolveCoercion implements interpreter.Adapter.
func (a *Adapter) ResolveCoercion(ctxs iter.Seq[*interpreter.Context], typeName, targetTypeName string) iter.Seq2[*interpreter.Context, bool] {
	return func(yield func(*interpreter.Context, bool) bool) {
		for ctx := range ctxs {
			active := ctx.ActiveVertex()
			if active == nil {
				if !yield(ctx, false) {
					return
				}
				continue
			}
			n := active.(Number)
			ok := targetTypeName == "Number" || TypeName(n.Value) == targetTypeName
			if !yield(ctx, ok) {
				return
			}
		}
	}
}

func numberVertices(values []int64) iter.Seq[any] {
	return func(yield func(any) bool) {
		for _, n := range values {
			if !yield(Number{Value: n}) {
				return
			}
		}
	}
}

func emptyVertices() iter.Seq[any] {
	return func(yield func(any) bool) {}
}

var _ interpreter.Adapter = (*Adapter)(nil)

type adapterError string

func (e adapterError) Error() string { return string(e) }

func unknownEdge(name string) error {
	return adapterError("numbers adapter has no edge named " + name)
}

func unknownField(typeName, fieldName string) error {
	return adapterError("numbers adapter has no property " + typeName + "." + fieldName)
}
