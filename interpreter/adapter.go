// Package interpreter lazily executes lowered queries against an
// adapter. Execution is single-threaded, cooperative, and pull-based:
// all iteration is driven by the consumer of the output stream, and
// the interpreter requests only as many upstream contexts as needed
// to produce the next value. The exceptions are @recurse edges, which
// drain their input stream before the first output, and folds, which
// materialize their inner results per outer context.
package interpreter

import (
	"iter"

	"github.com/loomhq/weft/ir"
	"github.com/loomhq/weft/value"
)

// Adapter exposes a data source as typed vertices with properties and
// edges. The vertex representation is opaque to the engine: vertices
// are handed to the adapter exactly as the adapter produced them.
//
// Every operation over an input context sequence must preserve its
// order: the N-th output pair corresponds to the N-th input context.
// The engine never reorders contexts between handing them to an
// adapter call and reading the outputs. Adapters may batch internally
// as long as the boundary stays ordered.
//
// The engine may stop consuming any returned sequence early; adapters
// must be safe to drop mid-iteration. An adapter that fails mid-
// stream reports it with Abort, which terminates the query's output
// iterator with that error.
type Adapter interface {
	// ResolveStartingVertices produces the vertices reached by a root
	// edge with the given parameters.
	ResolveStartingVertices(edgeName string, params *ir.EdgeParameters) iter.Seq[any]

	// ResolveProperty yields each input context paired with the value
	// of the named property on its active vertex. Contexts whose
	// active vertex is nil must yield a null value.
	//
	// For the __typename property the adapter may report the declared
	// typeName or any schema-known subtype of it.
	ResolveProperty(contexts iter.Seq[*Context], typeName, fieldName string) iter.Seq2[*Context, value.Value]

	// ResolveNeighbors yields each input context paired with the
	// sequence of vertices adjacent via the named edge. Contexts
	// whose active vertex is nil must yield an empty sequence.
	ResolveNeighbors(contexts iter.Seq[*Context], typeName, edgeName string, params *ir.EdgeParameters) iter.Seq2[*Context, iter.Seq[any]]

	// ResolveCoercion yields each input context paired with whether
	// its active vertex is of the target type. Contexts whose active
	// vertex is nil must yield false.
	ResolveCoercion(contexts iter.Seq[*Context], typeName, targetTypeName string) iter.Seq2[*Context, bool]
}

// OutputRow maps declared output names to their values. The column
// order is the query's declared output order.
type OutputRow map[string]value.Value

// streamAbort carries an adapter failure out of the lazy pipeline.
type streamAbort struct {
	err error
}

// Abort terminates the running query's output stream with err. It is
// the mechanism adapters use to report failures from inside a lazy
// resolution; the engine recovers it at the stream boundary and
// surfaces it as the iterator's terminal error.
func Abort(err error) {
	panic(&streamAbort{err: err})
}
