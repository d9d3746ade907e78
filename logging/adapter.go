package logging

import (
	"iter"

	"github.com/loomhq/weft/interpreter"
	"github.com/loomhq/weft/ir"
	"github.com/loomhq/weft/value"
)

// Adapter wraps an adapter and logs every resolution call and its
// batch sizes at debug level. Like the trace tap, wrapping changes no
// semantics.
type Adapter struct {
	inner interpreter.Adapter
	log   Logger
}

// WrapAdapter attaches a logger to an adapter.
func WrapAdapter(inner interpreter.Adapter, log Logger) *Adapter {
	return &Adapter{inner: inner, log: log}
}

// ResolveStartingVertices implements interpreter.Adapter.
func (a *Adapter) ResolveStartingVertices(edgeName string, params *ir.EdgeParameters) iter.Seq[any] {
	a.log.Debug("resolve_starting_vertices", "edge", edgeName, "parameters", params)
	out := a.inner.ResolveStartingVertices(edgeName, params)
	return func(yield func(any) bool) {
		count := 0
		for v := range out {
			count++
			if !yield(v) {
				return
			}
		}
		a.log.Debug("resolve_starting_vertices done", "edge", edgeName, "vertices", count)
	}
}

// ResolveProperty implements interpreter.Adapter.
func (a *Adapter) ResolveProperty(ctxs iter.Seq[*interpreter.Context], typeName, fieldName string) iter.Seq2[*interpreter.Context, value.Value] {
	a.log.Debug("resolve_property", "type", typeName, "field", fieldName)
	out := a.inner.ResolveProperty(ctxs, typeName, fieldName)
	return func(yield func(*interpreter.Context, value.Value) bool) {
		count := 0
		for ctx, v := range out {
			count++
			if !yield(ctx, v) {
				return
			}
		}
		a.log.Debug("resolve_property done", "type", typeName, "field", fieldName, "contexts", count)
	}
}

// ResolveNeighbors implements interpreter.Adapter.
func (a *Adapter) ResolveNeighbors(ctxs iter.Seq[*interpreter.Context], typeName, edgeName string, params *ir.EdgeParameters) iter.Seq2[*interpreter.Context, iter.Seq[any]] {
	a.log.Debug("resolve_neighbors", "type", typeName, "edge", edgeName, "parameters", params)
	out := a.inner.ResolveNeighbors(ctxs, typeName, edgeName, params)
	return func(yield func(*interpreter.Context, iter.Seq[any]) bool) {
		count := 0
		for ctx, neighbors := range out {
			count++
			if !yield(ctx, neighbors) {
				return
			}
		}
		a.log.Debug("resolve_neighbors done", "type", typeName, "edge", edgeName, "contexts", count)
	}
}

// ResolveCoercion implements interpreter.Adapter.
func (a *Adapter) ResolveCoercion(ctxs iter.Seq[*interpreter.Context], typeName, targetTypeName string) iter.Seq2[*interpreter.Context, bool] {
	a.log.Debug("resolve_coercion", "type", typeName, "target", targetTypeName)
	out := a.inner.ResolveCoercion(ctxs, typeName, targetTypeName)
	return func(yield func(*interpreter.Context, bool) bool) {
		count := 0
		for ctx, ok := range out {
			count++
			if !yield(ctx, ok) {
				return
			}
		}
		a.log.Debug("resolve_coercion done", "type", typeName, "target", targetTypeName, "contexts", count)
	}
}

var _ interpreter.Adapter = (*Adapter)(nil)
