// Package trace records every adapter call, input-iterator advance,
// and yield performed during a query execution, producing a
// deterministic operation log suitable for snapshot testing.
// Recording changes no semantics: the tapped adapter behaves exactly
// like the adapter it wraps.
package trace

import (
	"iter"

	"github.com/loomhq/weft/interpreter"
	"github.com/loomhq/weft/ir"
	"github.com/loomhq/weft/value"
)

// Opid identifies one recorded operation within a trace.
type Opid int

// Op is one recorded operation. Ops that happen inside an adapter
// call carry that call's opid as their parent, except neighbor ops,
// whose parent is the yield_from op of their neighbor group.
type Op struct {
	Opid       Opid    `json:"opid"`
	ParentOpid *Opid   `json:"parent_opid,omitempty"`
	Content    Content `json:"content"`
}

// Content describes what an operation was. Kind is one of: call,
// advance_input_iterator, yield_into, yield_from, neighbor,
// input_iterator_exhausted, output_iterator_exhausted,
// produce_query_result.
type Content struct {
	Kind string `json:"kind"`

	Function   string             `json:"function,omitempty"`
	TypeName   string             `json:"type_name,omitempty"`
	FieldName  string             `json:"field_name,omitempty"`
	EdgeName   string             `json:"edge_name,omitempty"`
	TargetType string             `json:"target_type,omitempty"`
	Parameters *ir.EdgeParameters `json:"parameters,omitempty"`

	LocalID   *int                  `json:"local_id,omitempty"`
	Vertex    any                   `json:"vertex,omitempty"`
	Value     *value.Value          `json:"value,omitempty"`
	CanCoerce *bool                 `json:"can_coerce,omitempty"`
	Row       interpreter.OutputRow `json:"row,omitempty"`
}

// Trace is a completed operation log together with the query that
// produced it.
type Trace struct {
	IR        *ir.Query              `json:"ir_query,omitempty"`
	Arguments map[string]value.Value `json:"arguments,omitempty"`
	Ops       []Op                   `json:"ops"`
}

// Tap wraps an adapter and records every interaction with it. A Tap
// serves one query execution at a time.
type Tap struct {
	inner    interpreter.Adapter
	ops      []Op
	nextOpid Opid
}

// NewTap wraps inner for recording.
func NewTap(inner interpreter.Adapter) *Tap {
	return &Tap{inner: inner}
}

// Ops returns the operations recorded so far.
func (t *Tap) Ops() []Op { return t.ops }

func (t *Tap) record(parent *Opid, content Content) Opid {
	t.nextOpid++
	op := Op{Opid: t.nextOpid, Content: content}
	if parent != nil {
		p := *parent
		op.ParentOpid = &p
	}
	t.ops = append(t.ops, op)
	return op.Opid
}

// recordResult adds a produce_query_result operation; the interpreter
// is not aware of the Tap, so the execution helper calls this as rows
// stream out.
func (t *Tap) recordResult(row interpreter.OutputRow) {
	t.record(nil, Content{Kind: "produce_query_result", Row: row})
}

func (t *Tap) recordOutputExhausted(call Opid) {
	t.record(&call, Content{Kind: "output_iterator_exhausted"})
}

// tapInput records each pull of the input context iterator.
func (t *Tap) tapInput(call Opid, ctxs iter.Seq[*interpreter.Context]) iter.Seq[*interpreter.Context] {
	return func(yield func(*interpreter.Context) bool) {
		next, stop := iter.Pull(ctxs)
		defer stop()
		for {
			t.record(&call, Content{Kind: "advance_input_iterator"})
			ctx, ok := next()
			if !ok {
				t.record(&call, Content{Kind: "input_iterator_exhausted"})
				return
			}
			id := ctx.LocalID()
			t.record(&call, Content{Kind: "yield_into", LocalID: &id, Vertex: ctx.ActiveVertex()})
			if !yield(ctx) {
				return
			}
		}
	}
}

// ResolveStartingVertices implements interpreter.Adapter.
func (t *Tap) ResolveStartingVertices(edgeName string, params *ir.EdgeParameters) iter.Seq[any] {
	call := t.record(nil, Content{
		Kind:       "call",
		Function:   "resolve_starting_vertices",
		EdgeName:   edgeName,
		Parameters: params,
	})
	out := t.inner.ResolveStartingVertices(edgeName, params)
	return func(yield func(any) bool) {
		for v := range out {
			t.record(&call, Content{Kind: "yield_from", Vertex: v})
			if !yield(v) {
				return
			}
		}
		t.recordOutputExhausted(call)
	}
}

// ResolveProperty implements interpreter.Adapter.
func (t *Tap) ResolveProperty(ctxs iter.Seq[*interpreter.Context], typeName, fieldName string) iter.Seq2[*interpreter.Context, value.Value] {
	call := t.record(nil, Content{
		Kind:      "call",
		Function:  "resolve_property",
		TypeName:  typeName,
		FieldName: fieldName,
	})
	out := t.inner.ResolveProperty(t.tapInput(call, ctxs), typeName, fieldName)
	return func(yield func(*interpreter.Context, value.Value) bool) {
		for ctx, v := range out {
			id := ctx.LocalID()
			val := v
			t.record(&call, Content{Kind: "yield_from", LocalID: &id, Value: &val})
			if !yield(ctx, v) {
				return
			}
		}
		t.recordOutputExhausted(call)
	}
}

// ResolveNeighbors implements interpreter.Adapter.
func (t *Tap) ResolveNeighbors(ctxs iter.Seq[*interpreter.Context], typeName, edgeName string, params *ir.EdgeParameters) iter.Seq2[*interpreter.Context, iter.Seq[any]] {
	call := t.record(nil, Content{
		Kind:       "call",
		Function:   "resolve_neighbors",
		TypeName:   typeName,
		EdgeName:   edgeName,
		Parameters: params,
	})
	out := t.inner.ResolveNeighbors(t.tapInput(call, ctxs), typeName, edgeName, params)
	return func(yield func(*interpreter.Context, iter.Seq[any]) bool) {
		for ctx, neighbors := range out {
			id := ctx.LocalID()
			group := t.record(&call, Content{Kind: "yield_from", LocalID: &id})
			tapped := func(yieldNeighbor func(any) bool) {
				for v := range neighbors {
					t.record(&group, Content{Kind: "neighbor", Vertex: v})
					if !yieldNeighbor(v) {
						return
					}
				}
			}
			if !yield(ctx, tapped) {
				return
			}
		}
		t.recordOutputExhausted(call)
	}
}

// ResolveCoercion implements interpreter.Adapter.
func (t *Tap) ResolveCoercion(ctxs iter.Seq[*interpreter.Context], typeName, targetTypeName string) iter.Seq2[*interpreter.Context, bool] {
	call := t.record(nil, Content{
		Kind:       "call",
		Function:   "resolve_coercion",
		TypeName:   typeName,
		TargetType: targetTypeName,
	})
	out := t.inner.ResolveCoercion(t.tapInput(call, ctxs), typeName, targetTypeName)
	return func(yield func(*interpreter.Context, bool) bool) {
		for ctx, ok := range out {
			id := ctx.LocalID()
			can := ok
			t.record(&call, Content{Kind: "yield_from", LocalID: &id, CanCoerce: &can})
			if !yield(ctx, ok) {
				return
			}
		}
		t.recordOutputExhausted(call)
	}
}

var _ interpreter.Adapter = (*Tap)(nil)
