package interpreter

import (
	"fmt"
	"iter"

	"github.com/dlclark/regexp2"

	"github.com/loomhq/weft/ir"
	"github.com/loomhq/weft/schema"
	"github.com/loomhq/weft/value"
)

type executor struct {
	sch     *schema.Schema
	adapter Adapter
	q       *ir.Query
	vars    map[string]value.Value

	regexes     map[string]*regexp2.Regexp
	nextLocalID int

	// optionalScope marks vertices inside an @optional subtree:
	// failures there suspend the context instead of discarding it.
	optionalScope map[ir.Vid]bool
}

// Execute runs a lowered query against an adapter, returning a lazy
// stream of output rows. Errors detectable before streaming begins
// (missing or ill-typed variables, bad variable regex patterns) are
// returned immediately; adapter failures mid-stream terminate the
// iterator with a final non-nil error.
func Execute(sch *schema.Schema, adapter Adapter, q *ir.Query, vars map[string]value.Value) (iter.Seq2[OutputRow, error], error) {
	ex := &executor{
		sch:           sch,
		adapter:       adapter,
		q:             q,
		vars:          vars,
		regexes:       make(map[string]*regexp2.Regexp),
		optionalScope: make(map[ir.Vid]bool),
	}
	if err := ex.validateVariables(); err != nil {
		return nil, err
	}
	if err := ex.precompileRegexes(q.RootComponent); err != nil {
		return nil, err
	}
	ex.markOptionalScopes(q.RootComponent)

	stream := func(yield func(OutputRow, error) bool) {
		var aborted error
		func() {
			defer func() {
				if r := recover(); r != nil {
					if sa, ok := r.(*streamAbort); ok {
						aborted = sa.err
						return
					}
					panic(r)
				}
			}()
			ctxs := ex.startRoot()
			ctxs = ex.runComponent(q.RootComponent, ctxs)
			for row := range ex.project(q.RootComponent, ctxs) {
				if !yield(row, nil) {
					return
				}
			}
		}()
		if aborted != nil {
			// Adapter errors propagate verbatim so callers can match
			// on them.
			yield(nil, aborted)
		}
	}
	return stream, nil
}

func (ex *executor) validateVariables() error {
	for name, typ := range ex.q.Variables {
		v, ok := ex.vars[name]
		if !ok {
			return fmt.Errorf("%w: $%s", ErrMissingVariable, name)
		}
		if !schema.ValueConforms(v, typ) {
			return fmt.Errorf("%w: $%s = %s does not conform to %s", ErrVariableType, name, v, typ)
		}
	}
	return nil
}

// precompileRegexes compiles every variable-sourced regex pattern up
// front so malformed patterns fail before any row streams.
func (ex *executor) precompileRegexes(component *ir.Component) error {
	compile := func(filters []ir.Filter) error {
		for _, f := range filters {
			if base, _ := f.Op.Negated(); base != ir.OpRegex {
				continue
			}
			variable, ok := f.Right.(ir.Variable)
			if !ok {
				continue
			}
			pattern, ok := ex.vars[variable.Name].AsString()
			if !ok {
				return fmt.Errorf("%w: $%s must be a string pattern", ErrVariableType, variable.Name)
			}
			if _, err := ex.regexFor(pattern); err != nil {
				return err
			}
		}
		return nil
	}
	for _, vertex := range component.Vertices {
		if err := compile(vertex.Filters); err != nil {
			return err
		}
	}
	for _, fold := range component.Folds {
		if err := compile(fold.PostFilters); err != nil {
			return err
		}
		if err := ex.precompileRegexes(fold.Component); err != nil {
			return err
		}
	}
	return nil
}

func (ex *executor) markOptionalScopes(component *ir.Component) {
	for _, eid := range component.EdgeOrder() {
		if edge, ok := component.Edges[eid]; ok {
			ex.optionalScope[edge.ToVid] = edge.Optional || ex.optionalScope[edge.FromVid]
			continue
		}
		ex.markOptionalScopes(component.Folds[eid].Component)
	}
}

func (ex *executor) newLocalID() int {
	ex.nextLocalID++
	return ex.nextLocalID
}

// child clones ctx into a new context bound to vertex at vid, with a
// fresh local id so adapter correlation stays unambiguous.
func (ex *executor) child(ctx *Context, vid ir.Vid, vertex any) *Context {
	out := ctx.cloneWithVertex(vid, vertex)
	out.localID = ex.newLocalID()
	return out
}

func (ex *executor) startRoot() iter.Seq[*Context] {
	vertices := ex.adapter.ResolveStartingVertices(ex.q.RootName, ex.q.RootParameters)
	rootVid := ex.q.RootComponent.RootVid
	return mapSeq(vertices, func(v any) *Context {
		return newContext(ex.newLocalID(), v, rootVid)
	})
}

// runComponent applies the component's root-vertex checks and then
// its edges and folds in id order.
func (ex *executor) runComponent(component *ir.Component, ctxs iter.Seq[*Context]) iter.Seq[*Context] {
	ctxs = ex.performEntry(component, component.Vertices[component.RootVid], ctxs)
	for _, eid := range component.EdgeOrder() {
		if edge, ok := component.Edges[eid]; ok {
			ctxs = ex.expandEdge(component, edge, ctxs)
			continue
		}
		ctxs = ex.computeFold(component, component.Folds[eid], ctxs)
	}
	return ctxs
}

// performEntry runs a vertex's coercion and filters over contexts
// whose active vertex has just been bound there.
func (ex *executor) performEntry(component *ir.Component, vertex *ir.Vertex, ctxs iter.Seq[*Context]) iter.Seq[*Context] {
	if vertex.CoercedFromType != "" {
		ctxs = ex.coerceStage(vertex, ctxs)
	}
	for _, filter := range vertex.Filters {
		ctxs = ex.applyFilter(component, vertex, filter, ctxs)
	}
	return ctxs
}

func (ex *executor) coerceStage(vertex *ir.Vertex, ctxs iter.Seq[*Context]) iter.Seq[*Context] {
	pairs := ex.adapter.ResolveCoercion(ctxs, vertex.CoercedFromType, vertex.TypeName)
	return func(yield func(*Context) bool) {
		for ctx, ok := range pairs {
			if ctx.activeVertex == nil || ok {
				if !yield(ctx) {
					return
				}
				continue
			}
			if ex.optionalScope[vertex.Vid] {
				if !yield(ctx.suspendInto(vertex.Vid)) {
					return
				}
			}
			// Failed coercion outside an optional subtree discards
			// the context.
		}
	}
}

// applyFilter evaluates one filter over the stream. The right operand
// is resolved first (a variable constant, or a tagged value read off
// an earlier vertex); then the left field is resolved on the filter's
// own vertex and each context is kept or dropped.
func (ex *executor) applyFilter(component *ir.Component, vertex *ir.Vertex, filter ir.Filter, ctxs iter.Seq[*Context]) iter.Seq[*Context] {
	var variableOperand value.Value
	tagOperand, hasTag := filter.Right.(ir.ContextField)
	if v, ok := filter.Right.(ir.Variable); ok {
		variableOperand = ex.vars[v.Name]
	}
	if hasTag {
		ctxs = ex.computeContextField(component, tagOperand, ctxs)
	}

	local, ok := filter.Left.(ir.LocalField)
	if !ok {
		Abort(fmt.Errorf("vertex filter with non-local left operand %T", filter.Left))
	}
	pairs := ex.adapter.ResolveProperty(ctxs, vertex.TypeName, local.Name)

	return func(yield func(*Context) bool) {
		for ctx, left := range pairs {
			right := variableOperand
			if hasTag {
				right = ctx.takeValues(1)[0]
			}
			if ctx.activeVertex == nil {
				// Suspended-optional path: filters pass.
				if !yield(ctx) {
					return
				}
				continue
			}
			if hasTag && ex.tagSourceAbsent(component, tagOperand, ctx) {
				// The tag's optional source never existed; the value
				// is unknown and the row is kept.
				if !yield(ctx) {
					return
				}
				continue
			}
			if ex.evalOperator(filter.Op, left, right) {
				if !yield(ctx) {
					return
				}
			}
		}
	}
}

// tagSourceAbsent reports whether the tag's source vertex was never
// reached because an optional edge did not exist.
func (ex *executor) tagSourceAbsent(component *ir.Component, field ir.ContextField, ctx *Context) bool {
	if _, owned := component.Vertices[field.Vid]; owned {
		v, bound := ctx.vertices[field.Vid]
		return bound && v == nil
	}
	return ctx.importedTags[field.Key()].absent
}

// computeContextField pushes the value of a context field onto each
// context's value stack. Fields owned by the current component are
// read by parking the active vertex, moving to the field's vertex,
// and resolving the property; fields imported into a fold scope are
// read from the imported-tags record.
func (ex *executor) computeContextField(component *ir.Component, field ir.ContextField, ctxs iter.Seq[*Context]) iter.Seq[*Context] {
	vertex, owned := component.Vertices[field.Vid]
	if !owned {
		return mapSeq(ctxs, func(ctx *Context) *Context {
			tag, ok := ctx.importedTags[field.Key()]
			if !ok {
				Abort(fmt.Errorf("tag %s@%d was never imported into fold scope", field.FieldName, field.Vid))
			}
			ctx.pushValue(tag.value)
			return ctx
		})
	}

	moved := mapSeq(ctxs, func(ctx *Context) *Context {
		ctx.parkActive()
		ctx.activeVertex = ctx.vertices[field.Vid]
		return ctx
	})
	pairs := ex.adapter.ResolveProperty(moved, vertex.TypeName, field.FieldName)
	return func(yield func(*Context) bool) {
		for ctx, v := range pairs {
			ctx.pushValue(v)
			ctx.unparkActive()
			if !yield(ctx) {
				return
			}
		}
	}
}

// expandEdge traverses one linear edge: each input context expands
// into zero or more output contexts, one per neighbor.
func (ex *executor) expandEdge(component *ir.Component, edge *ir.Edge, ctxs iter.Seq[*Context]) iter.Seq[*Context] {
	if edge.Recursive != nil {
		expanded := ex.expandRecursiveEdge(component, edge, ctxs)
		return ex.performEntry(component, component.Vertices[edge.ToVid], expanded)
	}

	fromType := component.Vertices[edge.FromVid].TypeName
	activated := mapSeq(ctxs, func(ctx *Context) *Context {
		ctx.activeVertex = ctx.vertices[edge.FromVid]
		return ctx
	})
	pairs := ex.adapter.ResolveNeighbors(activated, fromType, edge.Name, edge.Parameters)

	expanded := func(yield func(*Context) bool) {
		for ctx, neighbors := range pairs {
			if ctx.activeVertex == nil {
				if !yield(ctx.suspendInto(edge.ToVid)) {
					return
				}
				continue
			}
			hadNeighbor := false
			for v := range neighbors {
				hadNeighbor = true
				if !yield(ex.child(ctx, edge.ToVid, v)) {
					return
				}
			}
			if !hadNeighbor {
				if edge.Optional {
					if !yield(ctx.suspendInto(edge.ToVid)) {
						return
					}
				}
				// A required edge with no neighbors discards the
				// context.
			}
		}
	}
	return ex.performEntry(component, component.Vertices[edge.ToVid], expanded)
}

// project reads each declared output in order and emits result rows.
func (ex *executor) project(component *ir.Component, ctxs iter.Seq[*Context]) iter.Seq[OutputRow] {
	for _, out := range component.Outputs {
		switch src := out.Source.(type) {
		case ir.ContextField:
			ctxs = ex.computeContextField(component, src, ctxs)
		case ir.FoldSpecificField:
			ctxs = mapSeq(ctxs, func(ctx *Context) *Context {
				count, ok := ctx.foldCounts[src.Eid]
				if !ok || count < 0 {
					ctx.pushValue(value.Null())
				} else {
					ctx.pushValue(value.Int64(int64(count)))
				}
				return ctx
			})
		case ir.FoldElements:
			ctxs = mapSeq(ctxs, func(ctx *Context) *Context {
				rows, ok := ctx.foldedRows[src.Eid]
				if !ok || rows == nil {
					ctx.pushValue(value.Null())
					return ctx
				}
				elems := make([]value.Value, 0, len(rows))
				for _, row := range rows {
					elems = append(elems, row[src.InnerName])
				}
				ctx.pushValue(value.List(elems))
				return ctx
			})
		default:
			Abort(fmt.Errorf("unhandled output source %T", out.Source))
		}
	}

	outputs := component.Outputs
	return mapSeq(ctxs, func(ctx *Context) OutputRow {
		values := ctx.takeValues(len(outputs))
		row := make(OutputRow, len(outputs))
		for i, out := range outputs {
			row[out.Name] = values[i]
		}
		return row
	})
}
