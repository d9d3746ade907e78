package interpreter

import (
	"iter"

	"github.com/loomhq/weft/ir"
	"github.com/loomhq/weft/value"
)

// computeFold materializes a folded sub-query per outer context: it
// seeds the fold's component from the outer vertex's neighbors, runs
// the component to completion, applies count post-filters, and
// attaches the folded rows and aggregates to the outer context.
func (ex *executor) computeFold(component *ir.Component, fold *ir.Fold, ctxs iter.Seq[*Context]) iter.Seq[*Context] {
	fromType := component.Vertices[fold.FromVid].TypeName

	if !fold.IsObserved() {
		// Nothing can ever read this fold's contents: no inner
		// outputs, no count output, no post-filters. Skip the
		// traversal entirely.
		return mapSeq(ctxs, func(ctx *Context) *Context {
			ctx.activeVertex = ctx.vertices[fold.FromVid]
			if ctx.activeVertex == nil {
				ctx.setFoldResult(fold.Eid, nil, -1)
			} else {
				ctx.setFoldResult(fold.Eid, []OutputRow{}, 0)
			}
			return ctx
		})
	}

	// Values the fold scope needs from the outer context are resolved
	// up front, batched across all outer contexts: tags imported into
	// the fold, then tag operands of the post-filters.
	for _, tag := range fold.ImportedTags {
		ctxs = ex.importTag(component, tag, ctxs)
	}
	postTagCount := 0
	for _, pf := range fold.PostFilters {
		if cf, ok := pf.Right.(ir.ContextField); ok {
			postTagCount++
			ctxs = ex.computeContextField(component, cf, ctxs)
		}
	}

	activated := mapSeq(ctxs, func(ctx *Context) *Context {
		ctx.activeVertex = ctx.vertices[fold.FromVid]
		return ctx
	})

	if fold.Recursive != nil {
		return func(yield func(*Context) bool) {
			for ctx := range activated {
				var seeds []any
				if ctx.activeVertex != nil {
					seeds = ex.recursiveFoldVertices(component, fold, ctx)
				}
				if !ex.processFoldContext(component, fold, ctx, seeds, postTagCount, yield) {
					return
				}
			}
		}
	}

	pairs := ex.adapter.ResolveNeighbors(activated, fromType, fold.Name, fold.Parameters)
	return func(yield func(*Context) bool) {
		for ctx, neighbors := range pairs {
			var seeds []any
			if ctx.activeVertex != nil {
				for v := range neighbors {
					seeds = append(seeds, v)
				}
			}
			if !ex.processFoldContext(component, fold, ctx, seeds, postTagCount, yield) {
				return
			}
		}
	}
}

// processFoldContext folds one outer context. It returns false only
// when the downstream consumer stopped; a dropped context returns
// true so the outer loop continues.
func (ex *executor) processFoldContext(component *ir.Component, fold *ir.Fold, ctx *Context, seeds []any, postTagCount int, yield func(*Context) bool) bool {
	var postTagValues []value.Value
	if postTagCount > 0 {
		postTagValues = ctx.takeValues(postTagCount)
	}

	if ctx.activeVertex == nil {
		// Suspended outer contexts re-emerge with null-valued fold
		// outputs.
		ctx.setFoldResult(fold.Eid, nil, -1)
		return yield(ctx)
	}

	innerStart := make([]*Context, 0, len(seeds))
	for _, v := range seeds {
		inner := newContext(ex.newLocalID(), v, fold.ToVid)
		for _, tag := range fold.ImportedTags {
			inner.setImportedTag(tag.Key(), ctx.importedTags[tag.Key()])
		}
		innerStart = append(innerStart, inner)
	}

	finalInner := collect(ex.runComponent(fold.Component, sliceSeq(innerStart)))
	count := len(finalInner)

	tagIdx := 0
	for _, pf := range fold.PostFilters {
		var right value.Value
		skip := false
		switch r := pf.Right.(type) {
		case ir.Variable:
			right = ex.vars[r.Name]
		case ir.ContextField:
			right = postTagValues[tagIdx]
			tagIdx++
			if ex.tagSourceAbsent(component, r, ctx) {
				skip = true
			}
		case nil:
		}
		if skip {
			continue
		}
		if !ex.evalOperator(pf.Op, value.Int64(int64(count)), right) {
			return true // drop the outer context
		}
	}

	// rows stays non-nil even when the fold is empty: a nil result is
	// what marks a fold under an absent optional edge.
	rows := []OutputRow{}
	if len(fold.Component.Outputs) > 0 {
		rows = append(rows, collect(ex.project(fold.Component, sliceSeq(finalInner)))...)
	}
	ctx.setFoldResult(fold.Eid, rows, count)
	return yield(ctx)
}

// importTag records a tagged outer value on each context so the fold
// scope can read it. Tags whose source lies in an enclosing component
// were already imported when this component's own seeds were built.
func (ex *executor) importTag(component *ir.Component, field ir.ContextField, ctxs iter.Seq[*Context]) iter.Seq[*Context] {
	if _, owned := component.Vertices[field.Vid]; !owned {
		return ctxs
	}
	staged := ex.computeContextField(component, field, ctxs)
	return mapSeq(staged, func(ctx *Context) *Context {
		v := ctx.takeValues(1)[0]
		bound, ok := ctx.vertices[field.Vid]
		ctx.setImportedTag(field.Key(), importedTag{
			value:  v,
			absent: ok && bound == nil,
		})
		return ctx
	})
}

// recursiveFoldVertices enumerates the 0..depth-hop vertices of a
// @fold @recurse edge for a single outer context.
func (ex *executor) recursiveFoldVertices(component *ir.Component, fold *ir.Fold, outer *Context) []any {
	rec := fold.Recursive
	fromType := component.Vertices[fold.FromVid].TypeName
	destType := edgeDestinationType(fold.Component, fold.ToVid)
	origin := outer.vertices[fold.FromVid]

	var results []any
	include := true
	if fromType != destType && !ex.sch.IsSubtypeOf(fromType, destType) {
		include = len(ex.coercibleVertices([]any{origin}, fromType, destType)) > 0
	}
	if include {
		results = append(results, origin)
	}

	frontier := []any{origin}
	travType := fromType
	for depth := 1; depth <= rec.Depth && len(frontier) > 0; depth++ {
		if depth > 1 {
			if rec.CoerceTo != "" {
				frontier = ex.coercibleVertices(frontier, destType, rec.CoerceTo)
				travType = rec.CoerceTo
			} else {
				travType = destType
			}
		}
		probes := make([]*Context, 0, len(frontier))
		for _, v := range frontier {
			probes = append(probes, newContext(ex.newLocalID(), v, fold.ToVid))
		}
		var next []any
		for _, neighbors := range ex.adapter.ResolveNeighbors(sliceSeq(probes), travType, fold.Name, fold.Parameters) {
			for v := range neighbors {
				next = append(next, v)
			}
		}
		results = append(results, next...)
		frontier = next
	}
	return results
}

// coercibleVertices keeps the vertices that are of the target type.
func (ex *executor) coercibleVertices(vertices []any, fromType, toType string) []any {
	if fromType == toType || ex.sch.IsSubtypeOf(fromType, toType) {
		return vertices
	}
	probes := make([]*Context, 0, len(vertices))
	for _, v := range vertices {
		probes = append(probes, newContext(ex.newLocalID(), v, 0))
	}
	var out []any
	for ctx, ok := range ex.adapter.ResolveCoercion(sliceSeq(probes), fromType, toType) {
		if ok {
			out = append(out, ctx.activeVertex)
		}
	}
	return out
}
