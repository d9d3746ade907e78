package interpreter

import (
	"iter"

	"github.com/loomhq/weft/ir"
)

// expandRecursiveEdge expands an @recurse edge: for depth k the
// output is the union of the 0-hop (the originating vertex, coerced
// to the destination type if needed) through the k-hop, level by
// level. Duplicates are not removed; the adapter's neighbor
// enumeration defines identity.
//
// When the 0-hop coercion fails and no deeper hop produces a row
// either, the input context would otherwise vanish; inside an
// @optional subtree it is suspended into a None row instead, the same
// way coerceStage treats a failed coercion there.
//
// Each level is resolved as one batched adapter call, so the input
// stream is drained before the first output; this is the one pipeline
// stage that is not element-lazy.
func (ex *executor) expandRecursiveEdge(component *ir.Component, edge *ir.Edge, ctxs iter.Seq[*Context]) iter.Seq[*Context] {
	fromType := component.Vertices[edge.FromVid].TypeName
	destType := edgeDestinationType(component, edge.ToVid)

	return func(yield func(*Context) bool) {
		var inputs []*Context
		var produced []bool
		var frontier []*Context
		var origins []int // frontier[i] descends from inputs[origins[i]]
		for ctx := range ctxs {
			if ctx.activeVertex == nil {
				if !yield(ctx.suspendInto(edge.ToVid)) {
					return
				}
				continue
			}
			inputs = append(inputs, ctx)
			produced = append(produced, false)
			frontier = append(frontier, ex.child(ctx, edge.ToVid, ctx.vertices[edge.FromVid]))
			origins = append(origins, len(inputs)-1)
		}

		// 0-hop: the originating vertex, if it is of the destination
		// type.
		zeroHop, zeroOrigins := frontier, origins
		if fromType != destType && !ex.sch.IsSubtypeOf(fromType, destType) {
			zeroHop, zeroOrigins = ex.coercibleContexts(frontier, origins, fromType, destType)
		}
		for i, ctx := range zeroHop {
			produced[zeroOrigins[i]] = true
			if !yield(ctx.clone()) {
				return
			}
		}

		travType := fromType
		for depth := 1; depth <= edge.Recursive.Depth && len(frontier) > 0; depth++ {
			if depth > 1 {
				if coerceTo := edge.Recursive.CoerceTo; coerceTo != "" {
					frontier, origins = ex.coercibleContexts(frontier, origins, destType, coerceTo)
					travType = coerceTo
				} else {
					travType = destType
				}
			}
			var next []*Context
			var nextOrigins []int
			pairs := ex.adapter.ResolveNeighbors(sliceSeq(frontier), travType, edge.Name, edge.Parameters)
			i := 0
			for ctx, neighbors := range pairs {
				for v := range neighbors {
					next = append(next, ex.child(ctx, edge.ToVid, v))
					nextOrigins = append(nextOrigins, origins[i])
				}
				i++
			}
			for j, ctx := range next {
				produced[nextOrigins[j]] = true
				if !yield(ctx.clone()) {
					return
				}
			}
			frontier, origins = next, nextOrigins
		}

		// Inputs that produced nothing lost their 0-hop to a failed
		// coercion; inside an optional subtree they suspend instead
		// of disappearing.
		if ex.optionalScope[edge.ToVid] {
			for i, ctx := range inputs {
				if produced[i] {
					continue
				}
				if !yield(ctx.suspendInto(edge.ToVid)) {
					return
				}
			}
		}
	}
}

// edgeDestinationType is the type an edge's destination was declared
// with, before any coercion the query applies at that vertex.
func edgeDestinationType(component *ir.Component, toVid ir.Vid) string {
	dest := component.Vertices[toVid]
	if dest.CoercedFromType != "" {
		return dest.CoercedFromType
	}
	return dest.TypeName
}

// coercibleContexts keeps the contexts whose active vertex is of the
// target type, along with their origin indexes.
func (ex *executor) coercibleContexts(ctxs []*Context, origins []int, fromType, toType string) ([]*Context, []int) {
	if fromType == toType || ex.sch.IsSubtypeOf(fromType, toType) {
		return ctxs, origins
	}
	var kept []*Context
	var keptOrigins []int
	i := 0
	for ctx, ok := range ex.adapter.ResolveCoercion(sliceSeq(ctxs), fromType, toType) {
		if ok {
			kept = append(kept, ctx)
			keptOrigins = append(keptOrigins, origins[i])
		}
		i++
	}
	return kept, keptOrigins
}
