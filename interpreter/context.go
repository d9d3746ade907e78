package interpreter

import (
	"github.com/loomhq/weft/ir"
	"github.com/loomhq/weft/value"
)

// Context is the interpreter's unit of state threaded through adapter
// calls: the active vertex, the vertices bound at each prior vertex
// position, and the values accumulated along the way.
//
// Contexts are values: the engine clones them freely, and adapters
// must not rely on pointer identity across calls. The local id is the
// stable handle for correlating an adapter call's inputs with its
// outputs when the adapter batches internally.
type Context struct {
	localID      int
	activeVertex any
	vertices     map[ir.Vid]any

	// suspendedVertices is a stack of active vertices parked while
	// the engine temporarily moves the context elsewhere, e.g. to
	// read a tagged value off an earlier vertex.
	suspendedVertices []any

	// values accumulates property resolutions in stack discipline;
	// filters and output projection consume from the tail.
	values []value.Value

	importedTags map[ir.ContextFieldKey]importedTag

	foldedRows map[ir.Eid][]OutputRow
	foldCounts map[ir.Eid]int
}

// importedTag is a tag value carried into a fold scope. absent marks
// a tag whose source vertex was never bound (an optional path that
// did not exist); filters referencing it pass.
type importedTag struct {
	value  value.Value
	absent bool
}

func newContext(localID int, vertex any, vid ir.Vid) *Context {
	return &Context{
		localID:      localID,
		activeVertex: vertex,
		vertices:     map[ir.Vid]any{vid: vertex},
	}
}

// LocalID returns the context's stable identifier within one query
// execution.
func (c *Context) LocalID() int { return c.localID }

// ActiveVertex returns the vertex the context currently points at,
// or nil when the context is on a suspended path.
func (c *Context) ActiveVertex() any { return c.activeVertex }

// Vertex returns the vertex bound at vid, if any. A bound nil records
// a position that an absent optional edge never filled.
func (c *Context) Vertex(vid ir.Vid) (any, bool) {
	v, ok := c.vertices[vid]
	return v, ok
}

// clone copies the context. The copy shares no mutable state with the
// original.
func (c *Context) clone() *Context {
	out := &Context{
		localID:      c.localID,
		activeVertex: c.activeVertex,
		vertices:     make(map[ir.Vid]any, len(c.vertices)+1),
	}
	for vid, v := range c.vertices {
		out.vertices[vid] = v
	}
	if len(c.suspendedVertices) > 0 {
		out.suspendedVertices = append([]any(nil), c.suspendedVertices...)
	}
	if len(c.values) > 0 {
		out.values = append([]value.Value(nil), c.values...)
	}
	if len(c.importedTags) > 0 {
		out.importedTags = make(map[ir.ContextFieldKey]importedTag, len(c.importedTags))
		for k, v := range c.importedTags {
			out.importedTags[k] = v
		}
	}
	if len(c.foldedRows) > 0 {
		out.foldedRows = make(map[ir.Eid][]OutputRow, len(c.foldedRows))
		for k, v := range c.foldedRows {
			out.foldedRows[k] = v
		}
	}
	if len(c.foldCounts) > 0 {
		out.foldCounts = make(map[ir.Eid]int, len(c.foldCounts))
		for k, v := range c.foldCounts {
			out.foldCounts[k] = v
		}
	}
	return out
}

// cloneWithVertex clones the context, binds vertex at vid, and makes
// it active.
func (c *Context) cloneWithVertex(vid ir.Vid, vertex any) *Context {
	out := c.clone()
	out.activeVertex = vertex
	out.vertices[vid] = vertex
	return out
}

// suspendInto marks vid as unreachable and parks the context on the
// suspended path: the active vertex becomes nil and stays nil through
// downstream edges until output projection.
func (c *Context) suspendInto(vid ir.Vid) *Context {
	c.activeVertex = nil
	c.vertices[vid] = nil
	return c
}

// parkActive pushes the active vertex onto the suspended stack before
// the engine temporarily moves the context to another vertex.
func (c *Context) parkActive() {
	c.suspendedVertices = append(c.suspendedVertices, c.activeVertex)
}

// unparkActive restores the most recently parked active vertex.
func (c *Context) unparkActive() {
	n := len(c.suspendedVertices)
	c.activeVertex = c.suspendedVertices[n-1]
	c.suspendedVertices = c.suspendedVertices[:n-1]
}

func (c *Context) pushValue(v value.Value) {
	c.values = append(c.values, v)
}

// takeValues removes and returns the newest n accumulated values, in
// the order they were pushed.
func (c *Context) takeValues(n int) []value.Value {
	tail := c.values[len(c.values)-n:]
	out := append([]value.Value(nil), tail...)
	c.values = c.values[:len(c.values)-n]
	return out
}

func (c *Context) setFoldResult(eid ir.Eid, rows []OutputRow, count int) {
	if c.foldedRows == nil {
		c.foldedRows = make(map[ir.Eid][]OutputRow)
	}
	if c.foldCounts == nil {
		c.foldCounts = make(map[ir.Eid]int)
	}
	c.foldedRows[eid] = rows
	c.foldCounts[eid] = count
}

func (c *Context) setImportedTag(key ir.ContextFieldKey, tag importedTag) {
	if c.importedTags == nil {
		c.importedTags = make(map[ir.ContextFieldKey]importedTag)
	}
	c.importedTags[key] = tag
}
