// Package ir defines the canonical intermediate representation the
// frontend emits and the interpreter executes: components, vertices,
// edges, folds, filters, outputs, and recursion. The IR is immutable
// once built, serializable, and safe to share across queries.
package ir

import (
	"sort"

	"github.com/loomhq/weft/schema"
)

// Vid is a dense, query-scoped vertex identifier assigned in a
// deterministic depth-first traversal order, starting at 1.
type Vid int

// Eid is a dense, query-scoped edge identifier covering both linear
// edges and folds, assigned in entry order, starting at 1.
type Eid int

// Query is a lowered query: the root edge taken at the top level, its
// parameters, the root component, and the inferred variable types.
type Query struct {
	RootName       string
	RootParameters *EdgeParameters
	RootComponent  *Component
	Variables      map[string]*schema.TypeRef
}

// Component is a rooted tree-with-back-references of vertices
// connected by edges and folds, together with its ordered outputs.
type Component struct {
	RootVid  Vid
	Vertices map[Vid]*Vertex
	Edges    map[Eid]*Edge
	Folds    map[Eid]*Fold
	Outputs  []Output
}

// EdgeOrder returns the component's edge and fold ids in execution
// order.
func (c *Component) EdgeOrder() []Eid {
	out := make([]Eid, 0, len(c.Edges)+len(c.Folds))
	for eid := range c.Edges {
		out = append(out, eid)
	}
	for eid := range c.Folds {
		out = append(out, eid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// VidOrder returns the component's vertex ids in ascending order.
func (c *Component) VidOrder() []Vid {
	out := make([]Vid, 0, len(c.Vertices))
	for vid := range c.Vertices {
		out = append(out, vid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Vertex is one queried vertex position. The effective type is
// TypeName; if CoercedFromType is non-empty, the position was reached
// as that supertype and narrowed by a type coercion.
type Vertex struct {
	Vid             Vid
	TypeName        string
	CoercedFromType string // "" when no coercion applies
	Filters         []Filter
}

// Edge is a linear (non-folded) traversal between two vertices.
// Parameters are complete: every schema-declared default is filled in.
type Edge struct {
	Eid        Eid
	FromVid    Vid
	ToVid      Vid
	Name       string
	Parameters *EdgeParameters
	Optional   bool
	Recursive  *Recursion // nil unless @recurse applies
}

// Recursion describes bounded repeated expansion of an edge.
type Recursion struct {
	// Depth is the maximum number of hops, at least 1.
	Depth int
	// CoerceTo names the type each intermediate vertex must be
	// coerced to before the edge can be traversed again; empty when
	// no coercion is needed.
	CoerceTo string
}

// Fold is a folded sub-query: its traversal, the nested component,
// aggregations over it, filters over those aggregates, and any tags
// imported from the enclosing component.
type Fold struct {
	Eid             Eid
	FromVid         Vid
	ToVid           Vid
	Name            string
	Parameters      *EdgeParameters
	Component       *Component
	SpecificOutputs []FoldSpecificOutput
	PostFilters     []Filter
	ImportedTags    []ContextField
	Recursive       *Recursion
}

// IsObserved reports whether anything about the fold's contents can
// be observed: inner outputs, fold-specific outputs, or post-filters.
// An unobserved fold need not be computed at all.
func (f *Fold) IsObserved() bool {
	return len(f.Component.Outputs) > 0 || len(f.SpecificOutputs) > 0 || len(f.PostFilters) > 0
}

// FoldSpecificKind enumerates aggregations over a fold.
type FoldSpecificKind int

const (
	// FoldSpecificCount is the number of rows the fold produced.
	FoldSpecificCount FoldSpecificKind = iota
)

func (k FoldSpecificKind) String() string {
	switch k {
	case FoldSpecificCount:
		return "count"
	default:
		return "unknown"
	}
}

// FoldSpecificOutput is one named aggregation output of a fold.
type FoldSpecificOutput struct {
	Name string
	Kind FoldSpecificKind
}

// Output is one declared output column of a component.
type Output struct {
	Name   string
	Source OutputSource
}

// OutputSource is where an output's value comes from: a field on a
// context vertex, a fold aggregate, or the elements of a fold-inner
// output.
type OutputSource interface {
	// isOutputSource() is a no-op used to tag the known values of
	// OutputSource.
	isOutputSource()
}

// ContextField reads a property from the vertex bound at Vid. It
// serves both as an output source and as a filter argument (a tag).
type ContextField struct {
	Vid       Vid
	FieldName string
	FieldType *schema.TypeRef
}

// FoldSpecificField reads an aggregate of the fold at Eid.
type FoldSpecificField struct {
	Eid  Eid
	Kind FoldSpecificKind
}

// FoldElements reads the list of values a fold-inner output named
// InnerName produced, one list per outer row.
type FoldElements struct {
	Eid       Eid
	InnerName string
}

func (ContextField) isOutputSource()      {}
func (FoldSpecificField) isOutputSource() {}
func (FoldElements) isOutputSource()      {}

// Key identifies the context field irrespective of its type, for use
// as a map key.
func (f ContextField) Key() ContextFieldKey {
	return ContextFieldKey{Vid: f.Vid, FieldName: f.FieldName}
}

// ContextFieldKey is a comparable identifier for a ContextField.
type ContextFieldKey struct {
	Vid       Vid
	FieldName string
}
