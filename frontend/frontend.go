// Package frontend type-checks a parse tree against a schema and
// lowers it to the canonical IR. Vertex and edge identifiers are
// assigned in depth-first entry order; the same (schema, query) pair
// always lowers to an identical IR.
package frontend

import (
	"fmt"

	"github.com/loomhq/weft/ir"
	"github.com/loomhq/weft/query"
	"github.com/loomhq/weft/schema"
	"github.com/loomhq/weft/value"
)

// CompiledQuery is the frontend's result: the IR plus the ordered
// output schema.
type CompiledQuery struct {
	IR      *ir.Query
	Outputs []OutputColumn
}

// OutputColumn describes one declared output, in declaration order.
type OutputColumn struct {
	Name string
	Type *schema.TypeRef
}

// Compile type-checks q against sch and lowers it.
func Compile(sch *schema.Schema, q *query.Query) (*CompiledQuery, error) {
	l := &lowering{
		sch:          sch,
		variables:    make(map[string]*schema.TypeRef),
		tags:         make(map[string]*tagInfo),
		declaredTags: make(map[string]bool),
		outputNames:  make(map[string]bool),
	}

	root := q.Root
	entry, ok := sch.EntryPoint(root.Name)
	if !ok {
		return nil, fmt.Errorf("%w: no entry point %q on %q", ErrUnknownField, root.Name, sch.QueryTypeName())
	}
	if root.Optional || root.Fold || root.Recurse != nil || root.Transform != nil ||
		root.Output != nil || root.Tag != nil || len(root.Filters) > 0 {
		return nil, fmt.Errorf("%w: directives are not allowed on the root edge", ErrInvalidQuery)
	}
	if root.SelectionSet == nil {
		return nil, fmt.Errorf("%w: root edge %q must have selections", ErrInvalidQuery, root.Name)
	}

	params, err := l.resolveEdgeParameters(root.Name, root.Arguments, entry.Parameters())
	if err != nil {
		return nil, err
	}

	l.collectTagNames(root)

	cs := newComponentState(nil, nil)
	prefix := ""
	if root.Alias != "" {
		prefix = root.Alias
	}
	if _, err := l.lowerVertex(cs, entry.Type().BaseName(), root.SelectionSet, false, prefix); err != nil {
		return nil, err
	}
	if len(cs.component.Outputs) == 0 {
		return nil, fmt.Errorf("%w: query produces no outputs", ErrInvalidQuery)
	}

	columns := make([]OutputColumn, 0, len(cs.component.Outputs))
	for _, out := range cs.component.Outputs {
		columns = append(columns, OutputColumn{Name: out.Name, Type: cs.outputTypes[out.Name]})
	}

	return &CompiledQuery{
		IR: &ir.Query{
			RootName:       root.Name,
			RootParameters: params,
			RootComponent:  cs.component,
			Variables:      l.variables,
		},
		Outputs: columns,
	}, nil
}

type lowering struct {
	sch     *schema.Schema
	nextVid ir.Vid
	nextEid ir.Eid

	variables    map[string]*schema.TypeRef
	tags         map[string]*tagInfo
	declaredTags map[string]bool
	outputNames  map[string]bool
}

type tagInfo struct {
	field     ir.ContextField
	component *componentState
}

type componentState struct {
	component   *ir.Component
	parent      *componentState
	fold        *ir.Fold // fold connecting this component to parent
	outputTypes map[string]*schema.TypeRef
}

func newComponentState(parent *componentState, fold *ir.Fold) *componentState {
	return &componentState{
		component: &ir.Component{
			Vertices: make(map[ir.Vid]*ir.Vertex),
			Edges:    make(map[ir.Eid]*ir.Edge),
			Folds:    make(map[ir.Eid]*ir.Fold),
		},
		parent:      parent,
		fold:        fold,
		outputTypes: make(map[string]*schema.TypeRef),
	}
}

func (l *lowering) allocVid() ir.Vid {
	l.nextVid++
	return l.nextVid
}

func (l *lowering) allocEid() ir.Eid {
	l.nextEid++
	return l.nextEid
}

// collectTagNames records every tag name defined anywhere in the
// query, so a reference to a tag defined further right can be
// distinguished from a reference to a tag that never exists.
func (l *lowering) collectTagNames(field *query.Field) {
	if field.Tag != nil {
		name := field.Tag.Name
		if name == "" {
			name = field.Alias
		}
		if name == "" {
			name = field.Name
		}
		l.declaredTags[name] = true
	}
	if field.SelectionSet != nil {
		l.collectTagNamesInSet(field.SelectionSet)
	}
}

func (l *lowering) collectTagNamesInSet(set *query.SelectionSet) {
	for _, f := range set.Fields {
		l.collectTagNames(f)
	}
	for _, frag := range set.Fragments {
		l.collectTagNamesInSet(frag.SelectionSet)
	}
}

// lowerVertex enters a vertex scope: it resolves any leading type
// coercions, allocates the Vid, and processes the scope's properties
// and edges in source order.
func (l *lowering) lowerVertex(cs *componentState, declaredType string, set *query.SelectionSet, inOptional bool, prefix string) (ir.Vid, error) {
	effective := declaredType
	coercedFrom := ""
	var coercionFilters []*query.Filter
	for len(set.Fragments) > 0 {
		if len(set.Fields) != 0 || len(set.Fragments) != 1 {
			return 0, fmt.Errorf("%w: a type coercion must be the only selection in its scope", ErrInvalidTypeCoercion)
		}
		frag := set.Fragments[0]
		if !l.sch.IsVertexTypeName(frag.On) {
			return 0, fmt.Errorf("%w: %q", ErrUnknownType, frag.On)
		}
		if !l.sch.IsSubtypeOf(frag.On, effective) {
			return 0, fmt.Errorf("%w: %q is not a subtype of %q", ErrInvalidTypeCoercion, frag.On, effective)
		}
		if frag.On != effective {
			coercedFrom = effective
			effective = frag.On
		}
		coercionFilters = append(coercionFilters, frag.Filters...)
		set = frag.SelectionSet
	}

	vid := l.allocVid()
	vertex := &ir.Vertex{Vid: vid, TypeName: effective, CoercedFromType: coercedFrom}
	cs.component.Vertices[vid] = vertex
	if cs.component.RootVid == 0 {
		cs.component.RootVid = vid
	}

	typ, ok := l.sch.VertexType(effective)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownType, effective)
	}

	// Filters written on the coercion itself constrain the vertex's
	// reported __typename.
	typenameType := schema.NamedTypeRef("String", true)
	for _, f := range coercionFilters {
		lowered, err := l.lowerFilter(cs, ir.LocalField{Name: schema.TypenameField, Type: typenameType}, typenameType, f, nil)
		if err != nil {
			return 0, err
		}
		vertex.Filters = append(vertex.Filters, lowered)
	}

	for _, field := range set.Fields {
		fieldDef, ok := typ.Field(field.Name)
		if !ok {
			return 0, fmt.Errorf("%w: %q on type %q", ErrUnknownField, field.Name, effective)
		}
		if fieldDef.IsProperty() {
			if err := l.lowerProperty(cs, vertex, field, fieldDef, inOptional, prefix); err != nil {
				return 0, err
			}
		} else {
			if err := l.lowerEdge(cs, vertex, field, fieldDef, inOptional, prefix); err != nil {
				return 0, err
			}
		}
	}
	return vid, nil
}

func (l *lowering) lowerProperty(cs *componentState, vertex *ir.Vertex, field *query.Field, def *schema.Field, inOptional bool, prefix string) error {
	if field.SelectionSet != nil {
		return fmt.Errorf("%w: property %q must have no selections", ErrInvalidQuery, field.Name)
	}
	if len(field.Arguments) != 0 {
		return fmt.Errorf("%w: property %q takes no arguments", ErrInvalidQuery, field.Name)
	}
	if field.Optional || field.Fold || field.Recurse != nil || field.Transform != nil {
		return fmt.Errorf("%w: edge directives are not allowed on property %q", ErrInvalidQuery, field.Name)
	}

	propType := def.Type()

	if field.Tag != nil {
		name := field.Tag.Name
		if name == "" {
			name = field.Alias
		}
		if name == "" {
			name = field.Name
		}
		if _, exists := l.tags[name]; exists {
			return fmt.Errorf("%w: %q", ErrDuplicateTag, name)
		}
		l.tags[name] = &tagInfo{
			field:     ir.ContextField{Vid: vertex.Vid, FieldName: field.Name, FieldType: propType},
			component: cs,
		}
	}

	for _, f := range field.Filters {
		lowered, err := l.lowerFilter(cs, ir.LocalField{Name: field.Name, Type: propType}, propType, f, nil)
		if err != nil {
			return err
		}
		vertex.Filters = append(vertex.Filters, lowered)
	}

	if field.Output != nil {
		name := field.Output.Name
		if name == "" {
			name = prefix + field.Alias
			if field.Alias == "" {
				name = prefix + field.Name
			}
		}
		outType := propType
		if inOptional {
			outType = outType.AsNullable()
		}
		source := ir.ContextField{Vid: vertex.Vid, FieldName: field.Name, FieldType: propType}
		if err := l.addOutput(cs, name, source, outType); err != nil {
			return err
		}
	}
	return nil
}

func (l *lowering) lowerEdge(cs *componentState, vertex *ir.Vertex, field *query.Field, def *schema.Field, inOptional bool, prefix string) error {
	if field.Tag != nil {
		return fmt.Errorf("%w: @tag requires a property field", ErrInvalidQuery)
	}

	params, err := l.resolveEdgeParameters(field.Name, field.Arguments, def.Parameters())
	if err != nil {
		return err
	}
	recursive, err := l.recursionFor(field, vertex.TypeName, def)
	if err != nil {
		return err
	}

	if field.Fold {
		return l.lowerFold(cs, vertex, field, def, params, recursive, inOptional, prefix)
	}

	if field.Transform != nil {
		return fmt.Errorf("%w: @transform requires @fold", ErrInvalidQuery)
	}
	if field.Output != nil {
		return fmt.Errorf("%w: @output on edge %q requires @fold @transform", ErrInvalidQuery, field.Name)
	}
	if len(field.Filters) > 0 {
		return fmt.Errorf("%w: @filter cannot be applied to edge %q", ErrInvalidQuery, field.Name)
	}
	if field.SelectionSet == nil {
		return fmt.Errorf("%w: edge %q must have selections", ErrInvalidQuery, field.Name)
	}

	eid := l.allocEid()
	childPrefix := prefix + field.Alias
	toVid, err := l.lowerVertex(cs, def.Type().BaseName(), field.SelectionSet, inOptional || field.Optional, childPrefix)
	if err != nil {
		return err
	}
	cs.component.Edges[eid] = &ir.Edge{
		Eid:        eid,
		FromVid:    vertex.Vid,
		ToVid:      toVid,
		Name:       field.Name,
		Parameters: params,
		Optional:   field.Optional,
		Recursive:  recursive,
	}
	return nil
}

func (l *lowering) lowerFold(cs *componentState, vertex *ir.Vertex, field *query.Field, def *schema.Field, params *ir.EdgeParameters, recursive *ir.Recursion, inOptional bool, prefix string) error {
	if field.Optional {
		return fmt.Errorf("%w: @optional cannot combine with @fold", ErrInvalidQuery)
	}

	eid := l.allocEid()
	fold := &ir.Fold{
		Eid:        eid,
		FromVid:    vertex.Vid,
		Name:       field.Name,
		Parameters: params,
		Recursive:  recursive,
	}
	innerCS := newComponentState(cs, fold)
	fold.Component = innerCS.component

	innerSet := field.SelectionSet
	if innerSet == nil {
		innerSet = &query.SelectionSet{}
	}
	innerPrefix := prefix + field.Alias
	toVid, err := l.lowerVertex(innerCS, def.Type().BaseName(), innerSet, false, innerPrefix)
	if err != nil {
		return err
	}
	fold.ToVid = toVid
	cs.component.Folds[eid] = fold

	countType := schema.NamedTypeRef("Int", true)
	if field.Transform != nil {
		if field.Transform.Op != "count" {
			return fmt.Errorf("%w: unsupported transform %q", ErrInvalidQuery, field.Transform.Op)
		}
		if field.Output != nil {
			name := field.Output.Name
			if name == "" {
				name = prefix + field.Alias
				if field.Alias == "" {
					name = prefix + field.Name
				}
			}
			fold.SpecificOutputs = append(fold.SpecificOutputs, ir.FoldSpecificOutput{
				Name: name,
				Kind: ir.FoldSpecificCount,
			})
			outType := countType
			if inOptional {
				outType = outType.AsNullable()
			}
			source := ir.FoldSpecificField{Eid: eid, Kind: ir.FoldSpecificCount}
			if err := l.addOutput(cs, name, source, outType); err != nil {
				return err
			}
		}
		for _, f := range field.Filters {
			lowered, err := l.lowerFilter(cs, ir.FoldCount{Eid: eid}, countType, f, innerCS)
			if err != nil {
				return err
			}
			fold.PostFilters = append(fold.PostFilters, lowered)
		}
	} else {
		if field.Output != nil {
			return fmt.Errorf("%w: @output on folded edge %q requires @transform", ErrInvalidQuery, field.Name)
		}
		if len(field.Filters) > 0 {
			return fmt.Errorf("%w: @filter on folded edge %q requires @transform", ErrInvalidQuery, field.Name)
		}
	}

	// Inner outputs become list-typed outputs of the enclosing
	// component, preserving their declaration order.
	for _, innerOut := range fold.Component.Outputs {
		outType := innerCS.outputTypes[innerOut.Name].ListOf()
		if inOptional {
			outType = outType.AsNullable()
		}
		l.propagateOutput(cs, innerOut.Name, ir.FoldElements{Eid: eid, InnerName: innerOut.Name}, outType)
	}
	return nil
}

func (l *lowering) addOutput(cs *componentState, name string, source ir.OutputSource, outType *schema.TypeRef) error {
	if l.outputNames[name] {
		return fmt.Errorf("%w: multiple outputs named %q", ErrInvalidQuery, name)
	}
	l.outputNames[name] = true
	l.propagateOutput(cs, name, source, outType)
	return nil
}

func (l *lowering) propagateOutput(cs *componentState, name string, source ir.OutputSource, outType *schema.TypeRef) {
	cs.component.Outputs = append(cs.component.Outputs, ir.Output{Name: name, Source: source})
	cs.outputTypes[name] = outType
}

// recursionFor checks that a @recurse edge can actually be traversed
// repeatedly, inserting a coercion when the edge is declared on a
// subtype of its own destination.
func (l *lowering) recursionFor(field *query.Field, fromTypeName string, def *schema.Field) (*ir.Recursion, error) {
	if field.Recurse == nil {
		return nil, nil
	}
	destBase := def.Type().BaseName()
	downcast := l.sch.IsSubtypeOf(destBase, fromTypeName)
	upcast := l.sch.IsSubtypeOf(fromTypeName, destBase)
	if !downcast && !upcast {
		return nil, fmt.Errorf("%w: edge %q goes from %q to unrelated type %q",
			ErrRecursionTypeMismatch, field.Name, fromTypeName, destBase)
	}

	coerceTo := ""
	destType, ok := l.sch.VertexType(destBase)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, destBase)
	}
	if f, found := destType.Field(field.Name); !found || !f.IsEdge() {
		// The destination type does not itself declare the edge;
		// continuing requires coercing each step back to the
		// declaring type.
		if !upcast {
			return nil, fmt.Errorf("%w: type %q does not declare edge %q",
				ErrRecursionTypeMismatch, destBase, field.Name)
		}
		coerceTo = fromTypeName
	}
	return &ir.Recursion{Depth: int(field.Recurse.Depth), CoerceTo: coerceTo}, nil
}

func (l *lowering) resolveEdgeParameters(edgeName string, args []*query.Argument, params []*schema.Parameter) (*ir.EdgeParameters, error) {
	values := make(map[string]value.Value, len(params))
	find := func(name string) *schema.Parameter {
		for _, p := range params {
			if p.Name == name {
				return p
			}
		}
		return nil
	}
	for _, arg := range args {
		param := find(arg.Name)
		if param == nil {
			return nil, fmt.Errorf("%w: edge %q has no parameter %q", ErrParameterMismatch, edgeName, arg.Name)
		}
		switch v := arg.Value.(type) {
		case query.Literal:
			if !schema.ValueConforms(v.Value, param.Type) {
				return nil, fmt.Errorf("%w: value %s for %s.%s does not conform to %s",
					ErrParameterMismatch, v.Value, edgeName, arg.Name, param.Type)
			}
			values[arg.Name] = v.Value
		case query.VariableRef:
			return nil, fmt.Errorf("%w: edge parameters must be literal values, got $%s for %s.%s",
				ErrParameterMismatch, v.Name, edgeName, arg.Name)
		default:
			return nil, fmt.Errorf("%w: unsupported argument for %s.%s", ErrParameterMismatch, edgeName, arg.Name)
		}
	}
	for _, param := range params {
		if _, ok := values[param.Name]; ok {
			continue
		}
		if param.HasDefault {
			values[param.Name] = param.Default
			continue
		}
		if param.Type.NonNull {
			return nil, fmt.Errorf("%w: %s.%s", ErrMissingRequiredEdgeParameter, edgeName, param.Name)
		}
		values[param.Name] = value.Null()
	}
	return ir.NewEdgeParameters(values), nil
}
