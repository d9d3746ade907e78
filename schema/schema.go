// Package schema parses and validates schema text and answers the
// type questions the rest of the engine asks: field and edge lookup,
// subtype closure, and reserved directive definitions.
package schema

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/loomhq/weft/value"
)

// Reserved directive names. Their declarations in the schema must
// match the fixed signatures checked by validateDirectives.
const (
	FilterDirective    = "filter"
	TagDirective       = "tag"
	OutputDirective    = "output"
	OptionalDirective  = "optional"
	RecurseDirective   = "recurse"
	FoldDirective      = "fold"
	TransformDirective = "transform"
)

// TypenameField is the implicit property present on every vertex type.
const TypenameField = "__typename"

var (
	// ErrParse indicates the schema text was malformed or internally
	// inconsistent (undefined type references included).
	ErrParse = errors.New("malformed schema")
	// ErrInvalidDirectiveDefinition indicates a reserved directive was
	// missing or declared with the wrong signature.
	ErrInvalidDirectiveDefinition = errors.New("invalid reserved directive definition")
	// ErrImplementsCycle indicates a cycle in the implements relation.
	ErrImplementsCycle = errors.New("implements cycle")
	// ErrIncompatibleNarrowing indicates an implementing type changed
	// an interface edge's parameter list incompatibly.
	ErrIncompatibleNarrowing = errors.New("incompatible interface narrowing")
	// ErrRootTypeProperty indicates the root type declared a property.
	ErrRootTypeProperty = errors.New("root type must declare only edges")
)

// Schema is an immutable, validated schema. It is safe to share
// across queries and goroutines.
type Schema struct {
	ast      *ast.Schema
	subtypes map[string]map[string]bool
}

// Parse parses and validates schema text.
func Parse(text string) (*Schema, error) {
	parsed, err := gqlparser.LoadSchema(&ast.Source{Name: "schema", Input: text})
	if err != nil {
		// The loader checks interface implementations itself ("For T to
		// implement I ..."); those failures are incompatible narrowing.
		if strings.Contains(err.Error(), " to implement ") {
			return nil, fmt.Errorf("%w: %v", ErrIncompatibleNarrowing, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if parsed.Query == nil {
		return nil, fmt.Errorf("%w: schema declares no query root type", ErrParse)
	}

	s := &Schema{ast: parsed}
	if err := s.validateDirectives(); err != nil {
		return nil, err
	}
	if err := s.computeSubtypes(); err != nil {
		return nil, err
	}
	if err := s.validateRootType(); err != nil {
		return nil, err
	}
	if err := s.validateInterfaceNarrowing(); err != nil {
		return nil, err
	}
	return s, nil
}

// QueryTypeName returns the name of the root type whose edges are the
// query entry points.
func (s *Schema) QueryTypeName() string { return s.ast.Query.Name }

// QueryType returns the root type.
func (s *Schema) QueryType() *Type { return &Type{schema: s, def: s.ast.Query} }

// EntryPoint resolves a root edge by name.
func (s *Schema) EntryPoint(name string) (*Field, bool) {
	return s.QueryType().Field(name)
}

// VertexType resolves a named vertex type: an object, interface, or
// union other than the root type.
func (s *Schema) VertexType(name string) (*Type, bool) {
	def, ok := s.ast.Types[name]
	if !ok || def.BuiltIn || def.Name == s.ast.Query.Name {
		return nil, false
	}
	switch def.Kind {
	case ast.Object, ast.Interface, ast.Union:
		return &Type{schema: s, def: def}, true
	default:
		return nil, false
	}
}

// IsVertexTypeName reports whether name names a vertex type.
func (s *Schema) IsVertexTypeName(name string) bool {
	_, ok := s.VertexType(name)
	return ok
}

// SubtypesOf returns the reflexive-transitive subtype set of name in
// sorted order, or nil if name is not a vertex type.
func (s *Schema) SubtypesOf(name string) []string {
	set, ok := s.subtypes[name]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for sub := range set {
		out = append(out, sub)
	}
	sort.Strings(out)
	return out
}

// IsSubtypeOf reports whether sub is a (reflexive, transitive)
// subtype of super.
func (s *Schema) IsSubtypeOf(sub, super string) bool {
	return s.subtypes[super][sub]
}

// Type is a vertex type (or the root type) within a Schema.
type Type struct {
	schema *Schema
	def    *ast.Definition
}

// Name returns the type's name.
func (t *Type) Name() string { return t.def.Name }

// IsInterface reports whether the type is an interface.
func (t *Type) IsInterface() bool { return t.def.Kind == ast.Interface }

// IsUnion reports whether the type is a union.
func (t *Type) IsUnion() bool { return t.def.Kind == ast.Union }

// IsObject reports whether the type is a concrete object type.
func (t *Type) IsObject() bool { return t.def.Kind == ast.Object }

// Field resolves a declared field. The implicit __typename property
// resolves on every vertex type. Union types have no declared fields.
func (t *Type) Field(name string) (*Field, bool) {
	if name == TypenameField && t.def.Name != t.schema.ast.Query.Name {
		return &Field{
			schema: t.schema,
			owner:  t,
			def: &ast.FieldDefinition{
				Name: TypenameField,
				Type: ast.NonNullNamedType("String", nil),
			},
		}, true
	}
	def := t.def.Fields.ForName(name)
	if def == nil {
		return nil, false
	}
	return &Field{schema: t.schema, owner: t, def: def}, true
}

// Field is a property or edge declared on a type.
type Field struct {
	schema *Schema
	owner  *Type
	def    *ast.FieldDefinition
}

// Name returns the field name.
func (f *Field) Name() string { return f.def.Name }

// Type returns the field's declared type expression.
func (f *Field) Type() *TypeRef { return typeRefFromAST(f.def.Type) }

// IsEdge reports whether the field points at vertex types rather than
// scalars; such fields are edges and support sub-selections.
func (f *Field) IsEdge() bool {
	base := f.def.Type
	for base.Elem != nil {
		base = base.Elem
	}
	def, ok := f.schema.ast.Types[base.NamedType]
	if !ok {
		return false
	}
	switch def.Kind {
	case ast.Object, ast.Interface, ast.Union:
		return true
	default:
		return false
	}
}

// IsProperty reports whether the field carries a scalar or list-of-
// scalar value with no sub-selection.
func (f *Field) IsProperty() bool { return !f.IsEdge() }

// Parameter describes one declared edge parameter.
type Parameter struct {
	Name       string
	Type       *TypeRef
	Default    value.Value
	HasDefault bool
}

// Parameters returns the edge's declared parameters in declaration
// order.
func (f *Field) Parameters() []*Parameter {
	params := make([]*Parameter, 0, len(f.def.Arguments))
	for _, arg := range f.def.Arguments {
		p := &Parameter{Name: arg.Name, Type: typeRefFromAST(arg.Type)}
		if arg.DefaultValue != nil {
			v, err := constValueFromAST(arg.DefaultValue)
			if err == nil {
				p.Default = v
				p.HasDefault = true
			}
		}
		params = append(params, p)
	}
	return params
}

// Parameter resolves a declared parameter by name.
func (f *Field) Parameter(name string) (*Parameter, bool) {
	for _, p := range f.Parameters() {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// constValueFromAST converts a constant (variable-free) ast value.
func constValueFromAST(v *ast.Value) (value.Value, error) {
	switch v.Kind {
	case ast.NullValue:
		return value.Null(), nil
	case ast.IntValue:
		if i, err := strconv.ParseInt(v.Raw, 10, 64); err == nil {
			return value.Int64(i), nil
		}
		if u, err := strconv.ParseUint(v.Raw, 10, 64); err == nil {
			return value.Uint64(u), nil
		}
		return value.Null(), fmt.Errorf("schema: integer literal %q out of range", v.Raw)
	case ast.FloatValue:
		f, err := strconv.ParseFloat(v.Raw, 64)
		if err != nil {
			return value.Null(), fmt.Errorf("schema: invalid float literal %q", v.Raw)
		}
		return value.Float64(f), nil
	case ast.StringValue, ast.BlockValue:
		return value.String(v.Raw), nil
	case ast.BooleanValue:
		return value.Bool(v.Raw == "true"), nil
	case ast.ListValue:
		list := make([]value.Value, 0, len(v.Children))
		for _, child := range v.Children {
			elem, err := constValueFromAST(child.Value)
			if err != nil {
				return value.Null(), err
			}
			list = append(list, elem)
		}
		return value.List(list), nil
	default:
		return value.Null(), fmt.Errorf("schema: unsupported constant kind %v", v.Kind)
	}
}

func (s *Schema) computeSubtypes() error {
	// parents[T] lists the types T is directly a subtype of.
	parents := make(map[string][]string)
	for name, def := range s.ast.Types {
		if def.BuiltIn || name == s.ast.Query.Name {
			continue
		}
		switch def.Kind {
		case ast.Object, ast.Interface:
			parents[name] = append(parents[name], def.Interfaces...)
		case ast.Union:
			for _, member := range def.Types {
				parents[member] = append(parents[member], name)
			}
			if _, ok := parents[name]; !ok {
				parents[name] = nil
			}
		}
	}

	// Cycle check over the implements relation.
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int)
	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case visiting:
			return fmt.Errorf("%w: involving type %q", ErrImplementsCycle, name)
		case done:
			return nil
		}
		state[name] = visiting
		for _, parent := range parents[name] {
			if err := visit(parent); err != nil {
				return err
			}
		}
		state[name] = done
		return nil
	}
	names := make([]string, 0, len(parents))
	for name := range parents {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := visit(name); err != nil {
			return err
		}
	}

	// Every type is its own subtype; propagate transitively upward.
	s.subtypes = make(map[string]map[string]bool)
	add := func(super, sub string) {
		set, ok := s.subtypes[super]
		if !ok {
			set = make(map[string]bool)
			s.subtypes[super] = set
		}
		set[sub] = true
	}
	var ancestors func(name string, seen map[string]bool)
	ancestors = func(name string, seen map[string]bool) {
		if seen[name] {
			return
		}
		seen[name] = true
		for _, parent := range parents[name] {
			ancestors(parent, seen)
		}
	}
	for _, name := range names {
		seen := make(map[string]bool)
		ancestors(name, seen)
		for super := range seen {
			add(super, name)
		}
	}
	return nil
}

func (s *Schema) validateRootType() error {
	for _, field := range s.ast.Query.Fields {
		f := &Field{schema: s, owner: s.QueryType(), def: field}
		if !f.IsEdge() {
			return fmt.Errorf("%w: field %q on %q is a property",
				ErrRootTypeProperty, field.Name, s.ast.Query.Name)
		}
	}
	return nil
}

// validateInterfaceNarrowing checks that each implementing type keeps
// every interface edge's parameters: same names, equal types, and
// equal defaults. Extra parameters on the implementor must be nullable
// or defaulted.
func (s *Schema) validateInterfaceNarrowing() error {
	for name, def := range s.ast.Types {
		if def.BuiltIn || (def.Kind != ast.Object && def.Kind != ast.Interface) {
			continue
		}
		for _, ifaceName := range def.Interfaces {
			iface, ok := s.ast.Types[ifaceName]
			if !ok {
				return fmt.Errorf("%w: type %q implements undefined %q", ErrParse, name, ifaceName)
			}
			for _, ifaceField := range iface.Fields {
				implField := def.Fields.ForName(ifaceField.Name)
				if implField == nil {
					return fmt.Errorf("%w: type %q is missing field %q of interface %q",
						ErrIncompatibleNarrowing, name, ifaceField.Name, ifaceName)
				}
				if err := s.checkParameterCompatibility(name, ifaceName, ifaceField, implField); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (s *Schema) checkParameterCompatibility(typeName, ifaceName string, ifaceField, implField *ast.FieldDefinition) error {
	for _, ifaceArg := range ifaceField.Arguments {
		implArg := implField.Arguments.ForName(ifaceArg.Name)
		if implArg == nil {
			return fmt.Errorf("%w: %s.%s drops parameter %q of %s.%s",
				ErrIncompatibleNarrowing, typeName, implField.Name, ifaceArg.Name, ifaceName, ifaceField.Name)
		}
		if !typeRefFromAST(implArg.Type).Equal(typeRefFromAST(ifaceArg.Type)) {
			return fmt.Errorf("%w: %s.%s(%s) has type %s, interface declares %s",
				ErrIncompatibleNarrowing, typeName, implField.Name, ifaceArg.Name,
				typeRefFromAST(implArg.Type), typeRefFromAST(ifaceArg.Type))
		}
		if !defaultsEqual(ifaceArg.DefaultValue, implArg.DefaultValue) {
			return fmt.Errorf("%w: %s.%s(%s) changes the default value declared by %s.%s",
				ErrIncompatibleNarrowing, typeName, implField.Name, ifaceArg.Name, ifaceName, ifaceField.Name)
		}
	}
	for _, implArg := range implField.Arguments {
		if ifaceField.Arguments.ForName(implArg.Name) != nil {
			continue
		}
		if implArg.Type.NonNull && implArg.DefaultValue == nil {
			return fmt.Errorf("%w: %s.%s adds required parameter %q not present on %s.%s",
				ErrIncompatibleNarrowing, typeName, implField.Name, implArg.Name, ifaceName, ifaceField.Name)
		}
	}
	return nil
}

func defaultsEqual(a, b *ast.Value) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	if a == nil {
		return true
	}
	av, aerr := constValueFromAST(a)
	bv, berr := constValueFromAST(b)
	if aerr != nil || berr != nil {
		return aerr == nil && berr == nil
	}
	return value.Equal(av, bv)
}
