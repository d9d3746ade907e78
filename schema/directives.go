package schema

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
)

// directiveSignature is the fixed shape a reserved directive's
// declaration must have.
type directiveSignature struct {
	arguments  []directiveArgument
	locations  []ast.DirectiveLocation
	repeatable bool
}

type directiveArgument struct {
	name     string
	typeName string
}

var reservedDirectives = map[string]directiveSignature{
	FilterDirective: {
		arguments: []directiveArgument{
			{name: "op", typeName: "String!"},
			{name: "value", typeName: "[String!]"},
		},
		locations:  []ast.DirectiveLocation{ast.LocationField, ast.LocationInlineFragment},
		repeatable: true,
	},
	TagDirective: {
		arguments: []directiveArgument{{name: "name", typeName: "String"}},
		locations: []ast.DirectiveLocation{ast.LocationField},
	},
	OutputDirective: {
		arguments: []directiveArgument{{name: "name", typeName: "String"}},
		locations: []ast.DirectiveLocation{ast.LocationField},
	},
	OptionalDirective: {
		locations: []ast.DirectiveLocation{ast.LocationField},
	},
	RecurseDirective: {
		arguments: []directiveArgument{{name: "depth", typeName: "Int!"}},
		locations: []ast.DirectiveLocation{ast.LocationField},
	},
	FoldDirective: {
		locations: []ast.DirectiveLocation{ast.LocationField},
	},
	TransformDirective: {
		arguments: []directiveArgument{{name: "op", typeName: "String!"}},
		locations: []ast.DirectiveLocation{ast.LocationField},
	},
}

func (s *Schema) validateDirectives() error {
	for name, want := range reservedDirectives {
		def, ok := s.ast.Directives[name]
		if !ok {
			return fmt.Errorf("%w: directive @%s is not declared", ErrInvalidDirectiveDefinition, name)
		}
		if def.IsRepeatable != want.repeatable {
			return fmt.Errorf("%w: directive @%s repeatability must be %v",
				ErrInvalidDirectiveDefinition, name, want.repeatable)
		}
		if err := checkDirectiveLocations(name, def, want.locations); err != nil {
			return err
		}
		if err := checkDirectiveArguments(name, def, want.arguments); err != nil {
			return err
		}
	}
	return nil
}

func checkDirectiveLocations(name string, def *ast.DirectiveDefinition, want []ast.DirectiveLocation) error {
	have := make(map[ast.DirectiveLocation]bool, len(def.Locations))
	for _, loc := range def.Locations {
		have[loc] = true
	}
	if len(have) != len(want) {
		return fmt.Errorf("%w: directive @%s declares wrong locations", ErrInvalidDirectiveDefinition, name)
	}
	for _, loc := range want {
		if !have[loc] {
			return fmt.Errorf("%w: directive @%s is missing location %s", ErrInvalidDirectiveDefinition, name, loc)
		}
	}
	return nil
}

func checkDirectiveArguments(name string, def *ast.DirectiveDefinition, want []directiveArgument) error {
	if len(def.Arguments) != len(want) {
		return fmt.Errorf("%w: directive @%s declares %d arguments, want %d",
			ErrInvalidDirectiveDefinition, name, len(def.Arguments), len(want))
	}
	for _, arg := range want {
		decl := def.Arguments.ForName(arg.name)
		if decl == nil {
			return fmt.Errorf("%w: directive @%s is missing argument %q",
				ErrInvalidDirectiveDefinition, name, arg.name)
		}
		if got := typeRefFromAST(decl.Type).String(); got != arg.typeName {
			return fmt.Errorf("%w: directive @%s argument %q has type %s, want %s",
				ErrInvalidDirectiveDefinition, name, arg.name, got, arg.typeName)
		}
		if decl.DefaultValue != nil {
			return fmt.Errorf("%w: directive @%s argument %q must not declare a default",
				ErrInvalidDirectiveDefinition, name, arg.name)
		}
	}
	return nil
}
