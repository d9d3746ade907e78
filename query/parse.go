package query

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"

	"github.com/loomhq/weft/value"
)

var (
	// ErrSyntax indicates the query text was not a single well-formed
	// query operation.
	ErrSyntax = errors.New("syntax error")
	// ErrUnknownDirective indicates a directive other than the seven
	// reserved ones appeared.
	ErrUnknownDirective = errors.New("unknown directive")
	// ErrInvalidDirectiveArgs indicates a reserved directive carried
	// missing, extra, or ill-typed arguments.
	ErrInvalidDirectiveArgs = errors.New("invalid directive arguments")
	// ErrDuplicateDirective indicates a non-repeatable directive
	// appeared more than once on one field.
	ErrDuplicateDirective = errors.New("duplicate non-repeatable directive")
)

// Parse parses query text into a parse tree.
func Parse(text string) (*Query, error) {
	doc, err := parser.Parse(parser.ParseParams{Source: text})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}

	var op *ast.OperationDefinition
	for _, def := range doc.Definitions {
		switch def := def.(type) {
		case *ast.OperationDefinition:
			if def.Operation != "query" {
				return nil, fmt.Errorf("%w: %s operations are not supported", ErrSyntax, def.Operation)
			}
			if op != nil {
				return nil, fmt.Errorf("%w: query must contain a single operation", ErrSyntax)
			}
			op = def
		case *ast.FragmentDefinition:
			return nil, fmt.Errorf("%w: named fragments are not supported", ErrSyntax)
		default:
			return nil, fmt.Errorf("%w: unsupported definition", ErrSyntax)
		}
	}
	if op == nil {
		return nil, fmt.Errorf("%w: query contains no operation", ErrSyntax)
	}

	root, err := convertSelectionSet(op.SelectionSet)
	if err != nil {
		return nil, err
	}
	if len(root.Fragments) != 0 || len(root.Fields) != 1 {
		return nil, fmt.Errorf("%w: query must have exactly one top-level selection", ErrSyntax)
	}
	return &Query{Root: root.Fields[0]}, nil
}

// MustParse parses query text, panicking on error.
func MustParse(text string) *Query {
	q, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return q
}

func convertSelectionSet(set *ast.SelectionSet) (*SelectionSet, error) {
	out := &SelectionSet{}
	for _, sel := range set.Selections {
		switch sel := sel.(type) {
		case *ast.Field:
			field, err := convertField(sel)
			if err != nil {
				return nil, err
			}
			out.Fields = append(out.Fields, field)
		case *ast.InlineFragment:
			fragment, err := convertInlineFragment(sel)
			if err != nil {
				return nil, err
			}
			out.Fragments = append(out.Fragments, fragment)
		case *ast.FragmentSpread:
			return nil, fmt.Errorf("%w: fragment spreads are not supported", ErrSyntax)
		default:
			return nil, fmt.Errorf("%w: unsupported selection", ErrSyntax)
		}
	}
	return out, nil
}

func convertField(field *ast.Field) (*Field, error) {
	out := &Field{Name: field.Name.Value}
	if field.Alias != nil {
		out.Alias = field.Alias.Value
	}

	for _, arg := range field.Arguments {
		converted, err := convertArgumentValue(arg.Value)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", arg.Name.Value, err)
		}
		out.Arguments = append(out.Arguments, &Argument{Name: arg.Name.Value, Value: converted})
	}

	if err := attachDirectives(out, field.Directives); err != nil {
		return nil, fmt.Errorf("field %q: %w", out.Name, err)
	}

	if field.SelectionSet != nil {
		set, err := convertSelectionSet(field.SelectionSet)
		if err != nil {
			return nil, err
		}
		out.SelectionSet = set
	}
	return out, nil
}

func convertInlineFragment(fragment *ast.InlineFragment) (*InlineFragment, error) {
	if fragment.TypeCondition == nil {
		return nil, fmt.Errorf("%w: inline fragment without a type condition", ErrSyntax)
	}
	out := &InlineFragment{On: fragment.TypeCondition.Name.Value}

	for _, dir := range fragment.Directives {
		if dir.Name.Value != "filter" {
			return nil, fmt.Errorf("%w: @%s is not allowed on an inline fragment",
				ErrInvalidDirectiveArgs, dir.Name.Value)
		}
		filter, err := convertFilter(dir)
		if err != nil {
			return nil, err
		}
		out.Filters = append(out.Filters, filter)
	}

	if fragment.SelectionSet == nil {
		return nil, fmt.Errorf("%w: inline fragment must have selections", ErrSyntax)
	}
	set, err := convertSelectionSet(fragment.SelectionSet)
	if err != nil {
		return nil, err
	}
	out.SelectionSet = set
	return out, nil
}

func attachDirectives(out *Field, directives []*ast.Directive) error {
	for _, dir := range directives {
		name := dir.Name.Value
		switch name {
		case "filter":
			filter, err := convertFilter(dir)
			if err != nil {
				return err
			}
			out.Filters = append(out.Filters, filter)
		case "output":
			if out.Output != nil {
				return fmt.Errorf("%w: @output", ErrDuplicateDirective)
			}
			name, err := optionalStringArg(dir, "name")
			if err != nil {
				return err
			}
			out.Output = &Output{Name: name}
		case "tag":
			if out.Tag != nil {
				return fmt.Errorf("%w: @tag", ErrDuplicateDirective)
			}
			name, err := optionalStringArg(dir, "name")
			if err != nil {
				return err
			}
			out.Tag = &Tag{Name: name}
		case "optional":
			if out.Optional {
				return fmt.Errorf("%w: @optional", ErrDuplicateDirective)
			}
			if len(dir.Arguments) != 0 {
				return fmt.Errorf("%w: @optional takes no arguments", ErrInvalidDirectiveArgs)
			}
			out.Optional = true
		case "recurse":
			if out.Recurse != nil {
				return fmt.Errorf("%w: @recurse", ErrDuplicateDirective)
			}
			depth, err := requiredIntArg(dir, "depth")
			if err != nil {
				return err
			}
			if depth < 1 {
				return fmt.Errorf("%w: @recurse depth must be at least 1, got %d", ErrInvalidDirectiveArgs, depth)
			}
			out.Recurse = &Recurse{Depth: depth}
		case "fold":
			if out.Fold {
				return fmt.Errorf("%w: @fold", ErrDuplicateDirective)
			}
			if len(dir.Arguments) != 0 {
				return fmt.Errorf("%w: @fold takes no arguments", ErrInvalidDirectiveArgs)
			}
			out.Fold = true
		case "transform":
			if out.Transform != nil {
				return fmt.Errorf("%w: @transform", ErrDuplicateDirective)
			}
			op, err := requiredStringArg(dir, "op")
			if err != nil {
				return err
			}
			out.Transform = &Transform{Op: op}
		default:
			return fmt.Errorf("%w: @%s", ErrUnknownDirective, name)
		}
	}
	return nil
}

func convertFilter(dir *ast.Directive) (*Filter, error) {
	for _, arg := range dir.Arguments {
		if arg.Name.Value != "op" && arg.Name.Value != "value" {
			return nil, fmt.Errorf("%w: @filter does not take argument %q",
				ErrInvalidDirectiveArgs, arg.Name.Value)
		}
	}
	op, err := requiredStringArg(dir, "op")
	if err != nil {
		return nil, err
	}
	filter := &Filter{Op: op}

	raw := findArgument(dir, "value")
	if raw == nil {
		return filter, nil
	}
	list, ok := raw.(*ast.ListValue)
	if !ok {
		return nil, fmt.Errorf("%w: @filter value must be a list of strings", ErrInvalidDirectiveArgs)
	}
	for _, elem := range list.Values {
		str, ok := elem.(*ast.StringValue)
		if !ok {
			return nil, fmt.Errorf("%w: @filter value entries must be strings", ErrInvalidDirectiveArgs)
		}
		operand, err := parseOperand(str.Value)
		if err != nil {
			return nil, err
		}
		filter.Operands = append(filter.Operands, operand)
	}
	return filter, nil
}

// parseOperand interprets a filter value entry: "$name" is a query
// variable, "%name" a tag. Literal constants are not supported at
// this layer.
func parseOperand(entry string) (Operand, error) {
	if len(entry) < 2 {
		return nil, fmt.Errorf("%w: @filter value entry %q is not $variable or %%tag",
			ErrInvalidDirectiveArgs, entry)
	}
	name := entry[1:]
	if !isName(name) {
		return nil, fmt.Errorf("%w: @filter value entry %q has an invalid name",
			ErrInvalidDirectiveArgs, entry)
	}
	switch entry[0] {
	case '$':
		return VariableOperand{Name: name}, nil
	case '%':
		return TagOperand{Name: name}, nil
	default:
		return nil, fmt.Errorf("%w: @filter value entry %q is not $variable or %%tag",
			ErrInvalidDirectiveArgs, entry)
	}
}

func isName(s string) bool {
	for i := 0; i < len(s); i++ {
		b := s[i]
		switch {
		case b == '_', b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z':
		case b >= '0' && b <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return len(s) > 0
}

func findArgument(dir *ast.Directive, name string) ast.Value {
	for _, arg := range dir.Arguments {
		if arg.Name.Value == name {
			return arg.Value
		}
	}
	return nil
}

func requiredStringArg(dir *ast.Directive, name string) (string, error) {
	for _, arg := range dir.Arguments {
		if arg.Name.Value != name && dir.Name.Value != "filter" {
			return "", fmt.Errorf("%w: @%s does not take argument %q",
				ErrInvalidDirectiveArgs, dir.Name.Value, arg.Name.Value)
		}
	}
	raw := findArgument(dir, name)
	if raw == nil {
		return "", fmt.Errorf("%w: @%s requires argument %q", ErrInvalidDirectiveArgs, dir.Name.Value, name)
	}
	str, ok := raw.(*ast.StringValue)
	if !ok {
		return "", fmt.Errorf("%w: @%s argument %q must be a string", ErrInvalidDirectiveArgs, dir.Name.Value, name)
	}
	return str.Value, nil
}

func optionalStringArg(dir *ast.Directive, name string) (string, error) {
	for _, arg := range dir.Arguments {
		if arg.Name.Value != name {
			return "", fmt.Errorf("%w: @%s does not take argument %q",
				ErrInvalidDirectiveArgs, dir.Name.Value, arg.Name.Value)
		}
	}
	raw := findArgument(dir, name)
	if raw == nil {
		return "", nil
	}
	str, ok := raw.(*ast.StringValue)
	if !ok {
		return "", fmt.Errorf("%w: @%s argument %q must be a string", ErrInvalidDirectiveArgs, dir.Name.Value, name)
	}
	return str.Value, nil
}

func requiredIntArg(dir *ast.Directive, name string) (int64, error) {
	for _, arg := range dir.Arguments {
		if arg.Name.Value != name {
			return 0, fmt.Errorf("%w: @%s does not take argument %q",
				ErrInvalidDirectiveArgs, dir.Name.Value, arg.Name.Value)
		}
	}
	raw := findArgument(dir, name)
	if raw == nil {
		return 0, fmt.Errorf("%w: @%s requires argument %q", ErrInvalidDirectiveArgs, dir.Name.Value, name)
	}
	iv, ok := raw.(*ast.IntValue)
	if !ok {
		return 0, fmt.Errorf("%w: @%s argument %q must be an integer", ErrInvalidDirectiveArgs, dir.Name.Value, name)
	}
	parsed, err := strconv.ParseInt(iv.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: @%s argument %q is out of range", ErrInvalidDirectiveArgs, dir.Name.Value, name)
	}
	return parsed, nil
}

func convertArgumentValue(v ast.Value) (ArgumentValue, error) {
	if variable, ok := v.(*ast.Variable); ok {
		return VariableRef{Name: variable.Name.Value}, nil
	}
	literal, err := convertLiteral(v)
	if err != nil {
		return nil, err
	}
	return Literal{Value: literal}, nil
}

func convertLiteral(v ast.Value) (value.Value, error) {
	switch v := v.(type) {
	case *ast.IntValue:
		if i, err := strconv.ParseInt(v.Value, 10, 64); err == nil {
			return value.Int64(i), nil
		}
		if u, err := strconv.ParseUint(v.Value, 10, 64); err == nil {
			return value.Uint64(u), nil
		}
		return value.Null(), fmt.Errorf("%w: integer literal %q out of range", ErrSyntax, v.Value)
	case *ast.FloatValue:
		f, err := strconv.ParseFloat(v.Value, 64)
		if err != nil {
			return value.Null(), fmt.Errorf("%w: invalid float literal %q", ErrSyntax, v.Value)
		}
		return value.Float64(f), nil
	case *ast.StringValue:
		return value.String(v.Value), nil
	case *ast.BooleanValue:
		return value.Bool(v.Value), nil
	case *ast.ListValue:
		list := make([]value.Value, 0, len(v.Values))
		for _, elem := range v.Values {
			converted, err := convertLiteral(elem)
			if err != nil {
				return value.Null(), err
			}
			list = append(list, converted)
		}
		return value.List(list), nil
	default:
		return value.Null(), fmt.Errorf("%w: unsupported literal", ErrSyntax)
	}
}
