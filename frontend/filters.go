package frontend

import (
	"fmt"

	"github.com/loomhq/weft/ir"
	"github.com/loomhq/weft/query"
	"github.com/loomhq/weft/schema"
)

// lowerFilter lowers one @filter directive against the given left
// operand. guard, when non-nil, is the component a tag operand must
// not come from: a fold's post-filter referencing a tag defined
// inside that same fold would be a dependency cycle.
func (l *lowering) lowerFilter(cs *componentState, left ir.Argument, leftType *schema.TypeRef, f *query.Filter, guard *componentState) (ir.Filter, error) {
	op, ok := ir.ParseOperator(f.Op)
	if !ok {
		return ir.Filter{}, fmt.Errorf("%w: unsupported filter operator %q", ErrInvalidQuery, f.Op)
	}
	if op.IsUnary() {
		if len(f.Operands) != 0 {
			return ir.Filter{}, fmt.Errorf("%w: operator %q takes no operand", ErrInvalidQuery, op)
		}
	} else if len(f.Operands) != 1 {
		return ir.Filter{}, fmt.Errorf("%w: operator %q takes exactly one operand", ErrInvalidQuery, op)
	}
	if err := checkOperatorApplicability(op, leftType); err != nil {
		return ir.Filter{}, err
	}

	filter := ir.Filter{Op: op, Left: left}
	if op.IsUnary() {
		return filter, nil
	}

	switch operand := f.Operands[0].(type) {
	case query.VariableOperand:
		want := operandType(op, leftType)
		if err := l.constrainVariable(operand.Name, want); err != nil {
			return ir.Filter{}, err
		}
		filter.Right = ir.Variable{Name: operand.Name, Type: want}
	case query.TagOperand:
		info, ok := l.tags[operand.Name]
		if !ok {
			if l.declaredTags[operand.Name] {
				return ir.Filter{}, fmt.Errorf("%w: %q", ErrTagUsedBeforeDefined, operand.Name)
			}
			return ir.Filter{}, fmt.Errorf("%w: %q", ErrUndefinedTag, operand.Name)
		}
		if guard != nil && isSelfOrDescendant(info.component, guard) {
			return ir.Filter{}, fmt.Errorf("%w: tag %q is defined inside the fold it filters", ErrTagCycle, operand.Name)
		}
		if !isSelfOrAncestor(info.component, cs) {
			return ir.Filter{}, fmt.Errorf("%w: tag %q is defined inside a fold and is not visible here",
				ErrUndefinedTag, operand.Name)
		}
		l.importAcrossFolds(cs, info)
		filter.Right = info.field
	default:
		return ir.Filter{}, fmt.Errorf("%w: unsupported operand", ErrInvalidQuery)
	}
	return filter, nil
}

// isSelfOrAncestor reports whether target is cs or one of its
// enclosing components.
func isSelfOrAncestor(target, cs *componentState) bool {
	for c := cs; c != nil; c = c.parent {
		if c == target {
			return true
		}
	}
	return false
}

// isSelfOrDescendant reports whether cs is target or nested inside it.
func isSelfOrDescendant(cs, target *componentState) bool {
	return isSelfOrAncestor(target, cs)
}

// importAcrossFolds records the tag on every fold boundary between
// its definition and the use site, so the interpreter can carry the
// value into each nested fold scope.
func (l *lowering) importAcrossFolds(cs *componentState, info *tagInfo) {
	for c := cs; c != nil && c != info.component; c = c.parent {
		if c.fold == nil {
			continue
		}
		already := false
		for _, imported := range c.fold.ImportedTags {
			if imported.Key() == info.field.Key() {
				already = true
				break
			}
		}
		if !already {
			c.fold.ImportedTags = append(c.fold.ImportedTags, info.field)
		}
	}
}

// operandType is the type constraint a filter use site imposes on its
// variable operand.
func operandType(op ir.Operator, leftType *schema.TypeRef) *schema.TypeRef {
	base, _ := op.Negated()
	switch base {
	case ir.OpOneOf:
		return leftType.WithNonNull(true).ListOf()
	case ir.OpContains:
		return leftType.Elem.WithNonNull(true)
	case ir.OpHasPrefix, ir.OpHasSuffix, ir.OpHasSubstring, ir.OpRegex:
		return schema.NamedTypeRef("String", true)
	default:
		return leftType.WithNonNull(true)
	}
}

func checkOperatorApplicability(op ir.Operator, leftType *schema.TypeRef) error {
	base, _ := op.Negated()
	switch base {
	case ir.OpLessThan, ir.OpLessThanOrEqual, ir.OpGreaterThan, ir.OpGreaterThanOrEqual:
		if leftType.IsList() {
			return fmt.Errorf("%w: operator %q cannot order list type %s", ErrInvalidQuery, op, leftType)
		}
		switch leftType.Name {
		case "Int", "Float", "String", "ID":
		default:
			return fmt.Errorf("%w: operator %q cannot order type %s", ErrInvalidQuery, op, leftType)
		}
	case ir.OpContains:
		if !leftType.IsList() {
			return fmt.Errorf("%w: operator %q requires a list field, got %s", ErrInvalidQuery, op, leftType)
		}
	case ir.OpHasPrefix, ir.OpHasSuffix, ir.OpHasSubstring, ir.OpRegex:
		if leftType.IsList() || (leftType.Name != "String" && leftType.Name != "ID") {
			return fmt.Errorf("%w: operator %q requires a string field, got %s", ErrInvalidQuery, op, leftType)
		}
	}
	return nil
}

// constrainVariable joins a new use-site constraint into the
// variable's inferred type: the greatest lower bound of all uses.
func (l *lowering) constrainVariable(name string, want *schema.TypeRef) error {
	existing, ok := l.variables[name]
	if !ok {
		l.variables[name] = want
		return nil
	}
	merged, ok := glbType(existing, want)
	if !ok {
		return fmt.Errorf("%w: $%s is used both as %s and as %s",
			ErrIncompatibleVariableUses, name, existing, want)
	}
	l.variables[name] = merged
	return nil
}

// glbType computes the greatest lower bound of two type expressions:
// the most permissive type usable wherever either is expected. A use
// as [Int!] joined with a use as [Int]! yields [Int!]!.
func glbType(a, b *schema.TypeRef) (*schema.TypeRef, bool) {
	if a.IsList() != b.IsList() {
		return nil, false
	}
	nonNull := a.NonNull || b.NonNull
	if a.IsList() {
		elem, ok := glbType(a.Elem, b.Elem)
		if !ok {
			return nil, false
		}
		return &schema.TypeRef{Elem: elem, NonNull: nonNull}, true
	}
	if a.Name != b.Name {
		return nil, false
	}
	return &schema.TypeRef{Name: a.Name, NonNull: nonNull}, true
}
