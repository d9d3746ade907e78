package ir

import (
	"fmt"

	"github.com/loomhq/weft/schema"
)

// Operator enumerates the filter operations.
type Operator int

const (
	OpEquals Operator = iota
	OpNotEquals
	OpLessThan
	OpLessThanOrEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpIsNull
	OpIsNotNull
	OpOneOf
	OpNotOneOf
	OpContains
	OpNotContains
	OpHasPrefix
	OpNotHasPrefix
	OpHasSuffix
	OpNotHasSuffix
	OpHasSubstring
	OpNotHasSubstring
	OpRegex
	OpNotRegex
)

var operatorNames = map[Operator]string{
	OpEquals:             "=",
	OpNotEquals:          "!=",
	OpLessThan:           "<",
	OpLessThanOrEqual:    "<=",
	OpGreaterThan:        ">",
	OpGreaterThanOrEqual: ">=",
	OpIsNull:             "is_null",
	OpIsNotNull:          "is_not_null",
	OpOneOf:              "one_of",
	OpNotOneOf:           "not_one_of",
	OpContains:           "contains",
	OpNotContains:        "not_contains",
	OpHasPrefix:          "has_prefix",
	OpNotHasPrefix:       "not_has_prefix",
	OpHasSuffix:          "has_suffix",
	OpNotHasSuffix:       "not_has_suffix",
	OpHasSubstring:       "has_substring",
	OpNotHasSubstring:    "not_has_substring",
	OpRegex:              "regex",
	OpNotRegex:           "not_regex",
}

var operatorsByName = func() map[string]Operator {
	out := make(map[string]Operator, len(operatorNames))
	for op, name := range operatorNames {
		out[name] = op
	}
	return out
}()

// ParseOperator resolves the surface-syntax operator name.
func ParseOperator(name string) (Operator, bool) {
	op, ok := operatorsByName[name]
	return op, ok
}

func (op Operator) String() string {
	if name, ok := operatorNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Operator(%d)", int(op))
}

// IsUnary reports whether the operator takes no right operand.
func (op Operator) IsUnary() bool {
	return op == OpIsNull || op == OpIsNotNull
}

// Negated reports whether the operator is a not_* variant, and
// returns the underlying positive operator.
func (op Operator) Negated() (Operator, bool) {
	switch op {
	case OpNotEquals:
		return OpEquals, true
	case OpNotOneOf:
		return OpOneOf, true
	case OpNotContains:
		return OpContains, true
	case OpNotHasPrefix:
		return OpHasPrefix, true
	case OpNotHasSuffix:
		return OpHasSuffix, true
	case OpNotHasSubstring:
		return OpHasSubstring, true
	case OpNotRegex:
		return OpRegex, true
	default:
		return op, false
	}
}

// Filter is one filter operation: an operator, a left operand, and an
// optional right operand.
type Filter struct {
	Op    Operator
	Left  Argument
	Right Argument // nil for unary operators
}

// Argument is a filter operand source.
type Argument interface {
	// isArgument() is a no-op used to tag the known values of
	// Argument.
	isArgument()
}

// LocalField reads the named property of the vertex the filter is
// attached to.
type LocalField struct {
	Name string
	Type *schema.TypeRef
}

// Variable reads a query variable from the arguments bag.
type Variable struct {
	Name string
	Type *schema.TypeRef
}

// FoldCount reads the row count of the fold at Eid; it appears as the
// left operand of fold post-filters.
type FoldCount struct {
	Eid Eid
}

func (LocalField) isArgument()   {}
func (Variable) isArgument()     {}
func (ContextField) isArgument() {}
func (FoldCount) isArgument()    {}
