package frontend

import "errors"

var (
	// ErrUnknownField indicates a selection named a field, edge, or
	// entry point the schema does not declare.
	ErrUnknownField = errors.New("unknown field")
	// ErrUnknownType indicates a type coercion or an edge's
	// destination named an undeclared type.
	ErrUnknownType = errors.New("unknown type")
	// ErrInvalidTypeCoercion indicates an inline fragment coerced to
	// a type unrelated to the scope it appeared in.
	ErrInvalidTypeCoercion = errors.New("invalid type coercion")
	// ErrParameterMismatch indicates an edge argument did not match
	// the schema's declared parameter in name, type, or value.
	ErrParameterMismatch = errors.New("edge parameter mismatch")
	// ErrMissingRequiredEdgeParameter indicates a non-nullable edge
	// parameter without a default was not provided.
	ErrMissingRequiredEdgeParameter = errors.New("missing required edge parameter")
	// ErrIncompatibleVariableUses indicates a variable's uses have no
	// common type.
	ErrIncompatibleVariableUses = errors.New("incompatible variable uses")
	// ErrUndefinedTag indicates a filter referenced a tag the query
	// never defines, or one that is out of scope.
	ErrUndefinedTag = errors.New("undefined tag")
	// ErrTagUsedBeforeDefined indicates a tag reference precedes the
	// tag's definition in depth-first order.
	ErrTagUsedBeforeDefined = errors.New("tag used before it is defined")
	// ErrDuplicateTag indicates two @tag directives bind the same name.
	ErrDuplicateTag = errors.New("duplicate tag name")
	// ErrTagCycle indicates a tag dependency cycle, such as a fold
	// post-filter referencing a tag defined inside that same fold.
	ErrTagCycle = errors.New("tag dependency cycle")
	// ErrRecursionTypeMismatch indicates @recurse was applied to an
	// edge that cannot be traversed repeatedly, even with coercions.
	ErrRecursionTypeMismatch = errors.New("no valid recursive path for edge")
	// ErrInvalidQuery covers structural problems: misplaced
	// directives, duplicate or missing outputs, unsupported
	// operators and transforms.
	ErrInvalidQuery = errors.New("invalid query")
)
