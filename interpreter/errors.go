package interpreter

import "errors"

var (
	// ErrMissingVariable indicates the query references a variable the
	// arguments bag does not provide.
	ErrMissingVariable = errors.New("missing query variable")
	// ErrVariableType indicates a provided variable does not conform
	// to the type the frontend inferred for it.
	ErrVariableType = errors.New("query variable has incompatible type")
	// ErrBadRegex indicates a regex filter's pattern failed to
	// compile.
	ErrBadRegex = errors.New("invalid regex pattern")
)
