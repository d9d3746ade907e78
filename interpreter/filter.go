package interpreter

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/loomhq/weft/ir"
	"github.com/loomhq/weft/value"
)

// evalOperator evaluates one filter operation over resolved operands.
//
// Null semantics: for every operator other than is_null/is_not_null,
// a null operand makes the filter false — including the not_*
// variants, so not_contains(null, x) is false, not true. The
// suspended-optional pass-through is handled by the caller, which
// never reaches this function for contexts on a suspended path.
func (ex *executor) evalOperator(op ir.Operator, left, right value.Value) bool {
	switch op {
	case ir.OpIsNull:
		return left.IsNull()
	case ir.OpIsNotNull:
		return !left.IsNull()
	}

	if left.IsNull() || right.IsNull() {
		return false
	}

	base, negated := op.Negated()
	var result bool
	switch base {
	case ir.OpEquals:
		result = value.Equal(left, right)
	case ir.OpLessThan, ir.OpLessThanOrEqual, ir.OpGreaterThan, ir.OpGreaterThanOrEqual:
		cmp, ok := value.Compare(left, right)
		if !ok {
			return false
		}
		switch base {
		case ir.OpLessThan:
			return cmp < 0
		case ir.OpLessThanOrEqual:
			return cmp <= 0
		case ir.OpGreaterThan:
			return cmp > 0
		default:
			return cmp >= 0
		}
	case ir.OpOneOf:
		if list, ok := right.AsList(); ok {
			for _, elem := range list {
				if value.Equal(left, elem) {
					result = true
					break
				}
			}
		}
	case ir.OpContains:
		if list, ok := left.AsList(); ok {
			for _, elem := range list {
				if value.Equal(elem, right) {
					result = true
					break
				}
			}
		}
	case ir.OpHasPrefix:
		result = stringPair(left, right, strings.HasPrefix)
	case ir.OpHasSuffix:
		result = stringPair(left, right, strings.HasSuffix)
	case ir.OpHasSubstring:
		result = stringPair(left, right, strings.Contains)
	case ir.OpRegex:
		ls, lok := left.AsString()
		pattern, rok := right.AsString()
		if lok && rok {
			result = ex.regexMatch(pattern, ls)
		}
	default:
		Abort(fmt.Errorf("unhandled filter operator %q", op))
	}
	return result != negated
}

func stringPair(left, right value.Value, f func(string, string) bool) bool {
	ls, lok := left.AsString()
	rs, rok := right.AsString()
	return lok && rok && f(ls, rs)
}

// regexFor compiles a pattern once per query execution.
func (ex *executor) regexFor(pattern string) (*regexp2.Regexp, error) {
	if re, ok := ex.regexes[pattern]; ok {
		return re, nil
	}
	re, err := regexp2.Compile(pattern, regexp2.RE2)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrBadRegex, pattern, err)
	}
	ex.regexes[pattern] = re
	return re, nil
}

func (ex *executor) regexMatch(pattern, s string) bool {
	re, err := ex.regexFor(pattern)
	if err != nil {
		// Variable-sourced patterns are compiled before execution
		// begins; only a tag-sourced pattern can fail here.
		Abort(err)
	}
	matched, err := re.MatchString(s)
	if err != nil {
		Abort(err)
	}
	return matched
}
