// Package value implements the runtime value model shared by the
// schema, IR, and interpreter: a tagged scalar/list value with
// numeric-class-aware equality, partial ordering, and JSON round-trip.
package value

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Kind tags the variants of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt64
	KindUint64
	KindFloat64
	KindString
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt64:
		return "int64"
	case KindUint64:
		return "uint64"
	case KindFloat64:
		return "float64"
	case KindString:
		return "string"
	case KindList:
		return "list"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Value is a tagged union of {Null, Bool, Int64, Uint64, Float64,
// String, List}. The zero Value is Null.
//
// Values are plain data: they may be freely copied and compared with
// Equal. Int64 and Uint64 values that represent the same mathematical
// integer compare equal; floats compare bitwise except NaN, which is
// never equal to anything including itself.
type Value struct {
	kind Kind
	b    bool
	i    int64
	u    uint64
	f    float64
	s    string
	list []Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int64 returns a signed integer value.
func Int64(i int64) Value { return Value{kind: KindInt64, i: i} }

// Uint64 returns an unsigned integer value.
func Uint64(u uint64) Value { return Value{kind: KindUint64, u: u} }

// Float64 returns a floating-point value.
func Float64(f float64) Value { return Value{kind: KindFloat64, f: f} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// List returns a list value. The slice is not copied; callers must not
// mutate it afterward.
func List(vs []Value) Value {
	if vs == nil {
		vs = []Value{}
	}
	return Value{kind: KindList, list: vs}
}

// Kind reports the variant of v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsInt64 returns the value as an int64 if it is an integer that fits.
func (v Value) AsInt64() (int64, bool) {
	switch v.kind {
	case KindInt64:
		return v.i, true
	case KindUint64:
		if v.u <= math.MaxInt64 {
			return int64(v.u), true
		}
	}
	return 0, false
}

// AsUint64 returns the value as a uint64 if it is a non-negative integer.
func (v Value) AsUint64() (uint64, bool) {
	switch v.kind {
	case KindUint64:
		return v.u, true
	case KindInt64:
		if v.i >= 0 {
			return uint64(v.i), true
		}
	}
	return 0, false
}

// AsFloat64 returns the float payload.
func (v Value) AsFloat64() (float64, bool) { return v.f, v.kind == KindFloat64 }

// AsString returns the string payload.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsList returns the list payload. Callers must not mutate it.
func (v Value) AsList() ([]Value, bool) { return v.list, v.kind == KindList }

// isInteger reports whether v belongs to the integer numeric class.
func (v Value) isInteger() bool { return v.kind == KindInt64 || v.kind == KindUint64 }

// Equal reports semantic equality between a and b.
func Equal(a, b Value) bool {
	if a.isInteger() && b.isInteger() {
		// Semantic integer equality across Int64/Uint64.
		ai, aok := a.AsInt64()
		bi, bok := b.AsInt64()
		if aok && bok {
			return ai == bi
		}
		au, aok := a.AsUint64()
		bu, bok := b.AsUint64()
		return aok && bok && au == bu
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindFloat64:
		if math.IsNaN(a.f) || math.IsNaN(b.f) {
			return false
		}
		return math.Float64bits(a.f) == math.Float64bits(b.f)
	case KindString:
		return a.s == b.s
	case KindList:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !Equal(a.list[i], b.list[i]) {
				return false
			}
		}
		return true
	default:
		panic(fmt.Sprintf("unhandled kind %v", a.kind))
	}
}

// Equal reports semantic equality between v and other.
func (v Value) Equal(other Value) bool { return Equal(v, other) }

// Compare orders a relative to b, returning -1, 0, or 1 and whether
// the pair is orderable at all. Ordering is defined only for two
// integers, two floats, or two strings; every other pairing reports
// ok == false.
func Compare(a, b Value) (int, bool) {
	if a.isInteger() && b.isInteger() {
		return compareIntegers(a, b), true
	}
	if a.kind != b.kind {
		return 0, false
	}
	switch a.kind {
	case KindFloat64:
		if math.IsNaN(a.f) || math.IsNaN(b.f) {
			return 0, false
		}
		switch {
		case a.f < b.f:
			return -1, true
		case a.f > b.f:
			return 1, true
		default:
			return 0, true
		}
	case KindString:
		return strings.Compare(a.s, b.s), true
	default:
		return 0, false
	}
}

func compareIntegers(a, b Value) int {
	// Signs differ only when exactly one side is a negative Int64.
	if a.kind == KindInt64 && a.i < 0 {
		if b.kind == KindInt64 && b.i < 0 {
			return cmpI64(a.i, b.i)
		}
		return -1
	}
	if b.kind == KindInt64 && b.i < 0 {
		return 1
	}
	au, _ := a.AsUint64()
	bu, _ := b.AsUint64()
	return cmpU64(au, bu)
}

func cmpI64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpU64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// MarshalJSON renders the value as plain JSON.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.b)
	case KindInt64:
		return json.Marshal(v.i)
	case KindUint64:
		return json.Marshal(v.u)
	case KindFloat64:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return nil, fmt.Errorf("value: cannot marshal %v as JSON", v.f)
		}
		return json.Marshal(v.f)
	case KindString:
		return json.Marshal(v.s)
	case KindList:
		return json.Marshal(v.list)
	default:
		return nil, fmt.Errorf("value: unhandled kind %v", v.kind)
	}
}

// UnmarshalJSON parses plain JSON into a value. Integral numbers
// become Int64 when they fit, Uint64 when they only fit unsigned, and
// Float64 otherwise.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := FromJSONValue(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// FromJSONValue converts a decoded JSON value (as produced by
// encoding/json with UseNumber) into a Value.
func FromJSONValue(raw interface{}) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int64(i), nil
		}
		s := t.String()
		var u uint64
		if _, err := fmt.Sscan(s, &u); err == nil && !strings.ContainsAny(s, ".eE") {
			return Uint64(u), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Null(), fmt.Errorf("value: unrepresentable number %q", t.String())
		}
		return Float64(f), nil
	case float64:
		// Plain json.Unmarshal without UseNumber.
		if f := math.Trunc(t); f == t && math.Abs(t) < 1<<53 {
			return Int64(int64(t)), nil
		}
		return Float64(t), nil
	case []interface{}:
		list := make([]Value, 0, len(t))
		for _, elem := range t {
			parsed, err := FromJSONValue(elem)
			if err != nil {
				return Null(), err
			}
			list = append(list, parsed)
		}
		return List(list), nil
	default:
		return Null(), fmt.Errorf("value: unsupported JSON value of type %T", raw)
	}
}

// String renders the value for debugging and error messages.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprint(v.b)
	case KindInt64:
		return fmt.Sprint(v.i)
	case KindUint64:
		return fmt.Sprint(v.u)
	case KindFloat64:
		return fmt.Sprint(v.f)
	case KindString:
		return fmt.Sprintf("%q", v.s)
	case KindList:
		parts := make([]string, len(v.list))
		for i, elem := range v.list {
			parts[i] = elem.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprintf("Value(kind=%d)", int(v.kind))
	}
}
