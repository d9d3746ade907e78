package schema

import (
	"github.com/loomhq/weft/value"
)

// ValueConforms reports whether v is usable where the type expression
// t is expected. Unknown custom scalars accept any non-null value.
func ValueConforms(v value.Value, t *TypeRef) bool {
	if v.IsNull() {
		return !t.NonNull
	}
	if t.IsList() {
		list, ok := v.AsList()
		if !ok {
			return false
		}
		for _, elem := range list {
			if !ValueConforms(elem, t.Elem) {
				return false
			}
		}
		return true
	}
	switch t.Name {
	case "Int":
		return v.Kind() == value.KindInt64 || v.Kind() == value.KindUint64
	case "Float":
		switch v.Kind() {
		case value.KindFloat64, value.KindInt64, value.KindUint64:
			return true
		default:
			return false
		}
	case "String", "ID":
		return v.Kind() == value.KindString
	case "Boolean":
		return v.Kind() == value.KindBool
	default:
		return true
	}
}
