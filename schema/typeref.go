package schema

import (
	"fmt"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
)

// TypeRef is a GraphQL type expression: a named type or a list of
// another type expression, either of which may be non-nullable.
// Exactly one of Name and Elem is set.
type TypeRef struct {
	Name    string
	Elem    *TypeRef
	NonNull bool
}

// NamedTypeRef builds a reference to a named type.
func NamedTypeRef(name string, nonNull bool) *TypeRef {
	return &TypeRef{Name: name, NonNull: nonNull}
}

// ListTypeRef builds a list of elem.
func ListTypeRef(elem *TypeRef, nonNull bool) *TypeRef {
	return &TypeRef{Elem: elem, NonNull: nonNull}
}

func typeRefFromAST(t *ast.Type) *TypeRef {
	if t == nil {
		return nil
	}
	if t.NamedType != "" {
		return &TypeRef{Name: t.NamedType, NonNull: t.NonNull}
	}
	return &TypeRef{Elem: typeRefFromAST(t.Elem), NonNull: t.NonNull}
}

// IsList reports whether the outermost type is a list.
func (t *TypeRef) IsList() bool { return t.Elem != nil }

// BaseName returns the innermost named type.
func (t *TypeRef) BaseName() string {
	for t.Elem != nil {
		t = t.Elem
	}
	return t.Name
}

// ListDepth returns how many list layers wrap the named type.
func (t *TypeRef) ListDepth() int {
	depth := 0
	for t.Elem != nil {
		depth++
		t = t.Elem
	}
	return depth
}

// WithNonNull returns a copy of t with the outermost nullability set.
func (t *TypeRef) WithNonNull(nonNull bool) *TypeRef {
	out := *t
	out.NonNull = nonNull
	return &out
}

// AsNullable returns t with the outermost non-null stripped.
func (t *TypeRef) AsNullable() *TypeRef { return t.WithNonNull(false) }

// ListOf wraps t in a non-nullable list.
func (t *TypeRef) ListOf() *TypeRef { return &TypeRef{Elem: t, NonNull: true} }

// Equal reports structural equality.
func (t *TypeRef) Equal(other *TypeRef) bool {
	if t == nil || other == nil {
		return t == other
	}
	if t.NonNull != other.NonNull || t.Name != other.Name {
		return false
	}
	if (t.Elem == nil) != (other.Elem == nil) {
		return false
	}
	if t.Elem != nil {
		return t.Elem.Equal(other.Elem)
	}
	return true
}

// String renders the type in GraphQL syntax, e.g. "[Int!]!".
func (t *TypeRef) String() string {
	var sb strings.Builder
	t.writeTo(&sb)
	return sb.String()
}

func (t *TypeRef) writeTo(sb *strings.Builder) {
	if t.Elem != nil {
		sb.WriteByte('[')
		t.Elem.writeTo(sb)
		sb.WriteByte(']')
	} else {
		sb.WriteString(t.Name)
	}
	if t.NonNull {
		sb.WriteByte('!')
	}
}

// ParseTypeRef parses GraphQL type syntax such as "[Int!]!".
func ParseTypeRef(s string) (*TypeRef, error) {
	ref, rest, err := parseTypeRef(strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	if rest != "" {
		return nil, fmt.Errorf("schema: trailing characters %q in type %q", rest, s)
	}
	return ref, nil
}

func parseTypeRef(s string) (*TypeRef, string, error) {
	if s == "" {
		return nil, "", fmt.Errorf("schema: empty type expression")
	}
	var ref *TypeRef
	if s[0] == '[' {
		elem, rest, err := parseTypeRef(s[1:])
		if err != nil {
			return nil, "", err
		}
		if rest == "" || rest[0] != ']' {
			return nil, "", fmt.Errorf("schema: unterminated list type")
		}
		ref, s = &TypeRef{Elem: elem}, rest[1:]
	} else {
		i := 0
		for i < len(s) && (isNameByte(s[i]) || (i == 0 && s[i] == '_')) {
			i++
		}
		if i == 0 {
			return nil, "", fmt.Errorf("schema: invalid type expression %q", s)
		}
		ref, s = &TypeRef{Name: s[:i]}, s[i:]
	}
	if s != "" && s[0] == '!' {
		ref.NonNull = true
		s = s[1:]
	}
	return ref, s, nil
}

func isNameByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
