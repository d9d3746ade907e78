package value

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegerEqualityAcrossClasses(t *testing.T) {
	assert.True(t, Equal(Int64(42), Uint64(42)))
	assert.True(t, Equal(Uint64(42), Int64(42)))
	assert.False(t, Equal(Int64(-1), Uint64(math.MaxUint64)))
	assert.True(t, Equal(Uint64(math.MaxUint64), Uint64(math.MaxUint64)))
	assert.False(t, Equal(Int64(1), Float64(1)))
}

func TestFloatEquality(t *testing.T) {
	assert.True(t, Equal(Float64(1.5), Float64(1.5)))
	assert.False(t, Equal(Float64(math.NaN()), Float64(math.NaN())))
	// Bitwise: positive and negative zero differ.
	assert.False(t, Equal(Float64(0.0), Float64(math.Copysign(0, -1))))
}

func TestListEquality(t *testing.T) {
	a := List([]Value{Int64(1), String("x")})
	b := List([]Value{Uint64(1), String("x")})
	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, List([]Value{Int64(1)})))
	assert.True(t, Equal(List(nil), List([]Value{})))
}

func TestCompare(t *testing.T) {
	cases := []struct {
		name    string
		a, b    Value
		want    int
		ordered bool
	}{
		{"ints", Int64(1), Int64(2), -1, true},
		{"mixed integer classes", Int64(-1), Uint64(0), -1, true},
		{"large uint", Uint64(math.MaxUint64), Int64(5), 1, true},
		{"strings", String("a"), String("b"), -1, true},
		{"floats", Float64(2.5), Float64(2.5), 0, true},
		{"int vs float", Int64(1), Float64(1.0), 0, false},
		{"int vs string", Int64(1), String("1"), 0, false},
		{"nan", Float64(math.NaN()), Float64(1), 0, false},
		{"null", Null(), Int64(1), 0, false},
		{"lists", List(nil), List(nil), 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ordered := Compare(tc.a, tc.b)
			require.Equal(t, tc.ordered, ordered)
			if ordered {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestJSONRoundTrip(t *testing.T) {
	values := []Value{
		Null(),
		Bool(true),
		Int64(-7),
		Int64(0),
		Uint64(math.MaxUint64),
		Float64(2.25),
		String("hello"),
		List([]Value{Int64(1), List([]Value{String("nested")}), Null()}),
	}
	for _, v := range values {
		data, err := json.Marshal(v)
		require.NoError(t, err)
		var back Value
		require.NoError(t, json.Unmarshal(data, &back))
		assert.True(t, Equal(v, back), "round-trip of %s produced %s", v, back)
	}
}

func TestJSONNumbers(t *testing.T) {
	var v Value
	require.NoError(t, json.Unmarshal([]byte("3"), &v))
	assert.Equal(t, KindInt64, v.Kind())

	require.NoError(t, json.Unmarshal([]byte("18446744073709551615"), &v))
	assert.Equal(t, KindUint64, v.Kind())

	require.NoError(t, json.Unmarshal([]byte("2.5"), &v))
	assert.Equal(t, KindFloat64, v.Kind())
}

func TestAccessors(t *testing.T) {
	i, ok := Uint64(7).AsInt64()
	require.True(t, ok)
	assert.Equal(t, int64(7), i)

	_, ok = Uint64(math.MaxUint64).AsInt64()
	assert.False(t, ok)

	_, ok = Int64(-1).AsUint64()
	assert.False(t, ok)

	s, ok := String("x").AsString()
	require.True(t, ok)
	assert.Equal(t, "x", s)

	_, ok = Int64(1).AsString()
	assert.False(t, ok)
}
