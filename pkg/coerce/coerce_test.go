package coerce

import (
	"reflect"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScalars(t *testing.T) {
	i, err := ToInt("42")
	require.NoError(t, err)
	assert.Equal(t, 42, i)

	_, err = ToInt("budi")
	assert.Error(t, err)

	f, err := ToFloat64(decimal.RequireFromString("1.25"))
	require.NoError(t, err)
	assert.Equal(t, 1.25, f)

	b, err := ToBool("true")
	require.NoError(t, err)
	assert.True(t, b)

	assert.Equal(t, "", ToString(nil))
	assert.Equal(t, "3.5", ToString(3.5))
	assert.Equal(t, "10.01", ToString(decimal.RequireFromString("10.01")))
	assert.Equal(t, 7.0, ToFloat64Def("x", 7))
}

func TestToDecimal(t *testing.T) {
	tests := []struct {
		in   interface{}
		want string
	}{
		{in: "19.99", want: "19.99"},
		{in: 3, want: "3"},
		{in: 2.5, want: "2.5"},
		{in: nil, want: "0"},
	}
	for _, tt := range tests {
		d, err := ToDecimal(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, d.String())
	}

	_, err := ToDecimal("abc")
	assert.Error(t, err)
}

func TestToType(t *testing.T) {
	t.Run("float to int", func(t *testing.T) {
		v, err := ToType(float64(3), reflect.TypeOf(0))
		require.NoError(t, err)
		assert.Equal(t, 3, v.Interface())
	})

	t.Run("number to string", func(t *testing.T) {
		v, err := ToType(float64(2), reflect.TypeOf(""))
		require.NoError(t, err)
		assert.Equal(t, "2", v.Interface())
	})

	t.Run("nil to zero", func(t *testing.T) {
		v, err := ToType(nil, reflect.TypeOf(""))
		require.NoError(t, err)
		assert.Equal(t, "", v.Interface())
	})

	t.Run("interface target keeps value", func(t *testing.T) {
		var target interface{}
		v, err := ToType("x", reflect.TypeOf(&target).Elem())
		require.NoError(t, err)
		assert.Equal(t, "x", v.Interface())
	})

	t.Run("slice elements", func(t *testing.T) {
		v, err := ToType([]interface{}{float64(1), "2"}, reflect.TypeOf([]int{}))
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2}, v.Interface())
	})

	t.Run("map values", func(t *testing.T) {
		v, err := ToType(map[string]interface{}{"a": float64(1)}, reflect.TypeOf(map[string]int{}))
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"a": 1}, v.Interface())
	})

	t.Run("decimal", func(t *testing.T) {
		v, err := ToType("1.10", reflect.TypeOf(decimal.Decimal{}))
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("1.1").Equal(v.Interface().(decimal.Decimal)))
	})

	t.Run("narrowing", func(t *testing.T) {
		for _, tc := range []struct {
			name  string
			input interface{}
			into  reflect.Type
			want  interface{}
		}{
			{"int8 fits", float64(-128), reflect.TypeOf(int8(0)), int8(-128)},
			{"int8 overflow", float64(300), reflect.TypeOf(int8(0)), nil},
			{"uint16 overflow", float64(70000), reflect.TypeOf(uint16(0)), nil},
			{"uint16 from string", "65535", reflect.TypeOf(uint16(0)), uint16(65535)},
			{"int32 from string overflow", "3000000000", reflect.TypeOf(int32(0)), nil},
			{"fraction to int", 2.7, reflect.TypeOf(0), nil},
			{"fractional decimal to int", decimal.RequireFromString("1.5"), reflect.TypeOf(0), nil},
			{"whole decimal to int", decimal.RequireFromString("12"), reflect.TypeOf(0), 12},
			{"float beyond int64", 1e19, reflect.TypeOf(int64(0)), nil},
			{"negative to uint", float64(-1), reflect.TypeOf(uint(0)), nil},
			{"float32 overflow", 1e300, reflect.TypeOf(float32(0)), nil},
			{"float32 fits", 0.5, reflect.TypeOf(float32(0)), float32(0.5)},
		} {
			t.Run(tc.name, func(t *testing.T) {
				v, err := ToType(tc.input, tc.into)
				if tc.want == nil {
					assert.Error(t, err)
					return
				}
				require.NoError(t, err)
				assert.Equal(t, tc.want, v.Interface())
			})
		}
	})

	t.Run("incompatible", func(t *testing.T) {
		_, err := ToType("not a number", reflect.TypeOf(0))
		assert.Error(t, err)
	})
}
