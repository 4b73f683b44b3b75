package coerce

import (
	"fmt"
	"math"
	"reflect"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// Safe conversions between the loosely typed values scripts produce and the
// static types host code declares. Failures are reported as errors, never panics.

// ToString converts input to a string. Nil becomes "".
func ToString(input interface{}) string {
	if input == nil {
		return ""
	}
	if d, ok := input.(decimal.Decimal); ok {
		return d.String()
	}
	s, err := cast.ToStringE(input)
	if err != nil {
		return fmt.Sprintf("%v", input)
	}
	return s
}

// ToInt accepts numeric strings ("123"), whole floats (123.0) and the usual integer types.
func ToInt(input interface{}) (int, error) {
	if input == nil {
		return 0, nil
	}
	i, err := cast.ToIntE(normalize(input))
	if err != nil {
		return 0, fmt.Errorf("failed to coerce value '%v' (type %T) to int", input, input)
	}
	return i, nil
}

func ToInt64(input interface{}) (int64, error) {
	if input == nil {
		return 0, nil
	}
	i, err := cast.ToInt64E(normalize(input))
	if err != nil {
		return 0, fmt.Errorf("failed to coerce value '%v' (type %T) to int64", input, input)
	}
	return i, nil
}

func ToUint64(input interface{}) (uint64, error) {
	if input == nil {
		return 0, nil
	}
	u, err := cast.ToUint64E(normalize(input))
	if err != nil {
		return 0, fmt.Errorf("failed to coerce value '%v' (type %T) to uint64", input, input)
	}
	return u, nil
}

func ToFloat64(input interface{}) (float64, error) {
	if input == nil {
		return 0.0, nil
	}
	f, err := cast.ToFloat64E(normalize(input))
	if err != nil {
		return 0.0, fmt.Errorf("failed to coerce value '%v' (type %T) to float64", input, input)
	}
	return f, nil
}

// ToBool understands true/false, 1/0 and their string forms.
func ToBool(input interface{}) (bool, error) {
	if input == nil {
		return false, nil
	}
	b, err := cast.ToBoolE(input)
	if err != nil {
		return false, fmt.Errorf("failed to coerce value '%v' (type %T) to bool", input, input)
	}
	return b, nil
}

func ToMap(input interface{}) (map[string]interface{}, error) {
	if input == nil {
		return nil, nil
	}
	m, err := cast.ToStringMapE(input)
	if err != nil {
		return nil, fmt.Errorf("failed to coerce value (type %T) to map", input)
	}
	return m, nil
}

func ToSlice(input interface{}) ([]interface{}, error) {
	if input == nil {
		return nil, nil
	}
	s, err := cast.ToSliceE(input)
	if err != nil {
		return nil, fmt.Errorf("failed to coerce value (type %T) to slice", input)
	}
	return s, nil
}

// ToDecimal converts numbers and numeric strings to an exact decimal.
func ToDecimal(input interface{}) (decimal.Decimal, error) {
	switch v := input.(type) {
	case nil:
		return decimal.Zero, nil
	case decimal.Decimal:
		return v, nil
	case *decimal.Decimal:
		if v == nil {
			return decimal.Zero, nil
		}
		return *v, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to coerce value '%v' to decimal", input)
		}
		return d, nil
	}
	i, err := cast.ToInt64E(input)
	if err == nil {
		return decimal.NewFromInt(i), nil
	}
	d, err := decimal.NewFromString(ToString(input))
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to coerce value '%v' (type %T) to decimal", input, input)
	}
	return d, nil
}

func ToFloat64Def(input interface{}, defaultVal float64) float64 {
	val, err := ToFloat64(input)
	if err != nil {
		return defaultVal
	}
	return val
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

// ToType converts input into a value assignable to t. Slices and string-keyed
// maps are converted element by element.
func ToType(input interface{}, t reflect.Type) (reflect.Value, error) {
	if input == nil {
		return reflect.Zero(t), nil
	}
	v := reflect.ValueOf(input)
	if v.Type().AssignableTo(t) {
		out := reflect.New(t).Elem()
		out.Set(v)
		return out, nil
	}

	switch t.Kind() {
	case reflect.String:
		return reflect.ValueOf(ToString(input)).Convert(t), nil
	case reflect.Bool:
		b, err := ToBool(input)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(b).Convert(t), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if err := checkWhole(input, t, math.MinInt64, math.MaxInt64); err != nil {
			return reflect.Value{}, err
		}
		i, err := ToInt64(input)
		if err != nil {
			return reflect.Value{}, err
		}
		out := reflect.New(t).Elem()
		if out.OverflowInt(i) {
			return reflect.Value{}, overflow(input, t)
		}
		out.SetInt(i)
		return out, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if err := checkWhole(input, t, 0, math.MaxUint64); err != nil {
			return reflect.Value{}, err
		}
		u, err := ToUint64(input)
		if err != nil {
			return reflect.Value{}, err
		}
		out := reflect.New(t).Elem()
		if out.OverflowUint(u) {
			return reflect.Value{}, overflow(input, t)
		}
		out.SetUint(u)
		return out, nil
	case reflect.Float32, reflect.Float64:
		f, err := ToFloat64(input)
		if err != nil {
			return reflect.Value{}, err
		}
		out := reflect.New(t).Elem()
		if out.OverflowFloat(f) {
			return reflect.Value{}, overflow(input, t)
		}
		out.SetFloat(f)
		return out, nil
	case reflect.Slice:
		items, err := ToSlice(input)
		if err != nil {
			return reflect.Value{}, err
		}
		out := reflect.MakeSlice(t, len(items), len(items))
		for i, item := range items {
			ev, err := ToType(item, t.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			out.Index(i).Set(ev)
		}
		return out, nil
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			break
		}
		m, err := ToMap(input)
		if err != nil {
			return reflect.Value{}, err
		}
		out := reflect.MakeMapWithSize(t, len(m))
		for k, item := range m {
			ev, err := ToType(item, t.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("key %q: %w", k, err)
			}
			out.SetMapIndex(reflect.ValueOf(k).Convert(t.Key()), ev)
		}
		return out, nil
	case reflect.Struct:
		if t == decimalType {
			d, err := ToDecimal(input)
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(d), nil
		}
	}

	if v.Type().ConvertibleTo(t) {
		return v.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot convert %T to %s", input, t)
}

// checkWhole rejects fractional, non-finite and out-of-range floats headed for
// an integer type.
func checkWhole(input interface{}, t reflect.Type, min, max float64) error {
	var f float64
	switch v := normalize(input).(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return fmt.Errorf("cannot convert %v to %s: not a whole number", input, t)
	}
	if f < min || f >= max {
		return overflow(input, t)
	}
	return nil
}

func overflow(input interface{}, t reflect.Type) error {
	return fmt.Errorf("cannot convert %v to %s: out of range", input, t)
}

// normalize lets cast handle decimals, which it does not know about.
func normalize(input interface{}) interface{} {
	switch v := input.(type) {
	case decimal.Decimal:
		return v.InexactFloat64()
	case *decimal.Decimal:
		if v == nil {
			return 0
		}
		return v.InexactFloat64()
	}
	return input
}
