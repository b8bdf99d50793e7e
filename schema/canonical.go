package schema

import (
	"fmt"
	"math"
	"reflect"
	"time"
)

var timeType = reflect.TypeOf(time.Time{})

// canonicalAny rewrites a composite value into the one shape every read
// path produces: []any for slices and arrays, map[string]any for maps,
// int64 (uint64 above MaxInt64) for integers, float64 for floats and UTC
// time.Time. Byte slices are copied. It is idempotent, so values coming
// from callers, storage rows and cache snapshots compare equal.
func canonicalAny(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch x := v.(type) {
	case string, bool, int64, float64:
		return x, nil
	case []byte:
		return append([]byte(nil), x...), nil
	case time.Time:
		return x.UTC(), nil
	}
	return canonicalValue(reflect.ValueOf(v))
}

func canonicalValue(rv reflect.Value) (any, error) {
	switch rv.Kind() {
	case reflect.Invalid:
		return nil, nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return canonicalValue(rv.Elem())
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n := rv.Uint()
		if n > math.MaxInt64 {
			return n, nil
		}
		return int64(n), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Slice:
		if rv.IsNil() {
			return nil, nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return append([]byte(nil), rv.Bytes()...), nil
		}
		return canonicalSlice(rv)
	case reflect.Array:
		return canonicalSlice(rv)
	case reflect.Map:
		if rv.IsNil() {
			return nil, nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k, err := canonicalValue(iter.Key())
			if err != nil {
				return nil, err
			}
			v, err := canonicalValue(iter.Value())
			if err != nil {
				return nil, err
			}
			out[fmt.Sprint(k)] = v
		}
		return out, nil
	case reflect.Struct:
		if rv.Type() == timeType {
			return rv.Interface().(time.Time).UTC(), nil
		}
	}
	return nil, fmt.Errorf("unsupported composite value of type %s", rv.Type())
}

func canonicalSlice(rv reflect.Value) ([]any, error) {
	out := make([]any, rv.Len())
	for i := range out {
		v, err := canonicalValue(rv.Index(i))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
