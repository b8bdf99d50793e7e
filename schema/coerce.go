package schema

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Coerce converts v to the canonical Go type of f.Type:
// string, int64, float64, bool, time.Time, []byte, or for TypeAny the
// canonical composite shape ([]any, map[string]any and normalized scalars).
// Drivers and decoders hand back many representations of the same value
// (int8 from msgpack, []byte from mysql, int64 booleans from sqlite).
func Coerce(f Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch f.Type {
	case TypeString:
		switch x := v.(type) {
		case string:
			return x, nil
		case []byte:
			return string(x), nil
		case fmt.Stringer:
			return x.String(), nil
		}
		if n, ok := toInt64(v); ok {
			return strconv.FormatInt(n, 10), nil
		}
	case TypeInt:
		if n, ok := toInt64(v); ok {
			return n, nil
		}
		switch x := v.(type) {
		case float64:
			if x == math.Trunc(x) {
				return int64(x), nil
			}
		case float32:
			if float64(x) == math.Trunc(float64(x)) {
				return int64(x), nil
			}
		case string:
			if n, err := strconv.ParseInt(x, 10, 64); err == nil {
				return n, nil
			}
		case []byte:
			if n, err := strconv.ParseInt(string(x), 10, 64); err == nil {
				return n, nil
			}
		}
	case TypeFloat:
		switch x := v.(type) {
		case float64:
			return x, nil
		case float32:
			return float64(x), nil
		case string:
			if n, err := strconv.ParseFloat(x, 64); err == nil {
				return n, nil
			}
		case []byte:
			if n, err := strconv.ParseFloat(string(x), 64); err == nil {
				return n, nil
			}
		}
		if n, ok := toInt64(v); ok {
			return float64(n), nil
		}
	case TypeBool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			if b, err := strconv.ParseBool(x); err == nil {
				return b, nil
			}
		case []byte:
			if b, err := strconv.ParseBool(string(x)); err == nil {
				return b, nil
			}
		}
		if n, ok := toInt64(v); ok {
			return n != 0, nil
		}
	case TypeTime:
		switch x := v.(type) {
		case time.Time:
			return x.UTC(), nil
		case string:
			return parseTime(f, x)
		case []byte:
			return parseTime(f, string(x))
		}
		if n, ok := toInt64(v); ok {
			return time.Unix(n, 0).UTC(), nil
		}
	case TypeBytes:
		switch x := v.(type) {
		case []byte:
			return append([]byte(nil), x...), nil
		case string:
			return []byte(x), nil
		}
	case TypeAny:
		cv, err := canonicalAny(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		return cv, nil
	}

	return nil, fmt.Errorf("field %s: cannot use %T as %s", f.Name, v, f.Type)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(f Field, s string) (any, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return nil, fmt.Errorf("field %s: cannot parse %q as time", f.Name, s)
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint:
		return int64(x), true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	}
	return 0, false
}
