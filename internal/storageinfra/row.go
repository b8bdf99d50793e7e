package storageinfra

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a load or single-row search matches nothing.
	ErrNotFound = errors.New("storage: no matching row")

	// ErrAmbiguous is returned when a single-row search matches more than one row.
	ErrAmbiguous = errors.New("storage: filter matched more than one row")

	// ErrEmptyFilter guards deletes that would otherwise remove a whole table.
	ErrEmptyFilter = errors.New("storage: refusing to delete without a filter")
)

// Row is a single record keyed by column name.
type Row map[string]any

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Filter is a conjunction of column equality predicates.
// A nil value matches rows where the column is NULL or absent.
type Filter map[string]any

// Keys returns the filter columns in sorted order so generated queries are stable.
func (f Filter) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Matches reports whether row satisfies every predicate of the filter.
func (f Filter) Matches(row Row) bool {
	for k, want := range f {
		if !Equal(row[k], want) {
			return false
		}
	}
	return true
}

// String renders the filter as sorted key=value pairs, for logs and errors.
func (f Filter) String() string {
	var b strings.Builder
	for i, k := range f.Keys() {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%v", k, f[k])
	}
	return b.String()
}

// Normalize maps the many driver representations of a scalar onto one:
// integers become int64, integral floats become int64, byte slices become
// strings and times are converted to UTC.
func Normalize(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		if x <= math.MaxInt64 {
			return int64(x)
		}
	case float32:
		return Normalize(float64(x))
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return int64(x)
		}
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC()
	}
	return v
}

// Equal compares two values after normalization.
func Equal(a, b any) bool {
	a, b = Normalize(a), Normalize(b)
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(a, b)
}

// CompareIDs orders primary key values: numbers numerically, strings
// lexically, numbers before strings.
func CompareIDs(a, b any) int {
	a, b = Normalize(a), Normalize(b)
	ia, aInt := a.(int64)
	ib, bInt := b.(int64)
	switch {
	case aInt && bInt:
		switch {
		case ia < ib:
			return -1
		case ia > ib:
			return 1
		}
		return 0
	case aInt:
		return -1
	case bInt:
		return 1
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
