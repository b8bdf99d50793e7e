package cache

import (
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

// KeySeparator defines the delimiter between the entity type and its id.
const KeySeparator = "_"

// KeyBuilder derives the cache key of an entity from its type name and primary key.
// It is responsible for producing stable keys across processes.
type KeyBuilder interface {
	EntityKey(typeName string, id any) string
}

// defaultKeyBuilder produces "<Type>_<id>" keys. Keys that exceed maxLen or
// contain whitespace or control bytes are replaced by "<Type>_h<xxhash64>".
type defaultKeyBuilder struct {
	maxLen int
}

// NewKeyBuilder creates a key builder bounded by maxLen bytes. A maxLen of
// zero disables the bound.
func NewKeyBuilder(maxLen int) KeyBuilder {
	return &defaultKeyBuilder{maxLen: maxLen}
}

// NewDefaultKeyBuilder creates a key builder using DefaultMaxKeyLength.
func NewDefaultKeyBuilder() KeyBuilder {
	return NewKeyBuilder(DefaultMaxKeyLength)
}

func (b *defaultKeyBuilder) EntityKey(typeName string, id any) string {
	key := typeName + KeySeparator + serializeID(id)
	if (b.maxLen > 0 && len(key) > b.maxLen) || !keySafe(key) {
		return fmt.Sprintf("%s%sh%016x", typeName, KeySeparator, xxhash.Sum64String(key))
	}
	return key
}

// keySafe rejects bytes memcached style backends refuse in keys.
func keySafe(key string) bool {
	for i := 0; i < len(key); i++ {
		if key[i] <= ' ' || key[i] == 0x7f {
			return false
		}
	}
	return true
}

// serializeID renders a primary key value. Integer kinds render in base 10
// regardless of width, so 5, int64(5) and uint8(5) share one key.
func serializeID(v any) string {
	switch x := v.(type) {
	case nil:
		return "nil"
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return x.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return "nil"
		}
		return serializeID(rv.Elem().Interface())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f == float64(int64(f)) {
			return strconv.FormatInt(int64(f), 10)
		}
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return fmt.Sprintf("%v", v)
}
