package cachewire

import (
	"encoding/json"
	"reflect"
)

// Sizer estimates the in-memory footprint of a cached value in bytes. The
// estimate drives size-limit eviction, so implementations should be cheap
// and deterministic rather than exact.
type Sizer[V any] interface {
	EstimateSize(value V) int64
}

// SizerFunc adapts a function to the Sizer interface.
type SizerFunc[V any] func(value V) int64

func (f SizerFunc[V]) EstimateSize(value V) int64 { return f(value) }

const (
	// scalarSize is charged for values with no meaningful serialized form.
	scalarSize = 8
	// fallbackSize is charged when serialization fails (e.g. cyclic values).
	fallbackSize = 1024
)

// DefaultSizer estimates sizes the way the cache accounts for them:
// strings cost two bytes per UTF-16 code unit, structured values (maps,
// slices, arrays, structs, pointers) cost twice their JSON length with a
// fixed 1024-byte fallback when serialization fails, and anything else is
// charged a flat 8 bytes. Serialization errors are swallowed.
func DefaultSizer[V any]() Sizer[V] {
	return SizerFunc[V](func(value V) int64 {
		return estimateSize(any(value))
	})
}

func estimateSize(v any) int64 {
	if v == nil {
		return scalarSize
	}

	if s, ok := v.(string); ok {
		return int64(utf16Len(s)) * 2
	}

	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Ptr, reflect.Interface:
		data, err := json.Marshal(v)
		if err != nil {
			return fallbackSize
		}
		return int64(len(data)) * 2
	default:
		return scalarSize
	}
}

// utf16Len counts UTF-16 code units: one per BMP rune, two per rune that
// needs a surrogate pair.
func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n++
		if r > 0xFFFF {
			n++
		}
	}
	return n
}
