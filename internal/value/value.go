// Package value provides the tagged-variant representation used by the
// condition evaluator and template resolver. Untyped nested data is ingested
// once at the boundary; every downstream traversal pattern-matches on the
// variant instead of type-probing at each level.
package value

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Kind discriminates the variant.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindMap
	// KindOpaque carries values of unrecognized types unchanged. They are
	// not scalars: consumers decide whether they may surface at all.
	KindOpaque
)

// Value is one node of ingested data. Scalars keep their original Go value
// so a pure template placeholder can surface the native type unchanged.
type Value struct {
	kind Kind
	raw  any
	list []Value
	obj  map[string]Value
}

// Null is the absent/null value.
var Null = Value{kind: KindNull}

// FromAny ingests arbitrary parsed data. The conversion is total: values of
// unrecognized types are carried opaquely rather than dropped or stringified.
func FromAny(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null
	case Value:
		return t
	case bool:
		return Value{kind: KindBool, raw: t}
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return Value{kind: KindNumber, raw: t}
	case string:
		return Value{kind: KindString, raw: t}
	case time.Time, uuid.UUID:
		// Dates and UUIDs stay typed for pure-placeholder resolution but
		// compare and interpolate through their string form.
		return Value{kind: KindString, raw: t}
	case []any:
		list := make([]Value, len(t))
		for i, el := range t {
			list[i] = FromAny(el)
		}
		return Value{kind: KindList, list: list}
	case []string:
		list := make([]Value, len(t))
		for i, el := range t {
			list[i] = FromAny(el)
		}
		return Value{kind: KindList, list: list}
	case map[string]any:
		obj := make(map[string]Value, len(t))
		for k, el := range t {
			obj[k] = FromAny(el)
		}
		return Value{kind: KindMap, obj: obj}
	case map[string]string:
		obj := make(map[string]Value, len(t))
		for k, el := range t {
			obj[k] = FromAny(el)
		}
		return Value{kind: KindMap, obj: obj}
	default:
		return Value{kind: KindOpaque, raw: t}
	}
}

// Map builds a map value from already-ingested children.
func Map(obj map[string]Value) Value {
	return Value{kind: KindMap, obj: obj}
}

// Kind returns the variant discriminator.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null/absent.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsScalar reports whether the value is a bool, number, or string.
func (v Value) IsScalar() bool {
	return v.kind == KindBool || v.kind == KindNumber || v.kind == KindString
}

// Any returns the underlying Go value. Scalars come back exactly as
// ingested; containers are rebuilt as map[string]any / []any.
func (v Value) Any() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindList:
		out := make([]any, len(v.list))
		for i, el := range v.list {
			out[i] = el.Any()
		}
		return out
	case KindMap:
		m := make(map[string]any, len(v.obj))
		for k, el := range v.obj {
			m[k] = el.Any()
		}
		return m
	default:
		return v.raw
	}
}

// Field looks up a map key. The second return is false for non-maps and
// missing keys.
func (v Value) Field(name string) (Value, bool) {
	if v.kind != KindMap {
		return Null, false
	}
	el, ok := v.obj[name]
	return el, ok
}

// Items returns the list elements, or nil for non-lists.
func (v Value) Items() []Value {
	if v.kind != KindList {
		return nil
	}
	return v.list
}

// Keys returns the sorted key set of a map value.
func (v Value) Keys() []string {
	if v.kind != KindMap {
		return nil
	}
	keys := make([]string, 0, len(v.obj))
	for k := range v.obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String renders the comparison form of the value. Condition comparisons are
// always string-coerced, never type-aware; this is the single place that
// coercion is defined.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindList:
		return fmt.Sprintf("%v", v.Any())
	case KindMap:
		return fmt.Sprintf("%v", v.Any())
	default:
		return fmt.Sprintf("%v", v.raw)
	}
}
