// Package jsonval models JSON values as a closed tagged variant so the
// flattening and validation routines can match exhaustively instead of
// type-switching on interface{} at every call site.
package jsonval

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind discriminates the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	}
	return "invalid"
}

// Value is one JSON value: string | number | boolean | null | array | object.
// The zero Value is null.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	arr  []Value
	obj  map[string]Value
}

// Null returns the null value.
func Null() Value { return Value{kind: KindNull} }

// String wraps s.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number wraps f.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Bool wraps b.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Array wraps elems.
func Array(elems ...Value) Value { return Value{kind: KindArray, arr: elems} }

// Object wraps fields. The map is referenced, not copied.
func Object(fields map[string]Value) Value { return Value{kind: KindObject, obj: fields} }

// Kind reports which variant v holds.
func (v Value) Kind() Kind { return v.kind }

// Str returns the string payload; valid only for KindString.
func (v Value) Str() string { return v.str }

// Num returns the numeric payload; valid only for KindNumber.
func (v Value) Num() float64 { return v.num }

// Boolean returns the bool payload; valid only for KindBool.
func (v Value) Boolean() bool { return v.b }

// Elems returns the array payload; valid only for KindArray.
func (v Value) Elems() []Value { return v.arr }

// Fields returns the object payload; valid only for KindObject.
func (v Value) Fields() map[string]Value { return v.obj }

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// FromAny converts a decoded encoding/json value (nil, bool, float64, string,
// []any, map[string]any) into a Value. Unknown Go types become their string
// rendering so callers never observe a partial conversion.
func FromAny(raw any) Value {
	switch t := raw.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case float64:
		return Number(t)
	case string:
		return String(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return String(t.String())
		}
		return Number(f)
	case []any:
		elems := make([]Value, 0, len(t))
		for _, e := range t {
			elems = append(elems, FromAny(e))
		}
		return Array(elems...)
	case map[string]any:
		fields := make(map[string]Value, len(t))
		for k, e := range t {
			fields[k] = FromAny(e)
		}
		return Object(fields)
	default:
		return String(fmt.Sprintf("%v", raw))
	}
}

// ToAny converts v back into the encoding/json representation.
func (v Value) ToAny() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindArray:
		out := make([]any, 0, len(v.arr))
		for _, e := range v.arr {
			out = append(out, e.ToAny())
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.obj))
		for k, e := range v.obj {
			out[k] = e.ToAny()
		}
		return out
	}
	return nil
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.kind {
	case KindArray:
		elems := make([]Value, len(v.arr))
		for i, e := range v.arr {
			elems[i] = e.Clone()
		}
		return Array(elems...)
	case KindObject:
		fields := make(map[string]Value, len(v.obj))
		for k, e := range v.obj {
			fields[k] = e.Clone()
		}
		return Object(fields)
	default:
		return v
	}
}

// Merge combines v with next. When both are objects the fields merge
// shallowly with next winning on collisions; otherwise next replaces v.
func (v Value) Merge(next Value) Value {
	if v.kind != KindObject || next.kind != KindObject {
		return next.Clone()
	}
	out := make(map[string]Value, len(v.obj)+len(next.obj))
	for k, e := range v.obj {
		out[k] = e.Clone()
	}
	for k, e := range next.obj {
		out[k] = e.Clone()
	}
	return Object(out)
}

// MarshalJSON renders the wrapped value.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.ToAny())
}

// UnmarshalJSON parses any JSON value.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = FromAny(raw)
	return nil
}

// FormatNumber renders f the way the flattened projection and tool results
// expect: integers without a decimal point.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Flatten produces the textual projection used for relevance scoring: every
// string, number, and boolean leaf concatenated in encounter order, object
// fields visited in sorted key order for determinism. When withKeys is true
// the object keys themselves join the projection.
func (v Value) Flatten(withKeys bool) string {
	var b strings.Builder
	v.flattenInto(&b, withKeys)
	return strings.TrimSpace(b.String())
}

func (v Value) flattenInto(b *strings.Builder, withKeys bool) {
	switch v.kind {
	case KindNull:
	case KindString:
		writeSpaced(b, v.str)
	case KindNumber:
		writeSpaced(b, FormatNumber(v.num))
	case KindBool:
		writeSpaced(b, strconv.FormatBool(v.b))
	case KindArray:
		for _, e := range v.arr {
			e.flattenInto(b, withKeys)
		}
	case KindObject:
		keys := make([]string, 0, len(v.obj))
		for k := range v.obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if withKeys {
				writeSpaced(b, k)
			}
			v.obj[k].flattenInto(b, withKeys)
		}
	}
}

func writeSpaced(b *strings.Builder, s string) {
	if s == "" {
		return
	}
	if b.Len() > 0 {
		b.WriteByte(' ')
	}
	b.WriteString(s)
}
