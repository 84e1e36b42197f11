// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package world

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Kind identifies the type held by a Value.
type Kind uint8

// Value kinds.
const (
	KindNull Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindRef
	KindList
	KindMap
)

var kindNames = [...]string{"null", "string", "int", "float", "bool", "ref", "list", "map"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Value is a typed property value. The zero Value is null.
// Values are immutable once built; list and map accessors return copies.
type Value struct {
	kind Kind
	s    string
	n    int64
	f    float64
	ref  ulid.ULID
	list []Value
	m    map[string]Value
}

// Null is the null value.
var Null = Value{}

// String creates a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Int creates an integer value.
func Int(n int64) Value { return Value{kind: KindInt, n: n} }

// Float creates a float value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Bool creates a boolean value.
func Bool(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.n = 1
	}
	return v
}

// Ref creates an object reference value.
func Ref(id ulid.ULID) Value { return Value{kind: KindRef, ref: id} }

// List creates a list value.
func List(items ...Value) Value {
	return Value{kind: KindList, list: cloneList(items)}
}

// Map creates a map value.
func Map(m map[string]Value) Value {
	return Value{kind: KindMap, m: cloneMap(m)}
}

// Kind returns the value's kind.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string held by v.
func (v Value) Str() (string, bool) {
	return v.s, v.kind == KindString
}

// Int returns the integer held by v.
func (v Value) Int() (int64, bool) {
	return v.n, v.kind == KindInt
}

// Float returns the number held by v, converting integers.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.n), true
	default:
		return 0, false
	}
}

// Bool returns the boolean held by v.
func (v Value) Bool() (bool, bool) {
	return v.n != 0, v.kind == KindBool
}

// Ref returns the object reference held by v.
func (v Value) Ref() (ulid.ULID, bool) {
	return v.ref, v.kind == KindRef
}

// List returns a copy of the items held by v.
func (v Value) List() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return cloneList(v.list), true
}

// Map returns a copy of the entries held by v.
func (v Value) Map() (map[string]Value, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	return cloneMap(v.m), true
}

// Lookup returns one entry of a map value.
func (v Value) Lookup(key string) (Value, bool) {
	if v.kind != KindMap {
		return Null, false
	}
	item, ok := v.m[key]
	return item, ok
}

// Truthy follows the usual MOO rules: null, zero, empty string and empty
// collections are false.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNull:
		return false
	case KindString:
		return v.s != ""
	case KindInt, KindBool:
		return v.n != 0
	case KindFloat:
		return v.f != 0
	case KindRef:
		return v.ref != ulid.ULID{}
	case KindList:
		return len(v.list) > 0
	case KindMap:
		return len(v.m) > 0
	default:
		return false
	}
}

// Equal reports deep equality.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.s == o.s
	case KindInt, KindBool:
		return v.n == o.n
	case KindFloat:
		return v.f == o.f
	case KindRef:
		return v.ref == o.ref
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(o.m) {
			return false
		}
		for k, item := range v.m {
			other, ok := o.m[k]
			if !ok || !item.Equal(other) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// String renders v for display to players.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindString:
		return v.s
	case KindInt:
		return strconv.FormatInt(v.n, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.n != 0)
	case KindRef:
		return "#" + v.ref.String()
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.literal()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindMap:
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = strconv.Quote(k) + " -> " + v.m[k].literal()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return "?"
	}
}

// literal renders nested strings quoted.
func (v Value) literal() string {
	if v.kind == KindString {
		return strconv.Quote(v.s)
	}
	return v.String()
}

// ParseLiteral interprets player-typed text as a value: integers, floats,
// true/false, null, double-quoted strings, and #<id> references. Anything
// else is taken as a bare string.
func ParseLiteral(text string) Value {
	text = strings.TrimSpace(text)
	switch strings.ToLower(text) {
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	case "null":
		return Null
	}
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return Int(n)
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil && strings.ContainsAny(text, ".eE") {
		return Float(f)
	}
	if len(text) >= 2 && text[0] == '"' && text[len(text)-1] == '"' {
		if unquoted, err := strconv.Unquote(text); err == nil {
			return String(unquoted)
		}
		return String(text[1 : len(text)-1])
	}
	if strings.HasPrefix(text, "#") {
		if id, err := ulid.ParseStrict(text[1:]); err == nil {
			return Ref(id)
		}
	}
	return String(text)
}

// refKey marks an object reference in the JSON encoding.
const refKey = "$ref"

// MarshalJSON encodes v as natural JSON. References encode as {"$ref": "<id>"}.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.toJSON())
}

func (v Value) toJSON() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return v.n
	case KindFloat:
		return v.f
	case KindBool:
		return v.n != 0
	case KindRef:
		return map[string]string{refKey: v.ref.String()}
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.toJSON()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, item := range v.m {
			out[k] = item.toJSON()
		}
		return out
	default:
		return nil
	}
}

// UnmarshalJSON decodes the encoding produced by MarshalJSON. Whole numbers
// decode as integers.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return oops.Code(CodeInvalidObject).Wrapf(err, "decode value")
	}
	decoded, err := FromJSON(raw)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

// FromJSON converts a decoded JSON (or YAML) tree into a Value.
func FromJSON(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Null, nil
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return Int(n), nil
		}
		f, err := x.Float64()
		if err != nil {
			return Null, oops.Code(CodeInvalidObject).With("number", x.String()).Wrap(err)
		}
		return Float(f), nil
	case int:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case float64:
		if x == float64(int64(x)) {
			return Int(int64(x)), nil
		}
		return Float(x), nil
	case []any:
		items := make([]Value, len(x))
		for i, item := range x {
			val, err := FromJSON(item)
			if err != nil {
				return Null, err
			}
			items[i] = val
		}
		return Value{kind: KindList, list: items}, nil
	case map[string]any:
		if len(x) == 1 {
			if s, ok := x[refKey].(string); ok {
				id, err := ulid.ParseStrict(s)
				if err != nil {
					return Null, oops.Code(CodeInvalidObject).With("ref", s).Wrap(err)
				}
				return Ref(id), nil
			}
		}
		m := make(map[string]Value, len(x))
		for k, item := range x {
			val, err := FromJSON(item)
			if err != nil {
				return Null, err
			}
			m[k] = val
		}
		return Value{kind: KindMap, m: m}, nil
	default:
		return Null, oops.Code(CodeInvalidObject).Errorf("unsupported value type %T", raw)
	}
}

// GobEncode implements gob.GobEncoder using the JSON form.
func (v Value) GobEncode() ([]byte, error) {
	return v.MarshalJSON()
}

// GobDecode implements gob.GobDecoder.
func (v *Value) GobDecode(data []byte) error {
	return v.UnmarshalJSON(data)
}

func cloneList(items []Value) []Value {
	if items == nil {
		return nil
	}
	out := make([]Value, len(items))
	copy(out, items)
	return out
}

func cloneMap(m map[string]Value) map[string]Value {
	if m == nil {
		return nil
	}
	out := make(map[string]Value, len(m))
	for k, item := range m {
		out[k] = item
	}
	return out
}
