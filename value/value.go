// Package value holds the closed set of column value shapes that expectations and
// fetched rows are expressed in, and the comparison rules between them.
package value

import (
	"sort"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
)

// Kind enumerates the shapes a Value can take.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is a column value: a scalar, an ordered list of values or a mapping from
// string keys to values. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	n    decimal.Decimal
	s    string
	list []Value
	m    map[string]Value
}

// Row is one fetched row keyed by column name.
type Row map[string]Value

// Null returns the null value.
func Null() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Number wraps a decimal.
func Number(d decimal.Decimal) Value { return Value{kind: KindNumber, n: d} }

// Int wraps an integer.
func Int(i int64) Value { return Number(decimal.NewFromInt(i)) }

// Float wraps a float.
func Float(f float64) Value { return Number(decimal.NewFromFloat(f)) }

// List wraps a sequence of values.
func List(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}

	return Value{kind: KindList, list: items}
}

// Map wraps a mapping of values.
func Map(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}

	return Value{kind: KindMap, m: m}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) Bool() bool { return v.b }

func (v Value) Str() string { return v.s }

func (v Value) Decimal() decimal.Decimal { return v.n }

func (v Value) Items() []Value { return v.list }

func (v Value) Fields() map[string]Value { return v.m }

// Field returns the value under key; a missing key reads as null.
func (v Value) Field(key string) Value {
	return v.m[key]
}

// Keys returns the mapping keys in sorted order.
func (v Value) Keys() []string {
	keys := make([]string, 0, len(v.m))
	for k := range v.m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// Native converts the value to plain Go values: nil, bool, int64 or float64, string,
// []any and map[string]any.
func (v Value) Native() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindNumber:
		if v.n.IsInteger() && v.n.BigInt().IsInt64() {
			return v.n.IntPart()
		}

		f, _ := v.n.Float64()

		return f
	case KindString:
		return v.s
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Native()
		}

		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, item := range v.m {
			out[k] = item.Native()
		}

		return out
	default:
		return nil
	}
}

// MarshalJSON renders the value as JSON. Numbers keep their exact decimal text.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return []byte(v.n.String()), nil
	case KindList:
		return jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(v.list)
	case KindMap:
		return jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(v.m)
	default:
		return jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(v.Native())
	}
}

// String renders the value as compact JSON, for messages.
func (v Value) String() string {
	data, err := v.MarshalJSON()
	if err != nil {
		return "<invalid>"
	}

	return string(data)
}
