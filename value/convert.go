package value

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"time"

	"github.com/shibukawa/tableassert"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// FromNative converts a decoded driver or document value into a Value.
// []byte is read as text and time.Time as an RFC 3339 string.
func FromNative(raw any) (Value, error) {
	switch v := raw.(type) {
	case nil:
		return Null(), nil
	case Value:
		return v, nil
	case bool:
		return Bool(v), nil
	case string:
		return String(v), nil
	case []byte:
		if v == nil {
			return Null(), nil
		}

		return String(string(v)), nil
	case int:
		return Int(int64(v)), nil
	case int8:
		return Int(int64(v)), nil
	case int16:
		return Int(int64(v)), nil
	case int32:
		return Int(int64(v)), nil
	case int64:
		return Int(v), nil
	case uint:
		return Number(decimal.NewFromUint64(uint64(v))), nil
	case uint8:
		return Int(int64(v)), nil
	case uint16:
		return Int(int64(v)), nil
	case uint32:
		return Int(int64(v)), nil
	case uint64:
		return Number(decimal.NewFromUint64(v)), nil
	case float32:
		return fromFloat(float64(v))
	case float64:
		return fromFloat(v)
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return Value{}, fmt.Errorf("%w: number %q", tableassert.ErrUnsupportedValue, v)
		}

		return Number(d), nil
	case decimal.Decimal:
		return Number(v), nil
	case *big.Int:
		if v == nil {
			return Null(), nil
		}

		return Number(decimal.NewFromBigInt(v, 0)), nil
	case *big.Rat:
		if v == nil {
			return Null(), nil
		}

		return Number(decimal.NewFromBigRat(v, 38)), nil
	case time.Time:
		return String(v.UTC().Format(time.RFC3339Nano)), nil
	case []any:
		items := make([]Value, len(v))
		for i, item := range v {
			converted, err := FromNative(item)
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}

			items[i] = converted
		}

		return List(items...), nil
	case map[string]any:
		fields := make(map[string]Value, len(v))
		for key, item := range v {
			converted, err := FromNative(item)
			if err != nil {
				return Value{}, fmt.Errorf("key %s: %w", key, err)
			}

			fields[key] = converted
		}

		return Map(fields), nil
	case fmt.Stringer:
		return String(v.String()), nil
	default:
		return fromReflect(raw)
	}
}

// fromReflect handles typed slices and pointers (e.g. []int64, []string, *string).
func fromReflect(raw any) (Value, error) {
	rv := reflect.ValueOf(raw)

	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return Null(), nil
		}

		return FromNative(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		items := make([]Value, rv.Len())
		for i := range rv.Len() {
			converted, err := FromNative(rv.Index(i).Interface())
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}

			items[i] = converted
		}

		return List(items...), nil
	default:
		return Value{}, fmt.Errorf("%w: %T", tableassert.ErrUnsupportedValue, raw)
	}
}

// NaN and infinities have no decimal form; they read as their text.
func fromFloat(f float64) (Value, error) {
	switch {
	case math.IsNaN(f):
		return String("NaN"), nil
	case math.IsInf(f, 1):
		return String("Infinity"), nil
	case math.IsInf(f, -1):
		return String("-Infinity"), nil
	}

	return Float(f), nil
}

// FromJSON decodes JSON text, keeping numbers exact.
func FromJSON(text string) (Value, error) {
	if !gjson.Valid(text) {
		return Value{}, fmt.Errorf("%w: invalid JSON text", tableassert.ErrUnsupportedValue)
	}

	return fromResult(gjson.Parse(text))
}

func fromResult(r gjson.Result) (Value, error) {
	switch r.Type {
	case gjson.Null:
		return Null(), nil
	case gjson.False:
		return Bool(false), nil
	case gjson.True:
		return Bool(true), nil
	case gjson.String:
		return String(r.Str), nil
	case gjson.Number:
		d, err := decimal.NewFromString(r.Raw)
		if err != nil {
			return Value{}, fmt.Errorf("%w: number %s", tableassert.ErrUnsupportedValue, r.Raw)
		}

		return Number(d), nil
	case gjson.JSON:
		return fromComposite(r)
	default:
		return Value{}, fmt.Errorf("%w: JSON %s", tableassert.ErrUnsupportedValue, r.Raw)
	}
}

func fromComposite(r gjson.Result) (Value, error) {
	var err error

	if r.IsArray() {
		items := []Value{}

		r.ForEach(func(_, item gjson.Result) bool {
			var converted Value

			converted, err = fromResult(item)
			if err != nil {
				return false
			}

			items = append(items, converted)

			return true
		})

		if err != nil {
			return Value{}, err
		}

		return List(items...), nil
	}

	fields := map[string]Value{}

	r.ForEach(func(key, item gjson.Result) bool {
		var converted Value

		converted, err = fromResult(item)
		if err != nil {
			return false
		}

		fields[key.Str] = converted

		return true
	})

	if err != nil {
		return Value{}, err
	}

	return Map(fields), nil
}
