package evaluator

import (
	"strconv"
	"strings"

	"github.com/shibukawa/tableassert"
	"github.com/shibukawa/tableassert/value"
)

// NormalizeCount converts a fetched COUNT(*) result into an int64. Integral numbers
// and integer strings are accepted; anything else is a numeric conversion failure.
func NormalizeCount(v value.Value) (int64, error) {
	switch v.Kind() {
	case value.KindNumber:
		d := v.Decimal()
		if d.IsInteger() && d.BigInt().IsInt64() {
			return d.IntPart(), nil
		}
	case value.KindString:
		n, err := strconv.ParseInt(strings.TrimSpace(v.Str()), 10, 64)
		if err == nil {
			return n, nil
		}
	case value.KindNull, value.KindBool, value.KindList, value.KindMap:
	}

	return 0, tableassert.NewAssertionError(tableassert.ErrNumericConversion,
		"Failed to convert value to a numeric type.",
		map[string]any{"value": v})
}
