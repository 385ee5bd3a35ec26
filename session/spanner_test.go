package session

import (
	"context"
	"os"
	"testing"

	sppb "cloud.google.com/go/spanner/apiv1/spannerpb"
	"github.com/shibukawa/tableassert"
	"github.com/shibukawa/tableassert/sqlbuild"
	"github.com/shibukawa/tableassert/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func spannerType(code sppb.TypeCode) *sppb.Type {
	return &sppb.Type{Code: code}
}

func TestConvertSpannerValue(t *testing.T) {
	tests := []struct {
		name string
		typ  *sppb.Type
		raw  *structpb.Value
		want value.Value
	}{
		{"null", spannerType(sppb.TypeCode_STRING), structpb.NewNullValue(), value.Null()},
		{"string", spannerType(sppb.TypeCode_STRING), structpb.NewStringValue("Example Book"), value.String("Example Book")},
		{"int64 travels as string", spannerType(sppb.TypeCode_INT64), structpb.NewStringValue("42"), value.Int(42)},
		{"numeric", spannerType(sppb.TypeCode_NUMERIC), structpb.NewStringValue("12.50"), value.Float(12.5)},
		{"float64", spannerType(sppb.TypeCode_FLOAT64), structpb.NewNumberValue(1.25), value.Float(1.25)},
		{"float64 NaN", spannerType(sppb.TypeCode_FLOAT64), structpb.NewStringValue("NaN"), value.String("NaN")},
		{"bool", spannerType(sppb.TypeCode_BOOL), structpb.NewBoolValue(true), value.Bool(true)},
		{"timestamp", spannerType(sppb.TypeCode_TIMESTAMP), structpb.NewStringValue("2024-01-02T03:04:05Z"), value.String("2024-01-02T03:04:05Z")},
		{
			"json",
			spannerType(sppb.TypeCode_JSON),
			structpb.NewStringValue(`{"a":1,"tags":["x"]}`),
			value.Map(map[string]value.Value{"a": value.Int(1), "tags": value.List(value.String("x"))}),
		},
		{
			"array of int64",
			&sppb.Type{Code: sppb.TypeCode_ARRAY, ArrayElementType: spannerType(sppb.TypeCode_INT64)},
			structpb.NewListValue(&structpb.ListValue{Values: []*structpb.Value{
				structpb.NewStringValue("1"), structpb.NewNullValue(), structpb.NewStringValue("3"),
			}}),
			value.List(value.Int(1), value.Null(), value.Int(3)),
		},
		{
			"struct",
			&sppb.Type{Code: sppb.TypeCode_STRUCT, StructType: &sppb.StructType{Fields: []*sppb.StructType_Field{
				{Name: "Id", Type: spannerType(sppb.TypeCode_INT64)},
				{Name: "Name", Type: spannerType(sppb.TypeCode_STRING)},
			}}},
			structpb.NewListValue(&structpb.ListValue{Values: []*structpb.Value{
				structpb.NewStringValue("5"), structpb.NewStringValue("five"),
			}}),
			value.Map(map[string]value.Value{"Id": value.Int(5), "Name": value.String("five")}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := convertSpannerValue(tt.typ, tt.raw)
			require.NoError(t, err)
			assert.True(t, value.Equal(tt.want, got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestConvertSpannerValue_InvalidInteger(t *testing.T) {
	_, err := convertSpannerValue(spannerType(sppb.TypeCode_INT64), structpb.NewStringValue("abc"))
	assert.ErrorIs(t, err, tableassert.ErrUnsupportedValue)
}

// Runs against the Cloud Spanner emulator when SPANNER_EMULATOR_HOST is set. The
// database named by the SPANNER_TEST_* variables must contain a Users table.
func TestSpannerHandle_Emulator(t *testing.T) {
	for _, env := range []string{EmulatorHostEnv, "SPANNER_TEST_PROJECT", "SPANNER_TEST_INSTANCE", "SPANNER_TEST_DATABASE"} {
		if os.Getenv(env) == "" {
			t.Skipf("%s is not set", env)
		}
	}

	ctx := context.Background()

	h, err := Open(ctx, tableassert.ConnectionConfig{
		Driver:     "spanner",
		ProjectID:  os.Getenv("SPANNER_TEST_PROJECT"),
		InstanceID: os.Getenv("SPANNER_TEST_INSTANCE"),
		DatabaseID: os.Getenv("SPANNER_TEST_DATABASE"),
	})
	require.NoError(t, err)
	defer h.Close()

	require.NoError(t, h.ResetTables(ctx, []string{"Users"}))

	stmt, err := sqlbuild.NewBuilder(tableassert.DialectSpanner).Count("Users", nil)
	require.NoError(t, err)

	rows, err := h.Query(ctx, stmt)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, value.Equal(value.Int(0), rows[0]["total"]))
}

func TestSpannerClientOptions(t *testing.T) {
	t.Setenv(EmulatorHostEnv, "")

	assert.Len(t, spannerClientOptions(tableassert.ConnectionConfig{}), 1)
	assert.Len(t, spannerClientOptions(tableassert.ConnectionConfig{EmulatorHost: "localhost:9010"}), 2)

	t.Setenv(EmulatorHostEnv, "localhost:9010")
	assert.Len(t, spannerClientOptions(tableassert.ConnectionConfig{}), 2)
}
