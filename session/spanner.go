package session

import (
	"context"
	"fmt"
	"os"

	"cloud.google.com/go/spanner"
	sppb "cloud.google.com/go/spanner/apiv1/spannerpb"
	"github.com/shibukawa/tableassert"
	"github.com/shibukawa/tableassert/sqlbuild"
	"github.com/shibukawa/tableassert/value"
	"github.com/shopspring/decimal"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/structpb"
)

// EmulatorHostEnv is read by the Spanner client to connect to an emulator.
const EmulatorHostEnv = "SPANNER_EMULATOR_HOST"

// SpannerHandle runs GoogleSQL statements through a Cloud Spanner client.
type SpannerHandle struct {
	id      string
	client  *spanner.Client
	owned   bool
	options Options
}

// OpenSpanner creates a Spanner client for the resolved connection. An emulator host
// is exported to the environment unless one is already set there.
func OpenSpanner(ctx context.Context, cfg tableassert.ConnectionConfig, o Options) (*SpannerHandle, error) {
	if cfg.EmulatorHost != "" && os.Getenv(EmulatorHostEnv) == "" {
		if err := os.Setenv(EmulatorHostEnv, cfg.EmulatorHost); err != nil {
			return nil, fmt.Errorf("failed to set %s: %w", EmulatorHostEnv, err)
		}
	}

	client, err := spanner.NewClient(ctx, cfg.DatabasePath(), spannerClientOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create spanner client: %w", err)
	}

	h := &SpannerHandle{id: newHandleID(), client: client, owned: true, options: o}
	o.Logger.Info("opened database handle", "handle", h.id, "driver", "spanner", "database", cfg.DatabasePath())

	return h, nil
}

// spannerClientOptions skips credential lookup when talking to an emulator.
func spannerClientOptions(cfg tableassert.ConnectionConfig) []option.ClientOption {
	opts := []option.ClientOption{option.WithUserAgent("tableassert")}

	if cfg.EmulatorHost != "" || os.Getenv(EmulatorHostEnv) != "" {
		opts = append(opts, option.WithoutAuthentication())
	}

	return opts
}

// BorrowSpanner wraps a caller-owned client. Close leaves client open.
func BorrowSpanner(client *spanner.Client, opts ...Option) *SpannerHandle {
	return &SpannerHandle{id: newHandleID(), client: client, options: newOptions(opts)}
}

func (h *SpannerHandle) ID() string { return h.id }

func (h *SpannerHandle) Dialect() tableassert.Dialect { return tableassert.DialectSpanner }

// Query executes stmt in a single-use read-only transaction.
func (h *SpannerHandle) Query(ctx context.Context, stmt sqlbuild.Statement) ([]value.Row, error) {
	iter := h.client.Single().Query(ctx, spanner.Statement{SQL: stmt.SQL, Params: stmt.NamedParams()})

	var result []value.Row

	err := iter.Do(func(r *spanner.Row) error {
		names := r.ColumnNames()
		row := make(value.Row, len(names))

		for i, name := range names {
			var gcv spanner.GenericColumnValue
			if err := r.Column(i, &gcv); err != nil {
				return fmt.Errorf("column %s: %w", name, err)
			}

			v, err := convertSpannerValue(gcv.Type, gcv.Value)
			if err != nil {
				return fmt.Errorf("column %s: %w", name, err)
			}

			row[name] = v
		}

		result = append(result, row)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// ResetTables deletes every row of tables with one batch DML transaction.
func (h *SpannerHandle) ResetTables(ctx context.Context, tables []string) error {
	stmts, err := deleteStatements(tableassert.DialectSpanner, tables)
	if err != nil {
		return err
	}

	batch := make([]spanner.Statement, len(stmts))
	for i, stmt := range stmts {
		batch[i] = spanner.NewStatement(stmt.SQL)
	}

	_, err = h.client.ReadWriteTransaction(ctx, func(ctx context.Context, txn *spanner.ReadWriteTransaction) error {
		_, err := txn.BatchUpdate(ctx, batch)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to reset tables: %w", err)
	}

	h.options.Logger.Info("reset tables", "handle", h.id, "tables", tables)

	return nil
}

// Close closes the client when the handle created it.
func (h *SpannerHandle) Close() error {
	if !h.owned {
		return nil
	}

	h.client.Close()
	h.options.Logger.Info("closed database handle", "handle", h.id)

	return nil
}

// convertSpannerValue decodes a wire value using its column type. INT64 and NUMERIC
// travel as strings, JSON as text; arrays and structs recurse.
func convertSpannerValue(t *sppb.Type, v *structpb.Value) (value.Value, error) {
	if v == nil {
		return value.Null(), nil
	}

	if _, ok := v.GetKind().(*structpb.Value_NullValue); ok {
		return value.Null(), nil
	}

	switch t.GetCode() {
	case sppb.TypeCode_BOOL:
		return value.Bool(v.GetBoolValue()), nil
	case sppb.TypeCode_INT64, sppb.TypeCode_NUMERIC:
		d, err := decimal.NewFromString(v.GetStringValue())
		if err != nil {
			return value.Value{}, fmt.Errorf("%w: %s %q", tableassert.ErrUnsupportedValue, t.GetCode(), v.GetStringValue())
		}

		return value.Number(d), nil
	case sppb.TypeCode_FLOAT64, sppb.TypeCode_FLOAT32:
		if s, ok := v.GetKind().(*structpb.Value_StringValue); ok {
			// NaN and infinities are sent as strings
			return value.String(s.StringValue), nil
		}

		return value.Float(v.GetNumberValue()), nil
	case sppb.TypeCode_JSON:
		return value.FromJSON(v.GetStringValue())
	case sppb.TypeCode_ARRAY:
		list := v.GetListValue().GetValues()
		items := make([]value.Value, len(list))

		for i, item := range list {
			converted, err := convertSpannerValue(t.GetArrayElementType(), item)
			if err != nil {
				return value.Value{}, fmt.Errorf("index %d: %w", i, err)
			}

			items[i] = converted
		}

		return value.List(items...), nil
	case sppb.TypeCode_STRUCT:
		fields := t.GetStructType().GetFields()
		list := v.GetListValue().GetValues()
		out := make(map[string]value.Value, len(fields))

		for i, field := range fields {
			if i >= len(list) {
				break
			}

			converted, err := convertSpannerValue(field.GetType(), list[i])
			if err != nil {
				return value.Value{}, fmt.Errorf("field %s: %w", field.GetName(), err)
			}

			out[field.GetName()] = converted
		}

		return value.Map(out), nil
	default:
		// STRING, BYTES (base64), DATE, TIMESTAMP, ENUM, PROTO, UUID and INTERVAL are text
		return value.String(v.GetStringValue()), nil
	}
}
