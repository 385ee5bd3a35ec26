package tableassert

import (
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestConnectionConfig_Resolve(t *testing.T) {
	tests := []struct {
		name    string
		input   ConnectionConfig
		want    ConnectionConfig
		wantErr string
	}{
		{
			name:  "spanner with emulator host without port",
			input: ConnectionConfig{ProjectID: "p", InstanceID: "i", DatabaseID: "d", EmulatorHost: "localhost"},
			want:  ConnectionConfig{Driver: "spanner", ProjectID: "p", InstanceID: "i", DatabaseID: "d", EmulatorHost: "localhost:9010"},
		},
		{
			name:  "spanner with explicit port",
			input: ConnectionConfig{Driver: "cloudspanner", ProjectID: "p", InstanceID: "i", DatabaseID: "d", EmulatorHost: "emulator:19010"},
			want:  ConnectionConfig{Driver: "spanner", ProjectID: "p", InstanceID: "i", DatabaseID: "d", EmulatorHost: "emulator:19010"},
		},
		{
			name:    "spanner missing project",
			input:   ConnectionConfig{InstanceID: "i", DatabaseID: "d"},
			wantErr: "project_id",
		},
		{
			name:    "spanner missing instance",
			input:   ConnectionConfig{ProjectID: "p", DatabaseID: "d"},
			wantErr: "instance_id",
		},
		{
			name:    "spanner missing database",
			input:   ConnectionConfig{ProjectID: "p", InstanceID: "i"},
			wantErr: "database_id",
		},
		{
			name:  "sqlite alias",
			input: ConnectionConfig{Driver: "sqlite3", DSN: "test.db"},
			want:  ConnectionConfig{Driver: "sqlite", DSN: "test.db"},
		},
		{
			name:    "postgres missing dsn",
			input:   ConnectionConfig{Driver: "pgx"},
			wantErr: "dsn",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.input.Resolve()
			if tt.wantErr != "" {
				assert.IsError(t, err, ErrMissingConfiguration)
				assert.Contains(t, err.Error(), tt.wantErr)

				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConnectionConfig_ResolveUnsupportedDriver(t *testing.T) {
	_, err := ConnectionConfig{Driver: "oracle", DSN: "x"}.Resolve()
	assert.IsError(t, err, ErrUnsupportedDriver)
}

func TestConnectionConfig_Merge(t *testing.T) {
	base := ConnectionConfig{ProjectID: "p", InstanceID: "i", DatabaseID: "d"}

	merged := base.Merge(ConnectionConfig{DatabaseID: "other", EmulatorHost: "localhost"})
	assert.Equal(t, ConnectionConfig{ProjectID: "p", InstanceID: "i", DatabaseID: "other", EmulatorHost: "localhost"}, merged)
	assert.Equal(t, "d", base.DatabaseID)

	assert.Equal(t, base, base.Merge(ConnectionConfig{}))
	assert.True(t, ConnectionConfig{}.IsZero())
	assert.False(t, base.IsZero())
}

func TestConnectionConfig_DatabasePath(t *testing.T) {
	cfg := ConnectionConfig{ProjectID: "p", InstanceID: "i", DatabaseID: "d"}
	assert.Equal(t, "projects/p/instances/i/databases/d", cfg.DatabasePath())
}

func TestParseDialect(t *testing.T) {
	tests := []struct {
		driver string
		want   Dialect
		ok     bool
	}{
		{"spanner", DialectSpanner, true},
		{"cloudspanner", DialectSpanner, true},
		{"postgres", DialectPostgres, true},
		{"postgresql", DialectPostgres, true},
		{"pgx", DialectPostgres, true},
		{"mysql", DialectMySQL, true},
		{"mariadb", DialectMySQL, true},
		{"sqlite3", DialectSQLite, true},
		{"sqlite", DialectSQLite, true},
		{"oracle", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			got, ok := ParseDialect(tt.driver)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.True(t, DialectMySQL.PositionalParams())
	assert.False(t, DialectPostgres.PositionalParams())
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TABLEASSERT_TEST_DB", "orders")
	t.Setenv("TABLEASSERT_TEST_HOST", "db.local")

	assert.Equal(t, "postgres://db.local/orders", expandEnvVars("postgres://${TABLEASSERT_TEST_HOST}/$TABLEASSERT_TEST_DB"))
	assert.Equal(t, "plain", expandEnvVars("plain"))
	assert.Equal(t, "x--y", expandEnvVars("x-${TABLEASSERT_TEST_UNSET}-y"))
}

func TestParseConfig_ExpandsEnvVars(t *testing.T) {
	t.Setenv("TABLEASSERT_TEST_PROJECT", "my-project")

	config, err := ParseConfig([]byte(`
connections:
  emulator:
    project_id: ${TABLEASSERT_TEST_PROJECT}
    instance_id: test-instance
    database_id: test-database
`))
	assert.NoError(t, err)

	conn, err := config.Connection("")
	assert.NoError(t, err)
	assert.Equal(t, "my-project", conn.ProjectID)
}

func TestAssertionError(t *testing.T) {
	err := NewAssertionError(ErrAssertionMismatch, "Row count mismatch.", map[string]any{"table": "Users"})

	assert.Equal(t, "assertion mismatch: Row count mismatch. (table Users)", err.Error())
	assert.IsError(t, err, ErrAssertionMismatch)
	assert.Equal(t, "Users", err.Table())

	extended := err.WithDetail("expected", 2)
	assert.Equal(t, 2, extended.Details["expected"].(int))
	_, present := err.Details["expected"]
	assert.False(t, present)

	wrapped := error(extended)
	ae, ok := AsAssertionError(wrapped)
	assert.True(t, ok)
	assert.Equal(t, "Row count mismatch.", ae.Message)

	bare := NewAssertionError(ErrInvalidIdentifier, "bad", nil)
	assert.Equal(t, "identifier contains unsupported characters: bad", bare.Error())
	assert.Equal(t, "", bare.Table())
}
