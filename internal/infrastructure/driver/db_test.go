package driver

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSqliteAdapter(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"numbered placeholders", "SELECT * FROM t WHERE a = $1 AND b = $2", "SELECT * FROM t WHERE a = ?1 AND b = ?2"},
		{"multi digit", "VALUES ($10, $11)", "VALUES (?10, ?11)"},
		{"whitespace collapsed", "\nSELECT\n\ta\nFROM\n    t\n", "SELECT a FROM t"},
		{"no placeholder", "SELECT 1", "SELECT 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sqliteAdapter(tt.query))
		})
	}
}

func TestPgsqlAdapter(t *testing.T) {
	assert.Equal(t, "SELECT a FROM t WHERE a = $1", pgsqlAdapter("\n  SELECT a\n\tFROM t\n WHERE a = $1 "))
}

func TestMillis(t *testing.T) {
	ts := time.Date(2024, 1, 31, 10, 20, 30, 123456789, time.UTC)
	ms := Millis(ts)
	assert.Equal(t, ts.Truncate(time.Millisecond), FromMillis(ms))

	assert.Nil(t, NullMillis(nil))
	assert.Nil(t, FromNullMillis(nil))
	back := FromNullMillis(NullMillis(&ts))
	if assert.NotNil(t, back) {
		assert.True(t, back.Equal(ts.Truncate(time.Millisecond)))
		assert.Equal(t, time.UTC, back.Location())
	}
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"pg unique violation", &pgconn.PgError{Code: "23505"}, true},
		{"wrapped pg unique violation", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), true},
		{"pg foreign key violation", &pgconn.PgError{Code: "23503"}, false},
		{"plain error", fmt.Errorf("boom"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUniqueViolation(tt.err))
		})
	}
}

func TestSQLite_UniqueViolation(t *testing.T) {
	ctx := context.Background()
	conn, err := GetDBConnection(&DBConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	defer conn.Close(ctx)

	_, err = conn.ExecContext(ctx, `CREATE TABLE items (id TEXT PRIMARY KEY, name TEXT NOT NULL UNIQUE)`)
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, `INSERT INTO items (id, name) VALUES ($1, $2)`, "1", "a")
	require.NoError(t, err)

	_, err = conn.ExecContext(ctx, `INSERT INTO items (id, name) VALUES ($1, $2)`, "2", "a")
	assert.True(t, IsUniqueViolation(err), "unique column: %v", err)
	_, err = conn.ExecContext(ctx, `INSERT INTO items (id, name) VALUES ($1, $2)`, "1", "b")
	assert.True(t, IsUniqueViolation(err), "primary key: %v", err)
}

func TestSQLite_Transaction(t *testing.T) {
	ctx := context.Background()
	conn, err := GetDBConnection(&DBConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	defer conn.Close(ctx)
	require.NoError(t, Migrate(ctx, conn))
	// migrations are idempotent
	require.NoError(t, Migrate(ctx, conn))

	tx, err := conn.BeginTx(ctx, nil)
	require.NoError(t, err)
	_, err = tx.ExecContext(ctx, `INSERT INTO formations (id, title) VALUES ($1, $2)`, "f1", "rolled back")
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(ctx))
	// rollback after rollback is a no-op
	assert.NoError(t, tx.Rollback(ctx))

	rows, err := conn.QueryContext(ctx, `SELECT COUNT(*) FROM formations`)
	require.NoError(t, err)
	var count int
	require.True(t, rows.Next())
	require.NoError(t, rows.Scan(&count))
	require.NoError(t, rows.Close())
	assert.Equal(t, 0, count)
}

func TestGetDBConnection_UnknownDriver(t *testing.T) {
	_, err := GetDBConnection(&DBConfig{Driver: "mysql"})
	assert.Error(t, err)
}

func TestGetDSN(t *testing.T) {
	cfg := &DBConfig{User: "u", Password: "p", Host: "db", Port: 5432, Schema: "engine"}
	assert.Equal(t, "postgres://u:p@db:5432/engine", getDSN(cfg))
	cfg.Query = "sslmode=disable"
	assert.Equal(t, "postgres://u:p@db:5432/engine?sslmode=disable", getDSN(cfg))
}

func TestLogQueryArgs(t *testing.T) {
	long := strings.Repeat("x", 70)
	args := logQueryArgs([]interface{}{"short", long, []byte{0xab}, 42})
	assert.Equal(t, "short", args[0])
	assert.True(t, strings.HasSuffix(args[1].(string), "(truncated 6 bytes)"))
	assert.Equal(t, "ab", args[2])
	assert.Equal(t, 42, args[3])
}
