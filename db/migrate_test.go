package db

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingExecer struct {
	statements []string
	err        error
}

func (r *recordingExecer) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	if r.err != nil {
		return pgconn.CommandTag{}, r.err
	}
	r.statements = append(r.statements, sql)
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func TestMigrate_AppliesEmbeddedSchema(t *testing.T) {
	exec := &recordingExecer{}

	applied, err := Migrate(context.Background(), exec)
	require.NoError(t, err)
	require.NotEmpty(t, applied)
	assert.Equal(t, "0001_schema.sql", applied[0])
	require.Len(t, exec.statements, len(applied))
	assert.True(t, strings.Contains(exec.statements[0], "registros_laborales"))
	assert.True(t, strings.Contains(exec.statements[0], "prevalidaciones_historial"))
}

func TestMigrate_StopsOnError(t *testing.T) {
	exec := &recordingExecer{err: errors.New("permission denied")}

	applied, err := Migrate(context.Background(), exec)
	require.Error(t, err)
	assert.Empty(t, applied)
	assert.Contains(t, err.Error(), "0001_schema.sql")
}

func TestNewPool_EmptyConnString(t *testing.T) {
	_, err := NewPool(context.Background(), "", 0)
	require.Error(t, err)
}
