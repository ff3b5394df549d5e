package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, int64(50*1024*1024), cfg.Ingest.MaxFileBytes)
	assert.Equal(t, 100, cfg.Ingest.MaxRowFailures)
	assert.Equal(t, 4, cfg.Ingest.Workers)
	assert.Equal(t, 10*time.Minute, cfg.Catalog.CacheTTL)
	assert.Equal(t, int32(8), cfg.Database.MaxConns)
	assert.Equal(t, 12*time.Hour, cfg.Auth.TokenTTL)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://audit@localhost/audit")
	t.Setenv("PAYROLLAUDIT_LOG_LEVEL", "debug")
	t.Setenv("PAYROLLAUDIT_INGEST_WORKERS", "2")

	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, "postgres://audit@localhost/audit", cfg.Database.URL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 2, cfg.Ingest.Workers)
}

func TestLoad_File(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	path := filepath.Join(t.TempDir(), "payrollaudit.yaml")
	data := []byte("log:\n  format: console\ningest:\n  max_row_failures: -1\ncatalog:\n  cache_ttl: 30s\n")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := Load(New(), path)
	require.NoError(t, err)

	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, -1, cfg.Ingest.MaxRowFailures)
	assert.Equal(t, 30*time.Second, cfg.Catalog.CacheTTL)
}

func TestValidate_RejectsZeroWorkers(t *testing.T) {
	v := New()
	v.Set("ingest.workers", 0)

	_, err := Load(v, "")
	require.Error(t, err)
}
