package infra

import (
	"context"
	"errors"
	"testing"
)

func TestAdminDSNs_EnvOverride(t *testing.T) {
	t.Setenv("PAYROLLAUDIT_PG_ADMIN_DSN", "postgres://root@db:5432/postgres")
	got := adminDSNs()
	if len(got) != 1 || got[0] != "postgres://root@db:5432/postgres" {
		t.Fatalf("adminDSNs() = %v, want the override only", got)
	}

	t.Setenv("PAYROLLAUDIT_PG_ADMIN_DSN", "")
	t.Setenv("USER", "auditor")
	got = adminDSNs()
	if len(got) != 4 {
		t.Fatalf("adminDSNs() returned %d candidates, want 4", len(got))
	}
	if got[2] != "postgres://auditor@127.0.0.1:5432/postgres?sslmode=disable" {
		t.Fatalf("unexpected user candidate %q", got[2])
	}
}

func TestConnectAdmin_Unreachable(t *testing.T) {
	t.Setenv("PAYROLLAUDIT_PG_ADMIN_DSN", "postgres://postgres@127.0.0.1:1/postgres?sslmode=disable&connect_timeout=1")
	_, err := connectAdmin(context.Background())
	if !errors.Is(err, errNoLocalServer) {
		t.Fatalf("connectAdmin error = %v, want errNoLocalServer", err)
	}
}
