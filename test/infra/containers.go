package infra

import (
	"context"
	"io"
	"os"
	"os/exec"

	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

type PGContainer struct {
	C *postgres.PostgresContainer
}

// Start picks a database for a test run: overrideDSN, then STRESS_TEST_PG_DSN,
// then a Postgres 16 container when Docker answers, then a local server.
// shared reports whether the database outlives the run and should be isolated
// in its own schema.
func Start(ctx context.Context, overrideDSN string) (pg *PGContainer, dsn string, shared bool, err error) {
	switch {
	case overrideDSN != "":
		return &PGContainer{}, overrideDSN, true, nil
	case os.Getenv("STRESS_TEST_PG_DSN") != "":
		return &PGContainer{}, os.Getenv("STRESS_TEST_PG_DSN"), true, nil
	case dockerAvailable(ctx):
		pg, dsn, err = StartPostgres16(ctx)
		return pg, dsn, false, err
	default:
		dsn, err = InitLocalDatabase(ctx)
		return &PGContainer{}, dsn, false, err
	}
}

// StartPostgres16 starts a Postgres 16 container and returns a DSN.
func StartPostgres16(ctx context.Context) (*PGContainer, string, error) {
	pw := "payrollaudit"
	db := "payrollaudit"
	user := "payrollaudit"

	pgC, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase(db),
		postgres.WithUsername(user),
		postgres.WithPassword(pw),
	)
	if err != nil {
		return nil, "", err
	}

	dsn, err := pgC.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = pgC.Terminate(ctx)
		return nil, "", err
	}
	return &PGContainer{C: pgC}, dsn, nil
}

func (p *PGContainer) Terminate(ctx context.Context) error {
	if p == nil || p.C == nil {
		return nil
	}
	return p.C.Terminate(ctx)
}

func dockerAvailable(ctx context.Context) bool {
	if _, err := exec.LookPath("docker"); err != nil {
		return false
	}
	c := exec.CommandContext(ctx, "docker", "info")
	c.Stdout = io.Discard
	c.Stderr = io.Discard
	return c.Run() == nil
}
