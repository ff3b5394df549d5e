package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"payrollaudit/migrations"
)

// Execer is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Migrate applies every embedded migration in name order. The schema uses
// IF NOT EXISTS guards so re-running is safe.
func Migrate(ctx context.Context, db Execer) ([]string, error) {
	names, err := migrations.Files()
	if err != nil {
		return nil, err
	}

	applied := make([]string, 0, len(names))
	for _, name := range names {
		data, err := migrations.FS.ReadFile(name)
		if err != nil {
			return applied, fmt.Errorf("db: read migration %s: %w", name, err)
		}
		if _, err := db.Exec(ctx, string(data)); err != nil {
			return applied, fmt.Errorf("db: apply %s: %w", name, err)
		}
		applied = append(applied, name)
	}
	return applied, nil
}
