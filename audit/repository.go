package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"payrollaudit/ingest"
)

// DB is satisfied by pgxpool.Pool.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// RunRepository persists upload runs.
type RunRepository interface {
	StartRun(ctx context.Context, run Run) error
	FinishRun(ctx context.Context, run Run) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}

type PGRunRepository struct {
	db DB
}

func NewRunRepository(db DB) *PGRunRepository {
	return &PGRunRepository{db: db}
}

func (r *PGRunRepository) StartRun(ctx context.Context, run Run) error {
	if _, err := r.db.Exec(ctx, `INSERT INTO ingest_runs (id, archivos, iniciado) VALUES ($1, $2, $3)`,
		run.ID, run.Files, run.StartedAt); err != nil {
		return fmt.Errorf("audit: start run: %w", err)
	}
	return nil
}

func (r *PGRunRepository) FinishRun(ctx context.Context, run Run) error {
	alerts := run.Alerts
	if alerts == nil {
		alerts = []ingest.Alert{}
	}
	raw, err := json.Marshal(alerts)
	if err != nil {
		return fmt.Errorf("audit: marshal alerts: %w", err)
	}
	if _, err := r.db.Exec(ctx, `
UPDATE ingest_runs
SET insertados = $2, actualizados = $3, fallidos = $4, alertas = $5::jsonb, terminado = $6, error = NULLIF($7, '')
WHERE id = $1
`, run.ID, run.Inserted, run.Updated, run.Failed, raw, run.FinishedAt, run.Error); err != nil {
		return fmt.Errorf("audit: finish run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first.
func (r *PGRunRepository) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(ctx, `
SELECT id, archivos, insertados, actualizados, fallidos, alertas, iniciado, terminado, COALESCE(error, '')
FROM ingest_runs
ORDER BY iniciado DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			run Run
			raw []byte
		)
		if err := rows.Scan(&run.ID, &run.Files, &run.Inserted, &run.Updated, &run.Failed, &raw, &run.StartedAt, &run.FinishedAt, &run.Error); err != nil {
			return nil, fmt.Errorf("audit: scan run: %w", err)
		}
		if err := json.Unmarshal(raw, &run.Alerts); err != nil {
			return nil, fmt.Errorf("audit: decode alerts: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: iterate runs: %w", err)
	}
	return out, nil
}
