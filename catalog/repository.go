package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool the repository needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository reads and seeds the entes and municipios tables.
type Repository struct {
	db DB
}

// NewRepository wires a pgx-backed catalog repository.
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

func tableFor(scope Scope) (string, error) {
	switch scope {
	case ScopeState:
		return "entes", nil
	case ScopeMunicipal:
		return "municipios", nil
	default:
		return "", fmt.Errorf("catalog: unknown scope %q", scope)
	}
}

// List returns the active entries of one scope in ordinal order.
func (r *Repository) List(ctx context.Context, scope Scope) ([]Entry, error) {
	table, err := tableFor(scope)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT num, clave, nombre, siglas, clasificacion, ambito, activo
		FROM ` + table + `
		WHERE activo
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("catalog: list %s: %w", table, err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, 32)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Ordinal, &e.Key, &e.Name, &e.ShortCode, &e.Classification, &e.Scope, &e.Active); err != nil {
			return nil, fmt.Errorf("catalog: scan %s: %w", table, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate %s: %w", table, err)
	}

	SortEntries(entries)
	return entries, nil
}

// ListAll returns state entities followed by municipalities.
func (r *Repository) ListAll(ctx context.Context) ([]Entry, error) {
	state, err := r.List(ctx, ScopeState)
	if err != nil {
		return nil, err
	}
	municipal, err := r.List(ctx, ScopeMunicipal)
	if err != nil {
		return nil, err
	}
	return append(state, municipal...), nil
}

// Insert adds entries to the table of scope, leaving existing keys untouched.
// It returns how many rows were actually inserted.
func (r *Repository) Insert(ctx context.Context, scope Scope, entries []Entry) (int, error) {
	table, err := tableFor(scope)
	if err != nil {
		return 0, err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	insertSQL := `
		INSERT INTO ` + table + ` (num, clave, nombre, siglas, clasificacion, ambito, activo)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		ON CONFLICT (clave) DO NOTHING
	`

	inserted := 0
	for _, e := range entries {
		if e.Key == "" || e.Name == "" {
			continue
		}
		tag, err := tx.Exec(ctx, insertSQL, e.Ordinal, e.Key, e.Name, e.ShortCode, e.Classification, string(scope))
		if err != nil {
			return 0, fmt.Errorf("catalog: insert %s %s: %w", table, e.Key, err)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("catalog: commit tx: %w", err)
	}
	return inserted, nil
}

// SeedDefaults installs DefaultEntries.
func (r *Repository) SeedDefaults(ctx context.Context) (int, error) {
	return r.Insert(ctx, ScopeState, DefaultEntries)
}
