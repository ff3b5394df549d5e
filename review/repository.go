package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgReadOnlyTransaction = "25006"

// Querier is satisfied by pgxpool.Pool and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository defines the review tables' data access. Writes run inside the
// caller's transaction.
type Repository interface {
	UpsertResolution(ctx context.Context, tx pgx.Tx, r Resolution) (int64, error)
	LockPrevalidationState(ctx context.Context, tx pgx.Tx, personID, entityKey string) (State, error)
	UpsertPrevalidation(ctx context.Context, tx pgx.Tx, p Prevalidation) (int64, error)
	AppendHistory(ctx context.Context, tx pgx.Tx, h HistoryEntry) error
	SetPublished(ctx context.Context, tx pgx.Tx, published bool, by string) error

	Publication(ctx context.Context, q Querier) (Publication, error)
	ListPrevalidations(ctx context.Context, q Querier, personIDs []string) (PrevalidationMap, error)
	ListResolutions(ctx context.Context, q Querier, personIDs []string) (ResolutionMap, error)
	ListHistory(ctx context.Context, q Querier, personID string) ([]HistoryEntry, error)
}

type PGRepository struct{}

func NewRepository() *PGRepository {
	return &PGRepository{}
}

var _ Repository = (*PGRepository)(nil)

func (r *PGRepository) UpsertResolution(ctx context.Context, tx pgx.Tx, res Resolution) (int64, error) {
	tag, err := tx.Exec(ctx, `
INSERT INTO solventaciones (rfc, ente, estado, comentario, catalogo, otro_texto)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (rfc, ente) DO UPDATE SET
    estado = EXCLUDED.estado,
    comentario = EXCLUDED.comentario,
    catalogo = EXCLUDED.catalogo,
    otro_texto = EXCLUDED.otro_texto,
    actualizado = now()
`, res.PersonID, res.EntityKey, string(res.State), res.Comment, res.CatalogReason, res.FreeText)
	if err != nil {
		return 0, fmt.Errorf("review: upsert resolution: %w", err)
	}
	return tag.RowsAffected(), nil
}

// LockPrevalidationState locks the row for (person, entity) and returns its
// state, or StateUnassessed when there is no row yet.
func (r *PGRepository) LockPrevalidationState(ctx context.Context, tx pgx.Tx, personID, entityKey string) (State, error) {
	var state string
	err := tx.QueryRow(ctx, `SELECT estado FROM prevalidaciones WHERE rfc = $1 AND ente = $2 FOR UPDATE`, personID, entityKey).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return StateUnassessed, nil
	}
	if err != nil {
		return "", fmt.Errorf("review: lock prevalidation: %w", err)
	}
	return State(state), nil
}

func (r *PGRepository) UpsertPrevalidation(ctx context.Context, tx pgx.Tx, p Prevalidation) (int64, error) {
	tag, err := tx.Exec(ctx, `
INSERT INTO prevalidaciones (rfc, ente, estado, comentario, catalogo, otro_texto, usuario)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (rfc, ente) DO UPDATE SET
    estado = EXCLUDED.estado,
    comentario = EXCLUDED.comentario,
    catalogo = EXCLUDED.catalogo,
    otro_texto = EXCLUDED.otro_texto,
    usuario = EXCLUDED.usuario,
    actualizado = now()
`, p.PersonID, p.EntityKey, string(p.State), p.Comment, p.CatalogReason, p.FreeText, p.Reviewer)
	if err != nil {
		return 0, fmt.Errorf("review: upsert prevalidation: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PGRepository) AppendHistory(ctx context.Context, tx pgx.Tx, h HistoryEntry) error {
	if _, err := tx.Exec(ctx, `
INSERT INTO prevalidaciones_historial (rfc, ente, accion, estado_anterior, estado_nuevo, usuario)
VALUES ($1, $2, $3, $4, $5, $6)
`, h.PersonID, h.EntityKey, h.Action, string(h.PreviousState), string(h.NewState), h.Reviewer); err != nil {
		return fmt.Errorf("review: append history: %w", err)
	}
	return nil
}

func (r *PGRepository) SetPublished(ctx context.Context, tx pgx.Tx, published bool, by string) error {
	if _, err := tx.Exec(ctx, `
INSERT INTO publicacion (id, publicado, actualizado, actualizado_por)
VALUES (1, $1, now(), $2)
ON CONFLICT (id) DO UPDATE SET
    publicado = EXCLUDED.publicado,
    actualizado = EXCLUDED.actualizado,
    actualizado_por = EXCLUDED.actualizado_por
`, published, by); err != nil {
		return fmt.Errorf("review: set publication: %w", err)
	}
	return nil
}

func (r *PGRepository) Publication(ctx context.Context, q Querier) (Publication, error) {
	var p Publication
	err := q.QueryRow(ctx, `SELECT publicado, actualizado, actualizado_por FROM publicacion WHERE id = 1`).
		Scan(&p.Published, &p.UpdatedAt, &p.UpdatedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return Publication{}, nil
	}
	if err != nil {
		return Publication{}, fmt.Errorf("review: read publication: %w", err)
	}
	return p, nil
}

func (r *PGRepository) ListPrevalidations(ctx context.Context, q Querier, personIDs []string) (PrevalidationMap, error) {
	if personIDs == nil {
		personIDs = []string{}
	}
	rows, err := q.Query(ctx, `
SELECT rfc, ente, estado, comentario, catalogo, otro_texto, usuario, actualizado
FROM prevalidaciones
WHERE cardinality($1::text[]) = 0 OR rfc = ANY($1::text[])
`, personIDs)
	if err != nil {
		return nil, fmt.Errorf("review: list prevalidations: %w", err)
	}
	defer rows.Close()

	out := PrevalidationMap{}
	for rows.Next() {
		var (
			p     Prevalidation
			state string
		)
		if err := rows.Scan(&p.PersonID, &p.EntityKey, &state, &p.Comment, &p.CatalogReason, &p.FreeText, &p.Reviewer, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("review: scan prevalidation: %w", err)
		}
		p.State = State(state)
		if out[p.PersonID] == nil {
			out[p.PersonID] = map[string]Prevalidation{}
		}
		out[p.PersonID][p.EntityKey] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("review: iterate prevalidations: %w", err)
	}
	return out, nil
}

func (r *PGRepository) ListResolutions(ctx context.Context, q Querier, personIDs []string) (ResolutionMap, error) {
	if personIDs == nil {
		personIDs = []string{}
	}
	rows, err := q.Query(ctx, `
SELECT rfc, ente, estado, comentario, catalogo, otro_texto, actualizado
FROM solventaciones
WHERE cardinality($1::text[]) = 0 OR rfc = ANY($1::text[])
`, personIDs)
	if err != nil {
		return nil, fmt.Errorf("review: list resolutions: %w", err)
	}
	defer rows.Close()

	out := ResolutionMap{}
	for rows.Next() {
		var (
			res   Resolution
			state string
		)
		if err := rows.Scan(&res.PersonID, &res.EntityKey, &state, &res.Comment, &res.CatalogReason, &res.FreeText, &res.UpdatedAt); err != nil {
			return nil, fmt.Errorf("review: scan resolution: %w", err)
		}
		res.State = State(state)
		if out[res.PersonID] == nil {
			out[res.PersonID] = map[string]Resolution{}
		}
		out[res.PersonID][res.EntityKey] = res
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("review: iterate resolutions: %w", err)
	}
	return out, nil
}

func (r *PGRepository) ListHistory(ctx context.Context, q Querier, personID string) ([]HistoryEntry, error) {
	rows, err := q.Query(ctx, `
SELECT id, rfc, ente, accion, estado_anterior, estado_nuevo, usuario, creado
FROM prevalidaciones_historial
WHERE rfc = $1
ORDER BY id
`, personID)
	if err != nil {
		return nil, fmt.Errorf("review: list history: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var (
			h         HistoryEntry
			prev, cur string
		)
		if err := rows.Scan(&h.ID, &h.PersonID, &h.EntityKey, &h.Action, &prev, &cur, &h.Reviewer, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("review: scan history: %w", err)
		}
		h.PreviousState, h.NewState = State(prev), State(cur)
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("review: iterate history: %w", err)
	}
	return out, nil
}

func isReadOnly(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgReadOnlyTransaction
}
