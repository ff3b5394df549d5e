package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrDuplicateEntry signals the archive already holds an entry with the same content hash.
	ErrDuplicateEntry = errors.New("records: duplicate archive entry")
	// ErrTooManyRowFailures aborts an upload whose failed rows exceed the configured tolerance.
	ErrTooManyRowFailures = errors.New("records: too many row failures")
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository defines the data access required by the Store.
type Repository interface {
	UpsertRecord(ctx context.Context, tx pgx.Tx, rec Record) (updated bool, err error)
	InsertArchiveEntry(ctx context.Context, tx pgx.Tx, category, personID string, payload []byte, hash string) error
	ListCurrent(ctx context.Context, q Querier, personID string) ([]Record, error)
	CountWorkersPerEntity(ctx context.Context, q Querier) (map[string]int, error)
	ListArchive(ctx context.Context, q Querier, filter ArchiveFilter) ([]ArchivedEntry, int, error)
}

type PGRepository struct{}

func NewRepository() *PGRepository {
	return &PGRepository{}
}

// UpsertRecord writes rec into its (person, entity) slot. The returned flag is
// true when the slot already existed, detected by the load timestamp lagging
// the update timestamp after the write.
func (r *PGRepository) UpsertRecord(ctx context.Context, tx pgx.Tx, rec Record) (bool, error) {
	if rec.PersonID == "" || rec.EntityKey == "" {
		return false, fmt.Errorf("records: missing person or entity")
	}

	qnas, err := encodePeriods(rec)
	if err != nil {
		return false, err
	}

	const upsertSQL = `
INSERT INTO registros_laborales
    (rfc, ente, nombre, puesto, fecha_ingreso, fecha_egreso, monto, qnas, fecha_carga, fecha_actualizacion)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, statement_timestamp(), statement_timestamp())
ON CONFLICT (rfc, ente) DO UPDATE SET
    nombre = EXCLUDED.nombre,
    puesto = EXCLUDED.puesto,
    fecha_ingreso = EXCLUDED.fecha_ingreso,
    fecha_egreso = EXCLUDED.fecha_egreso,
    monto = EXCLUDED.monto,
    qnas = EXCLUDED.qnas,
    fecha_actualizacion = clock_timestamp()
RETURNING fecha_carga < fecha_actualizacion;
`

	var updated bool
	err = tx.QueryRow(ctx, upsertSQL,
		rec.PersonID,
		rec.EntityKey,
		rec.FullName,
		rec.Position,
		rec.HireDate,
		rec.TerminationDate,
		rec.Amount,
		qnas,
	).Scan(&updated)
	if err != nil {
		return false, fmt.Errorf("records: upsert %s/%s: %w", rec.PersonID, rec.EntityKey, err)
	}
	return updated, nil
}

// InsertArchiveEntry stores one archive row unless its hash is already present.
func (r *PGRepository) InsertArchiveEntry(ctx context.Context, tx pgx.Tx, category, personID string, payload []byte, hash string) error {
	const insertSQL = `
INSERT INTO laboral (tipo_analisis, rfc, datos, hash_firma)
VALUES ($1, $2, $3, $4)
ON CONFLICT (hash_firma) DO NOTHING;
`

	tag, err := tx.Exec(ctx, insertSQL, category, personID, payload, hash)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateEntry
		}
		return fmt.Errorf("records: insert archive entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateEntry
	}
	return nil
}

const recordColumns = `rfc, ente, nombre, puesto, fecha_ingreso, fecha_egreso, monto, qnas, fecha_carga, fecha_actualizacion`

// ListCurrent returns current records ordered by person then entity. An empty
// personID lists everyone.
func (r *PGRepository) ListCurrent(ctx context.Context, q Querier, personID string) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM registros_laborales`
	args := []any{}
	if personID != "" {
		query += ` WHERE rfc = $1`
		args = append(args, personID)
	}
	query += ` ORDER BY rfc, ente`

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("records: query current: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0, 64)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("records: iterate current: %w", err)
	}
	return out, nil
}

// CountWorkersPerEntity counts distinct persons per entity key.
func (r *PGRepository) CountWorkersPerEntity(ctx context.Context, q Querier) (map[string]int, error) {
	rows, err := q.Query(ctx, `SELECT ente, COUNT(DISTINCT rfc) FROM registros_laborales GROUP BY ente`)
	if err != nil {
		return nil, fmt.Errorf("records: count per entity: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			entity string
			total  int
		)
		if err := rows.Scan(&entity, &total); err != nil {
			return nil, fmt.Errorf("records: scan count: %w", err)
		}
		out[entity] = total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("records: iterate counts: %w", err)
	}
	return out, nil
}

// ListArchive pages through archived entries, newest first.
func (r *PGRepository) ListArchive(ctx context.Context, q Querier, filter ArchiveFilter) ([]ArchivedEntry, int, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 500 {
		filter.PageSize = 50
	}

	where := []string{"1=1"}
	args := []any{}
	if filter.PersonID != "" {
		where = append(where, fmt.Sprintf("rfc=$%d", len(args)+1))
		args = append(args, filter.PersonID)
	}
	if filter.Category != "" {
		where = append(where, fmt.Sprintf("tipo_analisis=$%d", len(args)+1))
		args = append(args, filter.Category)
	}
	whereClause := " WHERE " + strings.Join(where, " AND ")

	offset := (filter.Page - 1) * filter.PageSize
	query := fmt.Sprintf(`SELECT id, tipo_analisis, rfc, datos, hash_firma, fecha_analisis
FROM laboral%s ORDER BY fecha_analisis DESC, id DESC LIMIT %d OFFSET %d`, whereClause, filter.PageSize, offset)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("records: query archive: %w", err)
	}
	defer rows.Close()

	list := []ArchivedEntry{}
	for rows.Next() {
		var e ArchivedEntry
		if err := rows.Scan(&e.ID, &e.Category, &e.PersonID, &e.Payload, &e.Hash, &e.ArchivedAt); err != nil {
			return nil, 0, fmt.Errorf("records: scan archive: %w", err)
		}
		list = append(list, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("records: iterate archive: %w", err)
	}

	var total int
	if err := q.QueryRow(ctx, "SELECT COUNT(*) FROM laboral"+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("records: count archive: %w", err)
	}

	return list, total, nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec  Record
		qnas []byte
	)
	err := row.Scan(
		&rec.PersonID,
		&rec.EntityKey,
		&rec.FullName,
		&rec.Position,
		&rec.HireDate,
		&rec.TerminationDate,
		&rec.Amount,
		&qnas,
		&rec.LoadedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return Record{}, fmt.Errorf("records: scan record: %w", err)
	}
	if err := decodePeriods(qnas, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// encodePeriods serialises the active periods as {"QNA1": "<raw>", ...}.
func encodePeriods(rec Record) ([]byte, error) {
	m := make(map[string]string, rec.Periods.Len())
	for _, p := range rec.Periods.Periods() {
		m[p.Code()] = rec.PeriodValues[p]
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("records: marshal periods: %w", err)
	}
	return b, nil
}

func decodePeriods(raw []byte, rec *Record) error {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("records: decode periods for %s/%s: %w", rec.PersonID, rec.EntityKey, err)
	}

	rec.PeriodValues = make(map[Period]string, len(m))
	for code, value := range m {
		p, ok := ParsePeriod(strings.ToUpper(strings.TrimSpace(code)))
		if !ok {
			continue
		}
		rec.Periods = rec.Periods.Add(p)
		rec.PeriodValues[p] = fmt.Sprint(value)
	}
	return nil
}
