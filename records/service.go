package records

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"payrollaudit/logging"
	"payrollaudit/metrics"
)

// DB abstracts *pgxpool.Pool for testability.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Querier
}

// Store is the record store: one current record per (person, entity) and the
// content-addressed archive of results.
type Store struct {
	db             DB
	repo           Repository
	logger         *zap.Logger
	metrics        *metrics.Recorder
	maxRowFailures int
}

func NewStore(db DB, repo Repository) *Store {
	if repo == nil {
		repo = NewRepository()
	}
	return &Store{
		db:             db,
		repo:           repo,
		logger:         zap.NewNop(),
		maxRowFailures: -1,
	}
}

func (s *Store) WithLogger(l *zap.Logger) *Store {
	s.logger = logging.OrNop(l).Named("records")
	return s
}

func (s *Store) WithMetrics(m *metrics.Recorder) *Store {
	s.metrics = m
	return s
}

// WithMaxRowFailures sets how many rows may fail before Upsert rolls back the
// whole batch. Negative means unlimited.
func (s *Store) WithMaxRowFailures(n int) *Store {
	s.maxRowFailures = n
	return s
}

// Upsert writes recs in a single transaction. Each row runs under its own
// savepoint: a failing row is logged, rolled back and skipped while the rest
// of the batch continues.
func (s *Store) Upsert(ctx context.Context, recs []Record) (UpsertResult, error) {
	var res UpsertResult
	if len(recs) == 0 {
		return res, nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("records: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, rec := range recs {
		if rec.PersonID == "" || rec.EntityKey == "" {
			res.Skipped++
			continue
		}

		updated, err := s.upsertRow(ctx, tx, rec)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return UpsertResult{}, fmt.Errorf("records: upsert aborted: %w", ctxErr)
			}
			res.Failed++
			res.Failures = append(res.Failures, RowFailure{PersonID: rec.PersonID, EntityKey: rec.EntityKey, Err: err.Error()})
			s.logger.Warn("skipping record",
				zap.String("person_id", rec.PersonID),
				zap.String("entity_key", rec.EntityKey),
				zap.Error(err),
			)
			if s.maxRowFailures >= 0 && res.Failed > s.maxRowFailures {
				return UpsertResult{}, fmt.Errorf("%w: %d rows failed (limit %d)", ErrTooManyRowFailures, res.Failed, s.maxRowFailures)
			}
			continue
		}
		if updated {
			res.Updated++
		} else {
			res.Inserted++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return UpsertResult{}, fmt.Errorf("records: commit tx: %w", err)
	}

	s.metrics.RecordsUpserted(res.Inserted, res.Updated, res.Failed)
	s.logger.Info("records upserted",
		zap.Int("inserted", res.Inserted),
		zap.Int("updated", res.Updated),
		zap.Int("failed", res.Failed),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

func (s *Store) upsertRow(ctx context.Context, tx pgx.Tx, rec Record) (bool, error) {
	sp, err := tx.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("records: savepoint: %w", err)
	}
	updated, err := s.repo.UpsertRecord(ctx, sp, rec)
	if err != nil {
		_ = sp.Rollback(ctx)
		return false, err
	}
	if err := sp.Commit(ctx); err != nil {
		return false, fmt.Errorf("records: release savepoint: %w", err)
	}
	return updated, nil
}

// ContentHash returns the hex SHA-256 of the entry's canonical JSON encoding.
func ContentHash(e ArchiveEntry) (string, []byte, error) {
	canonical, err := json.Marshal(e)
	if err != nil {
		return "", nil, fmt.Errorf("records: marshal archive entry: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), canonical, nil
}

// ArchiveIfNew stores each entry whose content hash is not yet archived.
// Entries already present, including repeats inside entries itself, are
// counted as duplicates and never reported as errors.
func (s *Store) ArchiveIfNew(ctx context.Context, entries []ArchiveEntry) (ArchiveResult, error) {
	var res ArchiveResult
	if len(entries) == 0 {
		return res, nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return ArchiveResult{}, fmt.Errorf("records: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		hash, _, err := ContentHash(e)
		if err != nil {
			return ArchiveResult{}, err
		}
		if _, dup := seen[hash]; dup {
			res.Duplicates++
			continue
		}
		seen[hash] = struct{}{}

		payload, err := json.Marshal(e.Payload)
		if err != nil {
			return ArchiveResult{}, fmt.Errorf("records: marshal payload: %w", err)
		}

		err = s.repo.InsertArchiveEntry(ctx, tx, e.Category, e.PersonID, payload, hash)
		switch {
		case err == nil:
			res.New++
		case errors.Is(err, ErrDuplicateEntry):
			res.Duplicates++
		default:
			return ArchiveResult{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return ArchiveResult{}, fmt.Errorf("records: commit tx: %w", err)
	}

	s.metrics.Archived(res.New, res.Duplicates)
	return res, nil
}

// ListCurrent returns every current record ordered by person and entity.
func (s *Store) ListCurrent(ctx context.Context) ([]Record, error) {
	return s.repo.ListCurrent(ctx, s.db, "")
}

// ListByPerson returns the current records of one person.
func (s *Store) ListByPerson(ctx context.Context, personID string) ([]Record, error) {
	if personID == "" {
		return nil, fmt.Errorf("records: missing person id")
	}
	return s.repo.ListCurrent(ctx, s.db, personID)
}

// CountWorkersPerEntity returns the number of distinct persons per entity key.
func (s *Store) CountWorkersPerEntity(ctx context.Context) (map[string]int, error) {
	return s.repo.CountWorkersPerEntity(ctx, s.db)
}

// ListArchive pages through archived entries.
func (s *Store) ListArchive(ctx context.Context, filter ArchiveFilter) ([]ArchivedEntry, int, error) {
	return s.repo.ListArchive(ctx, s.db, filter)
}
