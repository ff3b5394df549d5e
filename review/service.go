package review

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"payrollaudit/logging"
	"payrollaudit/metrics"
	"payrollaudit/records"
)

// DB abstracts pgxpool.Pool for testability.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Querier
}

// EntityResolver canonicalises entity labels. Unknown labels are kept as given.
type EntityResolver interface {
	Resolve(label string) (string, error)
}

// Service applies review decisions. Each call is one transaction.
type Service struct {
	db       DB
	repo     Repository
	resolver EntityResolver
	logger   *zap.Logger
	metrics  *metrics.Recorder
}

func NewService(db DB, repo Repository) *Service {
	if repo == nil {
		repo = NewRepository()
	}
	return &Service{db: db, repo: repo, logger: zap.NewNop()}
}

func (s *Service) WithResolver(r EntityResolver) *Service {
	s.resolver = r
	return s
}

func (s *Service) WithLogger(l *zap.Logger) *Service {
	s.logger = logging.OrNop(l)
	return s
}

func (s *Service) WithMetrics(m *metrics.Recorder) *Service {
	s.metrics = m
	return s
}

func (s *Service) entityKey(label string) string {
	label = strings.TrimSpace(label)
	if s.resolver == nil || label == "" {
		return label
	}
	if key, err := s.resolver.Resolve(label); err == nil {
		return key
	}
	return label
}

// normalizeDecision cleans the person id the same way ingestion does, so a
// verdict typed as "aaa-010101-aaa" lands on the stored AAA010101AAA.
func normalizeDecision(d Decision) (Decision, error) {
	raw := strings.TrimSpace(d.PersonID)
	if raw == "" {
		return d, &ValidationError{Err: ErrMissingKey}
	}
	id, ok := records.NormalizePersonID(raw)
	if !ok {
		return d, &ValidationError{Err: ErrInvalidPersonID, Detail: raw}
	}
	d.PersonID = id
	d.Comment = strings.TrimSpace(d.Comment)
	d.CatalogReason = strings.TrimSpace(d.CatalogReason)
	d.FreeText = strings.TrimSpace(d.FreeText)
	if d.State == "" {
		d.State = StateUnassessed
	}
	return d, nil
}

// SetResolution records the final verdict for one (person, entity) pair and
// returns the number of rows written.
func (s *Service) SetResolution(ctx context.Context, actor Actor, d Decision) (int64, error) {
	if !actor.Privileged() {
		return 0, ErrForbidden
	}
	d, err := normalizeDecision(d)
	if err != nil {
		return 0, err
	}
	d.EntityKey = s.entityKey(d.EntityKey)
	if d.EntityKey == "" {
		d.EntityKey = GeneralEntity
	}
	if err := d.validate(StateUnassessed, StateResolved, StateUnresolved); err != nil {
		return 0, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("review: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	n, err := s.repo.UpsertResolution(ctx, tx, Resolution{
		PersonID:      d.PersonID,
		EntityKey:     d.EntityKey,
		State:         d.State,
		Comment:       d.Comment,
		CatalogReason: d.CatalogReason,
		FreeText:      d.FreeText,
	})
	if err != nil {
		return 0, s.diagnose(ctx, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, s.diagnose(ctx, fmt.Errorf("review: commit resolution: %w", err))
	}

	s.metrics.ReviewTransition("resolution", int(n))
	s.logger.Info("resolution recorded",
		zap.String("person_id", d.PersonID),
		zap.String("entity_key", d.EntityKey),
		zap.String("state", string(d.State)),
		zap.String("actor", actor.Username),
	)
	return n, nil
}

// SetPrevalidation applies a draft verdict to every entity of the person's
// cross-reference, or to the named entity when crossRefEntities is empty.
// Every entity written gets a history entry; reverting to StateUnassessed is
// recorded as ActionCancelResolution and clears the reasons.
func (s *Service) SetPrevalidation(ctx context.Context, actor Actor, d Decision, crossRefEntities []string) (CascadeResult, error) {
	if !actor.Privileged() {
		return CascadeResult{}, ErrForbidden
	}
	d, err := normalizeDecision(d)
	if err != nil {
		return CascadeResult{}, err
	}
	d.EntityKey = strings.TrimSpace(d.EntityKey)
	if d.EntityKey == "" {
		return CascadeResult{}, &ValidationError{Err: ErrMissingKey}
	}
	if err := d.validate(StateUnassessed, StateResolved); err != nil {
		return CascadeResult{}, err
	}

	action := ActionPrevalidate
	if d.State == StateUnassessed {
		action = ActionCancelResolution
		d.Comment, d.CatalogReason, d.FreeText = "", "", ""
	}

	targets := s.cascadeTargets(d.EntityKey, crossRefEntities)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return CascadeResult{}, fmt.Errorf("review: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var res CascadeResult
	for _, entity := range targets {
		prev, err := s.repo.LockPrevalidationState(ctx, tx, d.PersonID, entity)
		if err != nil {
			return CascadeResult{}, s.diagnose(ctx, err)
		}
		n, err := s.repo.UpsertPrevalidation(ctx, tx, Prevalidation{
			PersonID:      d.PersonID,
			EntityKey:     entity,
			State:         d.State,
			Comment:       d.Comment,
			CatalogReason: d.CatalogReason,
			FreeText:      d.FreeText,
			Reviewer:      actor.Username,
		})
		if err != nil {
			return CascadeResult{}, s.diagnose(ctx, err)
		}
		if err := s.repo.AppendHistory(ctx, tx, HistoryEntry{
			PersonID:      d.PersonID,
			EntityKey:     entity,
			Action:        action,
			PreviousState: prev,
			NewState:      d.State,
			Reviewer:      actor.Username,
		}); err != nil {
			return CascadeResult{}, s.diagnose(ctx, err)
		}
		res.RowsAffected += n
		res.Entities = append(res.Entities, entity)
	}

	if err := tx.Commit(ctx); err != nil {
		return CascadeResult{}, s.diagnose(ctx, fmt.Errorf("review: commit prevalidation: %w", err))
	}

	s.metrics.ReviewTransition(action, len(res.Entities))
	s.logger.Info("prevalidation applied",
		zap.String("person_id", d.PersonID),
		zap.Strings("entities", res.Entities),
		zap.String("action", action),
		zap.String("state", string(d.State)),
		zap.String("actor", actor.Username),
	)
	return res, nil
}

func (s *Service) cascadeTargets(named string, crossRef []string) []string {
	seen := make(map[string]struct{}, len(crossRef))
	var out []string
	for _, e := range crossRef {
		key := s.entityKey(e)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	if len(out) == 0 {
		return []string{s.entityKey(named)}
	}
	return out
}

// PublishFindings makes the current findings visible to non-privileged viewers.
func (s *Service) PublishFindings(ctx context.Context, actor Actor) error {
	return s.setPublished(ctx, actor, true)
}

// UnpublishFindings hides findings again. Review data is kept.
func (s *Service) UnpublishFindings(ctx context.Context, actor Actor) error {
	return s.setPublished(ctx, actor, false)
}

func (s *Service) setPublished(ctx context.Context, actor Actor, published bool) error {
	if !actor.Privileged() {
		return ErrForbidden
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("review: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.repo.SetPublished(ctx, tx, published, actor.Username); err != nil {
		return s.diagnose(ctx, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return s.diagnose(ctx, fmt.Errorf("review: commit publication: %w", err))
	}

	action := "publish"
	if !published {
		action = "unpublish"
	}
	s.metrics.ReviewTransition(action, 1)
	s.logger.Info("publication changed", zap.Bool("published", published), zap.String("actor", actor.Username))
	return nil
}

func (s *Service) IsPublished(ctx context.Context) (bool, error) {
	p, err := s.repo.Publication(ctx, s.db)
	if err != nil {
		return false, err
	}
	return p.Published, nil
}

func (s *Service) Publication(ctx context.Context) (Publication, error) {
	return s.repo.Publication(ctx, s.db)
}

// Prevalidations loads draft verdicts for the given people (all when empty).
func (s *Service) Prevalidations(ctx context.Context, personIDs ...string) (PrevalidationMap, error) {
	return s.repo.ListPrevalidations(ctx, s.db, personIDs)
}

// Resolutions loads final verdicts for the given people (all when empty).
func (s *Service) Resolutions(ctx context.Context, personIDs ...string) (ResolutionMap, error) {
	return s.repo.ListResolutions(ctx, s.db, personIDs)
}

func (s *Service) History(ctx context.Context, personID string) ([]HistoryEntry, error) {
	return s.repo.ListHistory(ctx, s.db, strings.ToUpper(strings.TrimSpace(personID)))
}

// diagnose turns a read-only rejection into a ReadOnlyError that names the
// database and user involved.
func (s *Service) diagnose(ctx context.Context, err error) error {
	if !isReadOnly(err) {
		return err
	}
	roErr := &ReadOnlyError{Err: err}
	if qerr := s.db.QueryRow(ctx, `SELECT current_database(), current_user, current_setting('transaction_read_only')`).
		Scan(&roErr.Database, &roErr.User, &roErr.TransactionReadOnly); qerr != nil {
		s.logger.Warn("read-only diagnostics unavailable", zap.Error(qerr))
	}
	s.logger.Error("write rejected by read-only database",
		zap.String("database", roErr.Database),
		zap.String("user", roErr.User),
		zap.String("transaction_read_only", roErr.TransactionReadOnly),
	)
	return roErr
}
