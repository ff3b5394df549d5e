package crossref

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"payrollaudit/logging"
	"payrollaudit/metrics"
	"payrollaudit/records"
)

// RecordSource reads current employment records.
type RecordSource interface {
	ListCurrent(ctx context.Context) ([]records.Record, error)
	ListByPerson(ctx context.Context, personID string) ([]records.Record, error)
}

// Engine runs detection over the record store. Nothing is cached: every call
// reads the current records.
type Engine struct {
	source  RecordSource
	logger  *zap.Logger
	metrics *metrics.Recorder
}

func NewEngine(source RecordSource) *Engine {
	return &Engine{source: source, logger: zap.NewNop()}
}

func (e *Engine) WithLogger(l *zap.Logger) *Engine {
	e.logger = logging.OrNop(l)
	return e
}

func (e *Engine) WithMetrics(m *metrics.Recorder) *Engine {
	e.metrics = m
	return e
}

// Analyze returns findings and non-crossing persons from one snapshot.
func (e *Engine) Analyze(ctx context.Context) ([]Finding, []NonCrossingPerson, error) {
	all, err := e.source.ListCurrent(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("crossref: list records: %w", err)
	}
	findings, rest := Analyze(all)
	e.metrics.Findings(len(findings))
	e.logger.Info("cross-reference detection",
		zap.Int("records", len(all)),
		zap.Int("findings", len(findings)),
		zap.Int("non_crossing", len(rest)),
	)
	return findings, rest, nil
}

func (e *Engine) DetectCrossReferences(ctx context.Context) ([]Finding, error) {
	findings, _, err := e.Analyze(ctx)
	return findings, err
}

func (e *Engine) DetectNonCrossing(ctx context.Context) ([]NonCrossingPerson, error) {
	_, rest, err := e.Analyze(ctx)
	return rest, err
}

// EntitiesInCrossReference returns the sorted entity keys of the person's
// finding, or nil when the person has none.
func (e *Engine) EntitiesInCrossReference(ctx context.Context, personID string) ([]string, error) {
	recs, err := e.source.ListByPerson(ctx, personID)
	if err != nil {
		return nil, fmt.Errorf("crossref: list person records: %w", err)
	}
	f, ok := Consolidate(recs, Detect(recs))
	if !ok {
		return nil, nil
	}
	return f.Entities, nil
}

// ArchiveEntries lists findings first, then non-crossing persons.
func ArchiveEntries(findings []Finding, rest []NonCrossingPerson) []records.ArchiveEntry {
	out := make([]records.ArchiveEntry, 0, len(findings)+len(rest))
	for _, f := range findings {
		out = append(out, f.ArchiveEntry())
	}
	for _, p := range rest {
		out = append(out, p.ArchiveEntry())
	}
	return out
}
