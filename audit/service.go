// Package audit runs an upload end to end: extraction, upsert, detection and
// archiving, recording each run in ingest_runs.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"payrollaudit/crossref"
	"payrollaudit/ingest"
	"payrollaudit/logging"
	"payrollaudit/records"
)

type Extractor interface {
	ExtractIndividualRecords(ctx context.Context, files []ingest.File) (ingest.Result, error)
}

type RecordStore interface {
	Upsert(ctx context.Context, recs []records.Record) (records.UpsertResult, error)
	ArchiveIfNew(ctx context.Context, entries []records.ArchiveEntry) (records.ArchiveResult, error)
}

type Detector interface {
	Analyze(ctx context.Context) ([]crossref.Finding, []crossref.NonCrossingPerson, error)
}

type Service struct {
	extractor Extractor
	store     RecordStore
	detector  Detector
	runs      RunRepository
	logger    *zap.Logger
	now       func() time.Time
	newID     func() uuid.UUID
}

func NewService(extractor Extractor, store RecordStore, detector Detector, runs RunRepository) *Service {
	return &Service{
		extractor: extractor,
		store:     store,
		detector:  detector,
		runs:      runs,
		logger:    zap.NewNop(),
		now:       time.Now,
		newID:     uuid.New,
	}
}

func (s *Service) WithLogger(l *zap.Logger) *Service {
	s.logger = logging.OrNop(l)
	return s
}

// finishTimeout bounds the write that closes a run, which still happens when
// the upload's own context was cancelled.
const finishTimeout = 5 * time.Second

// RunUpload processes one batch of files. Alerts are returned in the summary;
// an error means the upload itself could not be completed, and the run row is
// closed with that error.
func (s *Service) RunUpload(ctx context.Context, files []ingest.File) (Summary, error) {
	sum := Summary{RunID: s.newID(), Files: len(files), StartedAt: s.now().UTC()}
	log := s.logger.With(zap.String("run_id", sum.RunID.String()))

	if s.runs != nil {
		if err := s.runs.StartRun(ctx, Run{ID: sum.RunID, Files: sum.Files, StartedAt: sum.StartedAt}); err != nil {
			return Summary{}, err
		}
	}

	err := s.process(ctx, files, &sum)
	sum.FinishedAt = s.now().UTC()

	if s.runs != nil {
		finished := sum.FinishedAt
		run := Run{
			ID:         sum.RunID,
			Files:      sum.Files,
			Inserted:   sum.Inserted,
			Updated:    sum.Updated,
			Failed:     sum.Failed,
			Alerts:     sum.Alerts,
			StartedAt:  sum.StartedAt,
			FinishedAt: &finished,
		}
		if err != nil {
			run.Error = err.Error()
		}
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
		ferr := s.runs.FinishRun(fctx, run)
		cancel()
		switch {
		case ferr != nil && err == nil:
			return Summary{}, ferr
		case ferr != nil:
			log.Warn("run left open", zap.Error(ferr))
		}
	}

	if err != nil {
		log.Error("upload failed", zap.Error(err))
		return Summary{}, err
	}

	log.Info("upload finished",
		zap.Int("files", sum.Files),
		zap.Int("records", sum.Records),
		zap.Int("inserted", sum.Inserted),
		zap.Int("updated", sum.Updated),
		zap.Int("failed", sum.Failed),
		zap.Int("findings", sum.Findings),
		zap.Int("archived_new", sum.ArchivedNew),
		zap.Int("archived_duplicates", sum.ArchivedDuplicates),
		zap.Int("alerts", len(sum.Alerts)),
	)
	return sum, nil
}

// process runs extract, upsert, detect and archive in order, filling sum as
// each step completes.
func (s *Service) process(ctx context.Context, files []ingest.File, sum *Summary) error {
	extracted, err := s.extractor.ExtractIndividualRecords(ctx, files)
	if err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	sum.Records = len(extracted.Records)
	sum.Alerts = extracted.Alerts

	upserted, err := s.store.Upsert(ctx, extracted.Records)
	if err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	sum.Inserted, sum.Updated, sum.Failed = upserted.Inserted, upserted.Updated, upserted.Failed

	findings, rest, err := s.detector.Analyze(ctx)
	if err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	sum.Findings, sum.NonCrossing = len(findings), len(rest)

	archived, err := s.store.ArchiveIfNew(ctx, crossref.ArchiveEntries(findings, rest))
	if err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	sum.ArchivedNew, sum.ArchivedDuplicates = archived.New, archived.Duplicates
	return nil
}

// Runs lists recent uploads.
func (s *Service) Runs(ctx context.Context, limit int) ([]Run, error) {
	if s.runs == nil {
		return nil, nil
	}
	return s.runs.ListRuns(ctx, limit)
}
