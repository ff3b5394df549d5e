package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"payrollaudit/logging"
	"payrollaudit/metrics"
	"payrollaudit/records"
)

// DefaultMaxFileBytes caps a single upload.
const DefaultMaxFileBytes int64 = 50 << 20

var allowedExtensions = map[string]struct{}{
	".xlsx": {},
	".xls":  {},
}

// File is one uploaded spreadsheet: a display name and a way to read its bytes.
type File struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

// FileFromPath describes a file on disk. A missing file is reported when the
// extractor opens it, not here.
func FileFromPath(path string) File {
	f := File{
		Name: filepath.Base(path),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
	if info, err := os.Stat(path); err == nil {
		f.Size = info.Size()
	}
	return f
}

// FileFromBytes wraps an in-memory upload.
func FileFromBytes(name string, data []byte) File {
	return File{
		Name: name,
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

// EntityResolver maps a sheet label to an entity key.
type EntityResolver interface {
	Resolve(label string) (string, error)
}

// Result is the outcome of one extraction: the records found in every readable
// sheet and the alerts raised for everything that was skipped.
type Result struct {
	Records []records.Record
	Alerts  []Alert
}

// Extractor turns uploaded spreadsheets into employment records. Each sheet
// name is resolved to an entity; each row becomes one record.
type Extractor struct {
	resolver EntityResolver
	maxBytes int64
	workers  int
	logger   *zap.Logger
	metrics  *metrics.Recorder
}

func NewExtractor(resolver EntityResolver) *Extractor {
	return &Extractor{
		resolver: resolver,
		maxBytes: DefaultMaxFileBytes,
		workers:  1,
		logger:   zap.NewNop(),
	}
}

func (e *Extractor) WithMaxFileBytes(n int64) *Extractor {
	if n > 0 {
		e.maxBytes = n
	}
	return e
}

// WithWorkers sets how many files are parsed at once.
func (e *Extractor) WithWorkers(n int) *Extractor {
	if n > 0 {
		e.workers = n
	}
	return e
}

func (e *Extractor) WithLogger(l *zap.Logger) *Extractor {
	e.logger = logging.OrNop(l)
	return e
}

func (e *Extractor) WithMetrics(m *metrics.Recorder) *Extractor {
	e.metrics = m
	return e
}

// ExtractIndividualRecords parses every file and returns the merged records
// and alerts. Problems with a file or sheet become alerts; the only error
// returned is cancellation of ctx.
//
// Files are parsed concurrently but merged in input order, so when the same
// (person, entity) slot appears more than once the last occurrence wins.
func (e *Extractor) ExtractIndividualRecords(ctx context.Context, files []File) (Result, error) {
	parsed := make([]Result, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			parsed[i] = e.extractFile(f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("ingest: extract: %w", err)
	}

	var out Result
	slot := make(map[string]int)
	for _, r := range parsed {
		for _, rec := range r.Records {
			if i, ok := slot[rec.Key()]; ok {
				out.Records[i] = rec
				continue
			}
			slot[rec.Key()] = len(out.Records)
			out.Records = append(out.Records, rec)
		}
		out.Alerts = append(out.Alerts, r.Alerts...)
	}

	for _, a := range out.Alerts {
		e.metrics.Alert(string(a.Kind))
	}
	e.logger.Info("extraction finished",
		zap.Int("files", len(files)),
		zap.Int("records", len(out.Records)),
		zap.Int("alerts", len(out.Alerts)),
	)
	return out, nil
}

func (e *Extractor) extractFile(f File) Result {
	var res Result
	alert := func(kind AlertKind, msg string) Result {
		a := Alert{Kind: kind, File: f.Name, Message: msg}
		e.logger.Warn("file skipped", zap.String("file", f.Name), zap.String("kind", string(kind)), zap.String("reason", msg))
		return Result{Alerts: []Alert{a}}
	}

	if strings.TrimSpace(f.Name) == "" || f.Open == nil {
		return alert(AlertInvalidFile, "upload has no name or content")
	}
	if _, ok := allowedExtensions[strings.ToLower(filepath.Ext(f.Name))]; !ok {
		return alert(AlertInvalidExtension, "only .xlsx and .xls files are accepted")
	}
	if f.Size > e.maxBytes {
		return alert(AlertFileTooLarge, fmt.Sprintf("file is %d bytes, limit is %d", f.Size, e.maxBytes))
	}

	rc, err := f.Open()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return alert(AlertFileNotFound, "file does not exist")
		}
		return alert(AlertReadError, err.Error())
	}
	defer rc.Close()

	// Size may be unknown for streamed uploads; enforce the cap while reading.
	data, err := io.ReadAll(io.LimitReader(rc, e.maxBytes+1))
	if err != nil {
		return alert(AlertReadError, err.Error())
	}
	if int64(len(data)) > e.maxBytes {
		return alert(AlertFileTooLarge, fmt.Sprintf("file exceeds %d bytes", e.maxBytes))
	}

	book, err := openBook(f.Name, data)
	if err != nil {
		return alert(AlertReadError, err.Error())
	}
	defer book.Close()

	for _, sheet := range book.Sheets() {
		recs, a := e.extractSheet(book, f.Name, sheet)
		res.Records = append(res.Records, recs...)
		if a != nil {
			e.logger.Warn("sheet skipped",
				zap.String("file", f.Name),
				zap.String("sheet", sheet),
				zap.String("kind", string(a.Kind)),
			)
			res.Alerts = append(res.Alerts, *a)
		}
	}
	return res
}

func (e *Extractor) extractSheet(book sheetBook, fileName, sheet string) ([]records.Record, *Alert) {
	label := strings.ToUpper(strings.TrimSpace(sheet))
	entityKey, err := e.resolver.Resolve(label)
	if err != nil {
		return nil, &Alert{
			Kind:    AlertEntityNotFound,
			File:    fileName,
			Sheet:   sheet,
			Message: fmt.Sprintf("no entity matches sheet %q", label),
		}
	}

	rows, err := book.Rows(sheet)
	if err != nil {
		return nil, &Alert{Kind: AlertReadError, File: fileName, Sheet: sheet, Message: err.Error()}
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := make([]string, len(rows[0]))
	present := make(map[string]bool, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = NormalizeHeader(h)
		present[header[i]] = true
	}
	var missing []string
	for _, col := range RequiredColumns {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &Alert{
			Kind:    AlertMissingColumns,
			File:    fileName,
			Sheet:   sheet,
			Message: "missing required columns: " + strings.Join(missing, ", "),
			Missing: missing,
		}
	}

	var out []records.Record
	for n, cells := range rows[1:] {
		row := make(Row, len(header))
		blank := true
		for i, col := range header {
			if col == "" || i >= len(cells) {
				continue
			}
			row[col] = cells[i]
			if strings.TrimSpace(cells[i]) != "" {
				blank = false
			}
		}
		if blank {
			continue
		}

		rec, err := NewRecord(row, entityKey)
		if err != nil {
			e.logger.Debug("row discarded",
				zap.String("file", fileName),
				zap.String("sheet", sheet),
				zap.Int("row", n+2),
				zap.Error(err),
			)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}
