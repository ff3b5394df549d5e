package audit

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"payrollaudit/ingest"
)

// Summary is the outcome of one upload.
type Summary struct {
	RunID              uuid.UUID
	Files              int
	Records            int
	Inserted           int
	Updated            int
	Failed             int
	Findings           int
	NonCrossing        int
	ArchivedNew        int
	ArchivedDuplicates int
	Alerts             []ingest.Alert
	StartedAt          time.Time
	FinishedAt         time.Time
}

// Message is the tally shown to the uploader.
func (s Summary) Message() string {
	return fmt.Sprintf("Procesados %d registros: %d nuevos, %d actualizados, %d con error. Resultados: %d nuevos, %d duplicados.",
		s.Records, s.Inserted, s.Updated, s.Failed, s.ArchivedNew, s.ArchivedDuplicates)
}

// Run is a persisted upload.
type Run struct {
	ID         uuid.UUID
	Files      int
	Inserted   int
	Updated    int
	Failed     int
	Alerts     []ingest.Alert
	StartedAt  time.Time
	FinishedAt *time.Time
	// Error is set when the upload aborted.
	Error string
}
