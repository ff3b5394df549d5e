package crossref

import (
	"fmt"
	"strings"
	"time"

	"payrollaudit/records"
)

const (
	// AllYearLabel replaces the period list when every period overlaps.
	AllYearLabel = "Activo en todo el ejercicio"

	NonCrossingSummary = "Empleado sin cruce detectado"
	noPeriodsLabel     = "N/A"
)

// Finding is the consolidated cross-reference evidence for one person.
type Finding struct {
	PersonID string
	FullName string
	// Entities participating in at least one overlapping pair, ascending.
	Entities []string
	// Periods is the union of every pairwise intersection.
	Periods       records.PeriodSet
	SourceRecords []records.Record
}

// Summary is the human-readable description of the finding.
func (f Finding) Summary() string {
	return fmt.Sprintf("Activo en %d entes durante %d quincena(s) simultáneas.", len(f.Entities), f.Periods.Len())
}

// PeriodLabel renders the overlapping periods for display.
func (f Finding) PeriodLabel() string {
	return PeriodLabel(f.Periods)
}

// Involves reports whether entityKey is part of the finding.
func (f Finding) Involves(entityKey string) bool {
	for _, e := range f.Entities {
		if e == entityKey {
			return true
		}
	}
	return false
}

// Record returns the source record for entityKey.
func (f Finding) Record(entityKey string) (records.Record, bool) {
	for _, r := range f.SourceRecords {
		if r.EntityKey == entityKey {
			return r, true
		}
	}
	return records.Record{}, false
}

// OverlapsWith lists the other entities whose periods intersect those of
// entityKey, with the union of those intersections.
func (f Finding) OverlapsWith(entityKey string) ([]string, records.PeriodSet) {
	var others []string
	var periods records.PeriodSet
	for _, o := range Detect(f.SourceRecords) {
		switch entityKey {
		case o.A:
			others = append(others, o.B)
		case o.B:
			others = append(others, o.A)
		default:
			continue
		}
		periods = periods.Union(o.Periods)
	}
	return others, periods
}

// PeriodLabel renders a set of periods as "QNA1, QNA2", the all-year label
// when the set is full, or "N/A" when empty. The label never changes how a
// finding is treated.
func PeriodLabel(s records.PeriodSet) string {
	switch {
	case s.Full():
		return AllYearLabel
	case s.Empty():
		return noPeriodsLabel
	default:
		return strings.Join(s.Codes(), ", ")
	}
}

// NonCrossingPerson is someone with current records but no overlap.
type NonCrossingPerson struct {
	PersonID      string
	FullName      string
	Entities      []string
	SourceRecords []records.Record
}

// archived payloads leave out load timestamps so that re-detecting unchanged
// data hashes to the same content.
type recordPayload struct {
	Entity          string            `json:"ente"`
	FullName        string            `json:"nombre"`
	Position        string            `json:"puesto"`
	HireDate        string            `json:"fecha_ingreso"`
	TerminationDate string            `json:"fecha_egreso"`
	Amount          float64           `json:"monto"`
	Periods         map[string]string `json:"qnas"`
}

type findingPayload struct {
	PersonID string          `json:"rfc"`
	FullName string          `json:"nombre"`
	Entities []string        `json:"entes"`
	Periods  []string        `json:"qnas_cruce,omitempty"`
	Category string          `json:"tipo_patron"`
	Summary  string          `json:"descripcion"`
	Records  []recordPayload `json:"registros"`
}

func newRecordPayloads(recs []records.Record) []recordPayload {
	out := make([]recordPayload, len(recs))
	for i, r := range recs {
		periods := make(map[string]string, r.Periods.Len())
		for _, p := range r.Periods.Periods() {
			periods[p.Code()] = r.PeriodValues[p]
		}
		out[i] = recordPayload{
			Entity:          r.EntityKey,
			FullName:        r.FullName,
			Position:        r.Position,
			HireDate:        formatDate(r.HireDate),
			TerminationDate: formatDate(r.TerminationDate),
			Amount:          r.Amount,
			Periods:         periods,
		}
	}
	return out
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

// ArchiveEntry converts the finding into its archive form.
func (f Finding) ArchiveEntry() records.ArchiveEntry {
	return records.ArchiveEntry{
		Category: records.CategoryCrossReference,
		PersonID: f.PersonID,
		Payload: findingPayload{
			PersonID: f.PersonID,
			FullName: f.FullName,
			Entities: f.Entities,
			Periods:  f.Periods.Codes(),
			Category: records.CategoryCrossReference,
			Summary:  f.Summary(),
			Records:  newRecordPayloads(f.SourceRecords),
		},
	}
}

// ArchiveEntry converts the person into its archive form.
func (p NonCrossingPerson) ArchiveEntry() records.ArchiveEntry {
	return records.ArchiveEntry{
		Category: records.CategoryNonCrossing,
		PersonID: p.PersonID,
		Payload: findingPayload{
			PersonID: p.PersonID,
			FullName: p.FullName,
			Entities: p.Entities,
			Category: records.CategoryNonCrossing,
			Summary:  NonCrossingSummary,
			Records:  newRecordPayloads(p.SourceRecords),
		},
	}
}
