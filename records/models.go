package records

import "time"

// Record is the current employment record of one person at one entity.
// (PersonID, EntityKey) is unique; a later upload replaces the earlier one.
type Record struct {
	PersonID        string
	EntityKey       string
	FullName        string
	Position        string
	HireDate        *time.Time
	TerminationDate *time.Time
	Amount          float64
	// Periods holds the active pay periods.
	Periods PeriodSet
	// PeriodValues keeps the raw cell value of each active period as uploaded.
	PeriodValues map[Period]string
	LoadedAt     time.Time
	UpdatedAt    time.Time
}

// Key identifies the record's (person, entity) slot.
func (r Record) Key() string {
	return r.PersonID + "|" + r.EntityKey
}

// UpsertResult tallies one upload's writes.
type UpsertResult struct {
	Inserted int
	Updated  int
	Skipped  int
	Failed   int
	Failures []RowFailure
}

// RowFailure describes a row the store could not write.
type RowFailure struct {
	PersonID  string
	EntityKey string
	Err       string
}

// Archive categories.
const (
	CategoryCrossReference = "CRUCE_ENTRE_ENTES_QNA"
	CategoryNonCrossing    = "SIN_DUPLICIDAD"
)

// ArchiveEntry is a result row offered to the content-addressed archive.
// Payload must be JSON-serialisable; its encoding is part of the hash.
type ArchiveEntry struct {
	Category string `json:"category"`
	PersonID string `json:"person_id"`
	Payload  any    `json:"payload"`
}

// ArchivedEntry is an entry as stored.
type ArchivedEntry struct {
	ID         int64
	Category   string
	PersonID   string
	Payload    []byte
	Hash       string
	ArchivedAt time.Time
}

// ArchiveResult tallies an ArchiveIfNew call.
type ArchiveResult struct {
	New        int
	Duplicates int
}

// ArchiveFilter narrows ListArchive. Zero values mean no filter.
type ArchiveFilter struct {
	PersonID string
	Category string
	Page     int
	PageSize int
}
