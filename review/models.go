package review

import (
	"strings"
	"time"
)

// State is the review verdict for one (person, entity) pair. Values are the
// labels stored in the database.
type State string

const (
	StateUnassessed State = "Sin valoración"
	StateResolved   State = "Solventado"
	StateUnresolved State = "No Solventado"
)

// OtherReason is the catalog reason that requires a free-text justification.
const OtherReason = "Otro"

// GeneralEntity is used when a resolution is recorded without an entity.
const GeneralEntity = "GENERAL"

// History actions.
const (
	ActionPrevalidate      = "prevalidar"
	ActionCancelResolution = "cancelar_solventacion"
)

// ParseState accepts a state label in any case. An empty label is
// StateUnassessed.
func ParseState(label string) (State, error) {
	s := strings.ToUpper(strings.Join(strings.Fields(label), " "))
	switch s {
	case "":
		return StateUnassessed, nil
	case "SIN VALORACIÓN", "SIN VALORACION":
		return StateUnassessed, nil
	case "SOLVENTADO":
		return StateResolved, nil
	case "NO SOLVENTADO":
		return StateUnresolved, nil
	}
	return "", &ValidationError{Err: ErrInvalidState, Detail: label}
}

// Triaged reports whether the state is a verdict rather than a draft.
func (s State) Triaged() bool {
	return s == StateResolved || s == StateUnresolved
}

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleAuditor Role = "auditor"
)

// Actor is the reviewer performing an action or viewing findings.
type Actor struct {
	Username string
	Role     Role
	// Entities limits what a non-privileged viewer may see. Empty means all.
	Entities []string
}

func (a Actor) Privileged() bool { return a.Role == RoleAdmin }

// CanSee reports whether entityKey is inside the actor's scope.
func (a Actor) CanSee(entityKey string) bool {
	if a.Privileged() || len(a.Entities) == 0 {
		return true
	}
	for _, e := range a.Entities {
		if strings.EqualFold(strings.TrimSpace(e), entityKey) {
			return true
		}
	}
	return false
}

// Decision is a requested verdict for one (person, entity) pair.
type Decision struct {
	PersonID      string
	EntityKey     string
	State         State
	Comment       string
	CatalogReason string
	FreeText      string
}

// Resolution is the final verdict. Later writes overwrite earlier ones.
type Resolution struct {
	PersonID      string
	EntityKey     string
	State         State
	Comment       string
	CatalogReason string
	FreeText      string
	UpdatedAt     time.Time
}

// Prevalidation is the draft verdict recorded before publication.
type Prevalidation struct {
	PersonID      string
	EntityKey     string
	State         State
	Comment       string
	CatalogReason string
	FreeText      string
	Reviewer      string
	UpdatedAt     time.Time
}

type HistoryEntry struct {
	ID            int64
	PersonID      string
	EntityKey     string
	Action        string
	PreviousState State
	NewState      State
	Reviewer      string
	CreatedAt     time.Time
}

// CascadeResult reports what a prevalidation write touched.
type CascadeResult struct {
	RowsAffected int64
	Entities     []string
}

type Publication struct {
	Published bool
	UpdatedAt time.Time
	UpdatedBy string
}

// PrevalidationMap indexes prevalidations by person, then entity.
type PrevalidationMap map[string]map[string]Prevalidation

func (m PrevalidationMap) Get(personID, entityKey string) (Prevalidation, bool) {
	p, ok := m[personID][entityKey]
	return p, ok
}

// ResolutionMap indexes resolutions by person, then entity.
type ResolutionMap map[string]map[string]Resolution

func (m ResolutionMap) Get(personID, entityKey string) (Resolution, bool) {
	r, ok := m[personID][entityKey]
	return r, ok
}
