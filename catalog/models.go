package catalog

// Scope distinguishes state entities from municipalities.
type Scope string

const (
	ScopeState     Scope = "ESTATAL"
	ScopeMunicipal Scope = "MUNICIPAL"
)

// Entry is one row of the entity catalog. Key is the canonical entity key used
// by every other package.
type Entry struct {
	Ordinal        string
	Key            string
	Name           string
	ShortCode      string
	Classification string
	Scope          Scope
	Active         bool
}

// DefaultEntries is the minimal catalog installed by `db seed` when no
// spreadsheet is supplied.
var DefaultEntries = []Entry{
	{Ordinal: "1.2", Key: "ENTE_1_2", Name: "Secretaría de Gobierno", ShortCode: "SEGOB", Classification: "Dependencia", Scope: ScopeState, Active: true},
	{Ordinal: "1.4", Key: "ENTE_1_4", Name: "Secretaría de Finanzas", ShortCode: "SEFIN", Classification: "Dependencia", Scope: ScopeState, Active: true},
	{Ordinal: "1.8", Key: "ENTE_1_8", Name: "Secretaría de Educación Pública", ShortCode: "SEPE", Classification: "Dependencia", Scope: ScopeState, Active: true},
}
