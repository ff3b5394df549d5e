// Package report flattens findings and their review state into rows for
// display and spreadsheet export.
package report

import (
	"sort"
	"strings"

	"payrollaudit/catalog"
	"payrollaudit/crossref"
	"payrollaudit/review"
)

const (
	noPosition      = "Sin puesto"
	noOtherEntities = "Sin otros entes"
	noReason        = "Sin motivo"
)

// Catalog supplies display labels for entity keys.
type Catalog interface {
	Display(key string) string
	ShortCode(key string) string
	Entry(key string) (catalog.Entry, bool)
}

// Row is one source record of a finding.
type Row struct {
	PersonID             string
	FullName             string
	Position             string
	HireDate             string
	TerminationDate      string
	Amount               float64
	EntityKey            string
	OriginEntity         string
	IncompatibleEntities string
	Periods              string
	State                review.State
	Resolution           string
}

// Review bundles the review state needed to render rows.
type Review struct {
	Prevalidations review.PrevalidationMap
	Resolutions    review.ResolutionMap
}

func (rv Review) lookup(person, entity string) (*review.Prevalidation, *review.Resolution) {
	var (
		pre *review.Prevalidation
		res *review.Resolution
	)
	if p, ok := rv.Prevalidations.Get(person, entity); ok {
		pre = &p
	}
	if r, ok := rv.Resolutions.Get(person, entity); ok {
		res = &r
	}
	return pre, res
}

// BuildRows emits one row per source record of every finding, in finding order.
func BuildRows(findings []crossref.Finding, cat Catalog, rv Review) []Row {
	var out []Row
	for _, f := range findings {
		for _, rec := range f.SourceRecords {
			others, periods := f.OverlapsWith(rec.EntityKey)
			codes := make([]string, len(others))
			for i, o := range others {
				codes[i] = cat.ShortCode(o)
			}
			incompatible := strings.Join(codes, ", ")
			if incompatible == "" {
				incompatible = noOtherEntities
			}

			position := rec.Position
			if position == "" {
				position = noPosition
			}

			pre, res := rv.lookup(f.PersonID, rec.EntityKey)
			out = append(out, Row{
				PersonID:             f.PersonID,
				FullName:             f.FullName,
				Position:             position,
				HireDate:             formatDate(rec.HireDate),
				TerminationDate:      formatDate(rec.TerminationDate),
				Amount:               rec.Amount,
				EntityKey:            rec.EntityKey,
				OriginEntity:         cat.Display(rec.EntityKey),
				IncompatibleEntities: incompatible,
				Periods:              crossref.PeriodLabel(periods),
				State:                review.EffectiveState(pre, res),
				Resolution:           review.ResolutionText(pre, res, ""),
			})
		}
	}
	return out
}

// ForEntity keeps the findings that involve entityKey and that the viewer may
// see for that entity.
func ForEntity(findings []crossref.Finding, entityKey string, viewer review.Actor) []crossref.Finding {
	var out []crossref.Finding
	for _, f := range findings {
		if f.Involves(entityKey) && viewer.CanSee(entityKey) {
			out = append(out, f)
		}
	}
	return out
}

// ResolvedRow groups the entities of one person resolved for the same reason.
type ResolvedRow struct {
	PersonID    string
	FullName    string
	Entities    string
	Reason      string
	Observation string
}

// ResolvedSummary counts distinct people and (person, entity) pairs resolved.
type ResolvedSummary struct {
	People  int
	Records int
}

// Resolved lists prevalidations marked resolved, grouped by person and
// reason. scope limits entities to one catalog scope when non-empty;
// entityFilter limits them to one display label when non-empty.
func Resolved(findings []crossref.Finding, cat Catalog, pre review.PrevalidationMap, viewer review.Actor, scope catalog.Scope, entityFilter string) ([]ResolvedRow, ResolvedSummary) {
	type group struct {
		row      ResolvedRow
		entities map[string]struct{}
	}
	groups := map[string]*group{}
	people := map[string]struct{}{}
	pairs := map[string]struct{}{}

	for _, f := range findings {
		for _, entity := range f.Entities {
			if !viewer.CanSee(entity) || !inScope(cat, entity, scope) {
				continue
			}
			display := cat.Display(entity)
			if entityFilter != "" && display != entityFilter {
				continue
			}
			p, ok := pre.Get(f.PersonID, entity)
			if !ok || p.State != review.StateResolved {
				continue
			}

			people[f.PersonID] = struct{}{}
			pairs[f.PersonID+"|"+entity] = struct{}{}

			reason := strings.TrimSpace(p.CatalogReason)
			switch {
			case reason == review.OtherReason && strings.TrimSpace(p.FreeText) != "":
				reason = strings.TrimSpace(p.FreeText)
			case reason == "":
				reason = noReason
			}
			comment := strings.TrimSpace(p.Comment)

			key := f.PersonID + "|" + reason
			g, ok := groups[key]
			if !ok {
				g = &group{
					row:      ResolvedRow{PersonID: f.PersonID, FullName: f.FullName, Reason: reason, Observation: comment},
					entities: map[string]struct{}{},
				}
				groups[key] = g
			}
			if g.row.Observation == "" {
				g.row.Observation = comment
			}
			g.entities[display] = struct{}{}
		}
	}

	out := make([]ResolvedRow, 0, len(groups))
	for _, g := range groups {
		labels := make([]string, 0, len(g.entities))
		for l := range g.entities {
			labels = append(labels, l)
		}
		sort.Strings(labels)
		g.row.Entities = strings.Join(labels, ", ")
		out = append(out, g.row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PersonID != out[j].PersonID {
			return out[i].PersonID < out[j].PersonID
		}
		return out[i].Reason < out[j].Reason
	})
	return out, ResolvedSummary{People: len(people), Records: len(pairs)}
}

func inScope(cat Catalog, entity string, scope catalog.Scope) bool {
	if scope == "" {
		return true
	}
	e, ok := cat.Entry(entity)
	if !ok {
		return scope == catalog.ScopeState
	}
	return e.Scope == scope
}
