// Package crossref finds people who were active in more than one entity
// during the same pay period and consolidates the evidence into one finding
// per person.
package crossref

import (
	"sort"

	"payrollaudit/records"
)

// Overlap is a pair of entities whose active periods intersect.
type Overlap struct {
	A, B    string
	Periods records.PeriodSet
}

// periodsByEntity unions the active periods of each entity. Entity keys are
// returned in ascending order.
func periodsByEntity(recs []records.Record) ([]string, map[string]records.PeriodSet) {
	sets := make(map[string]records.PeriodSet, len(recs))
	for _, r := range recs {
		sets[r.EntityKey] = sets[r.EntityKey].Union(r.Periods)
	}
	keys := make([]string, 0, len(sets))
	for k := range sets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, sets
}

// Detect compares every pair of entities in one person's records and returns
// the pairs that share at least one active period. It returns nil when the
// person has fewer than two records.
func Detect(recs []records.Record) []Overlap {
	if len(recs) < 2 {
		return nil
	}
	keys, sets := periodsByEntity(recs)

	var out []Overlap
	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			inter := sets[keys[i]].Intersect(sets[keys[j]])
			if inter.Empty() {
				continue
			}
			out = append(out, Overlap{A: keys[i], B: keys[j], Periods: inter})
		}
	}
	return out
}

// Consolidate merges a person's overlaps into a single finding. ok is false
// when there are no overlaps.
func Consolidate(recs []records.Record, overlaps []Overlap) (f Finding, ok bool) {
	if len(overlaps) == 0 || len(recs) == 0 {
		return Finding{}, false
	}

	involved := make(map[string]struct{})
	var periods records.PeriodSet
	for _, o := range overlaps {
		involved[o.A] = struct{}{}
		involved[o.B] = struct{}{}
		periods = periods.Union(o.Periods)
	}
	entities := make([]string, 0, len(involved))
	for k := range involved {
		entities = append(entities, k)
	}
	sort.Strings(entities)

	src := sortedByEntity(recs)
	return Finding{
		PersonID:      src[0].PersonID,
		FullName:      firstName(src),
		Entities:      entities,
		Periods:       periods,
		SourceRecords: src,
	}, true
}

// Analyze groups records by person and splits the people into findings and
// non-crossing persons. Both lists are ordered by person id.
func Analyze(all []records.Record) ([]Finding, []NonCrossingPerson) {
	byPerson := make(map[string][]records.Record)
	for _, r := range all {
		byPerson[r.PersonID] = append(byPerson[r.PersonID], r)
	}
	people := make([]string, 0, len(byPerson))
	for p := range byPerson {
		people = append(people, p)
	}
	sort.Strings(people)

	var findings []Finding
	var rest []NonCrossingPerson
	for _, p := range people {
		recs := byPerson[p]
		if f, ok := Consolidate(recs, Detect(recs)); ok {
			findings = append(findings, f)
			continue
		}
		src := sortedByEntity(recs)
		keys, _ := periodsByEntity(src)
		rest = append(rest, NonCrossingPerson{
			PersonID:      p,
			FullName:      firstName(src),
			Entities:      keys,
			SourceRecords: src,
		})
	}
	return findings, rest
}

func sortedByEntity(recs []records.Record) []records.Record {
	out := make([]records.Record, len(recs))
	copy(out, recs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].EntityKey < out[j].EntityKey })
	return out
}

func firstName(recs []records.Record) string {
	for _, r := range recs {
		if r.FullName != "" {
			return r.FullName
		}
	}
	return ""
}
