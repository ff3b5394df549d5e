package review

import (
	"context"
	"strings"

	"payrollaudit/crossref"
	"payrollaudit/records"
)

// FilterVisible returns the findings a viewer may see.
//
// Privileged viewers see every finding. Everyone else sees nothing until the
// findings are published; after that, entities whose prevalidation is already
// triaged are hidden, a finding left with fewer than two entities is dropped,
// and a finding must touch at least one entity in the viewer's scope.
func FilterVisible(findings []crossref.Finding, viewer Actor, published bool, pre PrevalidationMap) []crossref.Finding {
	if viewer.Privileged() {
		return findings
	}
	if !published {
		return nil
	}

	var out []crossref.Finding
	for _, f := range findings {
		var visible []string
		hidden := make(map[string]bool)
		inScope := false
		for _, e := range f.Entities {
			if p, ok := pre.Get(f.PersonID, e); ok && p.State.Triaged() {
				hidden[e] = true
				continue
			}
			visible = append(visible, e)
			if viewer.CanSee(e) {
				inScope = true
			}
		}
		if len(visible) < 2 || !inScope {
			continue
		}
		f.Entities = visible
		if len(hidden) > 0 {
			f.SourceRecords = withoutEntities(f.SourceRecords, hidden)
		}
		out = append(out, f)
	}
	return out
}

// withoutEntities drops the records of hidden entities so they neither render
// as rows nor count as overlaps of the remaining ones.
func withoutEntities(recs []records.Record, hidden map[string]bool) []records.Record {
	out := make([]records.Record, 0, len(recs))
	for _, r := range recs {
		if !hidden[r.EntityKey] {
			out = append(out, r)
		}
	}
	return out
}

// VisibleFindings loads the publication flag and prevalidations, then applies
// FilterVisible.
func (s *Service) VisibleFindings(ctx context.Context, viewer Actor, findings []crossref.Finding) ([]crossref.Finding, error) {
	if viewer.Privileged() {
		return findings, nil
	}
	published, err := s.IsPublished(ctx)
	if err != nil {
		return nil, err
	}
	if !published || len(findings) == 0 {
		return nil, nil
	}
	people := make([]string, len(findings))
	for i, f := range findings {
		people[i] = f.PersonID
	}
	pre, err := s.Prevalidations(ctx, people...)
	if err != nil {
		return nil, err
	}
	return FilterVisible(findings, viewer, published, pre), nil
}

// ResolutionText renders the reason for a verdict as "reason - comment".
// The reason is the catalog value, or the free text when the catalog value is
// Otro. Without a prevalidation reason or comment it falls back to the
// resolution's comment, then to fallback.
func ResolutionText(pre *Prevalidation, res *Resolution, fallback string) string {
	var catalog, other, comment string
	if pre != nil {
		catalog = strings.TrimSpace(pre.CatalogReason)
		other = strings.TrimSpace(pre.FreeText)
		comment = strings.TrimSpace(pre.Comment)
	}

	reason := catalog
	if catalog == OtherReason && other != "" {
		reason = other
	}

	switch {
	case reason != "" && comment != "":
		return reason + " - " + comment
	case reason != "":
		return reason
	case comment != "":
		return comment
	}
	if res != nil {
		if c := strings.TrimSpace(res.Comment); c != "" {
			return c
		}
	}
	return strings.TrimSpace(fallback)
}

// EffectiveState is the prevalidation state when one exists, else the
// resolution state, else StateUnassessed.
func EffectiveState(pre *Prevalidation, res *Resolution) State {
	if pre != nil && pre.State != "" {
		return pre.State
	}
	if res != nil && res.State != "" {
		return res.State
	}
	return StateUnassessed
}
