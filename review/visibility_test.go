package review

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payrollaudit/crossref"
	"payrollaudit/records"
)

func findings() []crossref.Finding {
	return []crossref.Finding{
		{PersonID: "P000000001", Entities: []string{"E1", "E2", "E3"}},
		{PersonID: "P000000002", Entities: []string{"E1", "E2"}},
		{PersonID: "P000000003", Entities: []string{"E4", "E5"}},
	}
}

func TestFilterVisible(t *testing.T) {
	pre := PrevalidationMap{
		"P000000001": {"E3": {State: StateResolved}},
		"P000000002": {"E2": {State: StateUnresolved}, "E1": {State: StateUnassessed}},
	}
	viewer := Actor{Username: "ana", Role: RoleAuditor}

	assert.Nil(t, FilterVisible(findings(), viewer, false, pre))
	assert.Len(t, FilterVisible(findings(), admin, false, pre), 3)

	got := FilterVisible(findings(), viewer, true, pre)
	require.Len(t, got, 2)
	assert.Equal(t, "P000000001", got[0].PersonID)
	assert.Equal(t, []string{"E1", "E2"}, got[0].Entities)
	assert.Equal(t, "P000000003", got[1].PersonID)

	scoped := Actor{Username: "luz", Role: RoleAuditor, Entities: []string{"e5"}}
	got = FilterVisible(findings(), scoped, true, pre)
	require.Len(t, got, 1)
	assert.Equal(t, "P000000003", got[0].PersonID)
}

func TestFilterVisible_DropsTriagedSourceRecords(t *testing.T) {
	f := crossref.Finding{
		PersonID: "P000000001",
		Entities: []string{"E1", "E2", "E3"},
		SourceRecords: []records.Record{
			{PersonID: "P000000001", EntityKey: "E1"},
			{PersonID: "P000000001", EntityKey: "E2"},
			{PersonID: "P000000001", EntityKey: "E3"},
			{PersonID: "P000000001", EntityKey: "E9"},
		},
	}
	pre := PrevalidationMap{"P000000001": {"E1": {State: StateResolved}}}

	got := FilterVisible([]crossref.Finding{f}, Actor{Role: RoleAuditor}, true, pre)
	require.Len(t, got, 1)
	keys := make([]string, len(got[0].SourceRecords))
	for i, r := range got[0].SourceRecords {
		keys[i] = r.EntityKey
	}
	assert.Equal(t, []string{"E2", "E3", "E9"}, keys)
	assert.Len(t, f.SourceRecords, 4, "input finding is left untouched")

	got = FilterVisible([]crossref.Finding{f}, admin, true, pre)
	assert.Len(t, got[0].SourceRecords, 4)
}

func TestVisibleFindings(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(&fakeDB{}, repo)
	ctx := context.Background()
	viewer := Actor{Role: RoleAuditor}

	got, err := svc.VisibleFindings(ctx, viewer, findings())
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, svc.PublishFindings(ctx, admin))
	_, err = svc.SetPrevalidation(ctx, admin, Decision{PersonID: "P000000002", EntityKey: "E1", State: StateResolved, CatalogReason: "X"}, []string{"E1", "E2"})
	require.NoError(t, err)

	got, err = svc.VisibleFindings(ctx, viewer, findings())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "P000000001", got[0].PersonID)
	assert.Equal(t, "P000000003", got[1].PersonID)
}

func TestResolutionText(t *testing.T) {
	assert.Equal(t, "Reintegro - con oficio", ResolutionText(&Prevalidation{CatalogReason: "Reintegro", Comment: "con oficio"}, nil, ""))
	assert.Equal(t, "Oficio 9", ResolutionText(&Prevalidation{CatalogReason: OtherReason, FreeText: " Oficio 9 "}, nil, ""))
	assert.Equal(t, OtherReason, ResolutionText(&Prevalidation{CatalogReason: OtherReason}, nil, ""))
	assert.Equal(t, "solo nota", ResolutionText(&Prevalidation{Comment: "solo nota"}, nil, ""))
	assert.Equal(t, "de solventación", ResolutionText(&Prevalidation{}, &Resolution{Comment: "de solventación"}, "x"))
	assert.Equal(t, "x", ResolutionText(nil, nil, " x "))
}

func TestEffectiveState(t *testing.T) {
	assert.Equal(t, StateUnassessed, EffectiveState(nil, nil))
	assert.Equal(t, StateUnresolved, EffectiveState(nil, &Resolution{State: StateUnresolved}))
	assert.Equal(t, StateResolved, EffectiveState(&Prevalidation{State: StateResolved}, &Resolution{State: StateUnresolved}))
}
