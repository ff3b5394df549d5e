package test

import (
	"context"
	"testing"
	"time"

	"payrollaudit/ingest"
	"payrollaudit/review"
	"payrollaudit/test/actors"
	"payrollaudit/test/infra"
)

func TestUploadReviewPublish(t *testing.T) {
	if testing.Short() {
		t.Skip("needs a database")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pool := openDatabase(t, ctx)
	if err := infra.Reset(ctx, pool); err != nil {
		t.Fatalf("reset: %v", err)
	}
	svc := wire(t, ctx, pool)

	const person = "PIPE800101AB1"
	data, err := actors.Workbook([]string{"SEGOB", "SEFIN", "SEPE"}, map[string][][]any{
		"SEGOB": {actors.Row(person, "Persona Uno", 3, 4)},
		"SEFIN": {actors.Row(person, "Persona Uno", 4, 5)},
		"SEPE":  {actors.Row("SOLO800101AB2", "Persona Dos", 1)},
	})
	if err != nil {
		t.Fatalf("workbook: %v", err)
	}
	files := []ingest.File{ingest.FileFromBytes("nomina.xlsx", data)}

	first, err := svc.audit.RunUpload(ctx, files)
	if err != nil {
		t.Fatalf("first upload: %v", err)
	}
	if first.Inserted != 3 || first.Updated != 0 || first.Findings != 1 || first.NonCrossing != 1 || first.ArchivedNew != 2 {
		t.Fatalf("unexpected first summary: %+v", first)
	}

	second, err := svc.audit.RunUpload(ctx, files)
	if err != nil {
		t.Fatalf("second upload: %v", err)
	}
	if second.Inserted != 0 || second.Updated != 3 || second.ArchivedNew != 0 || second.ArchivedDuplicates != 2 {
		t.Fatalf("re-upload must update in place and archive nothing new: %+v", second)
	}

	group, err := svc.engine.EntitiesInCrossReference(ctx, person)
	if err != nil {
		t.Fatalf("cross-reference group: %v", err)
	}
	if len(group) != 2 {
		t.Fatalf("expected two entities in the group, got %v", group)
	}

	admin := review.Actor{Username: "admin", Role: review.RoleAdmin}
	auditor := review.Actor{Username: "auditor", Role: review.RoleAuditor}

	findings, err := svc.engine.DetectCrossReferences(ctx)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	visible, err := svc.review.VisibleFindings(ctx, auditor, findings)
	if err != nil {
		t.Fatalf("visible: %v", err)
	}
	if len(visible) != 0 {
		t.Fatalf("unpublished findings must be hidden, got %d", len(visible))
	}

	if err := svc.review.PublishFindings(ctx, auditor); err == nil {
		t.Fatalf("auditor must not publish")
	}
	if err := svc.review.PublishFindings(ctx, admin); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if visible, _ = svc.review.VisibleFindings(ctx, auditor, findings); len(visible) != 1 {
		t.Fatalf("published finding should be visible, got %d", len(visible))
	}

	res, err := svc.review.SetPrevalidation(ctx, admin, review.Decision{
		PersonID:      person,
		EntityKey:     "SEGOB",
		State:         review.StateResolved,
		CatalogReason: "Reintegro",
		Comment:       "oficio 12",
	}, group)
	if err != nil {
		t.Fatalf("prevalidate: %v", err)
	}
	if res.RowsAffected != 2 || len(res.Entities) != 2 {
		t.Fatalf("cascade should cover the whole group: %+v", res)
	}
	if visible, _ = svc.review.VisibleFindings(ctx, auditor, findings); len(visible) != 0 {
		t.Fatalf("triaged finding must be hidden, got %d", len(visible))
	}

	if _, err := svc.review.SetPrevalidation(ctx, admin, review.Decision{PersonID: person, EntityKey: "SEFIN"}, group); err != nil {
		t.Fatalf("revert: %v", err)
	}
	if visible, _ = svc.review.VisibleFindings(ctx, auditor, findings); len(visible) != 1 {
		t.Fatalf("reverted finding should be visible again, got %d", len(visible))
	}

	history, err := svc.review.History(ctx, person)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var cancels int
	for _, h := range history {
		if h.Action == review.ActionCancelResolution {
			cancels++
		}
	}
	if len(history) != 4 || cancels != 2 {
		t.Fatalf("expected 4 history rows with 2 cancellations, got %d (%d)", len(history), cancels)
	}

	if err := svc.review.UnpublishFindings(ctx, admin); err != nil {
		t.Fatalf("unpublish: %v", err)
	}
	if visible, _ = svc.review.VisibleFindings(ctx, auditor, findings); len(visible) != 0 {
		t.Fatalf("unpublished findings must be hidden again, got %d", len(visible))
	}

	counts, err := svc.store.CountWorkersPerEntity(ctx)
	if err != nil {
		t.Fatalf("count workers: %v", err)
	}
	if counts["ENTE_1_2"] != 1 || counts["ENTE_1_4"] != 1 || counts["ENTE_1_8"] != 1 {
		t.Fatalf("unexpected worker counts: %v", counts)
	}
}
