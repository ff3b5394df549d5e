// Package actors drives the services concurrently the way reviewers and
// upload jobs do in production.
package actors

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/xuri/excelize/v2"

	"payrollaudit/audit"
	"payrollaudit/crossref"
	"payrollaudit/ingest"
	"payrollaudit/records"
	"payrollaudit/review"
)

// Header is the column row every generated sheet starts with.
var Header = func() []any {
	h := []any{"RFC", "NOMBRE", "PUESTO", "FECHA_ALTA", "FECHA_BAJA", "TOT_PERC"}
	for p := records.Period(1); p <= records.PeriodCount; p++ {
		h = append(h, p.Code())
	}
	return h
}()

// Row builds one payroll row with the given periods marked active.
func Row(person, name string, periods ...records.Period) []any {
	row := []any{person, name, "Analista", "2024-01-01", "", 1000}
	active := records.NewPeriodSet(periods...)
	for p := records.Period(1); p <= records.PeriodCount; p++ {
		if active.Has(p) {
			row = append(row, 500)
		} else {
			row = append(row, 0)
		}
	}
	return row
}

// Workbook renders sheets (sheet label to data rows, header added) as xlsx.
func Workbook(order []string, sheets map[string][][]any) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	for i, name := range order {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return nil, err
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
		rows := append([][]any{Header}, sheets[name]...)
		for r, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				return nil, err
			}
			if err := f.SetSheetRow(name, cell, &row); err != nil {
				return nil, err
			}
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Population is the fixed set of people and entity labels actors work on.
type Population struct {
	People   []string
	Entities []string
}

// NewPopulation generates n valid person ids.
func NewPopulation(n int, entities []string) Population {
	people := make([]string, n)
	for i := range people {
		people[i] = fmt.Sprintf("STR%06dX%02d", i, i%100)
	}
	return Population{People: people, Entities: entities}
}

func (p Population) person(rng *rand.Rand) string {
	return p.People[rng.Intn(len(p.People))]
}

// fatal reports errors that no amount of database trouble explains: the
// services rejected input the actors built to be valid.
func fatal(err error) bool {
	var verr *review.ValidationError
	return errors.As(err, &verr) || errors.Is(err, review.ErrForbidden)
}

func stopped(ctx context.Context, stop <-chan struct{}) bool {
	select {
	case <-ctx.Done():
		return true
	case <-stop:
		return true
	default:
		return false
	}
}

// Uploader repeatedly uploads a workbook with random periods for a random
// slice of the population across every entity.
func Uploader(ctx context.Context, svc *audit.Service, pop Population, seed int64, stop <-chan struct{}) error {
	rng := rand.New(rand.NewSource(seed))
	for !stopped(ctx, stop) {
		sheets := make(map[string][][]any, len(pop.Entities))
		for _, e := range pop.Entities {
			for i := 0; i < 5; i++ {
				p := records.Period(1 + rng.Intn(records.PeriodCount))
				sheets[e] = append(sheets[e], Row(pop.person(rng), "Persona Estres", p, p+1))
			}
		}
		data, err := Workbook(pop.Entities, sheets)
		if err != nil {
			return fmt.Errorf("uploader workbook: %w", err)
		}
		if _, err := svc.RunUpload(ctx, []ingest.File{ingest.FileFromBytes("estres.xlsx", data)}); err != nil && ctx.Err() == nil {
			// killed backends and deadlocks surface here; oracles judge the outcome
			time.Sleep(20 * time.Millisecond)
		}
		time.Sleep(time.Duration(20+rng.Intn(40)) * time.Millisecond)
	}
	return nil
}

// Prevalidator resolves or reverts draft verdicts for whole cross-reference
// groups.
func Prevalidator(ctx context.Context, svc *review.Service, engine *crossref.Engine, pop Population, actor review.Actor, seed int64, stop <-chan struct{}) error {
	rng := rand.New(rand.NewSource(seed))
	for !stopped(ctx, stop) {
		person := pop.person(rng)
		group, err := engine.EntitiesInCrossReference(ctx, person)
		if err != nil {
			continue
		}
		d := review.Decision{PersonID: person, EntityKey: pop.Entities[rng.Intn(len(pop.Entities))]}
		if rng.Intn(3) > 0 {
			d.State = review.StateResolved
			d.CatalogReason = "Reintegro"
			d.Comment = "prueba de carga"
		} else {
			d.State = review.StateUnassessed
		}
		if _, err := svc.SetPrevalidation(ctx, actor, d, group); err != nil && fatal(err) {
			return fmt.Errorf("prevalidator: %w", err)
		}
		time.Sleep(time.Duration(10+rng.Intn(30)) * time.Millisecond)
	}
	return nil
}

// Resolver writes final verdicts, sometimes with the free-text reason.
func Resolver(ctx context.Context, svc *review.Service, pop Population, actor review.Actor, seed int64, stop <-chan struct{}) error {
	rng := rand.New(rand.NewSource(seed))
	for !stopped(ctx, stop) {
		d := review.Decision{
			PersonID:      pop.person(rng),
			EntityKey:     pop.Entities[rng.Intn(len(pop.Entities))],
			State:         review.StateUnresolved,
			CatalogReason: "Incompatibilidad",
		}
		if rng.Intn(2) == 0 {
			d.State = review.StateResolved
			d.CatalogReason = review.OtherReason
			d.FreeText = "Licencia sin goce"
		}
		if _, err := svc.SetResolution(ctx, actor, d); err != nil && fatal(err) {
			return fmt.Errorf("resolver: %w", err)
		}
		time.Sleep(time.Duration(20+rng.Intn(40)) * time.Millisecond)
	}
	return nil
}

// Publisher flips the publication gate.
func Publisher(ctx context.Context, svc *review.Service, actor review.Actor, stop <-chan struct{}) error {
	publish := true
	for !stopped(ctx, stop) {
		var err error
		if publish {
			err = svc.PublishFindings(ctx, actor)
		} else {
			err = svc.UnpublishFindings(ctx, actor)
		}
		if err != nil && fatal(err) {
			return fmt.Errorf("publisher: %w", err)
		}
		publish = !publish
		time.Sleep(150 * time.Millisecond)
	}
	return nil
}

// Viewer reads findings as a non-privileged reviewer and checks that no
// single-entity or out-of-scope finding leaks through.
func Viewer(ctx context.Context, svc *review.Service, engine *crossref.Engine, viewer review.Actor, stop <-chan struct{}) error {
	for !stopped(ctx, stop) {
		all, err := engine.DetectCrossReferences(ctx)
		if err != nil {
			continue
		}
		visible, err := svc.VisibleFindings(ctx, viewer, all)
		if err != nil {
			continue
		}
		for _, f := range visible {
			if len(f.Entities) < 2 {
				return fmt.Errorf("viewer: finding for %s shown with %d entity", f.PersonID, len(f.Entities))
			}
			inScope := false
			for _, e := range f.Entities {
				inScope = inScope || viewer.CanSee(e)
			}
			if !inScope {
				return fmt.Errorf("viewer: finding for %s touches no entity in the viewer scope", f.PersonID)
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	return nil
}
