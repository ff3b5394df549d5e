package test

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"payrollaudit/audit"
	"payrollaudit/catalog"
	"payrollaudit/crossref"
	"payrollaudit/ingest"
	"payrollaudit/records"
	"payrollaudit/review"
	"payrollaudit/test/actors"
	"payrollaudit/test/chaos"
	"payrollaudit/test/infra"
	"payrollaudit/test/oracles"
)

var (
	flDuration    = flag.Duration("duration", 90*time.Second, "how long to run stress")
	flConcurrency = flag.Int("concurrency", 4, "number of concurrent actors per kind")
	flSeed        = flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flDSN         = flag.String("dsn", "", "existing Postgres DSN to reuse (avoids Docker)")
	flStress      = flag.Bool("stress", false, "run the long concurrency test")
)

// services is the graph the CLI wires, minus config and metrics.
type services struct {
	resolver *catalog.Resolver
	store    *records.Store
	engine   *crossref.Engine
	review   *review.Service
	audit    *audit.Service
}

func wire(t *testing.T, ctx context.Context, pool *pgxpool.Pool) services {
	t.Helper()
	catRepo := catalog.NewRepository(pool)
	if _, err := catRepo.SeedDefaults(ctx); err != nil {
		t.Fatalf("seed catalog: %v", err)
	}
	resolver := catalog.NewResolver(catRepo, time.Minute)
	if err := resolver.Refresh(ctx); err != nil {
		t.Fatalf("refresh catalog: %v", err)
	}

	store := records.NewStore(pool, nil).WithMaxRowFailures(-1)
	engine := crossref.NewEngine(store)
	return services{
		resolver: resolver,
		store:    store,
		engine:   engine,
		review:   review.NewService(pool, nil).WithResolver(resolver),
		audit:    audit.NewService(ingest.NewExtractor(resolver).WithWorkers(2), store, engine, audit.NewRunRepository(pool)),
	}
}

// openDatabase boots or reuses Postgres and applies the schema.
func openDatabase(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()
	pgC, dsn, shared, err := infra.Start(ctx, *flDSN)
	if err != nil {
		t.Skipf("no database available: %v", err)
	}
	t.Cleanup(func() { _ = pgC.Terminate(context.Background()) })

	pool, teardown, err := infra.ApplyMigrations(ctx, dsn, shared)
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	t.Cleanup(func() {
		pool.Close()
		if err := teardown(context.Background()); err != nil {
			t.Logf("teardown warning: %v", err)
		}
	})
	return pool
}

func TestPayrollAuditConcurrency(t *testing.T) {
	if !*flStress {
		t.Skip("pass -stress to run the concurrency test")
	}
	seed := *flSeed
	rng := rand.New(rand.NewSource(seed))

	ctx, cancel := context.WithTimeout(context.Background(), *flDuration+60*time.Second)
	defer cancel()

	pool := openDatabase(t, ctx)
	svc := wire(t, ctx, pool)

	pop := actors.NewPopulation(40, []string{"SEGOB", "SEFIN", "SEPE"})
	admin := func(i int) review.Actor {
		return review.Actor{Username: fmt.Sprintf("admin-%d", i), Role: review.RoleAdmin}
	}
	viewer := review.Actor{Username: "auditor", Role: review.RoleAuditor, Entities: []string{"ENTE_1_2"}}

	g, ctx2 := errgroup.WithContext(ctx)
	stop := make(chan struct{})

	for i := 0; i < *flConcurrency; i++ {
		uploadSeed, reviewSeed := rng.Int63(), rng.Int63()
		g.Go(func() error { return actors.Uploader(ctx2, svc.audit, pop, uploadSeed, stop) })
		g.Go(func() error {
			return actors.Prevalidator(ctx2, svc.review, svc.engine, pop, admin(i), reviewSeed, stop)
		})
	}
	resolveSeed := rng.Int63()
	g.Go(func() error { return actors.Resolver(ctx2, svc.review, pop, admin(-1), resolveSeed, stop) })
	g.Go(func() error { return actors.Publisher(ctx2, svc.review, admin(-2), stop) })
	g.Go(func() error { return actors.Viewer(ctx2, svc.review, svc.engine, viewer, stop) })
	go chaos.TerminateRandomBackend(ctx2, pool, stop)

	deadline := time.Now().Add(*flDuration)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	var failed bool
loop:
	for time.Now().Before(deadline) {
		select {
		case <-ctx2.Done():
			break loop
		case <-ticker.C:
			name, row, err := oracles.Run(ctx2, pool)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					break loop
				}
				t.Logf("oracle query failed, retrying: %v", err)
				continue
			}
			if name != "" {
				failed = true
				dumpRecent(t, ctx, pool)
				t.Fatalf("Oracle %s failed. First row: %s (seed=%d)", name, row, seed)
			}
		}
	}

	close(stop)
	if err := g.Wait(); err != nil && !failed {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("actors errored: %v (seed=%d)", err, seed)
		}
	}

	if name, row, err := oracles.Run(context.Background(), pool); err != nil || name != "" {
		t.Fatalf("final oracle %s: %s %v (seed=%d)", name, row, err, seed)
	}
}

func dumpRecent(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	type dump struct {
		name string
		sql  string
	}
	dumps := []dump{
		{"prevalidaciones_historial", `SELECT id, rfc, ente, accion, estado_anterior, estado_nuevo, usuario, creado FROM prevalidaciones_historial ORDER BY id DESC LIMIT 50`},
		{"prevalidaciones", `SELECT rfc, ente, estado, catalogo, usuario, actualizado FROM prevalidaciones ORDER BY actualizado DESC LIMIT 50`},
		{"ingest_runs", `SELECT id, insertados, actualizados, fallidos, iniciado, terminado FROM ingest_runs ORDER BY iniciado DESC LIMIT 20`},
	}
	for _, d := range dumps {
		rows, err := pool.Query(ctx, d.sql)
		if err != nil {
			t.Logf("dump %s error: %v", d.name, err)
			continue
		}
		cols := rows.FieldDescriptions()
		t.Logf("-- %s --", d.name)
		for rows.Next() {
			vals, _ := rows.Values()
			buf := make([]any, 0, len(vals))
			for i := range vals {
				buf = append(buf, fmt.Sprintf("%s=%v", string(cols[i].Name), vals[i]))
			}
			t.Logf("%s", buf)
		}
		rows.Close()
	}
}
