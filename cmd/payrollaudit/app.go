package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"payrollaudit/audit"
	"payrollaudit/catalog"
	"payrollaudit/crossref"
	"payrollaudit/db"
	"payrollaudit/ingest"
	"payrollaudit/metrics"
	"payrollaudit/records"
	"payrollaudit/review"
	"payrollaudit/users"
)

var errNoToken = errors.New("a reviewer token is required: pass --token or set PAYROLLAUDIT_TOKEN")

// app is the wired service graph over one connection pool.
type app struct {
	pool    *pgxpool.Pool
	metrics *metrics.Recorder
	catalog *catalog.Resolver
	catRepo *catalog.Repository
	records *records.Store
	engine  *crossref.Engine
	review  *review.Service
	users   *users.Service
	audit   *audit.Service
	runs    *audit.PGRunRepository
}

func (c *cli) connect(ctx context.Context) (*pgxpool.Pool, error) {
	if c.cfg.Database.URL == "" {
		return nil, errors.New("database url is empty: set database.url, PAYROLLAUDIT_DATABASE_URL or DATABASE_URL")
	}
	pool, err := db.NewPool(ctx, c.cfg.Database.URL, c.cfg.Database.MaxConns)
	if err != nil {
		return nil, fmt.Errorf("bootstrap database pool: %w", err)
	}
	return pool, nil
}

func (c *cli) open(ctx context.Context) (*app, error) {
	pool, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec, err := metrics.NewRecorder(registry)
	if err != nil {
		pool.Close()
		return nil, err
	}

	catRepo := catalog.NewRepository(pool)
	resolver := catalog.NewResolver(catRepo, c.cfg.Catalog.CacheTTL)
	if err := resolver.Refresh(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	store := records.NewStore(pool, nil).
		WithLogger(c.logger).
		WithMetrics(rec).
		WithMaxRowFailures(c.cfg.Ingest.MaxRowFailures)
	engine := crossref.NewEngine(store).WithLogger(c.logger).WithMetrics(rec)
	extractor := ingest.NewExtractor(resolver).
		WithMaxFileBytes(c.cfg.Ingest.MaxFileBytes).
		WithWorkers(c.cfg.Ingest.Workers).
		WithLogger(c.logger).
		WithMetrics(rec)
	runs := audit.NewRunRepository(pool)

	return &app{
		pool:    pool,
		metrics: rec,
		catalog: resolver,
		catRepo: catRepo,
		records: store,
		engine:  engine,
		review: review.NewService(pool, nil).
			WithResolver(resolver).
			WithLogger(c.logger).
			WithMetrics(rec),
		users: users.NewService(users.NewRepository(pool), c.cfg.Auth.TokenSecret, c.cfg.Auth.TokenTTL),
		audit: audit.NewService(extractor, store, engine, runs).WithLogger(c.logger),
		runs:  runs,
	}, nil
}

func (a *app) Close() {
	a.pool.Close()
}

// actor verifies the reviewer token. Without one the caller acts as the
// console operator, who holds the privileged role.
func (c *cli) actor(a *app, required bool) (review.Actor, error) {
	tok := c.token()
	if tok == "" {
		if required {
			return review.Actor{}, errNoToken
		}
		return review.Actor{Username: "console", Role: review.RoleAdmin}, nil
	}
	return a.users.VerifyToken(tok)
}
