// Package metrics exposes Prometheus counters for uploads, the archive and the
// review workflow. A nil *Recorder is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Recorder struct {
	registry *prometheus.Registry

	recordsUpserted   *prometheus.CounterVec
	alerts            *prometheus.CounterVec
	archiveEntries    *prometheus.CounterVec
	reviewTransitions *prometheus.CounterVec
	findings          prometheus.Gauge
}

// NewRecorder creates the collectors and registers them on registry.
func NewRecorder(registry *prometheus.Registry) (*Recorder, error) {
	r := &Recorder{
		registry: registry,
		recordsUpserted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payrollaudit_records_upserted_total",
				Help: "Employment records written by uploads",
			},
			[]string{"result"}, // inserted, updated, failed
		),
		alerts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payrollaudit_alerts_total",
				Help: "Non-fatal ingestion alerts by kind",
			},
			[]string{"kind"},
		),
		archiveEntries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payrollaudit_archive_entries_total",
				Help: "Finding archive insert attempts",
			},
			[]string{"result"}, // new, duplicate
		),
		reviewTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payrollaudit_review_transitions_total",
				Help: "Review workflow writes by action",
			},
			[]string{"action"},
		),
		findings: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "payrollaudit_findings",
			Help: "Findings produced by the most recent detection",
		}),
	}

	for _, c := range []prometheus.Collector{r.recordsUpserted, r.alerts, r.archiveEntries, r.reviewTransitions, r.findings} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Registry returns the registry the collectors were registered on.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) RecordsUpserted(inserted, updated, failed int) {
	if r == nil {
		return
	}
	r.recordsUpserted.WithLabelValues("inserted").Add(float64(inserted))
	r.recordsUpserted.WithLabelValues("updated").Add(float64(updated))
	r.recordsUpserted.WithLabelValues("failed").Add(float64(failed))
}

func (r *Recorder) Alert(kind string) {
	if r == nil {
		return
	}
	r.alerts.WithLabelValues(kind).Inc()
}

func (r *Recorder) Archived(newCount, duplicates int) {
	if r == nil {
		return
	}
	r.archiveEntries.WithLabelValues("new").Add(float64(newCount))
	r.archiveEntries.WithLabelValues("duplicate").Add(float64(duplicates))
}

func (r *Recorder) ReviewTransition(action string, n int) {
	if r == nil {
		return
	}
	r.reviewTransitions.WithLabelValues(action).Add(float64(n))
}

func (r *Recorder) Findings(n int) {
	if r == nil {
		return
	}
	r.findings.Set(float64(n))
}
