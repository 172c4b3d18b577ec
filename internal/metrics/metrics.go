// Package metrics counts what a migration run does on a private Prometheus
// registry: executed statements by phase and outcome, recreated tables and
// objects flagged by the round-trip check. The registry can be pushed to a
// Pushgateway once the run is over.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/Limetric/schemaferry/internal/dialect"
	"github.com/Limetric/schemaferry/internal/translate"
)

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Recorder is an orchestrate.Observer backed by Prometheus counters.
type Recorder struct {
	reg *prometheus.Registry

	statements      *prometheus.CounterVec // schemaferry_statements_total
	recreations     prometheus.Counter     // schemaferry_recreated_tables_total
	inconsistencies *prometheus.CounterVec // schemaferry_inconsistencies_total
}

// New registers the counters on a fresh registry. dialectName becomes a
// constant label on every series.
func New(dialectName string) (*Recorder, error) {
	reg := prometheus.NewRegistry()
	labels := prometheus.Labels{"dialect": dialectName}

	statements := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "schemaferry_statements_total",
			Help:        "Statements executed, partitioned by phase and status.",
			ConstLabels: labels,
		},
		[]string{"phase", "status"},
	)
	recreations := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:        "schemaferry_recreated_tables_total",
			Help:        "Tables rebuilt because no in-place alteration was safe.",
			ConstLabels: labels,
		},
	)
	inconsistencies := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "schemaferry_inconsistencies_total",
			Help:        "Procedural objects flagged by the round-trip check, by kind.",
			ConstLabels: labels,
		},
		[]string{"kind"},
	)

	for name, c := range map[string]prometheus.Collector{
		"statement counter":     statements,
		"recreation counter":    recreations,
		"inconsistency counter": inconsistencies,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("metrics: register %s: %w", name, err)
		}
	}

	return &Recorder{
		reg:             reg,
		statements:      statements,
		recreations:     recreations,
		inconsistencies: inconsistencies,
	}, nil
}

// Registry exposes the registry for scraping or inspection.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

func (r *Recorder) Statement(_ context.Context, s dialect.Statement, err error) {
	status := StatusOK
	if err != nil {
		status = StatusFailed
	}
	r.statements.WithLabelValues(s.Phase.String(), status).Inc()
}

func (r *Recorder) Recreated(context.Context, string) {
	r.recreations.Inc()
}

func (r *Recorder) Flagged(_ context.Context, inc translate.Inconsistency) {
	r.inconsistencies.WithLabelValues(inc.Kind.String()).Inc()
}

// Push sends the registry to a Pushgateway under job.
func (r *Recorder) Push(gatewayURL, job string) error {
	if gatewayURL == "" {
		return fmt.Errorf("metrics: gateway URL is required")
	}
	if job == "" {
		job = "schemaferry"
	}
	if err := push.New(gatewayURL, job).Gatherer(r.reg).Push(); err != nil {
		return fmt.Errorf("metrics: push to %s: %w", gatewayURL, err)
	}
	return nil
}
