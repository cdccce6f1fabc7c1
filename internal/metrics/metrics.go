// Package metrics records harness run results as Prometheus metrics and
// writes them to a textfile for the node exporter's textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder owns a private registry so repeated runs in one process never
// collide with the global default registry.
type Recorder struct {
	reg *prometheus.Registry

	runsTotal     *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	expectations  *prometheus.GaugeVec
	lastRunResult *prometheus.GaugeVec
	lastRunTime   *prometheus.GaugeVec
}

// New creates a Recorder with all collectors registered.
func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "expecter",
				Name:      "runs_total",
				Help:      "Total number of test runs by outcome",
			},
			[]string{"test", "result"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "expecter",
				Name:      "run_duration_seconds",
				Help:      "Duration of test runs in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"test"},
		),
		expectations: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "expecter",
				Name:      "expectations_met",
				Help:      "Expectations satisfied during the last run",
			},
			[]string{"test"},
		),
		lastRunResult: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "expecter",
				Name:      "last_run_success",
				Help:      "1 if the last run passed, 0 otherwise",
			},
			[]string{"test"},
		),
		lastRunTime: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "expecter",
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the last run finished",
			},
			[]string{"test"},
		),
	}
	r.reg.MustRegister(r.runsTotal, r.runDuration, r.expectations, r.lastRunResult, r.lastRunTime)
	return r
}

// Observe records one finished run. result is a short outcome label such as
// "pass", "timeout", "mismatch", "assertion" or "error".
func (r *Recorder) Observe(test, result string, met int, d time.Duration, finished time.Time) {
	if test == "" {
		test = "unnamed"
	}
	r.runsTotal.WithLabelValues(test, result).Inc()
	r.runDuration.WithLabelValues(test).Observe(d.Seconds())
	r.expectations.WithLabelValues(test).Set(float64(met))
	success := 0.0
	if result == "pass" {
		success = 1
	}
	r.lastRunResult.WithLabelValues(test).Set(success)
	r.lastRunTime.WithLabelValues(test).Set(float64(finished.Unix()))
}

// Gatherer exposes the registry, mainly for tests.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.reg
}

// WriteTextfile atomically writes all metrics to path in the text exposition
// format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
