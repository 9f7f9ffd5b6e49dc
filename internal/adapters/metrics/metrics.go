// Package metrics exposes apply outcomes as Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "jobs_as_code"

// Recorder counts applied changes by kind, action and outcome and tracks
// how long each remote operation took.
type Recorder struct {
	registry      *prometheus.Registry
	changesTotal  *prometheus.CounterVec
	changeSeconds *prometheus.HistogramVec
	runsTotal     *prometheus.CounterVec
}

// NewRecorder registers the collectors on a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		changesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "changes_total",
				Help:      "Applied changes by kind, action and outcome",
			},
			[]string{"kind", "action", "outcome"},
		),
		changeSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "change_duration_seconds",
				Help:      "Duration of the remote operation of each change",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"kind", "action"},
		),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Sync runs by result",
			},
			[]string{"result"},
		),
	}

	r.registry.MustRegister(r.changesTotal, r.changeSeconds, r.runsTotal)
	return r
}

// Observe records one applied change.
func (r *Recorder) Observe(kind, action, outcome string, d time.Duration) {
	r.changesTotal.WithLabelValues(kind, action, outcome).Inc()
	r.changeSeconds.WithLabelValues(kind, action).Observe(d.Seconds())
}

// RecordRun records the result of a sync run.
func (r *Recorder) RecordRun(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	r.runsTotal.WithLabelValues(result).Inc()
}

// Registry returns the registry holding the collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteToTextfile writes the collectors in the text exposition format, for
// pickup by the node exporter textfile collector.
func (r *Recorder) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
