// Package metrics exposes completion counters to prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the collectors of one process. Its methods are safe for
// concurrent use and a nil *Recorder records nothing.
type Recorder struct {
	NewTriples    *prometheus.CounterVec
	NewRules      *prometheus.CounterVec
	RejectedRules *prometheus.CounterVec
	StageSeconds  *prometheus.HistogramVec
	Runs          *prometheus.CounterVec
}

// NewRecorder creates the collectors and registers them with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		NewTriples: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kgcomplete_new_triples_total",
				Help: "Triples added to a graph by a completion stage",
			},
			[]string{"pair", "stage", "side"},
		),
		NewRules: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kgcomplete_new_rules_total",
				Help: "Rules transferred into a graph",
			},
			[]string{"pair", "side"},
		),
		RejectedRules: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kgcomplete_rejected_rules_total",
				Help: "Mined rules dropped as unsupported",
			},
			[]string{"pair", "side"},
		),
		StageSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kgcomplete_stage_seconds",
				Help:    "Wall time of one completion stage over both directions",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"stage"},
		),
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kgcomplete_runs_total",
				Help: "Completion runs by outcome",
			},
			[]string{"outcome"},
		),
	}
	reg.MustRegister(r.NewTriples, r.NewRules, r.RejectedRules, r.StageSeconds, r.Runs)
	return r
}

func (r *Recorder) AddTriples(pair, stage, side string, n int) {
	if r == nil {
		return
	}
	r.NewTriples.WithLabelValues(pair, stage, side).Add(float64(n))
}

func (r *Recorder) AddRules(pair, side string, n int) {
	if r == nil {
		return
	}
	r.NewRules.WithLabelValues(pair, side).Add(float64(n))
}

func (r *Recorder) AddRejected(pair, side string, n int) {
	if r == nil {
		return
	}
	r.RejectedRules.WithLabelValues(pair, side).Add(float64(n))
}

func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.StageSeconds.WithLabelValues(stage).Observe(d.Seconds())
}

func (r *Recorder) RunFinished(err error) {
	if r == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.Runs.WithLabelValues(outcome).Inc()
}
