// Package metrics holds the Prometheus collectors for export runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rotisserie/eris"
)

// Export outcomes.
const (
	// OutcomeSubmitted labels exports accepted on the first try.
	OutcomeSubmitted = "submitted"
	// OutcomeRetried labels exports accepted after the cooldown retry.
	OutcomeRetried = "retried"
	// OutcomeFailed labels images skipped after a failure.
	OutcomeFailed = "failed"
)

var (
	exportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ptjpl",
			Name:      "exports_total",
			Help:      "Export submissions, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	exportSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ptjpl",
			Name:      "export_seconds",
			Help:      "Time spent preparing and submitting one export, cooldowns included.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 600, 1200},
		},
	)

	scenesListed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ptjpl",
			Name:      "scenes_listed_total",
			Help:      "Scene ids returned by overpass listings.",
		},
	)
)

// Register attaches the collectors to reg.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		exportsTotal,
		exportSeconds,
		scenesListed,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveExport records one export's duration and outcome.
func ObserveExport(duration time.Duration, outcome string) {
	switch outcome {
	case OutcomeSubmitted, OutcomeRetried:
	default:
		outcome = OutcomeFailed
	}
	exportsTotal.WithLabelValues(outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	exportSeconds.Observe(duration.Seconds())
}

// AddScenes counts listed scene ids.
func AddScenes(n int) {
	if n > 0 {
		scenesListed.Add(float64(n))
	}
}

// Exports returns the current count for an outcome.
func Exports(outcome string) float64 {
	var m dto.Metric
	if err := exportsTotal.WithLabelValues(outcome).Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

// WriteTextfile writes every collector registered with g to path in the
// node-exporter textfile format.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return eris.Wrapf(err, "metrics: write textfile %s", path)
	}
	return nil
}
