package workflow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeSaved           = "saved"
	outcomeUnsaved         = "unsaved"
	outcomeMalformed       = "malformed"
	outcomeGenerationError = "generation_error"
	outcomeCatalogError    = "catalog_error"
	outcomeInvalid         = "invalid"
)

// Metrics holds the pipeline's Prometheus collectors. A nil *Metrics is a
// valid no-op.
type Metrics struct {
	generations *prometheus.CounterVec
	duration    prometheus.Histogram
	droppedRefs prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stackpilot",
			Subsystem: "workflow",
			Name:      "generations_total",
			Help:      "Workflow generation requests by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "stackpilot",
			Subsystem: "workflow",
			Name:      "generation_seconds",
			Help:      "End-to-end latency of workflow generation.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),
		droppedRefs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stackpilot",
			Subsystem: "workflow",
			Name:      "dropped_refs_total",
			Help:      "Tool references from model output that did not resolve to a catalog tool.",
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.generations, m.duration, m.droppedRefs} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(outcome).Inc()
	m.duration.Observe(time.Since(started).Seconds())
}

func (m *Metrics) dropped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.droppedRefs.Add(float64(n))
}
