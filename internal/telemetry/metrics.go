// Package telemetry exposes Prometheus metrics and OpenTelemetry tracing
// for the moderation layer.
package telemetry

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flemzord/toolguard/internal/moderation"
)

const namespace = "toolguard"

// OtherToolLabel replaces tool names outside the known set in metric labels.
const OtherToolLabel = "adhoc"

// Metrics holds the moderation collectors on a private registry.
type Metrics struct {
	registry  *prometheus.Registry
	decisions *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	scores    prometheus.Histogram

	mu    sync.RWMutex
	known map[string]struct{}
}

var (
	_ moderation.Reporter         = (*Metrics)(nil)
	_ moderation.ClassifyObserver = (*Metrics)(nil)
)

// NewMetrics creates and registers the collectors, plus the Go runtime and
// process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "moderation",
			Name:      "decisions_total",
			Help:      "Moderation decisions by tool and outcome.",
		}, []string{"tool", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "moderation",
			Name:      "classifier_seconds",
			Help:      "Classifier call latency.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"result"}),
		scores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "moderation",
			Name:      "scores",
			Help:      "Distribution of classifier scores.",
			Buckets:   []float64{0, 10, 20, 30, 50, 75, 100},
		}),
	}

	m.registry.MustRegister(
		m.decisions,
		m.latency,
		m.scores,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// KnownTools restricts the tool label to names. Once set, any other tool
// name is counted under OtherToolLabel, which keeps caller-chosen names
// (such as those sent to the admin classify endpoint) from growing the
// label set.
func (m *Metrics) KnownTools(names ...string) {
	known := make(map[string]struct{}, len(names))
	for _, name := range names {
		known[name] = struct{}{}
	}
	m.mu.Lock()
	m.known = known
	m.mu.Unlock()
}

func (m *Metrics) toolLabel(name string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.known == nil {
		return name
	}
	if _, ok := m.known[name]; ok {
		return name
	}
	return OtherToolLabel
}

// Report implements moderation.Reporter.
func (m *Metrics) Report(_ context.Context, d moderation.Decision) {
	m.decisions.WithLabelValues(m.toolLabel(d.Tool), string(d.Outcome)).Inc()
}

// ObserveClassify implements moderation.ClassifyObserver.
func (m *Metrics) ObserveClassify(_ string, elapsed time.Duration, v moderation.Verdict, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.latency.WithLabelValues(result).Observe(elapsed.Seconds())
	if err == nil {
		m.scores.Observe(float64(v.Score))
	}
}
