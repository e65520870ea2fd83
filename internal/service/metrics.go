package service

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// Recorder defines observability hooks for build and stream metrics.
// All methods must be safe on the NoopRecorder so injection stays optional.
type Recorder interface {
	IncTrigger(source string)
	IncBuildOutcome(outcome string)
	ObserveBuildDuration(d time.Duration)
	AddBuildsInFlight(delta int)
	AddStreamSubscribers(delta int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) IncTrigger(string)                  {}
func (NoopRecorder) IncBuildOutcome(string)             {}
func (NoopRecorder) ObserveBuildDuration(time.Duration) {}
func (NoopRecorder) AddBuildsInFlight(int)              {}
func (NoopRecorder) AddStreamSubscribers(int)           {}

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	triggers          *prom.CounterVec
	buildOutcome      *prom.CounterVec
	buildDuration     prom.Histogram
	buildsInFlight    prom.Gauge
	streamSubscribers prom.Gauge
}

func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		triggers: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docportal",
			Name:      "build_triggers_total",
			Help:      "Accepted build triggers by source",
		}, []string{"source"}),
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docportal",
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"}),
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "docportal",
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.DefBuckets,
		}),
		buildsInFlight: prom.NewGauge(prom.GaugeOpts{
			Namespace: "docportal",
			Name:      "builds_in_flight",
			Help:      "Builds currently executing",
		}),
		streamSubscribers: prom.NewGauge(prom.GaugeOpts{
			Namespace: "docportal",
			Name:      "stream_subscribers",
			Help:      "Open live output subscriptions",
		}),
	}
	reg.MustRegister(
		pr.triggers,
		pr.buildOutcome,
		pr.buildDuration,
		pr.buildsInFlight,
		pr.streamSubscribers,
	)
	return pr
}

func (p *PrometheusRecorder) IncTrigger(source string) {
	p.triggers.WithLabelValues(source).Inc()
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome string) {
	p.buildOutcome.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) AddBuildsInFlight(delta int) {
	p.buildsInFlight.Add(float64(delta))
}

func (p *PrometheusRecorder) AddStreamSubscribers(delta int) {
	p.streamSubscribers.Add(float64(delta))
}
