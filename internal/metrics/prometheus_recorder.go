package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "site_builder"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	reg           *prom.Registry
	stageDuration *prom.HistogramVec
	stageResults  *prom.CounterVec
	runDuration   prom.Histogram
	runOutcome    *prom.CounterVec
	lastSuccess   prom.Gauge
}

// NewPrometheusRecorder constructs the metrics for project and registers them
// in reg (a fresh registry when nil).
func NewPrometheusRecorder(reg *prom.Registry, project string) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	labels := prom.Labels{"project": project}
	pr := &PrometheusRecorder{reg: reg}
	pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace:   namespace,
		Name:        "stage_duration_seconds",
		Help:        "Duration of individual cycle stages",
		Buckets:     []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		ConstLabels: labels,
	}, []string{"stage"})
	pr.stageResults = prom.NewCounterVec(prom.CounterOpts{
		Namespace:   namespace,
		Name:        "stage_results_total",
		Help:        "Stage result counts by outcome",
		ConstLabels: labels,
	}, []string{"stage", "result"})
	pr.runDuration = prom.NewHistogram(prom.HistogramOpts{
		Namespace:   namespace,
		Name:        "run_duration_seconds",
		Help:        "Total cycle duration",
		Buckets:     []float64{1, 10, 30, 60, 300, 900, 1800, 3600},
		ConstLabels: labels,
	})
	pr.runOutcome = prom.NewCounterVec(prom.CounterOpts{
		Namespace:   namespace,
		Name:        "run_outcomes_total",
		Help:        "Cycle outcomes by final status",
		ConstLabels: labels,
	}, []string{"outcome"})
	pr.lastSuccess = prom.NewGauge(prom.GaugeOpts{
		Namespace:   namespace,
		Name:        "last_success_timestamp_seconds",
		Help:        "Unix time of the last cycle that published",
		ConstLabels: labels,
	})
	reg.MustRegister(pr.stageDuration, pr.stageResults, pr.runDuration, pr.runOutcome, pr.lastSuccess)
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil || p.stageResults == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRunOutcome(outcome RunOutcome) {
	if p == nil || p.runOutcome == nil {
		return
	}
	p.runOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) SetLastSuccess(t time.Time) {
	if p == nil || p.lastSuccess == nil {
		return
	}
	p.lastSuccess.Set(float64(t.Unix()))
}

// WriteTextfile writes all registered metrics to path in the text exposition
// format, replacing the file atomically.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	return prom.WriteToTextfile(path, p.reg)
}
