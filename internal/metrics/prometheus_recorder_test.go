package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg, "site")

	pr.ObserveStageDuration("build", 90*time.Second)
	pr.IncStageResult("build", ResultSuccess)
	pr.IncStageResult("deploy", ResultFailed)
	pr.ObserveRunDuration(2 * time.Minute)
	pr.IncRunOutcome(OutcomePublished)
	pr.SetLastSuccess(time.Unix(1700000000, 0))

	assert.Equal(t, 1.0, testutil.ToFloat64(pr.stageResults.WithLabelValues("build", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pr.stageResults.WithLabelValues("deploy", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pr.runOutcome.WithLabelValues("published")))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(pr.lastSuccess))

	expected := `
# HELP site_builder_run_outcomes_total Cycle outcomes by final status
# TYPE site_builder_run_outcomes_total counter
site_builder_run_outcomes_total{outcome="published",project="site"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "site_builder_run_outcomes_total"))
}

func TestWriteTextfile(t *testing.T) {
	pr := NewPrometheusRecorder(nil, "blog")
	pr.IncRunOutcome(OutcomeUpToDate)

	path := filepath.Join(t.TempDir(), "blog.prom")
	require.NoError(t, pr.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `site_builder_run_outcomes_total{outcome="up_to_date",project="blog"} 1`)
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveStageDuration("build", time.Second)
	r.IncStageResult("build", ResultSkipped)
	r.ObserveRunDuration(time.Second)
	r.IncRunOutcome(OutcomeFailed)
	r.SetLastSuccess(time.Now())

	var nilRecorder *PrometheusRecorder
	nilRecorder.IncRunOutcome(OutcomeFailed)
}
