package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultFailed  ResultLabel = "failed"
	ResultSkipped ResultLabel = "skipped"
)

// RunOutcome enumerates how a cycle ended.
type RunOutcome string

const (
	OutcomePublished RunOutcome = "published" // built (or sync-only) and delivered
	OutcomeDryRun    RunOutcome = "dry_run"
	OutcomeUpToDate  RunOutcome = "up_to_date"
	OutcomeFailed    RunOutcome = "failed"
)

// Recorder defines observability hooks for run and stage metrics.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	ObserveRunDuration(d time.Duration)
	IncRunOutcome(outcome RunOutcome)
	SetLastSuccess(t time.Time)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) ObserveRunDuration(time.Duration)           {}
func (NoopRecorder) IncRunOutcome(RunOutcome)                   {}
func (NoopRecorder) SetLastSuccess(time.Time)                   {}
