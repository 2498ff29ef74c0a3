// Package eventstore records the events of build-deploy cycles and projects
// them into a per-run history.
package eventstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

const (
	runStatusRunning   = "running"
	runStatusSucceeded = "succeeded"
	runStatusFailed    = "failed"
	runStatusSkipped   = "skipped"
)

// RunSummary is a read model summarizing one cycle.
type RunSummary struct {
	RunID        string        `json:"run_id"`
	Project      string        `json:"project"`
	Status       string        `json:"status"` // running, succeeded, failed, skipped
	Commit       string        `json:"commit,omitempty"`
	Reasons      []string      `json:"reasons,omitempty"`
	Outcome      string        `json:"outcome,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
	Duration     time.Duration `json:"duration,omitempty"`
	ErrorStage   string        `json:"error_stage,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
}

// RunHistoryProjection maintains an in-memory view of run history,
// reconstructed from events stored in the event store.
type RunHistoryProjection struct {
	mu       sync.RWMutex
	store    Store
	runs     map[string]*RunSummary // runID -> summary
	history  []*RunSummary          // finished runs, newest first
	maxSize  int
	lastSync time.Time
}

// NewRunHistoryProjection creates a new projection backed by the given store.
func NewRunHistoryProjection(store Store, maxHistorySize int) *RunHistoryProjection {
	if maxHistorySize <= 0 {
		maxHistorySize = 100
	}
	return &RunHistoryProjection{
		store:   store,
		runs:    make(map[string]*RunSummary),
		history: make([]*RunSummary, 0, maxHistorySize),
		maxSize: maxHistorySize,
	}
}

// Rebuild reconstructs the projection from the events of project stored
// (all projects when empty).
func (p *RunHistoryProjection) Rebuild(ctx context.Context, project string) error {
	events, err := p.store.GetRange(ctx, project, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.runs = make(map[string]*RunSummary)
	p.history = make([]*RunSummary, 0, p.maxSize)

	for _, event := range events {
		p.applyEventLocked(event)
	}

	sort.SliceStable(p.history, func(i, j int) bool {
		return p.history[i].StartedAt.After(p.history[j].StartedAt)
	})
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
	p.pruneRunsLocked()

	p.lastSync = time.Now()
	return nil
}

// Apply processes a single event and updates the projection.
func (p *RunHistoryProjection) Apply(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyEventLocked(event)
}

// Emit implements Sink so a live projection can follow a running cycle.
func (p *RunHistoryProjection) Emit(_ context.Context, event Event) error {
	p.Apply(event)
	return nil
}

func (p *RunHistoryProjection) applyEventLocked(event Event) {
	runID := event.RunID()
	if runID == "" {
		return
	}

	summary, exists := p.runs[runID]
	if !exists {
		summary = &RunSummary{
			RunID:     runID,
			Project:   event.Project(),
			Status:    runStatusRunning,
			StartedAt: event.Timestamp(),
		}
		p.runs[runID] = summary
	}

	switch event.Type() {
	case TypeRunStarted:
		var payload struct {
			Commit  string   `json:"commit"`
			Reasons []string `json:"reasons"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.Commit = payload.Commit
			summary.Reasons = payload.Reasons
		}
		summary.StartedAt = event.Timestamp()

	case TypeRunSkipped:
		var payload struct {
			Commit string `json:"commit"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.Commit = payload.Commit
		}
		summary.Outcome = "up_to_date"
		p.finishLocked(summary, event.Timestamp(), runStatusSkipped)

	case TypeStageFailed:
		var payload struct {
			Stage string `json:"stage"`
			Error string `json:"error"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.ErrorStage = payload.Stage
			summary.ErrorMessage = payload.Error
		}

	case TypePublished:
		var payload struct {
			Outcome string `json:"outcome"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.Outcome = payload.Outcome
		}

	case TypeRunCompleted:
		var payload struct {
			Outcome string `json:"outcome"`
		}
		status := runStatusSucceeded
		if err := json.Unmarshal(event.Payload(), &payload); err == nil && payload.Outcome == "failed" {
			status = runStatusFailed
		}
		if summary.ErrorStage != "" {
			status = runStatusFailed
		}
		p.finishLocked(summary, event.Timestamp(), status)
	}
}

func (p *RunHistoryProjection) finishLocked(summary *RunSummary, at time.Time, status string) {
	summary.CompletedAt = &at
	summary.Duration = at.Sub(summary.StartedAt)
	summary.Status = status

	for _, h := range p.history {
		if h.RunID == summary.RunID {
			return
		}
	}
	p.history = append([]*RunSummary{summary}, p.history...)
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
	p.pruneRunsLocked()
}

// pruneRunsLocked drops finished runs that fell out of the bounded history.
// Caller must hold p.mu (write lock).
func (p *RunHistoryProjection) pruneRunsLocked() {
	keep := make(map[string]struct{}, len(p.history))
	for _, h := range p.history {
		keep[h.RunID] = struct{}{}
	}
	for id, summary := range p.runs {
		if summary.Status == runStatusRunning {
			continue
		}
		if _, ok := keep[id]; !ok {
			delete(p.runs, id)
		}
	}
}

// GetHistory returns the finished runs, newest first.
func (p *RunHistoryProjection) GetHistory() []*RunSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]*RunSummary, len(p.history))
	for i, h := range p.history {
		cp := *h
		result[i] = &cp
	}
	return result
}

// GetRun returns the summary for a specific run.
func (p *RunHistoryProjection) GetRun(runID string) (*RunSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	summary, exists := p.runs[runID]
	if !exists {
		return nil, false
	}
	cp := *summary
	return &cp, true
}

// GetLastCompletedRun returns the most recently finished run.
func (p *RunHistoryProjection) GetLastCompletedRun() *RunSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.history) == 0 {
		return nil
	}
	cp := *p.history[0]
	return &cp
}

// LastSyncTime returns when the projection was last rebuilt.
func (p *RunHistoryProjection) LastSyncTime() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSync
}
