package eventstore

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event type names.
const (
	TypeRunStarted   = "RunStarted"
	TypeRunSkipped   = "RunSkipped"
	TypeStageFailed  = "StageFailed"
	TypePublished    = "Published"
	TypeRunCompleted = "RunCompleted"
)

// RunStarted is emitted when a cycle decides to build or publish.
type RunStarted struct {
	BaseEvent
	Commit   string   `json:"commit"`
	Reasons  []string `json:"reasons"`
	Force    bool     `json:"force"`
	SyncOnly bool     `json:"sync_only"`
	DryRun   bool     `json:"dry_run"`
}

// NewRunStarted creates a RunStarted event.
func NewRunStarted(runID, project, commit string, reasons []string, force, syncOnly, dryRun bool) (*RunStarted, error) {
	e := &RunStarted{
		Commit:   commit,
		Reasons:  reasons,
		Force:    force,
		SyncOnly: syncOnly,
		DryRun:   dryRun,
	}
	base, err := newBase(runID, project, TypeRunStarted, e)
	if err != nil {
		return nil, err
	}
	e.BaseEvent = base
	return e, nil
}

// RunSkipped is emitted when nothing changed upstream.
type RunSkipped struct {
	BaseEvent
	Commit string `json:"commit"`
}

// NewRunSkipped creates a RunSkipped event.
func NewRunSkipped(runID, project, commit string) (*RunSkipped, error) {
	e := &RunSkipped{Commit: commit}
	base, err := newBase(runID, project, TypeRunSkipped, e)
	if err != nil {
		return nil, err
	}
	e.BaseEvent = base
	return e, nil
}

// StageFailed is emitted when a stage of the cycle fails.
type StageFailed struct {
	BaseEvent
	Stage  string `json:"stage"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error"`
}

// maxOutputTail bounds the command output kept in a StageFailed payload.
const maxOutputTail = 4096

// NewStageFailed creates a StageFailed event keeping the tail of the output.
func NewStageFailed(runID, project, stage, output string, cause error) (*StageFailed, error) {
	if len(output) > maxOutputTail {
		output = output[len(output)-maxOutputTail:]
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	e := &StageFailed{Stage: stage, Output: output, Error: msg}
	base, err := newBase(runID, project, TypeStageFailed, e)
	if err != nil {
		return nil, err
	}
	e.BaseEvent = base
	return e, nil
}

// Published is emitted once the output has been delivered.
type Published struct {
	BaseEvent
	Outcome string `json:"outcome"`
	Remote  string `json:"remote,omitempty"`
}

// NewPublished creates a Published event.
func NewPublished(runID, project, outcome, remote string) (*Published, error) {
	e := &Published{Outcome: outcome, Remote: remote}
	base, err := newBase(runID, project, TypePublished, e)
	if err != nil {
		return nil, err
	}
	e.BaseEvent = base
	return e, nil
}

// RunCompleted is the terminal event of a cycle that started.
type RunCompleted struct {
	BaseEvent
	Outcome    string `json:"outcome"`
	DurationMS int64  `json:"duration_ms"`
}

// NewRunCompleted creates a RunCompleted event.
func NewRunCompleted(runID, project, outcome string, duration time.Duration) (*RunCompleted, error) {
	e := &RunCompleted{Outcome: outcome, DurationMS: duration.Milliseconds()}
	base, err := newBase(runID, project, TypeRunCompleted, e)
	if err != nil {
		return nil, err
	}
	e.BaseEvent = base
	return e, nil
}

func newBase(runID, project, eventType string, payload any) (BaseEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return BaseEvent{}, fmt.Errorf("%w: %s: %w", ErrMarshalPayloadFailed, eventType, err)
	}
	return BaseEvent{
		EventRunID:     runID,
		EventProject:   project,
		EventType:      eventType,
		EventTimestamp: time.Now(),
		EventPayload:   data,
	}, nil
}
