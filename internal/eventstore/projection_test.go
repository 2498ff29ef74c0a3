package eventstore

import (
	"errors"
	"testing"
	"time"
)

func TestRunHistoryProjection_SuccessfulRun(t *testing.T) {
	projection := NewRunHistoryProjection(newTestStore(t), 10)

	started, err := NewRunStarted("run-1", "site", "abc123", []string{"commit"}, false, false, false)
	if err != nil {
		t.Fatalf("Failed to create event: %v", err)
	}
	projection.Apply(started)

	summary, exists := projection.GetRun("run-1")
	if !exists {
		t.Fatal("Expected run to exist")
	}
	if summary.Status != runStatusRunning {
		t.Errorf("Expected status running, got %q", summary.Status)
	}
	if summary.Commit != "abc123" {
		t.Errorf("Expected commit abc123, got %q", summary.Commit)
	}

	published, _ := NewPublished("run-1", "site", "rsync", "web@host:/srv")
	projection.Apply(published)
	completed, _ := NewRunCompleted("run-1", "site", "published", 2*time.Second)
	projection.Apply(completed)

	summary, _ = projection.GetRun("run-1")
	if summary.Status != runStatusSucceeded {
		t.Errorf("Expected status succeeded, got %q", summary.Status)
	}
	if summary.Outcome != "rsync" {
		t.Errorf("Expected outcome rsync, got %q", summary.Outcome)
	}
	if summary.CompletedAt == nil {
		t.Error("Expected completed_at to be set")
	}

	history := projection.GetHistory()
	if len(history) != 1 || history[0].RunID != "run-1" {
		t.Fatalf("Unexpected history: %+v", history)
	}
}

func TestRunHistoryProjection_StageFailed(t *testing.T) {
	projection := NewRunHistoryProjection(newTestStore(t), 10)

	started, _ := NewRunStarted("run-f", "site", "abc", []string{"forced"}, true, false, false)
	projection.Apply(started)
	failed, _ := NewStageFailed("run-f", "site", "build", "boom", errors.New("exit status 1"))
	projection.Apply(failed)
	completed, _ := NewRunCompleted("run-f", "site", "failed", time.Second)
	projection.Apply(completed)

	summary, exists := projection.GetRun("run-f")
	if !exists {
		t.Fatal("Expected run to exist")
	}
	if summary.Status != runStatusFailed {
		t.Errorf("Expected status failed, got %q", summary.Status)
	}
	if summary.ErrorStage != "build" {
		t.Errorf("Expected error stage build, got %q", summary.ErrorStage)
	}
	if summary.ErrorMessage != "exit status 1" {
		t.Errorf("Expected error message, got %q", summary.ErrorMessage)
	}
}

func TestRunHistoryProjection_Rebuild(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	skipped, _ := NewRunSkipped("run-a", "site", "abc")
	if err := store.Append(ctx, skipped); err != nil {
		t.Fatalf("Failed to append: %v", err)
	}
	other, _ := NewRunSkipped("run-b", "blog", "def")
	if err := store.Append(ctx, other); err != nil {
		t.Fatalf("Failed to append: %v", err)
	}

	projection := NewRunHistoryProjection(store, 10)
	if err := projection.Rebuild(ctx, "site"); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	history := projection.GetHistory()
	if len(history) != 1 {
		t.Fatalf("Expected 1 run for site, got %d", len(history))
	}
	if history[0].Status != runStatusSkipped || history[0].Outcome != "up_to_date" {
		t.Errorf("Unexpected summary: %+v", history[0])
	}
	if projection.LastSyncTime().IsZero() {
		t.Error("Expected last sync time to be set")
	}
	if last := projection.GetLastCompletedRun(); last == nil || last.RunID != "run-a" {
		t.Errorf("Unexpected last completed run: %+v", last)
	}
}

func TestRunHistoryProjection_BoundedHistory(t *testing.T) {
	projection := NewRunHistoryProjection(newTestStore(t), 2)

	for _, id := range []string{"r1", "r2", "r3"} {
		e, _ := NewRunSkipped(id, "site", "abc")
		if err := projection.Emit(t.Context(), e); err != nil {
			t.Fatalf("emit: %v", err)
		}
	}

	history := projection.GetHistory()
	if len(history) != 2 {
		t.Fatalf("Expected 2 history entries, got %d", len(history))
	}
	if history[0].RunID != "r3" || history[1].RunID != "r2" {
		t.Errorf("Unexpected order: %s, %s", history[0].RunID, history[1].RunID)
	}
	if _, ok := projection.GetRun("r1"); ok {
		t.Error("Expected r1 to be pruned")
	}
}
