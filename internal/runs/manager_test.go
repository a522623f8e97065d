package runs

import (
	"errors"
	"testing"

	"longform-transcriber/internal/domain"
)

func TestManagerStartSetsPlanning(t *testing.T) {
	m := NewManager()

	if err := m.Start("run-1", "/media/talk.mp3"); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	run := m.Current()
	if run.ID != "run-1" {
		t.Fatalf("run ID = %q, want run-1", run.ID)
	}
	if run.MediaPath != "/media/talk.mp3" {
		t.Fatalf("media path = %q", run.MediaPath)
	}
	if run.Status != domain.RunStatusPlanning {
		t.Fatalf("status = %s, want planning", run.Status)
	}
}

func TestManagerStartRejectsSecondActiveRun(t *testing.T) {
	m := NewManager()

	if err := m.Start("run-1", "/media/a.mp3"); err != nil {
		t.Fatalf("first Start returned error: %v", err)
	}
	if err := m.Start("run-2", "/media/b.mp3"); !errors.Is(err, ErrRunAlreadyActive) {
		t.Fatalf("second Start error = %v, want ErrRunAlreadyActive", err)
	}
	if got := m.Current().ID; got != "run-1" {
		t.Fatalf("current run = %q after rejected start", got)
	}
}

func TestManagerValidTransitionChain(t *testing.T) {
	m := NewManager()
	if err := m.Start("run-1", "/media/a.mp3"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	chain := []domain.RunStatus{
		domain.RunStatusTranscribing,
		domain.RunStatusExporting,
		domain.RunStatusDone,
	}
	for _, status := range chain {
		if err := m.Transition(status); err != nil {
			t.Fatalf("Transition(%s) returned error: %v", status, err)
		}
	}
	if got := m.Current().Status; got != domain.RunStatusDone {
		t.Fatalf("final status = %s, want done", got)
	}
	if m.IsActive() {
		t.Fatal("manager active after done")
	}
}

func TestManagerInvalidTransitionRejected(t *testing.T) {
	m := NewManager()
	if err := m.Start("run-1", "/media/a.mp3"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := m.Transition(domain.RunStatusDone); err == nil {
		t.Fatal("expected error for planning -> done")
	}
	if got := m.Current().Status; got != domain.RunStatusPlanning {
		t.Fatalf("status changed on invalid transition: %s", got)
	}
}

func TestManagerTransitionWithoutRun(t *testing.T) {
	m := NewManager()

	if err := m.Transition(domain.RunStatusTranscribing); err == nil {
		t.Fatal("expected error transitioning with no run")
	}
}

func TestManagerSameStatusIsNoop(t *testing.T) {
	m := NewManager()
	if err := m.Start("run-1", "/media/a.mp3"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := m.Transition(domain.RunStatusPlanning); err != nil {
		t.Fatalf("same-status transition returned error: %v", err)
	}
}

func TestManagerSegmentProgress(t *testing.T) {
	m := NewManager()
	if err := m.Start("run-1", "/media/a.mp3"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	m.SetPlanned(3)
	m.SegmentCompleted()
	m.SegmentCompleted()

	run := m.Current()
	if run.PlannedSegments != 3 {
		t.Fatalf("planned = %d, want 3", run.PlannedSegments)
	}
	if run.CompletedSegments != 2 {
		t.Fatalf("completed = %d, want 2", run.CompletedSegments)
	}
}

func TestManagerCancelActiveRun(t *testing.T) {
	m := NewManager()
	if err := m.Start("run-1", "/media/a.mp3"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Transition(domain.RunStatusTranscribing); err != nil {
		t.Fatalf("Transition: %v", err)
	}

	if err := m.Cancel(); err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}
	if got := m.Current().Status; got != domain.RunStatusCancelled {
		t.Fatalf("status = %s, want cancelled", got)
	}
}

func TestManagerCancelWithoutActiveRun(t *testing.T) {
	m := NewManager()

	if err := m.Cancel(); !errors.Is(err, ErrNoActiveRun) {
		t.Fatalf("Cancel error = %v, want ErrNoActiveRun", err)
	}
}

func TestManagerRestartAfterTerminalState(t *testing.T) {
	m := NewManager()
	if err := m.Start("run-1", "/media/a.mp3"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Transition(domain.RunStatusFailed); err != nil {
		t.Fatalf("Transition to failed: %v", err)
	}

	if err := m.Start("run-2", "/media/b.mp3"); err != nil {
		t.Fatalf("Start after failed run returned error: %v", err)
	}
	run := m.Current()
	if run.ID != "run-2" || run.Status != domain.RunStatusPlanning {
		t.Fatalf("unexpected run after restart: %+v", run)
	}
}

func TestManagerReset(t *testing.T) {
	m := NewManager()
	if err := m.Start("run-1", "/media/a.mp3"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	m.SetPlanned(5)

	m.Reset()

	run := m.Current()
	if run.Status != domain.RunStatusIdle || run.ID != "" || run.PlannedSegments != 0 {
		t.Fatalf("unexpected run after reset: %+v", run)
	}
}
