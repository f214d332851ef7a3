package events

import (
	"errors"
	"testing"

	"github.com/JadissEL/Theconverter/pkg/models"
)

func TestTrackerLifecycle(t *testing.T) {
	tracker := NewTracker()
	tracker.Create("job-1")

	status, ok := tracker.Status("job-1")
	if !ok {
		t.Fatal("Expected job to be tracked after Create")
	}
	if status.State != models.JobStatePending {
		t.Errorf("Expected pending state, got %s", status.State)
	}

	tracker.Update("job-1", models.JobStateConverting, 0.5, "Converting")
	status, _ = tracker.Status("job-1")
	if status.State != models.JobStateConverting || status.Progress != 0.5 {
		t.Errorf("Update not reflected: %+v", status)
	}

	tracker.SetOutput("job-1", "file:///out/result.mp3")
	tracker.Update("job-1", models.JobStateCompleted, 1.0, "Done")
	status, _ = tracker.Status("job-1")
	if status.OutputPath != "file:///out/result.mp3" {
		t.Errorf("Expected output path to be recorded, got %q", status.OutputPath)
	}
	if status.CompletedAt.IsZero() {
		t.Error("Terminal state must set CompletedAt")
	}
}

func TestTrackerFail(t *testing.T) {
	tracker := NewTracker()
	tracker.Create("job-1")

	tracker.Fail("job-1", errors.New("encoder crashed"))

	status, _ := tracker.Status("job-1")
	if status.State != models.JobStateFailed {
		t.Errorf("Expected failed state, got %s", status.State)
	}
	if status.Error != "encoder crashed" {
		t.Errorf("Expected error message, got %q", status.Error)
	}
}

func TestTrackerSubscribe(t *testing.T) {
	tracker := NewTracker()
	tracker.Create("job-1")
	tracker.Create("job-2")

	var jobUpdates, allUpdates []Update
	tracker.Subscribe("job-1", func(u Update) { jobUpdates = append(jobUpdates, u) })
	tracker.SubscribeAll(func(u Update) { allUpdates = append(allUpdates, u) })

	tracker.Update("job-1", models.JobStateConverting, 0.3, "")
	tracker.Update("job-2", models.JobStateConverting, 0.7, "")

	if len(jobUpdates) != 1 {
		t.Errorf("Per-job subscriber should see only its job, got %d updates", len(jobUpdates))
	}
	if len(allUpdates) != 2 {
		t.Errorf("Global subscriber should see every job, got %d updates", len(allUpdates))
	}
	if jobUpdates[0].Progress != 0.3 {
		t.Errorf("Expected progress 0.3, got %f", jobUpdates[0].Progress)
	}
}

func TestTrackerUnknownJob(t *testing.T) {
	tracker := NewTracker()

	// Updates for unknown jobs are dropped, not panics.
	tracker.Update("ghost", models.JobStateConverting, 0.5, "")

	if _, ok := tracker.Status("ghost"); ok {
		t.Error("Unknown job must not materialize from an update")
	}
}

func TestTrackerRemove(t *testing.T) {
	tracker := NewTracker()
	tracker.Create("job-1")
	tracker.Remove("job-1")

	if _, ok := tracker.Status("job-1"); ok {
		t.Error("Removed job should not be tracked")
	}
}
