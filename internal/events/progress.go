// Package events tracks per-job conversion progress and fans updates out
// to subscribers.
package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/JadissEL/Theconverter/pkg/models"
)

// Update is one progress notification for a job.
type Update struct {
	JobID    string          `json:"jobId"`
	State    models.JobState `json:"state"`
	Progress float64         `json:"progress"` // 0.0 to 1.0
	Message  string          `json:"message,omitempty"`
	At       time.Time       `json:"at"`
}

// Subscriber receives progress updates. Callbacks run on the updating
// goroutine and must not block.
type Subscriber func(Update)

// Tracker keeps the status of known jobs and notifies subscribers of
// every change.
type Tracker struct {
	mu          sync.RWMutex
	jobs        map[string]*models.JobStatus
	subscribers map[string][]Subscriber
	global      []Subscriber
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		jobs:        make(map[string]*models.JobStatus),
		subscribers: make(map[string][]Subscriber),
	}
}

// Create registers a new pending job.
func (t *Tracker) Create(jobID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs[jobID] = &models.JobStatus{
		State:     models.JobStatePending,
		Message:   "Job queued",
		StartedAt: time.Now(),
	}
}

// Update records a state change for jobID and notifies subscribers.
// Unknown job IDs are ignored.
func (t *Tracker) Update(jobID string, state models.JobState, progress float64, message string) {
	t.mu.Lock()
	status, ok := t.jobs[jobID]
	if !ok {
		t.mu.Unlock()
		slog.Debug("Progress update for unknown job", "jobId", jobID)
		return
	}

	status.State = state
	status.Progress = progress
	status.Message = message
	if state == models.JobStateCompleted || state == models.JobStateFailed || state == models.JobStateCancelled {
		status.CompletedAt = time.Now()
	}

	subs := make([]Subscriber, 0, len(t.subscribers[jobID])+len(t.global))
	subs = append(subs, t.subscribers[jobID]...)
	subs = append(subs, t.global...)
	t.mu.Unlock()

	update := Update{
		JobID:    jobID,
		State:    state,
		Progress: progress,
		Message:  message,
		At:       time.Now(),
	}
	for _, sub := range subs {
		sub(update)
	}
}

// Fail marks jobID failed with the error message.
func (t *Tracker) Fail(jobID string, err error) {
	t.mu.Lock()
	if status, ok := t.jobs[jobID]; ok {
		status.Error = err.Error()
	}
	t.mu.Unlock()
	t.Update(jobID, models.JobStateFailed, 0, err.Error())
}

// SetOutput records where a completed job's output was published.
func (t *Tracker) SetOutput(jobID, outputPath string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if status, ok := t.jobs[jobID]; ok {
		status.OutputPath = outputPath
	}
}

// Status returns a copy of the job's status.
func (t *Tracker) Status(jobID string) (models.JobStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	status, ok := t.jobs[jobID]
	if !ok {
		return models.JobStatus{}, false
	}
	return *status, true
}

// Subscribe registers a callback for one job's updates.
func (t *Tracker) Subscribe(jobID string, sub Subscriber) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subscribers[jobID] = append(t.subscribers[jobID], sub)
}

// SubscribeAll registers a callback for every job's updates.
func (t *Tracker) SubscribeAll(sub Subscriber) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.global = append(t.global, sub)
}

// Remove forgets a finished job and its subscribers.
func (t *Tracker) Remove(jobID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.jobs, jobID)
	delete(t.subscribers, jobID)
}
