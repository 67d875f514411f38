// Package progress tracks per-analysis pipeline progress in memory so the
// API can answer polls while a run is in flight. Writes never block or fail
// the pipeline; a stale entry is the worst possible outcome.
package progress

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status of a tracked analysis.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Snapshot is the externally visible progress of one analysis.
type Snapshot struct {
	AnalysisID string    `json:"analysis_id"`
	Status     Status    `json:"status"`
	Step       int       `json:"current_step"`
	TotalSteps int       `json:"total_steps"`
	Message    string    `json:"message"`
	Percentage int       `json:"percentage"`
	StartedAt  time.Time `json:"started_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Tracker is a mutex-guarded map of analysis ID to progress. Terminal
// entries linger for a grace window so late pollers still see the outcome.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]*Snapshot
	timers  map[string]*time.Timer
	grace   time.Duration
}

// NewTracker creates a Tracker. Terminal entries are discarded after grace
// once DiscardAfter is armed.
func NewTracker(grace time.Duration) *Tracker {
	return &Tracker{
		entries: make(map[string]*Snapshot),
		timers:  make(map[string]*time.Timer),
		grace:   grace,
	}
}

// Create registers an analysis at step zero.
func (t *Tracker) Create(id string, totalSteps int) {
	now := time.Now().UTC()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopTimer(id)
	t.entries[id] = &Snapshot{
		AnalysisID: id,
		Status:     StatusProcessing,
		TotalSteps: totalSteps,
		Message:    "queued",
		StartedAt:  now,
		UpdatedAt:  now,
	}
}

// Update records a forward step. Writes for an unknown analysis or with a
// step lower than the current one are dropped: with several targets running
// in parallel only the furthest step is worth showing.
func (t *Tracker) Update(id string, step int, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[id]
	if !ok || step < entry.Step {
		return
	}
	entry.Step = step
	entry.Message = message
	entry.UpdatedAt = time.Now().UTC()
	if entry.TotalSteps > 0 {
		entry.Percentage = step * 100 / entry.TotalSteps
		if entry.Percentage > 100 {
			entry.Percentage = 100
		}
	}
}

// Complete marks the analysis done.
func (t *Tracker) Complete(id, message string) {
	t.finish(id, StatusCompleted, message, 100)
}

// Fail marks the analysis failed.
func (t *Tracker) Fail(id, message string) {
	t.mu.Lock()
	entry, ok := t.entries[id]
	var pct int
	if ok {
		pct = entry.Percentage
	}
	t.mu.Unlock()
	t.finish(id, StatusFailed, message, pct)
}

func (t *Tracker) finish(id string, status Status, message string, pct int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[id]
	if !ok {
		return
	}
	entry.Status = status
	entry.Message = message
	entry.Percentage = pct
	if status == StatusCompleted {
		entry.Step = entry.TotalSteps
	}
	entry.UpdatedAt = time.Now().UTC()
}

// Get returns a copy of the current progress, or false when unknown.
func (t *Tracker) Get(id string) (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[id]
	if !ok {
		return Snapshot{}, false
	}
	return *entry, true
}

// Discard drops the entry immediately.
func (t *Tracker) Discard(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopTimer(id)
	delete(t.entries, id)
}

// DiscardAfter schedules removal after the grace window. Calling it again
// resets the timer, so an entry being actively polled survives until the
// polls stop.
func (t *Tracker) DiscardAfter(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[id]; !ok {
		return
	}
	t.stopTimer(id)
	t.timers[id] = time.AfterFunc(t.grace, func() {
		t.Discard(id)
		zap.L().Debug("progress: entry discarded", zap.String("analysis_id", id))
	})
}

// stopTimer must be called with t.mu held.
func (t *Tracker) stopTimer(id string) {
	if timer, ok := t.timers[id]; ok {
		timer.Stop()
		delete(t.timers, id)
	}
}
