package syncer

import (
	"sync"
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
)

// StatusTracker exposes the orchestrator's phase machine as a pollable
// snapshot. It is observational only; it does not provide mutual exclusion
// between runs.
type StatusTracker struct {
	mu          sync.RWMutex
	phase       models.SyncPhase
	currentStep string
	startedAt   time.Time
	completedAt time.Time
	progress    map[string]int
	errors      []string
}

func NewStatusTracker() *StatusTracker {
	return &StatusTracker{
		phase:    models.SyncPhaseIdle,
		progress: map[string]int{},
	}
}

// Begin resets the tracker for a new run.
func (t *StatusTracker) Begin() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phase = models.SyncPhaseFetching
	t.currentStep = "fetching records from provider"
	t.startedAt = time.Now().UTC()
	t.completedAt = time.Time{}
	t.progress = map[string]int{}
	t.errors = nil
}

// SetPhase advances the phase machine and updates the human-readable step.
func (t *StatusTracker) SetPhase(phase models.SyncPhase, step string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phase = phase
	t.currentStep = step
	if phase == models.SyncPhaseCompleted || phase == models.SyncPhaseError {
		t.completedAt = time.Now().UTC()
	}
}

// SetProgress records one named counter, e.g. "nodes_created".
func (t *StatusTracker) SetProgress(key string, value int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.progress[key] = value
}

// AddError appends a message to the snapshot's error list.
func (t *StatusTracker) AddError(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errors = append(t.errors, msg)
}

// IsRunning reports whether a run is in flight. Observational only; two
// callers can both see false and start concurrent runs.
func (t *StatusTracker) IsRunning() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.isRunningLocked()
}

func (t *StatusTracker) isRunningLocked() bool {
	switch t.phase {
	case models.SyncPhaseIdle, models.SyncPhaseCompleted, models.SyncPhaseError:
		return false
	}
	return true
}

// Snapshot returns a copy of the current state, safe to serialize.
func (t *StatusTracker) Snapshot() models.SyncStatusSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := models.SyncStatusSnapshot{
		Phase:       t.phase,
		CurrentStep: t.currentStep,
		IsRunning:   t.isRunningLocked(),
		Progress:    make(map[string]int, len(t.progress)),
		Errors:      append([]string(nil), t.errors...),
	}
	for k, v := range t.progress {
		snap.Progress[k] = v
	}
	if !t.startedAt.IsZero() {
		started := t.startedAt
		snap.StartedAt = &started
	}
	if !t.completedAt.IsZero() {
		completed := t.completedAt
		snap.CompletedAt = &completed
		snap.DurationSeconds = completed.Sub(t.startedAt).Seconds()
	} else if !t.startedAt.IsZero() && snap.IsRunning {
		snap.DurationSeconds = time.Since(t.startedAt).Seconds()
	}
	return snap
}
