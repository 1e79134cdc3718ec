package syncer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/fern/pkg/models"
)

func TestStatusTracker_IdleByDefault(t *testing.T) {
	tracker := NewStatusTracker()

	snap := tracker.Snapshot()
	assert.Equal(t, models.SyncPhaseIdle, snap.Phase)
	assert.False(t, snap.IsRunning)
	assert.Nil(t, snap.StartedAt)
}

func TestStatusTracker_RunningThroughPipelinePhases(t *testing.T) {
	tracker := NewStatusTracker()
	tracker.Begin()

	for _, phase := range []models.SyncPhase{
		models.SyncPhaseFetching,
		models.SyncPhasePreparing,
		models.SyncPhaseProcessingNodes,
		models.SyncPhaseProcessingRelationships,
		models.SyncPhaseUpdatingMetadata,
	} {
		tracker.SetPhase(phase, "working")
		snap := tracker.Snapshot()
		assert.True(t, snap.IsRunning, string(phase))
		assert.Nil(t, snap.CompletedAt, string(phase))
	}

	tracker.SetPhase(models.SyncPhaseCompleted, "done")
	snap := tracker.Snapshot()
	assert.False(t, snap.IsRunning)
	assert.NotNil(t, snap.CompletedAt)
	assert.GreaterOrEqual(t, snap.DurationSeconds, 0.0)
}

func TestStatusTracker_BeginResetsPreviousRun(t *testing.T) {
	tracker := NewStatusTracker()
	tracker.Begin()
	tracker.SetProgress("nodes_created", 40)
	tracker.AddError("boom")
	tracker.SetPhase(models.SyncPhaseError, "failed")

	tracker.Begin()
	snap := tracker.Snapshot()
	assert.Equal(t, models.SyncPhaseFetching, snap.Phase)
	assert.Empty(t, snap.Progress)
	assert.Empty(t, snap.Errors)
	assert.Nil(t, snap.CompletedAt)
	assert.True(t, snap.IsRunning)
}

func TestStatusTracker_SnapshotIsACopy(t *testing.T) {
	tracker := NewStatusTracker()
	tracker.Begin()
	tracker.SetProgress("nodes_created", 1)

	snap := tracker.Snapshot()
	snap.Progress["nodes_created"] = 999
	snap.Errors = append(snap.Errors, "mutated")

	fresh := tracker.Snapshot()
	assert.Equal(t, 1, fresh.Progress["nodes_created"])
	assert.Empty(t, fresh.Errors)
}
