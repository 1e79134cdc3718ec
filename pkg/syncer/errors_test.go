package syncer

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorTracker_StartsClean(t *testing.T) {
	tracker := NewErrorTracker(10)
	assert.False(t, tracker.HasErrors())

	summary := tracker.GetSummary()
	assert.Zero(t, summary.EntityErrorCount)
	assert.Zero(t, summary.BatchErrorCount)
	assert.Zero(t, summary.FailedItemCount)
	assert.Empty(t, summary.Messages)
}

func TestErrorTracker_CountsBatchSizeAsFailedItems(t *testing.T) {
	tracker := NewErrorTracker(10)
	tracker.TrackEntityError("e1", "Contact", errors.New("bad email"), "sanitize")
	tracker.TrackBatchError("nodes:Company", 250, errors.New("deadlock"), "node write")

	assert.True(t, tracker.HasErrors())

	summary := tracker.GetSummary()
	assert.Equal(t, 1, summary.EntityErrorCount)
	assert.Equal(t, 1, summary.BatchErrorCount)
	assert.Equal(t, 251, summary.FailedItemCount)
	assert.Len(t, summary.Messages, 2)
	assert.Contains(t, summary.Messages[0], "e1")
	assert.Contains(t, summary.Messages[1], "nodes:Company")
}

func TestErrorTracker_EntityErrorsFillBudgetFirst(t *testing.T) {
	tracker := NewErrorTracker(3)
	for i := 0; i < 5; i++ {
		tracker.TrackEntityError(fmt.Sprintf("e%d", i), "Contact", errors.New("bad"), "prep")
	}
	tracker.TrackBatchError("relationships:OWNS", 10, errors.New("timeout"), "edge write")

	summary := tracker.GetSummary()
	assert.Len(t, summary.Messages, 3)
	assert.True(t, summary.Truncated)
	for _, msg := range summary.Messages {
		assert.Contains(t, msg, "entity")
	}
	// Counts stay accurate even when messages are capped.
	assert.Equal(t, 5, summary.EntityErrorCount)
	assert.Equal(t, 1, summary.BatchErrorCount)
	assert.Equal(t, 15, summary.FailedItemCount)
}

func TestErrorTracker_BatchErrorsFillRemainingBudget(t *testing.T) {
	tracker := NewErrorTracker(3)
	tracker.TrackEntityError("e1", "Contact", errors.New("bad"), "prep")
	tracker.TrackBatchError("nodes:Lead", 5, errors.New("boom"), "node write")
	tracker.TrackBatchError("nodes:Deal", 5, errors.New("boom"), "node write")
	tracker.TrackBatchError("nodes:Task", 5, errors.New("boom"), "node write")

	summary := tracker.GetSummary()
	assert.Len(t, summary.Messages, 3)
	assert.True(t, summary.Truncated)
	assert.Contains(t, summary.Messages[0], "entity")
	assert.Contains(t, summary.Messages[1], "nodes:Lead")
	assert.Contains(t, summary.Messages[2], "nodes:Deal")
}

func TestErrorTracker_Clear(t *testing.T) {
	tracker := NewErrorTracker(10)
	tracker.TrackEntityError("e1", "Contact", errors.New("bad"), "prep")
	tracker.Clear()

	assert.False(t, tracker.HasErrors())
	assert.Zero(t, tracker.GetSummary().FailedItemCount)
}
