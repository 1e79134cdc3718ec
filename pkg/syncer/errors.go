package syncer

import (
	"fmt"
	"sync"
)

type entityError struct {
	EntityID string `json:"entity_id"`
	Label    string `json:"label"`
	Message  string `json:"message"`
	Context  string `json:"context,omitempty"`
}

type batchError struct {
	BatchType string `json:"batch_type"`
	BatchSize int    `json:"batch_size"`
	Message   string `json:"message"`
	Context   string `json:"context,omitempty"`
}

// ErrorSummary is the bounded view of a run's failures returned to callers.
// Messages is capped at the display limit regardless of sync scale.
type ErrorSummary struct {
	EntityErrorCount int      `json:"entity_error_count"`
	BatchErrorCount  int      `json:"batch_error_count"`
	FailedItemCount  int      `json:"failed_item_count"`
	Messages         []string `json:"messages"`
	Truncated        bool     `json:"truncated"`
}

// ErrorTracker accumulates record-level and batch-level failures during one
// sync run without ever aborting it. Instantiated per run; Clear supports
// reuse. Safe for concurrent use.
type ErrorTracker struct {
	mu           sync.Mutex
	displayLimit int
	entityErrors []entityError
	batchErrors  []batchError
}

// NewErrorTracker creates a tracker whose summaries show at most displayLimit
// messages.
func NewErrorTracker(displayLimit int) *ErrorTracker {
	if displayLimit <= 0 {
		displayLimit = 10
	}
	return &ErrorTracker{displayLimit: displayLimit}
}

// TrackEntityError records one bad record.
func (t *ErrorTracker) TrackEntityError(entityID, label string, err error, context string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	msg := ""
	if err != nil {
		msg = err.Error()
	}
	t.entityErrors = append(t.entityErrors, entityError{
		EntityID: entityID,
		Label:    label,
		Message:  msg,
		Context:  context,
	})
}

// TrackBatchError records one failed bulk operation covering batchSize items.
func (t *ErrorTracker) TrackBatchError(batchType string, batchSize int, err error, context string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	msg := ""
	if err != nil {
		msg = err.Error()
	}
	t.batchErrors = append(t.batchErrors, batchError{
		BatchType: batchType,
		BatchSize: batchSize,
		Message:   msg,
		Context:   context,
	})
}

// HasErrors reports whether anything has been tracked since the last Clear.
func (t *ErrorTracker) HasErrors() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entityErrors) > 0 || len(t.batchErrors) > 0
}

// Clear resets the tracker for the next run.
func (t *ErrorTracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entityErrors = nil
	t.batchErrors = nil
}

// GetSummary returns counts plus a capped message list. Entity errors fill
// the budget first; batch errors take whatever display slots remain.
func (t *ErrorTracker) GetSummary() ErrorSummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	summary := ErrorSummary{
		EntityErrorCount: len(t.entityErrors),
		BatchErrorCount:  len(t.batchErrors),
		FailedItemCount:  len(t.entityErrors),
	}
	for _, be := range t.batchErrors {
		summary.FailedItemCount += be.BatchSize
	}

	budget := t.displayLimit
	for _, ee := range t.entityErrors {
		if budget == 0 {
			summary.Truncated = true
			break
		}
		summary.Messages = append(summary.Messages,
			fmt.Sprintf("entity %s (%s): %s [%s]", ee.EntityID, ee.Label, ee.Message, ee.Context))
		budget--
	}
	for _, be := range t.batchErrors {
		if budget == 0 {
			summary.Truncated = true
			break
		}
		summary.Messages = append(summary.Messages,
			fmt.Sprintf("batch %s (%d items): %s [%s]", be.BatchType, be.BatchSize, be.Message, be.Context))
		budget--
	}

	return summary
}
