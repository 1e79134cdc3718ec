package models

import (
	"encoding/json"
	"time"
)

// SyncPhase tracks where a running sync is in its pipeline.
type SyncPhase string

const (
	SyncPhaseIdle                    SyncPhase = "IDLE"
	SyncPhaseFetching                SyncPhase = "FETCHING"
	SyncPhasePreparing               SyncPhase = "PREPARING"
	SyncPhaseProcessingNodes         SyncPhase = "PROCESSING_NODES"
	SyncPhaseProcessingRelationships SyncPhase = "PROCESSING_RELATIONSHIPS"
	SyncPhaseUpdatingMetadata        SyncPhase = "UPDATING_METADATA"
	SyncPhaseCompleted               SyncPhase = "COMPLETED"
	SyncPhaseError                   SyncPhase = "ERROR"
)

// Sync result statuses. The caller can distinguish "nothing happened" from
// "some records failed" from "total configuration failure" on this field alone.
const (
	SyncStatusSuccess        = "success"
	SyncStatusPartialSuccess = "partial_success"
	SyncStatusError          = "error"
)

// NodeResult reports the outcome of a batched node write pass.
type NodeResult struct {
	Created         int      `json:"created"`
	Updated         int      `json:"updated"`
	Failed          int      `json:"failed"`
	LabelsProcessed []string `json:"labels_processed"`
}

// RelationshipResult reports the outcome of a relationship write pass.
// Skipped counts rows whose endpoints were missing; the engine silently
// contributes nothing for those, so it is derived as submitted minus created.
type RelationshipResult struct {
	Created           int      `json:"created"`
	Skipped           int      `json:"skipped"`
	Failed            int      `json:"failed"`
	RelationshipTypes []string `json:"relationship_types"`
}

// SyncResult is the structured outcome of one sync invocation. A sync always
// terminates in one of these; it never raises to its caller.
type SyncResult struct {
	Status               string   `json:"status"`
	EntitiesSynced       int      `json:"entities_synced"`
	EntitiesCreated      int      `json:"entities_created"`
	EntitiesUpdated      int      `json:"entities_updated"`
	RelationshipsCreated int      `json:"relationships_created"`
	RelationshipsSkipped int      `json:"relationships_skipped"`
	EntityTypes          []string `json:"entity_types"`
	Message              string   `json:"message"`
	Errors               []string `json:"errors"`
}

// SyncStatusSnapshot is a point-in-time view of a sync's progress, safe to
// poll while the sync is running.
type SyncStatusSnapshot struct {
	Phase           SyncPhase      `json:"phase"`
	StartedAt       *time.Time     `json:"started_at,omitempty"`
	CurrentStep     string         `json:"current_step,omitempty"`
	Progress        map[string]int `json:"progress"`
	Errors          []string       `json:"errors"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	DurationSeconds float64        `json:"duration_seconds"`
	IsRunning       bool           `json:"is_running"`
}

// SyncRun is a persisted record of one sync invocation.
type SyncRun struct {
	ID                   string          `db:"id" json:"id"`
	SyncKey              string          `db:"sync_key" json:"sync_key"`
	Status               string          `db:"status" json:"status"`
	EntitiesSynced       int             `db:"entities_synced" json:"entities_synced"`
	EntitiesCreated      int             `db:"entities_created" json:"entities_created"`
	EntitiesUpdated      int             `db:"entities_updated" json:"entities_updated"`
	RelationshipsCreated int             `db:"relationships_created" json:"relationships_created"`
	Message              string          `db:"message" json:"message"`
	Errors               json.RawMessage `db:"errors" json:"errors"`
	StartedAt            time.Time       `db:"started_at" json:"started_at"`
	CompletedAt          *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
}
