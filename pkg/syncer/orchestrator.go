package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/stem/pkg/tracing"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/provider"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/sanitize"
)

// ErrSyncInFlight is returned when another run already holds the sync lock.
var ErrSyncInFlight = errors.New("a sync for this key is already running")

var errMissingLabel = errors.New("record has no label")

type nodeWriter interface {
	ProcessNodes(ctx context.Context, entitiesByLabel map[string][]models.NodeBatch, provenance string, sink graph.ErrorSink) models.NodeResult
}

type relationshipWriter interface {
	ProcessRelationships(ctx context.Context, relations []models.RelationRequest, provenance string, sink graph.ErrorSink) models.RelationshipResult
}

type watermarkStore interface {
	GetLastSyncTime(ctx context.Context, key string) (time.Time, error)
	SetLastSyncTime(ctx context.Context, key string, ts time.Time) error
}

// Locker provides single-flight per sync key. Optional; without one the
// status tracker is observational only and overlapping runs converge through
// idempotent upserts. A held lock is reported with redis.ErrLockNotAcquired;
// any other error is an infrastructure failure, not contention.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func() error) error
}

// RunStore persists sync-run history. Persistence is best-effort; a failed
// insert never fails the sync.
type RunStore interface {
	Create(ctx context.Context, run *models.SyncRun) error
}

// EventPublisher announces completed runs to the rest of the platform.
type EventPublisher interface {
	PublishSyncCompleted(ctx context.Context, syncKey string, result models.SyncResult) error
}

// Config carries the orchestrator's tunables.
type Config struct {
	SyncKey           string
	ProviderName      string
	LockTTL           time.Duration
	ErrorDisplayLimit int
	// AllowedLabels, when non-empty, is a closed set: records whose label
	// falls outside it are rejected and tracked, never coerced.
	AllowedLabels []string
}

// Orchestrator coordinates a sync run end to end: fetch, prepare, write
// nodes, write relationships, persist the watermark, assemble the result.
// Every failure mode terminates in a structured SyncResult; the only errors
// returned from Sync are "no provider", "provider load failure", "sync
// already in flight", and a failed lock acquire, which the HTTP layer maps
// to distinct status codes.
type Orchestrator struct {
	registry      *provider.Registry
	nodes         nodeWriter
	relationships relationshipWriter
	watermarks    watermarkStore
	status        *StatusTracker
	locker        Locker
	runs          RunStore
	events        EventPublisher
	logger        ectologger.Logger
	cfg           Config

	allowed map[string]bool
}

func NewOrchestrator(
	registry *provider.Registry,
	nodes nodeWriter,
	relationships relationshipWriter,
	watermarks watermarkStore,
	status *StatusTracker,
	locker Locker,
	runs RunStore,
	events EventPublisher,
	logger ectologger.Logger,
	cfg Config,
) *Orchestrator {
	if cfg.SyncKey == "" {
		cfg.SyncKey = "crm_sync"
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}

	var allowed map[string]bool
	if len(cfg.AllowedLabels) > 0 {
		allowed = make(map[string]bool, len(cfg.AllowedLabels))
		for _, label := range cfg.AllowedLabels {
			allowed[label] = true
		}
	}

	return &Orchestrator{
		registry:      registry,
		nodes:         nodes,
		relationships: relationships,
		watermarks:    watermarks,
		status:        status,
		locker:        locker,
		runs:          runs,
		events:        events,
		logger:        logger,
		cfg:           cfg,
		allowed:       allowed,
	}
}

// Status returns a snapshot of the current or most recent run.
func (o *Orchestrator) Status() models.SyncStatusSnapshot {
	return o.status.Snapshot()
}

// Sync runs one sync invocation. entityTypes, when non-empty, restricts the
// provider fetch to those labels.
func (o *Orchestrator) Sync(ctx context.Context, entityTypes []string) (models.SyncResult, error) {
	ctx, span := tracing.StartSpan(ctx, "syncer.Orchestrator.Sync")
	defer span.End()

	p, err := o.registry.Get(ctx, o.cfg.ProviderName)
	if err != nil {
		return models.SyncResult{}, err
	}

	if o.locker == nil {
		return o.run(ctx, p, entityTypes), nil
	}

	var result models.SyncResult
	ran := false
	err = o.locker.WithLock(ctx, o.cfg.SyncKey, o.cfg.LockTTL, func() error {
		ran = true
		result = o.run(ctx, p, entityTypes)
		return nil
	})
	if err != nil && !ran {
		if errors.Is(err, redis.ErrLockNotAcquired) {
			o.logger.WithContext(ctx).WithFields(map[string]any{
				"sync_key": o.cfg.SyncKey,
			}).Warn("Sync lock held by another run")
			return models.SyncResult{}, ErrSyncInFlight
		}
		o.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"sync_key": o.cfg.SyncKey,
		}).Error("Failed to acquire sync lock")
		return models.SyncResult{}, fmt.Errorf("failed to acquire sync lock: %w", err)
	}
	return result, nil
}

// run executes the phase machine. It never returns an error; everything
// terminates in a SyncResult.
func (o *Orchestrator) run(ctx context.Context, p provider.Provider, entityTypes []string) (result models.SyncResult) {
	log := o.logger.WithContext(ctx).WithFields(map[string]any{
		"sync_key": o.cfg.SyncKey,
		"provider": p.Name(),
	})

	startedAt := time.Now().UTC()
	tracker := NewErrorTracker(o.cfg.ErrorDisplayLimit)
	o.status.Begin()

	defer func() {
		if r := recover(); r != nil {
			log.WithFields(map[string]any{"panic": fmt.Sprint(r)}).Error("Sync panicked")
			result = o.finish(ctx, models.SyncResult{
				Status:  models.SyncStatusError,
				Message: fmt.Sprintf("sync failed: %v", r),
				Errors:  []string{fmt.Sprintf("panic: %v", r)},
			}, startedAt)
		}
	}()

	// FETCHING. A watermark read failure downgrades to a full sync rather
	// than failing the run.
	since, err := o.watermarks.GetLastSyncTime(ctx, o.cfg.SyncKey)
	if err != nil {
		log.WithError(err).Warn("Failed to read sync watermark - running full sync")
		since = time.Time{}
	}

	records, err := p.FetchEntities(ctx, provider.FetchOptions{Since: since, EntityTypes: entityTypes})
	if err != nil {
		log.WithError(err).Error("Provider fetch failed")
		o.status.AddError(err.Error())
		return o.finish(ctx, models.SyncResult{
			Status:  models.SyncStatusError,
			Message: "failed to fetch records from provider",
			Errors:  []string{err.Error()},
		}, startedAt)
	}

	// Empty input is not an error.
	if len(records) == 0 {
		log.Info("Provider returned no records")
		return o.finish(ctx, models.SyncResult{
			Status:      models.SyncStatusSuccess,
			EntityTypes: []string{},
			Errors:      []string{},
			Message:     "no records to sync",
		}, startedAt)
	}

	// PREPARING.
	o.status.SetPhase(models.SyncPhasePreparing, "sanitizing and grouping records")
	o.status.SetProgress("records_fetched", len(records))
	byLabel, relations := o.prepare(ctx, records, tracker)

	// PROCESSING_NODES.
	o.status.SetPhase(models.SyncPhaseProcessingNodes, "writing nodes")
	nodeResult := o.nodes.ProcessNodes(ctx, byLabel, p.Name(), tracker)
	o.status.SetProgress("nodes_created", nodeResult.Created)
	o.status.SetProgress("nodes_updated", nodeResult.Updated)
	o.status.SetProgress("nodes_failed", nodeResult.Failed)

	// PROCESSING_RELATIONSHIPS. Nodes are fully written first; the
	// relationship processor refuses to create endpoint stubs.
	o.status.SetPhase(models.SyncPhaseProcessingRelationships, "writing relationships")
	relResult := o.relationships.ProcessRelationships(ctx, relations, p.Name(), tracker)
	o.status.SetProgress("relationships_created", relResult.Created)
	o.status.SetProgress("relationships_skipped", relResult.Skipped)
	o.status.SetProgress("relationships_failed", relResult.Failed)

	// UPDATING_METADATA. Best-effort regardless of partial failures.
	o.status.SetPhase(models.SyncPhaseUpdatingMetadata, "persisting sync watermark")
	if err := o.watermarks.SetLastSyncTime(ctx, o.cfg.SyncKey, time.Now().UTC()); err != nil {
		log.WithError(err).Warn("Failed to persist sync watermark")
	}

	summary := tracker.GetSummary()
	status := models.SyncStatusSuccess
	if summary.EntityErrorCount > 0 || summary.BatchErrorCount > 0 {
		status = models.SyncStatusPartialSuccess
	}

	result = models.SyncResult{
		Status:               status,
		EntitiesSynced:       nodeResult.Created + nodeResult.Updated,
		EntitiesCreated:      nodeResult.Created,
		EntitiesUpdated:      nodeResult.Updated,
		RelationshipsCreated: relResult.Created,
		RelationshipsSkipped: relResult.Skipped,
		EntityTypes:          nodeResult.LabelsProcessed,
		Errors:               summary.Messages,
		Message: fmt.Sprintf("synced %d entities (%d created, %d updated), %d relationships created",
			nodeResult.Created+nodeResult.Updated, nodeResult.Created, nodeResult.Updated, relResult.Created),
	}
	if result.Errors == nil {
		result.Errors = []string{}
	}
	for _, msg := range summary.Messages {
		o.status.AddError(msg)
	}

	log.WithFields(map[string]any{
		"status":                result.Status,
		"entities_created":      result.EntitiesCreated,
		"entities_updated":      result.EntitiesUpdated,
		"relationships_created": result.RelationshipsCreated,
		"failed_items":          summary.FailedItemCount,
	}).Info("Sync finished")

	return o.finish(ctx, result, startedAt)
}

// prepare sanitizes each record and groups it for the batch writers. Records
// missing a label or identifier, or carrying a label outside the allowed
// set, are tracked and skipped without affecting siblings.
func (o *Orchestrator) prepare(ctx context.Context, records []models.EntityRecord, tracker *ErrorTracker) (map[string][]models.NodeBatch, []models.RelationRequest) {
	byLabel := make(map[string][]models.NodeBatch)
	var relations []models.RelationRequest

	for _, record := range records {
		if record.Label == "" || record.SourceID == "" {
			o.logger.WithContext(ctx).WithFields(map[string]any{
				"source_id": record.SourceID,
				"label":     record.Label,
			}).Warn("Skipping record without label or identifier")
			tracker.TrackEntityError(record.SourceID, record.Label, errMissingLabel, "record preparation")
			continue
		}
		if o.allowed != nil && !o.allowed[record.Label] {
			tracker.TrackEntityError(record.SourceID, record.Label,
				fmt.Errorf("label %q is not in the allowed set", record.Label), "record preparation")
			continue
		}

		byLabel[record.Label] = append(byLabel[record.Label], models.NodeBatch{
			SourceID:   record.SourceID,
			Properties: sanitize.Properties(record.Properties),
		})

		for _, rel := range record.Relations {
			relations = append(relations, models.RelationRequest{
				SourceID:    record.SourceID,
				TargetID:    rel.TargetID,
				Type:        rel.Type,
				TargetLabel: rel.TargetLabel,
				Direction:   rel.Direction,
			})
		}
	}

	return byLabel, relations
}

// finish stamps the terminal phase, persists the run, and publishes the
// completion event. Persistence and publishing are best-effort.
func (o *Orchestrator) finish(ctx context.Context, result models.SyncResult, startedAt time.Time) models.SyncResult {
	if result.EntityTypes == nil {
		result.EntityTypes = []string{}
	}
	sort.Strings(result.EntityTypes)
	if result.Errors == nil {
		result.Errors = []string{}
	}

	phase := models.SyncPhaseCompleted
	if result.Status == models.SyncStatusError {
		phase = models.SyncPhaseError
	}
	o.status.SetPhase(phase, result.Message)

	if o.runs != nil {
		completedAt := time.Now().UTC()
		errorsJSON, err := json.Marshal(result.Errors)
		if err != nil {
			errorsJSON = []byte("[]")
		}
		run := &models.SyncRun{
			ID:                   uuid.New().String(),
			SyncKey:              o.cfg.SyncKey,
			Status:               result.Status,
			EntitiesSynced:       result.EntitiesSynced,
			EntitiesCreated:      result.EntitiesCreated,
			EntitiesUpdated:      result.EntitiesUpdated,
			RelationshipsCreated: result.RelationshipsCreated,
			Message:              result.Message,
			Errors:               errorsJSON,
			StartedAt:            startedAt,
			CompletedAt:          &completedAt,
		}
		if err := o.runs.Create(ctx, run); err != nil {
			o.logger.WithContext(ctx).WithError(err).Warn("Failed to persist sync run")
		}
	}

	if o.events != nil {
		if err := o.events.PublishSyncCompleted(ctx, o.cfg.SyncKey, result); err != nil {
			o.logger.WithContext(ctx).WithError(err).Warn("Failed to publish sync completion event")
		}
	}

	return result
}
