package syncrun

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/stem/pkg/database"
	"github.com/Ramsey-B/stem/pkg/tracing"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Repository persists sync-run history
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new sync run repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts one completed run record
func (r *Repository) Create(ctx context.Context, run *models.SyncRun) error {
	ctx, span := tracing.StartSpan(ctx, "syncrun.Repository.Create")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("sync_runs")
	sb.Cols("id", "sync_key", "status", "entities_synced", "entities_created", "entities_updated", "relationships_created", "message", "errors", "started_at", "completed_at")
	sb.Values(run.ID, run.SyncKey, run.Status, run.EntitiesSynced, run.EntitiesCreated, run.EntitiesUpdated, run.RelationshipsCreated, run.Message, run.Errors, run.StartedAt, run.CompletedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"sync_key": run.SyncKey,
			"status":   run.Status,
		}).Error("Failed to persist sync run")
		return fmt.Errorf("failed to persist sync run: %w", err)
	}

	return nil
}

// List returns the most recent runs for a sync key, newest first. An empty
// key lists runs across all keys.
func (r *Repository) List(ctx context.Context, syncKey string, limit int) ([]models.SyncRun, error) {
	ctx, span := tracing.StartSpan(ctx, "syncrun.Repository.List")
	defer span.End()

	if limit <= 0 || limit > 200 {
		limit = 50
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "sync_key", "status", "entities_synced", "entities_created", "entities_updated", "relationships_created", "message", "errors", "started_at", "completed_at")
	sb.From("sync_runs")
	if syncKey != "" {
		sb.Where(sb.Equal("sync_key", syncKey))
	}
	sb.OrderBy("started_at").Desc()
	sb.Limit(limit)

	query, args := sb.Build()
	var runs []models.SyncRun
	if err := r.db.SelectContext(ctx, &runs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list sync runs")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list sync runs")
	}

	return runs, nil
}

// Get retrieves one run by id
func (r *Repository) Get(ctx context.Context, id string) (*models.SyncRun, error) {
	ctx, span := tracing.StartSpan(ctx, "syncrun.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "sync_key", "status", "entities_synced", "entities_created", "entities_updated", "relationships_created", "message", "errors", "started_at", "completed_at")
	sb.From("sync_runs")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var run models.SyncRun
	if err := r.db.GetContext(ctx, &run, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("sync run %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get sync run")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get sync run")
	}

	return &run, nil
}
