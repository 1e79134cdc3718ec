package sync

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/internal/repositories/syncrun"
	"github.com/Ramsey-B/fern/pkg/provider"
	"github.com/Ramsey-B/fern/pkg/syncer"
)

var validate = validator.New()

// Register registers sync routes
func Register(g *echo.Group) {
	g.POST("/crm-sync", TriggerSync)
	g.GET("/sync-status", GetSyncStatus)
	g.GET("/sync-runs", ListSyncRuns)
}

// TriggerSyncRequest is the request body for starting a sync
type TriggerSyncRequest struct {
	EntityTypes []string `json:"entity_types" validate:"omitempty,dive,required"`
}

// TriggerSync runs one CRM sync and returns its structured result
func TriggerSync(c echo.Context) error {
	ctx := c.Request().Context()

	var req TriggerSyncRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "entity_types entries must be non-empty")
	}

	ctx, orchestrator, err := ectoinject.GetContext[*syncer.Orchestrator](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	result, err := orchestrator.Sync(ctx, req.EntityTypes)
	if err != nil {
		switch {
		case errors.Is(err, provider.ErrNoProvider):
			return httperror.NewHTTPError(http.StatusServiceUnavailable, "no crm provider configured")
		case errors.Is(err, syncer.ErrSyncInFlight):
			return httperror.NewHTTPError(http.StatusConflict, "a sync is already running")
		default:
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to start sync")
		}
	}

	return c.JSON(http.StatusOK, result)
}

// GetSyncStatus returns a pollable snapshot of the current sync
func GetSyncStatus(c echo.Context) error {
	ctx := c.Request().Context()

	ctx, orchestrator, err := ectoinject.GetContext[*syncer.Orchestrator](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	return c.JSON(http.StatusOK, orchestrator.Status())
}

// ListSyncRuns lists recent persisted sync runs
func ListSyncRuns(c echo.Context) error {
	ctx := c.Request().Context()

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return httperror.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = parsed
	}

	ctx, repo, err := ectoinject.GetContext[*syncrun.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	runs, err := repo.List(ctx, c.QueryParam("sync_key"), limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, runs)
}
