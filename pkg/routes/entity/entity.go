package entity

import (
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/graph"
)

// Register registers entity read routes
func Register(g *echo.Group) {
	g.GET("/:label/:id", GetEntity)
	g.GET("/:label/:id/relationships", GetEntityRelationships)
}

// GetEntity returns the visible entity with the given label and identifier
func GetEntity(c echo.Context) error {
	ctx := c.Request().Context()

	label := c.Param("label")
	id := c.Param("id")
	if label == "" || id == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "label and id are required")
	}

	ctx, entities, err := ectoinject.GetContext[*graph.EntityService](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	props, err := entities.Get(ctx, label, id)
	if err != nil {
		if errors.Is(err, graph.ErrEntityNotFound) {
			return httperror.NewHTTPError(http.StatusNotFound, "entity not found")
		}
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to fetch entity")
	}

	return c.JSON(http.StatusOK, props)
}

// GetEntityRelationships lists the approved relationships touching an entity
func GetEntityRelationships(c echo.Context) error {
	ctx := c.Request().Context()

	label := c.Param("label")
	id := c.Param("id")
	if label == "" || id == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "label and id are required")
	}

	ctx, entities, err := ectoinject.GetContext[*graph.EntityService](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	rels, err := entities.GetRelationships(ctx, label, id)
	if err != nil {
		if errors.Is(err, graph.ErrEntityNotFound) {
			return httperror.NewHTTPError(http.StatusNotFound, "entity not found")
		}
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to fetch relationships")
	}

	return c.JSON(http.StatusOK, rels)
}
