package review

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/graph"
)

// Register registers review routes
func Register(g *echo.Group) {
	g.GET("/pending", ListPending)
	g.GET("/pending-edges", ListPendingEdges)
	g.POST("/approve", Approve)
	g.POST("/reject", Reject)
}

// ListPending lists extracted entities awaiting review
func ListPending(c echo.Context) error {
	ctx := c.Request().Context()

	limit, err := parseLimit(c)
	if err != nil {
		return err
	}

	ctx, reviews, err := ectoinject.GetContext[*graph.ReviewService](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	items, err := reviews.ListPending(ctx, c.QueryParam("document_id"), limit)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to list pending entities")
	}

	return c.JSON(http.StatusOK, items)
}

// ListPendingEdges lists extracted relationships awaiting review
func ListPendingEdges(c echo.Context) error {
	ctx := c.Request().Context()

	limit, err := parseLimit(c)
	if err != nil {
		return err
	}

	ctx, reviews, err := ectoinject.GetContext[*graph.ReviewService](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	edges, err := reviews.ListPendingEdges(ctx, limit)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to list pending relationships")
	}

	return c.JSON(http.StatusOK, edges)
}

// ReviewRequest targets one pending node, or one pending edge when target_id
// and edge_type are both set
type ReviewRequest struct {
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id,omitempty"`
	EdgeType string `json:"edge_type,omitempty"`
}

func (r *ReviewRequest) isEdge() bool {
	return r.TargetID != "" || r.EdgeType != ""
}

func (r *ReviewRequest) validate() error {
	if r.SourceID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "source_id is required")
	}
	if r.isEdge() && (r.TargetID == "" || r.EdgeType == "") {
		return httperror.NewHTTPError(http.StatusBadRequest, "edge review requires both target_id and edge_type")
	}
	return nil
}

// Approve marks a pending entity or relationship as approved
func Approve(c echo.Context) error {
	ctx := c.Request().Context()

	var req ReviewRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := req.validate(); err != nil {
		return err
	}

	ctx, reviews, err := ectoinject.GetContext[*graph.ReviewService](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	if req.isEdge() {
		err = reviews.ApproveEdge(ctx, req.SourceID, req.TargetID, req.EdgeType)
	} else {
		err = reviews.ApproveNode(ctx, req.SourceID)
	}
	return reviewOutcome(c, err, "approved")
}

// Reject removes a pending entity or relationship from the graph
func Reject(c echo.Context) error {
	ctx := c.Request().Context()

	var req ReviewRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := req.validate(); err != nil {
		return err
	}

	ctx, reviews, err := ectoinject.GetContext[*graph.ReviewService](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	if req.isEdge() {
		err = reviews.RejectEdge(ctx, req.SourceID, req.TargetID, req.EdgeType)
	} else {
		err = reviews.RejectNode(ctx, req.SourceID)
	}
	return reviewOutcome(c, err, "rejected")
}

func reviewOutcome(c echo.Context, err error, action string) error {
	if err != nil {
		if errors.Is(err, graph.ErrReviewTargetNotFound) {
			return httperror.NewHTTPError(http.StatusNotFound, "no pending item matches the request")
		}
		return httperror.NewHTTPError(http.StatusInternalServerError, "review update failed")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": action})
}

func parseLimit(c echo.Context) (int, error) {
	raw := c.QueryParam("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, httperror.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
	}
	return limit, nil
}
