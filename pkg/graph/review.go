package graph

import (
	"context"
	"errors"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/stem/pkg/tracing"

	"github.com/Ramsey-B/fern/pkg/models"
)

// ErrReviewTargetNotFound is returned when an approve or reject names a
// pending node or edge that does not exist. Already-approved items count as
// not found so the state machine only ever moves PENDING forward.
var ErrReviewTargetNotFound = errors.New("no pending item matches the review request")

// PendingItem is one machine-extracted node awaiting human review.
type PendingItem struct {
	SourceID   string         `json:"source_id"`
	Labels     []string       `json:"labels"`
	DocumentID string         `json:"document_id,omitempty"`
	Properties map[string]any `json:"properties"`
}

// PendingEdge is one machine-extracted relationship awaiting human review.
type PendingEdge struct {
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
	Type     string `json:"type"`
}

// ReviewService implements the review state machine for extracted data.
// Items enter as PENDING, an approve moves them to APPROVED, and a reject
// removes them from the graph entirely. CRM-synced data never enters review.
type ReviewService struct {
	runner Runner
	logger ectologger.Logger
}

func NewReviewService(runner Runner, logger ectologger.Logger) *ReviewService {
	return &ReviewService{runner: runner, logger: logger}
}

// ListPending returns pending nodes, optionally filtered by document.
func (s *ReviewService) ListPending(ctx context.Context, documentID string, limit int) ([]PendingItem, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.ReviewService.ListPending")
	defer span.End()

	if limit <= 0 {
		limit = 100
	}

	filter := ""
	params := map[string]any{"limit": limit}
	if documentID != "" {
		filter = ` AND n.document_id = $document_id`
		params["document_id"] = documentID
	}

	rows, err := s.runner.Read(ctx, `
		MATCH (n:`+CatchAllLabel+`)
		WHERE n.status = 'PENDING'`+filter+`
		RETURN n.`+idProperty+` AS source_id, labels(n) AS labels,
		       n.document_id AS document_id, properties(n) AS props
		ORDER BY n.created_at
		LIMIT $limit`,
		params,
	)
	if err != nil {
		return nil, err
	}

	items := make([]PendingItem, 0, len(rows))
	for _, row := range rows {
		item := PendingItem{}
		item.SourceID, _ = row["source_id"].(string)
		item.DocumentID, _ = row["document_id"].(string)
		item.Properties, _ = row["props"].(map[string]any)
		if raw, ok := row["labels"].([]any); ok {
			for _, l := range raw {
				if label, ok := l.(string); ok && label != CatchAllLabel {
					item.Labels = append(item.Labels, label)
				}
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// ListPendingEdges returns pending relationships regardless of endpoint
// status, so an edge between two still-pending nodes stays reviewable.
// Approving such an edge makes it queryable only once its endpoints are
// approved too; the read-side gate checks nodes and edge independently.
func (s *ReviewService) ListPendingEdges(ctx context.Context, limit int) ([]PendingEdge, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.ReviewService.ListPendingEdges")
	defer span.End()

	if limit <= 0 {
		limit = 100
	}

	rows, err := s.runner.Read(ctx, `
		MATCH (a)-[r]->(b)
		WHERE r.status = 'PENDING'
		RETURN a.`+idProperty+` AS source_id, b.`+idProperty+` AS target_id, type(r) AS rel_type
		LIMIT $limit`,
		map[string]any{"limit": limit},
	)
	if err != nil {
		return nil, err
	}

	edges := make([]PendingEdge, 0, len(rows))
	for _, row := range rows {
		edge := PendingEdge{}
		edge.SourceID, _ = row["source_id"].(string)
		edge.TargetID, _ = row["target_id"].(string)
		edge.Type, _ = row["rel_type"].(string)
		edges = append(edges, edge)
	}
	return edges, nil
}

// ApproveNode flips a pending node to APPROVED.
func (s *ReviewService) ApproveNode(ctx context.Context, sourceID string) error {
	ctx, span := tracing.StartSpan(ctx, "graph.ReviewService.ApproveNode")
	defer span.End()

	return s.updateNodeStatus(ctx, sourceID, models.ReviewStatusApproved)
}

// RejectNode removes a pending node and every edge attached to it.
func (s *ReviewService) RejectNode(ctx context.Context, sourceID string) error {
	ctx, span := tracing.StartSpan(ctx, "graph.ReviewService.RejectNode")
	defer span.End()

	rows, err := s.runner.Write(ctx, `
		MATCH (n:`+CatchAllLabel+` {`+idProperty+`: $source_id})
		WHERE n.status = 'PENDING'
		DETACH DELETE n
		RETURN count(n) AS deleted`,
		map[string]any{"source_id": sourceID},
	)
	if err != nil {
		return err
	}
	if len(rows) == 0 || asInt(rows[0]["deleted"]) == 0 {
		return ErrReviewTargetNotFound
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"source_id": sourceID,
	}).Info("Rejected pending entity")
	return nil
}

// ApproveEdge flips a pending relationship to APPROVED.
func (s *ReviewService) ApproveEdge(ctx context.Context, sourceID, targetID, relType string) error {
	ctx, span := tracing.StartSpan(ctx, "graph.ReviewService.ApproveEdge")
	defer span.End()

	rows, err := s.runner.Write(ctx, `
		MATCH (a {`+idProperty+`: $source_id})-[r:`+sanitizeLabel(relType)+`]->(b {`+idProperty+`: $target_id})
		WHERE r.status = 'PENDING'
		SET r.status = 'APPROVED'
		RETURN count(r) AS updated`,
		map[string]any{"source_id": sourceID, "target_id": targetID},
	)
	if err != nil {
		return err
	}
	if len(rows) == 0 || asInt(rows[0]["updated"]) == 0 {
		return ErrReviewTargetNotFound
	}
	return nil
}

// RejectEdge deletes a pending relationship. The endpoints are untouched.
func (s *ReviewService) RejectEdge(ctx context.Context, sourceID, targetID, relType string) error {
	ctx, span := tracing.StartSpan(ctx, "graph.ReviewService.RejectEdge")
	defer span.End()

	rows, err := s.runner.Write(ctx, `
		MATCH (a {`+idProperty+`: $source_id})-[r:`+sanitizeLabel(relType)+`]->(b {`+idProperty+`: $target_id})
		WHERE r.status = 'PENDING'
		DELETE r
		RETURN count(r) AS deleted`,
		map[string]any{"source_id": sourceID, "target_id": targetID},
	)
	if err != nil {
		return err
	}
	if len(rows) == 0 || asInt(rows[0]["deleted"]) == 0 {
		return ErrReviewTargetNotFound
	}
	return nil
}

func (s *ReviewService) updateNodeStatus(ctx context.Context, sourceID string, status models.ReviewStatus) error {
	rows, err := s.runner.Write(ctx, `
		MATCH (n:`+CatchAllLabel+` {`+idProperty+`: $source_id})
		WHERE n.status = 'PENDING'
		SET n.status = $status
		RETURN count(n) AS updated`,
		map[string]any{"source_id": sourceID, "status": string(status)},
	)
	if err != nil {
		return err
	}
	if len(rows) == 0 || asInt(rows[0]["updated"]) == 0 {
		return ErrReviewTargetNotFound
	}
	return nil
}
