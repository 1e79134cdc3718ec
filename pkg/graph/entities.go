package graph

import (
	"context"
	"errors"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/stem/pkg/tracing"
)

// ErrEntityNotFound is returned when a read matches no visible node. A node
// that exists but is still pending review is reported the same way.
var ErrEntityNotFound = errors.New("entity not found")

// reviewGate hides pending machine-extracted data from consumers. CRM nodes
// never carry a status property, so the null branch keeps them visible.
const reviewGate = `(n.status = 'APPROVED' OR n.status IS NULL)`

// EntityService serves reads for synced entities and handles document-scoped
// deletion of extracted data.
type EntityService struct {
	runner Runner
	logger ectologger.Logger
}

func NewEntityService(runner Runner, logger ectologger.Logger) *EntityService {
	return &EntityService{runner: runner, logger: logger}
}

// Get returns the property map of the visible node with the given label and
// identifier.
func (s *EntityService) Get(ctx context.Context, label, sourceID string) (map[string]any, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.EntityService.Get")
	defer span.End()

	rows, err := s.runner.Read(ctx, `
		MATCH (n:`+sanitizeLabel(label)+` {`+idProperty+`: $source_id})
		WHERE `+reviewGate+`
		RETURN properties(n) AS props`,
		map[string]any{"source_id": sourceID},
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrEntityNotFound
	}

	props, ok := rows[0]["props"].(map[string]any)
	if !ok {
		return nil, ErrEntityNotFound
	}
	return props, nil
}

// EntityRelationship is one edge adjacent to a queried entity, with the
// neighbour's visible properties inlined.
type EntityRelationship struct {
	Type      string         `json:"type"`
	Direction string         `json:"direction"`
	Neighbour map[string]any `json:"neighbour"`
}

// GetRelationships lists the approved edges touching the visible node with
// the given label and identifier. Both the edge and the neighbouring node
// must pass the review gate.
func (s *EntityService) GetRelationships(ctx context.Context, label, sourceID string) ([]EntityRelationship, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.EntityService.GetRelationships")
	defer span.End()

	exists, err := s.runner.Read(ctx, `
		MATCH (n:`+sanitizeLabel(label)+` {`+idProperty+`: $source_id})
		WHERE `+reviewGate+`
		RETURN count(n) AS found`,
		map[string]any{"source_id": sourceID},
	)
	if err != nil {
		return nil, err
	}
	if len(exists) == 0 || asInt(exists[0]["found"]) == 0 {
		return nil, ErrEntityNotFound
	}

	rows, err := s.runner.Read(ctx, `
		MATCH (n:`+sanitizeLabel(label)+` {`+idProperty+`: $source_id})-[r]-(m)
		WHERE `+reviewGate+`
		  AND (r.status = 'APPROVED' OR r.status IS NULL)
		  AND (m.status = 'APPROVED' OR m.status IS NULL)
		RETURN type(r) AS rel_type,
		       CASE WHEN startNode(r) = n THEN 'OUTGOING' ELSE 'INCOMING' END AS direction,
		       properties(m) AS neighbour`,
		map[string]any{"source_id": sourceID},
	)
	if err != nil {
		return nil, err
	}

	out := make([]EntityRelationship, 0, len(rows))
	for _, row := range rows {
		rel := EntityRelationship{}
		rel.Type, _ = row["rel_type"].(string)
		rel.Direction, _ = row["direction"].(string)
		rel.Neighbour, _ = row["neighbour"].(map[string]any)
		out = append(out, rel)
	}
	return out, nil
}

// DeleteByDocument removes every node extracted from the given document,
// along with any edges touching those nodes. CRM-synced nodes carry no
// document identifier and are never affected.
func (s *EntityService) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.EntityService.DeleteByDocument")
	defer span.End()

	rows, err := s.runner.Write(ctx, `
		MATCH (n:`+CatchAllLabel+` {document_id: $document_id})
		DETACH DELETE n
		RETURN count(n) AS deleted`,
		map[string]any{"document_id": documentID},
	)
	if err != nil {
		return 0, err
	}

	deleted := 0
	if len(rows) > 0 {
		deleted = asInt(rows[0]["deleted"])
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"document_id": documentID,
		"deleted":     deleted,
	}).Info("Deleted extracted entities for document")

	return deleted, nil
}
