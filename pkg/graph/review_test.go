package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListPending_FiltersByDocument(t *testing.T) {
	runner := &fakeRunner{
		onRead: func(cypher string, params map[string]any) ([]map[string]any, error) {
			assert.Contains(t, cypher, "n.status = 'PENDING'")
			assert.Contains(t, cypher, "n.document_id = $document_id")
			assert.Equal(t, "doc-1", params["document_id"])
			return []map[string]any{
				{
					"source_id":   "x1",
					"labels":      []any{"SyncedEntity", "Contact"},
					"document_id": "doc-1",
					"props":       map[string]any{"name": "Jane"},
				},
			}, nil
		},
	}
	s := NewReviewService(runner, testLogger())

	items, err := s.ListPending(context.Background(), "doc-1", 50)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "x1", items[0].SourceID)
	// The catch-all label is bookkeeping, not a reviewable fact.
	assert.Equal(t, []string{"Contact"}, items[0].Labels)
}

func TestListPendingEdges_IncludesEdgesBetweenPendingNodes(t *testing.T) {
	runner := &fakeRunner{
		onRead: func(cypher string, _ map[string]any) ([]map[string]any, error) {
			assert.Contains(t, cypher, "r.status = 'PENDING'")
			// The listing must not gate on endpoint status; an edge between
			// two still-pending nodes has to stay reviewable.
			assert.NotContains(t, cypher, "a.status")
			assert.NotContains(t, cypher, "b.status")
			return []map[string]any{
				{"source_id": "p1", "target_id": "p2", "rel_type": "EMPLOYS"},
			}, nil
		},
	}
	s := NewReviewService(runner, testLogger())

	edges, err := s.ListPendingEdges(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "p1", edges[0].SourceID)
	assert.Equal(t, "p2", edges[0].TargetID)
	assert.Equal(t, "EMPLOYS", edges[0].Type)
}

func TestApproveNode_MovesPendingForward(t *testing.T) {
	runner := &fakeRunner{
		onWrite: func(cypher string, params map[string]any) ([]map[string]any, error) {
			assert.Contains(t, cypher, "WHERE n.status = 'PENDING'")
			assert.Equal(t, "APPROVED", params["status"])
			return []map[string]any{{"updated": int64(1)}}, nil
		},
	}
	s := NewReviewService(runner, testLogger())

	assert.NoError(t, s.ApproveNode(context.Background(), "x1"))
}

func TestApproveNode_AlreadyApprovedIsNotFound(t *testing.T) {
	runner := &fakeRunner{
		onWrite: func(_ string, _ map[string]any) ([]map[string]any, error) {
			return []map[string]any{{"updated": int64(0)}}, nil
		},
	}
	s := NewReviewService(runner, testLogger())

	err := s.ApproveNode(context.Background(), "x1")
	assert.ErrorIs(t, err, ErrReviewTargetNotFound)
}

func TestRejectNode_DetachDeletes(t *testing.T) {
	runner := &fakeRunner{
		onWrite: func(cypher string, _ map[string]any) ([]map[string]any, error) {
			assert.Contains(t, cypher, "DETACH DELETE n")
			assert.Contains(t, cypher, "WHERE n.status = 'PENDING'")
			return []map[string]any{{"deleted": int64(1)}}, nil
		},
	}
	s := NewReviewService(runner, testLogger())

	assert.NoError(t, s.RejectNode(context.Background(), "x1"))
}

func TestApproveEdge(t *testing.T) {
	runner := &fakeRunner{
		onWrite: func(cypher string, params map[string]any) ([]map[string]any, error) {
			assert.Contains(t, cypher, "[r:WORKS_AT]")
			assert.Contains(t, cypher, "SET r.status = 'APPROVED'")
			assert.Equal(t, "c1", params["source_id"])
			assert.Equal(t, "co1", params["target_id"])
			return []map[string]any{{"updated": int64(1)}}, nil
		},
	}
	s := NewReviewService(runner, testLogger())

	assert.NoError(t, s.ApproveEdge(context.Background(), "c1", "co1", "WORKS_AT"))
}

func TestRejectEdge_KeepsEndpoints(t *testing.T) {
	runner := &fakeRunner{
		onWrite: func(cypher string, _ map[string]any) ([]map[string]any, error) {
			assert.Contains(t, cypher, "DELETE r")
			assert.NotContains(t, cypher, "DETACH DELETE")
			return []map[string]any{{"deleted": int64(1)}}, nil
		},
	}
	s := NewReviewService(runner, testLogger())

	assert.NoError(t, s.RejectEdge(context.Background(), "c1", "co1", "WORKS_AT"))
}

func TestApproveEdge_SanitizesType(t *testing.T) {
	runner := &fakeRunner{
		onWrite: func(_ string, _ map[string]any) ([]map[string]any, error) {
			return []map[string]any{{"updated": int64(1)}}, nil
		},
	}
	s := NewReviewService(runner, testLogger())

	require.NoError(t, s.ApproveEdge(context.Background(), "c1", "co1", "WORKS]->() MATCH"))
	require.Len(t, runner.writes, 1)
	assert.Contains(t, runner.writes[0].cypher, "[r:WORKSMATCH]")
}
