package graph

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

func TestProcessNodes_CountsCreatedAndUpdated(t *testing.T) {
	runner := &fakeRunner{
		onWrite: func(_ string, _ map[string]any) ([]map[string]any, error) {
			return []map[string]any{{"created": int64(3), "updated": int64(2)}}, nil
		},
	}
	p := NewNodeProcessor(runner, testLogger())

	batches := map[string][]models.NodeBatch{
		"Contact": {
			{SourceID: "c1", Properties: map[string]any{"email": "a@b.com"}},
			{SourceID: "c2", Properties: map[string]any{"email": "c@d.com"}},
			{SourceID: "c3", Properties: map[string]any{}},
			{SourceID: "c4", Properties: map[string]any{}},
			{SourceID: "c5", Properties: map[string]any{}},
		},
	}

	result := p.ProcessNodes(context.Background(), batches, "hubspot", nil)

	assert.Equal(t, 3, result.Created)
	assert.Equal(t, 2, result.Updated)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, []string{"Contact"}, result.LabelsProcessed)
	require.Len(t, runner.writes, 1)
}

func TestProcessNodes_AppliesCatchAllLabelExceptForUsers(t *testing.T) {
	runner := &fakeRunner{
		onWrite: func(_ string, _ map[string]any) ([]map[string]any, error) {
			return []map[string]any{{"created": int64(1), "updated": int64(0)}}, nil
		},
	}
	p := NewNodeProcessor(runner, testLogger())

	batches := map[string][]models.NodeBatch{
		"Contact":  {{SourceID: "c1", Properties: map[string]any{}}},
		OwnerLabel: {{SourceID: "u1", Properties: map[string]any{}}},
	}

	p.ProcessNodes(context.Background(), batches, "hubspot", nil)

	require.Len(t, runner.writes, 2)
	// Labels are processed in sorted order: Contact before User.
	assert.Contains(t, runner.writes[0].cypher, "SET n:"+CatchAllLabel)
	assert.NotContains(t, runner.writes[1].cypher, "SET n:"+CatchAllLabel)
	assert.Contains(t, runner.writes[1].cypher, "MERGE (n:"+OwnerLabel)
}

func TestProcessNodes_LabelFailureIsolated(t *testing.T) {
	runner := &fakeRunner{
		onWrite: func(cypher string, _ map[string]any) ([]map[string]any, error) {
			if strings.Contains(cypher, "MERGE (n:Company") {
				return nil, errors.New("deadlock detected")
			}
			return []map[string]any{{"created": int64(2), "updated": int64(0)}}, nil
		},
	}
	p := NewNodeProcessor(runner, testLogger())
	sink := &fakeSink{}

	batches := map[string][]models.NodeBatch{
		"Company": {
			{SourceID: "co1", Properties: map[string]any{}},
			{SourceID: "co2", Properties: map[string]any{}},
			{SourceID: "co3", Properties: map[string]any{}},
		},
		"Contact": {
			{SourceID: "c1", Properties: map[string]any{}},
			{SourceID: "c2", Properties: map[string]any{}},
		},
	}

	result := p.ProcessNodes(context.Background(), batches, "hubspot", sink)

	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 3, result.Failed)
	assert.Equal(t, []string{"Contact"}, result.LabelsProcessed)
	assert.Equal(t, []string{"nodes:Company"}, sink.batchErrors)
}

func TestProcessNodes_StatusOnlySetOnCreate(t *testing.T) {
	runner := &fakeRunner{
		onWrite: func(_ string, _ map[string]any) ([]map[string]any, error) {
			return []map[string]any{{"created": int64(1), "updated": int64(0)}}, nil
		},
	}
	p := NewNodeProcessor(runner, testLogger())

	batches := map[string][]models.NodeBatch{
		"Contact": {{SourceID: "c1", Properties: map[string]any{}, Status: models.ReviewStatusPending}},
	}
	p.ProcessNodes(context.Background(), batches, "extraction", nil)

	require.Len(t, runner.writes, 1)
	cypher := runner.writes[0].cypher

	// The status clause lives in ON CREATE so a re-sync never resets an
	// approved node back to pending.
	onCreate := cypher[strings.Index(cypher, "ON CREATE"):strings.Index(cypher, "SET n +=")]
	assert.Contains(t, onCreate, "n.status")

	rows, ok := runner.writes[0].params["batch"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, rows, 1)
	assert.Equal(t, "PENDING", rows[0]["status"])
}

func TestProcessNodes_SanitizesLabels(t *testing.T) {
	runner := &fakeRunner{
		onWrite: func(_ string, _ map[string]any) ([]map[string]any, error) {
			return []map[string]any{{"created": int64(1), "updated": int64(0)}}, nil
		},
	}
	p := NewNodeProcessor(runner, testLogger())

	batches := map[string][]models.NodeBatch{
		"Contact) DETACH DELETE (n": {{SourceID: "c1", Properties: map[string]any{}}},
	}
	p.ProcessNodes(context.Background(), batches, "hubspot", nil)

	require.Len(t, runner.writes, 1)
	assert.Contains(t, runner.writes[0].cypher, "MERGE (n:ContactDETACHDELETEn")
	assert.NotContains(t, runner.writes[0].cypher, "DETACH DELETE (")
}

func TestProcessNodes_EmptyInput(t *testing.T) {
	runner := &fakeRunner{}
	p := NewNodeProcessor(runner, testLogger())

	result := p.ProcessNodes(context.Background(), map[string][]models.NodeBatch{}, "hubspot", nil)

	assert.Zero(t, result.Created)
	assert.Zero(t, result.Updated)
	assert.Zero(t, result.Failed)
	assert.Empty(t, runner.writes)
}
