package graph

import (
	"context"
	"sort"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/stem/pkg/tracing"

	"github.com/Ramsey-B/fern/pkg/models"
)

// ErrorSink receives entity-level and batch-level failures without aborting
// the operation that produced them. The sync error tracker implements it.
type ErrorSink interface {
	TrackEntityError(entityID, label string, err error, context string)
	TrackBatchError(batchType string, batchSize int, err error, context string)
}

// NodeProcessor upserts nodes grouped by label using set-based writes.
type NodeProcessor struct {
	runner Runner
	logger ectologger.Logger
}

// NewNodeProcessor creates a new node batch processor
func NewNodeProcessor(runner Runner, logger ectologger.Logger) *NodeProcessor {
	return &NodeProcessor{
		runner: runner,
		logger: logger,
	}
}

// ProcessNodes writes one set-based upsert per label group: match-or-create
// by (label, identifier), merge in the property bag, refresh synced_at, and
// set created_at only on first creation. Created-vs-updated is derived from
// created_at = synced_at inside the write statement itself. A failed label
// batch is counted against failed with the batch's full size and does not
// abort the remaining labels.
func (p *NodeProcessor) ProcessNodes(ctx context.Context, entitiesByLabel map[string][]models.NodeBatch, provenance string, sink ErrorSink) models.NodeResult {
	ctx, span := tracing.StartSpan(ctx, "graph.NodeProcessor.ProcessNodes")
	defer span.End()

	result := models.NodeResult{LabelsProcessed: make([]string, 0, len(entitiesByLabel))}

	// Deterministic label order keeps logs and retries comparable.
	labels := make([]string, 0, len(entitiesByLabel))
	for label := range entitiesByLabel {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	for _, label := range labels {
		batch := entitiesByLabel[label]
		if len(batch) == 0 {
			continue
		}

		created, updated, err := p.writeLabelBatch(ctx, label, batch, provenance)
		if err != nil {
			p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"label":      label,
				"batch_size": len(batch),
			}).Error("Failed to write node batch")
			result.Failed += len(batch)
			if sink != nil {
				sink.TrackBatchError("nodes:"+label, len(batch), err, "node batch write")
			}
			continue
		}

		result.Created += created
		result.Updated += updated
		result.LabelsProcessed = append(result.LabelsProcessed, label)

		p.logger.WithContext(ctx).WithFields(map[string]any{
			"label":   label,
			"created": created,
			"updated": updated,
		}).Debug("Wrote node batch")
	}

	return result
}

func (p *NodeProcessor) writeLabelBatch(ctx context.Context, label string, batch []models.NodeBatch, provenance string) (created, updated int, err error) {
	safeLabel := sanitizeLabel(label)

	rows := make([]map[string]any, len(batch))
	for i, entity := range batch {
		rows[i] = map[string]any{
			"source_id": entity.SourceID,
			"props":     entity.Properties,
			"status":    string(entity.Status),
		}
	}

	now := time.Now().UTC().Format(watermarkLayout)

	cypher := `
		UNWIND $batch AS row
		MERGE (n:` + safeLabel + ` {` + idProperty + `: row.source_id})
		ON CREATE SET n.created_at = $now,
		              n.status = CASE WHEN row.status = '' THEN NULL ELSE row.status END
		SET n += row.props,
		    n.source = $source,
		    n.synced_at = $now,
		    n.updated_at = $now`

	// The owner label keeps its own lookup pattern; everything else gets the
	// catch-all tag for label-agnostic identifier joins.
	if safeLabel != OwnerLabel {
		cypher += `
		SET n:` + CatchAllLabel
	}

	cypher += `
		RETURN sum(CASE WHEN n.created_at = n.synced_at THEN 1 ELSE 0 END) AS created,
		       sum(CASE WHEN n.created_at = n.synced_at THEN 0 ELSE 1 END) AS updated`

	rowsOut, err := p.runner.Write(ctx, cypher, map[string]any{
		"batch":  rows,
		"now":    now,
		"source": provenance,
	})
	if err != nil {
		return 0, 0, err
	}

	if len(rowsOut) > 0 {
		created = asInt(rowsOut[0]["created"])
		updated = asInt(rowsOut[0]["updated"])
	}
	return created, updated, nil
}

// asInt normalizes count values from the driver (int64) and from substitute
// backends (int, float64).
func asInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}
