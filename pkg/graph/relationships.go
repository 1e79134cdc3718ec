package graph

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/stem/pkg/tracing"

	"github.com/Ramsey-B/fern/pkg/models"
)

// RelationshipProcessor creates edges between pre-existing nodes. Both
// endpoints are looked up with MATCH, never MERGE, so relationship processing
// can never manufacture orphan stub nodes.
type RelationshipProcessor struct {
	runner    Runner
	logger    ectologger.Logger
	chunkSize int
	chunkWait time.Duration
}

// NewRelationshipProcessor creates a new relationship processor. chunkSize
// bounds the rows per write statement; chunkWait is the pause between chunks
// of the same group, giving the storage engine room to collect garbage under
// heavy edge-creation load.
func NewRelationshipProcessor(runner Runner, logger ectologger.Logger, chunkSize int, chunkWait time.Duration) *RelationshipProcessor {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	return &RelationshipProcessor{
		runner:    runner,
		logger:    logger,
		chunkSize: chunkSize,
		chunkWait: chunkWait,
	}
}

var errMalformedRelation = errors.New("relation request is missing required fields")

// relGroup keys relations that can be written with one templated statement.
type relGroup struct {
	relType     string
	targetLabel string
	direction   models.Direction
}

// ProcessRelationships groups relations by (type, target label, direction),
// chunks each group, and writes each chunk with a match-both-endpoints-then-
// connect statement. Rows whose endpoints are missing contribute nothing at
// the engine level; they are reported as skipped (submitted minus created).
// A failure in one group's processing fails that group's remaining relations
// and processing continues with the next group.
func (p *RelationshipProcessor) ProcessRelationships(ctx context.Context, relations []models.RelationRequest, provenance string, sink ErrorSink) models.RelationshipResult {
	ctx, span := tracing.StartSpan(ctx, "graph.RelationshipProcessor.ProcessRelationships")
	defer span.End()

	result := models.RelationshipResult{RelationshipTypes: []string{}}
	if len(relations) == 0 {
		return result
	}

	groups := make(map[relGroup][]models.RelationRequest)
	for _, rel := range relations {
		if rel.SourceID == "" || rel.TargetID == "" || rel.Type == "" || rel.TargetLabel == "" || !rel.Direction.IsValid() {
			p.logger.WithContext(ctx).WithFields(map[string]any{
				"source_id": rel.SourceID,
				"target_id": rel.TargetID,
				"edge_type": rel.Type,
			}).Warn("Skipping malformed relation request")
			result.Failed++
			if sink != nil {
				sink.TrackEntityError(rel.SourceID, rel.TargetLabel, errMalformedRelation, "relation request validation")
			}
			continue
		}

		key := relGroup{
			relType:     sanitizeLabel(rel.Type),
			targetLabel: sanitizeLabel(rel.TargetLabel),
			direction:   rel.Direction,
		}
		groups[key] = append(groups[key], rel)
	}

	// Deterministic group order.
	keys := make([]relGroup, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.relType != b.relType {
			return a.relType < b.relType
		}
		if a.targetLabel != b.targetLabel {
			return a.targetLabel < b.targetLabel
		}
		return a.direction < b.direction
	})

	seenTypes := make(map[string]bool)
	for _, key := range keys {
		group := groups[key]
		created, skipped, failed := p.processGroup(ctx, key, group, provenance, sink)
		result.Created += created
		result.Skipped += skipped
		result.Failed += failed

		if failed < len(group) && !seenTypes[key.relType] {
			seenTypes[key.relType] = true
			result.RelationshipTypes = append(result.RelationshipTypes, key.relType)
		}
	}

	return result
}

func (p *RelationshipProcessor) processGroup(ctx context.Context, key relGroup, group []models.RelationRequest, provenance string, sink ErrorSink) (created, skipped, failed int) {
	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"relationship_type": key.relType,
		"target_label":      key.targetLabel,
		"direction":         string(key.direction),
		"group_size":        len(group),
	})

	cypher := p.buildGroupCypher(key)

	for offset := 0; offset < len(group); offset += p.chunkSize {
		end := offset + p.chunkSize
		if end > len(group) {
			end = len(group)
		}
		chunk := group[offset:end]

		if offset > 0 && p.chunkWait > 0 {
			select {
			case <-ctx.Done():
				failed += len(group) - offset
				return created, skipped, failed
			case <-time.After(p.chunkWait):
			}
		}

		connected, err := p.writeChunk(ctx, cypher, chunk, provenance)
		if err != nil {
			log.WithError(err).WithFields(map[string]any{
				"chunk_size": len(chunk),
			}).Error("Failed to write relationship chunk - abandoning group")
			// The chunk and everything after it in this group is failed.
			failed += len(group) - offset
			if sink != nil {
				sink.TrackBatchError("relationships:"+key.relType, len(group)-offset, err, "relationship chunk write")
			}
			return created, skipped, failed
		}

		created += connected
		skipped += len(chunk) - connected
	}

	log.WithFields(map[string]any{
		"created": created,
		"skipped": skipped,
	}).Debug("Processed relationship group")

	return created, skipped, failed
}

// buildGroupCypher templates the write statement for one group shape. Both
// endpoint patterns name a label whose identifier is indexed: the catch-all
// for synced entities, or the owner label, which carries its own index. The
// target keeps its specific label in the pattern so a mistyped target_id can
// never attach an edge to an entity of the wrong kind. Direction decides
// which endpoint is the tail of the edge, independent of which field
// supplied source_id vs target_id.
func (p *RelationshipProcessor) buildGroupCypher(key relGroup) string {
	var pattern string
	switch key.direction {
	case models.DirectionIncoming:
		pattern = `MERGE (target)-[r:` + key.relType + `]->(source)`
	default: // OUTGOING
		pattern = `MERGE (source)-[r:` + key.relType + `]->(target)`
	}

	targetLabels := CatchAllLabel + `:` + key.targetLabel
	if key.targetLabel == OwnerLabel {
		targetLabels = OwnerLabel
	}

	return `
		UNWIND $batch AS row
		MATCH (source:` + CatchAllLabel + ` {` + idProperty + `: row.source_id})
		MATCH (target:` + targetLabels + ` {` + idProperty + `: row.target_id})
		` + pattern + `
		ON CREATE SET r.created_at = $now,
		              r.status = CASE WHEN row.status = '' THEN NULL ELSE row.status END
		SET r.synced_at = $now,
		    r.source = $source
		RETURN count(r) AS created`
}

func (p *RelationshipProcessor) writeChunk(ctx context.Context, cypher string, chunk []models.RelationRequest, provenance string) (int, error) {
	rows := make([]map[string]any, len(chunk))
	for i, rel := range chunk {
		rows[i] = map[string]any{
			"source_id": rel.SourceID,
			"target_id": rel.TargetID,
			"status":    string(rel.Status),
		}
	}

	out, err := p.runner.Write(ctx, cypher, map[string]any{
		"batch":  rows,
		"now":    time.Now().UTC().Format(watermarkLayout),
		"source": provenance,
	})
	if err != nil {
		return 0, err
	}

	if len(out) > 0 {
		return asInt(out[0]["created"]), nil
	}
	return 0, nil
}
