// Package extraction routes LLM document-extraction results into the graph.
// Extracted entities and relations enter as PENDING and stay invisible to the
// query layer until a reviewer approves them.
package extraction

import (
	"context"
	"errors"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/stem/pkg/tracing"

	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/sanitize"
	"github.com/Ramsey-B/fern/pkg/syncer"
)

// Provenance marks graph data that came from document extraction rather than
// a CRM sync.
const Provenance = "document"

type nodeWriter interface {
	ProcessNodes(ctx context.Context, entitiesByLabel map[string][]models.NodeBatch, provenance string, sink graph.ErrorSink) models.NodeResult
}

type relationshipWriter interface {
	ProcessRelationships(ctx context.Context, relations []models.RelationRequest, provenance string, sink graph.ErrorSink) models.RelationshipResult
}

type documentDeleter interface {
	DeleteByDocument(ctx context.Context, documentID string) (int, error)
}

// Processor ingests extraction messages into the graph.
type Processor struct {
	nodes         nodeWriter
	relationships relationshipWriter
	entities      documentDeleter
	logger        ectologger.Logger
	// allowedLabels, when non-empty, is the closed set of node types the
	// extraction pipeline may introduce; anything else is rejected.
	allowedLabels map[string]bool
}

func NewProcessor(nodes nodeWriter, relationships relationshipWriter, entities documentDeleter, logger ectologger.Logger, allowedLabels []string) *Processor {
	var allowed map[string]bool
	if len(allowedLabels) > 0 {
		allowed = make(map[string]bool, len(allowedLabels))
		for _, label := range allowedLabels {
			allowed[label] = true
		}
	}
	return &Processor{
		nodes:         nodes,
		relationships: relationships,
		entities:      entities,
		logger:        logger,
		allowedLabels: allowed,
	}
}

// HandleMessage is the kafka.MessageHandler for the extraction topic.
// Returning an error leaves the message uncommitted for redelivery; the
// writes are idempotent, so a retried document converges.
func (p *Processor) HandleMessage(ctx context.Context, msg *kafka.IncomingMessage) error {
	ctx, span := tracing.StartSpan(ctx, "extraction.Processor.HandleMessage")
	defer span.End()

	if msg.Delete != nil {
		_, err := p.entities.DeleteByDocument(ctx, msg.Delete.DocumentID)
		return err
	}
	if msg.Extraction == nil {
		return errors.New("message carries neither extraction nor delete payload")
	}
	return p.ingest(ctx, msg.Extraction)
}

func (p *Processor) ingest(ctx context.Context, extraction *kafka.ExtractionMessage) error {
	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"document_id": extraction.DocumentID,
		"entities":    len(extraction.Entities),
	})

	tracker := syncer.NewErrorTracker(10)
	byLabel := make(map[string][]models.NodeBatch)
	var relations []models.RelationRequest

	for _, record := range extraction.Entities {
		if record.Label == "" || record.SourceID == "" {
			tracker.TrackEntityError(record.SourceID, record.Label,
				errors.New("extracted record has no label or identifier"), "extraction ingest")
			continue
		}
		if p.allowedLabels != nil && !p.allowedLabels[record.Label] {
			log.WithFields(map[string]any{
				"source_id": record.SourceID,
				"label":     record.Label,
			}).Warn("Rejecting extracted entity with label outside allowed set")
			tracker.TrackEntityError(record.SourceID, record.Label,
				fmt.Errorf("label %q is not in the allowed set", record.Label), "extraction ingest")
			continue
		}

		props := sanitize.Properties(record.Properties)
		props["document_id"] = extraction.DocumentID
		if extraction.Filename != "" {
			props["document_filename"] = extraction.Filename
		}

		byLabel[record.Label] = append(byLabel[record.Label], models.NodeBatch{
			SourceID:   record.SourceID,
			Properties: props,
			Status:     models.ReviewStatusPending,
		})

		for _, rel := range record.Relations {
			relations = append(relations, models.RelationRequest{
				SourceID:    record.SourceID,
				TargetID:    rel.TargetID,
				Type:        rel.Type,
				TargetLabel: rel.TargetLabel,
				Direction:   rel.Direction,
				Status:      models.ReviewStatusPending,
			})
		}
	}

	nodeResult := p.nodes.ProcessNodes(ctx, byLabel, Provenance, tracker)
	relResult := p.relationships.ProcessRelationships(ctx, relations, Provenance, tracker)

	summary := tracker.GetSummary()
	log.WithFields(map[string]any{
		"nodes_created":         nodeResult.Created,
		"nodes_updated":         nodeResult.Updated,
		"relationships_created": relResult.Created,
		"failed_items":          summary.FailedItemCount,
	}).Info("Ingested extraction results")

	// Batch failures are usually transient engine errors; fail the message
	// so it is redelivered. Malformed records are permanent and only logged.
	if summary.BatchErrorCount > 0 {
		return fmt.Errorf("extraction ingest for document %s had %d failed batches", extraction.DocumentID, summary.BatchErrorCount)
	}
	return nil
}
