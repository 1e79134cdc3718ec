package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
)

// IncomingMessage wraps a raw Kafka message with parsed metadata
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	Extraction *ExtractionMessage
	Delete     *DeleteMessage
}

// ExtractionMessage is the payload the document-extraction pipeline emits:
// skeleton records pulled out of one document by the LLM, awaiting review.
type ExtractionMessage struct {
	DocumentID string                `json:"document_id"`
	Filename   string                `json:"filename,omitempty"`
	Entities   []models.EntityRecord `json:"entities"`
}

// DeleteMessage requests cleanup of everything extracted from one document.
type DeleteMessage struct {
	Action     string `json:"action"`
	DocumentID string `json:"document_id"`
}

// IsDeleteMessage checks the message headers for the delete action marker
func (m *IncomingMessage) IsDeleteMessage() bool {
	return m.Headers["action"] == "delete" || m.Headers["message_type"] == "document.deleted"
}

// ParseExtractionMessage parses the message value as an extraction payload
func (m *IncomingMessage) ParseExtractionMessage() error {
	var extraction ExtractionMessage
	if err := json.Unmarshal(m.Value, &extraction); err != nil {
		return fmt.Errorf("failed to parse extraction message: %w", err)
	}
	if extraction.DocumentID == "" {
		return fmt.Errorf("extraction message has no document_id")
	}
	m.Extraction = &extraction
	return nil
}

// ParseDeleteMessage parses the message value as a delete request
func (m *IncomingMessage) ParseDeleteMessage() (*DeleteMessage, error) {
	var del DeleteMessage
	if err := json.Unmarshal(m.Value, &del); err != nil {
		return nil, fmt.Errorf("failed to parse delete message: %w", err)
	}
	if del.DocumentID == "" {
		return nil, fmt.Errorf("delete message has no document_id")
	}
	return &del, nil
}
