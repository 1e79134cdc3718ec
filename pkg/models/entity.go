package models

// ReviewStatus gates machine-extracted data behind human review.
// CRM-sourced entities carry no status at all and are always visible.
type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "PENDING"
	ReviewStatusApproved ReviewStatus = "APPROVED"
)

// Direction indicates which end of a relation is the semantic source of the
// business relationship, independent of which record supplied it.
type Direction string

const (
	DirectionOutgoing Direction = "OUTGOING"
	DirectionIncoming Direction = "INCOMING"
)

// IsValid reports whether d is one of the two supported directions.
func (d Direction) IsValid() bool {
	return d == DirectionOutgoing || d == DirectionIncoming
}

// EntityRecord is the skeleton record a provider emits for graph import:
// the minimal normalized shape (id, label, properties, relations) independent
// of any vendor-specific API format.
type EntityRecord struct {
	SourceID   string           `json:"source_id"`
	Label      string           `json:"label"`
	Properties map[string]any   `json:"properties"`
	Relations  []EntityRelation `json:"relations,omitempty"`
}

// EntityRelation is a relation embedded in a skeleton record. The owning
// record's source_id is the relation's source.
type EntityRelation struct {
	TargetID    string    `json:"target_id"`
	Type        string    `json:"edge_type"`
	TargetLabel string    `json:"target_label"`
	Direction   Direction `json:"direction"`
}

// RelationRequest is a fully-resolved relationship write request: both
// endpoints referenced by source identifier.
type RelationRequest struct {
	SourceID    string    `json:"source_id"`
	TargetID    string    `json:"target_id"`
	Type        string    `json:"edge_type"`
	TargetLabel string    `json:"target_label"`
	Direction   Direction `json:"direction"`
	// Status is set for machine-extracted relations awaiting review; CRM
	// relations leave it empty and carry no status property at all.
	Status ReviewStatus `json:"status,omitempty"`
}

// NodeBatch is one entity prepared for a bulk node write.
type NodeBatch struct {
	SourceID   string         `json:"source_id"`
	Properties map[string]any `json:"properties"`
	Status     ReviewStatus   `json:"status,omitempty"`
}
