package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/stem/pkg/tracing"
	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Producer emits sync lifecycle events
type Producer struct {
	writer *kafka.Writer
	logger ectologger.Logger
	topic  string
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer: writer,
		logger: logger,
		topic:  cfg.Topic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// SyncCompletedEvent announces one finished sync run to downstream services
type SyncCompletedEvent struct {
	EventType            string    `json:"event_type"`
	SyncKey              string    `json:"sync_key"`
	Status               string    `json:"status"`
	EntitiesSynced       int       `json:"entities_synced"`
	EntitiesCreated      int       `json:"entities_created"`
	EntitiesUpdated      int       `json:"entities_updated"`
	RelationshipsCreated int       `json:"relationships_created"`
	EntityTypes          []string  `json:"entity_types"`
	Timestamp            time.Time `json:"timestamp"`
}

// PublishSyncCompleted publishes a sync.completed event
func (p *Producer) PublishSyncCompleted(ctx context.Context, syncKey string, result models.SyncResult) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishSyncCompleted")
	defer span.End()

	event := SyncCompletedEvent{
		EventType:            "sync.completed",
		SyncKey:              syncKey,
		Status:               result.Status,
		EntitiesSynced:       result.EntitiesSynced,
		EntitiesCreated:      result.EntitiesCreated,
		EntitiesUpdated:      result.EntitiesUpdated,
		RelationshipsCreated: result.RelationshipsCreated,
		EntityTypes:          result.EntityTypes,
		Timestamp:            time.Now().UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(syncKey),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "sync_key", Value: []byte(syncKey)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish sync event")
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"sync_key": syncKey,
		"status":   result.Status,
	}).Debug("Published sync completion event")

	return nil
}
