package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/metrics"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing/domain"
)

// PriceChangedType is the event type of a published price change
const PriceChangedType = "pricing.price_changed"

// Event represents a domain event envelope
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Aggregate string          `json:"aggregate"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
	Version   int             `json:"version"`
}

// NewPriceChangedEvent wraps a price change in an event envelope
func NewPriceChangedEvent(change domain.PriceChange) (*Event, error) {
	data, err := json.Marshal(change)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal price change: %w", err)
	}
	ts := change.Snapshot.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return &Event{
		ID:        uuid.NewString(),
		Type:      PriceChangedType,
		Aggregate: change.ItemID,
		Data:      data,
		Timestamp: ts.Unix(),
		Version:   1,
	}, nil
}

// PriceChangePublisher delivers price changes to a downstream sink
type PriceChangePublisher interface {
	PublishPriceChanged(ctx context.Context, change domain.PriceChange) error
	Close() error
}

// NoopPublisher is a no-operation publisher for testing and development
type NoopPublisher struct{}

func (NoopPublisher) PublishPriceChanged(ctx context.Context, change domain.PriceChange) error {
	return nil
}

func (NoopPublisher) Close() error { return nil }

// KafkaConfig holds the producer settings
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
}

// KafkaPublisher publishes price changes to a Kafka topic, keyed by item id
// so every change of one item lands on the same partition.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

// NewKafkaPublisher dials the brokers and creates a synchronous producer
func NewKafkaPublisher(cfg KafkaConfig, logger *zap.Logger) (*KafkaPublisher, error) {
	sc := sarama.NewConfig()
	if cfg.ClientID != "" {
		sc.ClientID = cfg.ClientID
	}
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 3
	sc.Producer.Return.Successes = true
	sc.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return NewKafkaPublisherWithProducer(producer, cfg.Topic, logger), nil
}

// NewKafkaPublisherWithProducer wraps an existing producer
func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topic string, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic, logger: logger}
}

func (p *KafkaPublisher) PublishPriceChanged(ctx context.Context, change domain.PriceChange) error {
	event, err := NewPriceChangedEvent(change)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(change.ItemID),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
		},
	})
	metrics.RecordEventPublished("kafka", err)
	if err != nil {
		return fmt.Errorf("failed to publish price change for %s: %w", change.ItemID, err)
	}

	p.logger.Debug("Published price change",
		zap.String("topic", p.topic),
		zap.String("item_id", change.ItemID),
		zap.String("event_id", event.ID),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))
	return nil
}

// Close closes the producer
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
