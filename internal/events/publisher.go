// Package events publishes alert delivery outcomes for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/timmy/jobalerts/internal/domain"
	"github.com/timmy/jobalerts/internal/logger"
)

// DeliveryEvent describes one finalized digest email.
type DeliveryEvent struct {
	ID              string                `json:"id"`
	CycleID         string                `json:"cycle_id,omitempty"`
	Region          string                `json:"region"`
	Recipient       string                `json:"recipient"`
	Status          domain.DeliveryStatus `json:"status"`
	SubscriptionIDs []uint                `json:"subscription_ids"`
	JobIDs          []uint                `json:"job_ids"`
	Error           string                `json:"error,omitempty"`
	Timestamp       time.Time             `json:"timestamp"`
}

// Publisher emits delivery events.
type Publisher interface {
	Publish(ctx context.Context, event DeliveryEvent) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, DeliveryEvent) error { return nil }
func (NopPublisher) Close() error                                  { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON, keyed by recipient so one
// subscriber's events stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

// NewKafkaPublisher creates a synchronous publisher for topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchSize:    1,
			BatchTimeout: 10 * time.Millisecond,
		},
		topic: topic,
	}
}

// Publish implements Publisher.
func (p *KafkaPublisher) Publish(ctx context.Context, event DeliveryEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.Recipient),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte("alert.delivery." + string(event.Status))},
			{Key: "region", Value: []byte(event.Region)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", event.ID, err)
	}

	logger.FromContext(ctx).WithFields(logger.Fields{
		"event_id": event.ID,
		"topic":    p.topic,
	}).Debug("Delivery event published")
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
