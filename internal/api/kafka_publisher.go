package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"partsledger/internal/logger"
	"partsledger/internal/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaEventPublisher appends ledger events to a Kafka topic, keyed by
// invoice or item id so one entity's events stay ordered.
type KafkaEventPublisher struct {
	writer messageWriter
	topic  string
	log    *zap.Logger
}

func NewKafkaEventPublisher(brokers []string, topic string, dialer *kafka.Dialer) *KafkaEventPublisher {
	log := logger.Named("kafka")
	writer := &kafka.Writer{
		Addr:      kafka.TCP(brokers...),
		Topic:     topic,
		Balancer:  &kafka.Hash{},
		Transport: kafkaTransport(dialer),
		Async:     true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Error("❌ failed to deliver ledger events", zap.Int("count", len(messages)), zap.Error(err))
			}
		},
	}
	log.Info("✅ Kafka producer configured", zap.Strings("brokers", brokers), zap.String("topic", topic))
	return &KafkaEventPublisher{writer: writer, topic: topic, log: log}
}

// Publish implements services.EventPublisher.
func (p *KafkaEventPublisher) Publish(ctx context.Context, evt models.LedgerEvent) error {
	value, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(evt.Key()),
		Value: value,
		Time:  evt.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(evt.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s to %s: %w", evt.Type, p.topic, err)
	}
	return nil
}

func (p *KafkaEventPublisher) Close() error {
	return p.writer.Close()
}
