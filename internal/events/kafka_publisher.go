package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaPublisher writes booking events to a single topic keyed by booking id,
// so every event of one booking lands on the same partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		WriteTimeout:           5 * time.Second,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return newKafkaPublisher(w, topic, logger)
}

func newKafkaPublisher(w messageWriter, topic string, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaPublisher{
		writer: w,
		topic:  topic,
		logger: logger.With(zap.String("component", "events.kafka"), zap.String("topic", topic)),
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, evt BookingEvent) error {
	value, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", evt.Type, err)
	}

	msg := kafkago.Message{
		Key:   []byte(evt.BookingID.String()),
		Value: value,
		Time:  evt.OccurredAt,
		Headers: []kafkago.Header{
			{Key: "event-type", Value: []byte(evt.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing %s event: %w", evt.Type, err)
	}

	p.logger.Debug("booking event published",
		zap.String("type", evt.Type),
		zap.String("booking_id", evt.BookingID.String()),
	)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
