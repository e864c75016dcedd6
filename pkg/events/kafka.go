package events

import (
	"context"
	"fmt"
	"time"

	"github.com/fundopatronos/carreiras-api/pkg/logger"
	"github.com/fundopatronos/carreiras-api/pkg/metrics"
	"github.com/fundopatronos/carreiras-api/pkg/retry"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageWriter is the subset of *kafka.Writer used by KafkaPublisher
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures the Kafka publisher
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// KafkaPublisher writes events to a Kafka topic keyed by subject id
type KafkaPublisher struct {
	writer  MessageWriter
	timeout time.Duration
}

// NewKafkaPublisher creates a publisher backed by a kafka-go Writer
func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, fmt.Errorf("kafka brokers and topic are required")
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: cfg.WriteTimeout,
		Async:        false,
	}

	logger.Info("Kafka event publisher initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic))

	return NewKafkaPublisherWithWriter(writer, cfg.WriteTimeout), nil
}

// NewKafkaPublisherWithWriter wraps an existing writer
func NewKafkaPublisherWithWriter(w MessageWriter, timeout time.Duration) *KafkaPublisher {
	return &KafkaPublisher{writer: w, timeout: timeout}
}

// Publish writes the event synchronously, retrying transient failures
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := event.encode()
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(event.SubjectID),
		Value: payload,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(event.Name)},
		},
	}

	err = retry.Do(ctx, retry.EventsConfig(), "kafka_publish", func() error {
		return p.writer.WriteMessages(ctx, msg)
	})
	if err != nil {
		metrics.EventsPublished.WithLabelValues(event.Name, "error").Inc()
		return fmt.Errorf("failed to publish %s: %w", event.Name, err)
	}

	metrics.EventsPublished.WithLabelValues(event.Name, "success").Inc()
	return nil
}

// Close flushes and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

var _ Publisher = (*KafkaPublisher)(nil)
