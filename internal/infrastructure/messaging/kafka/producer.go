package kafka

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/ProtonGraph/internal/config"
	"github.com/turtacn/ProtonGraph/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProtonGraph/pkg/errors"
)

var ErrProducerClosed = errors.New(errors.ErrCodeMessageQueueError, "producer closed")

// WriterInterface abstracts kafka.Writer for testing.
type WriterInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes event envelopes to Kafka.
type Producer struct {
	writer WriterInterface
	source string
	logger logging.Logger
	closed atomic.Bool

	messagesSent   atomic.Int64
	messagesFailed atomic.Int64
}

// NewProducer creates a Producer bound to the configured brokers. source
// names the publishing service in every envelope.
func NewProducer(cfg config.KafkaConfig, source string, logger logging.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "kafka brokers required")
	}

	batchSize := cfg.BatchSize
	if batchSize == 0 {
		batchSize = 100
	}
	batchTimeout := cfg.BatchTimeout
	if batchTimeout == 0 {
		batchTimeout = time.Second
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = 10 * time.Second
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		MaxAttempts:  cfg.ProducerRetries + 1,
		BatchSize:    batchSize,
		BatchTimeout: batchTimeout,
		WriteTimeout: writeTimeout,
		RequiredAcks: kafka.RequireAll,
	}

	return &Producer{writer: writer, source: source, logger: logger}, nil
}

// NewProducerWithWriter builds a Producer on an existing writer. Used in
// tests and by the dead-letter path which shares a connection.
func NewProducerWithWriter(writer WriterInterface, source string, logger logging.Logger) *Producer {
	return &Producer{writer: writer, source: source, logger: logger}
}

// Publish wraps payload in an envelope and writes it to topic, keyed so
// that all events for one run land on the same partition.
func (p *Producer) Publish(ctx context.Context, topic, eventType, key string, payload interface{}) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}

	env, err := NewEventEnvelope(eventType, p.source, payload)
	if err != nil {
		return err
	}
	value, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal envelope")
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Time:  env.Timestamp,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "source_service", Value: []byte(p.source)},
			{Key: "schema_version", Value: []byte(env.SchemaVersion)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.messagesFailed.Add(1)
		return errors.Wrap(err, errors.ErrCodeMessageQueueError, "publish failed")
	}
	p.messagesSent.Add(1)

	p.logger.Debug("event published",
		logging.String("topic", topic),
		logging.String("event_type", eventType),
		logging.String("key", key),
	)
	return nil
}

// PublishRunStarted emits run.started on the events topic.
func (p *Producer) PublishRunStarted(ctx context.Context, payload RunStartedPayload) error {
	return p.Publish(ctx, TopicRunEvents, EventRunStarted, payload.RunID, payload)
}

// PublishRunCompleted emits run.completed on the events topic.
func (p *Producer) PublishRunCompleted(ctx context.Context, payload RunCompletedPayload) error {
	return p.Publish(ctx, TopicRunEvents, EventRunCompleted, payload.RunID, payload)
}

// PublishRunFailed emits run.failed on the events topic.
func (p *Producer) PublishRunFailed(ctx context.Context, payload RunFailedPayload) error {
	return p.Publish(ctx, TopicRunEvents, EventRunFailed, payload.RunID, payload)
}

// PublishPrepareJob enqueues a preparation job for a worker to pick up.
func (p *Producer) PublishPrepareJob(ctx context.Context, payload PrepareJobPayload) error {
	return p.Publish(ctx, TopicPrepareJobs, "prepare.requested", payload.RunID, payload)
}

// Sent returns the number of successfully published messages.
func (p *Producer) Sent() int64 { return p.messagesSent.Load() }

// Failed returns the number of failed publish attempts.
func (p *Producer) Failed() int64 { return p.messagesFailed.Load() }

// Close flushes and closes the underlying writer. Safe to call twice.
func (p *Producer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := p.writer.Close()
	p.logger.Info("kafka producer closed", logging.Int64("sent", p.messagesSent.Load()))
	return err
}
