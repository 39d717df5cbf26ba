package kafka

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/ProtonGraph/internal/config"
	"github.com/turtacn/ProtonGraph/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProtonGraph/pkg/errors"
)

var ErrAlreadyRunning = errors.New(errors.ErrCodeConflict, "consumer already running")

// EnvelopeHandler processes one decoded event. Returning an error sends the
// message to the dead-letter topic after retries are exhausted; the offset
// is committed either way so the partition keeps moving.
type EnvelopeHandler func(ctx context.Context, env *EventEnvelope) error

// ReaderInterface abstracts kafka.Reader for testing.
type ReaderInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads envelopes from one topic and dispatches them to a handler.
type Consumer struct {
	reader     ReaderInterface
	deadLetter *Producer
	topic      string
	maxRetries int
	logger     logging.Logger

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	consumed     atomic.Int64
	failed       atomic.Int64
	deadLettered atomic.Int64
}

// NewConsumer creates a group consumer for the given topic. deadLetter may
// be nil, in which case poisoned messages are dropped after logging.
func NewConsumer(cfg config.KafkaConfig, topic string, deadLetter *Producer, logger logging.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "kafka brokers required")
	}
	if cfg.GroupID == "" {
		return nil, errors.New(errors.ErrCodeValidation, "kafka group id required")
	}

	startOffset := kafka.FirstOffset
	if cfg.AutoOffsetReset == "latest" {
		startOffset = kafka.LastOffset
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10 * 1024 * 1024,
		MaxWait:        cfg.ReadTimeout,
		CommitInterval: 0, // commit explicitly per message
		StartOffset:    startOffset,
	})

	return &Consumer{
		reader:     reader,
		deadLetter: deadLetter,
		topic:      topic,
		maxRetries: 3,
		logger:     logger,
	}, nil
}

// NewConsumerWithReader builds a Consumer on an existing reader, for tests.
func NewConsumerWithReader(reader ReaderInterface, topic string, deadLetter *Producer, logger logging.Logger) *Consumer {
	return &Consumer{
		reader:     reader,
		deadLetter: deadLetter,
		topic:      topic,
		maxRetries: 3,
		logger:     logger,
	}
}

// Start begins consuming in a background goroutine until Stop or context
// cancellation.
func (c *Consumer) Start(ctx context.Context, handler EnvelopeHandler) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.loop(runCtx, handler)
	}()
	return nil
}

func (c *Consumer) loop(ctx context.Context, handler EnvelopeHandler) {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("fetch failed", logging.String("topic", c.topic), logging.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		c.consumed.Add(1)

		c.handle(ctx, handler, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("commit failed",
				logging.String("topic", c.topic),
				logging.Int64("offset", msg.Offset),
				logging.Error(err),
			)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, handler EnvelopeHandler, msg kafka.Message) {
	env, err := DecodeEnvelope(msg.Value)
	if err != nil {
		c.logger.Warn("undecodable message",
			logging.String("topic", c.topic),
			logging.Int64("offset", msg.Offset),
			logging.Error(err),
		)
		c.sendToDeadLetter(ctx, msg, err)
		return
	}

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
			}
		}
		err = handler(ctx, env)
		if err == nil {
			return
		}
	}

	c.failed.Add(1)
	c.logger.Error("handler failed after retries",
		logging.String("topic", c.topic),
		logging.String("event_type", env.EventType),
		logging.String("event_id", env.EventID),
		logging.Error(err),
	)
	c.sendToDeadLetter(ctx, msg, err)
}

func (c *Consumer) sendToDeadLetter(ctx context.Context, msg kafka.Message, cause error) {
	if c.deadLetter == nil {
		return
	}
	payload := map[string]string{
		"origin_topic": c.topic,
		"error":        cause.Error(),
		"value":        string(msg.Value),
	}
	if err := c.deadLetter.Publish(ctx, TopicDeadLetter, "dead_letter", string(msg.Key), payload); err != nil {
		c.logger.Error("dead-letter publish failed", logging.Error(err))
		return
	}
	c.deadLettered.Add(1)
}

// Consumed returns the number of fetched messages.
func (c *Consumer) Consumed() int64 { return c.consumed.Load() }

// Failed returns the number of messages whose handler never succeeded.
func (c *Consumer) Failed() int64 { return c.failed.Load() }

// DeadLettered returns the number of messages routed to the dead-letter
// topic.
func (c *Consumer) DeadLettered() int64 { return c.deadLettered.Load() }

// Stop cancels the consume loop and closes the reader.
func (c *Consumer) Stop() error {
	if !c.running.CompareAndSwap(true, false) {
		return nil
	}
	c.cancel()
	c.wg.Wait()
	return c.reader.Close()
}
