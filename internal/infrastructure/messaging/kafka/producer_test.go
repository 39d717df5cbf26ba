package kafka

import (
	"context"
	"testing"
	"time"

	segkafka "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ProtonGraph/internal/config"
	"github.com/turtacn/ProtonGraph/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProtonGraph/pkg/errors"
)

type fakeWriter struct {
	messages []segkafka.Message
	writeErr error
	closed   bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...segkafka.Message) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestPublishRunCompleted(t *testing.T) {
	fw := &fakeWriter{}
	p := NewProducerWithWriter(fw, "worker-1", logging.NewNopLogger())

	err := p.PublishRunCompleted(context.Background(), RunCompletedPayload{
		RunID:       "run-42",
		DatasetName: "pka-train",
		Samples:     1200,
		Rejected:    7,
		FinishedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)
	require.Len(t, fw.messages, 1)

	msg := fw.messages[0]
	assert.Equal(t, TopicRunEvents, msg.Topic)
	assert.Equal(t, "run-42", string(msg.Key))

	env, err := DecodeEnvelope(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, EventRunCompleted, env.EventType)
	assert.Equal(t, "worker-1", env.Source)

	var payload RunCompletedPayload
	require.NoError(t, env.DecodePayload(&payload))
	assert.Equal(t, int64(1200), payload.Samples)
	assert.EqualValues(t, 1, p.Sent())
}

func TestPublishWriteFailure(t *testing.T) {
	fw := &fakeWriter{writeErr: errors.New(errors.ErrCodeInternal, "broker down")}
	p := NewProducerWithWriter(fw, "worker-1", logging.NewNopLogger())

	err := p.PublishPrepareJob(context.Background(), PrepareJobPayload{RunID: "run-1"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeMessageQueueError, errors.GetCode(err))
	assert.EqualValues(t, 1, p.Failed())
}

func TestPublishAfterClose(t *testing.T) {
	fw := &fakeWriter{}
	p := NewProducerWithWriter(fw, "worker-1", logging.NewNopLogger())

	require.NoError(t, p.Close())
	assert.True(t, fw.closed)
	require.NoError(t, p.Close())

	err := p.PublishRunStarted(context.Background(), RunStartedPayload{RunID: "run-1"})
	assert.ErrorIs(t, err, ErrProducerClosed)
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer(config.KafkaConfig{}, "worker-1", logging.NewNopLogger())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidation, errors.GetCode(err))
}
