// Package kafka carries the asynchronous messaging layer: preparation job
// requests flow in through the jobs topic and run lifecycle events flow out
// through the events topic.
package kafka

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/ProtonGraph/pkg/errors"
)

// Topic constants
const (
	TopicPrepareJobs  = "protongraph.prepare.jobs"
	TopicRunEvents    = "protongraph.run.events"
	TopicDeadLetter   = "protongraph.dead_letter"
)

// Event types published on TopicRunEvents.
const (
	EventRunStarted   = "run.started"
	EventRunCompleted = "run.completed"
	EventRunFailed    = "run.failed"
)

// EventEnvelope standardizes messages on all topics.
type EventEnvelope struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	Source        string            `json:"source"`
	Timestamp     time.Time         `json:"timestamp"`
	SchemaVersion string            `json:"schema_version"`
	Payload       json.RawMessage   `json:"payload"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// PrepareJobPayload asks a worker to run dataset preparation over a source.
type PrepareJobPayload struct {
	RunID             string `json:"run_id"`
	DatasetName       string `json:"dataset_name"`
	VocabularyVersion string `json:"vocabulary_version"`
	Source            string `json:"source"`
	Workers           int    `json:"workers,omitempty"`
}

// RunStartedPayload announces that a worker picked up a run.
type RunStartedPayload struct {
	RunID       string    `json:"run_id"`
	DatasetName string    `json:"dataset_name"`
	StartedAt   time.Time `json:"started_at"`
}

// RunCompletedPayload carries the headline counts of a finished run.
type RunCompletedPayload struct {
	RunID       string    `json:"run_id"`
	DatasetName string    `json:"dataset_name"`
	Samples     int64     `json:"samples"`
	Rejected    int64     `json:"rejected"`
	FinishedAt  time.Time `json:"finished_at"`
}

// RunFailedPayload reports a run that aborted with a fatal error.
type RunFailedPayload struct {
	RunID       string    `json:"run_id"`
	DatasetName string    `json:"dataset_name"`
	ErrorCode   string    `json:"error_code"`
	Error       string    `json:"error"`
	FailedAt    time.Time `json:"failed_at"`
}

// NewEventEnvelope wraps a payload in a fresh envelope.
func NewEventEnvelope(eventType, source string, payload interface{}) (*EventEnvelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal payload")
	}
	return &EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: "v1",
		Payload:       data,
	}, nil
}

// DecodePayload unmarshals the envelope payload into target.
func (e *EventEnvelope) DecodePayload(target interface{}) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return errors.New(errors.ErrCodeValidation, "empty event payload")
	}
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal payload")
	}
	return nil
}

// DecodeEnvelope parses an envelope from raw message bytes.
func DecodeEnvelope(value []byte) (*EventEnvelope, error) {
	if len(value) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "empty message value")
	}
	var env EventEnvelope
	if err := json.Unmarshal(value, &env); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal envelope")
	}
	return &env, nil
}
