package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/docflow-api/internal/models"
	"github.com/noah-isme/docflow-api/pkg/jobs"
)

type eventPublisher interface {
	Publish(ctx context.Context, key, value []byte) error
}

// EventStream mirrors lifecycle events to an external broker through an
// in-memory worker queue so request handlers never wait on the broker.
type EventStream struct {
	queue     *jobs.Queue
	publisher eventPublisher
	logger    *zap.Logger
}

// NewEventStream builds the stream and its queue. Start must be called before
// events are mirrored.
func NewEventStream(publisher eventPublisher, cfg jobs.QueueConfig) *EventStream {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &EventStream{publisher: publisher, logger: logger}
	s.queue = jobs.NewQueue("event-stream", s.publish, cfg)
	return s
}

// Start launches the queue workers.
func (s *EventStream) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *EventStream) Stop() {
	s.queue.Stop()
}

// Mirror schedules env for publication under key without blocking.
func (s *EventStream) Mirror(key string, env models.Envelope) error {
	return s.queue.TryEnqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    string(env.Event),
		Key:     key,
		Payload: env,
	})
}

func (s *EventStream) publish(ctx context.Context, job jobs.Job) error {
	env, ok := job.Payload.(models.Envelope)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", job.Payload)
	}
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", env.Event, err)
	}
	if err := s.publisher.Publish(ctx, []byte(job.Key), value); err != nil {
		return fmt.Errorf("publish event %s: %w", env.Event, err)
	}
	return nil
}

// dropReason labels why an event missed the stream.
func dropReason(err error) string {
	if errors.Is(err, jobs.ErrQueueFull) {
		return "queue_full"
	}
	return "queue_unavailable"
}
