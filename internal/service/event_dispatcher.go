package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/docflow-api/internal/models"
	"github.com/noah-isme/docflow-api/internal/realtime"
	"github.com/noah-isme/docflow-api/pkg/logger"
)

type realtimeEmitter interface {
	EmitExcept(key string, event models.EventName, payload interface{}, exceptUserID string) int
}

type eventMirror interface {
	Mirror(key string, env models.Envelope) error
}

// EventDispatcher fans committed events out to live connections and the
// outbound event stream. Delivery is best effort and never returns errors.
type EventDispatcher struct {
	hub     realtimeEmitter
	stream  eventMirror
	metrics *MetricsService
	logger  *zap.Logger
}

// DispatcherOption customises an EventDispatcher.
type DispatcherOption func(*EventDispatcher)

// WithEventMirror enables the outbound event stream.
func WithEventMirror(stream eventMirror) DispatcherOption {
	return func(d *EventDispatcher) {
		d.stream = stream
	}
}

// WithDispatcherMetrics records dropped events.
func WithDispatcherMetrics(metrics *MetricsService) DispatcherOption {
	return func(d *EventDispatcher) {
		d.metrics = metrics
	}
}

// NewEventDispatcher constructs a dispatcher over the hub.
func NewEventDispatcher(hub realtimeEmitter, log *zap.Logger, opts ...DispatcherOption) *EventDispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	d := &EventDispatcher{hub: hub, logger: log}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch pushes the delivery to each user room and raw channel, then
// mirrors it once to the event stream.
func (d *EventDispatcher) Dispatch(ctx context.Context, delivery models.Delivery) {
	if d == nil {
		return
	}
	log := logger.WithContext(ctx, d.logger)

	if d.hub != nil {
		seen := make(map[string]struct{}, len(delivery.Users))
		for _, userID := range delivery.Users {
			if _, dup := seen[userID]; dup || userID == "" {
				continue
			}
			seen[userID] = struct{}{}
			d.hub.EmitExcept(realtime.UserKey(userID), delivery.Event, delivery.Payload, delivery.ExceptUserID)
		}
		for _, channel := range delivery.Channels {
			d.hub.EmitExcept(channel, delivery.Event, delivery.Payload, delivery.ExceptUserID)
		}
	}

	if d.stream == nil {
		return
	}
	if err := d.stream.Mirror(delivery.Key, models.Envelope{Event: delivery.Event, Data: delivery.Payload}); err != nil {
		reason := dropReason(err)
		log.Warn("event not mirrored", zap.String("event", string(delivery.Event)), zap.String("reason", reason), zap.Error(err))
		d.metrics.RecordEventDropped(reason)
	}
}
