package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"gatherly/internal/domain/shared/events"
)

// EgressSink republishes chat domain events to Kafka for downstream
// subsystems (notification delivery, analytics). It subscribes to the
// fan-out bus; egress failures are logged and never reach the publisher.
type EgressSink struct {
	Producer *Producer
	Topic    string
	Source   string
	Logger   *slog.Logger
}

func (s EgressSink) HandleEvent(ctx context.Context, evt events.DomainEvent) {
	if s.Producer == nil {
		return
	}
	payload, err := s.formatPayload(evt)
	if err != nil {
		s.log().Warn("egress encode failed", "event", evt.EventName(), "error", err)
		return
	}
	headers := map[string]string{"content-type": "application/cloudevents+json"}
	if err := s.Producer.Publish(ctx, s.Topic, evt.AggregateID(), payload, headers); err != nil {
		s.log().Warn("egress publish failed", "event", evt.EventName(), "error", err)
	}
}

func (s EgressSink) formatPayload(evt events.DomainEvent) ([]byte, error) {
	return json.Marshal(map[string]any{
		"specversion":     "1.0",
		"id":              uuid.NewString(),
		"type":            evt.EventName() + ".v1",
		"source":          s.source(),
		"time":            evt.OccurredAt(),
		"datacontenttype": "application/json",
		"data":            evt,
	})
}

func (s EgressSink) source() string {
	if s.Source != "" {
		return s.Source
	}
	return "app://gatherly"
}

func (s EgressSink) log() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
