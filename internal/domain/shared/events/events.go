package events

import (
	"context"
	"time"
)

// Publisher delivers events to every interested subscriber. Publication
// order is preserved per aggregate; delivery failures stay local to the
// failing subscriber and never surface to the publisher.
type Publisher interface {
	Publish(ctx context.Context, evts ...DomainEvent)
}

// DomainEvent is the typed contract every published event satisfies.
// Handlers are registered against concrete event types at process start;
// there is no reflective or annotation-driven dispatch.
type DomainEvent interface {
	EventName() string
	AggregateID() string
	OccurredAt() time.Time
}

// EventRecorder collects events produced by an aggregate mutation until the
// owning service has persisted the change and is ready to publish them.
type EventRecorder struct {
	pending []DomainEvent
}

func (r *EventRecorder) Record(event DomainEvent) {
	if event == nil {
		return
	}
	r.pending = append(r.pending, event)
}

// FlushEvents returns the recorded events and clears the recorder.
// A rejected operation must not flush: its events die with the aggregate copy.
func (r *EventRecorder) FlushEvents() []DomainEvent {
	out := r.pending
	r.pending = nil
	return out
}
