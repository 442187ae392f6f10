package bus

import (
	"context"
	"log/slog"
	"sync"

	"gatherly/internal/domain/shared/events"
)

// Handler consumes one published event. Handlers must not block: session
// delivery behind them is non-blocking by construction.
type Handler func(ctx context.Context, evt events.DomainEvent)

// Fanout is the in-process publish/subscribe channel between the mutation
// path (membership service, message pipeline) and delivery (connection
// registry, kafka egress). Handlers are registered once at process start;
// Publish dispatches synchronously, so every subscriber observes events for
// one chat in publication order. A panicking subscriber is contained and
// never fails the originating mutation.
type Fanout struct {
	mu       sync.RWMutex
	handlers []Handler
	log      *slog.Logger
}

func New(log *slog.Logger) *Fanout {
	if log == nil {
		log = slog.Default()
	}
	return &Fanout{log: log}
}

// Subscribe registers a handler. Intended for process start; late
// subscribers do not receive events published before registration.
func (f *Fanout) Subscribe(h Handler) {
	if h == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, h)
}

func (f *Fanout) Publish(ctx context.Context, evts ...events.DomainEvent) {
	f.mu.RLock()
	handlers := f.handlers
	f.mu.RUnlock()
	for _, evt := range evts {
		if evt == nil {
			continue
		}
		for _, h := range handlers {
			f.dispatch(ctx, h, evt)
		}
	}
}

func (f *Fanout) dispatch(ctx context.Context, h Handler, evt events.DomainEvent) {
	defer func() {
		if r := recover(); r != nil {
			f.log.Error("event handler panicked", "event", evt.EventName(), "panic", r)
		}
	}()
	h(ctx, evt)
}

var _ events.Publisher = (*Fanout)(nil)
