package events

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/careloop/careloop-api/internal/redact"
)

type subscription struct {
	handler EventHandler
	types   []string
}

func (s subscription) wants(eventType string) bool {
	return len(s.types) == 0 || slices.Contains(s.types, eventType)
}

// InMemoryEventEmitter dispatches events synchronously to subscribed
// handlers in registration order.
type InMemoryEventEmitter struct {
	mu     sync.RWMutex
	subs   []subscription
	logger *slog.Logger
}

// NewInMemoryEventEmitter creates an emitter with no subscribers.
func NewInMemoryEventEmitter(logger *slog.Logger) *InMemoryEventEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &InMemoryEventEmitter{
		logger: logger.With("component", "event_emitter"),
	}
}

// RegisterHandler subscribes handler to the given event types, or to every
// event when no type is given.
func (e *InMemoryEventEmitter) RegisterHandler(handler EventHandler, eventTypes ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subs = append(e.subs, subscription{handler: handler, types: slices.Clone(eventTypes)})
	e.logger.Debug("registered event handler",
		"subscriptions", len(e.subs),
		"event_types", eventTypes)
}

// EmitEvent delivers event to every matching handler. A failing handler does
// not stop delivery; all handler errors are joined into the result.
func (e *InMemoryEventEmitter) EmitEvent(ctx context.Context, event *DomainEvent) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	e.mu.RLock()
	subs := slices.Clone(e.subs)
	e.mu.RUnlock()

	log := e.logger.With("event_id", event.ID, "event_type", event.Type, "user_id", event.UserID)

	var errs []error
	delivered := 0
	for _, sub := range subs {
		if !sub.wants(event.Type) {
			continue
		}
		delivered++
		if err := sub.handler.HandleEvent(ctx, event); err != nil {
			log.ErrorContext(ctx, "event handler failed", "error", redact.Error(err))
			errs = append(errs, err)
		}
	}

	if delivered == 0 {
		log.WarnContext(ctx, "no handlers subscribed to event")
		return nil
	}
	log.DebugContext(ctx, "event delivered", "handlers", delivered, "failures", len(errs))
	return errors.Join(errs...)
}
