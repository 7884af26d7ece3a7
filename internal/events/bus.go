package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// kelindar/event is generic, so each concrete type is dispatched explicitly.
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case EpochChangedEvent:
		event.Publish(b.dispatcher, e)
	case QueryResolvedEvent:
		event.Publish(b.dispatcher, e)
	case ServerStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case CarpetStatusEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler's parameter type selects the events it receives.
// Returns an unsubscribe function; unknown handler types get a no-op.
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(EpochChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(QueryResolvedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ServerStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CarpetStatusEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}

// SubscribeToChannel bridges a typed subscription to a channel for select loops (SSE).
// Events are dropped when the channel is full.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}
