package events

import (
	"time"

	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher for in-process lifecycle events.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers of its concrete type.
// Usage: bus.Publish(StreamStartedEvent{...})
func (b *Bus) Publish(ev Event) {
	// kelindar/event is generic over the event type, so dispatch per type
	switch e := ev.(type) {
	case CameraCreatedEvent:
		event.Publish(b.dispatcher, e)
	case CameraUpdatedEvent:
		event.Publish(b.dispatcher, e)
	case CameraDeletedEvent:
		event.Publish(b.dispatcher, e)
	case StreamStartedEvent:
		event.Publish(b.dispatcher, e)
	case StreamStoppedEvent:
		event.Publish(b.dispatcher, e)
	case StreamEndedEvent:
		event.Publish(b.dispatcher, e)
	case StreamFrameUpdateEvent:
		event.Publish(b.dispatcher, e)
	case StreamBitrateUpdateEvent:
		event.Publish(b.dispatcher, e)
	case SegmentsPrunedEvent:
		event.Publish(b.dispatcher, e)
	case StreamMetricsEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers handler for the event type named by its parameter.
// Returns an unsubscribe function; unknown handler types get a no-op.
// Usage: unsub := bus.Subscribe(func(e StreamEndedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(CameraCreatedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CameraUpdatedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CameraDeletedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StreamStartedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StreamStoppedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StreamEndedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StreamFrameUpdateEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StreamBitrateUpdateEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SegmentsPrunedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StreamMetricsEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}

// Now formats the current time the way event timestamps are rendered.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
