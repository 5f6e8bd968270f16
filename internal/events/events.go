package events

import (
	"sync"
	"time"
)

// Well-known event types published by the selection and booking packages.
const (
	TypeSelectionConfirmed = "selection.confirmed"
	TypeSelectionCancelled = "selection.cancelled"
	TypeItemsDropped       = "selection.items_dropped"
	TypeDatesChanged       = "selection.dates_changed"
	TypeBookingCreated     = "booking.created"
	TypeBookingUpdated     = "booking.updated"
	TypeBookingCancelled   = "booking.cancelled"
)

// Event represents a lightweight domain event. Payload holds event-specific
// data; rendering collaborators subscribe and redraw from it instead of
// inspecting engine internals.
type Event struct {
	Type      string
	Payload   any
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event Event)

// Bus provides in-process pub/sub for events.
type Bus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *Bus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *Bus) Publish(eventType string, payload any) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[eventType]...)
	b.mu.RUnlock()

	event := Event{Type: eventType, Payload: payload, CreatedAt: time.Now()}
	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		handler(event)
	}
}
