package bus

import "time"

// Event is an immutable record delivered through the Bus.
//
// Type is the routing key handlers subscribe by. Timestamp is assigned at
// emission time when the emitter leaves it zero. Data is an event-specific
// payload struct owned by the emitting package.
type Event struct {
	Type      string
	Timestamp time.Time
	Data      any
}

// Handler is a callback invoked per delivered event. A returned error is
// logged and never propagated to the emitter; handlers are best-effort side
// channels.
type Handler func(event Event) error

// Subscription represents a registered handler. Unsubscribe removes exactly
// this registration; multiple calls are safe.
type Subscription interface {
	ID() string
	EventType() string
	IsActive() bool
	Unsubscribe()
}

// Stats is a diagnostic snapshot of the bus registry.
type Stats struct {
	ListenersByType map[string]int
	TotalListeners  int
	GlobalListeners int
	HistorySize     int
}
