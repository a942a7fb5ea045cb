package bus

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tickforge/tickforge/internal/core/observability/log"
	"github.com/tickforge/tickforge/pkg/sequence"
)

// DefaultHistoryCapacity bounds the retained event history.
const DefaultHistoryCapacity = 1000

type subKind uint8

const (
	kindSpecific subKind = iota
	kindOnce
	kindGlobal
)

// subscription implements Subscription.
type subscription struct {
	id        string
	eventType string
	handler   Handler
	kind      subKind
	active    bool
	bus       *Bus
}

func (s *subscription) ID() string        { return s.id }
func (s *subscription) EventType() string { return s.eventType }

func (s *subscription) IsActive() bool {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	return s.active
}

func (s *subscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	s.bus.removeLocked(s)
}

// Bus is an in-process notification hub with deterministic delivery order.
//
// Per Emit, listeners run in three tiers: type-specific listeners in
// registration order, then once-listeners for the type (cleared from the
// registry before being invoked, so re-emission inside a listener cannot
// re-trigger them), then global listeners in registration order. A failing
// listener is logged and never stops the remaining ones.
type Bus struct {
	mu       sync.Mutex
	handlers map[string][]*subscription
	once     map[string][]*subscription
	global   []*subscription
	history  *sequence.Ring[Event]
	logger   log.Log
}

// Option configures a Bus.
type Option func(*Bus)

// WithHistoryCapacity overrides the retained history size.
func WithHistoryCapacity(n int) Option {
	return func(b *Bus) {
		b.history = sequence.NewRing[Event](n)
	}
}

// New creates an event bus. A nil logger falls back to a no-op logger.
func New(logger log.Log, opts ...Option) *Bus {
	if logger == nil {
		logger = log.NewNop()
	}
	b := &Bus{
		handlers: make(map[string][]*subscription),
		once:     make(map[string][]*subscription),
		history:  sequence.NewRing[Event](DefaultHistoryCapacity),
		logger:   logger.With(log.String("component", "event-bus")),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// On registers a persistent listener for eventType.
func (b *Bus) On(eventType string, handler Handler) Subscription {
	return b.subscribe(eventType, handler, kindSpecific)
}

// Once registers a listener that is removed after its first invocation for
// eventType. Unsubscribe still works if the event never fires.
func (b *Bus) Once(eventType string, handler Handler) Subscription {
	return b.subscribe(eventType, handler, kindOnce)
}

// OnAll registers a listener receiving every emitted event, after the
// type-specific tiers.
func (b *Bus) OnAll(handler Handler) Subscription {
	return b.subscribe("", handler, kindGlobal)
}

func (b *Bus) subscribe(eventType string, handler Handler, kind subKind) Subscription {
	s := &subscription{
		id:        uuid.NewString(),
		eventType: eventType,
		handler:   handler,
		kind:      kind,
		active:    true,
		bus:       b,
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	switch kind {
	case kindSpecific:
		b.handlers[eventType] = append(b.handlers[eventType], s)
	case kindOnce:
		b.once[eventType] = append(b.once[eventType], s)
	case kindGlobal:
		b.global = append(b.global, s)
	}
	return s
}

// Emit delivers the event synchronously. The emitter's zero Timestamp is
// replaced with the current time. Emitting from inside a listener is
// permitted.
func (b *Bus) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.Lock()
	specific := append([]*subscription(nil), b.handlers[event.Type]...)
	fired := b.once[event.Type]
	delete(b.once, event.Type)
	global := append([]*subscription(nil), b.global...)
	b.history.Append(event)
	b.mu.Unlock()

	for _, s := range specific {
		b.invoke(s, event)
	}
	for _, s := range fired {
		b.invoke(s, event)
		b.mu.Lock()
		s.active = false
		b.mu.Unlock()
	}
	for _, s := range global {
		b.invoke(s, event)
	}
}

// invoke runs a single handler behind an error boundary: errors and panics
// are logged, never propagated.
func (b *Bus) invoke(s *subscription, event Event) {
	b.mu.Lock()
	active := s.active
	b.mu.Unlock()
	if !active {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("listener panicked",
				log.String("event_type", event.Type),
				log.String("subscription_id", s.id),
				log.Error(fmt.Errorf("panic: %v", r)))
		}
	}()

	if err := s.handler(event); err != nil {
		b.logger.Error("listener failed",
			log.String("event_type", event.Type),
			log.String("subscription_id", s.id),
			log.Error(err))
	}
}

// History returns a copy of retained events, oldest first. A non-empty
// eventType filters by type; a positive limit keeps only the most recent
// matches.
func (b *Bus) History(eventType string, limit int) []Event {
	b.mu.Lock()
	all := b.history.Snapshot()
	b.mu.Unlock()

	out := all
	if eventType != "" {
		out = out[:0:0]
		for _, e := range all {
			if e.Type == eventType {
				out = append(out, e)
			}
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return append([]Event(nil), out...)
}

// Stats returns listener counts and history size for diagnostics.
func (b *Bus) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	byType := make(map[string]int, len(b.handlers))
	total := 0
	for t, subs := range b.handlers {
		if len(subs) > 0 {
			byType[t] += len(subs)
			total += len(subs)
		}
	}
	for t, subs := range b.once {
		if len(subs) > 0 {
			byType[t] += len(subs)
			total += len(subs)
		}
	}
	total += len(b.global)

	return Stats{
		ListenersByType: byType,
		TotalListeners:  total,
		GlobalListeners: len(b.global),
		HistorySize:     b.history.Len(),
	}
}

// removeLocked detaches s from whichever registry holds it. Caller holds b.mu.
func (b *Bus) removeLocked(s *subscription) {
	if !s.active {
		return
	}
	s.active = false
	switch s.kind {
	case kindSpecific:
		b.handlers[s.eventType] = drop(b.handlers[s.eventType], s)
	case kindOnce:
		b.once[s.eventType] = drop(b.once[s.eventType], s)
	case kindGlobal:
		b.global = drop(b.global, s)
	}
}

func drop(subs []*subscription, target *subscription) []*subscription {
	for i, s := range subs {
		if s == target {
			return append(subs[:i], subs[i+1:]...)
		}
	}
	return subs
}
