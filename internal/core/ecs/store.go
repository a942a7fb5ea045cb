package ecs

import (
	"fmt"
	"sync"

	"github.com/tickforge/tickforge/internal/core/events/bus"
	"github.com/tickforge/tickforge/internal/core/observability/log"
)

// EntityID identifies an entity. Ids are monotonically increasing, start at 1
// and are never reused within a store's lifetime.
type EntityID uint64

// DefaultMaxEntities caps a store unless overridden via WithMaxEntities.
const DefaultMaxEntities = 10_000

// Lifecycle event types emitted by the Store.
const (
	EventEntityCreated    = "entity:created"
	EventEntityDestroyed  = "entity:destroyed"
	EventComponentAdded   = "component:added"
	EventComponentRemoved = "component:removed"
)

// EntityEvent is the payload of entity:created and entity:destroyed.
type EntityEvent struct {
	EntityID EntityID
}

// ComponentAddedEvent is the payload of component:added.
type ComponentAddedEvent struct {
	EntityID  EntityID
	Component Component
}

// ComponentRemovedEvent is the payload of component:removed.
type ComponentRemovedEvent struct {
	EntityID      EntityID
	ComponentType string
}

// Store exclusively owns entity identity and component attachment. Iteration
// order over entities is insertion order, which keeps collision pair checking
// deterministic.
type Store struct {
	mu          sync.RWMutex
	nextID      EntityID
	entities    map[EntityID]map[string]Component
	order       []EntityID
	maxEntities int

	bus    *bus.Bus
	logger log.Log
}

// Option configures a Store.
type Option func(*Store)

// WithMaxEntities overrides the entity capacity.
func WithMaxEntities(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxEntities = n
		}
	}
}

// NewStore creates an empty store publishing lifecycle events on eventBus.
func NewStore(eventBus *bus.Bus, logger log.Log, opts ...Option) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	s := &Store{
		nextID:      1,
		entities:    make(map[EntityID]map[string]Component),
		maxEntities: DefaultMaxEntities,
		bus:         eventBus,
		logger:      logger.With(log.String("component", "entity-store")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateEntity allocates the next id and registers an empty entity. It fails
// with ErrCapacityExceeded at the configured limit.
func (s *Store) CreateEntity() (EntityID, error) {
	s.mu.Lock()
	if len(s.entities) >= s.maxEntities {
		s.mu.Unlock()
		return 0, fmt.Errorf("cannot create entity (%d in use): %w", s.maxEntities, ErrCapacityExceeded)
	}
	id := s.nextID
	s.nextID++
	s.entities[id] = make(map[string]Component)
	s.order = append(s.order, id)
	s.mu.Unlock()

	s.emit(EventEntityCreated, EntityEvent{EntityID: id})
	return id, nil
}

// DestroyEntity removes the entity and all of its components atomically.
// Unknown ids are a silent no-op and emit nothing.
func (s *Store) DestroyEntity(id EntityID) {
	s.mu.Lock()
	if _, ok := s.entities[id]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.entities, id)
	for i, e := range s.order {
		if e == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.emit(EventEntityDestroyed, EntityEvent{EntityID: id})
}

// AddComponent attaches component to the entity, overwriting any existing
// component of the same type (last write wins).
func (s *Store) AddComponent(id EntityID, component Component) error {
	s.mu.Lock()
	comps, ok := s.entities[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("entity %d: %w", id, ErrEntityNotFound)
	}
	comps[component.Type()] = component
	s.mu.Unlock()

	s.emit(EventComponentAdded, ComponentAddedEvent{EntityID: id, Component: component})
	return nil
}

// RemoveComponent detaches the component of the given type. An absent type is
// a silent no-op; only an actual removal emits an event.
func (s *Store) RemoveComponent(id EntityID, componentType string) error {
	s.mu.Lock()
	comps, ok := s.entities[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("entity %d: %w", id, ErrEntityNotFound)
	}
	if _, present := comps[componentType]; !present {
		s.mu.Unlock()
		return nil
	}
	delete(comps, componentType)
	s.mu.Unlock()

	s.emit(EventComponentRemoved, ComponentRemovedEvent{EntityID: id, ComponentType: componentType})
	return nil
}

// GetComponent returns the component of the given type, if attached. Unknown
// entities yield (nil, false).
func (s *Store) GetComponent(id EntityID, componentType string) (Component, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if comps, ok := s.entities[id]; ok {
		if c, ok := comps[componentType]; ok {
			return c, true
		}
	}
	return nil, false
}

// HasComponent reports whether the entity carries the component type.
func (s *Store) HasComponent(id EntityID, componentType string) bool {
	_, ok := s.GetComponent(id, componentType)
	return ok
}

// HasEntity reports whether the id is registered.
func (s *Store) HasEntity(id EntityID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entities[id]
	return ok
}

// Components returns all components of an entity. Unknown ids yield nil.
func (s *Store) Components(id EntityID) []Component {
	s.mu.RLock()
	defer s.mu.RUnlock()

	comps, ok := s.entities[id]
	if !ok {
		return nil
	}
	out := make([]Component, 0, len(comps))
	for _, c := range comps {
		out = append(out, c)
	}
	return out
}

// Entities returns every entity id in insertion order.
func (s *Store) Entities() []EntityID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]EntityID(nil), s.order...)
}

// EntitiesWith returns, in insertion order, the entities carrying the
// component type.
func (s *Store) EntitiesWith(componentType string) []EntityID {
	return s.EntitiesWithAll(componentType)
}

// EntitiesWithAll returns, in insertion order, the entities carrying every
// listed component type.
func (s *Store) EntitiesWithAll(componentTypes ...string) []EntityID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []EntityID
	for _, id := range s.order {
		comps := s.entities[id]
		hasAll := true
		for _, t := range componentTypes {
			if _, ok := comps[t]; !ok {
				hasAll = false
				break
			}
		}
		if hasAll {
			out = append(out, id)
		}
	}
	return out
}

// Count returns the number of live entities.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}

// Clear removes every entity and resets the id counter to 1. Reset utility
// for tests and world reloads; emits no events.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities = make(map[EntityID]map[string]Component)
	s.order = nil
	s.nextID = 1
}

func (s *Store) emit(eventType string, data any) {
	if s.bus == nil {
		return
	}
	s.bus.Emit(bus.Event{Type: eventType, Data: data})
}

// Get retrieves a typed component from the store. The type parameter's
// discriminator drives the lookup, so no reflection is involved.
func Get[T Component](s *Store, id EntityID) (T, bool) {
	var zero T
	c, ok := s.GetComponent(id, zero.Type())
	if !ok {
		return zero, false
	}
	typed, ok := c.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}
