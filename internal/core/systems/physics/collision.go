// Package physics implements AABB collision detection and impulse-based
// resolution as an engine system. No rotation, no narrow-phase beyond boxes,
// no broad-phase acceleration: pair checks and spatial queries are linear
// scans, which is fine at the thousands-of-entities scale this targets.
package physics

import (
	"time"

	"github.com/tickforge/tickforge/internal/core/ecs"
	"github.com/tickforge/tickforge/internal/core/events/bus"
	"github.com/tickforge/tickforge/internal/core/observability/log"
	"github.com/tickforge/tickforge/pkg/generic"
)

// SystemName is the registration name of the physics system.
const SystemName = "physics"

// Collision event types.
const (
	EventCollisionDetected = "collision:detected"
	EventTriggerActivated  = "trigger:activated"
)

// Contact describes one overlapping pair for one tick. Contacts are
// recomputed every tick and never persisted.
type Contact struct {
	EntityA     ecs.EntityID
	EntityB     ecs.EntityID
	Normal      ecs.Vec2 // unit, points from A toward B
	Penetration float64  // >= 0
	Point       ecs.Vec2 // center of the overlap rectangle
	Timestamp   time.Time
}

// CollisionEvent is the payload of collision:detected and trigger:activated.
type CollisionEvent struct {
	EntityA ecs.EntityID
	EntityB ecs.EntityID
	Contact Contact
}

type candidate struct {
	id       ecs.EntityID
	collider *ecs.Collider
}

// System detects and resolves AABB overlaps between entities carrying both a
// Collider and a Transform. It conforms to the engine's System contract and
// additionally exposes the per-tick contact list and spatial queries.
type System struct {
	store  *ecs.Store
	bus    *bus.Bus
	logger log.Log

	contacts []Contact
	scratch  *generic.Pool[[]candidate]
}

// New creates the physics system over the given store and bus.
func New(store *ecs.Store, eventBus *bus.Bus, logger log.Log) *System {
	if logger == nil {
		logger = log.NewNop()
	}
	return &System{
		store:  store,
		bus:    eventBus,
		logger: logger.With(log.String("component", "physics")),
		scratch: generic.NewPool(func() []candidate {
			return make([]candidate, 0, 64)
		}),
	}
}

func (s *System) Name() string { return SystemName }

// Contacts returns the contacts recorded during the most recent tick. The
// list is cleared and rebuilt every tick, not accumulated.
func (s *System) Contacts() []Contact {
	return append([]Contact(nil), s.contacts...)
}

func (s *System) Update(_ float64, _ []ecs.EntityID) error {
	boxes := s.scratch.Get()[:0]
	defer func() { s.scratch.Put(boxes) }()

	for _, id := range s.store.EntitiesWithAll(ecs.ComponentCollider, ecs.ComponentTransform) {
		col, ok := ecs.Get[*ecs.Collider](s.store, id)
		if !ok {
			continue
		}
		tr, ok := ecs.Get[*ecs.Transform](s.store, id)
		if !ok {
			continue
		}

		// Size may follow the renderable; the box always re-centers on the
		// current position, so stale bounds never survive into a pair check.
		if r, ok := ecs.Get[*ecs.Renderable](s.store, id); ok && r.Width > 0 && r.Height > 0 {
			col.Width = r.Width
			col.Height = r.Height
		}
		col.Bounds = ecs.AABBAround(tr.Position, col.Width, col.Height)

		boxes = append(boxes, candidate{id: id, collider: col})
	}

	s.contacts = s.contacts[:0]
	now := time.Now()

	for i := 0; i < len(boxes); i++ {
		for j := i + 1; j < len(boxes); j++ {
			a, b := boxes[i], boxes[j]
			if !Collidable(a.collider.Layer, b.collider.Layer) {
				continue
			}
			if !a.collider.Bounds.Overlaps(b.collider.Bounds) {
				continue
			}

			contact := makeContact(a, b, now)
			s.contacts = append(s.contacts, contact)

			payload := CollisionEvent{EntityA: a.id, EntityB: b.id, Contact: contact}
			if a.collider.IsTrigger || b.collider.IsTrigger {
				s.bus.Emit(bus.Event{Type: EventTriggerActivated, Data: payload})
				continue
			}
			s.bus.Emit(bus.Event{Type: EventCollisionDetected, Data: payload})

			s.resolve(a, b, contact)
		}
	}
	return nil
}

// makeContact computes penetration along the axis with the smaller overlap
// (minimum-translation heuristic) and a unit normal on that axis pointing
// from a toward b.
func makeContact(a, b candidate, now time.Time) Contact {
	ab, bb := a.collider.Bounds, b.collider.Bounds

	overlapX := min(ab.Max.X, bb.Max.X) - max(ab.Min.X, bb.Min.X)
	overlapY := min(ab.Max.Y, bb.Max.Y) - max(ab.Min.Y, bb.Min.Y)

	var normal ecs.Vec2
	var penetration float64
	if overlapX < overlapY {
		penetration = overlapX
		if ab.Center().X < bb.Center().X {
			normal = ecs.Vec2{X: 1}
		} else {
			normal = ecs.Vec2{X: -1}
		}
	} else {
		penetration = overlapY
		if ab.Center().Y < bb.Center().Y {
			normal = ecs.Vec2{Y: 1}
		} else {
			normal = ecs.Vec2{Y: -1}
		}
	}

	point := ecs.Vec2{
		X: (max(ab.Min.X, bb.Min.X) + min(ab.Max.X, bb.Max.X)) / 2,
		Y: (max(ab.Min.Y, bb.Min.Y) + min(ab.Max.Y, bb.Max.Y)) / 2,
	}

	return Contact{
		EntityA:     a.id,
		EntityB:     b.id,
		Normal:      normal,
		Penetration: penetration,
		Point:       point,
		Timestamp:   now,
	}
}

// resolve applies an impulse along the contact normal and separates the pair
// positionally. Static sides never move; a side without a Velocity component
// is treated as stationary but can still be pushed out if non-static.
func (s *System) resolve(a, b candidate, contact Contact) {
	// Two statics flagged as colliding get no impulse and no separation;
	// their combined inverse mass is zero and must not be divided by.
	if a.collider.IsStatic && b.collider.IsStatic {
		return
	}

	invA := inverseMass(a.collider)
	invB := inverseMass(b.collider)
	if invA+invB <= 0 {
		return
	}

	velA, _ := ecs.Get[*ecs.Velocity](s.store, a.id)
	velB, _ := ecs.Get[*ecs.Velocity](s.store, b.id)

	var va, vb ecs.Vec2
	if velA != nil {
		va = velA.Linear
	}
	if velB != nil {
		vb = velB.Linear
	}

	// Relative velocity along the normal; positive means already separating,
	// in which case resolving again would inject energy.
	alongNormal := vb.Sub(va).Dot(contact.Normal)
	if alongNormal > 0 {
		return
	}

	restitution := min(a.collider.Restitution, b.collider.Restitution)
	impulse := -(1 + restitution) * alongNormal / (invA + invB)

	if velA != nil && !a.collider.IsStatic {
		velA.Linear = velA.Linear.Sub(contact.Normal.Scale(impulse * invA))
	}
	if velB != nil && !b.collider.IsStatic {
		velB.Linear = velB.Linear.Add(contact.Normal.Scale(impulse * invB))
	}

	s.separate(a, b, contact, invA, invB)
}

// separate removes the overlap along the normal, split by inverse-mass
// share so heavier sides move less and static sides not at all.
func (s *System) separate(a, b candidate, contact Contact, invA, invB float64) {
	total := invA + invB
	if total <= 0 {
		return
	}

	if invA > 0 {
		if tr, ok := ecs.Get[*ecs.Transform](s.store, a.id); ok {
			tr.Position = tr.Position.Sub(contact.Normal.Scale(contact.Penetration * invA / total))
		}
	}
	if invB > 0 {
		if tr, ok := ecs.Get[*ecs.Transform](s.store, b.id); ok {
			tr.Position = tr.Position.Add(contact.Normal.Scale(contact.Penetration * invB / total))
		}
	}
}

func inverseMass(c *ecs.Collider) float64 {
	if c.IsStatic || c.Mass <= 0 {
		return 0
	}
	return 1 / c.Mass
}

// QueryBounds returns the ids of all colliders whose current bounding box
// strictly overlaps the given bounds. Linear scan per call.
func (s *System) QueryBounds(bounds ecs.AABB) []ecs.EntityID {
	var out []ecs.EntityID
	for _, id := range s.store.EntitiesWithAll(ecs.ComponentCollider, ecs.ComponentTransform) {
		if s.currentBounds(id).Overlaps(bounds) {
			out = append(out, id)
		}
	}
	return out
}

// QueryPoint returns the ids of all colliders whose current bounding box
// contains the given point, borders included.
func (s *System) QueryPoint(point ecs.Vec2) []ecs.EntityID {
	var out []ecs.EntityID
	for _, id := range s.store.EntitiesWithAll(ecs.ComponentCollider, ecs.ComponentTransform) {
		if s.currentBounds(id).Contains(point) {
			out = append(out, id)
		}
	}
	return out
}

func (s *System) currentBounds(id ecs.EntityID) ecs.AABB {
	col, ok := ecs.Get[*ecs.Collider](s.store, id)
	if !ok {
		return ecs.AABB{}
	}
	tr, ok := ecs.Get[*ecs.Transform](s.store, id)
	if !ok {
		return col.Bounds
	}
	return ecs.AABBAround(tr.Position, col.Width, col.Height)
}
