// Package systems contains the engine's built-in gameplay systems. They are
// plain engine.System implementations over the component store; projects
// register them on a loop alongside their own systems.
package systems

import (
	"github.com/tickforge/tickforge/internal/core/ecs"
)

// MovementName is the registration name of the movement system.
const MovementName = "movement"

// Movement integrates velocity into position each tick. When a velocity
// carries a positive MaxSpeed, the linear velocity is clamped to that
// magnitude after integrating, preserving direction, so the next tick moves
// at the capped speed.
type Movement struct {
	store *ecs.Store
}

// NewMovement creates the movement system over the given store.
func NewMovement(store *ecs.Store) *Movement {
	return &Movement{store: store}
}

func (m *Movement) Name() string { return MovementName }

func (m *Movement) Update(deltaTime float64, _ []ecs.EntityID) error {
	for _, id := range m.store.EntitiesWithAll(ecs.ComponentTransform, ecs.ComponentVelocity) {
		tr, ok := ecs.Get[*ecs.Transform](m.store, id)
		if !ok {
			continue
		}
		vel, ok := ecs.Get[*ecs.Velocity](m.store, id)
		if !ok {
			continue
		}

		tr.Position = tr.Position.Add(vel.Linear.Scale(deltaTime))

		if vel.MaxSpeed > 0 {
			if speed := vel.Linear.Length(); speed > vel.MaxSpeed {
				vel.Linear = vel.Linear.Scale(vel.MaxSpeed / speed)
			}
		}
	}
	return nil
}
