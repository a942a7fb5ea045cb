package systems

import (
	"github.com/tickforge/tickforge/internal/core/ecs"
)

// InputName is the registration name of the input system.
const InputName = "input"

// DefaultMoveSpeed is the velocity magnitude applied while a direction key is
// held, unless overridden.
const DefaultMoveSpeed = 200.0

// Directional key names recognized by the input system.
const (
	KeyUp    = "up"
	KeyDown  = "down"
	KeyLeft  = "left"
	KeyRight = "right"
)

// Input translates held directional keys into velocity. Diagonals are
// normalized so holding two keys moves at the same speed as holding one.
// With no keys held the velocity is zeroed, so movement stops the tick after
// release.
type Input struct {
	store     *ecs.Store
	moveSpeed float64
}

// InputOption configures an Input system.
type InputOption func(*Input)

// WithMoveSpeed overrides the applied velocity magnitude.
func WithMoveSpeed(speed float64) InputOption {
	return func(i *Input) {
		if speed > 0 {
			i.moveSpeed = speed
		}
	}
}

// NewInput creates the input system over the given store.
func NewInput(store *ecs.Store, opts ...InputOption) *Input {
	i := &Input{store: store, moveSpeed: DefaultMoveSpeed}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Input) Name() string { return InputName }

func (i *Input) Update(_ float64, _ []ecs.EntityID) error {
	for _, id := range i.store.EntitiesWithAll(ecs.ComponentInput, ecs.ComponentVelocity) {
		in, ok := ecs.Get[*ecs.Input](i.store, id)
		if !ok {
			continue
		}
		vel, ok := ecs.Get[*ecs.Velocity](i.store, id)
		if !ok {
			continue
		}

		var dir ecs.Vec2
		if in.Keys[KeyUp] {
			dir.Y -= 1
		}
		if in.Keys[KeyDown] {
			dir.Y += 1
		}
		if in.Keys[KeyLeft] {
			dir.X -= 1
		}
		if in.Keys[KeyRight] {
			dir.X += 1
		}

		vel.Linear = dir.Normalized().Scale(i.moveSpeed)
	}
	return nil
}
