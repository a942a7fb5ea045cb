package engine

import "github.com/tickforge/tickforge/internal/core/ecs"

// System is a unit of per-tick behavior. The loop holds an ordered list of
// systems and knows nothing about concrete types.
//
// Update receives the elapsed wall-clock seconds since the previous tick and
// the entity snapshot taken at tick start. Side effects are limited to
// mutating component data and emitting events. A returned error is fatal to
// the tick: shared state may be partially mutated, so the loop surfaces it
// instead of swallowing it.
type System interface {
	Name() string
	Update(deltaTime float64, entities []ecs.EntityID) error
}

// Func adapts a plain function to the System interface.
type Func struct {
	SystemName string
	UpdateFunc func(deltaTime float64, entities []ecs.EntityID) error
}

func (f Func) Name() string { return f.SystemName }

func (f Func) Update(deltaTime float64, entities []ecs.EntityID) error {
	return f.UpdateFunc(deltaTime, entities)
}
