package server

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/tickforge/tickforge/internal/core/ecs"
	"github.com/tickforge/tickforge/internal/core/engine"
	"github.com/tickforge/tickforge/pkg/sequence"
)

// RenderableState mirrors the renderable component on the wire.
type RenderableState struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Color  string  `json:"color"`
	Shape  string  `json:"shape"`
	Layer  int     `json:"layer"`
}

// EntityState is one entity's slice of the broadcast state. Entities without
// a renderable carry position/rotation/scale only.
type EntityState struct {
	ID         ecs.EntityID     `json:"id"`
	Position   ecs.Vec2         `json:"position"`
	Rotation   float64          `json:"rotation"`
	Scale      ecs.Vec2         `json:"scale"`
	Renderable *RenderableState `json:"renderable,omitempty"`
}

// StateStats is the per-snapshot performance block.
type StateStats struct {
	FPS         float64 `json:"fps"`
	EntityCount int     `json:"entityCount"`
	DeltaTime   float64 `json:"deltaTime"`
}

// GameState is the payload broadcast to every client. Entities are sorted
// ascending by render layer so clients can paint in order; entities without
// a renderable sort as layer 0, ties break on entity id.
type GameState struct {
	Entities  []EntityState `json:"entities"`
	Stats     StateStats    `json:"stats"`
	Timestamp int64         `json:"timestamp"`
	Checksum  string        `json:"checksum"`
}

// Snapshot extracts the current broadcast state from the store.
func Snapshot(store *ecs.Store, stats engine.Stats) *GameState {
	var entities []EntityState
	for _, id := range store.EntitiesWith(ecs.ComponentTransform) {
		tr, ok := ecs.Get[*ecs.Transform](store, id)
		if !ok {
			continue
		}
		es := EntityState{
			ID:       id,
			Position: tr.Position,
			Rotation: tr.Rotation,
			Scale:    tr.Scale,
		}
		if r, ok := ecs.Get[*ecs.Renderable](store, id); ok {
			es.Renderable = &RenderableState{
				Width:  r.Width,
				Height: r.Height,
				Color:  r.Color,
				Shape:  r.Shape,
				Layer:  r.RenderLayer,
			}
		}
		entities = append(entities, es)
	}

	entities = sequence.From(entities).Sort(func(a, b EntityState) bool {
		la, lb := renderLayer(a), renderLayer(b)
		if la != lb {
			return la < lb
		}
		return a.ID < b.ID
	}).Collect()
	if entities == nil {
		entities = []EntityState{} // marshals as [], not null
	}

	return &GameState{
		Entities: entities,
		Stats: StateStats{
			FPS:         stats.FPS,
			EntityCount: store.Count(),
			DeltaTime:   stats.LastDeltaTime,
		},
		Timestamp: time.Now().UnixMilli(),
		Checksum:  checksum(entities),
	}
}

func renderLayer(e EntityState) int {
	if e.Renderable == nil {
		return 0
	}
	return e.Renderable.Layer
}

// checksum lets clients cheaply detect state divergence without diffing the
// whole entity list.
func checksum(entities []EntityState) string {
	data, err := json.Marshal(entities)
	if err != nil {
		return ""
	}
	return strconv.FormatUint(xxhash.Sum64(data), 16)
}
