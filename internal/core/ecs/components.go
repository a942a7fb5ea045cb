package ecs

// Component type discriminators. One component of each type per entity.
const (
	ComponentTransform  = "Transform"
	ComponentVelocity   = "Velocity"
	ComponentCollider   = "Collider"
	ComponentInput      = "Input"
	ComponentRenderable = "Renderable"
)

// Component is a plain data record tagged with an immutable type
// discriminator. Components carry no behavior; systems borrow them for the
// duration of one update call and mutate in place.
type Component interface {
	Type() string
}

// Layer classifies a collider for the physics layer table.
type Layer uint8

const (
	LayerDefault Layer = iota
	LayerPlayer
	LayerEnemy
	LayerProjectile
	LayerWall
	LayerPickup
	LayerTrigger
)

// Transform places an entity in the world.
type Transform struct {
	Position Vec2
	Rotation float64 // radians
	Scale    Vec2
}

func (*Transform) Type() string { return ComponentTransform }

func NewTransform(x, y float64) *Transform {
	return &Transform{Position: Vec2{x, y}, Scale: Vec2{1, 1}}
}

// Velocity moves an entity. MaxSpeed of zero means unclamped.
type Velocity struct {
	Linear   Vec2
	MaxSpeed float64
}

func (*Velocity) Type() string { return ComponentVelocity }

// Collider participates in AABB collision detection. Bounds is recomputed
// from the owning entity's Transform every tick before collision checks run;
// it must never be compared across ticks.
type Collider struct {
	Width  float64
	Height float64
	Layer  Layer

	IsTrigger bool
	IsStatic  bool

	Mass        float64 // > 0
	Restitution float64 // [0, 1]
	Friction    float64 // [0, 1]

	Bounds AABB
}

func (*Collider) Type() string { return ComponentCollider }

// NewCollider returns a collider with unit mass and no bounce.
func NewCollider(width, height float64, layer Layer) *Collider {
	return &Collider{Width: width, Height: height, Layer: layer, Mass: 1}
}

// Input holds named key states and mouse data written by an external
// producer and read by systems.
type Input struct {
	Keys    map[string]bool
	Mouse   Vec2
	Buttons map[int]bool
}

func (*Input) Type() string { return ComponentInput }

func NewInput() *Input {
	return &Input{Keys: make(map[string]bool), Buttons: make(map[int]bool)}
}

// Renderable describes how an entity is drawn by the client. RenderLayer
// orders entities in the broadcast state; colliders may also refresh their
// size from it.
type Renderable struct {
	Width       float64
	Height      float64
	Color       string
	Shape       string
	RenderLayer int
}

func (*Renderable) Type() string { return ComponentRenderable }
