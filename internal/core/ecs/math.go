package ecs

import "math"

// Vec2 is a 2D vector in world units.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }

func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

func (v Vec2) Scale(s float64) Vec2 { return Vec2{v.X * s, v.Y * s} }

func (v Vec2) Dot(o Vec2) float64 { return v.X*o.X + v.Y*o.Y }

func (v Vec2) Length() float64 { return math.Hypot(v.X, v.Y) }

// Normalized returns the unit vector, or the zero vector for zero input.
func (v Vec2) Normalized() Vec2 {
	l := v.Length()
	if l == 0 {
		return Vec2{}
	}
	return Vec2{v.X / l, v.Y / l}
}

// AABB is an axis-aligned bounding box held as min/max corners.
type AABB struct {
	Min Vec2
	Max Vec2
}

// AABBAround builds a box of the given size centered on position.
func AABBAround(center Vec2, width, height float64) AABB {
	half := Vec2{width / 2, height / 2}
	return AABB{Min: center.Sub(half), Max: center.Add(half)}
}

func (a AABB) Center() Vec2 {
	return Vec2{(a.Min.X + a.Max.X) / 2, (a.Min.Y + a.Max.Y) / 2}
}

func (a AABB) Width() float64 { return a.Max.X - a.Min.X }

func (a AABB) Height() float64 { return a.Max.Y - a.Min.Y }

// Overlaps reports strict overlap on both axes. Boxes that merely touch on an
// edge do not overlap.
func (a AABB) Overlaps(b AABB) bool {
	return a.Min.X < b.Max.X && a.Max.X > b.Min.X &&
		a.Min.Y < b.Max.Y && a.Max.Y > b.Min.Y
}

// Contains reports whether the point lies inside the box, borders included.
func (a AABB) Contains(p Vec2) bool {
	return p.X >= a.Min.X && p.X <= a.Max.X &&
		p.Y >= a.Min.Y && p.Y <= a.Max.Y
}
