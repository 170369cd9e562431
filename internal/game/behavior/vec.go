package behavior

import (
	"math"

	"github.com/cory-johannsen/henhouse/internal/game/dice"
)

// Vec3 is a world-space position. Y is vertical; movement happens on the XZ plane.
type Vec3 struct {
	X, Y, Z float64
}

// Add returns the component-wise sum v + o.
func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

// Sub returns the component-wise difference v - o.
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

// Scale returns v with every component multiplied by f.
func (v Vec3) Scale(f float64) Vec3 { return Vec3{v.X * f, v.Y * f, v.Z * f} }

// Len returns the Euclidean length of v.
//
// Postcondition: Returns a value >= 0.
func (v Vec3) Len() float64 { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }

// Dist returns the Euclidean distance between v and o.
func (v Vec3) Dist(o Vec3) float64 { return v.Sub(o).Len() }

// MoveToward returns the point reached by moving from v toward target by at most step.
//
// Postcondition: never overshoots target.
func (v Vec3) MoveToward(target Vec3, step float64) Vec3 {
	d := target.Sub(v)
	dist := d.Len()
	if dist <= step || dist == 0 {
		return target
	}
	return v.Add(d.Scale(step / dist))
}

// Bounds is an axis-aligned box.
type Bounds struct {
	Min, Max Vec3
}

// Contains reports whether p lies inside b (inclusive).
func (b Bounds) Contains(p Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Clamp returns p moved to the nearest point inside b.
func (b Bounds) Clamp(p Vec3) Vec3 {
	return Vec3{
		X: math.Max(b.Min.X, math.Min(b.Max.X, p.X)),
		Y: math.Max(b.Min.Y, math.Min(b.Max.Y, p.Y)),
		Z: math.Max(b.Min.Z, math.Min(b.Max.Z, p.Z)),
	}
}

// RandomPoint returns a uniformly drawn point inside b.
func (b Bounds) RandomPoint(src dice.Source) Vec3 {
	return Vec3{
		X: b.Min.X + src.Float64()*(b.Max.X-b.Min.X),
		Y: b.Min.Y + src.Float64()*(b.Max.Y-b.Min.Y),
		Z: b.Min.Z + src.Float64()*(b.Max.Z-b.Min.Z),
	}
}
