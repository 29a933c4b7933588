package math

import "math"

// AABB is an axis-aligned bounding box. A box with any Min component greater than
// the matching Max component is invalid; NullAABB is the canonical invalid box.
type AABB struct {
	Min Vec3
	Max Vec3
}

// NullAABB returns an invalid box that acts as the identity for Union.
func NullAABB() AABB {
	return AABB{
		Min: Vec3{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32},
		Max: Vec3{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32},
	}
}

// NewAABB returns the box spanning the two corners in any order.
func NewAABB(a, b Vec3) AABB {
	return AABB{Min: a.Min(b), Max: a.Max(b)}
}

// IsValid reports whether Min <= Max on every axis.
func (b AABB) IsValid() bool {
	return b.Min.X <= b.Max.X && b.Min.Y <= b.Max.Y && b.Min.Z <= b.Max.Z
}

// Overlaps reports whether two valid boxes share at least one point.
func (b AABB) Overlaps(other AABB) bool {
	if !b.IsValid() || !other.IsValid() {
		return false
	}
	return b.Min.X <= other.Max.X && b.Max.X >= other.Min.X &&
		b.Min.Y <= other.Max.Y && b.Max.Y >= other.Min.Y &&
		b.Min.Z <= other.Max.Z && b.Max.Z >= other.Min.Z
}

// Clamp returns the intersection of the two boxes. The result is invalid when they
// do not overlap.
func (b AABB) Clamp(other AABB) AABB {
	return AABB{Min: b.Min.Max(other.Min), Max: b.Max.Min(other.Max)}
}

// Union returns the smallest box containing both boxes. Invalid boxes are ignored.
func (b AABB) Union(other AABB) AABB {
	switch {
	case !other.IsValid():
		return b
	case !b.IsValid():
		return other
	}
	return AABB{Min: b.Min.Min(other.Min), Max: b.Max.Max(other.Max)}
}

// AddPoint grows the box to contain p.
func (b AABB) AddPoint(p Vec3) AABB {
	return AABB{Min: b.Min.Min(p), Max: b.Max.Max(p)}
}

// Contains reports whether p lies inside or on the box.
func (b AABB) Contains(p Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Center returns the midpoint of the box.
func (b AABB) Center() Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// Extents returns the full size of the box along each axis.
func (b AABB) Extents() Vec3 {
	return b.Max.Sub(b.Min)
}

// Transform returns the box enclosing the eight transformed corners.
// Invalid boxes are returned unchanged.
func (b AABB) Transform(m Mat4) AABB {
	if !b.IsValid() {
		return b
	}
	out := NullAABB()
	for i := 0; i < 8; i++ {
		corner := Vec3{b.Min.X, b.Min.Y, b.Min.Z}
		if i&1 != 0 {
			corner.X = b.Max.X
		}
		if i&2 != 0 {
			corner.Y = b.Max.Y
		}
		if i&4 != 0 {
			corner.Z = b.Max.Z
		}
		out = out.AddPoint(m.TransformVec3(corner))
	}
	return out
}
