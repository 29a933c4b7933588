// Package math provides the vector, rotation and bounding volume types shared by the
// physics and terrain packages.
package math

// Vec2 is a 2D vector. Heightfield grid spacing uses X for columns and Y for rows.
type Vec2 struct {
	X, Y float32
}

// Scale returns v * scalar.
func (v Vec2) Scale(s float32) Vec2 {
	return Vec2{v.X * s, v.Y * s}
}

// IsZero reports whether either component is zero.
func (v Vec2) IsZero() bool {
	return v.X == 0 || v.Y == 0
}
