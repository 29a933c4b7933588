package physics

import (
	"github.com/Faultbox/midgard-physics/pkg/math"
)

// QuadMeshType selects how the quad whose top-left corner is a sample is split
// into triangles, or marks it as a hole.
type QuadMeshType uint8

const (
	QuadMeshSubdivideUpperLeftToBottomRight QuadMeshType = iota
	QuadMeshSubdivideBottomLeftToTopRight
	QuadMeshHole
)

// HeightMaterialPoint is one heightfield vertex.
type HeightMaterialPoint struct {
	Height        float32
	QuadMeshType  QuadMeshType
	MaterialIndex uint8 // index into the shape's material list
}

// HeightfieldShapeConfiguration is the CPU-side description of a heightfield
// collider: grid size, height bounds and a row-major array of samples.
type HeightfieldShapeConfiguration struct {
	GridResolution  math.Vec2 // spacing between vertices along X (columns) and Z (rows)
	NumColumns      int
	NumRows         int
	MinHeightBounds float32
	MaxHeightBounds float32
	Samples         []HeightMaterialPoint

	// CachedNativeHeightfield is the native heightfield built from this
	// configuration, if any.
	CachedNativeHeightfield *NativeHeightfield
}

// NewHeightfieldShapeConfiguration creates a configuration without samples.
func NewHeightfieldShapeConfiguration(spacing math.Vec2, columns, rows int, minHeight, maxHeight float32) *HeightfieldShapeConfiguration {
	return &HeightfieldShapeConfiguration{
		GridResolution:  spacing,
		NumColumns:      columns,
		NumRows:         rows,
		MinHeightBounds: minHeight,
		MaxHeightBounds: maxHeight,
	}
}

// IsDegenerate reports whether the grid has no rows or no columns.
func (c *HeightfieldShapeConfiguration) IsDegenerate() bool {
	return c.NumColumns <= 0 || c.NumRows <= 0
}

// SameBase reports whether two configurations share grid size, spacing and
// height bounds. Samples are not compared.
func (c *HeightfieldShapeConfiguration) SameBase(other *HeightfieldShapeConfiguration) bool {
	if other == nil {
		return false
	}
	return c.GridResolution == other.GridResolution &&
		c.NumColumns == other.NumColumns &&
		c.NumRows == other.NumRows &&
		c.MinHeightBounds == other.MinHeightBounds &&
		c.MaxHeightBounds == other.MaxHeightBounds
}

// AllocateSamples sizes the sample array for the grid. Degenerate grids get
// no samples.
func (c *HeightfieldShapeConfiguration) AllocateSamples() {
	if c.IsDegenerate() {
		c.Samples = nil
		return
	}
	c.Samples = make([]HeightMaterialPoint, c.NumColumns*c.NumRows)
}

// SampleIndex returns the row-major index of a vertex, or -1 when out of range.
func (c *HeightfieldShapeConfiguration) SampleIndex(column, row int) int {
	if column < 0 || row < 0 || column >= c.NumColumns || row >= c.NumRows {
		return -1
	}
	idx := row*c.NumColumns + column
	if idx >= len(c.Samples) {
		return -1
	}
	return idx
}

// Sample returns the vertex at (column, row).
func (c *HeightfieldShapeConfiguration) Sample(column, row int) (HeightMaterialPoint, bool) {
	idx := c.SampleIndex(column, row)
	if idx < 0 {
		return HeightMaterialPoint{}, false
	}
	return c.Samples[idx], true
}

// ModifySample overwrites one vertex. Out-of-range writes are ignored and
// reported as false.
func (c *HeightfieldShapeConfiguration) ModifySample(column, row int, p HeightMaterialPoint) bool {
	idx := c.SampleIndex(column, row)
	if idx < 0 {
		return false
	}
	c.Samples[idx] = p
	return true
}

// Region copies a rectangle of samples in row-major order. The rectangle must
// lie inside the grid.
func (c *HeightfieldShapeConfiguration) Region(startColumn, startRow, numColumns, numRows int) []HeightMaterialPoint {
	out := make([]HeightMaterialPoint, 0, numColumns*numRows)
	for row := startRow; row < startRow+numRows; row++ {
		base := row*c.NumColumns + startColumn
		out = append(out, c.Samples[base:base+numColumns]...)
	}
	return out
}

// LocalAABB returns the bounds of the grid in shape space using the configured
// height bounds.
func (c *HeightfieldShapeConfiguration) LocalAABB() math.AABB {
	if c.IsDegenerate() {
		return math.NullAABB()
	}
	return math.AABB{
		Min: math.Vec3{X: 0, Y: c.MinHeightBounds, Z: 0},
		Max: math.Vec3{
			X: float32(c.NumColumns-1) * c.GridResolution.X,
			Y: c.MaxHeightBounds,
			Z: float32(c.NumRows-1) * c.GridResolution.Y,
		},
	}
}
