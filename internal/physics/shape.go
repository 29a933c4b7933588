package physics

import (
	"sync"

	"github.com/Faultbox/midgard-physics/pkg/math"
)

// Shape is a heightfield collision shape attached to a rigid body.
type Shape struct {
	heightfield *NativeHeightfield

	mu        sync.RWMutex
	materials []Material
}

// NewHeightfieldShape creates a shape over hf using the resolved material slots.
func NewHeightfieldShape(hf *NativeHeightfield, materials []Material) *Shape {
	return &Shape{
		heightfield: hf,
		materials:   append([]Material(nil), materials...),
	}
}

// Heightfield returns the native heightfield the shape collides against.
func (s *Shape) Heightfield() *NativeHeightfield {
	return s.heightfield
}

// Materials returns a copy of the shape's material slots.
func (s *Shape) Materials() []Material {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Material(nil), s.materials...)
}

// MaterialCount returns the number of material slots.
func (s *Shape) MaterialCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.materials)
}

// SetMaterials replaces the material slots.
func (s *Shape) SetMaterials(materials []Material) {
	s.mu.Lock()
	s.materials = append([]Material(nil), materials...)
	s.mu.Unlock()
}

// material returns the material in slot index, or the default material.
func (s *Shape) material(index uint8) MaterialID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if int(index) < len(s.materials) {
		return s.materials[index].ID
	}
	return DefaultMaterialID
}

// LocalBounds returns the shape-space bounds.
func (s *Shape) LocalBounds() math.AABB {
	if s.heightfield == nil {
		return math.NullAABB()
	}
	return s.heightfield.LocalBounds()
}
