package physics

import (
	"sync/atomic"

	"github.com/Faultbox/midgard-physics/pkg/math"
)

// StaticRigidBody is an immovable body made of one or more shapes.
type StaticRigidBody struct {
	entity    EntityID
	transform math.Transform
	shapes    []*Shape

	handle     atomic.Uint64
	simulating atomic.Bool
}

// NewStaticRigidBody creates a body that is not yet part of any scene.
func NewStaticRigidBody(entity EntityID, transform math.Transform, shapes ...*Shape) *StaticRigidBody {
	return &StaticRigidBody{
		entity:    entity,
		transform: transform,
		shapes:    shapes,
	}
}

// Entity returns the owning entity.
func (b *StaticRigidBody) Entity() EntityID { return b.entity }

// Transform returns the body's world transform.
func (b *StaticRigidBody) Transform() math.Transform { return b.transform }

// Shapes returns the body's shapes.
func (b *StaticRigidBody) Shapes() []*Shape { return b.shapes }

// ShapeCount returns the number of attached shapes.
func (b *StaticRigidBody) ShapeCount() int { return len(b.shapes) }

// Handle returns the scene handle, or InvalidBodyHandle when not in a scene.
func (b *StaticRigidBody) Handle() BodyHandle { return BodyHandle(b.handle.Load()) }

// IsSimulating reports whether the body takes part in scene queries.
func (b *StaticRigidBody) IsSimulating() bool { return b.simulating.Load() }

// AABB returns the world-space bounds of every shape.
func (b *StaticRigidBody) AABB() math.AABB {
	box := math.NullAABB()
	for _, s := range b.shapes {
		box = box.Union(b.transform.TransformAABB(s.LocalBounds()))
	}
	return box
}

// RayHit is a world-space ray hit against a body.
type RayHit struct {
	Entity   EntityID
	Handle   BodyHandle
	Distance float32
	Position math.Vec3
	Normal   math.Vec3
	Material MaterialID
}

// Raycast returns the closest hit against the body's shapes.
func (b *StaticRigidBody) Raycast(ray math.Ray, maxDistance float32) (RayHit, bool) {
	local := b.transform.InverseTransformRay(ray)

	var best RayHit
	found := false
	for _, s := range b.shapes {
		if s.heightfield == nil {
			continue
		}
		hit, ok := s.heightfield.Raycast(local, maxDistance)
		if !ok || (found && hit.Distance >= best.Distance) {
			continue
		}
		best = RayHit{
			Entity:   b.entity,
			Handle:   b.Handle(),
			Distance: hit.Distance,
			Position: b.transform.TransformPoint(hit.Position),
			Normal:   b.transform.TransformDirection(hit.Normal).Normalize(),
			Material: s.material(hit.MaterialIndex),
		}
		found = true
	}
	return best, found
}
