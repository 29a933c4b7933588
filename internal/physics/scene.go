package physics

import (
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-physics/internal/logger"
	"github.com/Faultbox/midgard-physics/pkg/math"
)

// Scene owns simulated bodies. All methods are safe for concurrent use.
type Scene struct {
	mu      sync.RWMutex
	bodies  map[BodyHandle]*StaticRigidBody
	handles handleGenerator
	log     *zap.Logger
}

// NewScene creates an empty scene.
func NewScene() *Scene {
	return &Scene{
		bodies: make(map[BodyHandle]*StaticRigidBody),
		log:    logger.Named("scene"),
	}
}

// AddSimulatedBody inserts a body and returns its handle. The body starts
// disabled.
func (s *Scene) AddSimulatedBody(body *StaticRigidBody) BodyHandle {
	h := s.handles.New()

	s.mu.Lock()
	body.handle.Store(uint64(h))
	body.simulating.Store(false)
	s.bodies[h] = body
	s.mu.Unlock()

	s.log.Debug("body added",
		zap.Stringer("handle", h),
		logger.Entity(body.entity),
		zap.Int("shapes", body.ShapeCount()))
	return h
}

// RemoveSimulatedBody removes a body. It reports false for unknown handles.
func (s *Scene) RemoveSimulatedBody(h BodyHandle) bool {
	s.mu.Lock()
	body, ok := s.bodies[h]
	if ok {
		delete(s.bodies, h)
		body.simulating.Store(false)
		body.handle.Store(uint64(InvalidBodyHandle))
	}
	s.mu.Unlock()

	if ok {
		s.log.Debug("body removed", zap.Stringer("handle", h))
	}
	return ok
}

// EnableSimulationOfBody includes the body in scene queries.
func (s *Scene) EnableSimulationOfBody(h BodyHandle) bool {
	return s.setSimulating(h, true)
}

// DisableSimulationOfBody excludes the body from scene queries.
func (s *Scene) DisableSimulationOfBody(h BodyHandle) bool {
	return s.setSimulating(h, false)
}

func (s *Scene) setSimulating(h BodyHandle, on bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	body, ok := s.bodies[h]
	if !ok {
		return false
	}
	body.simulating.Store(on)
	return true
}

// SimulatedBody resolves a handle, returning nil for unknown handles.
func (s *Scene) SimulatedBody(h BodyHandle) *StaticRigidBody {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bodies[h]
}

// BodyCount returns the number of bodies in the scene.
func (s *Scene) BodyCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bodies)
}

// Write runs fn with exclusive access to the scene. Body geometry such as a
// native heightfield is only mutated inside Write so queries never observe a
// partial update.
func (s *Scene) Write(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// Read runs fn while geometry mutation is excluded.
func (s *Scene) Read(fn func()) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn()
}

// Raycast returns the closest hit against every simulating body.
func (s *Scene) Raycast(ray math.Ray, maxDistance float32) (RayHit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best RayHit
	found := false
	for _, body := range s.bodies {
		if !body.IsSimulating() {
			continue
		}
		hit, ok := body.Raycast(ray, maxDistance)
		if ok && (!found || hit.Distance < best.Distance) {
			best, found = hit, true
		}
	}
	return best, found
}
