package heightfield

import (
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-physics/internal/jobs"
	"github.com/Faultbox/midgard-physics/internal/logger"
	"github.com/Faultbox/midgard-physics/internal/physics"
	"github.com/Faultbox/midgard-physics/pkg/math"
)

type options struct {
	scheduler         jobs.Scheduler
	maxPointsPerBlock int
	materials         *physics.MaterialLibrary
	bake              BakeSource
	useBaked          bool
	refreshContext    RefreshContext
	logger            *zap.Logger
	simulate          bool
}

// Option configures a Collider.
type Option func(*options)

// WithScheduler runs refresh jobs on s. The default is a GOMAXPROCS-wide pool.
func WithScheduler(s jobs.Scheduler) Option {
	return func(o *options) { o.scheduler = s }
}

// WithMaxPointsPerBlock sets the refresh block budget.
func WithMaxPointsPerBlock(n int) Option {
	return func(o *options) { o.maxPointsPerBlock = n }
}

// WithMaterialLibrary resolves material slots through l.
func WithMaterialLibrary(l *physics.MaterialLibrary) Option {
	return func(o *options) { o.materials = l }
}

// WithBakeSource sets where baked heightfields come from. With useBaked the
// collider uses a baked heightfield when one exists and skips resampling.
func WithBakeSource(src BakeSource, useBaked bool) Option {
	return func(o *options) {
		o.bake = src
		o.useBaked = useBaked
	}
}

// WithRefreshContext replaces the collider's JobContext.
func WithRefreshContext(c RefreshContext) Option {
	return func(o *options) { o.refreshContext = c }
}

// WithLogger sets the collider logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithPhysicsEnabled sets whether the rigid body starts simulating. Default true.
func WithPhysicsEnabled(enabled bool) Option {
	return func(o *options) { o.simulate = enabled }
}

// Collider is the heightfield collider of one entity. It listens to the
// entity's provider notifications and keeps a static rigid body in the scene
// matching the provider's data.
type Collider struct {
	orch      *RefreshOrchestrator
	sub       *Subscription
	pool      *jobs.Pool // default scheduler, owned by the collider
	closeOnce sync.Once
}

// NewCollider creates the collider and immediately runs a full refresh, so
// the result does not depend on whether the provider was connected first.
func NewCollider(entity physics.EntityID, bus *ProviderBus, scene *physics.Scene, opts ...Option) *Collider {
	o := options{
		maxPointsPerBlock: DefaultMaxPointsPerBlock,
		simulate:          true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	var pool *jobs.Pool
	if o.scheduler == nil {
		pool = jobs.NewPool(0)
		o.scheduler = pool
	}
	if o.materials == nil {
		o.materials = physics.NewMaterialLibrary()
	}
	if o.refreshContext == nil {
		o.refreshContext = NewJobContext()
	}
	if o.logger == nil {
		o.logger = logger.Named("heightfield")
	}

	c := &Collider{orch: newRefreshOrchestrator(entity, bus, scene, o), pool: pool}
	c.sub = bus.Subscribe(entity, c.OnHeightfieldDataChanged)
	collidersActive.Inc()

	c.orch.Refresh(math.NullAABB(), ChangeSettings)
	return c
}

// Close cancels and waits for any running refresh, then destroys the native
// heightfield and the rigid body. A default pool is drained as well. It is
// safe to call more than once.
func (c *Collider) Close() {
	c.closeOnce.Do(func() {
		c.sub.Unsubscribe()
		c.orch.shutdown()
		if c.pool != nil {
			c.pool.Close()
		}
		collidersActive.Dec()
	})
}

// OnHeightfieldDataChanged handles a provider notification. A null dirty box
// means the whole heightfield.
func (c *Collider) OnHeightfieldDataChanged(dirty math.AABB, mask ChangeMask) {
	c.orch.Refresh(dirty, mask)
}

// AddColliderChangedHandler registers h to run after every refresh cycle that
// completes without being canceled. Handlers run on a job goroutine and must
// not call OnHeightfieldDataChanged or Close synchronously.
func (c *Collider) AddColliderChangedHandler(h func(physics.EntityID)) {
	c.orch.addColliderChangedHandler(h)
}

// EntityID returns the owning entity.
func (c *Collider) EntityID() physics.EntityID {
	return c.orch.entity
}

// ColliderShapeAABB returns the provider's heightfield bounds, or a null box
// when no provider is bound.
func (c *Collider) ColliderShapeAABB() math.AABB {
	p, ok := c.orch.bus.Provider(c.orch.entity)
	if !ok {
		return math.NullAABB()
	}
	return p.HeightfieldAABB()
}

// EnablePhysics makes the rigid body take part in the simulation.
func (c *Collider) EnablePhysics() {
	c.setSimulating(true)
}

// DisablePhysics removes the rigid body from the simulation without
// destroying it.
func (c *Collider) DisablePhysics() {
	c.setSimulating(false)
}

func (c *Collider) setSimulating(on bool) {
	o := c.orch
	o.stateMu.Lock()
	defer o.stateMu.Unlock()

	o.simulate = on
	if !o.handle.IsValid() {
		return
	}
	if on {
		o.scene.EnableSimulationOfBody(o.handle)
	} else {
		o.scene.DisableSimulationOfBody(o.handle)
	}
}

// IsPhysicsEnabled reports whether a rigid body exists and is simulating.
func (c *Collider) IsPhysicsEnabled() bool {
	body := c.SimulatedBody()
	return body != nil && body.IsSimulating()
}

// Raycast intersects a world-space ray with the collider.
func (c *Collider) Raycast(ray math.Ray, maxDistance float32) (physics.RayHit, bool) {
	body := c.SimulatedBody()
	if body == nil {
		return physics.RayHit{}, false
	}

	var hit physics.RayHit
	var ok bool
	c.orch.scene.Read(func() {
		hit, ok = body.Raycast(ray, maxDistance)
	})
	return hit, ok
}

// AABB returns the world bounds of the rigid body, or a null box when there is
// none.
func (c *Collider) AABB() math.AABB {
	body := c.SimulatedBody()
	if body == nil {
		return math.NullAABB()
	}

	box := math.NullAABB()
	c.orch.scene.Read(func() {
		box = body.AABB()
	})
	return box
}

// SimulatedBodyHandle returns the scene handle of the rigid body.
func (c *Collider) SimulatedBodyHandle() physics.BodyHandle {
	c.orch.stateMu.RLock()
	defer c.orch.stateMu.RUnlock()
	return c.orch.handle
}

// SimulatedBody returns the rigid body, or nil.
func (c *Collider) SimulatedBody() *physics.StaticRigidBody {
	c.orch.stateMu.RLock()
	defer c.orch.stateMu.RUnlock()
	return c.orch.body
}

// HeightfieldShape returns the collision shape, or nil.
func (c *Collider) HeightfieldShape() *physics.Shape {
	c.orch.stateMu.RLock()
	defer c.orch.stateMu.RUnlock()
	return c.orch.shape
}

// ShapeConfiguration returns the current shape configuration, or nil before
// the first refresh with a provider. Samples may be mid-update while a
// refresh runs.
func (c *Collider) ShapeConfiguration() *physics.HeightfieldShapeConfiguration {
	c.orch.stateMu.RLock()
	defer c.orch.stateMu.RUnlock()
	return c.orch.config
}

// DirtyRegion returns the vertices still awaiting resample.
func (c *Collider) DirtyRegion() DirtyRegion {
	return c.orch.dirty.snapshot()
}

// Orchestrator exposes the collider's refresh orchestrator.
func (c *Collider) Orchestrator() *RefreshOrchestrator {
	return c.orch
}
