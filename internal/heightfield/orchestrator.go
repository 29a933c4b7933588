package heightfield

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-physics/internal/jobs"
	"github.com/Faultbox/midgard-physics/internal/logger"
	"github.com/Faultbox/midgard-physics/internal/physics"
	"github.com/Faultbox/midgard-physics/pkg/math"
)

// DefaultMaxPointsPerBlock is the default refresh block budget (512x512 vertices).
const DefaultMaxPointsPerBlock = 512 * 512

var tracer = otel.Tracer("midgard.heightfield")

// BakeSource supplies prebuilt native heightfields.
type BakeSource interface {
	// LoadBaked reports false when nothing is baked for the entity.
	LoadBaked(entity physics.EntityID) (*physics.NativeHeightfield, bool, error)
}

// PartitionRows splits a region into blocks of whole rows so that each block
// holds at most maxPointsPerBlock vertices, but never less than one row.
func PartitionRows(region DirtyRegion, maxPointsPerBlock int) []RowBlock {
	rows, columns := region.NumRows(), region.NumColumns()
	if rows == 0 || columns == 0 {
		return nil
	}

	rowsPerBlock := max(1, maxPointsPerBlock/columns)
	blocks := make([]RowBlock, 0, (rows+rowsPerBlock-1)/rowsPerBlock)
	for start := region.MinRow; start < region.MaxRow; start += rowsPerBlock {
		blocks = append(blocks, RowBlock{
			StartColumn: region.MinColumn,
			StartRow:    start,
			NumColumns:  columns,
			NumRows:     min(rowsPerBlock, region.MaxRow-start),
		})
	}
	return blocks
}

// slotUpdate is the result of a material-only refresh attempt.
type slotUpdate int

const (
	slotsNeedRebuild slotUpdate = iota
	slotsUpdated
	slotsInvalid
)

// RefreshOrchestrator turns change notifications into refresh cycles for one
// entity. Refresh calls are serialized; at most one cycle runs at a time.
type RefreshOrchestrator struct {
	entity    physics.EntityID
	bus       *ProviderBus
	scene     *physics.Scene
	materials *physics.MaterialLibrary
	sched     jobs.Scheduler
	jobCtx    RefreshContext
	bake      BakeSource
	useBaked  bool
	maxPoints int
	log       *zap.Logger

	refreshMu sync.Mutex
	closed    bool

	stateMu  sync.RWMutex
	config   *physics.HeightfieldShapeConfiguration
	shape    *physics.Shape
	body     *physics.StaticRigidBody
	handle   physics.BodyHandle
	simulate bool
	baked    bool

	dirty *dirtyTracker

	handlersMu sync.RWMutex
	handlers   []func(physics.EntityID)

	launches atomic.Uint64
}

func newRefreshOrchestrator(entity physics.EntityID, bus *ProviderBus, scene *physics.Scene, o options) *RefreshOrchestrator {
	return &RefreshOrchestrator{
		entity:    entity,
		bus:       bus,
		scene:     scene,
		materials: o.materials,
		sched:     o.scheduler,
		jobCtx:    o.refreshContext,
		bake:      o.bake,
		useBaked:  o.useBaked,
		maxPoints: o.maxPointsPerBlock,
		log:       o.logger.With(logger.Entity(entity)),
		simulate:  o.simulate,
		dirty:     newDirtyTracker(),
	}
}

// Refresh handles one change notification. A null dirty box means the whole
// heightfield. It returns once the new cycle, if any, has been launched.
func (o *RefreshOrchestrator) Refresh(dirty math.AABB, mask ChangeMask) {
	o.refreshMu.Lock()
	defer o.refreshMu.Unlock()

	if o.closed {
		instrumentRequest(outcomeClosed)
		return
	}

	cycle := uuid.New()
	ctx, span := tracer.Start(context.Background(), "heightfield.Refresh", trace.WithAttributes(
		attribute.String("heightfield.entity", o.entity.String()),
		attribute.String("heightfield.cycle", cycle.String()),
		attribute.String("heightfield.mask", mask.String()),
	))
	defer span.End()

	log := o.log.With(logger.Cycle(cycle), logger.Mask(mask))
	outcome := o.refresh(ctx, log, dirty, mask)

	span.SetAttributes(attribute.String("heightfield.outcome", outcome))
	instrumentRequest(outcome)
	log.Debug("refresh request handled", zap.String("outcome", outcome))
}

func (o *RefreshOrchestrator) refresh(ctx context.Context, log *zap.Logger, dirty math.AABB, mask ChangeMask) string {
	provider, ok := o.bus.Provider(o.entity)
	if !ok {
		return outcomeNoProvider
	}

	if mask == ChangeSurfaceMapping {
		switch o.updateMaterialSlots(provider, log) {
		case slotsUpdated:
			return outcomeMaterialOnly
		case slotsInvalid:
			return outcomeInvalidShapes
		}
		// The slot count changed, so material indices in the samples are stale.
		mask |= ChangeSettings
	}

	if o.useBaked && o.bake != nil && o.refreshFromBake(provider, log) {
		return outcomeBaked
	}

	hfAABB := provider.HeightfieldAABB()
	request := hfAABB
	if dirty.IsValid() {
		request = dirty.Clamp(hfAABB)
	}
	if hfAABB.IsValid() && !mask.Has(ChangeSettings) && !request.Overlaps(hfAABB) {
		return outcomeDisjoint
	}

	o.jobCtx.Cancel()
	o.jobCtx.BlockUntilComplete()

	columns, rows := provider.HeightfieldGridSize()
	minHeight, maxHeight := provider.HeightfieldHeightBounds()
	base := physics.NewHeightfieldShapeConfiguration(provider.HeightfieldGridSpacing(), columns, rows, minHeight, maxHeight)

	o.stateMu.RLock()
	cfg := o.config
	o.stateMu.RUnlock()

	rebuild := cfg == nil || mask.Has(ChangeSettings) || !cfg.SameBase(base)
	if rebuild {
		cfg = o.rebuild(base, provider, log)
	}
	if cfg.IsDegenerate() {
		return outcomeDegenerate
	}

	add := func(d *DirtyRegion) { d.AddAABB(request, provider) }
	if rebuild {
		add = func(d *DirtyRegion) {
			d.SetNull()
			d.Add(0, 0, columns, rows)
		}
	}
	region := o.dirty.merge(add, columns, rows)
	if region.IsEmpty() {
		return outcomeEmpty
	}

	o.launch(ctx, log, cfg, region)
	return outcomeLaunched
}

// updateMaterialSlots re-resolves material slots in place when the slot count
// is unchanged.
func (o *RefreshOrchestrator) updateMaterialSlots(provider Provider, log *zap.Logger) slotUpdate {
	o.stateMu.RLock()
	body := o.body
	o.stateMu.RUnlock()

	if body == nil {
		return slotsNeedRebuild
	}
	if n := body.ShapeCount(); n != 1 {
		log.Error("heightfield rigid body must have exactly one shape", zap.Int("shapes", n))
		return slotsInvalid
	}

	materials := o.materials.Resolve(provider.MaterialList())
	shape := body.Shapes()[0]
	if shape.MaterialCount() != len(materials) {
		return slotsNeedRebuild
	}
	shape.SetMaterials(materials)
	return slotsUpdated
}

// refreshFromBake uses a baked native heightfield instead of resampling. It
// reports false when nothing is baked.
func (o *RefreshOrchestrator) refreshFromBake(provider Provider, log *zap.Logger) bool {
	o.stateMu.RLock()
	cfg, body, baked := o.config, o.body, o.baked
	o.stateMu.RUnlock()

	if baked {
		if body == nil {
			o.attachBody(cfg, provider)
		}
		return true
	}

	hf, ok, err := o.bake.LoadBaked(o.entity)
	if err != nil {
		log.Warn("loading baked heightfield failed, resampling", zap.Error(err))
		return false
	}
	if !ok {
		log.Debug("no baked heightfield, resampling")
		return false
	}

	o.jobCtx.Cancel()
	o.jobCtx.BlockUntilComplete()
	o.destroyBody()

	lo, hi := hf.HeightBounds()
	cfg = physics.NewHeightfieldShapeConfiguration(hf.Spacing(), hf.Columns(), hf.Rows(), lo, hi)
	cfg.CachedNativeHeightfield = hf

	o.stateMu.Lock()
	o.config = cfg
	o.baked = true
	o.stateMu.Unlock()

	o.dirty.setNull()
	o.attachBody(cfg, provider)
	log.Info("using baked heightfield", zap.Int("columns", hf.Columns()), zap.Int("rows", hf.Rows()))
	return true
}

// rebuild replaces the shape configuration, native heightfield and rigid body.
func (o *RefreshOrchestrator) rebuild(base *physics.HeightfieldShapeConfiguration, provider Provider, log *zap.Logger) *physics.HeightfieldShapeConfiguration {
	o.destroyBody()

	// Created before the samples exist, so no vertex counts as written.
	var hf *physics.NativeHeightfield
	var err error
	if !base.IsDegenerate() {
		hf, err = physics.NewNativeHeightfield(base)
	}
	base.AllocateSamples()

	o.stateMu.Lock()
	o.config = base
	o.baked = false
	o.stateMu.Unlock()

	if base.IsDegenerate() {
		log.Debug("heightfield is degenerate",
			zap.Int("columns", base.NumColumns),
			zap.Int("rows", base.NumRows))
		return base
	}

	if err != nil {
		log.Error("creating native heightfield failed", zap.Error(err))
		return base
	}
	base.CachedNativeHeightfield = hf
	o.attachBody(base, provider)

	log.Info("heightfield rebuilt",
		zap.Int("columns", base.NumColumns),
		zap.Int("rows", base.NumRows),
		zap.Float32("min_height", base.MinHeightBounds),
		zap.Float32("max_height", base.MaxHeightBounds))
	return base
}

// attachBody creates a static body over the configuration's native heightfield
// and adds it to the scene.
func (o *RefreshOrchestrator) attachBody(cfg *physics.HeightfieldShapeConfiguration, provider Provider) {
	shape := physics.NewHeightfieldShape(cfg.CachedNativeHeightfield, o.materials.Resolve(provider.MaterialList()))
	body := physics.NewStaticRigidBody(o.entity, provider.HeightfieldTransform(), shape)
	handle := o.scene.AddSimulatedBody(body)

	o.stateMu.Lock()
	defer o.stateMu.Unlock()
	o.shape, o.body, o.handle = shape, body, handle
	if o.simulate {
		o.scene.EnableSimulationOfBody(handle)
	}
}

// destroyBody drops the native heightfield, then removes the rigid body.
func (o *RefreshOrchestrator) destroyBody() {
	o.stateMu.Lock()
	handle := o.handle
	if o.config != nil {
		o.config.CachedNativeHeightfield = nil
	}
	o.shape = nil
	o.body = nil
	o.handle = physics.InvalidBodyHandle
	o.stateMu.Unlock()

	if handle.IsValid() {
		o.scene.RemoveSimulatedBody(handle)
	}
}

// launch builds and starts the job graph for one cycle.
//
// For block i, shape_i resamples and its provider callback starts join_i;
// native_i waits for join_i and native_{i-1}; shape_{i+1} waits for join_i.
// A block's shape update can therefore overlap the previous block's native
// update while each kind of step stays sequential.
func (o *RefreshOrchestrator) launch(ctx context.Context, log *zap.Logger, cfg *physics.HeightfieldShapeConfiguration, region DirtyRegion) {
	blocks := PartitionRows(region, o.maxPoints)

	g := jobs.NewGraph(ctx, "heightfield_refresh", o.sched)
	begun := time.Now()
	completion := g.NewJob("refresh_complete", func(context.Context) {
		o.complete(log, begun)
	})

	starts := make([]*jobs.Job, 0, 2*len(blocks)+1)
	var prevJoin, prevNative *jobs.Job
	for _, b := range blocks {
		join := g.NewJob("shape_update_done", nil)

		shapeStep := &ShapeConfigUpdater{
			Context: o.jobCtx,
			Bus:     o.bus,
			Entity:  o.entity,
			Config:  cfg,
			Block:   b,
			Next:    join,
		}
		shapeJob := g.NewJob("shape_update", shapeStep.Run)
		if prevJoin != nil {
			shapeJob.DependsOn(prevJoin)
		}

		nativeStep := &NativeHeightfieldUpdater{
			Context:     o.jobCtx,
			Scene:       o.scene,
			Heightfield: cfg.CachedNativeHeightfield,
			Config:      cfg,
			Block:       b,
			Log:         log,
			dirty:       o.dirty,
		}
		nativeJob := g.NewJob("native_update", nativeStep.Run).DependsOn(join)
		if prevNative != nil {
			nativeJob.DependsOn(prevNative)
		}

		starts = append(starts, shapeJob, nativeJob)
		prevJoin, prevNative = join, nativeJob
	}
	completion.DependsOn(prevNative)
	starts = append(starts, completion)

	o.launches.Add(1)
	instrumentLaunch(len(blocks))
	log.Debug("refresh cycle launched",
		zap.Int("blocks", len(blocks)),
		logger.Region(region.MinRow, region.MaxRow, region.MinColumn, region.MaxColumn))

	o.jobCtx.OnRefreshStart()
	for _, j := range starts {
		j.Start()
	}
}

// complete is the terminal job of every cycle.
func (o *RefreshOrchestrator) complete(log *zap.Logger, begun time.Time) {
	canceled := o.jobCtx.IsCanceled()
	if !canceled {
		o.dirty.setNull()
		o.notifyColliderChanged()
	}
	instrumentCycle(canceled, begun)
	log.Debug("refresh cycle finished",
		zap.Bool("canceled", canceled),
		zap.Duration("elapsed", time.Since(begun)))
	o.jobCtx.OnRefreshComplete()
}

func (o *RefreshOrchestrator) addColliderChangedHandler(h func(physics.EntityID)) {
	o.handlersMu.Lock()
	o.handlers = append(o.handlers, h)
	o.handlersMu.Unlock()
}

func (o *RefreshOrchestrator) notifyColliderChanged() {
	o.handlersMu.RLock()
	hs := make([]func(physics.EntityID), len(o.handlers))
	copy(hs, o.handlers)
	o.handlersMu.RUnlock()

	for _, h := range hs {
		h(o.entity)
	}
}

// shutdown cancels and drains the running cycle, then destroys the native
// heightfield and rigid body. Later Refresh calls are ignored.
func (o *RefreshOrchestrator) shutdown() {
	o.refreshMu.Lock()
	defer o.refreshMu.Unlock()

	if o.closed {
		return
	}
	o.closed = true

	o.jobCtx.Cancel()
	o.jobCtx.BlockUntilComplete()
	o.destroyBody()
}

// Launches returns the number of cycles launched so far.
func (o *RefreshOrchestrator) Launches() uint64 {
	return o.launches.Load()
}
