package heightfield

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-physics/internal/logger"
	"github.com/Faultbox/midgard-physics/internal/physics"
)

// Trigger releases the next stage of a refresh graph. *jobs.Job satisfies it.
type Trigger interface {
	Start()
}

// RowBlock is one rectangle of a partitioned dirty region.
type RowBlock struct {
	StartColumn int
	StartRow    int
	NumColumns  int
	NumRows     int
}

// IsEmpty reports whether the block covers no vertex.
func (b RowBlock) IsEmpty() bool {
	return b.NumColumns <= 0 || b.NumRows <= 0
}

// Points returns the number of vertices in the block.
func (b RowBlock) Points() int {
	if b.IsEmpty() {
		return 0
	}
	return b.NumColumns * b.NumRows
}

// ShapeConfigUpdater resamples one block from the provider into the shape
// configuration. Its real completion is the provider's done callback, which
// releases Next.
type ShapeConfigUpdater struct {
	Context RefreshContext
	Bus     *ProviderBus
	Entity  physics.EntityID
	Config  *physics.HeightfieldShapeConfiguration
	Block   RowBlock
	Next    Trigger

	once sync.Once
}

// Run is the job body.
func (u *ShapeConfigUpdater) Run(context.Context) {
	if u.Context.IsCanceled() || u.Block.IsEmpty() {
		u.complete()
		return
	}

	provider, ok := u.Bus.Provider(u.Entity)
	if !ok {
		// Nothing to resample from.
		u.complete()
		return
	}

	instrumentPointsResampled(u.Block.Points())
	cfg := u.Config
	provider.UpdateHeightsAndMaterialsAsync(
		func(column, row int, point physics.HeightMaterialPoint) {
			cfg.ModifySample(column, row, point)
		},
		u.complete,
		u.Block.StartColumn, u.Block.StartRow, u.Block.NumColumns, u.Block.NumRows,
	)
}

func (u *ShapeConfigUpdater) complete() {
	u.once.Do(u.Next.Start)
}

// NativeHeightfieldUpdater copies one block of the shape configuration into
// the native heightfield. Blocks of the same heightfield must run one at a
// time.
type NativeHeightfieldUpdater struct {
	Context     RefreshContext
	Scene       *physics.Scene
	Heightfield *physics.NativeHeightfield
	Config      *physics.HeightfieldShapeConfiguration
	Block       RowBlock
	Log         *zap.Logger

	dirty *dirtyTracker
}

// Run is the job body.
func (u *NativeHeightfieldUpdater) Run(context.Context) {
	if u.Context.IsCanceled() || u.Block.IsEmpty() || u.Heightfield == nil {
		return
	}

	b := u.Block
	u.Log.Debug("native block update started", logger.Rows(b.StartRow, b.NumRows))
	samples := u.Config.Region(b.StartColumn, b.StartRow, b.NumColumns, b.NumRows)

	var err error
	u.Scene.Write(func() {
		err = u.Heightfield.ModifySamples(b.StartColumn, b.StartRow, b.NumColumns, b.NumRows, samples)
	})
	if err != nil {
		u.Log.Error("native heightfield update failed", logger.Rows(b.StartRow, b.NumRows), zap.Error(err))
		return
	}

	if u.dirty != nil {
		u.dirty.advanceMinRow(b.StartRow + b.NumRows)
	}
	u.Log.Debug("native block updated", logger.Rows(b.StartRow, b.NumRows))
}
