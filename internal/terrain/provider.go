// Package terrain serves Ragnarok Online GAT maps as heightfield providers.
//
// The GAT cell grid becomes a vertex grid one larger in each direction; vertex
// heights average the matching corners of neighbouring cells. Edits replace
// the map copy-on-write and publish the changed rectangle on the provider bus.
package terrain

import (
	gomath "math"
	"runtime"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/midgard-physics/internal/heightfield"
	"github.com/Faultbox/midgard-physics/internal/logger"
	"github.com/Faultbox/midgard-physics/internal/physics"
	"github.com/Faultbox/midgard-physics/pkg/formats"
	"github.com/Faultbox/midgard-physics/pkg/math"
)

// Material slots published by every GAT provider.
const (
	MaterialGround = "ground"
	MaterialRock   = "rock"
	MaterialWater  = "water"
	MaterialCliff  = "cliff"
)

var materialSlots = []string{MaterialGround, MaterialRock, MaterialWater, MaterialCliff}

// heightBoundsStep rounds the published height bounds outwards so small edits
// keep the heightfield base stable.
const heightBoundsStep = 50

// rowsPerTask is the number of vertex rows one sampling goroutine handles.
const rowsPerTask = 32

// materialIndex maps a cell type to its material slot.
func materialIndex(t formats.GATCellType) uint8 {
	switch {
	case t.IsWater():
		return 2
	case t.IsSnipeable():
		return 3
	case t.IsBlocked():
		return 1
	default:
		return 0
	}
}

// Provider is a heightfield.Provider backed by a GAT map.
type Provider struct {
	cellSize  float32
	transform math.Transform
	log       *zap.Logger

	mu  sync.RWMutex
	gat *formats.GAT

	bindMu sync.Mutex
	bus    *heightfield.ProviderBus
	entity physics.EntityID

	inflight sync.WaitGroup
}

// NewProvider wraps gat. cellSize is the world size of one GAT cell.
func NewProvider(gat *formats.GAT, cellSize float32, transform math.Transform) *Provider {
	return &Provider{
		cellSize:  cellSize,
		transform: transform,
		log:       logger.Named("terrain"),
		gat:       gat,
	}
}

// Attach connects the provider to entity on bus. Later edits are published
// there.
func (p *Provider) Attach(bus *heightfield.ProviderBus, entity physics.EntityID) {
	p.bindMu.Lock()
	p.bus, p.entity = bus, entity
	p.bindMu.Unlock()

	bus.Connect(entity, p)
}

// Detach disconnects the provider from its bus.
func (p *Provider) Detach() {
	p.bindMu.Lock()
	bus, entity := p.bus, p.entity
	p.bus = nil
	p.bindMu.Unlock()

	if bus != nil {
		bus.Disconnect(entity)
	}
}

// GAT returns the current map. Callers must not modify it; use ApplyEdit.
func (p *Provider) GAT() *formats.GAT {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.gat
}

// Wait blocks until every outstanding sampling request has finished.
func (p *Provider) Wait() {
	p.inflight.Wait()
}

// ApplyEdit applies edit to a copy of the map, swaps it in and publishes the
// change.
func (p *Provider) ApplyEdit(edit func(g *formats.GAT)) {
	p.mu.Lock()
	old := p.gat
	next := old.Clone()
	edit(next)
	p.gat = next
	p.mu.Unlock()

	p.publish(old, next)
}

// Replace swaps in a freshly loaded map and publishes the difference.
func (p *Provider) Replace(next *formats.GAT) {
	p.mu.Lock()
	old := p.gat
	p.gat = next
	p.mu.Unlock()

	p.publish(old, next)
}

func (p *Provider) publish(old, next *formats.GAT) {
	p.bindMu.Lock()
	bus, entity := p.bus, p.entity
	p.bindMu.Unlock()
	if bus == nil {
		return
	}

	if old.Width != next.Width || old.Height != next.Height {
		p.log.Info("map resized",
			zap.Uint32("width", next.Width),
			zap.Uint32("height", next.Height))
		bus.NotifyChanged(entity, math.NullAABB(), heightfield.ChangeSettings)
		return
	}

	minX, minY, maxX, maxY, ok := old.ChangedCells(next)
	if !ok {
		return
	}
	// Cell (x, y) owns vertices x..x+1 and y..y+1.
	lo, hi := heightBounds(next)
	box := math.AABB{
		Min: math.Vec3{X: float32(minX) * p.cellSize, Y: lo, Z: float32(minY) * p.cellSize},
		Max: math.Vec3{X: float32(maxX) * p.cellSize, Y: hi, Z: float32(maxY) * p.cellSize},
	}
	p.log.Debug("map edited",
		zap.Int("min_x", minX), zap.Int("min_y", minY),
		zap.Int("max_x", maxX), zap.Int("max_y", maxY))
	bus.NotifyChanged(entity, p.transform.TransformAABB(box), heightfield.ChangeSurfaceData)
}

func heightBounds(g *formats.GAT) (lo, hi float32) {
	lo, hi = g.AltitudeRange()
	lo = float32(gomath.Floor(float64(lo/heightBoundsStep))) * heightBoundsStep
	hi = float32(gomath.Floor(float64(hi/heightBoundsStep))+1) * heightBoundsStep
	return lo, hi
}

// HeightfieldAABB returns the world bounds of the vertex grid.
func (p *Provider) HeightfieldAABB() math.AABB {
	g := p.GAT()
	columns, rows := g.VertexCount()
	if columns == 0 || rows == 0 {
		return math.NullAABB()
	}
	lo, hi := heightBounds(g)
	box := math.AABB{
		Min: math.Vec3{X: 0, Y: lo, Z: 0},
		Max: math.Vec3{X: float32(columns-1) * p.cellSize, Y: hi, Z: float32(rows-1) * p.cellSize},
	}
	return p.transform.TransformAABB(box)
}

func (p *Provider) HeightfieldTransform() math.Transform {
	return p.transform
}

func (p *Provider) HeightfieldGridSpacing() math.Vec2 {
	return math.Vec2{X: p.cellSize, Y: p.cellSize}
}

func (p *Provider) HeightfieldGridSize() (numColumns, numRows int) {
	return p.GAT().VertexCount()
}

func (p *Provider) HeightfieldHeightBounds() (minHeight, maxHeight float32) {
	return heightBounds(p.GAT())
}

func (p *Provider) MaterialList() []string {
	return append([]string(nil), materialSlots...)
}

// HeightfieldIndicesFromRegion returns every vertex whose position lies in
// region, padded outwards to whole vertices.
func (p *Provider) HeightfieldIndicesFromRegion(region math.AABB) (startColumn, startRow, numColumns, numRows int) {
	local := p.transform.InverseTransformAABB(region)
	startColumn = int(gomath.Floor(float64(local.Min.X / p.cellSize)))
	startRow = int(gomath.Floor(float64(local.Min.Z / p.cellSize)))
	endColumn := int(gomath.Ceil(float64(local.Max.X / p.cellSize)))
	endRow := int(gomath.Ceil(float64(local.Max.Z / p.cellSize)))
	return startColumn, startRow, endColumn - startColumn + 1, endRow - startRow + 1
}

// UpdateHeightsAndMaterialsAsync samples the rectangle from a snapshot of the
// map on a background goroutine. Row groups are sampled in parallel; perSample
// is called from a single goroutine.
func (p *Provider) UpdateHeightsAndMaterialsAsync(perSample heightfield.SampleFunc, done func(), startColumn, startRow, numColumns, numRows int) {
	g := p.GAT()

	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		defer done()

		points := sampleRect(g, startColumn, startRow, numColumns, numRows)
		for i, pt := range points {
			perSample(startColumn+i%numColumns, startRow+i/numColumns, pt)
		}
	}()
}

func sampleRect(g *formats.GAT, startColumn, startRow, numColumns, numRows int) []physics.HeightMaterialPoint {
	if numColumns <= 0 || numRows <= 0 {
		return nil
	}
	points := make([]physics.HeightMaterialPoint, numColumns*numRows)

	var eg errgroup.Group
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for first := 0; first < numRows; first += rowsPerTask {
		last := min(first+rowsPerTask, numRows)
		eg.Go(func() error {
			for r := first; r < last; r++ {
				row := startRow + r
				for c := 0; c < numColumns; c++ {
					col := startColumn + c
					points[r*numColumns+c] = physics.HeightMaterialPoint{
						Height:        g.VertexHeight(col, row),
						MaterialIndex: materialIndex(g.VertexType(col, row)),
					}
				}
			}
			return nil
		})
	}
	_ = eg.Wait()
	return points
}
