package heightfield

import (
	gomath "math"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Faultbox/midgard-physics/internal/physics"
	"github.com/Faultbox/midgard-physics/pkg/math"
)

// fakeProvider is an in-memory heightfield with one unit vertex spacing.
// Requests complete synchronously unless a gate is set or async is on.
type fakeProvider struct {
	mu        sync.Mutex
	columns   int
	rows      int
	spacing   math.Vec2
	minHeight float32
	maxHeight float32
	heights   []float32
	materials []string
	gate      chan struct{}
	async     bool
	latency   time.Duration
	requests  []RowBlock
	events    []string
	inflight  sync.WaitGroup
}

func newFakeProvider(columns, rows int) *fakeProvider {
	return &fakeProvider{
		columns:   columns,
		rows:      rows,
		spacing:   math.Vec2{X: 1, Y: 1},
		minHeight: -10,
		maxHeight: 10,
		heights:   make([]float32, columns*rows),
		materials: []string{"grass", "rock"},
	}
}

func (p *fakeProvider) setHeight(column, row int, h float32) {
	p.mu.Lock()
	p.heights[row*p.columns+column] = h
	p.mu.Unlock()
}

func (p *fakeProvider) height(column, row int) float32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.heights[row*p.columns+column]
}

// fillRegion sets every vertex of a rectangle to h.
func (p *fakeProvider) fillRegion(startColumn, startRow, numColumns, numRows int, h float32) {
	for r := startRow; r < startRow+numRows; r++ {
		for c := startColumn; c < startColumn+numColumns; c++ {
			p.setHeight(c, r, h)
		}
	}
}

func (p *fakeProvider) resize(columns, rows int) {
	p.mu.Lock()
	p.columns, p.rows = columns, rows
	p.heights = make([]float32, columns*rows)
	p.mu.Unlock()
}

func (p *fakeProvider) setMaterials(names ...string) {
	p.mu.Lock()
	p.materials = names
	p.mu.Unlock()
}

// hold makes later requests wait until release is called.
func (p *fakeProvider) hold() {
	p.mu.Lock()
	p.gate = make(chan struct{})
	p.mu.Unlock()
}

func (p *fakeProvider) release() {
	p.mu.Lock()
	if p.gate != nil {
		close(p.gate)
		p.gate = nil
	}
	p.mu.Unlock()
}

func (p *fakeProvider) lastRequest() (RowBlock, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.requests) == 0 {
		return RowBlock{}, false
	}
	return p.requests[len(p.requests)-1], true
}

func (p *fakeProvider) requestCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// sampleEvents returns "request <row>" and "done <row>" entries in the order
// the provider saw them.
func (p *fakeProvider) sampleEvents() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

func (p *fakeProvider) record(event string, row int) {
	p.mu.Lock()
	p.events = append(p.events, fmt.Sprintf("%s %d", event, row))
	p.mu.Unlock()
}

// regionAABB returns the world box spanning a rectangle of vertices.
func (p *fakeProvider) regionAABB(startColumn, startRow, numColumns, numRows int) math.AABB {
	return math.AABB{
		Min: math.Vec3{X: float32(startColumn) * p.spacing.X, Y: p.minHeight, Z: float32(startRow) * p.spacing.Y},
		Max: math.Vec3{
			X: float32(startColumn+numColumns-1) * p.spacing.X,
			Y: p.maxHeight,
			Z: float32(startRow+numRows-1) * p.spacing.Y,
		},
	}
}

func (p *fakeProvider) HeightfieldAABB() math.AABB {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.columns == 0 || p.rows == 0 {
		return math.NullAABB()
	}
	return p.regionAABB(0, 0, p.columns, p.rows)
}

func (p *fakeProvider) HeightfieldTransform() math.Transform {
	return math.Transform{}
}

func (p *fakeProvider) HeightfieldGridSpacing() math.Vec2 {
	return p.spacing
}

func (p *fakeProvider) HeightfieldGridSize() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.columns, p.rows
}

func (p *fakeProvider) HeightfieldHeightBounds() (float32, float32) {
	return p.minHeight, p.maxHeight
}

func (p *fakeProvider) MaterialList() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.materials...)
}

func (p *fakeProvider) HeightfieldIndicesFromRegion(region math.AABB) (int, int, int, int) {
	startColumn := int(gomath.Floor(float64(region.Min.X / p.spacing.X)))
	endColumn := int(gomath.Floor(float64(region.Max.X / p.spacing.X)))
	startRow := int(gomath.Floor(float64(region.Min.Z / p.spacing.Y)))
	endRow := int(gomath.Floor(float64(region.Max.Z / p.spacing.Y)))
	return startColumn, startRow, endColumn - startColumn + 1, endRow - startRow + 1
}

func (p *fakeProvider) UpdateHeightsAndMaterialsAsync(perSample SampleFunc, done func(), startColumn, startRow, numColumns, numRows int) {
	p.mu.Lock()
	p.requests = append(p.requests, RowBlock{startColumn, startRow, numColumns, numRows})
	p.events = append(p.events, fmt.Sprintf("request %d", startRow))
	gate, async, latency := p.gate, p.async, p.latency
	p.mu.Unlock()

	run := func() {
		if gate != nil {
			<-gate
		}
		time.Sleep(latency)
		p.mu.Lock()
		points := make([]physics.HeightMaterialPoint, 0, numColumns*numRows)
		for r := startRow; r < startRow+numRows; r++ {
			for c := startColumn; c < startColumn+numColumns; c++ {
				points = append(points, physics.HeightMaterialPoint{
					Height:        p.heights[r*p.columns+c],
					MaterialIndex: uint8((c + r) % len(p.materials)),
				})
			}
		}
		p.mu.Unlock()

		i := 0
		for r := startRow; r < startRow+numRows; r++ {
			for c := startColumn; c < startColumn+numColumns; c++ {
				perSample(c, r, points[i])
				i++
			}
		}
		p.record("done", startRow)
		done()
	}

	if gate == nil && !async {
		run()
		return
	}
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		run()
	}()
}

// countingContext counts cycle starts and completions and signals cancels.
type countingContext struct {
	*JobContext
	starts    atomic.Int32
	completes atomic.Int32
	canceled  chan struct{}
}

func newCountingContext() *countingContext {
	return &countingContext{JobContext: NewJobContext(), canceled: make(chan struct{}, 1)}
}

func (c *countingContext) Cancel() {
	c.JobContext.Cancel()
	select {
	case c.canceled <- struct{}{}:
	default:
	}
}

func (c *countingContext) drainCancel() {
	select {
	case <-c.canceled:
	default:
	}
}

func (c *countingContext) OnRefreshStart() {
	c.starts.Add(1)
	c.JobContext.OnRefreshStart()
}

func (c *countingContext) OnRefreshComplete() {
	c.completes.Add(1)
	c.JobContext.OnRefreshComplete()
}

// fakeBake serves one baked heightfield.
type fakeBake struct {
	hf    *physics.NativeHeightfield
	loads atomic.Int32
}

func (b *fakeBake) LoadBaked(physics.EntityID) (*physics.NativeHeightfield, bool, error) {
	b.loads.Add(1)
	return b.hf, b.hf != nil, nil
}
