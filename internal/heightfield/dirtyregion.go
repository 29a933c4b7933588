package heightfield

import (
	gomath "math"
	"sync"

	"github.com/Faultbox/midgard-physics/pkg/math"
)

// DirtyRegion is a half-open rectangle of vertices awaiting resample:
// rows [MinRow, MaxRow) and columns [MinColumn, MaxColumn). The null region
// has every Min at MaxInt and every Max at MinInt.
type DirtyRegion struct {
	MinRow    int
	MaxRow    int
	MinColumn int
	MaxColumn int
}

// NullDirtyRegion returns the empty region.
func NullDirtyRegion() DirtyRegion {
	var d DirtyRegion
	d.SetNull()
	return d
}

// SetNull resets the region to empty.
func (d *DirtyRegion) SetNull() {
	d.MinRow, d.MinColumn = gomath.MaxInt, gomath.MaxInt
	d.MaxRow, d.MaxColumn = gomath.MinInt, gomath.MinInt
}

// IsNull reports whether the region is in the null state.
func (d DirtyRegion) IsNull() bool {
	return d.MinRow > d.MaxRow || d.MinColumn > d.MaxColumn
}

// Add widens the region to cover a rectangle of vertices. Empty rectangles
// are ignored.
func (d *DirtyRegion) Add(startColumn, startRow, numColumns, numRows int) {
	if numColumns <= 0 || numRows <= 0 {
		return
	}
	d.MinColumn = min(d.MinColumn, startColumn)
	d.MinRow = min(d.MinRow, startRow)
	d.MaxColumn = max(d.MaxColumn, startColumn+numColumns)
	d.MaxRow = max(d.MaxRow, startRow+numRows)
}

// AddAABB widens the region by the vertices covering a world-space box. The
// resolved indices may exceed the current grid; use Clamped before reading.
func (d *DirtyRegion) AddAABB(region math.AABB, resolver IndexResolver) {
	startColumn, startRow, numColumns, numRows := resolver.HeightfieldIndicesFromRegion(region)
	d.Add(startColumn, startRow, numColumns, numRows)
}

// Clamped returns the region limited to a grid of the given vertex counts.
func (d DirtyRegion) Clamped(numColumns, numRows int) DirtyRegion {
	return DirtyRegion{
		MinRow:    max(d.MinRow, 0),
		MaxRow:    min(d.MaxRow, numRows),
		MinColumn: max(d.MinColumn, 0),
		MaxColumn: min(d.MaxColumn, numColumns),
	}
}

// NumRows returns the row extent, or 0 when the region is empty.
func (d DirtyRegion) NumRows() int {
	if d.MaxRow <= d.MinRow {
		return 0
	}
	return d.MaxRow - d.MinRow
}

// NumColumns returns the column extent, or 0 when the region is empty.
func (d DirtyRegion) NumColumns() int {
	if d.MaxColumn <= d.MinColumn {
		return 0
	}
	return d.MaxColumn - d.MinColumn
}

// IsEmpty reports whether the region covers no vertex.
func (d DirtyRegion) IsEmpty() bool {
	return d.NumRows() == 0 || d.NumColumns() == 0
}

// dirtyTracker shares a DirtyRegion between the orchestrator and native
// update jobs.
type dirtyTracker struct {
	mu     sync.Mutex
	region DirtyRegion
}

func newDirtyTracker() *dirtyTracker {
	return &dirtyTracker{region: NullDirtyRegion()}
}

func (t *dirtyTracker) snapshot() DirtyRegion {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.region
}

func (t *dirtyTracker) setNull() {
	t.mu.Lock()
	t.region.SetNull()
	t.mu.Unlock()
}

// merge widens the tracked region and returns it clamped to the grid.
func (t *dirtyTracker) merge(add func(*DirtyRegion), numColumns, numRows int) DirtyRegion {
	t.mu.Lock()
	defer t.mu.Unlock()
	add(&t.region)
	return t.region.Clamped(numColumns, numRows)
}

// advanceMinRow marks every row before endRow as resolved. A region with no
// rows left becomes null, so its old columns are not merged back in.
func (t *dirtyTracker) advanceMinRow(endRow int) {
	t.mu.Lock()
	t.region.MinRow = max(t.region.MinRow, endRow)
	if t.region.MinRow >= t.region.MaxRow {
		t.region.SetNull()
	}
	t.mu.Unlock()
}
