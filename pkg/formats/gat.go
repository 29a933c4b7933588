// Package formats reads and writes the Ragnarok Online GAT (Ground Altitude Table)
// format, which the terrain provider uses as its heightfield source.
package formats

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// GAT format errors.
var (
	ErrInvalidGATMagic       = errors.New("invalid GAT magic: expected 'GRAT'")
	ErrUnsupportedGATVersion = errors.New("unsupported GAT version")
	ErrTruncatedGATData      = errors.New("truncated GAT data")
	ErrInvalidGATDimensions  = errors.New("invalid GAT dimensions")
)

const (
	gatMagic = "GRAT"

	// maxGATDimension bounds the cell grid; real maps stay well under 512x512.
	maxGATDimension = 4096
)

// GATVersion represents the GAT file version.
type GATVersion struct {
	Major uint8
	Minor uint8
}

// String returns the version as "Major.Minor".
func (v GATVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// GATCellType represents the walkability type of a cell.
type GATCellType uint32

// Cell type constants.
const (
	GATWalkable      GATCellType = 0 // Normal walkable ground
	GATBlocked       GATCellType = 1 // Cannot walk through
	GATWater         GATCellType = 2 // Water (walkable with certain skills)
	GATWalkableWater GATCellType = 3 // Shore/shallow water
	GATSnipeable     GATCellType = 4 // Can attack over but not walk (cliffs)
	GATBlockedSnipe  GATCellType = 5 // Blocked but can shoot over
)

// String returns a human-readable cell type name.
func (t GATCellType) String() string {
	switch t {
	case GATWalkable:
		return "Walkable"
	case GATBlocked:
		return "Blocked"
	case GATWater:
		return "Water"
	case GATWalkableWater:
		return "Walkable+Water"
	case GATSnipeable:
		return "Snipeable"
	case GATBlockedSnipe:
		return "Blocked+Snipe"
	default:
		return fmt.Sprintf("Unknown(%d)", t)
	}
}

// IsBlocked returns true if the cell blocks movement.
func (t GATCellType) IsBlocked() bool {
	return t == GATBlocked || t == GATBlockedSnipe
}

// IsWater returns true if the cell contains water.
func (t GATCellType) IsWater() bool {
	return t == GATWater || t == GATWalkableWater
}

// IsSnipeable returns true if projectiles can pass over the cell.
func (t GATCellType) IsSnipeable() bool {
	return t == GATSnipeable || t == GATBlockedSnipe
}

// GATCell represents a single cell in the GAT grid.
type GATCell struct {
	// Heights contains the altitude of each corner:
	// [0] = bottom-left, [1] = bottom-right, [2] = top-left, [3] = top-right
	Heights [4]float32
	Type    GATCellType
}

// GAT represents a parsed Ground Altitude Table file.
// Cells are stored row-major: index = y*Width + x.
type GAT struct {
	Version GATVersion
	Width   uint32
	Height  uint32
	Cells   []GATCell
}

// NewGAT allocates a flat, walkable GAT of the given size.
func NewGAT(width, height uint32) *GAT {
	return &GAT{
		Version: GATVersion{Major: 1, Minor: 2},
		Width:   width,
		Height:  height,
		Cells:   make([]GATCell, int(width)*int(height)),
	}
}

// GetCell returns the cell at the given coordinates.
// Returns nil if coordinates are out of bounds.
func (g *GAT) GetCell(x, y int) *GATCell {
	if x < 0 || y < 0 || x >= int(g.Width) || y >= int(g.Height) {
		return nil
	}
	return &g.Cells[y*int(g.Width)+x]
}

// Clone returns a deep copy.
func (g *GAT) Clone() *GAT {
	c := *g
	c.Cells = append([]GATCell(nil), g.Cells...)
	return &c
}

// VertexCount returns the size of the corner grid shared by neighbouring cells.
func (g *GAT) VertexCount() (columns, rows int) {
	if g.Width == 0 || g.Height == 0 {
		return 0, 0
	}
	return int(g.Width) + 1, int(g.Height) + 1
}

// VertexHeight returns the up-positive altitude of the grid corner at (col, row),
// averaging the matching corner of every cell that touches it. GAT altitudes are
// stored negated (lower value = higher ground).
func (g *GAT) VertexHeight(col, row int) float32 {
	var sum float32
	var n int
	// Corner index of the vertex as seen from each neighbouring cell.
	neighbours := [4]struct{ dx, dy, corner int }{
		{-1, -1, 3}, // cell to the bottom-left sees it as top-right
		{0, -1, 2},
		{-1, 0, 1},
		{0, 0, 0},
	}
	for _, nb := range neighbours {
		if cell := g.GetCell(col+nb.dx, row+nb.dy); cell != nil {
			sum += cell.Heights[nb.corner]
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return -sum / float32(n)
}

// VertexType returns the cell type owning the vertex: the cell whose bottom-left
// corner it is, clamped to the last row/column.
func (g *GAT) VertexType(col, row int) GATCellType {
	x := min(max(col, 0), int(g.Width)-1)
	y := min(max(row, 0), int(g.Height)-1)
	if cell := g.GetCell(x, y); cell != nil {
		return cell.Type
	}
	return GATBlocked
}

// AltitudeRange returns the minimum and maximum up-positive altitude in the map.
func (g *GAT) AltitudeRange() (lo, hi float32) {
	if len(g.Cells) == 0 {
		return 0, 0
	}

	lo = -g.Cells[0].Heights[0]
	hi = lo
	for _, cell := range g.Cells {
		for _, h := range cell.Heights {
			lo = min(lo, -h)
			hi = max(hi, -h)
		}
	}
	return lo, hi
}

// ChangedCells returns the half-open cell rectangle covering every cell that differs
// between g and other. ok is false when nothing changed. Both maps must share
// dimensions.
func (g *GAT) ChangedCells(other *GAT) (minX, minY, maxX, maxY int, ok bool) {
	if g.Width != other.Width || g.Height != other.Height {
		return 0, 0, int(g.Width), int(g.Height), true
	}
	minX, minY = int(g.Width), int(g.Height)
	for i := range g.Cells {
		if g.Cells[i] == other.Cells[i] {
			continue
		}
		x, y := i%int(g.Width), i/int(g.Width)
		minX, minY = min(minX, x), min(minY, y)
		maxX, maxY = max(maxX, x+1), max(maxY, y+1)
		ok = true
	}
	return minX, minY, maxX, maxY, ok
}

// ParseGAT parses a GAT file from raw bytes.
func ParseGAT(data []byte) (*GAT, error) {
	return ParseGATReader(bytes.NewReader(data))
}

// ParseGATFile parses a GAT file from disk.
func ParseGATFile(path string) (*GAT, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening GAT file: %w", err)
	}
	defer f.Close()
	return ParseGATReader(bufio.NewReader(f))
}

type gatHeader struct {
	Magic  [4]byte
	Minor  uint8
	Major  uint8
	Width  uint32
	Height uint32
}

// ParseGATReader parses a GAT stream.
func ParseGATReader(r io.Reader) (*GAT, error) {
	var hdr gatHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: reading header", ErrTruncatedGATData)
	}
	if string(hdr.Magic[:]) != gatMagic {
		return nil, ErrInvalidGATMagic
	}

	version := GATVersion{Major: hdr.Major, Minor: hdr.Minor}
	// Cell layout is identical for 1.x through 3.x
	if version.Major < 1 || version.Major > 3 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedGATVersion, version)
	}
	if hdr.Width == 0 || hdr.Height == 0 || hdr.Width > maxGATDimension || hdr.Height > maxGATDimension {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidGATDimensions, hdr.Width, hdr.Height)
	}

	gat := &GAT{
		Version: version,
		Width:   hdr.Width,
		Height:  hdr.Height,
		Cells:   make([]GATCell, int(hdr.Width)*int(hdr.Height)),
	}
	for i := range gat.Cells {
		if err := binary.Read(r, binary.LittleEndian, &gat.Cells[i]); err != nil {
			return nil, fmt.Errorf("%w: cell %d", ErrTruncatedGATData, i)
		}
	}
	return gat, nil
}

// WriteGAT encodes g in the on-disk GAT layout.
func WriteGAT(w io.Writer, g *GAT) error {
	hdr := gatHeader{
		Minor:  g.Version.Minor,
		Major:  g.Version.Major,
		Width:  g.Width,
		Height: g.Height,
	}
	copy(hdr.Magic[:], gatMagic)

	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, hdr); err != nil {
		return fmt.Errorf("writing GAT header: %w", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, g.Cells); err != nil {
		return fmt.Errorf("writing GAT cells: %w", err)
	}
	return bw.Flush()
}

// WriteGATFile writes g to path, replacing any existing file.
func WriteGATFile(path string, g *GAT) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating GAT file: %w", err)
	}
	if err := WriteGAT(f, g); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
