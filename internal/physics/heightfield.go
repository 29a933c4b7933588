package physics

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	gomath "math"

	"github.com/Faultbox/midgard-physics/pkg/math"
)

// Native heightfield errors.
var (
	ErrDegenerateHeightfield = errors.New("heightfield has no rows or columns")
	ErrRegionOutOfBounds     = errors.New("sample region outside heightfield")
	ErrSampleCountMismatch   = errors.New("sample count does not match region")
	ErrInvalidBakedData      = errors.New("invalid baked heightfield data")
)

const (
	nativeMagic   = "MHF1"
	quantizeSteps = 65534 // int16 range minus the extreme value
)

// nativeSample is the packed per-vertex representation.
type nativeSample struct {
	Height   int16
	Material uint8
	Hole     uint8
}

// NativeHeightfield is the collision-side heightfield. Heights are quantized to
// int16 between the configured height bounds.
//
// The tracked height range covers written vertices only. ModifySamples updates
// it as a side effect and must not be called concurrently on the same
// heightfield. Readers such as
// Raycast are only safe while no ModifySamples call is running; the Scene
// provides that exclusion through Scene.Write.
type NativeHeightfield struct {
	columns int
	rows    int
	spacing math.Vec2

	boundsMin float32
	boundsMax float32
	scale     float32

	samples    []nativeSample
	written    []bool
	numWritten int
	minQ, maxQ int16
}

// NewNativeHeightfield builds a native heightfield from a configuration. When the
// configuration has samples they are copied; otherwise every vertex starts
// unwritten at the minimum height bound.
func NewNativeHeightfield(cfg *HeightfieldShapeConfiguration) (*NativeHeightfield, error) {
	if cfg == nil || cfg.IsDegenerate() {
		return nil, ErrDegenerateHeightfield
	}
	h := &NativeHeightfield{
		columns:   cfg.NumColumns,
		rows:      cfg.NumRows,
		spacing:   cfg.GridResolution,
		boundsMin: cfg.MinHeightBounds,
		boundsMax: cfg.MaxHeightBounds,
		samples:   make([]nativeSample, cfg.NumColumns*cfg.NumRows),
		written:   make([]bool, cfg.NumColumns*cfg.NumRows),
	}
	h.scale = quantizationScale(h.boundsMin, h.boundsMax)

	if len(cfg.Samples) == len(h.samples) {
		for i, p := range cfg.Samples {
			h.store(i, p)
		}
	} else {
		q := h.encode(h.boundsMin)
		for i := range h.samples {
			h.samples[i].Height = q
		}
	}
	return h, nil
}

func quantizationScale(lo, hi float32) float32 {
	if hi <= lo {
		return 1
	}
	return (hi - lo) / quantizeSteps
}

func (h *NativeHeightfield) encode(height float32) int16 {
	mid := (h.boundsMin + h.boundsMax) * 0.5
	v := gomath.Round(float64((height - mid) / h.scale))
	switch {
	case v > gomath.MaxInt16:
		v = gomath.MaxInt16
	case v < -gomath.MaxInt16:
		v = -gomath.MaxInt16
	}
	return int16(v)
}

func (h *NativeHeightfield) decode(q int16) float32 {
	mid := (h.boundsMin + h.boundsMax) * 0.5
	return mid + float32(q)*h.scale
}

// store writes one vertex and grows the height range. It reports whether the
// overwritten height was an extreme of the range, which may now have shrunk.
func (h *NativeHeightfield) store(i int, p HeightMaterialPoint) (stale bool) {
	s := nativeSample{Height: h.encode(p.Height), Material: p.MaterialIndex}
	if p.QuadMeshType == QuadMeshHole {
		s.Hole = 1
	}

	if prev := h.samples[i].Height; h.written[i] {
		stale = prev != s.Height && (prev == h.minQ || prev == h.maxQ)
	} else {
		h.written[i] = true
		h.numWritten++
	}
	h.samples[i] = s

	switch {
	case h.numWritten == 1:
		h.minQ, h.maxQ = s.Height, s.Height
	case s.Height < h.minQ:
		h.minQ = s.Height
	case s.Height > h.maxQ:
		h.maxQ = s.Height
	}
	return stale
}

// recomputeRange rescans every written vertex.
func (h *NativeHeightfield) recomputeRange() {
	first := true
	for i, s := range h.samples {
		if !h.written[i] {
			continue
		}
		if first {
			h.minQ, h.maxQ = s.Height, s.Height
			first = false
			continue
		}
		h.minQ = min(h.minQ, s.Height)
		h.maxQ = max(h.maxQ, s.Height)
	}
}

// Columns returns the number of vertex columns.
func (h *NativeHeightfield) Columns() int { return h.columns }

// Rows returns the number of vertex rows.
func (h *NativeHeightfield) Rows() int { return h.rows }

// ModifySamples overwrites a rectangle of vertices. samples is row-major and
// must hold exactly numColumns*numRows points.
func (h *NativeHeightfield) ModifySamples(startColumn, startRow, numColumns, numRows int, samples []HeightMaterialPoint) error {
	if startColumn < 0 || startRow < 0 || numColumns < 0 || numRows < 0 ||
		startColumn+numColumns > h.columns || startRow+numRows > h.rows {
		return fmt.Errorf("%w: columns [%d,%d) rows [%d,%d) in %dx%d",
			ErrRegionOutOfBounds, startColumn, startColumn+numColumns, startRow, startRow+numRows, h.columns, h.rows)
	}
	if len(samples) != numColumns*numRows {
		return fmt.Errorf("%w: got %d, want %d", ErrSampleCountMismatch, len(samples), numColumns*numRows)
	}

	stale := false
	for r := 0; r < numRows; r++ {
		base := (startRow+r)*h.columns + startColumn
		for c := 0; c < numColumns; c++ {
			if h.store(base+c, samples[r*numColumns+c]) {
				stale = true
			}
		}
	}
	if stale {
		h.recomputeRange()
	}
	return nil
}

// Spacing returns the distance between vertices along X (columns) and Z (rows).
func (h *NativeHeightfield) Spacing() math.Vec2 { return h.spacing }

// HeightBounds returns the quantization bounds.
func (h *NativeHeightfield) HeightBounds() (lo, hi float32) {
	return h.boundsMin, h.boundsMax
}

// HeightRange returns the lowest and highest height currently stored in
// written vertices. Before any write it is the fill height.
func (h *NativeHeightfield) HeightRange() (lo, hi float32) {
	if h.numWritten == 0 {
		fill := h.decode(h.encode(h.boundsMin))
		return fill, fill
	}
	return h.decode(h.minQ), h.decode(h.maxQ)
}

// Sample returns the decoded vertex at (column, row).
func (h *NativeHeightfield) Sample(column, row int) (HeightMaterialPoint, bool) {
	if column < 0 || row < 0 || column >= h.columns || row >= h.rows {
		return HeightMaterialPoint{}, false
	}
	s := h.samples[row*h.columns+column]
	p := HeightMaterialPoint{Height: h.decode(s.Height), MaterialIndex: s.Material}
	if s.Hole != 0 {
		p.QuadMeshType = QuadMeshHole
	}
	return p, true
}

// LocalBounds returns the shape-space bounds using the tracked height range.
func (h *NativeHeightfield) LocalBounds() math.AABB {
	lo, hi := h.HeightRange()
	return math.AABB{
		Min: math.Vec3{X: 0, Y: lo, Z: 0},
		Max: math.Vec3{
			X: float32(h.columns-1) * h.spacing.X,
			Y: hi,
			Z: float32(h.rows-1) * h.spacing.Y,
		},
	}
}

// quadAt maps a shape-space position to a quad and the fractional position inside it.
func (h *NativeHeightfield) quadAt(x, z float32) (col, row int, fx, fz float32, ok bool) {
	if h.columns < 2 || h.rows < 2 || h.spacing.X <= 0 || h.spacing.Y <= 0 {
		return 0, 0, 0, 0, false
	}
	cf := x / h.spacing.X
	rf := z / h.spacing.Y
	if cf < 0 || rf < 0 || cf > float32(h.columns-1) || rf > float32(h.rows-1) {
		return 0, 0, 0, 0, false
	}
	col, row = int(cf), int(rf)
	if col >= h.columns-1 {
		col = h.columns - 2
	}
	if row >= h.rows-1 {
		row = h.rows - 2
	}
	return col, row, cf - float32(col), rf - float32(row), true
}

// HeightAt returns the bilinearly interpolated height at a shape-space
// position. It reports false outside the grid and over holes.
func (h *NativeHeightfield) HeightAt(x, z float32) (float32, bool) {
	col, row, fx, fz, ok := h.quadAt(x, z)
	if !ok {
		return 0, false
	}
	i := row*h.columns + col
	if h.samples[i].Hole != 0 {
		return 0, false
	}

	h00 := h.decode(h.samples[i].Height)
	h10 := h.decode(h.samples[i+1].Height)
	h01 := h.decode(h.samples[i+h.columns].Height)
	h11 := h.decode(h.samples[i+h.columns+1].Height)

	near := h00*(1-fx) + h10*fx
	far := h01*(1-fx) + h11*fx
	return near*(1-fz) + far*fz, true
}

// materialAt returns the material index of the quad under a shape-space position.
func (h *NativeHeightfield) materialAt(x, z float32) uint8 {
	col, row, _, _, ok := h.quadAt(x, z)
	if !ok {
		return 0
	}
	return h.samples[row*h.columns+col].Material
}

// normalAt estimates the surface normal with central differences.
func (h *NativeHeightfield) normalAt(x, z float32) math.Vec3 {
	ex := h.spacing.X * 0.5
	ez := h.spacing.Y * 0.5
	sample := func(px, pz, fallback float32) float32 {
		if v, ok := h.HeightAt(px, pz); ok {
			return v
		}
		return fallback
	}
	center := sample(x, z, 0)
	dx := sample(x+ex, z, center) - sample(x-ex, z, center)
	dz := sample(x, z+ez, center) - sample(x, z-ez, center)
	return math.Vec3{X: -dx / (2 * ex), Y: 1, Z: -dz / (2 * ez)}.Normalize()
}

// HeightfieldHit is a ray hit in shape space.
type HeightfieldHit struct {
	Distance      float32
	Position      math.Vec3
	Normal        math.Vec3
	MaterialIndex uint8
}

// Raycast intersects a shape-space ray with the surface. The ray is marched
// in half-cell steps and the crossing refined by bisection; holes never hit.
func (h *NativeHeightfield) Raycast(ray math.Ray, maxDistance float32) (HeightfieldHit, bool) {
	bounds := h.LocalBounds()
	// Flat fields have zero thickness; pad so the slab test still hits.
	bounds.Min.Y -= 0.01
	bounds.Max.Y += 0.01

	tEnter, tExit, hit := ray.IntersectAABB(bounds)
	if !hit || tEnter > maxDistance {
		return HeightfieldHit{}, false
	}
	if tExit > maxDistance {
		tExit = maxDistance
	}

	step := h.spacing.X
	if h.spacing.Y < step {
		step = h.spacing.Y
	}
	step *= 0.5
	if step <= 0 {
		return HeightfieldHit{}, false
	}

	above := func(t float32) (float32, bool) {
		p := ray.At(t)
		height, ok := h.HeightAt(p.X, p.Z)
		return p.Y - height, ok
	}

	prevT := tEnter
	prevD, prevOK := above(prevT)
	if prevOK && prevD == 0 {
		return h.hitAt(ray, prevT), true
	}
	for t := tEnter; t < tExit; {
		t = min(t+step, tExit)
		d, ok := above(t)
		if ok && prevOK && prevD > 0 && d <= 0 {
			lo, hi := prevT, t
			for i := 0; i < 24; i++ {
				mid := (lo + hi) * 0.5
				if md, mok := above(mid); mok && md > 0 {
					lo = mid
				} else {
					hi = mid
				}
			}
			return h.hitAt(ray, hi), true
		}
		prevT, prevD, prevOK = t, d, ok
	}
	return HeightfieldHit{}, false
}

func (h *NativeHeightfield) hitAt(ray math.Ray, t float32) HeightfieldHit {
	p := ray.At(t)
	return HeightfieldHit{
		Distance:      t,
		Position:      p,
		Normal:        h.normalAt(p.X, p.Z),
		MaterialIndex: h.materialAt(p.X, p.Z),
	}
}

type nativeHeader struct {
	Magic     [4]byte
	Columns   uint32
	Rows      uint32
	SpacingX  float32
	SpacingZ  float32
	BoundsMin float32
	BoundsMax float32
	MinHeight float32
	MaxHeight float32
}

// MarshalBinary encodes the heightfield in little-endian order.
func (h *NativeHeightfield) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	lo, hi := h.HeightRange()
	hdr := nativeHeader{
		Columns:   uint32(h.columns),
		Rows:      uint32(h.rows),
		SpacingX:  h.spacing.X,
		SpacingZ:  h.spacing.Y,
		BoundsMin: h.boundsMin,
		BoundsMax: h.boundsMax,
		MinHeight: lo,
		MaxHeight: hi,
	}
	copy(hdr.Magic[:], nativeMagic)
	if err := binary.Write(&buf, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	if err := binary.Write(&buf, binary.LittleEndian, h.samples); err != nil {
		return nil, fmt.Errorf("writing samples: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes data produced by MarshalBinary.
func (h *NativeHeightfield) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)
	var hdr nativeHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("%w: reading header: %v", ErrInvalidBakedData, err)
	}
	if string(hdr.Magic[:]) != nativeMagic {
		return fmt.Errorf("%w: bad magic %q", ErrInvalidBakedData, hdr.Magic[:])
	}
	if hdr.Columns == 0 || hdr.Rows == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidBakedData, ErrDegenerateHeightfield)
	}
	count := int(hdr.Columns) * int(hdr.Rows)
	if r.Len() != count*binary.Size(nativeSample{}) {
		return fmt.Errorf("%w: expected %d samples", ErrInvalidBakedData, count)
	}
	samples := make([]nativeSample, count)
	if err := binary.Read(r, binary.LittleEndian, samples); err != nil {
		return fmt.Errorf("%w: reading samples: %v", ErrInvalidBakedData, err)
	}

	written := make([]bool, count)
	for i := range written {
		written[i] = true
	}
	*h = NativeHeightfield{
		columns:    int(hdr.Columns),
		rows:       int(hdr.Rows),
		spacing:    math.Vec2{X: hdr.SpacingX, Y: hdr.SpacingZ},
		boundsMin:  hdr.BoundsMin,
		boundsMax:  hdr.BoundsMax,
		scale:      quantizationScale(hdr.BoundsMin, hdr.BoundsMax),
		samples:    samples,
		written:    written,
		numWritten: count,
	}
	h.recomputeRange()
	return nil
}
