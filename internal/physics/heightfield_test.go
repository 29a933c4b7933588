package physics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/midgard-physics/pkg/math"
)

// rampConfig builds a columns x rows grid whose height rises by one unit per column.
func rampConfig(columns, rows int) *HeightfieldShapeConfiguration {
	cfg := NewHeightfieldShapeConfiguration(math.Vec2{X: 1, Y: 1}, columns, rows, 0, float32(columns))
	cfg.AllocateSamples()
	for r := 0; r < rows; r++ {
		for c := 0; c < columns; c++ {
			cfg.ModifySample(c, r, HeightMaterialPoint{Height: float32(c)})
		}
	}
	return cfg
}

func TestNewNativeHeightfieldDegenerate(t *testing.T) {
	_, err := NewNativeHeightfield(NewHeightfieldShapeConfiguration(math.Vec2{X: 1, Y: 1}, 0, 4, 0, 1))
	assert.ErrorIs(t, err, ErrDegenerateHeightfield)

	_, err = NewNativeHeightfield(nil)
	assert.ErrorIs(t, err, ErrDegenerateHeightfield)
}

func TestNativeHeightfieldQuantization(t *testing.T) {
	cfg := rampConfig(5, 3)
	hf, err := NewNativeHeightfield(cfg)
	require.NoError(t, err)

	for c := 0; c < 5; c++ {
		p, ok := hf.Sample(c, 1)
		require.True(t, ok)
		assert.InDelta(t, float32(c), p.Height, 0.001)
	}

	lo, hi := hf.HeightRange()
	assert.InDelta(t, 0, lo, 0.001)
	assert.InDelta(t, 4, hi, 0.001)
}

func TestModifySamplesTracksRange(t *testing.T) {
	hf, err := NewNativeHeightfield(rampConfig(4, 4))
	require.NoError(t, err)

	err = hf.ModifySamples(1, 1, 2, 1, []HeightMaterialPoint{
		{Height: 4, MaterialIndex: 2},
		{Height: 0, QuadMeshType: QuadMeshHole},
	})
	require.NoError(t, err)

	p, _ := hf.Sample(1, 1)
	assert.InDelta(t, 4, p.Height, 0.001)
	assert.Equal(t, uint8(2), p.MaterialIndex)

	p, _ = hf.Sample(2, 1)
	assert.Equal(t, QuadMeshHole, p.QuadMeshType)

	_, hi := hf.HeightRange()
	assert.InDelta(t, 4, hi, 0.001)
}

func TestModifySamplesShrinksRange(t *testing.T) {
	hf, err := NewNativeHeightfield(rampConfig(4, 2))
	require.NoError(t, err)

	flat := make([]HeightMaterialPoint, 4)
	for i := range flat {
		flat[i].Height = 2
	}
	require.NoError(t, hf.ModifySamples(0, 0, 4, 1, flat))
	lo, hi := hf.HeightRange()
	assert.InDelta(t, 0, lo, 0.001, "row 1 still holds the ramp")
	assert.InDelta(t, 3, hi, 0.001)

	require.NoError(t, hf.ModifySamples(0, 1, 4, 1, flat))
	lo, hi = hf.HeightRange()
	assert.InDelta(t, 2, lo, 0.001)
	assert.InDelta(t, 2, hi, 0.001)
}

func TestUnwrittenVerticesExcludedFromRange(t *testing.T) {
	cfg := NewHeightfieldShapeConfiguration(math.Vec2{X: 1, Y: 1}, 3, 3, -10, 10)
	hf, err := NewNativeHeightfield(cfg)
	require.NoError(t, err)

	lo, hi := hf.HeightRange()
	assert.InDelta(t, -10, lo, 0.001)
	assert.InDelta(t, -10, hi, 0.001)

	err = hf.ModifySamples(0, 0, 3, 1, []HeightMaterialPoint{{Height: 4}, {Height: 5}, {Height: 6}})
	require.NoError(t, err)
	lo, hi = hf.HeightRange()
	assert.InDelta(t, 4, lo, 0.001)
	assert.InDelta(t, 6, hi, 0.001)

	box := hf.LocalBounds()
	assert.InDelta(t, 4, box.Min.Y, 0.001)
	assert.InDelta(t, 6, box.Max.Y, 0.001)
}

func TestModifySamplesRejectsBadRegions(t *testing.T) {
	hf, err := NewNativeHeightfield(rampConfig(4, 4))
	require.NoError(t, err)

	err = hf.ModifySamples(3, 0, 2, 1, make([]HeightMaterialPoint, 2))
	assert.ErrorIs(t, err, ErrRegionOutOfBounds)

	err = hf.ModifySamples(0, 0, 2, 2, make([]HeightMaterialPoint, 3))
	assert.ErrorIs(t, err, ErrSampleCountMismatch)
}

func TestHeightAtInterpolates(t *testing.T) {
	hf, err := NewNativeHeightfield(rampConfig(4, 4))
	require.NoError(t, err)

	h, ok := hf.HeightAt(1.5, 2.25)
	require.True(t, ok)
	assert.InDelta(t, 1.5, h, 0.001)

	_, ok = hf.HeightAt(-0.1, 1)
	assert.False(t, ok)
	_, ok = hf.HeightAt(3.5, 1)
	assert.False(t, ok)
}

func TestRaycastHitsSurface(t *testing.T) {
	cfg := NewHeightfieldShapeConfiguration(math.Vec2{X: 2, Y: 2}, 5, 5, -10, 10)
	cfg.AllocateSamples()
	for i := range cfg.Samples {
		cfg.Samples[i] = HeightMaterialPoint{Height: 3, MaterialIndex: 1}
	}
	hf, err := NewNativeHeightfield(cfg)
	require.NoError(t, err)

	ray := math.NewRay(math.Vec3{X: 4, Y: 20, Z: 4}, math.Vec3{Y: -1})
	hit, ok := hf.Raycast(ray, 100)
	require.True(t, ok)
	assert.InDelta(t, 17, hit.Distance, 0.01)
	assert.InDelta(t, 3, hit.Position.Y, 0.01)
	assert.InDelta(t, 1, hit.Normal.Y, 0.001)
	assert.Equal(t, uint8(1), hit.MaterialIndex)

	_, ok = hf.Raycast(ray, 10)
	assert.False(t, ok, "hit beyond max distance")

	miss := math.NewRay(math.Vec3{X: 40, Y: 20, Z: 4}, math.Vec3{Y: -1})
	_, ok = hf.Raycast(miss, 100)
	assert.False(t, ok)
}

func TestRaycastSkipsHoles(t *testing.T) {
	cfg := NewHeightfieldShapeConfiguration(math.Vec2{X: 1, Y: 1}, 3, 3, 0, 1)
	cfg.AllocateSamples()
	cfg.ModifySample(0, 0, HeightMaterialPoint{QuadMeshType: QuadMeshHole})
	hf, err := NewNativeHeightfield(cfg)
	require.NoError(t, err)

	_, ok := hf.Raycast(math.NewRay(math.Vec3{X: 0.5, Y: 5, Z: 0.5}, math.Vec3{Y: -1}), 100)
	assert.False(t, ok)

	_, ok = hf.Raycast(math.NewRay(math.Vec3{X: 1.5, Y: 5, Z: 1.5}, math.Vec3{Y: -1}), 100)
	assert.True(t, ok)
}

func TestNativeHeightfieldBinaryRoundTrip(t *testing.T) {
	hf, err := NewNativeHeightfield(rampConfig(6, 3))
	require.NoError(t, err)

	data, err := hf.MarshalBinary()
	require.NoError(t, err)

	var decoded NativeHeightfield
	require.NoError(t, decoded.UnmarshalBinary(data))
	assert.Equal(t, hf.Columns(), decoded.Columns())
	assert.Equal(t, hf.Rows(), decoded.Rows())
	assert.Equal(t, hf.LocalBounds(), decoded.LocalBounds())

	for c := 0; c < 6; c++ {
		want, _ := hf.Sample(c, 2)
		got, _ := decoded.Sample(c, 2)
		assert.Equal(t, want, got)
	}
}

func TestUnmarshalBinaryRejectsGarbage(t *testing.T) {
	var hf NativeHeightfield
	assert.ErrorIs(t, hf.UnmarshalBinary([]byte("nope")), ErrInvalidBakedData)

	good, err := mustHeightfield(t).MarshalBinary()
	require.NoError(t, err)
	good[0] = 'X'
	assert.ErrorIs(t, hf.UnmarshalBinary(good), ErrInvalidBakedData)

	good[0] = 'M'
	assert.ErrorIs(t, hf.UnmarshalBinary(good[:len(good)-1]), ErrInvalidBakedData)
}

func mustHeightfield(t *testing.T) *NativeHeightfield {
	t.Helper()
	hf, err := NewNativeHeightfield(rampConfig(3, 3))
	require.NoError(t, err)
	return hf
}

func TestShapeConfigurationRegion(t *testing.T) {
	cfg := rampConfig(4, 3)
	region := cfg.Region(1, 1, 2, 2)
	require.Len(t, region, 4)
	assert.Equal(t, float32(1), region[0].Height)
	assert.Equal(t, float32(2), region[1].Height)
	assert.Equal(t, float32(1), region[2].Height)

	assert.False(t, cfg.ModifySample(4, 0, HeightMaterialPoint{}))
	assert.True(t, cfg.SameBase(rampConfig(4, 3)))
	assert.False(t, cfg.SameBase(rampConfig(4, 4)))
}
