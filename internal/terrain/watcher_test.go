package terrain

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/midgard-physics/pkg/formats"
	"github.com/Faultbox/midgard-physics/pkg/math"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prontera.gat")
	require.NoError(t, formats.WriteGATFile(path, flatGAT(4, 4, 0)))

	g, err := formats.ParseGATFile(path)
	require.NoError(t, err)
	p, rec, _, _ := attached(g)

	w, err := NewWatcher(path, p, 10*time.Millisecond)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	edited := flatGAT(4, 4, 0)
	setCell(edited, 1, 2, 15, formats.GATWalkable)
	require.NoError(t, formats.WriteGATFile(path, edited))

	require.Eventually(t, func() bool {
		return p.GAT().GetCell(1, 2).Heights[0] == -15
	}, 5*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, w.Reloads(), uint64(1))

	n := rec.last(t)
	c, r, nc, nr := p.HeightfieldIndicesFromRegion(n.dirty)
	assert.Equal(t, []int{1, 2, 2, 2}, []int{c, r, nc, nr})
}

func TestWatcherIgnoresOtherFilesAndGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "izlude.gat")
	original := flatGAT(3, 3, 2)
	require.NoError(t, formats.WriteGATFile(path, original))

	p := NewProvider(original, testCellSize, math.Transform{})
	w, err := NewWatcher(path, p, time.Millisecond)
	require.NoError(t, err)
	w.Start(context.Background())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("not a map"), 0o644))
	time.Sleep(100 * time.Millisecond)
	w.Stop()

	assert.Same(t, original, p.GAT())
	assert.Zero(t, w.Reloads())
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alberta.gat")
	require.NoError(t, formats.WriteGATFile(path, flatGAT(2, 2, 0)))

	w, err := NewWatcher(path, NewProvider(flatGAT(2, 2, 0), testCellSize, math.Transform{}), 0)
	require.NoError(t, err)
	w.Start(context.Background())
	w.Stop()
	w.Stop()
}
