package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"path/filepath"
	"testing"
)

// createTestGAT creates a minimal valid GAT file for testing.
func createTestGAT(width, height uint32, cellTypes []GATCellType) []byte {
	buf := new(bytes.Buffer)

	buf.WriteString("GRAT")

	// Version 1.2 (stored as minor, major)
	buf.WriteByte(2)
	buf.WriteByte(1)

	binary.Write(buf, binary.LittleEndian, width)
	binary.Write(buf, binary.LittleEndian, height)

	cellCount := int(width * height)
	for i := 0; i < cellCount; i++ {
		for j := 0; j < 4; j++ {
			binary.Write(buf, binary.LittleEndian, float32(0.0))
		}
		cellType := GATWalkable
		if i < len(cellTypes) {
			cellType = cellTypes[i]
		}
		binary.Write(buf, binary.LittleEndian, uint32(cellType))
	}

	return buf.Bytes()
}

func TestParseGAT_ValidFile(t *testing.T) {
	gat, err := ParseGAT(createTestGAT(4, 4, nil))
	if err != nil {
		t.Fatalf("ParseGAT failed: %v", err)
	}

	if gat.Version.Major != 1 || gat.Version.Minor != 2 {
		t.Errorf("expected version 1.2, got %s", gat.Version)
	}
	if gat.Width != 4 || gat.Height != 4 {
		t.Errorf("expected 4x4, got %dx%d", gat.Width, gat.Height)
	}
	if len(gat.Cells) != 16 {
		t.Errorf("expected 16 cells, got %d", len(gat.Cells))
	}
}

func TestParseGAT_CellTypes(t *testing.T) {
	cellTypes := []GATCellType{
		GATWalkable,
		GATBlocked,
		GATWater,
		GATWalkableWater,
		GATSnipeable,
		GATBlockedSnipe,
	}
	gat, err := ParseGAT(createTestGAT(3, 2, cellTypes))
	if err != nil {
		t.Fatalf("ParseGAT failed: %v", err)
	}

	for i, expected := range cellTypes {
		if gat.Cells[i].Type != expected {
			t.Errorf("cell %d: expected type %v, got %v", i, expected, gat.Cells[i].Type)
		}
	}
}

func TestParseGAT_Errors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"invalid magic", []byte("XXXX\x02\x01\x04\x00\x00\x00\x04\x00\x00\x00"), ErrInvalidGATMagic},
		{"truncated header", []byte("GRAT"), ErrTruncatedGATData},
		{"truncated cells", createTestGAT(4, 4, nil)[:40], ErrTruncatedGATData},
		{"bad version", []byte("GRAT\x00\x09\x04\x00\x00\x00\x04\x00\x00\x00"), ErrUnsupportedGATVersion},
		{"zero width", []byte("GRAT\x02\x01\x00\x00\x00\x00\x04\x00\x00\x00"), ErrInvalidGATDimensions},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseGAT(tt.data)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestWriteGAT_RoundTripFile(t *testing.T) {
	g := NewGAT(3, 2)
	g.GetCell(1, 1).Heights = [4]float32{-1, -2, -3, -4}
	g.GetCell(2, 0).Type = GATWater

	path := filepath.Join(t.TempDir(), "test.gat")
	if err := WriteGATFile(path, g); err != nil {
		t.Fatalf("WriteGATFile failed: %v", err)
	}

	got, err := ParseGATFile(path)
	if err != nil {
		t.Fatalf("ParseGATFile failed: %v", err)
	}
	if _, _, _, _, changed := g.ChangedCells(got); changed {
		t.Error("round trip changed cells")
	}
}

func TestGAT_GetCell(t *testing.T) {
	gat, _ := ParseGAT(createTestGAT(4, 4, nil))

	if gat.GetCell(2, 3) == nil {
		t.Error("GetCell(2, 3) returned nil for valid coordinates")
	}
	for _, c := range [][2]int{{-1, 0}, {0, -1}, {4, 0}, {0, 4}} {
		if gat.GetCell(c[0], c[1]) != nil {
			t.Errorf("GetCell(%d, %d) should return nil", c[0], c[1])
		}
	}
}

func TestGAT_VertexHeight(t *testing.T) {
	g := NewGAT(2, 1)
	// Left cell top-right corner and right cell top-left corner meet at vertex (1, 1)
	g.GetCell(0, 0).Heights = [4]float32{-10, -10, -10, -20}
	g.GetCell(1, 0).Heights = [4]float32{-10, -10, -40, -10}

	if cols, rows := g.VertexCount(); cols != 3 || rows != 2 {
		t.Fatalf("VertexCount = %dx%d, want 3x2", cols, rows)
	}
	if h := g.VertexHeight(1, 1); h != 30 {
		t.Errorf("VertexHeight(1, 1) = %v, want 30", h)
	}
	if h := g.VertexHeight(0, 0); h != 10 {
		t.Errorf("VertexHeight(0, 0) = %v, want 10", h)
	}

	lo, hi := g.AltitudeRange()
	if lo != 10 || hi != 40 {
		t.Errorf("AltitudeRange = (%v, %v), want (10, 40)", lo, hi)
	}
}

func TestGAT_ChangedCells(t *testing.T) {
	a := NewGAT(8, 8)
	b := a.Clone()
	if _, _, _, _, ok := a.ChangedCells(b); ok {
		t.Fatal("clone should be unchanged")
	}

	b.GetCell(2, 3).Heights[0] = -5
	b.GetCell(5, 4).Type = GATBlocked

	minX, minY, maxX, maxY, ok := a.ChangedCells(b)
	if !ok {
		t.Fatal("expected a change")
	}
	if minX != 2 || minY != 3 || maxX != 6 || maxY != 5 {
		t.Errorf("ChangedCells = [%d,%d)-[%d,%d), want [2,3)-[6,5)", minX, minY, maxX, maxY)
	}
}

func TestGATCellType_String(t *testing.T) {
	tests := []struct {
		cellType GATCellType
		expected string
	}{
		{GATWalkable, "Walkable"},
		{GATBlocked, "Blocked"},
		{GATWater, "Water"},
		{GATWalkableWater, "Walkable+Water"},
		{GATSnipeable, "Snipeable"},
		{GATBlockedSnipe, "Blocked+Snipe"},
		{GATCellType(99), "Unknown(99)"},
	}

	for _, tc := range tests {
		if tc.cellType.String() != tc.expected {
			t.Errorf("%d.String() = %q, expected %q", tc.cellType, tc.cellType.String(), tc.expected)
		}
	}
}
