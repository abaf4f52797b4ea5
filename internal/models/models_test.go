package models

import (
	"errors"
	"math"
	"testing"
)

func TestParseUnit(t *testing.T) {
	cases := map[string]Unit{"voxel": Voxel, "VOX": Voxel, " mm ": Physical, "physical": Physical}
	for in, want := range cases {
		got, err := ParseUnit(in)
		if err != nil {
			t.Fatalf("ParseUnit(%q) returned error: %v", in, err)
		}
		if got != want {
			t.Errorf("ParseUnit(%q) = %v, want %v", in, got, want)
		}
	}

	if _, err := ParseUnit("inches"); !errors.Is(err, ErrUnknownUnit) {
		t.Errorf("Expected ErrUnknownUnit, got %v", err)
	}
}

// TestVoxelPhysicalRoundTrip verifies that voxel -> mm -> voxel reproduces
// the original coordinates
func TestVoxelPhysicalRoundTrip(t *testing.T) {
	res := Resolution{FieldOfView: 192, MatrixSize: 64, SliceThickness: 7}
	tract := &Tract{Points: []Point3{
		{Row: 10.25, Col: 33.5, Slice: 1},
		{Row: 11.1, Col: 33.9, Slice: 2.75},
		{Row: 12.7, Col: 34.3, Slice: 4.125},
	}}

	back := res.TractToVoxel(res.TractToPhysical(tract))
	for i, p := range tract.Points {
		q := back.Points[i]
		if math.Abs(p.Row-q.Row) > 1e-12 || math.Abs(p.Col-q.Col) > 1e-12 || math.Abs(p.Slice-q.Slice) > 1e-12 {
			t.Errorf("Point %d: expected %+v, got %+v", i, p, q)
		}
	}

	mm := res.ToPhysical(Point3{Row: 1, Col: 2, Slice: 3})
	if mm.Row != 3 || mm.Col != 6 || mm.Slice != 21 {
		t.Errorf("Unexpected physical coordinate %+v", mm)
	}
}

func TestPadded(t *testing.T) {
	g := NewTractGrid(2, 2)
	g.Set(0, 1, &Tract{Points: []Point3{{Row: 1, Col: 2, Slice: 3}, {Row: 4, Col: 5, Slice: 6}}})

	if g.MaxLen() != 2 {
		t.Fatalf("Expected max length 2, got %d", g.MaxLen())
	}
	if g.Count() != 1 {
		t.Errorf("Expected 1 tract, got %d", g.Count())
	}

	p := g.Padded(3)
	if p[0][1][1] != [3]float64{4, 5, 6} {
		t.Errorf("Unexpected padded point %v", p[0][1][1])
	}
	if p[0][1][2] != [3]float64{} || p[1][1][0] != [3]float64{} {
		t.Error("Expected zero sentinels outside tracts")
	}
}

func TestCheckShape(t *testing.T) {
	g := NewTractGrid(3, 4)
	if !g.CheckShape() {
		t.Error("Fresh grid should have a consistent shape")
	}
	g.Cells[1] = g.Cells[1][:2]
	if g.CheckShape() {
		t.Error("Ragged grid should fail the shape check")
	}

	m := &Mesh{Rows: 1, Cols: 1, Points: [][]Point3{{{}}}, Area: [][]float64{{}}}
	if m.CheckShape() {
		t.Error("Mesh with a short area row should fail the shape check")
	}
}

func TestBox(t *testing.T) {
	b := Box{MinRow: 1, MaxRow: 2, MinCol: 0, MaxCol: 0}
	if b.Empty() || !b.Contains(2, 0) || b.Contains(3, 0) {
		t.Errorf("Unexpected box behaviour for %+v", b)
	}
	if !(Box{MinRow: 0, MaxRow: -1}).Empty() {
		t.Error("Inverted box should be empty")
	}
}
