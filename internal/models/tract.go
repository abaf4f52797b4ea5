// Package models holds the data types shared by the smoothing and quality
// packages: tracts, the seed grid that owns them, the per-point
// quantification produced upstream and the aponeurosis mesh.
package models

import "math"

// Point3 is a tract coordinate in (row, column, slice) order.
type Point3 struct {
	Row   float64 `json:"row"`
	Col   float64 `json:"col"`
	Slice float64 `json:"slice"`
}

// Axis selects one of the three spatial components of a Point3.
type Axis int

const (
	AxisRow Axis = iota
	AxisCol
	AxisSlice
)

// At returns the component of p along axis a.
func (p Point3) At(a Axis) float64 {
	switch a {
	case AxisRow:
		return p.Row
	case AxisCol:
		return p.Col
	case AxisSlice:
		return p.Slice
	default:
		panic("illegal axis")
	}
}

// Set stores v as the component of p along axis a.
func (p *Point3) Set(a Axis, v float64) {
	switch a {
	case AxisRow:
		p.Row = v
	case AxisCol:
		p.Col = v
	case AxisSlice:
		p.Slice = v
	default:
		panic("illegal axis")
	}
}

// Sub returns p - q.
func (p Point3) Sub(q Point3) Point3 {
	return Point3{Row: p.Row - q.Row, Col: p.Col - q.Col, Slice: p.Slice - q.Slice}
}

// Dist returns the Euclidean distance between p and q.
func (p Point3) Dist(q Point3) float64 {
	d := p.Sub(q)
	return math.Sqrt(d.Row*d.Row + d.Col*d.Col + d.Slice*d.Slice)
}

// Tract is one traced fiber: an ordered point sequence whose first point
// is the seed it was propagated from.
type Tract struct {
	Points []Point3 `json:"points"`
}

// Len returns the number of points in the tract. A nil tract has length 0.
func (t *Tract) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Points)
}

// Seed returns the anchor point of the tract.
func (t *Tract) Seed() Point3 {
	return t.Points[0]
}

// Clone returns a deep copy of the tract.
func (t *Tract) Clone() *Tract {
	if t == nil {
		return nil
	}
	pts := make([]Point3, len(t.Points))
	copy(pts, t.Points)
	return &Tract{Points: pts}
}

// TractGrid is the seed lattice. Each cell holds at most one tract; nil
// marks a seed that produced no tract.
type TractGrid struct {
	Rows  int        `json:"rows"`
	Cols  int        `json:"cols"`
	Cells [][]*Tract `json:"cells"`
}

// NewTractGrid allocates an empty rows x cols grid.
func NewTractGrid(rows, cols int) *TractGrid {
	cells := make([][]*Tract, rows)
	for r := range cells {
		cells[r] = make([]*Tract, cols)
	}
	return &TractGrid{Rows: rows, Cols: cols, Cells: cells}
}

// At returns the tract at (r, c), or nil when the cell is empty.
func (g *TractGrid) At(r, c int) *Tract {
	return g.Cells[r][c]
}

// Set stores t at (r, c).
func (g *TractGrid) Set(r, c int, t *Tract) {
	g.Cells[r][c] = t
}

// MaxLen returns the length of the longest tract in the grid.
func (g *TractGrid) MaxLen() int {
	maxLen := 0
	for _, row := range g.Cells {
		for _, t := range row {
			if n := t.Len(); n > maxLen {
				maxLen = n
			}
		}
	}
	return maxLen
}

// Count returns the number of non-empty cells.
func (g *TractGrid) Count() int {
	n := 0
	for _, row := range g.Cells {
		for _, t := range row {
			if t.Len() > 0 {
				n++
			}
		}
	}
	return n
}

// CheckShape reports whether the grid's declared dimensions match its cells.
func (g *TractGrid) CheckShape() bool {
	if g == nil || len(g.Cells) != g.Rows {
		return false
	}
	for _, row := range g.Cells {
		if len(row) != g.Cols {
			return false
		}
	}
	return true
}

// Padded exports the grid as a dense [rows][cols][maxLen][3] array, with
// zero sentinels filling the unused tail of every tract and every empty cell.
// Tracts longer than maxLen are truncated.
func (g *TractGrid) Padded(maxLen int) [][][][3]float64 {
	out := make([][][][3]float64, g.Rows)
	for r := 0; r < g.Rows; r++ {
		out[r] = make([][][3]float64, g.Cols)
		for c := 0; c < g.Cols; c++ {
			out[r][c] = make([][3]float64, maxLen)
			t := g.Cells[r][c]
			for k := 0; k < t.Len() && k < maxLen; k++ {
				p := t.Points[k]
				out[r][c][k] = [3]float64{p.Row, p.Col, p.Slice}
			}
		}
	}
	return out
}

// Box is an inclusive row/column bounding box on the seed grid.
type Box struct {
	MinRow, MaxRow int
	MinCol, MaxCol int
}

// Empty reports whether the box contains no cells.
func (b Box) Empty() bool {
	return b.MaxRow < b.MinRow || b.MaxCol < b.MinCol
}

// Contains reports whether (r, c) lies inside the box.
func (b Box) Contains(r, c int) bool {
	return r >= b.MinRow && r <= b.MaxRow && c >= b.MinCol && c <= b.MaxCol
}
