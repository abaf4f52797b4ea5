package models

// Quantification is the per-point description of one tract produced by the
// upstream quantification step. All slices are indexed like the tract's
// points; only the first PointCount entries are meaningful.
type Quantification struct {
	// Angle is the pointwise pennation angle in degrees.
	Angle []float64 `json:"angle"`

	// Curvature is the pointwise curvature in 1/m.
	Curvature []float64 `json:"curvature"`

	// Distance is the cumulative arc length from the seed in mm.
	Distance []float64 `json:"distance"`

	// PointCount is the number of quantified points.
	PointCount int `json:"point_count"`
}

// Clone returns a deep copy of q.
func (q *Quantification) Clone() *Quantification {
	if q == nil {
		return nil
	}
	return &Quantification{
		Angle:      append([]float64(nil), q.Angle...),
		Curvature:  append([]float64(nil), q.Curvature...),
		Distance:   append([]float64(nil), q.Distance...),
		PointCount: q.PointCount,
	}
}

// QuantGrid holds one quantification record per seed cell; nil marks an
// empty cell.
type QuantGrid struct {
	Rows  int                 `json:"rows"`
	Cols  int                 `json:"cols"`
	Cells [][]*Quantification `json:"cells"`
}

// NewQuantGrid allocates an empty rows x cols quantification grid.
func NewQuantGrid(rows, cols int) *QuantGrid {
	cells := make([][]*Quantification, rows)
	for r := range cells {
		cells[r] = make([]*Quantification, cols)
	}
	return &QuantGrid{Rows: rows, Cols: cols, Cells: cells}
}

// CheckShape reports whether the grid's declared dimensions match its cells.
func (g *QuantGrid) CheckShape() bool {
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

// Mesh is the aponeurosis seed surface: one seed coordinate (voxel units)
// and one area element (mm^2) per grid cell.
type Mesh struct {
	Rows   int         `json:"rows"`
	Cols   int         `json:"cols"`
	Points [][]Point3  `json:"points"`
	Area   [][]float64 `json:"area"`
}

// CheckShape reports whether the mesh's declared dimensions match its data.
func (m *Mesh) CheckShape() bool {
	if m == nil || len(m.Points) != m.Rows || len(m.Area) != m.Rows {
		return false
	}
	for r := 0; r < m.Rows; r++ {
		if len(m.Points[r]) != m.Cols || len(m.Area[r]) != m.Cols {
			return false
		}
	}
	return true
}
