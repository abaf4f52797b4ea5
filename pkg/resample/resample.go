// Package resample selects a spatially uniform subset of tracts across an
// irregular aponeurosis mesh.
//
// The mesh is partitioned by cumulative in-mesh distance rather than by row
// and column index, so narrow parts of the mesh are not oversampled. Each
// partition (region) that holds at least MinRegionMembers eligible tracts
// contributes the single tract closest to the regional medians.
package resample

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"fibertrack/internal/models"
	"fibertrack/internal/stats"
)

// MinRegionMembers is the smallest number of eligible tracts a region needs
// to contribute a representative. Smaller regions are dropped.
const MinRegionMembers = 3

// Outside marks cells outside the active box in RegionIDs.
const Outside = -1

// ErrInvalidInput is returned for malformed resampling inputs.
var ErrInvalidInput = errors.New("invalid resampling input")

// Metrics are the per-tract properties that drive representative selection.
type Metrics struct {
	Angle     float64
	Curvature float64
	Length    float64
}

// Cell addresses one seed on the grid.
type Cell struct {
	Row, Col int
}

// Params configures a resampling run.
type Params struct {
	// Frequency is the requested sampling density in tracts per mm.
	Frequency float64

	// Resolution converts the voxel mesh to mm.
	Resolution models.Resolution

	// Logger receives the clamp notice. Nil means slog.Default().
	Logger *slog.Logger
}

// Input is the settled state the resampler reads.
type Input struct {
	Mesh     *models.Mesh
	Box      models.Box
	Eligible [][]bool
	Metrics  [][]Metrics
}

// Region is one distance bucket of the mesh.
type Region struct {
	ID int

	// Members are the eligible cells of the region in row-major order.
	Members []Cell

	// Area is the total aponeurosis area of every in-box cell of the region.
	Area float64

	// Median holds the regional medians; zero when the region was dropped.
	Median Metrics

	// Representative is the selected cell, nil when the region was dropped.
	Representative *Cell
}

// Result is the outcome of a resampling run.
type Result struct {
	// Selected marks the one representative per contributing region.
	Selected [][]bool

	// RegionIDs holds the region of every cell, Outside beyond the box.
	RegionIDs [][]int

	// Regions lists every region in ascending ID order.
	Regions []Region

	RequestedFrequency float64
	MaxFrequency       float64
	EffectiveFrequency float64
	Clamped            bool

	// Notice is a human-readable message set when the frequency was clamped.
	Notice string
}

// Select partitions the mesh into regions and picks one representative
// tract per sufficiently populated region.
func Select(in Input, p Params) (*Result, error) {
	if !(p.Frequency > 0) {
		return nil, fmt.Errorf("%w: sampling frequency must be > 0, got %v", ErrInvalidInput, p.Frequency)
	}
	if !p.Resolution.Valid() {
		return nil, fmt.Errorf("%w: resolution %+v must be positive", ErrInvalidInput, p.Resolution)
	}
	if !in.Mesh.CheckShape() {
		return nil, fmt.Errorf("%w: mesh shape is inconsistent", ErrInvalidInput)
	}
	rows, cols := in.Mesh.Rows, in.Mesh.Cols
	if len(in.Eligible) != rows || len(in.Metrics) != rows {
		return nil, fmt.Errorf("%w: eligibility and metrics must have %d rows", ErrInvalidInput, rows)
	}
	for r := 0; r < rows; r++ {
		if len(in.Eligible[r]) != cols || len(in.Metrics[r]) != cols {
			return nil, fmt.Errorf("%w: row %d must have %d columns", ErrInvalidInput, r, cols)
		}
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	res := &Result{
		Selected:           make([][]bool, rows),
		RegionIDs:          make([][]int, rows),
		RequestedFrequency: p.Frequency,
		EffectiveFrequency: p.Frequency,
	}
	for r := 0; r < rows; r++ {
		res.Selected[r] = make([]bool, cols)
		res.RegionIDs[r] = make([]int, cols)
		for c := range res.RegionIDs[r] {
			res.RegionIDs[r][c] = Outside
		}
	}
	box := in.Box
	if box.Empty() {
		res.MaxFrequency = math.Inf(1)
		return res, nil
	}
	if box.MinRow < 0 || box.MinCol < 0 || box.MaxRow >= rows || box.MaxCol >= cols {
		return nil, fmt.Errorf("%w: box %+v exceeds the %dx%d mesh", ErrInvalidInput, box, rows, cols)
	}

	mm := make([][]models.Point3, rows)
	var inBox []models.Point3
	for r := box.MinRow; r <= box.MaxRow; r++ {
		mm[r] = make([]models.Point3, cols)
		for c := box.MinCol; c <= box.MaxCol; c++ {
			mm[r][c] = p.Resolution.ToPhysical(in.Mesh.Points[r][c])
			inBox = append(inBox, mm[r][c])
		}
	}

	res.MaxFrequency = 1 / minSpacing(inBox)
	if res.RequestedFrequency > res.MaxFrequency {
		res.EffectiveFrequency = res.MaxFrequency
		res.Clamped = true
		res.Notice = fmt.Sprintf("requested sampling frequency %.4g/mm exceeds the mesh maximum of %.4g/mm; using %.4g/mm",
			res.RequestedFrequency, res.MaxFrequency, res.EffectiveFrequency)
		logger.Warn(res.Notice)
	}
	period := 1 / res.EffectiveFrequency

	cumRow, cumCol := cumulativeDistance(mm, box)
	byID := make(map[int]*Region)
	for r := box.MinRow; r <= box.MaxRow; r++ {
		for c := box.MinCol; c <= box.MaxCol; c++ {
			id := int(math.Floor((cumRow[r][c] + cumCol[r][c]) / period))
			res.RegionIDs[r][c] = id
			reg, ok := byID[id]
			if !ok {
				reg = &Region{ID: id}
				byID[id] = reg
			}
			reg.Area += stats.ZeroNaN(in.Mesh.Area[r][c])
			if in.Eligible[r][c] {
				reg.Members = append(reg.Members, Cell{Row: r, Col: c})
			}
		}
	}

	ids := make([]int, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	contributing := 0
	for _, id := range ids {
		reg := byID[id]
		if len(reg.Members) >= MinRegionMembers {
			pickRepresentative(reg, in.Metrics)
			res.Selected[reg.Representative.Row][reg.Representative.Col] = true
			contributing++
		}
		res.Regions = append(res.Regions, *reg)
	}

	logger.Info("uniform resampling complete",
		"frequency", res.EffectiveFrequency, "regions", len(ids), "selected", contributing)
	return res, nil
}

// cumulativeDistance returns, for every in-box cell, the path length along
// the mesh from the box's first row (cumRow) and first column (cumCol).
func cumulativeDistance(mm [][]models.Point3, box models.Box) (cumRow, cumCol [][]float64) {
	cumRow = make([][]float64, len(mm))
	cumCol = make([][]float64, len(mm))
	for r := box.MinRow; r <= box.MaxRow; r++ {
		cumRow[r] = make([]float64, len(mm[r]))
		cumCol[r] = make([]float64, len(mm[r]))
		for c := box.MinCol; c <= box.MaxCol; c++ {
			if r > box.MinRow {
				cumRow[r][c] = cumRow[r-1][c] + mm[r][c].Dist(mm[r-1][c])
			}
			if c > box.MinCol {
				cumCol[r][c] = cumCol[r][c-1] + mm[r][c].Dist(mm[r][c-1])
			}
		}
	}
	return cumRow, cumCol
}

// pickRepresentative sets the regional medians and selects the member whose
// summed relative deviation from them is smallest. Ties go to the earliest
// member.
func pickRepresentative(reg *Region, metrics [][]Metrics) {
	n := len(reg.Members)
	angle := make([]float64, n)
	curv := make([]float64, n)
	length := make([]float64, n)
	for i, m := range reg.Members {
		v := metrics[m.Row][m.Col]
		angle[i], curv[i], length[i] = v.Angle, v.Curvature, v.Length
	}
	reg.Median = Metrics{
		Angle:     stats.Median(angle),
		Curvature: stats.Median(curv),
		Length:    stats.Median(length),
	}

	best, bestScore := 0, math.Inf(1)
	for i := range reg.Members {
		score := deviation(angle[i], reg.Median.Angle) +
			deviation(curv[i], reg.Median.Curvature) +
			deviation(length[i], reg.Median.Length)
		if score < bestScore {
			best, bestScore = i, score
		}
	}
	rep := reg.Members[best]
	reg.Representative = &rep
}

// deviation is |v/median - 1|. A zero median only matches a zero value.
func deviation(v, median float64) float64 {
	if median == 0 {
		if v == 0 {
			return 0
		}
		return math.Inf(1)
	}
	d := math.Abs(v/median - 1)
	if math.IsNaN(d) {
		return math.Inf(1)
	}
	return d
}
