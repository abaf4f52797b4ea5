// Package quality implements the tract quality-control cascade.
//
// Six boolean layers are computed over the seed grid. Layers 1 to 5 form a
// monotone AND-cascade:
//
//  1. monotonic progression along the propagation axis
//  2. minimum tract length
//  3. mean pennation angle inside an open interval
//  4. mean curvature below a ceiling
//  5. agreement with the 5x5 neighbourhood of layer-4 survivors
//
// Layer 6 is an optional uniform spatial resampling of the layer-5
// survivors (see package resample). Every phase reads only layers that
// were fully settled by an earlier phase.
package quality

import (
	"fmt"
	"log/slog"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"fibertrack/internal/models"
	"fibertrack/internal/stats"
	"fibertrack/pkg/resample"
)

// NumLayers is the number of layers in a Mask.
const NumLayers = 6

// Outlier tolerance of the neighbourhood test, in standard deviations.
const neighbourSigma = 2

// Neighbourhood half-width of the layer-5 window.
const windowRadius = 2

// Input is everything the cascade reads. All grids must share one shape.
type Input struct {
	// Tracts is the (usually smoothed) tract grid.
	Tracts *models.TractGrid

	// Quant is the per-point quantification of Tracts.
	Quant *models.QuantGrid

	// Valid marks cells whose tract propagated at least one step.
	Valid [][]bool

	// Mesh is the seed mesh with per-cell area elements.
	Mesh *models.Mesh

	// TrackedCount is the tracker's own survivor count, reported as the
	// first stage count.
	TrackedCount int
}

// Mask holds the six quality layers, indexed [layer][row][col].
type Mask struct {
	Layers [NumLayers][][]bool
}

func newMask(rows, cols int) *Mask {
	m := &Mask{}
	for k := range m.Layers {
		m.Layers[k] = make([][]bool, rows)
		for r := range m.Layers[k] {
			m.Layers[k][r] = make([]bool, cols)
		}
	}
	return m
}

// Layer returns layer k, counted from 1.
func (m *Mask) Layer(k int) [][]bool {
	return m.Layers[k-1]
}

// Count returns the number of set cells in layer k, counted from 1.
func (m *Mask) Count(k int) int {
	n := 0
	for _, row := range m.Layers[k-1] {
		for _, v := range row {
			if v {
				n++
			}
		}
	}
	return n
}

// TractSummary is the mean-property record of one surviving tract.
type TractSummary struct {
	Curvature  float64
	Angle      float64
	Length     float64
	AreaShare  float64
	PointCount int
}

// MuscleSummary is the area-weighted whole-muscle average.
type MuscleSummary struct {
	Curvature float64
	Angle     float64
	Length    float64
}

// Result holds every output of the cascade.
type Result struct {
	// Tracts and Quant are cleared outside the final mask.
	Tracts *models.TractGrid
	Quant  *models.QuantGrid

	Mask *Mask

	// Final is the surviving set: layer 6 when resampling ran, else layer 5.
	Final [][]bool

	// StageCounts holds the tracker count followed by the count of each
	// layer.
	StageCounts [NumLayers + 1]int

	// Box is the active region of the grid.
	Box models.Box

	PerTract [][]TractSummary
	Muscle   MuscleSummary

	// Resampling is nil unless a sampling frequency was configured.
	Resampling *resample.Result

	// Notices collects informational messages, such as a clamped sampling
	// frequency.
	Notices []string
}

// cellMetrics are the per-tract means every layer works from.
type cellMetrics struct {
	angle     float64
	curvature float64
	length    float64
	points    int
}

// Cascade runs the quality layers over one dataset.
type Cascade struct {
	params *Params
	logger *slog.Logger
}

// NewCascade creates a cascade with the given thresholds.
func NewCascade(params *Params) *Cascade {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Cascade{params: params, logger: logger}
}

// Process evaluates every layer and assembles the filtered outputs.
func (q *Cascade) Process(in Input) (*Result, error) {
	if err := q.params.Validate(); err != nil {
		return nil, err
	}
	if err := checkShapes(in); err != nil {
		return nil, err
	}
	rows, cols := in.Tracts.Rows, in.Tracts.Cols

	workers := q.params.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}

	res := &Result{Mask: newMask(rows, cols)}
	res.Box = activeBox(in)
	q.logger.Info("quality cascade started",
		"rows", rows, "cols", cols, "box", res.Box, "tracked", in.TrackedCount, "workers", workers)

	metrics := make([][]cellMetrics, rows)
	for r := range metrics {
		metrics[r] = make([]cellMetrics, cols)
	}

	if !res.Box.Empty() {
		// Phase 1: per-cell metrics and layers 1-4
		if err := forEachRow(res.Box, workers, func(r int) {
			for c := res.Box.MinCol; c <= res.Box.MaxCol; c++ {
				metrics[r][c] = computeMetrics(in.Quant.Cells[r][c])
				q.threshold(in, res.Mask, metrics, r, c)
			}
		}); err != nil {
			return nil, err
		}

		// Phase 2: layer 5 from the settled layer-4 snapshot
		if err := forEachRow(res.Box, workers, func(r int) {
			for c := res.Box.MinCol; c <= res.Box.MaxCol; c++ {
				res.Mask.Layers[4][r][c] = res.Mask.Layers[3][r][c] &&
					consistentWithNeighbours(res.Mask.Layers[3], metrics, res.Box, r, c)
			}
		}); err != nil {
			return nil, err
		}
	}

	// Phase 3: optional resampling from the settled layer 5
	res.Final = res.Mask.Layers[4]
	weights := areaWeights(in.Mesh, res.Final)
	if q.params.SamplingFrequency != nil {
		rs, err := resample.Select(resample.Input{
			Mesh:     in.Mesh,
			Box:      res.Box,
			Eligible: res.Mask.Layers[4],
			Metrics:  resampleMetrics(metrics),
		}, resample.Params{
			Frequency:  *q.params.SamplingFrequency,
			Resolution: q.params.Resolution,
			Logger:     q.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("uniform resampling failed: %w", err)
		}
		res.Resampling = rs
		res.Mask.Layers[5] = rs.Selected
		res.Final = rs.Selected
		weights = regionWeights(rs, rows, cols)
		if rs.Notice != "" {
			res.Notices = append(res.Notices, rs.Notice)
		}
	}

	res.StageCounts[0] = in.TrackedCount
	for k := 1; k <= NumLayers; k++ {
		res.StageCounts[k] = res.Mask.Count(k)
	}

	res.Tracts, res.Quant = filterOutputs(in, res.Final)
	res.PerTract = perTractSummary(metrics, weights, res.Final)
	if res.Resampling != nil {
		res.Muscle = regionalMuscleSummary(res.Resampling)
	} else {
		res.Muscle = muscleSummary(metrics, weights, res.Final)
	}

	q.logger.Info("quality cascade complete",
		"stages", res.StageCounts, "curvature", res.Muscle.Curvature,
		"angle", res.Muscle.Angle, "length", res.Muscle.Length)
	return res, nil
}

// threshold evaluates layers 1-4 for one cell. Each layer requires the
// previous one.
func (q *Cascade) threshold(in Input, mask *Mask, metrics [][]cellMetrics, r, c int) {
	p := q.params
	tract := in.Tracts.Cells[r][c]
	m := metrics[r][c]
	if !in.Valid[r][c] || tract.Len() < 2 || in.Quant.Cells[r][c] == nil {
		return
	}

	if !monotonic(tract, p.Axis, p.Descending) {
		return
	}
	mask.Layers[0][r][c] = true

	if !(m.length >= p.MinDistance) {
		return
	}
	mask.Layers[1][r][c] = true

	if !(m.angle > p.MinPennation && m.angle < p.MaxPennation) {
		return
	}
	mask.Layers[2][r][c] = true

	if !(m.curvature < p.MaxCurvature) {
		return
	}
	mask.Layers[3][r][c] = true
}

// monotonic reports whether the tract never moves backwards along axis.
// The first and last steps are ignored because the polynomial fit may
// overshoot at the ends.
func monotonic(t *models.Tract, axis models.Axis, descending bool) bool {
	pts := t.Points
	for i := 2; i < len(pts)-1; i++ {
		d := pts[i].At(axis) - pts[i-1].At(axis)
		if descending {
			d = -d
		}
		if d < 0 {
			return false
		}
	}
	return true
}

// consistentWithNeighbours runs the layer-5 outlier test for (r, c) against
// the layer-4 survivors in its window, the cell itself included. Angle is
// compared with the mean, curvature and length with the median.
func consistentWithNeighbours(layer4 [][]bool, metrics [][]cellMetrics, box models.Box, r, c int) bool {
	var angle, curv, length []float64
	for i := max(box.MinRow, r-windowRadius); i <= min(box.MaxRow, r+windowRadius); i++ {
		for j := max(box.MinCol, c-windowRadius); j <= min(box.MaxCol, c+windowRadius); j++ {
			if !layer4[i][j] {
				continue
			}
			m := metrics[i][j]
			angle = append(angle, m.angle)
			curv = append(curv, m.curvature)
			length = append(length, m.length)
		}
	}

	self := metrics[r][c]
	if stats.Outside(self.angle, stats.Mean(angle), stats.StdDev(angle), neighbourSigma) {
		return false
	}
	if stats.Outside(self.curvature, stats.Median(curv), stats.StdDev(curv), neighbourSigma) {
		return false
	}
	if stats.Outside(self.length, stats.Median(length), stats.StdDev(length), neighbourSigma) {
		return false
	}
	return true
}

// computeMetrics averages the per-point quantification of one tract. A
// record without points yields NaN means, which fail every threshold.
func computeMetrics(q *models.Quantification) cellMetrics {
	if q == nil {
		return cellMetrics{angle: math.NaN(), curvature: math.NaN()}
	}
	n := q.PointCount
	n = min(n, len(q.Angle), len(q.Curvature), len(q.Distance))
	m := cellMetrics{points: max(n, 0)}
	var sumA, sumC float64
	for i := 0; i < n; i++ {
		sumA += q.Angle[i]
		sumC += q.Curvature[i]
	}
	m.angle = sumA / float64(m.points)
	m.curvature = sumC / float64(m.points)
	if n > 0 {
		m.length = q.Distance[n-1]
	}
	return m
}

// activeBox is the bounding box of every tracked cell.
func activeBox(in Input) models.Box {
	b := models.Box{MinRow: in.Tracts.Rows, MaxRow: -1, MinCol: in.Tracts.Cols, MaxCol: -1}
	for r := 0; r < in.Tracts.Rows; r++ {
		for c := 0; c < in.Tracts.Cols; c++ {
			if !in.Valid[r][c] || in.Tracts.Cells[r][c].Len() == 0 {
				continue
			}
			b.MinRow, b.MaxRow = min(b.MinRow, r), max(b.MaxRow, r)
			b.MinCol, b.MaxCol = min(b.MinCol, c), max(b.MaxCol, c)
		}
	}
	return b
}

// forEachRow runs fn for every row of the box on a bounded worker pool and
// returns once all rows are done.
func forEachRow(box models.Box, workers int, fn func(r int)) error {
	var g errgroup.Group
	g.SetLimit(workers)
	for r := box.MinRow; r <= box.MaxRow; r++ {
		g.Go(func() error {
			fn(r)
			return nil
		})
	}
	return g.Wait()
}

func checkShapes(in Input) error {
	if !in.Tracts.CheckShape() {
		return fmt.Errorf("%w: tract grid", ErrShapeMismatch)
	}
	rows, cols := in.Tracts.Rows, in.Tracts.Cols
	if !in.Quant.CheckShape() || in.Quant.Rows != rows || in.Quant.Cols != cols {
		return fmt.Errorf("%w: quantification grid must be %dx%d", ErrShapeMismatch, rows, cols)
	}
	if !in.Mesh.CheckShape() || in.Mesh.Rows != rows || in.Mesh.Cols != cols {
		return fmt.Errorf("%w: mesh must be %dx%d", ErrShapeMismatch, rows, cols)
	}
	if len(in.Valid) != rows {
		return fmt.Errorf("%w: validity mask must have %d rows", ErrShapeMismatch, rows)
	}
	for r, row := range in.Valid {
		if len(row) != cols {
			return fmt.Errorf("%w: validity mask row %d must have %d columns", ErrShapeMismatch, r, cols)
		}
	}
	return nil
}

func resampleMetrics(metrics [][]cellMetrics) [][]resample.Metrics {
	out := make([][]resample.Metrics, len(metrics))
	for r, row := range metrics {
		out[r] = make([]resample.Metrics, len(row))
		for c, m := range row {
			out[r][c] = resample.Metrics{Angle: m.angle, Curvature: m.curvature, Length: m.length}
		}
	}
	return out
}

// filterOutputs copies the tracts and quantification of surviving cells
// and leaves every other cell empty.
func filterOutputs(in Input, final [][]bool) (*models.TractGrid, *models.QuantGrid) {
	tracts := models.NewTractGrid(in.Tracts.Rows, in.Tracts.Cols)
	quant := models.NewQuantGrid(in.Tracts.Rows, in.Tracts.Cols)
	for r, row := range final {
		for c, keep := range row {
			if keep {
				tracts.Cells[r][c] = in.Tracts.Cells[r][c].Clone()
				quant.Cells[r][c] = in.Quant.Cells[r][c].Clone()
			}
		}
	}
	return tracts, quant
}
