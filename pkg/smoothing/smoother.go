// Package smoothing fits every tract of a seed grid to a polynomial in arc
// length and resamples it at a finer, uniform spacing.
//
// The fit runs in physical units. Each axis is regressed independently
// against cumulative arc length with the seed subtracted, and the evaluated
// curve is shifted so that its first point lands exactly on the seed.
package smoothing

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"fibertrack/internal/models"
	"fibertrack/pkg/fitting"
)

// ErrInvalidParams is returned when the smoother is configured incorrectly.
var ErrInvalidParams = errors.New("invalid smoothing parameters")

var axes = [3]models.Axis{models.AxisRow, models.AxisCol, models.AxisSlice}

// Params holds the smoothing configuration.
type Params struct {
	// InterpolationStep is the output spacing as a fraction of the mean
	// input point spacing. 1 keeps the input density, 0.5 doubles it.
	InterpolationStep float64

	// Order is the polynomial order per axis (row, column, slice).
	Order [3]int

	// Resolution converts voxels to mm.
	Resolution models.Resolution

	// Unit is the unit the input tracts are expressed in.
	Unit models.Unit

	// Workers bounds the number of tracts fitted concurrently.
	// Zero means runtime.NumCPU().
	Workers int

	// Logger receives progress messages. Nil means slog.Default().
	Logger *slog.Logger
}

// Validate checks the parameters before any tract is touched.
func (p *Params) Validate() error {
	if !(p.InterpolationStep > 0) {
		return fmt.Errorf("%w: interpolation step must be > 0, got %v", ErrInvalidParams, p.InterpolationStep)
	}
	for i, o := range p.Order {
		if o < 1 {
			return fmt.Errorf("%w: polynomial order for axis %d must be >= 1, got %d", ErrInvalidParams, i, o)
		}
	}
	if !p.Resolution.Valid() {
		return fmt.Errorf("%w: resolution %+v must be positive", ErrInvalidParams, p.Resolution)
	}
	if p.Unit != models.Voxel && p.Unit != models.Physical {
		return fmt.Errorf("%w: unit %v", ErrInvalidParams, p.Unit)
	}
	if p.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0, got %d", ErrInvalidParams, p.Workers)
	}
	return nil
}

// MaxOrder returns the largest per-axis order.
func (p *Params) MaxOrder() int {
	return max(p.Order[0], p.Order[1], p.Order[2])
}

// SharedOrder returns an order triple with the same order on every axis.
func SharedOrder(n int) [3]int {
	return [3]int{n, n, n}
}

// Residual is the difference between the fitted curve and one original
// sample.
type Residual struct {
	// Index is the original point index.
	Index int

	// PercentLength is the arc-length position of the sample as a
	// percentage of the total tract length.
	PercentLength float64

	// MM is fitted minus raw in millimetres.
	MM models.Point3

	// Voxel is fitted minus raw in voxels.
	Voxel models.Point3
}

// Stats summarises one smoothing run.
type Stats struct {
	Fitted         int
	Excluded       int
	IllConditioned int
	MaxLength      int
	RMSResidualMM  float64
}

// Result holds every output of a smoothing run. All grids share the shape
// of the input grid; excluded cells are nil or zero.
type Result struct {
	// Smoothed holds the fitted tracts in the caller's unit.
	Smoothed *models.TractGrid

	// SmoothedMM holds the fitted tracts in millimetres.
	SmoothedMM *models.TractGrid

	// Coefficients[r][c][axis] are the polynomial coefficients, ascending
	// powers of arc length in mm, of the seed-relative coordinate in mm.
	Coefficients [][][3][]float64

	// PointCounts is the number of smoothed points per cell.
	PointCounts [][]int

	// Residuals holds one record per original sample of each fitted tract.
	Residuals [][][]Residual

	Stats Stats
}

// Smoother runs the arc-length polynomial fit over a seed grid.
type Smoother struct {
	params *Params
	logger *slog.Logger
}

// NewSmoother creates a smoother with the given parameters.
func NewSmoother(params *Params) *Smoother {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Smoother{params: params, logger: logger}
}

// cellFit is the outcome of fitting one tract.
type cellFit struct {
	voxel, mm      *models.Tract
	coeffs         [3][]float64
	residuals      []Residual
	illConditioned bool
}

// Process smooths every tract in grid. Tracts whose point count does not
// exceed twice the largest polynomial order are left empty in every output.
func (s *Smoother) Process(grid *models.TractGrid) (*Result, error) {
	if err := s.params.Validate(); err != nil {
		return nil, err
	}
	if !grid.CheckShape() {
		return nil, fmt.Errorf("tract grid does not match its declared %dx%d shape", grid.Rows, grid.Cols)
	}

	res := &Result{
		Smoothed:     models.NewTractGrid(grid.Rows, grid.Cols),
		SmoothedMM:   models.NewTractGrid(grid.Rows, grid.Cols),
		Coefficients: make([][][3][]float64, grid.Rows),
		PointCounts:  make([][]int, grid.Rows),
		Residuals:    make([][][]Residual, grid.Rows),
	}
	for r := 0; r < grid.Rows; r++ {
		res.Coefficients[r] = make([][3][]float64, grid.Cols)
		res.PointCounts[r] = make([]int, grid.Cols)
		res.Residuals[r] = make([][]Residual, grid.Cols)
	}

	workers := s.params.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	s.logger.Info("smoothing tracts",
		"rows", grid.Rows, "cols", grid.Cols, "tracts", grid.Count(),
		"order", s.params.Order, "step", s.params.InterpolationStep, "workers", workers)

	var fitted, illConditioned atomic.Int64
	var g errgroup.Group
	g.SetLimit(workers)
	for r := 0; r < grid.Rows; r++ {
		for c := 0; c < grid.Cols; c++ {
			tract := grid.At(r, c)
			if tract.Len() == 0 {
				continue
			}
			g.Go(func() error {
				fit, err := s.fitTract(tract)
				if err != nil {
					return fmt.Errorf("tract (%d,%d): %w", r, c, err)
				}
				if fit == nil {
					return nil
				}
				// Each goroutine owns cell (r, c) exclusively
				res.Smoothed.Set(r, c, fit.voxel)
				res.SmoothedMM.Set(r, c, fit.mm)
				res.Coefficients[r][c] = fit.coeffs
				res.PointCounts[r][c] = fit.mm.Len()
				res.Residuals[r][c] = fit.residuals
				fitted.Add(1)
				if fit.illConditioned {
					illConditioned.Add(1)
					s.logger.Debug("near-singular polynomial fit", "row", r, "col", c)
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("smoothing failed: %w", err)
	}

	res.Stats = summarise(res, grid.Count(), int(fitted.Load()), int(illConditioned.Load()))
	s.logger.Info("smoothing complete",
		"fitted", res.Stats.Fitted, "excluded", res.Stats.Excluded,
		"maxLength", res.Stats.MaxLength, "rmsResidualMM", res.Stats.RMSResidualMM)
	return res, nil
}

// fitTract fits a single tract. It returns nil without error when the tract
// is too short for the configured orders.
func (s *Smoother) fitTract(raw *models.Tract) (*cellFit, error) {
	p := s.params
	n := raw.Len()
	// Exact threshold: more than 2*order points are required
	if n <= 2*p.MaxOrder() {
		return nil, nil
	}

	mm := raw
	if p.Unit == models.Voxel {
		mm = p.Resolution.TractToPhysical(raw)
	}
	rawAnchor := raw.Seed()
	anchor := mm.Seed()
	scale := p.Resolution.Scale()

	dist := fitting.ArcLength(mm.Points)
	total := dist[n-1]
	step := total * p.InterpolationStep / float64(n-1)
	positions := fitting.UniformPositions(total, step)
	m := len(positions)

	fit := &cellFit{
		voxel: &models.Tract{Points: make([]models.Point3, m)},
		mm:    &models.Tract{Points: make([]models.Point3, m)},
	}
	polys := make([]fitting.Polynomial, 3)
	offsets := make([]float64, 3)
	y := make([]float64, n)
	for ai, axis := range axes {
		a0 := anchor.At(axis)
		for i, pt := range mm.Points {
			y[i] = pt.At(axis) - a0
		}
		poly, err := fitting.FitPolynomial(dist, y, p.Order[ai])
		if err != nil {
			return nil, err
		}
		polys[ai] = poly
		fit.coeffs[ai] = poly.Coeffs
		fit.illConditioned = fit.illConditioned || poly.IllConditioned

		offsets[ai] = poly.Eval(0)
		for k, sk := range positions {
			d := poly.Eval(sk) - offsets[ai]
			fit.mm.Points[k].Set(axis, a0+d)
			fit.voxel.Points[k].Set(axis, outputCoord(rawAnchor.At(axis), d, scale.At(axis), p.Unit))
		}
	}

	fit.residuals = make([]Residual, n)
	for i := 0; i < n; i++ {
		var fitted models.Point3
		if m == n {
			fitted = fit.mm.Points[i]
		} else {
			for ai, axis := range axes {
				fitted.Set(axis, anchor.At(axis)+polys[ai].Eval(dist[i])-offsets[ai])
			}
		}
		diff := fitted.Sub(mm.Points[i])
		pct := 0.0
		if total > 0 {
			pct = 100 * dist[i] / total
		}
		fit.residuals[i] = Residual{
			Index:         i,
			PercentLength: pct,
			MM:            diff,
			Voxel:         models.Point3{Row: diff.Row / scale.Row, Col: diff.Col / scale.Col, Slice: diff.Slice / scale.Slice},
		}
	}
	return fit, nil
}

// outputCoord maps a seed-relative mm offset onto the caller's unit. The
// raw anchor is added last so that a zero offset reproduces it exactly.
func outputCoord(rawAnchor, offsetMM, scale float64, unit models.Unit) float64 {
	if unit == models.Voxel {
		return rawAnchor + offsetMM/scale
	}
	return rawAnchor + offsetMM
}

func summarise(res *Result, present, fitted, illConditioned int) Stats {
	st := Stats{
		Fitted:         fitted,
		Excluded:       present - fitted,
		IllConditioned: illConditioned,
		MaxLength:      res.SmoothedMM.MaxLen(),
	}
	var sum float64
	var count int
	for _, row := range res.Residuals {
		for _, cell := range row {
			for _, rr := range cell {
				sum += rr.MM.Row*rr.MM.Row + rr.MM.Col*rr.MM.Col + rr.MM.Slice*rr.MM.Slice
				count++
			}
		}
	}
	if count > 0 {
		st.RMSResidualMM = math.Sqrt(sum / float64(count))
	}
	return st
}
