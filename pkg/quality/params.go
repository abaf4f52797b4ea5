package quality

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"fibertrack/internal/models"
)

var (
	// ErrInvalidParams is returned when the cascade thresholds are unusable.
	ErrInvalidParams = errors.New("invalid quality parameters")

	// ErrShapeMismatch is returned when the inputs disagree on grid size.
	ErrShapeMismatch = errors.New("input grids have inconsistent shapes")
)

// Params holds the cascade thresholds.
type Params struct {
	// MinDistance is the shortest acceptable tract length in mm.
	MinDistance float64

	// MinPennation and MaxPennation bound the mean pennation angle in
	// degrees. Both bounds are exclusive.
	MinPennation float64
	MaxPennation float64

	// MaxCurvature is the exclusive upper bound on mean curvature in 1/m.
	MaxCurvature float64

	// SamplingFrequency enables uniform resampling when set, in tracts
	// per mm.
	SamplingFrequency *float64

	// Resolution converts the voxel mesh to mm for resampling.
	Resolution models.Resolution

	// Axis is the propagation axis checked for monotonicity. The zero
	// value is the row axis; DefaultParams uses the slice axis.
	Axis models.Axis

	// Descending requires non-increasing instead of non-decreasing
	// coordinates along Axis.
	Descending bool

	// Workers bounds the number of grid rows processed concurrently.
	// Zero means runtime.NumCPU().
	Workers int

	// Logger receives progress messages. Nil means slog.Default().
	Logger *slog.Logger
}

// DefaultParams returns typical thresholds for lower-leg muscles.
func DefaultParams() *Params {
	return &Params{
		MinDistance:  10,
		MinPennation: 0,
		MaxPennation: 45,
		MaxCurvature: 40,
		Axis:         models.AxisSlice,
	}
}

// Validate checks the thresholds before any cell is evaluated.
func (p *Params) Validate() error {
	for name, v := range map[string]float64{
		"min distance":  p.MinDistance,
		"min pennation": p.MinPennation,
		"max pennation": p.MaxPennation,
		"max curvature": p.MaxCurvature,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be finite, got %v", ErrInvalidParams, name, v)
		}
	}
	if p.MinDistance <= 0 {
		return fmt.Errorf("%w: min distance must be > 0, got %v", ErrInvalidParams, p.MinDistance)
	}
	if p.MinPennation >= p.MaxPennation {
		return fmt.Errorf("%w: min pennation %v must be below max pennation %v", ErrInvalidParams, p.MinPennation, p.MaxPennation)
	}
	if p.SamplingFrequency != nil {
		if !(*p.SamplingFrequency > 0) || math.IsInf(*p.SamplingFrequency, 0) {
			return fmt.Errorf("%w: sampling frequency must be > 0, got %v", ErrInvalidParams, *p.SamplingFrequency)
		}
		if !p.Resolution.Valid() {
			return fmt.Errorf("%w: resampling needs a positive resolution, got %+v", ErrInvalidParams, p.Resolution)
		}
	}
	if p.Axis < models.AxisRow || p.Axis > models.AxisSlice {
		return fmt.Errorf("%w: propagation axis %d", ErrInvalidParams, p.Axis)
	}
	if p.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0, got %d", ErrInvalidParams, p.Workers)
	}
	return nil
}
