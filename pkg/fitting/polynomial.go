// Package fitting provides least-squares polynomial regression and the
// arc-length helpers used to parameterise tracts.
package fitting

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"fibertrack/internal/models"
)

// ErrInsufficientData is returned when there are fewer samples than
// polynomial coefficients.
var ErrInsufficientData = errors.New("not enough samples for polynomial order")

// Polynomial is a fitted polynomial in one variable.
type Polynomial struct {
	// Coeffs holds the coefficients in ascending powers of x.
	Coeffs []float64

	// IllConditioned is set when the design matrix was singular or
	// near-singular. The coefficients are still the solver's result.
	IllConditioned bool

	// norm holds the coefficients of the polynomial in x/scale, which is
	// what Eval uses to avoid raising large abscissae to high powers.
	norm  []float64
	scale float64
}

// Order returns the degree of the polynomial.
func (p Polynomial) Order() int {
	return len(p.Coeffs) - 1
}

// Eval evaluates the polynomial at x.
func (p Polynomial) Eval(x float64) float64 {
	coeffs, t := p.norm, x/p.scale
	if coeffs == nil {
		coeffs, t = p.Coeffs, x
	}
	// Horner
	y := 0.0
	for k := len(coeffs) - 1; k >= 0; k-- {
		y = y*t + coeffs[k]
	}
	return y
}

// EvalAll evaluates the polynomial at every x and returns the results.
func (p Polynomial) EvalAll(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = p.Eval(x)
	}
	return out
}

// FitPolynomial fits y ~ sum_k c_k x^k for k = 0..order in the least-squares
// sense. The abscissa is normalised by its largest magnitude before the
// Vandermonde system is built and solved with a QR decomposition.
func FitPolynomial(x, y []float64, order int) (Polynomial, error) {
	if len(x) != len(y) {
		return Polynomial{}, fmt.Errorf("length mismatch: %d abscissae, %d ordinates", len(x), len(y))
	}
	if order < 0 {
		return Polynomial{}, fmt.Errorf("negative polynomial order %d", order)
	}
	n, m := len(x), order+1
	if n < m {
		return Polynomial{}, fmt.Errorf("%w: %d samples, order %d", ErrInsufficientData, n, order)
	}

	scale := math.Max(math.Abs(floats.Max(x)), math.Abs(floats.Min(x)))
	if scale == 0 {
		scale = 1
	}

	// Build the Vandermonde design matrix in the normalised variable
	a := mat.NewDense(n, m, nil)
	for i, xi := range x {
		t := xi / scale
		v := 1.0
		for k := 0; k < m; k++ {
			a.Set(i, k, v)
			v *= t
		}
	}
	b := mat.NewVecDense(n, append([]float64(nil), y...))

	var qr mat.QR
	qr.Factorize(a)

	sol := mat.NewDense(m, 1, nil)
	illConditioned := false
	if err := qr.SolveTo(sol, false, b); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return Polynomial{}, fmt.Errorf("least-squares solve failed: %w", err)
		}
		illConditioned = true
	}

	p := Polynomial{
		Coeffs:         make([]float64, m),
		IllConditioned: illConditioned,
		norm:           make([]float64, m),
		scale:          scale,
	}
	div := 1.0
	for k := 0; k < m; k++ {
		p.norm[k] = sol.At(k, 0)
		p.Coeffs[k] = p.norm[k] / div
		div *= scale
	}
	return p, nil
}

// ArcLength returns the cumulative Euclidean distance from the first point
// to every point. The distance at point 0 is zero.
func ArcLength(pts []models.Point3) []float64 {
	s := make([]float64, len(pts))
	for i := 1; i < len(pts); i++ {
		s[i] = pts[i].Dist(pts[i-1])
	}
	return floats.CumSum(s, s)
}

// UniformPositions returns 0, step, 2*step, ... up to and including total.
// A relative tolerance absorbs the rounding of total/step so an exact
// multiple of step is not lost.
func UniformPositions(total, step float64) []float64 {
	if step <= 0 || total <= 0 {
		return []float64{0}
	}
	count := int(math.Floor(total/step*(1+1e-9))) + 1
	out := make([]float64, count)
	for k := range out {
		out[k] = float64(k) * step
	}
	return out
}
