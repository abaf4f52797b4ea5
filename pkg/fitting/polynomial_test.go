package fitting

import (
	"errors"
	"math"
	"testing"

	"fibertrack/internal/models"
)

// TestFitPolynomialExact verifies that noise-free cubic data is recovered
func TestFitPolynomialExact(t *testing.T) {
	want := []float64{2, -0.5, 0.25, 0.01}
	var x, y []float64
	for i := 0; i <= 20; i++ {
		xi := float64(i) * 2.5
		x = append(x, xi)
		y = append(y, want[0]+want[1]*xi+want[2]*xi*xi+want[3]*xi*xi*xi)
	}

	p, err := FitPolynomial(x, y, 3)
	if err != nil {
		t.Fatalf("FitPolynomial failed: %v", err)
	}
	if p.Order() != 3 {
		t.Fatalf("Expected order 3, got %d", p.Order())
	}
	for k, c := range want {
		if math.Abs(p.Coeffs[k]-c) > 1e-8 {
			t.Errorf("Coefficient %d: expected %f, got %f", k, c, p.Coeffs[k])
		}
	}
	for i := range x {
		if math.Abs(p.Eval(x[i])-y[i]) > 1e-7 {
			t.Errorf("Eval(%f) = %f, want %f", x[i], p.Eval(x[i]), y[i])
		}
	}
}

// TestFitPolynomialLeastSquares checks the fit of a line to symmetric noise
func TestFitPolynomialLeastSquares(t *testing.T) {
	x := []float64{0, 1, 2, 3}
	y := []float64{1, 2, 2, 3}

	p, err := FitPolynomial(x, y, 1)
	if err != nil {
		t.Fatalf("FitPolynomial failed: %v", err)
	}
	// Normal equations give slope 0.6 and intercept 1.1
	if math.Abs(p.Coeffs[1]-0.6) > 1e-12 || math.Abs(p.Coeffs[0]-1.1) > 1e-12 {
		t.Errorf("Unexpected coefficients %v", p.Coeffs)
	}
	ys := p.EvalAll([]float64{0, 10})
	if math.Abs(ys[1]-7.1) > 1e-9 {
		t.Errorf("Expected 7.1 at x=10, got %f", ys[1])
	}
}

func TestFitPolynomialErrors(t *testing.T) {
	if _, err := FitPolynomial([]float64{0, 1}, []float64{0, 1}, 2); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("Expected ErrInsufficientData, got %v", err)
	}
	if _, err := FitPolynomial([]float64{0, 1}, []float64{0}, 1); err == nil {
		t.Error("Expected error for mismatched lengths")
	}
}

func TestArcLength(t *testing.T) {
	pts := []models.Point3{{}, {Row: 3, Col: 4}, {Row: 3, Col: 4, Slice: 2}}
	s := ArcLength(pts)
	want := []float64{0, 5, 7}
	for i := range want {
		if math.Abs(s[i]-want[i]) > 1e-12 {
			t.Errorf("s[%d] = %f, want %f", i, s[i], want[i])
		}
	}
}

func TestUniformPositions(t *testing.T) {
	// 0.3 * 10 is not exactly 3 in floating point; the endpoint must survive
	pos := UniformPositions(3, 0.3)
	if len(pos) != 11 {
		t.Fatalf("Expected 11 positions, got %d", len(pos))
	}
	if pos[0] != 0 {
		t.Errorf("First position should be 0, got %f", pos[0])
	}

	pos = UniformPositions(10, 4)
	if len(pos) != 3 || pos[2] != 8 {
		t.Errorf("Unexpected positions %v", pos)
	}
}
