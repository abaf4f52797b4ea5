package stats

import (
	"math"
	"testing"
)

func TestMedian(t *testing.T) {
	values := []float64{5, 1, 3}
	if m := Median(values); m != 3 {
		t.Errorf("Expected median 3, got %f", m)
	}
	if values[0] != 5 {
		t.Error("Median should not reorder its input")
	}
	if m := Median([]float64{4, 1, 3, 2}); m != 2.5 {
		t.Errorf("Expected median 2.5, got %f", m)
	}
	if !math.IsNaN(Median(nil)) {
		t.Error("Median of nothing should be NaN")
	}
}

func TestMeanStdDev(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	if m := Mean(values); m != 5 {
		t.Errorf("Expected mean 5, got %f", m)
	}
	// Sample standard deviation: sqrt(32/7)
	if s := StdDev(values); math.Abs(s-math.Sqrt(32.0/7)) > 1e-12 {
		t.Errorf("Unexpected standard deviation %f", s)
	}
	if s := StdDev([]float64{3}); s != 0 {
		t.Errorf("Single value should have zero spread, got %f", s)
	}
}

func TestOutside(t *testing.T) {
	if Outside(12, 10, 1, 2) {
		t.Error("Boundary value should not be outside")
	}
	if !Outside(12.001, 10, 1, 2) || !Outside(7.9, 10, 1, 2) {
		t.Error("Values beyond 2 sigma should be outside")
	}
}

func TestWeightedMean(t *testing.T) {
	if m := WeightedMean([]float64{10, 20}, []float64{1, 3}); m != 17.5 {
		t.Errorf("Expected 17.5, got %f", m)
	}
	if m := WeightedMean([]float64{math.NaN(), 8}, []float64{1, 1}); m != 4 {
		t.Errorf("NaN should count as zero, got %f", m)
	}
	if m := WeightedMean([]float64{1}, []float64{0}); m != 0 {
		t.Errorf("Zero weight should give 0, got %f", m)
	}
}
