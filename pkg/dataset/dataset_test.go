package dataset

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fibertrack/internal/models"
	"fibertrack/pkg/quality"
	"fibertrack/pkg/resample"
)

func sampleCascadeInput() *CascadeInput {
	tracts := models.NewTractGrid(1, 2)
	tracts.Set(0, 0, &models.Tract{Points: []models.Point3{{Row: 1, Col: 1, Slice: 1}, {Row: 1, Col: 1, Slice: 2}}})
	tracts.Set(0, 1, &models.Tract{Points: []models.Point3{{Row: 1, Col: 2, Slice: 1}}})

	quant := models.NewQuantGrid(1, 2)
	quant.Cells[0][0] = &models.Quantification{
		Angle:      []float64{10, 12},
		Curvature:  []float64{5, 6},
		Distance:   []float64{0, 7},
		PointCount: 2,
	}
	return &CascadeInput{
		Tracts: tracts,
		Quant:  quant,
		Mesh: &models.Mesh{
			Rows:   1,
			Cols:   2,
			Points: [][]models.Point3{{{Row: 1, Col: 1, Slice: 1}, {Row: 1, Col: 2, Slice: 1}}},
			Area:   [][]float64{{9, 9}},
		},
		TrackedCount: 2,
	}
}

func TestCascadeInputRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs", "cascade.json")
	want := sampleCascadeInput()
	require.NoError(t, Save(path, want))

	got, err := LoadCascadeInput(path)
	require.NoError(t, err)

	// Valid was omitted and is derived on load
	assert.Equal(t, [][]bool{{true, false}}, got.Valid)
	got.Valid = nil
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadCascadeInputMissingParts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cascade.json")
	in := sampleCascadeInput()
	in.Mesh = nil
	require.NoError(t, Save(path, in))

	_, err := LoadCascadeInput(path)
	assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)
}

func TestLoadSmoothInput(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, []byte(`{
		"unit": "mm",
		"tracts": {"rows": 1, "cols": 1, "cells": [[{"points": [{"row": 1, "col": 2, "slice": 3}]}]]}
	}`), 0644))
	in, err := LoadSmoothInput(good)
	require.NoError(t, err)
	assert.Equal(t, "mm", in.Unit)
	assert.Equal(t, models.Point3{Row: 1, Col: 2, Slice: 3}, in.Tracts.At(0, 0).Seed())

	ragged := filepath.Join(dir, "ragged.json")
	require.NoError(t, os.WriteFile(ragged, []byte(`{"tracts": {"rows": 2, "cols": 1, "cells": [[null]]}}`), 0644))
	_, err = LoadSmoothInput(ragged)
	assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)

	_, err = LoadSmoothInput(filepath.Join(dir, "absent.json"))
	assert.Error(t, err)
}

func TestNewCascadeOutputUnboundedFrequency(t *testing.T) {
	res := &quality.Result{
		Mask: &quality.Mask{},
		Resampling: &resample.Result{
			RequestedFrequency: 0.5,
			MaxFrequency:       math.Inf(1),
			EffectiveFrequency: 0.5,
		},
	}
	out := NewCascadeOutput(res)
	require.NotNil(t, out.Resampling)
	assert.Nil(t, out.Resampling.MaxFrequency)

	// An infinite float would make the encoder fail
	require.NoError(t, Save(filepath.Join(t.TempDir(), "out.json"), out))

	res.Resampling.MaxFrequency = 0.25
	out = NewCascadeOutput(res)
	require.NotNil(t, out.Resampling.MaxFrequency)
	assert.Equal(t, 0.25, *out.Resampling.MaxFrequency)
}
