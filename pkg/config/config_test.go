package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fibertrack/internal/models"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fibertrack.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

const fullConfig = `
processing:
  numWorkers: 2
dwi:
  fieldOfView: 180
  matrixSize: 60
  sliceThickness: 6
smoothing:
  interpolationStep: 0.5
  pOrder: [3]
  unit: mm
cascade:
  minDistance: 12.5
  minPennation: 2
  maxPennation: 38
  maxCurvature: 30
  samplingFrequency: 0.2
  propagationAxis: col
  descending: true
`

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, [3]int{2, 2, 3}, cfg.Order())
	assert.Equal(t, models.Resolution{FieldOfView: 192, MatrixSize: 64, SliceThickness: 7}, cfg.Resolution())
	assert.Nil(t, cfg.Cascade.SamplingFrequency)
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("missing file should yield defaults (-want +got):\n%s", diff)
	}
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, fullConfig))
	require.NoError(t, err)

	sp, err := cfg.SmootherParams(nil)
	require.NoError(t, err)
	assert.Equal(t, [3]int{3, 3, 3}, sp.Order)
	assert.Equal(t, models.Physical, sp.Unit)
	assert.Equal(t, 0.5, sp.InterpolationStep)
	assert.Equal(t, 2, sp.Workers)
	assert.Equal(t, models.Resolution{FieldOfView: 180, MatrixSize: 60, SliceThickness: 6}, sp.Resolution)

	cp, err := cfg.CascadeParams(nil)
	require.NoError(t, err)
	assert.Equal(t, 12.5, cp.MinDistance)
	assert.Equal(t, 2.0, cp.MinPennation)
	assert.Equal(t, 38.0, cp.MaxPennation)
	assert.Equal(t, 30.0, cp.MaxCurvature)
	require.NotNil(t, cp.SamplingFrequency)
	assert.Equal(t, 0.2, *cp.SamplingFrequency)
	assert.Equal(t, models.AxisCol, cp.Axis)
	assert.True(t, cp.Descending)
	require.NoError(t, cp.Validate())
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"missing threshold": `
cascade:
  minDistance: 10
  minPennation: 0
  maxPennation: 40
`,
		"unknown unit": `
smoothing:
  unit: furlong
cascade: {minDistance: 10, minPennation: 0, maxPennation: 40, maxCurvature: 40}
`,
		"two orders": `
smoothing:
  pOrder: [2, 3]
cascade: {minDistance: 10, minPennation: 0, maxPennation: 40, maxCurvature: 40}
`,
		"zero order": `
smoothing:
  pOrder: [0]
cascade: {minDistance: 10, minPennation: 0, maxPennation: 40, maxCurvature: 40}
`,
		"inverted pennation": `
cascade: {minDistance: 10, minPennation: 40, maxPennation: 10, maxCurvature: 40}
`,
		"negative frequency": `
cascade: {minDistance: 10, minPennation: 0, maxPennation: 40, maxCurvature: 40, samplingFrequency: -1}
`,
		"bad axis": `
cascade: {minDistance: 10, minPennation: 0, maxPennation: 40, maxCurvature: 40, propagationAxis: z}
`,
		"zero step": `
smoothing:
  interpolationStep: 0
cascade: {minDistance: 10, minPennation: 0, maxPennation: 40, maxCurvature: 40}
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, body))
			assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestLoadConfigZeroMinPennation(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
cascade: {minDistance: 10, minPennation: 0, maxPennation: 40, maxCurvature: 40}
`))
	require.NoError(t, err)
	assert.Equal(t, 0.0, *cfg.Cascade.MinPennation)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, CreateDefaultConfigFile(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	if diff := cmp.Diff(DefaultConfig(), loaded); diff != "" {
		t.Errorf("round trip changed the configuration (-want +got):\n%s", diff)
	}
}
