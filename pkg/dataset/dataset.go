// Package dataset reads and writes the JSON documents exchanged by the
// fibertrack command line tool.
package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"fibertrack/internal/models"
	"fibertrack/pkg/quality"
	"fibertrack/pkg/resample"
	"fibertrack/pkg/smoothing"
)

// ErrMalformed is returned when a document decodes but is not internally
// consistent.
var ErrMalformed = errors.New("malformed dataset")

// SmoothInput is a smoothing job.
type SmoothInput struct {
	// Unit overrides the configured input unit when set.
	Unit   string            `json:"unit,omitempty"`
	Tracts *models.TractGrid `json:"tracts"`
}

// CascadeInput is a quality-control job.
type CascadeInput struct {
	Tracts *models.TractGrid `json:"tracts"`
	Quant  *models.QuantGrid `json:"quant"`

	// Valid is derived from the tracts when omitted: a cell is valid once
	// its tract holds at least two points.
	Valid [][]bool `json:"valid,omitempty"`

	Mesh         *models.Mesh `json:"mesh"`
	TrackedCount int          `json:"tracked_count"`
}

// Input converts the document into cascade input.
func (c *CascadeInput) Input() quality.Input {
	return quality.Input{
		Tracts:       c.Tracts,
		Quant:        c.Quant,
		Valid:        c.Valid,
		Mesh:         c.Mesh,
		TrackedCount: c.TrackedCount,
	}
}

// SmoothOutput is the document written after smoothing.
type SmoothOutput struct {
	Tracts       *models.TractGrid        `json:"tracts"`
	TractsMM     *models.TractGrid        `json:"tracts_mm"`
	Coefficients [][][3][]float64         `json:"coefficients"`
	PointCounts  [][]int                  `json:"point_counts"`
	Residuals    [][][]smoothing.Residual `json:"residuals"`
	Stats        smoothing.Stats          `json:"stats"`

	// Padded is the dense zero-padded export of Tracts, present on request.
	Padded [][][][3]float64 `json:"padded,omitempty"`
}

// CascadeOutput is the document written after the quality cascade.
type CascadeOutput struct {
	Tracts      *models.TractGrid           `json:"tracts"`
	Quant       *models.QuantGrid           `json:"quant"`
	Layers      [quality.NumLayers][][]bool `json:"layers"`
	Final       [][]bool                    `json:"final"`
	StageCounts [quality.NumLayers + 1]int  `json:"stage_counts"`
	Box         models.Box                  `json:"box"`
	PerTract    [][]quality.TractSummary    `json:"per_tract"`
	Muscle      quality.MuscleSummary       `json:"muscle"`
	Resampling  *ResampleOutput             `json:"resampling,omitempty"`
	Notices     []string                    `json:"notices,omitempty"`
}

// ResampleOutput mirrors resample.Result with the unbounded maximum
// frequency of an empty box encoded as null.
type ResampleOutput struct {
	RegionIDs          [][]int           `json:"region_ids"`
	Regions            []resample.Region `json:"regions"`
	RequestedFrequency float64           `json:"requested_frequency"`
	MaxFrequency       *float64          `json:"max_frequency"`
	EffectiveFrequency float64           `json:"effective_frequency"`
	Clamped            bool              `json:"clamped"`
}

// NewSmoothOutput packages a smoothing result. When padded is set the dense
// export is sized to the longest smoothed tract.
func NewSmoothOutput(res *smoothing.Result, padded bool) *SmoothOutput {
	out := &SmoothOutput{
		Tracts:       res.Smoothed,
		TractsMM:     res.SmoothedMM,
		Coefficients: res.Coefficients,
		PointCounts:  res.PointCounts,
		Residuals:    res.Residuals,
		Stats:        res.Stats,
	}
	if padded {
		out.Padded = res.Smoothed.Padded(res.Stats.MaxLength)
	}
	return out
}

// NewCascadeOutput packages a cascade result.
func NewCascadeOutput(res *quality.Result) *CascadeOutput {
	out := &CascadeOutput{
		Tracts:      res.Tracts,
		Quant:       res.Quant,
		Layers:      res.Mask.Layers,
		Final:       res.Final,
		StageCounts: res.StageCounts,
		Box:         res.Box,
		PerTract:    res.PerTract,
		Muscle:      res.Muscle,
		Notices:     res.Notices,
	}
	if rs := res.Resampling; rs != nil {
		out.Resampling = &ResampleOutput{
			RegionIDs:          rs.RegionIDs,
			Regions:            rs.Regions,
			RequestedFrequency: rs.RequestedFrequency,
			EffectiveFrequency: rs.EffectiveFrequency,
			Clamped:            rs.Clamped,
		}
		if !math.IsInf(rs.MaxFrequency, 0) {
			f := rs.MaxFrequency
			out.Resampling.MaxFrequency = &f
		}
	}
	return out
}

// LoadSmoothInput reads a smoothing job from path.
func LoadSmoothInput(path string) (*SmoothInput, error) {
	var in SmoothInput
	if err := readJSON(path, &in); err != nil {
		return nil, err
	}
	if in.Tracts == nil {
		return nil, fmt.Errorf("%w: %s has no tracts", ErrMalformed, path)
	}
	if !in.Tracts.CheckShape() {
		return nil, fmt.Errorf("%w: tract grid in %s is not %dx%d", ErrMalformed, path, in.Tracts.Rows, in.Tracts.Cols)
	}
	return &in, nil
}

// LoadCascadeInput reads a quality-control job from path.
func LoadCascadeInput(path string) (*CascadeInput, error) {
	var in CascadeInput
	if err := readJSON(path, &in); err != nil {
		return nil, err
	}
	if in.Tracts == nil || in.Quant == nil || in.Mesh == nil {
		return nil, fmt.Errorf("%w: %s needs tracts, quant and mesh", ErrMalformed, path)
	}
	if !in.Tracts.CheckShape() {
		return nil, fmt.Errorf("%w: tract grid in %s is not %dx%d", ErrMalformed, path, in.Tracts.Rows, in.Tracts.Cols)
	}
	if in.Valid == nil {
		in.Valid = DeriveValid(in.Tracts)
	}
	return &in, nil
}

// DeriveValid marks every cell whose tract propagated at least one step.
func DeriveValid(g *models.TractGrid) [][]bool {
	valid := make([][]bool, g.Rows)
	for r := range valid {
		valid[r] = make([]bool, g.Cols)
		for c := range valid[r] {
			valid[r][c] = g.At(r, c).Len() > 1
		}
	}
	return valid
}

// Save writes v to path as indented JSON, creating parent directories.
func Save(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing %s: %w", path, err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("error parsing %s: %w", path, err)
	}
	return nil
}
