// Package config provides configuration loading and management for fibertrack.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"fibertrack/internal/models"
	"fibertrack/pkg/quality"
	"fibertrack/pkg/smoothing"
)

// ErrInvalidConfig wraps every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

var validate = validator.New()

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumWorkers bounds the number of grid cells processed concurrently
		NumWorkers int `yaml:"numWorkers" validate:"gte=0"`
	} `yaml:"processing"`

	// DWI describes the diffusion image geometry shared by both stages
	DWI struct {
		// FieldOfView is the in-plane field of view in mm
		FieldOfView float64 `yaml:"fieldOfView" validate:"gt=0"`

		// MatrixSize is the in-plane matrix size in voxels
		MatrixSize float64 `yaml:"matrixSize" validate:"gt=0"`

		// SliceThickness is the slice spacing in mm
		SliceThickness float64 `yaml:"sliceThickness" validate:"gt=0"`
	} `yaml:"dwi"`

	// Smoothing parameters
	Smoothing struct {
		// InterpolationStep is the output spacing as a fraction of the
		// input point spacing
		InterpolationStep float64 `yaml:"interpolationStep" validate:"gt=0"`

		// POrder is either one shared polynomial order or one per axis
		// (row, column, slice)
		POrder []int `yaml:"pOrder" validate:"required,len=1|len=3,dive,gte=1"`

		// Unit is the unit of the input tracts: voxel or mm
		Unit string `yaml:"unit" validate:"required"`
	} `yaml:"smoothing"`

	// Cascade thresholds. These have no implicit defaults when loading a
	// file and must be given explicitly.
	Cascade struct {
		// MinDistance is the shortest acceptable tract in mm
		MinDistance *float64 `yaml:"minDistance,omitempty" validate:"required,gt=0"`

		// MinPennation and MaxPennation bound the mean pennation angle in degrees
		MinPennation *float64 `yaml:"minPennation,omitempty" validate:"required"`
		MaxPennation *float64 `yaml:"maxPennation,omitempty" validate:"required"`

		// MaxCurvature is the ceiling on mean curvature in 1/m
		MaxCurvature *float64 `yaml:"maxCurvature,omitempty" validate:"required"`

		// SamplingFrequency enables uniform resampling, in tracts per mm
		SamplingFrequency *float64 `yaml:"samplingFrequency,omitempty" validate:"omitempty,gt=0"`

		// PropagationAxis is row, col or slice
		PropagationAxis string `yaml:"propagationAxis" validate:"omitempty,oneof=row col slice"`

		// Descending expects tracts to run towards lower coordinates
		Descending bool `yaml:"descending"`
	} `yaml:"cascade"`

	// Output parameters
	Output struct {
		// Verbose enables debug logging
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

func ptrFloat64(v float64) *float64 { return &v }

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := baseConfig()

	// Set default cascade thresholds
	cfg.Cascade.MinDistance = ptrFloat64(10)
	cfg.Cascade.MinPennation = ptrFloat64(0)
	cfg.Cascade.MaxPennation = ptrFloat64(40)
	cfg.Cascade.MaxCurvature = ptrFloat64(40)

	return cfg
}

// baseConfig sets every default except the cascade thresholds
func baseConfig() *Config {
	cfg := &Config{}

	// Set default processing parameters
	cfg.Processing.NumWorkers = runtime.NumCPU()

	// Set default image geometry
	cfg.DWI.FieldOfView = 192
	cfg.DWI.MatrixSize = 64
	cfg.DWI.SliceThickness = 7

	// Set default smoothing parameters
	cfg.Smoothing.InterpolationStep = 1
	cfg.Smoothing.POrder = []int{2, 2, 3}
	cfg.Smoothing.Unit = "voxel"

	cfg.Cascade.PropagationAxis = "slice"

	cfg.Output.Verbose = false

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	cfg := baseConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// Validate checks field constraints and the cross-field rules the struct
// tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := models.ParseUnit(c.Smoothing.Unit); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if *c.Cascade.MinPennation >= *c.Cascade.MaxPennation {
		return fmt.Errorf("%w: minPennation %v must be below maxPennation %v",
			ErrInvalidConfig, *c.Cascade.MinPennation, *c.Cascade.MaxPennation)
	}
	return nil
}

// Resolution returns the diffusion image geometry.
func (c *Config) Resolution() models.Resolution {
	return models.Resolution{
		FieldOfView:    c.DWI.FieldOfView,
		MatrixSize:     c.DWI.MatrixSize,
		SliceThickness: c.DWI.SliceThickness,
	}
}

// Order expands POrder into one order per axis.
func (c *Config) Order() [3]int {
	if len(c.Smoothing.POrder) == 1 {
		return smoothing.SharedOrder(c.Smoothing.POrder[0])
	}
	var o [3]int
	copy(o[:], c.Smoothing.POrder)
	return o
}

// SmootherParams validates the configuration and builds the smoothing
// parameters from it.
func (c *Config) SmootherParams(logger *slog.Logger) (*smoothing.Params, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	unit, _ := models.ParseUnit(c.Smoothing.Unit)
	return &smoothing.Params{
		InterpolationStep: c.Smoothing.InterpolationStep,
		Order:             c.Order(),
		Resolution:        c.Resolution(),
		Unit:              unit,
		Workers:           c.Processing.NumWorkers,
		Logger:            logger,
	}, nil
}

// CascadeParams validates the configuration and builds the quality
// cascade parameters from it.
func (c *Config) CascadeParams(logger *slog.Logger) (*quality.Params, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	p := &quality.Params{
		MinDistance:  *c.Cascade.MinDistance,
		MinPennation: *c.Cascade.MinPennation,
		MaxPennation: *c.Cascade.MaxPennation,
		MaxCurvature: *c.Cascade.MaxCurvature,
		Resolution:   c.Resolution(),
		Axis:         parseAxis(c.Cascade.PropagationAxis),
		Descending:   c.Cascade.Descending,
		Workers:      c.Processing.NumWorkers,
		Logger:       logger,
	}
	if c.Cascade.SamplingFrequency != nil {
		p.SamplingFrequency = ptrFloat64(*c.Cascade.SamplingFrequency)
	}
	return p, nil
}

func parseAxis(s string) models.Axis {
	switch s {
	case "row":
		return models.AxisRow
	case "col":
		return models.AxisCol
	default:
		return models.AxisSlice
	}
}
