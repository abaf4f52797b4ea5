package main

import (
	"fmt"
	"log"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"fibertrack/internal/models"
	"fibertrack/pkg/config"
	"fibertrack/pkg/dataset"
	"fibertrack/pkg/smoothing"
)

func runSmoothCommand(cmd *cobra.Command, args []string) {
	cfg, logger := loadConfig()

	startTime := time.Now()
	stats, err := smoothFile(cfg, logger, inputPath, outputPath, padded)
	if err != nil {
		log.Fatalf("Smoothing failed: %v", err)
	}

	fmt.Printf("Smoothing completed in %.2f seconds\n", time.Since(startTime).Seconds())
	fmt.Printf("Fitted tracts:   %d\n", stats.Fitted)
	fmt.Printf("Excluded tracts: %d\n", stats.Excluded)
	fmt.Printf("Longest tract:   %d points\n", stats.MaxLength)
	fmt.Printf("RMS residual:    %.4f mm\n", stats.RMSResidualMM)
	fmt.Printf("Output saved to: %s\n", outputPath)
}

// smoothFile runs one smoothing job from inPath and writes the result to
// outPath.
func smoothFile(cfg *config.Config, logger *slog.Logger, inPath, outPath string, padded bool) (smoothing.Stats, error) {
	in, err := dataset.LoadSmoothInput(inPath)
	if err != nil {
		return smoothing.Stats{}, err
	}

	params, err := cfg.SmootherParams(logger)
	if err != nil {
		return smoothing.Stats{}, err
	}
	if in.Unit != "" {
		unit, err := models.ParseUnit(in.Unit)
		if err != nil {
			return smoothing.Stats{}, fmt.Errorf("input %s: %w", inPath, err)
		}
		params.Unit = unit
	}

	res, err := smoothing.NewSmoother(params).Process(in.Tracts)
	if err != nil {
		return smoothing.Stats{}, err
	}
	if err := dataset.Save(outPath, dataset.NewSmoothOutput(res, padded)); err != nil {
		return smoothing.Stats{}, err
	}
	return res.Stats, nil
}
