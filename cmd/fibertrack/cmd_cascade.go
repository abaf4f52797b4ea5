package main

import (
	"fmt"
	"log"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"fibertrack/pkg/config"
	"fibertrack/pkg/dataset"
	"fibertrack/pkg/quality"
)

var stageNames = [quality.NumLayers + 1]string{
	"tracked",
	"monotonic",
	"length",
	"pennation",
	"curvature",
	"neighbourhood",
	"resampled",
}

func runCascadeCommand(cmd *cobra.Command, args []string) {
	cfg, logger := loadConfig()

	startTime := time.Now()
	res, err := cascadeFile(cfg, logger, inputPath, outputPath)
	if err != nil {
		log.Fatalf("Quality cascade failed: %v", err)
	}

	fmt.Printf("Quality cascade completed in %.2f seconds\n", time.Since(startTime).Seconds())
	fmt.Println("Surviving tracts per stage:")
	for i, n := range res.StageCounts {
		if i == quality.NumLayers && res.Resampling == nil {
			continue
		}
		fmt.Printf("  %-14s %d\n", stageNames[i], n)
	}
	fmt.Println("Whole-muscle summary:")
	fmt.Printf("  curvature      %.3f 1/m\n", res.Muscle.Curvature)
	fmt.Printf("  pennation      %.3f deg\n", res.Muscle.Angle)
	fmt.Printf("  length         %.3f mm\n", res.Muscle.Length)
	for _, notice := range res.Notices {
		fmt.Printf("Notice: %s\n", notice)
	}
	fmt.Printf("Output saved to: %s\n", outputPath)
}

// cascadeFile runs one quality-control job from inPath and writes the result
// to outPath.
func cascadeFile(cfg *config.Config, logger *slog.Logger, inPath, outPath string) (*quality.Result, error) {
	in, err := dataset.LoadCascadeInput(inPath)
	if err != nil {
		return nil, err
	}

	params, err := cfg.CascadeParams(logger)
	if err != nil {
		return nil, err
	}

	res, err := quality.NewCascade(params).Process(in.Input())
	if err != nil {
		return nil, err
	}
	if err := dataset.Save(outPath, dataset.NewCascadeOutput(res)); err != nil {
		return nil, err
	}
	return res, nil
}
