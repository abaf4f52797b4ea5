package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"fibertrack/pkg/config"
)

// --- Global Command Variables ---
var (
	configPath string
	verbose    bool
	numWorkers int
	inputPath  string
	outputPath string
	padded     bool

	rootCmd = &cobra.Command{
		Use:   "fibertrack",
		Short: "Post-processing for muscle fiber tractography",
		Long: `fibertrack smooths traced muscle fibers with arc-length polynomials
and filters them through a quality-control cascade with optional
uniform spatial resampling.`,
	}

	smoothCmd = &cobra.Command{
		Use:   "smooth",
		Short: "Fit arc-length polynomials to every tract of a seed grid",
		Args:  cobra.NoArgs,
		Run:   runSmoothCommand, // Defined in cmd_smooth.go
	}

	cascadeCmd = &cobra.Command{
		Use:   "cascade",
		Short: "Run the quality-control cascade over smoothed tracts",
		Args:  cobra.NoArgs,
		Run:   runCascadeCommand, // Defined in cmd_cascade.go
	}

	initConfigCmd = &cobra.Command{
		Use:   "init-config [path]",
		Short: "Write a configuration file populated with the defaults",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := config.CreateDefaultConfigFile(args[0]); err != nil {
				log.Fatalf("Failed to write configuration: %v", err)
			}
			fmt.Printf("Default configuration written to %s\n", args[0])
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "fibertrack.yaml",
		"Path to the YAML configuration file (defaults are used when it does not exist)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().IntVar(&numWorkers, "workers", 0,
		"Number of tracts processed concurrently (overrides the configuration)")

	for _, cmd := range []*cobra.Command{smoothCmd, cascadeCmd} {
		cmd.Flags().StringVarP(&inputPath, "input", "i", "", "Input JSON document")
		cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output JSON document")
		_ = cmd.MarkFlagRequired("input")
		_ = cmd.MarkFlagRequired("output")
		rootCmd.AddCommand(cmd)
	}
	smoothCmd.Flags().BoolVar(&padded, "padded", false,
		"Also write the dense zero-padded tract array")

	rootCmd.AddCommand(initConfigCmd)
}
