package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"afidsregrf/pkg/afids"
	"afidsregrf/pkg/config"
	"afidsregrf/pkg/features"
)

func main() {
	// Parse command line arguments
	subjects := flag.String("subjects", "", "Comma-separated subject sample archives (one per subject)")
	seeds := flag.String("seeds", "", "Comma-separated subject fcsv seed files (one per subject, order-paired with -subjects)")
	offsetsPath := flag.String("feature-offsets", "", "Path to the feature_offsets.npz archive")
	modelDir := flag.String("model-dir", "", "Directory holding one trained model per landmark")
	output := flag.String("output", "", "Output fcsv filename")
	padding := flag.Int("padding", 0, "Number of voxels used when zero-padding subject images (default: 0)")
	size := flag.Int("size", 1, "Factor subject images were resampled by (default: 1)")
	samplingRate := flag.Int("sampling-rate", 5, "Voxels sampled in both directions along each axis; must match training (default: 5)")
	workers := flag.Int("workers", 0, "Landmarks processed concurrently (default: all available cores)")
	deadline := flag.Int("deadline", 0, "Per-landmark deadline in seconds, 0 disables")
	configPath := flag.String("config", "afids-apply.yaml", "Optional YAML configuration file")
	verbose := flag.Bool("verbose", true, "Print per-landmark progress")
	flag.Parse()

	// Load configuration, then let explicitly passed flags win over it
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "padding":
			cfg.Run.Padding = *padding
		case "size":
			cfg.Run.Size = *size
		case "sampling-rate":
			cfg.Run.SamplingRate = *samplingRate
		case "workers":
			cfg.Run.Workers = *workers
		case "deadline":
			cfg.Run.DeadlineSeconds = *deadline
		case "feature-offsets":
			cfg.Paths.FeatureOffsets = *offsetsPath
		case "model-dir":
			cfg.Paths.ModelDir = *modelDir
		case "output":
			cfg.Paths.Output = *output
		case "verbose":
			cfg.Output.Verbose = *verbose
		}
	})

	// Validate inputs
	imagePaths := splitPaths(*subjects)
	seedPaths := splitPaths(*seeds)
	if len(imagePaths) == 0 || len(seedPaths) == 0 {
		flag.Usage()
		os.Exit(1)
	}
	if cfg.Paths.FeatureOffsets == "" || cfg.Paths.ModelDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	fmt.Println("================================")
	fmt.Println("AFIDS REGRESSION-FOREST LANDMARK PREDICTION")
	fmt.Printf("Locating %d anatomical fiducials for %d subject(s)\n", afids.NumAFIDs, len(imagePaths))
	fmt.Println("================================")

	runner := &afids.Runner{
		Generator:    features.NewArchiveGenerator(),
		ModelDir:     cfg.Paths.ModelDir,
		OffsetsPath:  cfg.Paths.FeatureOffsets,
		OutputPath:   cfg.Paths.Output,
		Padding:      cfg.Run.Padding,
		Size:         cfg.Run.Size,
		SamplingRate: cfg.Run.SamplingRate,
		Workers:      cfg.Run.Workers,
		Deadline:     time.Duration(cfg.Run.DeadlineSeconds) * time.Second,
		Verbose:      cfg.Output.Verbose,
	}

	startTime := time.Now()
	if err := runner.Run(context.Background(), imagePaths, seedPaths); err != nil {
		log.Fatalf("Landmark prediction failed: %v", err)
	}

	fmt.Printf("\nPrediction completed successfully in %.2f seconds!\n", time.Since(startTime).Seconds())
	fmt.Printf("Predicted fiducials saved to: %s\n", cfg.Paths.Output)
}

// splitPaths splits a comma-separated flag value into paths, dropping empty
// entries from stray commas.
func splitPaths(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
