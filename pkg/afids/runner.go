package afids

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"afidsregrf/internal/models"
	"afidsregrf/pkg/fcsv"
	"afidsregrf/pkg/features"
)

// Runner drives the single-landmark locator for all 32 landmarks and writes
// the resulting fiducial table. The run is all-or-nothing: any landmark
// failure aborts it and no output file is produced, since a missing row
// would corrupt the fixed 32-row output contract.
type Runner struct {
	// Generator produces candidate samples per (subject, landmark).
	Generator features.Generator

	// ModelDir holds one trained model file per landmark.
	ModelDir string

	// OffsetsPath is the feature-offset archive, loaded once per run.
	OffsetsPath string

	// OutputPath is where the predicted fiducial table is written.
	OutputPath string

	// Candidate-generation geometry; must match training.
	Padding      int
	Size         int
	SamplingRate int

	// Workers bounds how many landmarks are processed concurrently.
	// Landmarks are independent (each loads its own model and writes its
	// own table slot), so any value is safe; 1 reproduces a fully
	// sequential run. Zero or negative means all available cores.
	Workers int

	// Deadline, when positive, bounds each landmark's locate call. Expiry
	// aborts the whole run.
	Deadline time.Duration

	// Verbose enables per-landmark progress output.
	Verbose bool
}

// Run locates all 32 landmarks for the given batch of subjects and writes
// the final table. imagePaths and seedPaths pair one-to-one.
func (r *Runner) Run(ctx context.Context, imagePaths, seedPaths []string) error {
	if len(imagePaths) != len(seedPaths) {
		return &MismatchedInputLengthError{Subjects: len(imagePaths), Seeds: len(seedPaths)}
	}

	offsets, err := features.LoadOffsets(r.OffsetsPath)
	if err != nil {
		return fmt.Errorf("load feature offsets: %w", err)
	}

	opts := Options{
		Padding:      r.Padding,
		Size:         r.Size,
		SamplingRate: r.SamplingRate,
		Verbose:      r.Verbose,
	}

	workers := r.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	// Each landmark writes its own pre-sized slot, so workers never
	// contend and the table comes out in index order regardless of
	// completion order.
	var coords [NumAFIDs]models.Coordinate

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for afid := 1; afid <= NumAFIDs; afid++ {
		afid := afid
		g.Go(func() error {
			lctx := gctx
			if r.Deadline > 0 {
				var cancel context.CancelFunc
				lctx, cancel = context.WithTimeout(gctx, r.Deadline)
				defer cancel()
			}
			coord, err := Locate(lctx, afid, imagePaths, seedPaths, r.Generator, r.ModelDir, offsets, opts)
			if err != nil {
				return fmt.Errorf("landmark %02d: %w", afid, err)
			}
			coords[afid-1] = coord
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Truncate toward zero to integer voxel-granularity output.
	var table [NumAFIDs][3]int
	for i, c := range coords {
		table[i] = [3]int{int(c.X), int(c.Y), int(c.Z)}
	}
	if err := fcsv.Write(r.OutputPath, table); err != nil {
		return err
	}
	if r.Verbose {
		fmt.Printf("Wrote %d landmarks to %s\n", NumAFIDs, r.OutputPath)
	}
	return nil
}
