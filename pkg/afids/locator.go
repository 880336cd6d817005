// Package afids implements the landmark inference pipeline: per-landmark
// candidate scoring with a trained regression ensemble, best-candidate
// selection, back-projection to world coordinates, and aggregation of all
// 32 landmarks into the final fiducial table.
package afids

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"afidsregrf/internal/models"
	"afidsregrf/pkg/fcsv"
	"afidsregrf/pkg/features"
	"afidsregrf/pkg/forest"
)

// NumAFIDs is the number of standardized anatomical fiducials.
const NumAFIDs = fcsv.NumAFIDs

// Predictor is the single capability a trained landmark model must expose:
// batch scoring of feature vectors, one scalar per vector, side-effect free.
// Any regression ensemble satisfying this is substitutable.
type Predictor interface {
	Predict(features [][]float64) []float64
}

// Options carry the candidate-generation geometry for a locator call. They
// must match the geometry the models were trained with; SamplingRate is
// additionally part of the model filename.
type Options struct {
	Padding      int
	Size         int
	SamplingRate int

	// Verbose enables a per-landmark summary line on stdout.
	Verbose bool
}

// Locate predicts the world coordinate of one landmark from a batch of
// subjects. imagePaths and seedPaths pair one-to-one; for each pair the
// generator produces that subject's candidate voxels and features around
// the landmark's seed.
//
// Candidates from all subjects are pooled into a single set before
// selection, matching the reference pipeline: the returned coordinate is
// the single best candidate across the whole batch and is attributable to
// whichever subject produced it, not one coordinate per subject. The
// selected candidate is the one with the maximum predicted score, ties
// broken by first occurrence, and its voxel is back-projected through the
// transform of the subject it came from.
func Locate(ctx context.Context, afid int, imagePaths, seedPaths []string, gen features.Generator,
	modelDir string, offsets *features.OffsetTable, opts Options) (models.Coordinate, error) {

	if afid < 1 || afid > NumAFIDs {
		return models.Coordinate{}, &InvalidAFIDError{Index: afid}
	}
	if len(imagePaths) != len(seedPaths) {
		return models.Coordinate{}, &MismatchedInputLengthError{
			Subjects: len(imagePaths),
			Seeds:    len(seedPaths),
		}
	}

	genOpts := features.GenOptions{
		Offsets:      offsets,
		Padding:      opts.Padding,
		SamplingRate: opts.SamplingRate,
		Size:         opts.Size,
	}

	// Pool candidates across all subjects, keeping the owning transform
	// aligned index-for-index with its voxels and features.
	var (
		affines []*models.Affine
		feats   [][]float64
		voxels  []models.Voxel
	)
	for i := range imagePaths {
		seed, err := fcsv.Seed(seedPaths[i], afid)
		if err != nil {
			return models.Coordinate{}, fmt.Errorf("seed for landmark %02d: %w", afid, err)
		}
		sample, err := gen.Generate(ctx, imagePaths[i], seed, genOpts)
		if err != nil {
			// Generator failures are fatal for the run and propagate as-is.
			return models.Coordinate{}, err
		}
		if len(sample.Features) != len(sample.Voxels) {
			return models.Coordinate{}, fmt.Errorf("generator returned %d feature vectors but %d voxels for %s",
				len(sample.Features), len(sample.Voxels), imagePaths[i])
		}
		for j := range sample.Voxels {
			affines = append(affines, sample.Affine)
			feats = append(feats, sample.Features[j])
			voxels = append(voxels, sample.Voxels[j])
		}
	}
	if len(voxels) == 0 {
		return models.Coordinate{}, ErrEmptyCandidateSet
	}

	if err := ctx.Err(); err != nil {
		return models.Coordinate{}, err
	}

	ens, err := forest.LoadModel(modelDir, afid, opts.SamplingRate)
	if err != nil {
		if errors.Is(err, forest.ErrModelNotFound) {
			return models.Coordinate{}, &ModelNotFoundError{
				AFID:         afid,
				SamplingRate: opts.SamplingRate,
				cause:        err,
			}
		}
		return models.Coordinate{}, fmt.Errorf("load model for landmark %02d: %w", afid, err)
	}

	// Prediction has no error path, so a model/feature width mismatch has
	// to be caught here rather than surfacing as a panic mid-batch.
	for i := range feats {
		if len(feats[i]) != ens.NumFeatures {
			return models.Coordinate{}, fmt.Errorf(
				"model for landmark %02d expects %d features per candidate, candidate %d has %d",
				afid, ens.NumFeatures, i, len(feats[i]))
		}
	}

	var model Predictor = ens
	scores := model.Predict(feats)
	if len(scores) != len(feats) {
		return models.Coordinate{}, fmt.Errorf("model for landmark %02d returned %d scores for %d candidates",
			afid, len(scores), len(feats))
	}

	best := floats.MaxIdx(scores)
	if opts.Verbose {
		fmt.Printf("AFID %02d: best score %.4f (mean %.4f) over %d candidates at voxel (%g, %g, %g)\n",
			afid, scores[best], stat.Mean(scores, nil), len(scores),
			voxels[best].X, voxels[best].Y, voxels[best].Z)
	}

	return affines[best].Apply(voxels[best]), nil
}
