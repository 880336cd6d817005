package features

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/klauspost/compress/gzip"

	"afidsregrf/internal/models"
)

// seedTolerance bounds the per-component difference allowed when matching a
// requested seed against an archived one. Seeds round-trip through text
// coordinate files, so exact float equality is too strict.
const seedTolerance = 1e-6

// GenOptions control the candidate-generation geometry around a seed point.
// They must match the geometry the landmark models were trained with.
type GenOptions struct {
	Offsets      *OffsetTable
	Padding      int
	SamplingRate int
	Size         int
}

// CandidateSample is the output of one generation call for one
// (subject, landmark) pair: the subject's voxel-to-world transform plus
// parallel per-candidate feature-difference vectors and voxel coordinates.
// It lives only for the duration of a single locator invocation.
type CandidateSample struct {
	Affine   *models.Affine
	Features [][]float64
	Voxels   []models.Voxel
}

// Generator produces candidate samples around a seed coordinate in a
// subject image. Implementations must be deterministic for identical inputs
// and must return at least one candidate or an error.
type Generator interface {
	Generate(ctx context.Context, imagePath string, seed models.Coordinate, opts GenOptions) (*CandidateSample, error)
}

// sampleArchive is the on-disk form of a subject's precomputed candidate
// samples: a gzip-compressed JSON document holding one entry per seed, plus
// the generation geometry the extraction ran with.
type sampleArchive struct {
	Padding      int           `json:"padding"`
	SamplingRate int           `json:"samplingRate"`
	Size         int           `json:"size"`
	Entries      []sampleEntry `json:"entries"`
}

type sampleEntry struct {
	Seed     [3]float64   `json:"seed"`
	Affine   []float64    `json:"affine"`
	Features [][]float64  `json:"features"`
	Voxels   [][3]float64 `json:"voxels"`
}

// ArchiveGenerator is the shipped Generator. It serves candidate samples
// that the upstream feature-extraction tooling precomputed from the subject
// volumes; the subject "image path" given to Generate is the path of that
// subject's sample archive. Keeping extraction upstream leaves volume
// parsing and feature engineering out of this tool entirely.
type ArchiveGenerator struct{}

// NewArchiveGenerator returns a Generator backed by precomputed sample
// archives.
func NewArchiveGenerator() *ArchiveGenerator {
	return &ArchiveGenerator{}
}

// Generate loads the subject's archive and returns the entry recorded for
// the given seed. The archived geometry must match opts; a mismatch means
// the archive was extracted with different parameters than the models were
// trained with, which would silently corrupt prediction.
func (g *ArchiveGenerator) Generate(ctx context.Context, imagePath string, seed models.Coordinate, opts GenOptions) (*CandidateSample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	arch, err := readArchive(imagePath)
	if err != nil {
		return nil, err
	}
	if arch.Padding != opts.Padding || arch.SamplingRate != opts.SamplingRate || arch.Size != opts.Size {
		return nil, fmt.Errorf(
			"sample archive %s extracted with padding=%d rate=%d size=%d, run requested padding=%d rate=%d size=%d",
			imagePath, arch.Padding, arch.SamplingRate, arch.Size,
			opts.Padding, opts.SamplingRate, opts.Size)
	}

	for i := range arch.Entries {
		e := &arch.Entries[i]
		if !seedMatches(e.Seed, seed) {
			continue
		}
		return entryToSample(e)
	}
	return nil, fmt.Errorf("sample archive %s has no entry for seed (%g, %g, %g)",
		imagePath, seed.X, seed.Y, seed.Z)
}

func seedMatches(archived [3]float64, seed models.Coordinate) bool {
	return math.Abs(archived[0]-seed.X) <= seedTolerance &&
		math.Abs(archived[1]-seed.Y) <= seedTolerance &&
		math.Abs(archived[2]-seed.Z) <= seedTolerance
}

func entryToSample(e *sampleEntry) (*CandidateSample, error) {
	if len(e.Features) != len(e.Voxels) {
		return nil, fmt.Errorf("archive entry has %d feature vectors but %d voxels",
			len(e.Features), len(e.Voxels))
	}
	aff, err := models.NewAffine(e.Affine)
	if err != nil {
		return nil, fmt.Errorf("archive entry affine: %w", err)
	}
	voxels := make([]models.Voxel, len(e.Voxels))
	for i, v := range e.Voxels {
		voxels[i] = models.Voxel{X: v[0], Y: v[1], Z: v[2]}
	}
	return &CandidateSample{Affine: aff, Features: e.Features, Voxels: voxels}, nil
}

func readArchive(path string) (*sampleArchive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sample archive: %w", err)
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("decompress sample archive %s: %w", path, err)
	}
	defer zr.Close()
	var arch sampleArchive
	if err := json.NewDecoder(zr).Decode(&arch); err != nil {
		return nil, fmt.Errorf("decode sample archive %s: %w", path, err)
	}
	return &arch, nil
}

// WriteArchive exports a subject's precomputed samples. The extraction
// tooling calls this once per subject; tests use it to build fixtures.
func WriteArchive(path string, padding, samplingRate, size int, seeds []models.Coordinate, samples []*CandidateSample) error {
	if len(seeds) != len(samples) {
		return fmt.Errorf("have %d seeds but %d samples", len(seeds), len(samples))
	}
	arch := sampleArchive{
		Padding:      padding,
		SamplingRate: samplingRate,
		Size:         size,
		Entries:      make([]sampleEntry, len(samples)),
	}
	for i, s := range samples {
		voxels := make([][3]float64, len(s.Voxels))
		for j, v := range s.Voxels {
			voxels[j] = [3]float64{v.X, v.Y, v.Z}
		}
		arch.Entries[i] = sampleEntry{
			Seed:     [3]float64{seeds[i].X, seeds[i].Y, seeds[i].Z},
			Affine:   s.Affine.Elements(),
			Features: s.Features,
			Voxels:   voxels,
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create sample archive: %w", err)
	}
	zw := gzip.NewWriter(f)
	if err := json.NewEncoder(zw).Encode(&arch); err != nil {
		f.Close()
		return fmt.Errorf("encode sample archive: %w", err)
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return fmt.Errorf("flush sample archive: %w", err)
	}
	return f.Close()
}
