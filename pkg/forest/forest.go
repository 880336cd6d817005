// Package forest provides inference for trained per-landmark regression
// ensembles. Models are stored one file per landmark as gzip-compressed JSON
// dumps of the fitted trees; training itself happens in the upstream
// pipeline and is not part of this tool.
package forest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

// ErrModelNotFound indicates that the expected model file for a landmark is
// absent from the model directory.
var ErrModelNotFound = errors.New("model file not found")

// modelFileTemplate encodes the zero-padded landmark index and the sampling
// rate the model was trained with. Inference must use the same sampling rate,
// which is why the rate is part of the filename rather than a runtime flag
// alone.
const modelFileTemplate = "afid-%02d_desc-rf_sampleRate-iso%dvox_model.json.gz"

// Tree is a single regression tree stored as parallel node arrays.
// Node i is a leaf when Left[i] < 0, in which case Value[i] is its output.
// Internal nodes route a sample left when
// sample[Feature[i]] <= Threshold[i], right otherwise. Children always sit
// at higher indices than their parent, so traversal terminates; exported
// sklearn trees satisfy this layout and anything else is rejected at load
// time.
type Tree struct {
	Feature   []int     `json:"feature"`
	Threshold []float64 `json:"threshold"`
	Left      []int     `json:"left"`
	Right     []int     `json:"right"`
	Value     []float64 `json:"value"`
}

func (t *Tree) predict(sample []float64) float64 {
	i := 0
	for t.Left[i] >= 0 {
		if sample[t.Feature[i]] <= t.Threshold[i] {
			i = t.Left[i]
		} else {
			i = t.Right[i]
		}
	}
	return t.Value[i]
}

// validate checks that the node arrays are parallel, that feature indices
// stay in range, and that child links only point forward so prediction can
// never cycle.
func (t *Tree) validate(numFeatures int) error {
	n := len(t.Value)
	if n == 0 {
		return fmt.Errorf("tree has no nodes")
	}
	if len(t.Feature) != n || len(t.Threshold) != n || len(t.Left) != n || len(t.Right) != n {
		return fmt.Errorf("tree node arrays are not parallel")
	}
	for i := 0; i < n; i++ {
		if t.Left[i] < 0 {
			continue
		}
		if t.Left[i] <= i || t.Left[i] >= n || t.Right[i] <= i || t.Right[i] >= n {
			return fmt.Errorf("node %d: child indices must point forward and stay in range", i)
		}
		if t.Feature[i] < 0 || t.Feature[i] >= numFeatures {
			return fmt.Errorf("node %d: feature index %d out of range", i, t.Feature[i])
		}
	}
	return nil
}

// Ensemble is a trained regression forest for one landmark. Prediction is
// the mean of the individual tree outputs and has no side effects, so a
// loaded ensemble is safe for concurrent use.
type Ensemble struct {
	AFID         int    `json:"afid"`
	SamplingRate int    `json:"samplingRate"`
	NumFeatures  int    `json:"numFeatures"`
	Trees        []Tree `json:"trees"`
}

// Predict scores a batch of feature vectors, returning one scalar per
// vector in input order. Each vector must have NumFeatures elements;
// prediction has no error path, so callers check widths up front.
func (e *Ensemble) Predict(features [][]float64) []float64 {
	scores := make([]float64, len(features))
	for i, sample := range features {
		sum := 0.0
		for t := range e.Trees {
			sum += e.Trees[t].predict(sample)
		}
		scores[i] = sum / float64(len(e.Trees))
	}
	return scores
}

func (e *Ensemble) validate() error {
	if len(e.Trees) == 0 {
		return fmt.Errorf("ensemble has no trees")
	}
	if e.NumFeatures < 1 {
		return fmt.Errorf("ensemble declares %d features, need at least 1", e.NumFeatures)
	}
	for i := range e.Trees {
		if err := e.Trees[i].validate(e.NumFeatures); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

// ModelFileName returns the expected model filename for a landmark index and
// sampling rate, e.g. "afid-07_desc-rf_sampleRate-iso5vox_model.json.gz".
func ModelFileName(afid, samplingRate int) string {
	return fmt.Sprintf(modelFileTemplate, afid, samplingRate)
}

// LoadModel resolves and loads the trained ensemble for one landmark from
// dir. A missing file reports ErrModelNotFound; a file that exists but does
// not decode to a valid ensemble is an ordinary fatal error.
func LoadModel(dir string, afid, samplingRate int) (*Ensemble, error) {
	path := filepath.Join(dir, ModelFileName(afid, samplingRate))
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, path)
		}
		return nil, fmt.Errorf("open model %s: %w", path, err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("decompress model %s: %w", path, err)
	}
	defer zr.Close()

	var ens Ensemble
	if err := json.NewDecoder(zr).Decode(&ens); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", path, err)
	}
	if err := ens.validate(); err != nil {
		return nil, fmt.Errorf("invalid model %s: %w", path, err)
	}
	return &ens, nil
}

// Save writes an ensemble as a gzip-compressed JSON model file. It is used
// by the training-side tooling to export fitted forests and by tests to
// build fixtures.
func Save(path string, e *Ensemble) error {
	if err := e.validate(); err != nil {
		return fmt.Errorf("refusing to save invalid model: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create model file: %w", err)
	}
	zw := gzip.NewWriter(f)
	if err := json.NewEncoder(zw).Encode(e); err != nil {
		f.Close()
		return fmt.Errorf("encode model: %w", err)
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return fmt.Errorf("flush model: %w", err)
	}
	return f.Close()
}
