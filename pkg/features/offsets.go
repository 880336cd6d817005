// Package features defines the candidate-generation boundary of the
// landmark pipeline: the fixed feature-offset table shared by every
// landmark, the per-invocation candidate samples, and the Generator
// interface the locator scores against.
package features

import (
	"archive/zip"
	"fmt"
	"io"

	"github.com/sbinet/npyio"
)

// OffsetTable holds the fixed relative-voxel-offset pattern used to build
// each candidate's feature vector. It is loaded once per run and shared
// read-only by every landmark invocation; the same table must have been used
// when the models were trained.
type OffsetTable struct {
	Base [][]float64
	Aux  [][]float64
}

// LoadOffsets reads an offset archive: a zip (".npz") containing exactly the
// two little-endian arrays "arr_0.npy" and "arr_1.npy".
func LoadOffsets(path string) (*OffsetTable, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open offsets archive %s: %w", path, err)
	}
	defer zr.Close()

	base, err := readArchiveArray(&zr.Reader, "arr_0.npy")
	if err != nil {
		return nil, fmt.Errorf("offsets archive %s: %w", path, err)
	}
	aux, err := readArchiveArray(&zr.Reader, "arr_1.npy")
	if err != nil {
		return nil, fmt.Errorf("offsets archive %s: %w", path, err)
	}
	if len(base) == 0 || len(aux) == 0 {
		return nil, fmt.Errorf("offsets archive %s: empty offset array", path)
	}
	return &OffsetTable{Base: base, Aux: aux}, nil
}

func readArchiveArray(zr *zip.Reader, name string) ([][]float64, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open entry %s: %w", name, err)
		}
		defer rc.Close()
		arr, err := readNpy(rc)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", name, err)
		}
		return arr, nil
	}
	return nil, fmt.Errorf("missing entry %s", name)
}

// readNpy decodes a NumPy ".npy" payload into rows. Only C-ordered 1-D or
// 2-D little-endian numeric arrays are supported, which covers everything
// the offset extraction writes.
func readNpy(r io.Reader) ([][]float64, error) {
	npr, err := npyio.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("read npy header: %w", err)
	}
	if npr.Header.Descr.Fortran {
		return nil, fmt.Errorf("fortran-ordered arrays are not supported")
	}
	rows, cols, err := arrayDims(npr.Header.Descr.Shape)
	if err != nil {
		return nil, err
	}

	flat, err := readElements(npr, npr.Header.Descr.Type)
	if err != nil {
		return nil, err
	}
	if len(flat) != rows*cols {
		return nil, fmt.Errorf("shape (%d, %d) does not match %d elements", rows, cols, len(flat))
	}

	out := make([][]float64, rows)
	for i := range out {
		out[i] = flat[i*cols : (i+1)*cols : (i+1)*cols]
	}
	return out, nil
}

func readElements(npr *npyio.Reader, dtype string) ([]float64, error) {
	switch dtype {
	case "<f8":
		var data []float64
		if err := npr.Read(&data); err != nil {
			return nil, fmt.Errorf("read elements: %w", err)
		}
		return data, nil
	case "<f4":
		var data []float32
		if err := npr.Read(&data); err != nil {
			return nil, fmt.Errorf("read elements: %w", err)
		}
		return widen(data), nil
	case "<i8":
		var data []int64
		if err := npr.Read(&data); err != nil {
			return nil, fmt.Errorf("read elements: %w", err)
		}
		return widen(data), nil
	case "<i4":
		var data []int32
		if err := npr.Read(&data); err != nil {
			return nil, fmt.Errorf("read elements: %w", err)
		}
		return widen(data), nil
	default:
		return nil, fmt.Errorf("unsupported dtype %q", dtype)
	}
}

func widen[T float32 | int32 | int64](data []T) []float64 {
	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = float64(v)
	}
	return out
}

func arrayDims(shape []int) (rows, cols int, err error) {
	switch len(shape) {
	case 1:
		return shape[0], 1, nil
	case 2:
		return shape[0], shape[1], nil
	default:
		return 0, 0, fmt.Errorf("unsupported array rank %d", len(shape))
	}
}
