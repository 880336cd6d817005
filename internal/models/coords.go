package models

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Voxel is a position on the sampling grid of an image volume.
// Components are kept as float64 because resampled grids can place
// candidates between integer indices.
type Voxel struct {
	X, Y, Z float64
}

// Coordinate is a world-space (scanner) position in mm.
type Coordinate struct {
	X, Y, Z float64
}

// Affine is a 4x4 transform mapping voxel (grid) coordinates to world
// (scanner) coordinates. The upper-left 3x3 block is the rotation/scaling
// part and the first three entries of the last column are the translation.
type Affine struct {
	m *mat.Dense
}

// NewAffine builds an Affine from 16 row-major elements.
func NewAffine(elements []float64) (*Affine, error) {
	if len(elements) != 16 {
		return nil, fmt.Errorf("affine requires 16 elements, got %d", len(elements))
	}
	data := make([]float64, 16)
	copy(data, elements)
	return &Affine{m: mat.NewDense(4, 4, data)}, nil
}

// Identity returns the identity transform, under which voxel and world
// coordinates coincide.
func Identity() *Affine {
	data := make([]float64, 16)
	for i := 0; i < 4; i++ {
		data[i*4+i] = 1
	}
	return &Affine{m: mat.NewDense(4, 4, data)}
}

// At returns the element at row i, column j.
func (a *Affine) At(i, j int) float64 {
	return a.m.At(i, j)
}

// Elements returns the 16 row-major elements of the transform.
func (a *Affine) Elements() []float64 {
	out := make([]float64, 16)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			out[i*4+j] = a.m.At(i, j)
		}
	}
	return out
}

// Apply maps a voxel coordinate to a world coordinate:
// world = R*v + t, with R the upper-left 3x3 block and t the first three
// entries of the last column.
func (a *Affine) Apply(v Voxel) Coordinate {
	in := mat.NewVecDense(3, []float64{v.X, v.Y, v.Z})
	var out mat.VecDense
	out.MulVec(a.m.Slice(0, 3, 0, 3), in)
	return Coordinate{
		X: out.AtVec(0) + a.m.At(0, 3),
		Y: out.AtVec(1) + a.m.At(1, 3),
		Z: out.AtVec(2) + a.m.At(2, 3),
	}
}
