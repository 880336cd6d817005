package models

import (
	"math"
	"testing"
)

func TestIdentityApply(t *testing.T) {
	v := Voxel{X: 3, Y: -4, Z: 5.5}
	got := Identity().Apply(v)
	want := Coordinate{X: 3, Y: -4, Z: 5.5}
	if got != want {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestAffineApply(t *testing.T) {
	// 90-degree rotation about z, anisotropic z scaling, translation
	aff, err := NewAffine([]float64{
		0, -1, 0, 10,
		1, 0, 0, -5,
		0, 0, 2, 1,
		0, 0, 0, 1,
	})
	if err != nil {
		t.Fatalf("NewAffine failed: %v", err)
	}

	got := aff.Apply(Voxel{X: 2, Y: 3, Z: 4})
	want := Coordinate{X: 7, Y: -3, Z: 9}

	if math.Abs(got.X-want.X) > 1e-12 ||
		math.Abs(got.Y-want.Y) > 1e-12 ||
		math.Abs(got.Z-want.Z) > 1e-12 {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestNewAffineRequires16Elements(t *testing.T) {
	if _, err := NewAffine([]float64{1, 2, 3}); err == nil {
		t.Error("Expected an error for a short element slice")
	}
	if _, err := NewAffine(make([]float64, 20)); err == nil {
		t.Error("Expected an error for a long element slice")
	}
}

func TestElementsRoundTrip(t *testing.T) {
	elements := []float64{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
		0, 0, 0, 1,
	}
	aff, err := NewAffine(elements)
	if err != nil {
		t.Fatalf("NewAffine failed: %v", err)
	}

	got := aff.Elements()
	for i := range elements {
		if got[i] != elements[i] {
			t.Errorf("Element %d: expected %f, got %f", i, elements[i], got[i])
		}
	}

	// The constructor copies its input
	elements[0] = 99
	if aff.At(0, 0) != 1 {
		t.Error("Affine must not alias the caller's slice")
	}
}
