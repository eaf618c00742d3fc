package mathutil

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestGatingThresholdMatchesKnownConstant(t *testing.T) {
	got := GatingThreshold(0.99, 3)
	want := 11.345
	if math.Abs(got-want) > 0.01 {
		t.Fatalf("GatingThreshold(0.99,3) = %f, want approximately %f", got, want)
	}
}

func TestSymmetrizeFixesAsymmetry(t *testing.T) {
	p := mat.NewDense(2, 2, []float64{1, 2, 0, 1})
	sym := Symmetrize(p)
	if sym.At(0, 1) != sym.At(1, 0) {
		t.Fatalf("expected symmetric result, got %v", sym)
	}
	if sym.At(0, 1) != 1 {
		t.Fatalf("expected off-diagonal averaged to 1, got %f", sym.At(0, 1))
	}
}

func TestEigenvalueFloorRepairsIllConditioned(t *testing.T) {
	// A symmetric matrix with a negative eigenvalue (not a valid covariance).
	p := mat.NewSymDense(2, []float64{1, 2, 2, 1})
	result := EigenvalueFloor(p, 1e-6)
	if !result.Repaired {
		t.Fatal("expected repair to trigger for ill-conditioned matrix")
	}
	if !IsPositiveSemiDefinite(p, 1e-6) {
		t.Fatal("expected matrix to be PSD after repair")
	}
}

func TestEigenvalueFloorNoOpForWellConditioned(t *testing.T) {
	p := mat.NewSymDense(2, []float64{4, 0, 0, 4})
	result := EigenvalueFloor(p, 1e-6)
	if result.Repaired {
		t.Fatal("did not expect repair for a well-conditioned diagonal matrix")
	}
}

func TestJosephUpdatePreservesSymmetry(t *testing.T) {
	p := mat.NewDense(2, 2, []float64{4, 0, 0, 4})
	h := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	k := mat.NewDense(2, 2, []float64{0.5, 0, 0, 0.5})
	r := mat.NewDense(2, 2, []float64{1, 0, 0, 1})

	out := JosephUpdate(p, k, h, r)
	if math.Abs(out.At(0, 1)-out.At(1, 0)) > 1e-9 {
		t.Fatalf("expected symmetric Joseph-form result, got %v", out)
	}
	if out.At(0, 0) <= 0 {
		t.Fatalf("expected positive diagonal, got %f", out.At(0, 0))
	}
}
