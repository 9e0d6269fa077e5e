package qp

import (
	"math"
	"testing"

	"ohana/internal/mat"
)

// buildBox builds the constraint system used by the ancestry updates: each
// component may move down by its current value or up by its distance to
// one, with an optional row-sum equality appended.
func buildBox(current []float64, equality bool) (b, coeffs *mat.Matrix, fixed []int) {
	K := len(current)
	padding := 0
	if equality {
		padding = 1
		fixed = []int{2 * K}
	}
	coeffs = mat.New(2*K+padding, K)
	b = mat.New(2*K+padding, 1)
	for k := 0; k < K; k++ {
		coeffs.Set(k, k, -1)
		coeffs.Set(K+k, k, 1)
		b.Set(k, 0, current[k])
		b.Set(K+k, 0, 1-current[k])
	}
	if equality {
		for k := 0; k < K; k++ {
			coeffs.Set(2*K, k, 1)
		}
	}
	return b, coeffs, fixed
}

func solveFixture(t *testing.T, current, deriv []float64, hessian [][]float64, equality bool) *mat.Matrix {
	t.Helper()
	K := len(current)
	b, coeffs, fixed := buildBox(current, equality)
	d := mat.New(K, 1)
	for k, v := range deriv {
		d.Set(k, 0, v)
	}
	h := mat.FromRows(hessian)
	delta := mat.New(K, 1)
	delta.Set(0, 0, -b.At(0, 0))
	if err := LoopOverActiveSet(b, coeffs, h, d, fixed, []int{0}, delta); err != nil {
		t.Fatalf("solve failed: %s", err)
	}
	return delta
}

func TestActiveSetEqualityNewtonStep(t *testing.T) {
	// H = -2I and the simplex equality: the optimum is the projected
	// Newton step (d - mean(d)) / 2.
	delta := solveFixture(t,
		[]float64{0.5, 0.5},
		[]float64{0.3, -0.1},
		[][]float64{{-2, 0}, {0, -2}},
		true)
	if math.Abs(delta.At(0, 0)-0.1) > 1e-6 || math.Abs(delta.At(1, 0)+0.1) > 1e-6 {
		t.Errorf("expected (0.1, -0.1), found (%v, %v)", delta.At(0, 0), delta.At(1, 0))
	}
}

func TestActiveSetRespectsBounds(t *testing.T) {
	// without constraints the step would be (0.45, -0.45), but the first
	// component sits at 0.9 and may only move up by 0.1
	delta := solveFixture(t,
		[]float64{0.9, 0.1},
		[]float64{0.9, -0.9},
		[][]float64{{-2, 0}, {0, -2}},
		true)
	if delta.At(0, 0) > 0.1+1e-9 {
		t.Errorf("upper bound violated: %v", delta.At(0, 0))
	}
	if math.Abs(delta.At(0, 0)+delta.At(1, 0)) > 1e-6 {
		t.Errorf("row sum not preserved: %v", delta.At(0, 0)+delta.At(1, 0))
	}
	if delta.At(1, 0) < -0.1-1e-9 {
		t.Errorf("lower bound violated: %v", delta.At(1, 0))
	}
}

func TestActiveSetBoxOnly(t *testing.T) {
	// no equality: the unconstrained Newton step -H^-1 d = d / 2 is
	// interior and should be returned exactly
	delta := solveFixture(t,
		[]float64{0.5, 0.5},
		[]float64{0.2, -0.2},
		[][]float64{{-2, 0}, {0, -2}},
		false)
	if math.Abs(delta.At(0, 0)-0.1) > 1e-6 || math.Abs(delta.At(1, 0)+0.1) > 1e-6 {
		t.Errorf("expected (0.1, -0.1), found (%v, %v)", delta.At(0, 0), delta.At(1, 0))
	}
}

func TestActiveSetSingularKKT(t *testing.T) {
	b, coeffs, fixed := buildBox([]float64{0.5, 0.5}, true)
	d := mat.New(2, 1)
	h := mat.New(2, 2) // zero Hessian with the equality makes the KKT singular
	delta := mat.New(2, 1)
	delta.Set(0, 0, -b.At(0, 0))
	if err := LoopOverActiveSet(b, coeffs, h, d, fixed, []int{0}, delta); err == nil {
		t.Error("expected an error for a singular KKT system")
	}
}
