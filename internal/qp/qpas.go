// Package qp provides the two quadratic-programming solvers behind the
// ancestry optimizer: an active-set method and Lemke's complementary
// pivoting algorithm for the equivalent linear complementarity problem.
package qp

import (
	"errors"
	"math"
	"slices"

	"ohana/internal/mat"
)

const epsilon = 1e-6

var ErrNoProgress = errors.New("active set made no progress")

// LoopOverActiveSet maximizes g'd + 0.5*d'Hd subject to coeffs*d <= b, with
// the constraints listed in fixed always held as equalities. The working
// set starts from active and delta must hold a feasible starting point for
// it. On success delta holds the optimal step; on cycle detection it holds
// the best feasible step found. A singular KKT system aborts the solve with
// an error and delta is unreliable.
func LoopOverActiveSet(b, coeffs, hessian, deriv *mat.Matrix, fixed, active []int, delta *mat.Matrix) error {
	K := hessian.Rows()
	inequalityCount := b.Rows() - len(fixed)
	visited := make(map[uint64]struct{})

	active = slices.Clone(active)
	for {
		var key uint64
		for _, i := range active {
			key |= 1 << uint(i)
		}
		if _, seen := visited[key]; seen {
			return nil // cycle: keep the best feasible delta found so far
		}
		visited[key] = struct{}{}

		merged := make([]int, 0, len(active)+len(fixed))
		merged = append(merged, active...)
		merged = append(merged, fixed...)

		tryDelta := mat.New(K, 1)
		lagrangian := mat.New(len(merged), 1)
		if err := solveKKT(b, coeffs, hessian, deriv, merged, tryDelta, lagrangian); err != nil {
			return err
		}

		var violated []int
		if len(active) < K-len(fixed) {
			for i := 0; i < inequalityCount; i++ {
				if slices.Contains(merged, i) {
					continue
				}
				if rowDot(coeffs, i, tryDelta) > b.At(i, 0) {
					violated = append(violated, i)
				}
			}
		}

		if len(violated) == 0 {
			delta.CopyFrom(tryDelta)
			drop := -1
			for i := range active {
				li := lagrangian.At(i, 0)
				if li < 0 {
					continue
				}
				if drop < 0 || li > lagrangian.At(drop, 0) {
					drop = i
				}
			}
			if drop < 0 {
				return nil // all multipliers non-positive: optimal
			}
			active = slices.Delete(active, drop, drop+1)
			continue
		}

		blocking := backtrack(b, coeffs, delta, tryDelta, violated)
		if blocking < 0 {
			continue
		}
		active = append(active, blocking)
	}
}

// backtrack finds the largest step from delta toward tryDelta that keeps
// the violated constraints feasible, writes the stepped point into delta,
// and returns the first blocking constraint, or -1 if every step
// denominator vanished.
func backtrack(b, coeffs, delta, tryDelta *mat.Matrix, violated []int) int {
	K := delta.Rows()
	diff := mat.New(K, 1)
	for k := 0; k < K; k++ {
		diff.Set(k, 0, tryDelta.At(k, 0)-delta.At(k, 0))
	}

	minI := -1
	minT := 0.0
	for _, v := range violated {
		denominator := rowDot(coeffs, v, diff)
		if math.Abs(denominator) < epsilon {
			continue
		}
		t := (b.At(v, 0) - rowDot(coeffs, v, delta)) / denominator
		if minI < 0 || t < minT {
			minI = v
			minT = t
		}
	}
	if minI < 0 {
		return -1
	}
	for k := 0; k < K; k++ {
		delta.Set(k, 0, delta.At(k, 0)+minT*diff.At(k, 0))
	}
	return minI
}

// solveKKT assembles the KKT system for the given active constraints and
// solves it in place, splitting the solution into the step and the
// Lagrange multipliers.
func solveKKT(b, coeffs, hessian, deriv *mat.Matrix, active []int, delta, lagrangian *mat.Matrix) error {
	K := hessian.Rows()
	m := len(active)
	kkt := mat.New(K+m, K+m+1)
	for k1 := 0; k1 < K; k1++ {
		for k2 := 0; k2 < K; k2++ {
			kkt.Set(k1, k2, hessian.At(k1, k2))
		}
	}
	for i, a := range active {
		for k := 0; k < K; k++ {
			v := coeffs.At(a, k)
			kkt.Set(K+i, k, v)
			kkt.Set(k, K+i, v)
		}
	}
	last := K + m
	for k := 0; k < K; k++ {
		kkt.Set(k, last, -deriv.At(k, 0))
	}
	for i, a := range active {
		kkt.Set(K+i, last, b.At(a, 0))
	}
	if err := kkt.Gesv(); err != nil {
		return ErrNoProgress
	}
	if kkt.ContainsNonFinite() {
		return ErrNoProgress
	}
	for k := 0; k < K; k++ {
		delta.Set(k, 0, kkt.At(k, last))
	}
	for i := 0; i < m; i++ {
		lagrangian.Set(i, 0, kkt.At(K+i, last))
	}
	return nil
}

func rowDot(m *mat.Matrix, r int, v *mat.Matrix) float64 {
	sum := 0.0
	for c := 0; c < m.Cols(); c++ {
		sum += m.At(r, c) * v.At(c, 0)
	}
	return sum
}
