package ancestry

import (
	"ohana/internal/gen"
	"ohana/internal/mat"
	"ohana/internal/qp"
)

// Solver selects the inner quadratic-programming solver for the Q and F
// updates.
type Solver int

const (
	// SolverQPAS is the active-set solver, the default.
	SolverQPAS Solver = iota
	// SolverLemke is the legacy path, solving the shifted QP on z = d + 1
	// as a linear complementarity problem.
	SolverLemke
)

var ParseSolver = map[string]Solver{
	"qpas":  SolverQPAS,
	"lemke": SolverLemke,
}

func (s Solver) String() string {
	for name, solver := range ParseSolver {
		if solver == s {
			return name
		}
	}
	return "solver?"
}

// subproblem is one per-row or per-column constrained QP: maximize the
// second-order expansion d'x + 0.5*x'Hx over steps keeping the updated
// values inside their box, with an optional row-sum equality. The box
// adjustments raise lower bounds (adjustLo) and cap upper bounds
// (adjustHi); pinned components may not move at all.
type subproblem struct {
	current  *mat.Matrix // the row or column being updated, as a K x 1 vector
	deriv    *mat.Matrix
	hessian  *mat.Matrix
	equality bool // preserve the sum of the updated values
	adjustLo []float64
	adjustHi []float64
	pinned   int // leading components held fixed
}

func (p *subproblem) solve(solver Solver) (*mat.Matrix, bool) {
	if solver == SolverLemke {
		return p.solveLemke()
	}
	return p.solveActiveSet()
}

// solveActiveSet runs the active-set iteration on the step d directly.
func (p *subproblem) solveActiveSet() (*mat.Matrix, bool) {
	K := p.current.Rows()
	padding := 0
	var fixed []int
	if p.equality {
		padding = 1
		fixed = []int{2 * K}
	}

	coeffs := mat.New(2*K+padding, K)
	for k := 0; k < K; k++ {
		coeffs.Set(k, k, -1)
		coeffs.Set(K+k, k, 1)
	}
	if p.equality {
		for k := 0; k < K; k++ {
			coeffs.Set(2*K, k, 1)
		}
	}

	b := mat.New(2*K+padding, 1)
	for k := 0; k < K; k++ {
		b.Set(k, 0, p.current.At(k, 0)+p.adjust(p.adjustLo, k))
		b.Set(K+k, 0, 1-p.current.At(k, 0)+p.adjust(p.adjustHi, k))
	}
	for k := 0; k < p.pinned; k++ {
		b.Set(k, 0, 0)
		b.Set(K+k, 0, 0)
	}

	delta := mat.New(K, 1)
	delta.Set(0, 0, -b.At(0, 0))
	if err := qp.LoopOverActiveSet(b, coeffs, p.hessian, p.deriv, fixed, []int{0}, delta); err != nil {
		return nil, false
	}
	return delta, true
}

// solveLemke formulates the same subproblem on the shifted variable
// z = d + 1, whose non-negativity Lemke's algorithm requires, and recovers
// the step from the first K entries of the solution. The equality is
// encoded as an opposing pair of inequality rows.
func (p *subproblem) solveLemke() (*mat.Matrix, bool) {
	K := p.current.Rows()
	padding := 0
	if p.equality {
		padding = 2
	}

	a := mat.New(2*K+padding, K)
	for k := 0; k < K; k++ {
		a.Set(k, k, -1)
		a.Set(K+k, k, 1)
	}
	if p.equality {
		for k := 0; k < K; k++ {
			a.Set(2*K, k, 1)
			a.Set(2*K+1, k, -1)
		}
	}

	shift := mat.New(K, 1)
	shift.Fill(1)

	b := mat.New(2*K+padding, 1)
	for k := 0; k < K; k++ {
		b.Set(K+k, 0, 1)
	}
	if p.equality {
		b.Set(2*K, 0, 1)
		b.Set(2*K+1, 0, -1)
	}
	aCur := mat.New(2*K+padding, 1)
	mat.Gemv(aCur, a, p.current)
	aShift := mat.New(2*K+padding, 1)
	mat.Gemv(aShift, a, shift)
	for r := 0; r < b.Rows(); r++ {
		b.Set(r, 0, b.At(r, 0)-aCur.At(r, 0)+aShift.At(r, 0))
	}
	for k := 0; k < K; k++ {
		b.Set(k, 0, b.At(k, 0)+p.adjust(p.adjustLo, k))
		b.Set(K+k, 0, b.At(K+k, 0)+p.adjust(p.adjustHi, k))
	}
	for k := 0; k < p.pinned; k++ {
		b.Set(k, 0, -1)  // z_k >= 1
		b.Set(K+k, 0, 1) // z_k <= 1
	}

	shiftedC := mat.New(K, 1)
	mat.Gemv(shiftedC, p.hessian, shift)
	for k := 0; k < K; k++ {
		shiftedC.Set(k, 0, shiftedC.At(k, 0)-p.deriv.At(k, 0))
	}

	z, ok := qp.SolveQP(p.hessian.Neg(), a.Neg(), shiftedC, b.Neg())
	if !ok {
		return nil, false
	}
	delta := mat.New(K, 1)
	for k := 0; k < K; k++ {
		delta.Set(k, 0, z.At(k, 0)-1)
	}
	return delta, true
}

func (p *subproblem) adjust(values []float64, k int) float64 {
	if values == nil {
		return 0
	}
	return values[k]
}

// ImproveQ returns an improved Q matrix, solving one constrained QP per
// individual. Rows whose subproblem fails are carried over unchanged.
func ImproveQ(g gen.Matrix, q, fa, fb, qfa, qfb *mat.Matrix, fg *ForcedGrouping, solver Solver) *mat.Matrix {
	I := q.Rows()
	K := q.Cols()
	qDst := mat.New(I, K)

	deriv := mat.New(K, 1)
	hessian := mat.New(K, K)

	for i := 0; i < I; i++ {
		qRow := q.Row(i).Transpose()
		g.ComputeDerivativesQ(q, fa, fb, qfa, qfb, i, deriv, hessian)

		prob := subproblem{
			current:  qRow,
			deriv:    deriv,
			hessian:  hessian,
			equality: true,
		}
		if fg != nil {
			prob.adjustLo = make([]float64, K)
			prob.adjustHi = make([]float64, K)
			for k := 0; k < K; k++ {
				prob.adjustLo[k] = -fg.Min(i, k)
				prob.adjustHi[k] = fg.Max(i, k) - 1
			}
		}

		delta, ok := prob.solve(solver)
		for k := 0; k < K; k++ {
			if ok {
				qDst.Set(i, k, qRow.At(k, 0)+delta.At(k, 0))
			} else {
				qDst.Set(i, k, qRow.At(k, 0))
			}
		}

		qDst.ClampRow(i, fMin, fMax)
		qDst.ScaleRow(i, 1/qDst.RowSum(i))
	}
	return qDst
}

// ImproveF returns an improved F matrix, solving one box-constrained QP per
// marker. When finForce is present, its leading components are pinned to
// their current values. Columns whose subproblem fails are carried over
// unchanged.
func ImproveF(g gen.Matrix, q, fa, fb, qfa, qfb *mat.Matrix, finForce *mat.Matrix, bounds Bounds, solver Solver) *mat.Matrix {
	K := fa.Rows()
	J := fa.Cols()
	fDst := mat.New(K, J)

	deriv := mat.New(K, 1)
	hessian := mat.New(K, K)

	pinned := 0
	if finForce != nil {
		pinned = finForce.Rows()
	}

	for j := 0; j < J; j++ {
		fColumn := fa.Column(j)
		g.ComputeDerivativesF(q, fa, fb, qfa, qfb, j, deriv, hessian)

		prob := subproblem{
			current: fColumn,
			deriv:   deriv,
			hessian: hessian,
			pinned:  pinned,
		}

		delta, ok := prob.solve(solver)
		for k := 0; k < K; k++ {
			if ok {
				fDst.Set(k, j, fColumn.At(k, 0)+delta.At(k, 0))
			} else {
				fDst.Set(k, j, fColumn.At(k, 0))
			}
		}
	}

	fDst.Clamp(bounds.Min, bounds.Max)
	return fDst
}
