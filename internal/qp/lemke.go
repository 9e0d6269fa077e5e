package qp

import (
	"fmt"
	"math"
	"strings"

	"ohana/internal/mat"
)

// LemkeState reports how a Lemke solve terminated.
type LemkeState int

const (
	Executing LemkeState = iota
	Completed
	AbortedInitialization // no initial pivot row
	AbortedElimination    // near-zero pivot
	AbortedPivot          // no suitable ratio-test row
)

func (s LemkeState) String() string {
	switch s {
	case Executing:
		return "executing"
	case Completed:
		return "completed"
	case AbortedInitialization:
		return "aborted_initialization"
	case AbortedElimination:
		return "aborted_elimination"
	case AbortedPivot:
		return "aborted_pivot"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

const invalidIndex = -1

// Lemke solves the linear complementarity problem w - Mz = q, w,z >= 0,
// w'z = 0 by complementary pivoting on a tableau of n rows and 2n+2
// columns: the w columns, the z columns, the z_0 column, and q.
type Lemke struct {
	labels   []int
	pivotCol int
	pivotRow int
	state    LemkeState
	tableau  *mat.Matrix
}

// NewLemke starts the algorithm on a prepared tableau.
func NewLemke(tableau *mat.Matrix) *Lemke {
	n := tableau.Rows()
	if tableau.Cols() != 2*n+2 {
		panic(fmt.Sprintf("invalid tableau size %s", tableau.SizeString()))
	}
	l := &Lemke{
		labels:   make([]int, n),
		pivotCol: invalidIndex,
		pivotRow: invalidIndex,
		state:    Executing,
		tableau:  tableau.Clone(),
	}
	for i := range l.labels {
		l.labels[i] = i
	}

	// The first pivot column is z_0; abort if no row has a negative q.
	l.pivotCol = 2 * n
	if !l.findInitialPivotRow() {
		l.terminate(AbortedInitialization)
	}
	return l
}

// NewLemkeMQ starts the algorithm from the M matrix and q vector.
func NewLemkeMQ(m, q *mat.Matrix) *Lemke {
	return NewLemke(lemkeTableau(m, q))
}

// NewLemkeQP starts the algorithm from a quadratic program: objective
// matrix qm and vector c, constraints a and b.
func NewLemkeQP(qm, a, c, b *mat.Matrix) *Lemke {
	return NewLemke(lemkeTableau(lemkeM(qm, a), lemkeQ(c, b)))
}

func (l *Lemke) State() LemkeState { return l.state }

func (l *Lemke) IsExecuting() bool { return l.state == Executing }

// Labels returns the basic-variable label of each tableau row.
func (l *Lemke) Labels() []int { return l.labels }

// Tableau returns the current tableau.
func (l *Lemke) Tableau() *mat.Matrix { return l.tableau }

// Output returns the z vector of the solution.
func (l *Lemke) Output() *mat.Matrix {
	n := l.tableau.Rows()
	q := 2*n + 1
	out := mat.New(n, 1)
	for i, label := range l.labels {
		if label >= n && label < 2*n {
			out.Set(label-n, 0, l.tableau.At(i, q))
		}
	}
	return out
}

// Iterate performs one pivot. It returns true while the algorithm is still
// executing.
func (l *Lemke) Iterate() bool {
	if l.state != Executing {
		return false
	}
	if !l.eliminate() {
		return l.terminate(AbortedElimination)
	}
	if !l.relabel() {
		return l.terminate(Completed)
	}
	if !l.findPivotRow() {
		return l.terminate(AbortedPivot)
	}
	return true
}

// Solve iterates until termination and reports whether the algorithm
// completed.
func (l *Lemke) Solve() bool {
	for l.state == Executing {
		l.Iterate()
	}
	return l.state == Completed
}

// SolveTableau solves the LCP for a prepared tableau, returning the z
// vector on success.
func SolveTableau(tableau *mat.Matrix) (*mat.Matrix, bool) {
	l := NewLemke(tableau)
	if !l.Solve() {
		return nil, false
	}
	return l.Output(), true
}

// SolveQP solves the LCP formulation of a quadratic program, returning the
// z vector on success.
func SolveQP(qm, a, c, b *mat.Matrix) (*mat.Matrix, bool) {
	l := NewLemkeQP(qm, a, c, b)
	if !l.Solve() {
		return nil, false
	}
	return l.Output(), true
}

// FormatLabel formats a label as w_1..w_n, z_0..z_n, or q.
func (l *Lemke) FormatLabel(label int) string {
	n := l.tableau.Rows()
	switch {
	case label < n:
		return fmt.Sprintf("w_%d", label+1)
	case label < 2*n:
		return fmt.Sprintf("z_%d", label+1-n)
	case label == 2*n:
		return "z_0"
	case label == 2*n+1:
		return "q"
	}
	return fmt.Sprintf("%d", label)
}

func (l *Lemke) String() string {
	n := l.tableau.Rows()
	var sb strings.Builder
	fmt.Fprintf(&sb, "%8s", "BV")
	for j := 0; j <= 2*n+1; j++ {
		fmt.Fprintf(&sb, "%8s", l.FormatLabel(j))
	}
	sb.WriteByte('\n')
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "%8s", l.FormatLabel(l.labels[i]))
		for j := 0; j <= 2*n+1; j++ {
			fmt.Fprintf(&sb, "%8.3g", l.tableau.At(i, j))
		}
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "\nstate: %s\n", l.state)
	return sb.String()
}

// eliminate normalizes the pivot row and clears the pivot column from the
// other rows. A near-zero pivot aborts.
func (l *Lemke) eliminate() bool {
	t := l.tableau
	w := t.Cols()
	n := t.Rows()

	pivot := t.At(l.pivotRow, l.pivotCol)
	if math.Abs(pivot) < epsilon {
		return false
	}
	for j := 0; j < w; j++ {
		if j != l.pivotCol {
			t.Set(l.pivotRow, j, t.At(l.pivotRow, j)/pivot)
		}
	}
	t.Set(l.pivotRow, l.pivotCol, 1)

	for i := 0; i < n; i++ {
		if i == l.pivotRow {
			continue
		}
		factor := t.At(i, l.pivotCol)
		for j := 0; j < w; j++ {
			if j != l.pivotCol {
				t.Set(i, j, t.At(i, j)-factor*t.At(l.pivotRow, j))
			}
		}
		t.Set(i, l.pivotCol, 0)
	}
	return true
}

// findInitialPivotRow selects the row with the most negative q value.
func (l *Lemke) findInitialPivotRow() bool {
	t := l.tableau
	n := t.Rows()
	q := 2*n + 1

	l.pivotRow = invalidIndex
	pivotValue := 0.0
	for i := 0; i < n; i++ {
		tiq := t.At(i, q)
		if tiq >= 0 {
			continue
		}
		if l.pivotRow == invalidIndex || tiq < pivotValue {
			l.pivotRow = i
			pivotValue = tiq
		}
	}
	return l.pivotRow != invalidIndex
}

// findPivotRow applies the minimum-ratio test over rows positive in the
// pivot column.
func (l *Lemke) findPivotRow() bool {
	t := l.tableau
	n := t.Rows()
	q := 2*n + 1

	l.pivotRow = invalidIndex
	ratio := 0.0
	for i := 0; i < n; i++ {
		tip := t.At(i, l.pivotCol)
		if tip <= 0 {
			continue
		}
		r := t.At(i, q) / tip
		if l.pivotRow == invalidIndex || r < ratio {
			l.pivotRow = i
			ratio = r
		}
	}
	return l.pivotRow != invalidIndex
}

// relabel swaps the pivot column's label into the basis. It returns false
// once z_0 leaves the basis, which completes the algorithm.
func (l *Lemke) relabel() bool {
	n := l.tableau.Rows()
	z0 := 2 * n

	old := l.labels[l.pivotRow]
	l.labels[l.pivotRow] = l.pivotCol
	if old == z0 {
		return false
	}

	// The complementary label drives the next pivot.
	if old >= n {
		l.pivotCol = old - n
	} else {
		l.pivotCol = old + n
	}
	return true
}

func (l *Lemke) terminate(state LemkeState) bool {
	l.pivotRow = invalidIndex
	l.pivotCol = invalidIndex
	l.state = state
	return false
}

// lemkeM builds the LCP matrix from the QP objective matrix q and the
// constraint matrix a:
//
//	|  Q  -A' |
//	|  A   0  |
func lemkeM(q, a *mat.Matrix) *mat.Matrix {
	qn := q.Rows()
	ah := a.Rows()
	m := mat.New(qn+ah, qn+ah)
	for i := 0; i < qn; i++ {
		for j := 0; j < qn; j++ {
			m.Set(i, j, q.At(i, j))
		}
	}
	for i := 0; i < ah; i++ {
		for j := 0; j < qn; j++ {
			m.Set(qn+i, j, a.At(i, j))
			m.Set(j, qn+i, -a.At(i, j))
		}
	}
	return m
}

// lemkeQ stacks the objective vector c over the negated bound vector b.
func lemkeQ(c, b *mat.Matrix) *mat.Matrix {
	ch := c.Rows()
	bh := b.Rows()
	q := mat.New(ch+bh, 1)
	for i := 0; i < ch; i++ {
		q.Set(i, 0, c.At(i, 0))
	}
	for i := 0; i < bh; i++ {
		q.Set(ch+i, 0, -b.At(i, 0))
	}
	return q
}

// lemkeTableau lays out [I | -M | -1 | q].
func lemkeTableau(m, q *mat.Matrix) *mat.Matrix {
	n := q.Rows()
	t := mat.New(n, 2*n+2)
	for i := 0; i < n; i++ {
		t.Set(i, i, 1)
		for j := 0; j < n; j++ {
			t.Set(i, n+j, -m.At(i, j))
		}
		t.Set(i, 2*n, -1)
		t.Set(i, 2*n+1, q.At(i, 0))
	}
	return t
}
