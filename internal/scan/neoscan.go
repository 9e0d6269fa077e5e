package scan

import (
	"fmt"
	"io"
	"math"

	"ohana/internal/gen"
	"ohana/internal/mat"
)

// Neoscan searches each marker for an allele-frequency shift explaining
// the data better than the fitted frequencies, weighting individuals by
// their sample ages when these are known.
type Neoscan struct {
	g gen.Matrix
	q *mat.Matrix
	f *mat.Matrix
	y []float64 // per-individual shift coefficient
	// excluded individuals carry a negative year and never contribute
	include []bool

	fj []float64 // scratch: the shifted frequency column
}

// NeoscanOutput is the scan result for one marker.
type NeoscanOutput struct {
	Delta     float64
	GlobalLLE float64
	LocalLLE  float64
}

// LLERatio returns 2 * (local - global).
func (o NeoscanOutput) LLERatio() float64 {
	return 2 * (o.LocalLLE - o.GlobalLLE)
}

// NewNeoscan validates the shapes and derives the per-individual shift
// coefficients from the years vector: negative years exclude an
// individual, other years map to (mean - y) / max(maxY - y, y - minY).
func NewNeoscan(g gen.Matrix, q, f, years *mat.Matrix) (*Neoscan, error) {
	if err := gen.ValidateGQF(g, q, f); err != nil {
		return nil, err
	}
	if !years.IsColumnVector() {
		return nil, fmt.Errorf("%w, years matrix %s is not a column vector",
			ErrInvalidScan, years.SizeString())
	}
	I := q.Rows()
	if years.Rows() != I {
		return nil, fmt.Errorf("%w, inconsistent number of years (%d); expected %d",
			ErrInvalidScan, years.Rows(), I)
	}

	n := &Neoscan{
		g:       g,
		q:       q,
		f:       f,
		y:       make([]float64, I),
		include: make([]bool, I),
		fj:      make([]float64, f.Rows()),
	}
	maxY := years.Max()
	minY := years.Min()
	avgY := years.Sum() / float64(I)
	for i := 0; i < I; i++ {
		y := years.At(i, 0)
		if y < 0 {
			continue
		}
		n.include[i] = true
		n.y[i] = (avgY - y) / math.Max(maxY-y, y-minY)
	}
	return n, nil
}

// Execute scans every marker, calling action with each result in marker
// order.
func (n *Neoscan) Execute(action func(NeoscanOutput)) {
	const tol = 1e-6
	phi := 0.5 * (math.Sqrt(5) + 1)

	J := n.f.Cols()
	for j := 0; j < J; j++ {
		colMin, colMax := n.f.MinMaxColumn(j)
		rangeLow := -colMax
		rangeHigh := 1 - colMin

		out := NeoscanOutput{Delta: 0}
		out.GlobalLLE = n.computeLLE(j, 0)
		out.LocalLLE = out.GlobalLLE

		// Golden-section search for the shift maximizing the marker's
		// log-likelihood.
		a := rangeLow
		b := rangeHigh
		drPhi := (rangeHigh - rangeLow) / phi
		c := rangeHigh - drPhi
		d := rangeLow + drPhi
		for math.Abs(c-d) > tol {
			if n.computeLLE(j, c) > n.computeLLE(j, d) {
				b = d
			} else {
				a = c
			}
			c = b - (b-a)/phi
			d = a + (b-a)/phi
		}

		gssDelta := 0.5 * (a + b)
		gssLLE := n.computeLLE(j, gssDelta)
		if gssLLE > out.LocalLLE {
			out.Delta = gssDelta
			out.LocalLLE = gssLLE
		}

		action(out)
	}
}

// RunNeoscan writes one row per marker: the shift, the unshifted and
// shifted log-likelihoods, and the likelihood ratio.
func RunNeoscan(g gen.Matrix, q, f, years *mat.Matrix, out io.Writer) error {
	n, err := NewNeoscan(g, q, f, years)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "d\tglobal-lle\tlocal-lle\tlle-ratio")
	n.Execute(func(o NeoscanOutput) {
		fmt.Fprintf(out, "%+.6e\t%+.6e\t%+.6e\t%+.6e\n",
			o.Delta, o.GlobalLLE, o.LocalLLE, o.LLERatio())
	})
	return nil
}

// shiftColumn fills the scratch column with f[:,j] + d*y_i clamped inside
// (0, 1).
func (n *Neoscan) shiftColumn(j, i int, d float64) {
	const epsilon = 1e-6
	dy := d * n.y[i]
	for k := range n.fj {
		n.fj[k] = math.Min(math.Max(epsilon, n.f.At(k, j)+dy), 1-epsilon)
	}
}

// dosages returns the expected major and minor dosage for individual i
// under the scratch column.
func (n *Neoscan) dosages(i int) (aIJ, bIJ float64) {
	for k, fKJ := range n.fj {
		qIK := n.q.At(i, k)
		aIJ += qIK * fKJ
		bIJ += qIK * (1 - fKJ)
	}
	return aIJ, bIJ
}

func (n *Neoscan) computeLLE(j int, d float64) float64 {
	I := n.q.Rows()
	lle := 0.0
	switch g := n.g.(type) {
	case *gen.Discrete:
		for i := 0; i < I; i++ {
			if !n.include[i] {
				continue
			}
			gIJ, ok := gen.MinorCount(g.At(i, j))
			if !ok {
				continue
			}
			n.shiftColumn(j, i, d)
			aIJ, bIJ := n.dosages(i)
			lle += math.Log(aIJ)*gIJ + math.Log(bIJ)*(2-gIJ)
		}
	case *gen.Likelihood:
		gAA := g.MajorMajor()
		gAa := g.MajorMinor()
		gaa := g.MinorMinor()
		for i := 0; i < I; i++ {
			if !n.include[i] {
				continue
			}
			n.shiftColumn(j, i, d)
			aIJ, bIJ := n.dosages(i)
			lle += math.Log(gAA.At(i, j)*aIJ*aIJ +
				gaa.At(i, j)*bIJ*bIJ +
				gAa.At(i, j)*aIJ*bIJ*2)
		}
	default:
		panic("unsupported genotype matrix")
	}
	return lle
}
