package gen

import (
	"fmt"
	"math"

	"ohana/internal/mat"
)

// Discrete is an I x J matrix of observed genotypes.
type Discrete struct {
	rows, cols int
	g          []Genotype
}

// NewDiscrete returns a discrete genotype matrix from a slice of rows.
func NewDiscrete(rows [][]Genotype) *Discrete {
	h := len(rows)
	w := 0
	if h > 0 {
		w = len(rows[0])
	}
	d := &Discrete{rows: h, cols: w, g: make([]Genotype, h*w)}
	for r, row := range rows {
		if len(row) != w {
			panic(fmt.Sprintf("ragged genotype row %d", r))
		}
		copy(d.g[r*w:(r+1)*w], row)
	}
	return d
}

func (d *Discrete) Height() int        { return d.rows }
func (d *Discrete) Width() int         { return d.cols }
func (d *Discrete) SizeString() string { return fmt.Sprintf("[%d x %d]", d.rows, d.cols) }

// At returns the genotype at (i, j).
func (d *Discrete) At(i, j int) Genotype { return d.g[i*d.cols+j] }

func (d *Discrete) ComputeLLE(q, fa, fb, qfa, qfb *mat.Matrix) float64 {
	I, J := d.rows, d.cols
	K := q.Cols()
	sum := 0.0
	for i := 0; i < I; i++ {
		for j := 0; j < J; j++ {
			switch d.g[i*J+j] {
			case MajorMajor:
				rhs := 0.0
				for k := 0; k < K; k++ {
					rhs += q.At(i, k) * fb.At(k, j)
				}
				sum += 2 * math.Log(rhs)
			case MajorMinor:
				lhs, rhs := 0.0, 0.0
				for k := 0; k < K; k++ {
					lhs += q.At(i, k) * fa.At(k, j)
					rhs += q.At(i, k) * fb.At(k, j)
				}
				sum += math.Log(lhs * rhs)
			case MinorMinor:
				lhs := 0.0
				for k := 0; k < K; k++ {
					lhs += q.At(i, k) * fa.At(k, j)
				}
				sum += 2 * math.Log(lhs)
			}
		}
	}
	return sum
}

func (d *Discrete) ComputeDerivativesQ(q, fa, fb, qfa, qfb *mat.Matrix, i int, dv, h *mat.Matrix) {
	J := d.cols
	K := dv.Rows()
	dv.Fill(0)
	h.Fill(0)
	for j := 0; j < J; j++ {
		gij, ok := MinorCount(d.g[i*J+j])
		if !ok {
			continue
		}
		qfaij := qfa.At(i, j)
		qfbij := qfb.At(i, j)
		term1 := gij / qfaij
		term2 := (2 - gij) / qfbij
		term3 := term1 / qfaij
		term4 := term2 / qfbij
		for k1 := 0; k1 < K; k1++ {
			fa1 := fa.At(k1, j)
			fb1 := fb.At(k1, j)
			dv.Set(k1, 0, dv.At(k1, 0)+term1*fa1+term2*fb1)
			for k2 := 0; k2 < K; k2++ {
				h.Set(k1, k2, h.At(k1, k2)-
					term3*fa1*fa.At(k2, j)-
					term4*fb1*fb.At(k2, j))
			}
		}
	}
}

func (d *Discrete) ComputeDerivativesF(q, fa, fb, qfa, qfb *mat.Matrix, j int, dv, h *mat.Matrix) {
	I, J := d.rows, d.cols
	K := dv.Rows()
	dv.Fill(0)
	h.Fill(0)
	for i := 0; i < I; i++ {
		gij, ok := MinorCount(d.g[i*J+j])
		if !ok {
			continue
		}
		qfaij := qfa.At(i, j)
		qfbij := qfb.At(i, j)
		term1 := gij / qfaij
		term2 := (2 - gij) / qfbij
		term3 := term1 - term2
		term4 := term1/qfaij + term2/qfbij
		for k1 := 0; k1 < K; k1++ {
			q1 := q.At(i, k1)
			dv.Set(k1, 0, dv.At(k1, 0)+term3*q1)
			for k2 := 0; k2 < K; k2++ {
				h.Set(k1, k2, h.At(k1, k2)-term4*q1*q.At(i, k2))
			}
		}
	}
}

// CreateMu computes the per-marker mean major-allele dosage over 2I,
// clamped to [fEpsilon, 1-fEpsilon]. Missing genotypes contribute nothing
// to the numerator.
func (d *Discrete) CreateMu(fEpsilon float64) *mat.Matrix {
	fMin := fEpsilon
	fMax := 1 - fEpsilon
	I, J := d.rows, d.cols
	mu := mat.New(J, 1)
	for j := 0; j < J; j++ {
		sum := 0.0
		for i := 0; i < I; i++ {
			switch d.g[i*J+j] {
			case MajorMajor:
				sum += 2
			case MajorMinor:
				sum++
			}
		}
		mu.Set(j, 0, math.Min(math.Max(fMin, sum/(2*float64(I))), fMax))
	}
	return mu
}

// MinorCount converts a genotype to its minor-allele count, reporting false
// for missing data.
func MinorCount(g Genotype) (float64, bool) {
	switch g {
	case MajorMajor:
		return 0, true
	case MajorMinor:
		return 1, true
	case MinorMinor:
		return 2, true
	default:
		return 0, false
	}
}
