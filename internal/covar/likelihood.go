// Package covar fits the inter-population covariance matrix C to the
// rooted allele-frequency data by Nelder-Mead minimization of a Gaussian
// negative log-likelihood. Three parameter encodings share one driver:
// the lower triangle itself, the branch lengths of a Newick tree, and the
// variables of an admixture-graph expression set.
package covar

import (
	"math"

	"ohana/internal/mat"
)

// Likelihood evaluates the Gaussian log-likelihood of the rooted frequency
// matrix for a candidate covariance matrix. Values depending only on rf and
// mu are cached at construction.
type Likelihood struct {
	rf      *mat.Matrix
	mux     []float64 // mu_j * (1 - mu_j)
	rkltmux []float64 // (K-1) * log(2*pi * mux_j)
	mul     *mat.Matrix
}

// NewLikelihood caches the per-marker terms for the rooted frequency
// matrix rf ((K-1) x J) and mean vector mu (J x 1).
func NewLikelihood(rf, mu *mat.Matrix) *Likelihood {
	rk := rf.Rows()
	J := rf.Cols()
	l := &Likelihood{
		rf:      rf,
		mux:     make([]float64, J),
		rkltmux: make([]float64, J),
		mul:     mat.New(rk, J),
	}
	tau := 2 * math.Pi
	for j := 0; j < J; j++ {
		muJ := mu.At(j, 0)
		l.mux[j] = muJ * (1 - muJ)
		l.rkltmux[j] = float64(rk) * math.Log(tau*l.mux[j])
	}
	return l
}

// Compute returns the log-likelihood for the inverted covariance matrix and
// its log-determinant. Markers with a non-positive mu_j*(1-mu_j) are
// skipped.
func (l *Likelihood) Compute(cInv *mat.Matrix, logCDet float64) float64 {
	rk := l.rf.Rows()
	J := l.rf.Cols()
	mat.Gemm(l.mul, cInv, l.rf)

	sum := 0.0
	for j := 0; j < J; j++ {
		mux := l.mux[j]
		if mux <= 0 {
			continue
		}
		zip := 0.0
		for k := 0; k < rk; k++ {
			zip += l.rf.At(k, j) * l.mul.At(k, j)
		}
		sum += l.rkltmux[j] + zip/mux
	}
	return -0.5 * (float64(J)*logCDet + sum)
}

// RootedF returns the rooted frequency matrix: component 0 becomes the
// root and each remaining row holds its frequency offset from it.
func RootedF(f *mat.Matrix) *mat.Matrix {
	rk := f.Rows() - 1
	J := f.Cols()
	rf := mat.New(rk, J)
	for k := 0; k < rk; k++ {
		for j := 0; j < J; j++ {
			rf.Set(k, j, f.At(k+1, j)-f.At(0, j))
		}
	}
	return rf
}

// DefaultC returns the covariance estimate used when no initial C is
// supplied: the average over markers of the outer products of the rooted
// frequency columns.
func DefaultC(rf *mat.Matrix) *mat.Matrix {
	rk := rf.Rows()
	J := rf.Cols()
	c := mat.New(rk, rk)
	for j := 0; j < J; j++ {
		for r := 0; r < rk; r++ {
			for s := 0; s < rk; s++ {
				c.Set(r, s, c.At(r, s)+rf.At(r, j)*rf.At(s, j))
			}
		}
	}
	c.Scale(1 / float64(J))
	return c
}
