// Package gen implements the genotype likelihood model. Two variants exist:
// a discrete matrix of observed genotypes and a likelihood matrix holding
// per-genotype probabilities. Both expose the log-likelihood and its
// derivatives with respect to the ancestry (Q) and frequency (F) matrices.
package gen

import (
	"errors"
	"fmt"

	"ohana/internal/mat"
)

// Genotype encodes one cell of a discrete genotype matrix as the count of
// minor alleles, or Missing.
type Genotype byte

const (
	MajorMajor Genotype = 0
	MajorMinor Genotype = 1
	MinorMinor Genotype = 2
	Missing    Genotype = 3
)

var ErrSizeMismatch = errors.New("inconsistent matrix sizes")

// Matrix is the common surface of the two genotype matrix variants.
type Matrix interface {
	// ComputeLLE returns the log-likelihood summed over all cells.
	ComputeLLE(q, fa, fb, qfa, qfb *mat.Matrix) float64

	// ComputeDerivativesQ fills the gradient vector and Hessian matrix of
	// the log-likelihood with respect to row i of Q.
	ComputeDerivativesQ(q, fa, fb, qfa, qfb *mat.Matrix, i int, d, h *mat.Matrix)

	// ComputeDerivativesF fills the gradient vector and Hessian matrix of
	// the log-likelihood with respect to column j of F.
	ComputeDerivativesF(q, fa, fb, qfa, qfb *mat.Matrix, j int, d, h *mat.Matrix)

	// CreateMu returns the per-marker empirical major-allele frequencies,
	// clamped to [fEpsilon, 1-fEpsilon].
	CreateMu(fEpsilon float64) *mat.Matrix

	Height() int
	Width() int
	SizeString() string
}

// ValidateGQF checks that the G, Q, and F matrix shapes agree.
func ValidateGQF(g Matrix, q, f *mat.Matrix) error {
	if g.Height() != q.Rows() {
		return fmt.Errorf("%w, G matrix %s and Q matrix %s",
			ErrSizeMismatch, g.SizeString(), q.SizeString())
	}
	if g.Width() != f.Cols() {
		return fmt.Errorf("%w, G matrix %s and F matrix %s",
			ErrSizeMismatch, g.SizeString(), f.SizeString())
	}
	if q.Cols() != f.Rows() {
		return fmt.Errorf("%w, Q matrix %s and F matrix %s",
			ErrSizeMismatch, q.SizeString(), f.SizeString())
	}
	return nil
}
