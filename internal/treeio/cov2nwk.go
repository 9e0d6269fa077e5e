package treeio

import (
	"errors"
	"fmt"
	"math"

	"ohana/internal/mat"
)

var ErrInvalidC = errors.New("invalid C matrix")

// ValidateC checks that C is square, non-empty, symmetric within 1e-6, and
// positive definite.
func ValidateC(c *mat.Matrix) error {
	const epsilon = 1e-6
	if !c.IsSquare() {
		return fmt.Errorf("%w, size %s is not square", ErrInvalidC, c.SizeString())
	}
	if c.Rows() == 0 {
		return fmt.Errorf("%w, size %s does not contain any components", ErrInvalidC, c.SizeString())
	}
	for r := 0; r < c.Rows(); r++ {
		for s := r + 1; s < c.Cols(); s++ {
			if math.Abs(c.At(r, s)-c.At(s, r)) > epsilon {
				return fmt.Errorf("%w, cell [%d,%d] (%v) is not equal to symmetric cell [%d,%d] (%v)",
					ErrInvalidC, r+1, s+1, c.At(r, s), s+1, r+1, c.At(s, r))
			}
		}
	}
	if _, err := c.Clone().Invert(); err != nil {
		return fmt.Errorf("%w, matrix is not positive definite", ErrInvalidC)
	}
	return nil
}

// CovToNewick converts a rooted covariance matrix of dimension K-1 into a
// Newick tree over K populations: C is padded with a zero row and column
// for the root population and turned into the distance matrix
// D[i,j] = C[i,i] + C[j,j] - 2*C[i,j] for neighbor joining.
func CovToNewick(c *mat.Matrix) (string, error) {
	if err := ValidateC(c); err != nil {
		return "", err
	}
	rk := c.Rows()
	k := rk + 1

	padded := mat.New(k, k)
	for i := 0; i < rk; i++ {
		for j := 0; j < rk; j++ {
			padded.Set(i+1, j+1, c.At(i, j))
		}
	}

	distances := mat.New(k, k)
	for i := 0; i < k; i++ {
		cII := padded.At(i, i)
		for j := 0; j < k; j++ {
			cJJ := padded.At(j, j)
			cIJ := padded.At(i, j)
			distances.Set(i, j, cII+cJJ-cIJ-cIJ)
		}
	}

	return NewNeighborJoining(distances).Newick(), nil
}

// TreeToCov converts a phylogeny with leaves named "0" through "K-1" into
// the rooted covariance matrix its branch lengths imply.
func TreeToCov(paths *RootedPaths) *mat.Matrix {
	rk := paths.RK()
	lengths := paths.Lengths()
	c := mat.New(rk, rk)
	for r := 0; r < rk; r++ {
		for col := 0; col <= r; col++ {
			c.Set(r, col, paths.CellSum(r, col, lengths))
		}
	}
	c.CopyLowerToUpper()
	return c
}
