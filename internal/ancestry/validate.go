package ancestry

import (
	"errors"
	"fmt"
	"math"

	"ohana/internal/mat"
)

var ErrInvalidMatrix = errors.New("invalid matrix")

// ValidateQ checks that Q has at least one individual and component, every
// cell lies in [0, 1], and every row sums to one within 1e-6.
func ValidateQ(q *mat.Matrix) error {
	if q.Rows() == 0 || q.Cols() == 0 {
		return fmt.Errorf("%w, Q matrix %s is empty", ErrInvalidMatrix, q.SizeString())
	}
	for i := 0; i < q.Rows(); i++ {
		sum := 0.0
		for k := 0; k < q.Cols(); k++ {
			v := q.At(i, k)
			if v < 0 || v > 1 {
				return fmt.Errorf("%w, Q cell [%d,%d] (%v) is not between 0 and 1",
					ErrInvalidMatrix, i+1, k+1, v)
			}
			sum += v
		}
		if math.Abs(sum-1) > fMin {
			return fmt.Errorf("%w, Q row %d does not sum to 1 (%v)",
				ErrInvalidMatrix, i+1, sum)
		}
	}
	return nil
}

// ValidateF checks that F has at least one component and marker and every
// cell lies strictly inside [0, 1].
func ValidateF(f *mat.Matrix) error {
	if f.Rows() == 0 || f.Cols() == 0 {
		return fmt.Errorf("%w, F matrix %s is empty", ErrInvalidMatrix, f.SizeString())
	}
	for k := 0; k < f.Rows(); k++ {
		for j := 0; j < f.Cols(); j++ {
			v := f.At(k, j)
			if v < fMin || v > fMax {
				return fmt.Errorf("%w, F cell [%d,%d] (%v) is not between 0 and 1",
					ErrInvalidMatrix, k+1, j+1, v)
			}
		}
	}
	return nil
}
