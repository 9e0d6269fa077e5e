package covar

import (
	"io"

	"ohana/internal/mat"
)

// Treeless parameterizes the covariance matrix directly by its lower
// triangle, including the diagonal, packed column by column.
type Treeless struct {
	c0 *mat.Matrix
}

// NewTreeless starts from an initial covariance matrix.
func NewTreeless(c0 *mat.Matrix) *Treeless {
	return &Treeless{c0: c0}
}

func (t *Treeless) InitParameters() []float64 {
	rk := t.c0.Rows()
	params := make([]float64, 0, rk+(rk*rk-rk)/2)
	for col := 0; col < rk; col++ {
		for row := col; row < rk; row++ {
			params = append(params, t.c0.At(row, col))
		}
	}
	return params
}

func (t *Treeless) DecodeLower(dst *mat.Matrix, src []float64) bool {
	rk := dst.Rows()
	i := 0
	for col := 0; col < rk; col++ {
		for row := col; row < rk; row++ {
			dst.Set(row, col, src[i])
			i++
		}
	}
	return true
}

func (t *Treeless) EmitResults(opts Options, s *Simplex, out io.Writer) error {
	return nil
}
