package covar

import (
	"fmt"
	"io"
	"math"

	"ohana/internal/mat"
)

// Controller encodes and decodes the Nelder-Mead parameter vector for one
// covariance parameterization.
type Controller interface {
	// InitParameters returns the starting vertex.
	InitParameters() []float64

	// DecodeLower reconstructs the lower triangle of the covariance matrix
	// from a parameter vector, reporting false to reject the vector.
	DecodeLower(dst *mat.Matrix, src []float64) bool

	// EmitResults writes the controller's additional outputs after the
	// optimization ends.
	EmitResults(opts Options, s *Simplex, out io.Writer) error
}

// Options controls the covariance optimization run.
type Options struct {
	MaxIterations int
	MaxSeconds    float64
	Epsilon       float64
	HasEpsilon    bool
	COut          string // path for the optimized C matrix; empty prints it
	TOut          string // path for the optimized tree; empty prints it
	Quiet         bool
}

// Fitter owns the covariance matrix being optimized and evaluates the
// objective for a controller: the negated Gaussian log-likelihood, or +Inf
// for rejected parameter vectors.
type Fitter struct {
	rk         int
	c          *mat.Matrix
	likelihood *Likelihood
	ctrl       Controller
}

// NewFitter prepares the objective around the rooted frequencies, the mean
// vector, and the initial covariance matrix.
func NewFitter(rf, mu, c0 *mat.Matrix, ctrl Controller) *Fitter {
	return &Fitter{
		rk:         rf.Rows(),
		c:          c0.Clone(),
		likelihood: NewLikelihood(rf, mu),
		ctrl:       ctrl,
	}
}

// Objective decodes the parameters into C and returns the negated
// log-likelihood. Vectors producing a non-positive entry in the lower
// triangle, or a matrix that is not positive definite, return +Inf.
func (f *Fitter) Objective(params []float64) float64 {
	inf := math.Inf(1)
	if !f.ctrl.DecodeLower(f.c, params) {
		return inf
	}
	for row := 0; row < f.rk; row++ {
		for col := 0; col <= row; col++ {
			if f.c.At(row, col) <= 0 {
				return inf
			}
		}
	}
	logCDet, err := f.c.Invert()
	if err != nil {
		return inf
	}
	return -f.likelihood.Compute(f.c, logCDet)
}

// C decodes a parameter vector into the full covariance matrix.
func (f *Fitter) C(params []float64) *mat.Matrix {
	f.ctrl.DecodeLower(f.c, params)
	f.c.CopyLowerToUpper()
	return f.c
}

// emitC writes the optimized matrix to the configured path, or prints it.
func (f *Fitter) emitC(opts Options, s *Simplex, out io.Writer) error {
	c := f.C(s.Vertex())
	fmt.Fprintf(out, "\nlog likelihood = %s\n", mat.FormatValue(-s.Objval()))
	if opts.COut != "" {
		if !opts.Quiet {
			fmt.Fprintf(out, "Writing C matrix to %s\n", opts.COut)
		}
		return c.WriteFile(opts.COut)
	}
	fmt.Fprintf(out, "[C Matrix]\n%s", c.String())
	return nil
}
