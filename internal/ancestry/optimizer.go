// Package ancestry implements the ancestry optimizer: an EM-like outer loop
// that alternately improves the ancestry proportions Q and the allele
// frequencies F by solving constrained quadratic subproblems.
package ancestry

import (
	"fmt"
	"io"
	"time"

	"ohana/internal/gen"
	"ohana/internal/mat"
)

const (
	fMin = 1e-6
	fMax = 1 - 1e-6
)

// Bounds is the clamp range applied to allele frequencies.
type Bounds struct {
	Min, Max float64
}

// DefaultBounds is the clamp range used without the frequency-bounds
// option.
var DefaultBounds = Bounds{Min: fMin, Max: fMax}

// FrequencyBounds returns the data-dependent clamp range
// [1/(2I+1), 1-1/(2I+1)].
func FrequencyBounds(individuals int) Bounds {
	e := 1 / float64(2*individuals+1)
	return Bounds{Min: e, Max: 1 - e}
}

// Options controls the outer optimization loop.
type Options struct {
	MaxIterations int     // iteration cap; 0 means unlimited
	MaxSeconds    float64 // wall-clock cap; 0 means unlimited
	Epsilon       float64 // convergence tolerance on the LLE delta
	HasEpsilon    bool
	FixedQ        bool
	FixedF        bool
	Solver        Solver
	Bounds        Bounds
	Quiet         bool
}

// Run iterates the Q and F updates until a termination condition fires,
// mutating q and f in place. The iteration table is written to out.
func Run(g gen.Matrix, q, f *mat.Matrix, fg *ForcedGrouping, finForce *mat.Matrix, opts Options, out io.Writer) error {
	if err := gen.ValidateGQF(g, q, f); err != nil {
		return err
	}
	if err := ValidateQ(q); err != nil {
		return err
	}
	if err := ValidateF(f); err != nil {
		return err
	}

	fb := mat.New(f.Rows(), f.Cols())
	fb.OneMinus(f)
	qfa := mat.New(q.Rows(), f.Cols())
	qfb := mat.New(q.Rows(), f.Cols())
	mat.Gemm(qfa, q, f)
	mat.Gemm(qfb, q, fb)

	lle := g.ComputeLLE(q, f, fb, qfa, qfb)
	start := time.Now()
	if !opts.Quiet {
		fmt.Fprintln(out, "iter\tduration\tlog-likelihood\tdelta-lle")
		fmt.Fprintf(out, "0\t%.6f\t%s\n", time.Since(start).Seconds(), mat.FormatValue(lle))
	}

	for iter := 1; ; iter++ {
		if opts.MaxIterations > 0 && iter > opts.MaxIterations {
			break
		}
		if opts.MaxSeconds > 0 && time.Since(start).Seconds() >= opts.MaxSeconds {
			break
		}
		iterStart := time.Now()

		if !opts.FixedQ {
			q.CopyFrom(ImproveQ(g, q, f, fb, qfa, qfb, fg, opts.Solver))
			mat.Gemm(qfa, q, f)
			mat.Gemm(qfb, q, fb)
		}
		if !opts.FixedF {
			f.CopyFrom(ImproveF(g, q, f, fb, qfa, qfb, finForce, opts.Bounds, opts.Solver))
			fb.OneMinus(f)
			mat.Gemm(qfa, q, f)
			mat.Gemm(qfb, q, fb)
		}

		llePrime := g.ComputeLLE(q, f, fb, qfa, qfb)
		dlle := llePrime - lle
		if !opts.Quiet {
			fmt.Fprintf(out, "%d\t%.6f\t%s\t%s\n", iter,
				time.Since(iterStart).Seconds(),
				mat.FormatValue(llePrime), mat.FormatValue(dlle))
		}
		lle = llePrime

		if opts.HasEpsilon && dlle >= 0 && dlle <= opts.Epsilon {
			break
		}
	}
	return nil
}
