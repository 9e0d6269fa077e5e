package covar

import (
	"fmt"
	"io"
	"math"

	"ohana/internal/mat"
)

// Run performs the Nelder-Mead minimization for a controller and emits the
// results. The iteration table is written to out.
func Run(ctrl Controller, fit *Fitter, opts Options, out io.Writer) (ExitCondition, error) {
	if !opts.Quiet {
		fmt.Fprintln(out, "iter\tduration\tdelta-lle\tlog-likelihood")
	}

	simplex := NewSimplex(fit.Objective, NewSimplexOptions(ctrl.InitParameters()))

	args := NewExecuteArgs()
	if opts.MaxIterations > 0 {
		args.MaxIterations = opts.MaxIterations
	}
	if opts.MaxSeconds > 0 {
		args.MaxSeconds = opts.MaxSeconds
	}
	if opts.HasEpsilon {
		args.MinEpsilon = opts.Epsilon
	}

	lle := math.NaN()
	iterSeconds := 0.0
	if !opts.Quiet {
		args.LogFunc = func(iteration int, seconds float64, s *Simplex) {
			current := -s.Objval()
			dlle := 0.0
			if iteration > 1 {
				dlle = current - lle
			}
			fmt.Fprintf(out, "%d\t%.6f\t%s\t%s\n", iteration, seconds-iterSeconds,
				mat.FormatValue(dlle), mat.FormatValue(current))
			lle = current
			iterSeconds = seconds
		}
	}

	cond := simplex.Execute(fit.Objective, args)

	if err := fit.emitC(opts, simplex, out); err != nil {
		return cond, err
	}
	if err := ctrl.EmitResults(opts, simplex, out); err != nil {
		return cond, err
	}
	return cond, nil
}
