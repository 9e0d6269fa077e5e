package cli

import (
	"flag"
	"fmt"
	"io"

	"ohana/internal/gen"
	"ohana/internal/scan"
)

// RunSelscan scans each marker for selection by interpolating the
// covariance matrix toward a scaled variant.
func RunSelscan(args []string, out io.Writer) error {
	flags := flag.NewFlagSet("selscan", flag.ExitOnError)
	steps := flags.Int("steps", 10, "`number` of interpolation steps, at least 2")
	cScale := flags.String("c-scale", "", "`path` to the scaling matrix; twice the C matrix if omitted")
	plotPrefix := flags.String("plot", "", "write a per-marker ratio plot to `prefix`.png")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 3 {
		return fmt.Errorf("%w, three positional arguments required: <g-matrix> <f-matrix> <c-matrix>", ErrUsage)
	}

	g, err := gen.Read(flags.Arg(0))
	if err != nil {
		return err
	}
	loaded, err := loadMatrices(flags.Arg(1), flags.Arg(2), *cScale)
	if err != nil {
		return err
	}
	f, c1, c2 := loaded[0], loaded[1], loaded[2]
	if c2 == nil {
		c2 = c1.Clone()
		c2.Scale(2)
	}

	return scan.RunSelscan(g, f, c1, c2, scan.SelscanOptions{
		Steps:      *steps,
		PlotPrefix: *plotPrefix,
	}, out)
}
