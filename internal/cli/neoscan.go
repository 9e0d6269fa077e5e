package cli

import (
	"flag"
	"fmt"
	"io"

	"ohana/internal/gen"
	"ohana/internal/scan"
)

// RunNeoscan scans each marker for a time-weighted allele-frequency shift.
func RunNeoscan(args []string, out io.Writer) error {
	flags := flag.NewFlagSet("neoscan", flag.ExitOnError)
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 4 {
		return fmt.Errorf("%w, four positional arguments required: <g-matrix> <q-matrix> <f-matrix> <years>", ErrUsage)
	}

	g, err := gen.Read(flags.Arg(0))
	if err != nil {
		return err
	}
	loaded, err := loadMatrices(flags.Arg(1), flags.Arg(2), flags.Arg(3))
	if err != nil {
		return err
	}
	return scan.RunNeoscan(g, loaded[0], loaded[1], loaded[2], out)
}
