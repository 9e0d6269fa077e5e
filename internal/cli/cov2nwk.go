package cli

import (
	"flag"
	"fmt"
	"io"
	"os"

	"ohana/internal/mat"
	"ohana/internal/treeio"
)

// RunCov2Nwk converts a covariance matrix to a Newick tree by neighbor
// joining.
func RunCov2Nwk(args []string, out io.Writer) error {
	flags := flag.NewFlagSet("cov2nwk", flag.ExitOnError)
	tout := flags.String("tout", "", "`path` for the Newick tree; printed if omitted")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return fmt.Errorf("%w, one positional argument required: <c-matrix>", ErrUsage)
	}

	c, err := mat.ReadFile(flags.Arg(0))
	if err != nil {
		return err
	}
	newick, err := treeio.CovToNewick(c)
	if err != nil {
		return err
	}
	if *tout == "" {
		fmt.Fprintln(out, newick)
		return nil
	}
	file, err := os.Create(*tout)
	if err != nil {
		return fmt.Errorf("failed to create tree file %s: %w", *tout, err)
	}
	if _, err := fmt.Fprintln(file, newick); err != nil {
		file.Close()
		os.Remove(*tout)
		return fmt.Errorf("error writing tree %s: %w", *tout, err)
	}
	return file.Close()
}
