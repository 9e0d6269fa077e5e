package cli

import (
	"flag"
	"fmt"
	"io"

	"ohana/internal/covar"
	"ohana/internal/exprs"
	"ohana/internal/gen"
	"ohana/internal/treeio"
)

type nemecoConfig struct {
	ain, cin, tin string
	cout, tout    string
	epsilon       float64
	epsilonSet    bool
	maxIterations int
	maxSeconds    float64
	fEpsilon      float64
	genotypes     string
	frequencies   string
}

// RunNemeco fits the covariance matrix to the rooted allele-frequency
// data.
func RunNemeco(args []string, out io.Writer) error {
	flags := flag.NewFlagSet("nemeco", flag.ExitOnError)
	cfg := nemecoConfig{}
	flags.StringVar(&cfg.ain, "ain", "", "`path` to an admixture graph input file")
	flags.StringVar(&cfg.cin, "cin", "", "`path` to the initial C matrix")
	flags.StringVar(&cfg.tin, "tin", "", "`path` to the input Newick tree")
	flags.StringVar(&cfg.cout, "cout", "", "`path` for the optimized C matrix")
	flags.StringVar(&cfg.tout, "tout", "", "`path` for the optimized Newick tree")
	epsilon := flags.Float64("epsilon", 0, "convergence `tolerance` on the log-likelihood delta")
	flags.IntVar(&cfg.maxIterations, "max-iterations", 0, "iteration `cap`")
	flags.Float64Var(&cfg.maxSeconds, "max-time", 0, "wall-clock cap in `seconds`")
	flags.Float64Var(&cfg.fEpsilon, "f-epsilon", 1e-6, "clamp `bound` for the mu vector, in (0, 0.1)")
	if err := flags.Parse(args); err != nil {
		return err
	}
	flags.Visit(func(f *flag.Flag) {
		if f.Name == "epsilon" {
			cfg.epsilonSet = true
		}
	})
	cfg.epsilon = *epsilon
	if flags.NArg() != 2 {
		return fmt.Errorf("%w, two positional arguments required: <g-matrix> <f-matrix>", ErrUsage)
	}
	cfg.genotypes = flags.Arg(0)
	cfg.frequencies = flags.Arg(1)

	if err := cfg.validate(); err != nil {
		return err
	}
	return cfg.run(out)
}

func (cfg *nemecoConfig) validate() error {
	sources := 0
	for _, path := range []string{cfg.ain, cfg.cin, cfg.tin} {
		if path != "" {
			sources++
		}
	}
	if sources > 1 {
		return fmt.Errorf("%w, at most one of ain, cin, and tin may be specified", ErrUsage)
	}
	if cfg.tout != "" && cfg.tin == "" {
		return fmt.Errorf("%w, tout requires tin", ErrUsage)
	}
	if cfg.epsilonSet && cfg.epsilon < 0 {
		return fmt.Errorf("%w, epsilon must not be negative", ErrUsage)
	}
	if cfg.maxIterations < 0 {
		return fmt.Errorf("%w, max-iterations must be positive", ErrUsage)
	}
	if cfg.maxSeconds < 0 {
		return fmt.Errorf("%w, max-time must not be negative", ErrUsage)
	}
	if cfg.fEpsilon <= 0 || cfg.fEpsilon >= 0.1 {
		return fmt.Errorf("%w, f-epsilon (%v) must be in (0, 0.1)", ErrUsage, cfg.fEpsilon)
	}
	return nil
}

func (cfg *nemecoConfig) run(out io.Writer) error {
	g, err := gen.Read(cfg.genotypes)
	if err != nil {
		return err
	}
	loaded, err := loadMatrices(cfg.frequencies, cfg.cin)
	if err != nil {
		return err
	}
	f, c0 := loaded[0], loaded[1]

	if g.Width() != f.Cols() {
		return fmt.Errorf("%w, G matrix %s and F matrix %s",
			gen.ErrSizeMismatch, g.SizeString(), f.SizeString())
	}
	K := f.Rows()
	if K < 2 {
		return fmt.Errorf("%w, F matrix %s does not contain at least two components",
			gen.ErrSizeMismatch, f.SizeString())
	}

	rf := covar.RootedF(f)
	mu := g.CreateMu(cfg.fEpsilon)
	if c0 == nil {
		c0 = covar.DefaultC(rf)
	} else {
		if !c0.IsSize(K-1, K-1) {
			return fmt.Errorf("%w, C matrix %s and F matrix %s",
				gen.ErrSizeMismatch, c0.SizeString(), f.SizeString())
		}
		if err := treeio.ValidateC(c0); err != nil {
			return err
		}
	}

	var ctrl covar.Controller
	switch {
	case cfg.tin != "":
		tre, err := treeio.ReadNewickFile(cfg.tin)
		if err != nil {
			return err
		}
		paths, err := treeio.NewRootedPaths(tre)
		if err != nil {
			return err
		}
		if paths.RK() != K-1 {
			return fmt.Errorf("%w, tree with %d leaves and F matrix %s",
				gen.ErrSizeMismatch, paths.RK()+1, f.SizeString())
		}
		ctrl = covar.NewTree(paths)
	case cfg.ain != "":
		agi, err := exprs.ReadAGI(cfg.ain)
		if err != nil {
			return err
		}
		if agi.K != K {
			return fmt.Errorf("%w, admixture graph with %d populations and F matrix %s",
				gen.ErrSizeMismatch, agi.K, f.SizeString())
		}
		ctrl = covar.NewGraph(agi)
	default:
		ctrl = covar.NewTreeless(c0)
	}

	opts := covar.Options{
		MaxIterations: cfg.maxIterations,
		MaxSeconds:    cfg.maxSeconds,
		Epsilon:       cfg.epsilon,
		HasEpsilon:    cfg.epsilonSet,
		COut:          cfg.cout,
		TOut:          cfg.tout,
	}
	_, err = covar.Run(ctrl, covar.NewFitter(rf, mu, c0, ctrl), opts, out)
	return err
}
