package cli

import (
	"flag"
	"fmt"
	"io"
	"time"

	"ohana/internal/ancestry"
	"ohana/internal/gen"
	"ohana/internal/mat"
)

type qpasConfig struct {
	ksize           int
	qin, qout       string
	fin, fout       string
	finForce        string
	fixedQ, fixedF  bool
	force           string
	frequencyBounds bool
	seed            uint64
	seedSet         bool
	epsilon         float64
	epsilonSet      bool
	maxIterations   int
	maxSeconds      float64
	solver          string
	genotypes       string
}

// RunQPAS estimates the ancestry proportions and allele frequencies for a
// genotype matrix.
func RunQPAS(args []string, out io.Writer) error {
	flags := flag.NewFlagSet("qpas", flag.ExitOnError)
	cfg := qpasConfig{}
	flags.IntVar(&cfg.ksize, "ksize", 0, "number of `components`")
	flags.StringVar(&cfg.qin, "qin", "", "`path` to the initial Q matrix")
	flags.StringVar(&cfg.qout, "qout", "", "`path` for the computed Q matrix")
	flags.StringVar(&cfg.fin, "fin", "", "`path` to the initial F matrix")
	flags.StringVar(&cfg.fout, "fout", "", "`path` for the computed F matrix")
	flags.StringVar(&cfg.finForce, "fin-force", "", "`path` to a partial F matrix whose rows are held fixed")
	flags.BoolVar(&cfg.fixedQ, "fixed-q", false, "do not update the Q matrix")
	flags.BoolVar(&cfg.fixedF, "fixed-f", false, "do not update the F matrix")
	flags.StringVar(&cfg.force, "force", "", "`path` to a forced-grouping file")
	flags.BoolVar(&cfg.frequencyBounds, "frequency-bounds", false,
		"bound allele frequencies by 1/(2I+1) instead of 1e-6")
	seed := flags.Uint64("seed", 0, "`seed` for the random number generator")
	epsilon := flags.Float64("epsilon", 0, "convergence `tolerance` on the log-likelihood delta")
	flags.IntVar(&cfg.maxIterations, "max-iterations", 0, "iteration `cap`")
	flags.Float64Var(&cfg.maxSeconds, "max-time", 0, "wall-clock cap in `seconds`")
	flags.StringVar(&cfg.solver, "solver", "qpas", "inner QP `solver` [ qpas | lemke ]")
	if err := flags.Parse(args); err != nil {
		return err
	}
	flags.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "seed":
			cfg.seedSet = true
		case "epsilon":
			cfg.epsilonSet = true
		}
	})
	cfg.seed = *seed
	cfg.epsilon = *epsilon
	if flags.NArg() != 1 {
		return fmt.Errorf("%w, one positional argument required: <g-matrix>", ErrUsage)
	}
	cfg.genotypes = flags.Arg(0)

	if err := cfg.validate(); err != nil {
		return err
	}
	return cfg.run(out)
}

func (cfg *qpasConfig) validate() error {
	if cfg.finForce != "" && cfg.fin != "" {
		return fmt.Errorf("%w, fin-force cannot be used with fin", ErrUsage)
	}
	if cfg.fixedQ && cfg.force != "" {
		return fmt.Errorf("%w, fixed-q cannot be used with force", ErrUsage)
	}
	if cfg.fixedF && cfg.fin == "" {
		return fmt.Errorf("%w, fixed-f requires fin", ErrUsage)
	}
	if cfg.fixedQ && cfg.qin == "" {
		return fmt.Errorf("%w, fixed-q requires qin", ErrUsage)
	}
	if cfg.ksize == 0 && cfg.qin == "" && cfg.fin == "" && cfg.force == "" {
		return fmt.Errorf("%w, one of ksize, qin, fin, or force must determine the number of components", ErrUsage)
	}
	if cfg.ksize != 0 && cfg.ksize < 2 {
		return fmt.Errorf("%w, invalid ksize (%d); expected at least 2", ErrUsage, cfg.ksize)
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
	if _, ok := ancestry.ParseSolver[cfg.solver]; !ok {
		return fmt.Errorf("%w, %q is not a valid solver: either \"qpas\" or \"lemke\" required",
			ErrUsage, cfg.solver)
	}
	return nil
}

func (cfg *qpasConfig) run(out io.Writer) error {
	g, err := gen.Read(cfg.genotypes)
	if err != nil {
		return err
	}
	I := g.Height()

	var fg *ancestry.ForcedGrouping
	if cfg.force != "" {
		if fg, err = ancestry.ReadForcedGrouping(cfg.force); err != nil {
			return err
		}
		if fg.Individuals() != I {
			return fmt.Errorf("%w, forced-grouping file and G matrix %s",
				gen.ErrSizeMismatch, g.SizeString())
		}
	}

	loaded, err := loadMatrices(cfg.qin, cfg.fin, cfg.finForce)
	if err != nil {
		return err
	}
	q, f, finForce := loaded[0], loaded[1], loaded[2]

	K, err := cfg.componentCount(q, f, fg)
	if err != nil {
		return err
	}

	bounds := ancestry.DefaultBounds
	if cfg.frequencyBounds {
		bounds = ancestry.FrequencyBounds(I)
	}

	if !cfg.seedSet {
		cfg.seed = uint64(time.Now().UnixNano())
	}
	fmt.Fprintf(out, "seed: %d\n\n", cfg.seed)
	rnd := ancestry.NewRandomizer(cfg.seed)

	if q == nil {
		if fg != nil {
			q = fg.RandomizeQ(rnd)
		} else {
			q = rnd.RandomizeQ(I, K)
		}
	}
	if f == nil {
		mu := g.CreateMu(bounds.Min)
		f = rnd.RandomizeF(K, mu)
		if finForce != nil {
			if finForce.Rows() >= K || finForce.Cols() != g.Width() {
				return fmt.Errorf("%w, fin-force matrix %s for %d components and %d markers",
					gen.ErrSizeMismatch, finForce.SizeString(), K, g.Width())
			}
			finForce.Clamp(bounds.Min, bounds.Max)
			for r := 0; r < finForce.Rows(); r++ {
				for c := 0; c < finForce.Cols(); c++ {
					f.Set(r, c, finForce.At(r, c))
				}
			}
		}
	}
	if fg != nil {
		if err := fg.ValidateQ(q); err != nil {
			return err
		}
	}

	opts := ancestry.Options{
		MaxIterations: cfg.maxIterations,
		MaxSeconds:    cfg.maxSeconds,
		Epsilon:       cfg.epsilon,
		HasEpsilon:    cfg.epsilonSet,
		FixedQ:        cfg.fixedQ,
		FixedF:        cfg.fixedF,
		Solver:        ancestry.ParseSolver[cfg.solver],
		Bounds:        bounds,
	}
	if err := ancestry.Run(g, q, f, fg, finForce, opts, out); err != nil {
		return err
	}

	fmt.Fprintln(out)
	if !cfg.fixedQ {
		if err := emitMatrix(q, cfg.qout, "Q", out); err != nil {
			return err
		}
	}
	if !cfg.fixedF {
		if err := emitMatrix(f, cfg.fout, "F", out); err != nil {
			return err
		}
	}
	return nil
}

// componentCount resolves K from the first available source and checks the
// others against it.
func (cfg *qpasConfig) componentCount(q, f *mat.Matrix, fg *ancestry.ForcedGrouping) (int, error) {
	K := cfg.ksize
	for _, candidate := range []int{qCols(q), fRows(f), fgComponents(fg)} {
		if candidate == 0 {
			continue
		}
		if K == 0 {
			K = candidate
		} else if K != candidate {
			return 0, fmt.Errorf("%w, inconsistent numbers of components (%d and %d)",
				gen.ErrSizeMismatch, K, candidate)
		}
	}
	if K < 2 {
		return 0, fmt.Errorf("%w, invalid number of components (%d)", ErrUsage, K)
	}
	return K, nil
}

func qCols(q *mat.Matrix) int {
	if q == nil {
		return 0
	}
	return q.Cols()
}

func fRows(f *mat.Matrix) int {
	if f == nil {
		return 0
	}
	return f.Rows()
}

func fgComponents(fg *ancestry.ForcedGrouping) int {
	if fg == nil {
		return 0
	}
	return fg.Components()
}

// emitMatrix writes a result matrix to its configured path, or prints it.
func emitMatrix(m *mat.Matrix, path, name string, out io.Writer) error {
	if path == "" {
		fmt.Fprintf(out, "[%s Matrix]\n%s", name, m.String())
		return nil
	}
	fmt.Fprintf(out, "Writing %s matrix to %s\n", name, path)
	return m.WriteFile(path)
}
