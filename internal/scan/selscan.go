// Package scan implements the per-marker selection scanners: selscan
// interpolates between the neutral covariance matrix and a scaled one, and
// neoscan searches each marker for an allele-frequency shift, optionally
// weighted by sample ages.
package scan

import (
	"errors"
	"fmt"
	"io"
	"math"

	"ohana/internal/covar"
	"ohana/internal/gen"
	"ohana/internal/mat"
	"ohana/internal/treeio"
)

var ErrInvalidScan = errors.New("invalid scan input")

// SelscanOptions controls the covariance-interpolation scan.
type SelscanOptions struct {
	Steps      int    // number of interpolation steps, at least 2
	PlotPrefix string // write a per-marker ratio plot to <prefix>.png
}

// selscanRecord tracks the best interpolation step for one marker.
type selscanRecord struct {
	score     float64 // score at step 0
	bestScore float64
	bestStep  int
}

func (r *selscanRecord) update(step int, score float64) {
	if score <= r.bestScore {
		return
	}
	r.bestStep = step
	r.bestScore = score
}

// lleRatio is the likelihood-ratio statistic against step 0.
func (r *selscanRecord) lleRatio() float64 {
	return 2 * (r.bestScore - r.score)
}

// RunSelscan scores every marker against the covariance matrices
// interpolated from c1 to c2 and writes one row per marker: the best step,
// the step-0 score, the best score, and the likelihood ratio.
func RunSelscan(g gen.Matrix, fa, c1, c2 *mat.Matrix, opts SelscanOptions, out io.Writer) error {
	if opts.Steps < 2 {
		return fmt.Errorf("%w, invalid steps value (%d); expected at least two",
			ErrInvalidScan, opts.Steps)
	}
	if err := treeio.ValidateC(c1); err != nil {
		return err
	}
	if err := treeio.ValidateC(c2); err != nil {
		return err
	}
	if g.Width() != fa.Cols() {
		return fmt.Errorf("%w, G matrix %s and F matrix %s",
			gen.ErrSizeMismatch, g.SizeString(), fa.SizeString())
	}
	if fa.Rows() != c1.Rows()+1 || fa.Rows() != c2.Rows()+1 {
		return fmt.Errorf("%w, F matrix %s and C matrix %s",
			gen.ErrSizeMismatch, fa.SizeString(), c1.SizeString())
	}

	rk := c1.Rows()
	J := g.Width()
	mu := g.CreateMu(1e-6)
	rootedFA := covar.RootedF(fa)

	cInv := mat.New(rk, rk)
	fjcInv := mat.New(rk, 1)

	// score computes the per-marker Gaussian log-density for one
	// interpolated covariance matrix, already inverted.
	score := func(logCDet float64, j int) float64 {
		mat.GemvStride(fjcInv, cInv, rootedFA.Data()[j:], rootedFA.Cols())
		dot := mat.DotStride(rk, rootedFA.Data()[j:], rootedFA.Cols(), fjcInv.Data(), 1)

		muJ := mu.At(j, 0)
		cJ := muJ * (1 - muJ)
		term := float64(rk)*math.Log(2*math.Pi*cJ) + dot/cJ
		return -(logCDet + term) / 2
	}

	interpolate := func(step int) (float64, error) {
		percent := float64(step) / float64(opts.Steps-1)
		for i, v := range c1.Data() {
			cInv.Data()[i] = v + percent*(c2.Data()[i]-v)
		}
		logCDet, err := cInv.Invert()
		if err != nil {
			return 0, fmt.Errorf("%w, interpolated C at step %d is not positive definite",
				ErrInvalidScan, step)
		}
		return logCDet, nil
	}

	records := make([]selscanRecord, J)
	logCDet, err := interpolate(0)
	if err != nil {
		return err
	}
	for j := range records {
		records[j] = selscanRecord{
			score:     score(logCDet, j),
			bestScore: math.Inf(-1),
		}
	}
	for step := 0; step < opts.Steps; step++ {
		if step > 0 {
			if logCDet, err = interpolate(step); err != nil {
				return err
			}
		}
		for j := range records {
			records[j].update(step, score(logCDet, j))
		}
	}

	fmt.Fprintln(out, "step\tglobal-lle\tlocal-lle\tlle-ratio")
	for j := range records {
		r := &records[j]
		fmt.Fprintf(out, "%d\t%+.6e\t%+.6e\t%+.6e\n",
			r.bestStep, r.score, r.bestScore, r.lleRatio())
	}

	if opts.PlotPrefix != "" {
		ratios := make([]float64, J)
		for j := range records {
			ratios[j] = records[j].lleRatio()
		}
		return SaveRatioPlot(ratios, opts.PlotPrefix)
	}
	return nil
}
