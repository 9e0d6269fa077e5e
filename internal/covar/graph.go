package covar

import (
	"fmt"
	"io"

	"ohana/internal/exprs"
	"ohana/internal/mat"
)

// Graph parameterizes the covariance matrix by the variables of an
// admixture graph: the proportion variables first, then the branch-length
// variables, with the lower triangle filled by evaluating the graph's
// expressions.
type Graph struct {
	agi  *exprs.AGI
	args map[string]float64
}

// NewGraph wraps parsed admixture graph input.
func NewGraph(agi *exprs.AGI) *Graph {
	return &Graph{agi: agi, args: agi.Args()}
}

// InitParameters starts every variable at one half.
func (g *Graph) InitParameters() []float64 {
	params := make([]float64, len(g.agi.ProportionNames)+len(g.agi.BranchNames))
	for i := range params {
		params[i] = 0.5
	}
	return params
}

// DecodeLower rejects non-positive values, and proportion values of one or
// more, then evaluates the expressions into the lower triangle.
func (g *Graph) DecodeLower(dst *mat.Matrix, src []float64) bool {
	for _, v := range src {
		if v <= 0 {
			return false
		}
	}
	for i := range g.agi.ProportionNames {
		if src[i] >= 1 {
			return false
		}
	}

	i := 0
	for _, name := range g.agi.ProportionNames {
		g.args[name] = src[i]
		i++
	}
	for _, name := range g.agi.BranchNames {
		g.args[name] = src[i]
		i++
	}

	rk := g.agi.K - 1
	entry := 0
	for row := 0; row < rk; row++ {
		for col := 0; col <= row; col++ {
			v, err := g.agi.Entries[entry].Evaluate(g.args)
			if err != nil {
				return false
			}
			dst.Set(row, col, v)
			entry++
		}
	}
	return true
}

// EmitResults prints the optimized variable values.
func (g *Graph) EmitResults(opts Options, s *Simplex, out io.Writer) error {
	g.DecodeLower(mat.New(g.agi.K-1, g.agi.K-1), s.Vertex())
	fmt.Fprintf(out, "\n[Admixture Graph Output]\n")
	for _, name := range g.agi.BranchNames {
		fmt.Fprintf(out, "%s\t%s\n", name, mat.FormatValue(g.args[name]))
	}
	for _, name := range g.agi.ProportionNames {
		fmt.Fprintf(out, "%s\t%s\n", name, mat.FormatValue(g.args[name]))
	}
	return nil
}
