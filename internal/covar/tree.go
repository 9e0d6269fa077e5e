package covar

import (
	"fmt"
	"io"

	"ohana/internal/mat"
	"ohana/internal/treeio"
)

// Tree parameterizes the covariance matrix by the branch lengths of a
// user-supplied phylogeny: each cell of the lower triangle is the summed
// length of the branches shared by the root-population paths of its two
// populations.
type Tree struct {
	paths *treeio.RootedPaths
}

// NewTree wraps an indexed phylogeny.
func NewTree(paths *treeio.RootedPaths) *Tree {
	return &Tree{paths: paths}
}

// InitParameters returns the branch lengths of the input tree; branches
// without a length start at one.
func (t *Tree) InitParameters() []float64 {
	params := t.paths.Lengths()
	for i, v := range params {
		if v < 0 {
			params[i] = 1
		}
	}
	return params
}

// DecodeLower rejects any non-positive branch length and otherwise fills
// the lower triangle with the shared-branch sums.
func (t *Tree) DecodeLower(dst *mat.Matrix, src []float64) bool {
	for _, length := range src {
		if length <= 0 {
			return false
		}
	}
	rk := dst.Rows()
	for row := 0; row < rk; row++ {
		for col := 0; col <= row; col++ {
			dst.Set(row, col, t.paths.CellSum(row, col, src))
		}
	}
	return true
}

// EmitResults writes the tree with its optimized branch lengths, in the
// rooting of the input file.
func (t *Tree) EmitResults(opts Options, s *Simplex, out io.Writer) error {
	t.paths.SetLengths(s.Vertex())
	if opts.TOut != "" {
		if !opts.Quiet {
			fmt.Fprintf(out, "Writing tree to %s\n", opts.TOut)
		}
		return treeio.WriteNewickFile(t.paths.Tree(), opts.TOut)
	}
	fmt.Fprintf(out, "\n[Tree]\n%s\n", t.paths.Tree().Newick())
	return nil
}
