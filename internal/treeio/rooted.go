package treeio

import (
	"fmt"
	"strconv"

	"github.com/bits-and-blooms/bitset"
	"github.com/evolbioinfo/gotree/tree"
)

// RootedPaths maps the cells of a covariance matrix onto the branches of a
// phylogeny whose K leaves are named "0" through "K-1". Population 0 acts
// as the root: the cell (r, c) of the lower triangle is the summed length
// of the branches shared by the paths from leaf 0 to leaf r+1 and from
// leaf 0 to leaf c+1.
type RootedPaths struct {
	tre     *tree.Tree
	edges   []*tree.Edge // every branch, in discovery order from leaf 0
	overlap [][]int      // per lower-triangle cell, indices into edges
	rk      int          // K - 1
}

// NewRootedPaths indexes the branches of a parsed tree. The tree must have
// leaves named "0" through "K-1" for some K >= 2.
func NewRootedPaths(tre *tree.Tree) (*RootedPaths, error) {
	if err := tre.UpdateTipIndex(); err != nil {
		return nil, fmt.Errorf("%w, duplicate or missing tip names", ErrInvalidFormat)
	}
	tips := tre.Tips()
	K := len(tips)
	if K < 2 {
		return nil, fmt.Errorf("%w, tree has %d leaves; expected at least 2", ErrInvalidFormat, K)
	}
	leaves := make([]*tree.Node, K)
	for _, tip := range tips {
		index, err := strconv.Atoi(tip.Name())
		if err != nil || index < 0 || index >= K || leaves[index] != nil {
			return nil, fmt.Errorf("%w, tree leaves must be named 0 through %d, found %q",
				ErrInvalidFormat, K-1, tip.Name())
		}
		leaves[index] = tip
	}

	rp := &RootedPaths{tre: tre, rk: K - 1}

	// Walk outward from leaf 0, recording each branch once and the branch
	// over which every node was first reached.
	adjacency := make(map[*tree.Node][]*tree.Edge)
	for _, e := range tre.Edges() {
		adjacency[e.Left()] = append(adjacency[e.Left()], e)
		adjacency[e.Right()] = append(adjacency[e.Right()], e)
	}
	parentEdge := make(map[*tree.Node]*tree.Edge)
	edgeIndex := make(map[*tree.Edge]int)
	stack := []*tree.Node{leaves[0]}
	visited := map[*tree.Node]struct{}{leaves[0]: {}}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range adjacency[cur] {
			next := e.Left()
			if next == cur {
				next = e.Right()
			}
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = struct{}{}
			parentEdge[next] = e
			edgeIndex[e] = len(rp.edges)
			rp.edges = append(rp.edges, e)
			stack = append(stack, next)
		}
	}

	// The branch set of each leaf's path back to leaf 0, then the pairwise
	// intersections for the lower triangle.
	paths := make([]*bitset.BitSet, K)
	for index := 1; index < K; index++ {
		path := bitset.New(uint(len(rp.edges)))
		for node := leaves[index]; node != leaves[0]; {
			e := parentEdge[node]
			path.Set(uint(edgeIndex[e]))
			if e.Left() == node {
				node = e.Right()
			} else {
				node = e.Left()
			}
		}
		paths[index] = path
	}
	for r := 0; r < rp.rk; r++ {
		for c := 0; c <= r; c++ {
			shared := paths[r+1].Intersection(paths[c+1])
			var indices []int
			for i, ok := shared.NextSet(0); ok; i, ok = shared.NextSet(i + 1) {
				indices = append(indices, int(i))
			}
			rp.overlap = append(rp.overlap, indices)
		}
	}
	return rp, nil
}

// RK returns the dimension of the covariance matrix the tree encodes.
func (rp *RootedPaths) RK() int { return rp.rk }

// Tree returns the underlying tree; branch lengths reflect the last
// SetLengths call.
func (rp *RootedPaths) Tree() *tree.Tree { return rp.tre }

// Lengths returns the current branch lengths in parameter order.
func (rp *RootedPaths) Lengths() []float64 {
	lengths := make([]float64, len(rp.edges))
	for i, e := range rp.edges {
		lengths[i] = e.Length()
	}
	return lengths
}

// SetLengths writes a parameter vector back onto the branches.
func (rp *RootedPaths) SetLengths(lengths []float64) {
	if len(lengths) != len(rp.edges) {
		panic(fmt.Sprintf("expected %d branch lengths, got %d", len(rp.edges), len(lengths)))
	}
	for i, e := range rp.edges {
		e.SetLength(lengths[i])
	}
}

// CellSum returns the shared-branch length sum for the lower-triangle cell
// (r, c) under the given parameter vector.
func (rp *RootedPaths) CellSum(r, c int, lengths []float64) float64 {
	sum := 0.0
	for _, i := range rp.overlap[r*(r+1)/2+c] {
		sum += lengths[i]
	}
	return sum
}
