package treeio

import (
	"strconv"
	"strings"

	"ohana/internal/mat"
)

// NeighborJoining reconstructs an unrooted tree from a symmetric distance
// matrix and renders it in Newick format. Leaves are named by their row
// index in the input matrix.
type NeighborJoining struct {
	children map[int][]int
	lengths  map[int]float64
	leaves   map[int]struct{}
	root     int
}

// NewNeighborJoining runs the agglomeration until two nodes remain and
// joins them.
func NewNeighborJoining(distances *mat.Matrix) *NeighborJoining {
	nj := &NeighborJoining{
		children: make(map[int][]int),
		lengths:  make(map[int]float64),
		leaves:   make(map[int]struct{}),
		root:     -1,
	}
	if distances.Len() == 0 {
		return nj
	}
	if !distances.IsSquare() {
		panic("distance matrix is not square: " + distances.SizeString())
	}

	n := distances.Rows()
	nextID := 0
	if n == 1 {
		nj.root = nj.addLeaf(&nextID)
		return nj
	}

	ids := make([]int, 0, n)
	for i := 0; i < n; i++ {
		ids = append(ids, nj.addLeaf(&nextID))
	}
	d := distances.Clone()

	for n > 2 {
		q := newQData(d)
		id := nextID
		nextID++
		nj.addParent(id, ids[q.i], q.dIK)
		nj.addParent(id, ids[q.j], q.dJK)

		// Reduce the distance matrix, placing the new node at index zero.
		dd := mat.New(n-1, n-1)
		newIDs := []int{id}
		rr := 1
		for r := 0; r < n; r++ {
			if r == q.i || r == q.j {
				continue
			}
			newIDs = append(newIDs, ids[r])
			dd.Set(rr, 0, 0.5*(d.At(r, q.i)+d.At(r, q.j)-q.dIJ))
			cc := 1
			for c := 0; c < r; c++ {
				if c != q.i && c != q.j {
					dd.Set(rr, cc, d.At(r, c))
					cc++
				}
			}
			rr++
		}
		dd.CopyLowerToUpper()

		d = dd
		ids = newIDs
		n--
	}

	// The reduction always places new nodes at index zero, so the joined
	// node is at index zero and becomes the root.
	nj.root = ids[0]
	nj.addParent(nj.root, ids[1], d.At(1, 0))
	return nj
}

// Newick returns the tree in Newick format.
func (nj *NeighborJoining) Newick() string {
	if nj.root < 0 {
		return ""
	}
	var sb strings.Builder
	nj.write(&sb, nj.root)
	sb.WriteByte(';')
	return sb.String()
}

func (nj *NeighborJoining) addLeaf(nextID *int) int {
	id := *nextID
	*nextID = id + 1
	nj.children[id] = nil
	nj.leaves[id] = struct{}{}
	return id
}

func (nj *NeighborJoining) addParent(parent, child int, childLength float64) {
	nj.children[parent] = append(nj.children[parent], child)
	nj.lengths[child] = childLength
}

func (nj *NeighborJoining) write(sb *strings.Builder, id int) {
	if children := nj.children[id]; len(children) > 0 {
		sb.WriteByte('(')
		for i, child := range children {
			if i > 0 {
				sb.WriteByte(',')
			}
			nj.write(sb, child)
		}
		sb.WriteByte(')')
	}
	if _, leaf := nj.leaves[id]; leaf {
		sb.WriteString(strconv.Itoa(id))
	}
	if length, ok := nj.lengths[id]; ok {
		sb.WriteByte(':')
		sb.WriteString(strconv.FormatFloat(length, 'g', -1, 64))
	}
}

// qData selects the pair to join: the cell minimizing the Q criterion
// (n-2)*d(r,c) - sigma_r - sigma_c over the lower triangle.
type qData struct {
	dIJ, dIK, dJK float64
	i, j          int
}

func newQData(d *mat.Matrix) qData {
	n := d.Rows()
	nMinus2 := float64(n - 2)

	sigma := make([]float64, n)
	for c := 0; c < n; c++ {
		sigma[c] = d.RowSum(c)
	}

	q := mat.New(n, n)
	for r := 0; r < n; r++ {
		for c := 0; c < r; c++ {
			q.Set(r, c, nMinus2*d.At(r, c)-sigma[r]-sigma[c])
		}
	}

	out := qData{i: 1, j: 0}
	for r := 2; r < n; r++ {
		for c := 0; c < r; c++ {
			if q.At(r, c) < q.At(out.i, out.j) {
				out.i, out.j = r, c
			}
		}
	}

	out.dIJ = d.At(out.i, out.j)
	out.dIK = 0.5 * (out.dIJ + (sigma[out.i]-sigma[out.j])/nMinus2)
	out.dJK = out.dIJ - out.dIK
	return out
}
