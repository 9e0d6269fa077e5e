package ancestry

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"ohana/internal/mat"
)

var ErrInvalidForcedGrouping = errors.New("invalid forced-grouping file")

// ForcedGrouping assigns each individual to a population and bounds the
// admixture proportion of every component for each population.
type ForcedGrouping struct {
	assignments []int         // per-individual population index
	bounds      []*mat.Matrix // per-population [2K x 1] lower then upper bounds
	individuals int
	components  int
}

// ReadForcedGrouping parses a forced-grouping file. Lines starting with '#'
// are comments. The file holds the individual and component counts, one
// population index per individual, and a [2K x 1] bound matrix for each
// population.
func ReadForcedGrouping(path string) (*ForcedGrouping, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading forced-grouping file: %w", err)
	}
	fg, err := ParseForcedGrouping(strings.NewReader(stripComments(string(raw))))
	if err != nil {
		return nil, fmt.Errorf("failed to read forced-grouping file %s: %w", path, err)
	}
	return fg, nil
}

// ParseForcedGrouping parses forced-grouping data with comments already
// removed.
func ParseForcedGrouping(r io.Reader) (*ForcedGrouping, error) {
	sc := mat.NewScanner(r)
	var fg ForcedGrouping

	var err error
	if fg.individuals, err = scanCount(sc, "number of individuals"); err != nil {
		return nil, err
	}
	if fg.components, err = scanCount(sc, "number of components"); err != nil {
		return nil, err
	}

	fg.assignments = make([]int, fg.individuals)
	populations := 0
	for i := range fg.assignments {
		p, err := scanCount(sc, fmt.Sprintf("component assignment for individual %d", i+1))
		if err != nil {
			return nil, err
		}
		fg.assignments[i] = p
		populations = max(populations, p+1)
	}

	fg.bounds = make([]*mat.Matrix, populations)
	for p := range fg.bounds {
		b, err := mat.Read(sc)
		if err != nil {
			return nil, fmt.Errorf("error reading bound vector for population index %d: %w", p, err)
		}
		fg.bounds[p] = b
	}

	if sc.Scan() {
		return nil, fmt.Errorf("%w, unexpected token %q at end of file",
			ErrInvalidForcedGrouping, sc.Text())
	}
	if err := fg.validate(); err != nil {
		return nil, err
	}
	return &fg, nil
}

func scanCount(sc *bufio.Scanner, what string) (int, error) {
	if !sc.Scan() {
		return 0, fmt.Errorf("%w, error parsing %s", ErrInvalidForcedGrouping, what)
	}
	n, err := strconv.Atoi(sc.Text())
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w, error parsing %s: %q", ErrInvalidForcedGrouping, what, sc.Text())
	}
	return n, nil
}

// Individuals returns the number of individuals.
func (fg *ForcedGrouping) Individuals() int { return fg.individuals }

// Components returns the number of components.
func (fg *ForcedGrouping) Components() int { return fg.components }

// Min returns the lower proportion bound for individual i and component k.
func (fg *ForcedGrouping) Min(i, k int) float64 {
	return fg.bounds[fg.assignments[i]].At(k, 0)
}

// Max returns the upper proportion bound for individual i and component k.
func (fg *ForcedGrouping) Max(i, k int) float64 {
	return fg.bounds[fg.assignments[i]].At(fg.components+k, 0)
}

// RandomizeQ draws a Q matrix respecting the bounds: every row starts at
// its lower bounds and random components are grown or shrunk until the row
// sums to one.
func (fg *ForcedGrouping) RandomizeQ(rnd *Randomizer) *mat.Matrix {
	I, K := fg.individuals, fg.components
	q := mat.New(I, K)
	for i := 0; i < I; i++ {
		for k := 0; k < K; k++ {
			q.Set(i, k, fg.Min(i, k))
		}
		for {
			rowSum := q.RowSum(i)
			if math.Abs(1-rowSum) < fMin {
				break
			}
			k := rnd.intn(K)
			qik := q.At(i, k)
			if rowSum > 1 {
				boundary := math.Max(fg.Min(i, k), qik-(rowSum-1))
				q.Set(i, k, rnd.uniformIn(boundary, qik))
			} else {
				boundary := math.Min(qik+(1-rowSum), fg.Max(i, k))
				q.Set(i, k, rnd.uniformIn(qik, boundary))
			}
		}
	}
	return q
}

// ValidateQ checks the Q matrix shape and that every cell respects its
// population's bounds.
func (fg *ForcedGrouping) ValidateQ(q *mat.Matrix) error {
	if q.Cols() != fg.components {
		return fmt.Errorf("%w, inconsistent number of components (%d) and %s Q matrix",
			ErrInvalidForcedGrouping, fg.components, q.SizeString())
	}
	if q.Rows() != fg.individuals {
		return fmt.Errorf("%w, inconsistent number of individuals (%d) and %s Q matrix",
			ErrInvalidForcedGrouping, fg.individuals, q.SizeString())
	}
	for i := 0; i < fg.individuals; i++ {
		for k := 0; k < fg.components; k++ {
			v := q.At(i, k)
			if v < fg.Min(i, k) || v > fg.Max(i, k) {
				return fmt.Errorf("%w, Q cell [%d,%d] (%v) is outside the range %v to %v",
					ErrInvalidForcedGrouping, i+1, k+1, v, fg.Min(i, k), fg.Max(i, k))
			}
		}
	}
	return nil
}

func (fg *ForcedGrouping) validate() error {
	if fg.individuals < 2 {
		return fmt.Errorf("%w, invalid number of individuals: %d; expected at least 2",
			ErrInvalidForcedGrouping, fg.individuals)
	}
	if fg.components < 2 {
		return fmt.Errorf("%w, invalid number of components: %d; expected at least 2",
			ErrInvalidForcedGrouping, fg.components)
	}
	K := fg.components
	for p, b := range fg.bounds {
		if !b.IsSize(2*K, 1) {
			return fmt.Errorf("%w, bound vector for population index %d has size %s; expected [%d x 1]",
				ErrInvalidForcedGrouping, p, b.SizeString(), 2*K)
		}
		minSum, maxSum := 0.0, 0.0
		for k := 0; k < K; k++ {
			minSum += b.At(k, 0)
			maxSum += b.At(K+k, 0)
		}
		if minSum > 1 {
			return fmt.Errorf("%w, the lower bounds of population index %d sum to more than 1",
				ErrInvalidForcedGrouping, p)
		}
		if maxSum < 1 {
			return fmt.Errorf("%w, the upper bounds of population index %d sum to less than 1",
				ErrInvalidForcedGrouping, p)
		}
		for k := 0; k < 2*K; k++ {
			if b.At(k, 0) < 0 || b.At(k, 0) > 1 {
				return fmt.Errorf("%w, bound %d of population index %d (%v) is not between 0 and 1",
					ErrInvalidForcedGrouping, k+1, p, b.At(k, 0))
			}
		}
		for k := 0; k < K; k++ {
			if b.At(k, 0) > b.At(K+k, 0) {
				return fmt.Errorf("%w, lower bound %d of population index %d exceeds its upper bound",
					ErrInvalidForcedGrouping, k+1, p)
			}
		}
	}
	return nil
}

// stripComments removes lines whose first character is '#'.
func stripComments(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if !strings.HasPrefix(line, "#") {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
