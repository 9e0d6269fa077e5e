package ancestry

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"ohana/internal/mat"
)

// Randomizer draws the initial Q and F matrices from an explicitly seeded
// generator so runs are reproducible.
type Randomizer struct {
	rnd *rand.Rand
}

func NewRandomizer(seed uint64) *Randomizer {
	return &Randomizer{rnd: rand.New(rand.NewSource(seed))}
}

// RandomizeQ samples each row uniformly and renormalizes it to sum to one.
func (r *Randomizer) RandomizeQ(individuals, components int) *mat.Matrix {
	uniform := distuv.Uniform{Min: 0, Max: 1, Src: r.rnd}
	q := mat.New(individuals, components)
	for i := 0; i < individuals; i++ {
		sum := 0.0
		for k := 0; k < components; k++ {
			v := uniform.Rand()
			q.Set(i, k, v)
			sum += v
		}
		q.ScaleRow(i, 1/sum)
	}
	return q
}

// RandomizeF samples each cell from a normal distribution centered on the
// marker's empirical frequency with sigma 0.1, clamped to the valid range.
func (r *Randomizer) RandomizeF(components int, mu *mat.Matrix) *mat.Matrix {
	markers := mu.Rows()
	f := mat.New(components, markers)
	for j := 0; j < markers; j++ {
		normal := distuv.Normal{Mu: mu.At(j, 0), Sigma: 0.1, Src: r.rnd}
		for k := 0; k < components; k++ {
			v := normal.Rand()
			if v < fMin {
				v = fMin
			} else if v > fMax {
				v = fMax
			}
			f.Set(k, j, v)
		}
	}
	return f
}

// uniformIn draws from [lo, hi].
func (r *Randomizer) uniformIn(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return distuv.Uniform{Min: lo, Max: hi, Src: r.rnd}.Rand()
}

func (r *Randomizer) intn(n int) int {
	return r.rnd.Intn(n)
}
