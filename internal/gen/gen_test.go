package gen

import (
	"math"
	"strings"
	"testing"

	"ohana/internal/mat"
)

const epsilon = 1e-6

// discreteFixture and likelihoodFixture build the small discrete and likelihood matrices shared by
// the derivative tests.
func discreteFixture() *Discrete {
	return NewDiscrete([][]Genotype{
		{0, 1, 2, 0},
		{1, 1, 2, 2},
		{2, 0, 0, 1},
	})
}

func likelihoodFixture(t *testing.T) *Likelihood {
	t.Helper()
	l, err := ParseLikelihood(strings.NewReader(`
		3 4
		0.1  0.6  0.9  0.4
		0.5  0.2  0.7  0.1
		0.2  0.3  0.3  0.8

		3 4
		0.9  0.5  0.3  0.3
		0.8  0.6  0.2  0.4
		0.9  0.6  0.7  0.1

		3 4
		0.1  0.6  0.7  0.3
		0.2  0.5  0.8  0.2
		0.3  0.4  0.9  0.1
	`))
	if err != nil {
		t.Fatalf("invalid fixture: %s", err)
	}
	return l
}

func qfFixture() (q, f *mat.Matrix) {
	q = mat.FromRows([][]float64{
		{0.2, 0.8},
		{0.4, 0.6},
		{0.5, 0.5},
	})
	f = mat.FromRows([][]float64{
		{0.1, 0.3, 0.5, 0.7},
		{0.2, 0.4, 0.6, 0.8},
	})
	return q, f
}

// lleFor recomputes the products and evaluates the log-likelihood, so the
// finite-difference checks can perturb Q and F freely.
func lleFor(g Matrix, q, f *mat.Matrix) float64 {
	fb := mat.New(f.Rows(), f.Cols())
	fb.OneMinus(f)
	qfa := mat.New(q.Rows(), f.Cols())
	qfb := mat.New(q.Rows(), f.Cols())
	mat.Gemm(qfa, q, f)
	mat.Gemm(qfb, q, fb)
	return g.ComputeLLE(q, f, fb, qfa, qfb)
}

func derivativesFor(g Matrix, q, f *mat.Matrix, wrtQ bool, index int) (*mat.Matrix, *mat.Matrix) {
	K := q.Cols()
	fb := mat.New(f.Rows(), f.Cols())
	fb.OneMinus(f)
	qfa := mat.New(q.Rows(), f.Cols())
	qfb := mat.New(q.Rows(), f.Cols())
	mat.Gemm(qfa, q, f)
	mat.Gemm(qfb, q, fb)
	d := mat.New(K, 1)
	h := mat.New(K, K)
	if wrtQ {
		g.ComputeDerivativesQ(q, f, fb, qfa, qfb, index, d, h)
	} else {
		g.ComputeDerivativesF(q, f, fb, qfa, qfb, index, d, h)
	}
	return d, h
}

func TestDiscreteLLE(t *testing.T) {
	g := discreteFixture()
	q, f := qfFixture()

	// cell by cell against the closed form
	expected := 0.0
	for i := 0; i < g.Height(); i++ {
		for j := 0; j < g.Width(); j++ {
			a := q.At(i, 0)*f.At(0, j) + q.At(i, 1)*f.At(1, j)
			b := q.At(i, 0)*(1-f.At(0, j)) + q.At(i, 1)*(1-f.At(1, j))
			gij, ok := MinorCount(g.At(i, j))
			if !ok {
				continue
			}
			expected += gij*math.Log(a) + (2-gij)*math.Log(b)
		}
	}
	if actual := lleFor(g, q, f); math.Abs(actual-expected) > epsilon {
		t.Errorf("expected %v, found %v", expected, actual)
	}
}

func TestMissingGenotypesContributeNothing(t *testing.T) {
	q, f := qfFixture()

	// an all-missing individual contributes nothing to the Q gradient
	allMissingRow := NewDiscrete([][]Genotype{
		{Missing, Missing, Missing, Missing},
		{1, 1, 2, 2},
		{2, 0, 0, 1},
	})
	d, h := derivativesFor(allMissingRow, q, f, true, 0)
	for k := 0; k < 2; k++ {
		if d.At(k, 0) != 0 {
			t.Errorf("gradient %d not zero for missing individual", k)
		}
		for k2 := 0; k2 < 2; k2++ {
			if h.At(k, k2) != 0 {
				t.Errorf("hessian [%d,%d] not zero for missing individual", k, k2)
			}
		}
	}

	// an all-missing marker contributes nothing to the F gradient
	allMissing := NewDiscrete([][]Genotype{
		{Missing, 0}, {Missing, 1}, {Missing, 2},
	})
	d, h = derivativesFor(allMissing, q, mat.FromRows([][]float64{{0.5, 0.5}, {0.5, 0.5}}), false, 0)
	for k := 0; k < 2; k++ {
		if d.At(k, 0) != 0 {
			t.Errorf("gradient %d not zero for missing marker", k)
		}
		for k2 := 0; k2 < 2; k2++ {
			if h.At(k, k2) != 0 {
				t.Errorf("hessian [%d,%d] not zero for missing marker", k, k2)
			}
		}
	}
}

func TestDerivativesMatchFiniteDifferences(t *testing.T) {
	q, f := qfFixture()
	testCases := []struct {
		name string
		g    Matrix
	}{
		{name: "discrete", g: discreteFixture()},
		{name: "likelihood", g: likelihoodFixture(t)},
	}
	const h = 1e-5
	const tol = 1e-3
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			// gradient and hessian with respect to each row of Q
			for i := 0; i < q.Rows(); i++ {
				d, hess := derivativesFor(test.g, q, f, true, i)
				for k := 0; k < q.Cols(); k++ {
					plus := q.Clone()
					plus.Set(i, k, q.At(i, k)+h)
					minus := q.Clone()
					minus.Set(i, k, q.At(i, k)-h)
					fd := (lleFor(test.g, plus, f) - lleFor(test.g, minus, f)) / (2 * h)
					if math.Abs(fd-d.At(k, 0)) > tol {
						t.Errorf("Q gradient [%d,%d]: expected %v, found %v", i, k, fd, d.At(k, 0))
					}
					dPlus, _ := derivativesFor(test.g, plus, f, true, i)
					dMinus, _ := derivativesFor(test.g, minus, f, true, i)
					for k1 := 0; k1 < q.Cols(); k1++ {
						fdH := (dPlus.At(k1, 0) - dMinus.At(k1, 0)) / (2 * h)
						if math.Abs(fdH-hess.At(k1, k)) > tol {
							t.Errorf("Q hessian [%d][%d,%d]: expected %v, found %v",
								i, k1, k, fdH, hess.At(k1, k))
						}
					}
				}
			}
			// gradient and hessian with respect to each column of F
			for j := 0; j < f.Cols(); j++ {
				d, hess := derivativesFor(test.g, q, f, false, j)
				for k := 0; k < f.Rows(); k++ {
					plus := f.Clone()
					plus.Set(k, j, f.At(k, j)+h)
					minus := f.Clone()
					minus.Set(k, j, f.At(k, j)-h)
					fd := (lleFor(test.g, q, plus) - lleFor(test.g, q, minus)) / (2 * h)
					if math.Abs(fd-d.At(k, 0)) > tol {
						t.Errorf("F gradient [%d,%d]: expected %v, found %v", k, j, fd, d.At(k, 0))
					}
					dPlus, _ := derivativesFor(test.g, q, plus, false, j)
					dMinus, _ := derivativesFor(test.g, q, minus, false, j)
					for k1 := 0; k1 < f.Rows(); k1++ {
						fdH := (dPlus.At(k1, 0) - dMinus.At(k1, 0)) / (2 * h)
						if math.Abs(fdH-hess.At(k1, k)) > tol {
							t.Errorf("F hessian [%d][%d,%d]: expected %v, found %v",
								j, k1, k, fdH, hess.At(k1, k))
						}
					}
				}
			}
		})
	}
}

func TestDiscreteCreateMu(t *testing.T) {
	g := discreteFixture()
	mu := g.CreateMu(1e-6)
	// column sums of major-allele dosage over 2I
	expected := []float64{0.5, 2.0 / 3, 1.0 / 3, 0.5}
	for j, v := range expected {
		if math.Abs(mu.At(j, 0)-v) > epsilon {
			t.Errorf("mu[%d]: expected %v, found %v", j, v, mu.At(j, 0))
		}
	}
}

func TestDiscreteCreateMuClamped(t *testing.T) {
	g := NewDiscrete([][]Genotype{{0}, {0}})
	mu := g.CreateMu(0.01)
	if mu.At(0, 0) != 0.99 {
		t.Errorf("expected the clamp bound 0.99, found %v", mu.At(0, 0))
	}
}

func TestLikelihoodCreateMu(t *testing.T) {
	g := likelihoodFixture(t)
	mu := g.CreateMu(1e-6)
	for j := 0; j < g.Width(); j++ {
		muJ := mu.At(j, 0)
		if muJ < 1e-6 || muJ > 1-1e-6 {
			t.Errorf("mu[%d] (%v) out of range", j, muJ)
		}
		// the fixed point is stable: one more EM step changes nothing
		wuJ := 1 - muJ
		sum := 0.0
		for i := 0; i < g.Height(); i++ {
			AA := g.MajorMajor().At(i, j) * muJ * muJ
			aa := g.MinorMinor().At(i, j) * wuJ * wuJ
			Aa := g.MajorMinor().At(i, j) * muJ * wuJ * 2
			sum += (2*AA + Aa) / (2 * (AA + Aa + aa))
		}
		next := sum / float64(g.Height())
		if math.Abs(next-muJ) > 1e-5 {
			t.Errorf("mu[%d] (%v) is not a fixed point (next %v)", j, muJ, next)
		}
	}
}

func TestParseLikelihoodShapeMismatch(t *testing.T) {
	_, err := ParseLikelihood(strings.NewReader("1 2\n0.5 0.5\n1 2\n0.5 0.5\n2 1\n0.5\n0.5\n"))
	if err == nil {
		t.Error("expected an error for mismatched shapes")
	}
}

func TestReadRejectsUnknownExtension(t *testing.T) {
	if _, err := Read("genotypes.matrix"); err == nil {
		t.Error("expected an error for an unknown extension")
	}
}
