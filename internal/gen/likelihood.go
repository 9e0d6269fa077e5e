package gen

import (
	"fmt"
	"math"

	"ohana/internal/mat"
)

// Likelihood is a genotype matrix of per-cell genotype likelihoods, stored
// as three equally-shaped matrices. The three values of a cell need not sum
// to one.
type Likelihood struct {
	gaa *mat.Matrix // minor-minor
	gAa *mat.Matrix // major-minor
	gAA *mat.Matrix // major-major
}

// NewLikelihood returns a likelihood genotype matrix from the minor-minor,
// major-minor, and major-major matrices, which must share one shape.
func NewLikelihood(gaa, gAa, gAA *mat.Matrix) (*Likelihood, error) {
	if !gAa.IsSize(gaa.Rows(), gaa.Cols()) || !gAA.IsSize(gaa.Rows(), gaa.Cols()) {
		return nil, fmt.Errorf("%w in likelihood genotype matrix", ErrSizeMismatch)
	}
	return &Likelihood{gaa: gaa, gAa: gAa, gAA: gAA}, nil
}

func (l *Likelihood) Height() int        { return l.gaa.Rows() }
func (l *Likelihood) Width() int         { return l.gaa.Cols() }
func (l *Likelihood) SizeString() string { return l.gaa.SizeString() }

// MinorMinor returns the minor-minor likelihood matrix.
func (l *Likelihood) MinorMinor() *mat.Matrix { return l.gaa }

// MajorMinor returns the major-minor likelihood matrix.
func (l *Likelihood) MajorMinor() *mat.Matrix { return l.gAa }

// MajorMajor returns the major-major likelihood matrix.
func (l *Likelihood) MajorMajor() *mat.Matrix { return l.gAA }

func (l *Likelihood) ComputeLLE(q, fa, fb, qfa, qfb *mat.Matrix) float64 {
	sum := 0.0
	aa, Aa, AA := l.gaa.Data(), l.gAa.Data(), l.gAA.Data()
	qa, qb := qfa.Data(), qfb.Data()
	for i := range aa {
		a := qa[i]
		b := qb[i]
		sum += math.Log(AA[i]*a*a + aa[i]*b*b + Aa[i]*a*b*2)
	}
	return sum
}

func (l *Likelihood) ComputeDerivativesQ(q, fa, fb, qfa, qfb *mat.Matrix, i int, dv, h *mat.Matrix) {
	J := l.Width()
	K := dv.Rows()
	dv.Fill(0)
	h.Fill(0)
	for j := 0; j < J; j++ {
		gAA := l.gAA.At(i, j)
		gAa := l.gAa.At(i, j)
		gaa := l.gaa.At(i, j)
		a := qfa.At(i, j)
		b := qfb.At(i, j)
		alpha := 1 / (gAA*a*a + gaa*b*b + gAa*a*b*2)
		theta := 2 * (gAA*a + gAa*b)
		gamma := 2 * (gaa*b + gAa*a)
		for k1 := 0; k1 < K; k1++ {
			fa1 := fa.At(k1, j)
			fb1 := fb.At(k1, j)
			dv.Set(k1, 0, dv.At(k1, 0)+alpha*(theta*fa1+gamma*fb1))
			for k2 := 0; k2 < K; k2++ {
				fa2 := fa.At(k2, j)
				fb2 := fb.At(k2, j)
				term1 := 2 * (gAA*fa1*fa2 + gaa*fb1*fb2)
				term2 := 2 * gAa * (fa1*fb2 + fb1*fa2)
				term3 := theta*theta*fa1*fa2 + gamma*gamma*fb1*fb2
				term4 := theta * gamma * (fa1*fb2 + fb1*fa2)
				h.Set(k1, k2, h.At(k1, k2)+alpha*(term1+term2-alpha*(term3+term4)))
			}
		}
	}
}

func (l *Likelihood) ComputeDerivativesF(q, fa, fb, qfa, qfb *mat.Matrix, j int, dv, h *mat.Matrix) {
	I := l.Height()
	K := dv.Rows()
	dv.Fill(0)
	h.Fill(0)
	for i := 0; i < I; i++ {
		gAA := l.gAA.At(i, j)
		gAa := l.gAa.At(i, j)
		gaa := l.gaa.At(i, j)
		a := qfa.At(i, j)
		b := qfb.At(i, j)
		alpha := 1 / (gAA*a*a + gaa*b*b + gAa*a*b*2)
		theta := 2 * (gAA*a - gaa*b + gAa*b - gAa*a)
		term := 2 * (gAA + gaa - 2*gAa)
		for k1 := 0; k1 < K; k1++ {
			q1 := q.At(i, k1)
			dv.Set(k1, 0, dv.At(k1, 0)+theta*alpha*q1)
			for k2 := 0; k2 < K; k2++ {
				h.Set(k1, k2, h.At(k1, k2)+
					alpha*q1*q.At(i, k2)*(term-theta*theta*alpha))
			}
		}
	}
}

// CreateMu estimates the per-marker major-allele frequency by a fixed-point
// EM, iterating at most 100 times or until the change drops to 1e-6, with
// the result clamped to [fEpsilon, 1-fEpsilon].
func (l *Likelihood) CreateMu(fEpsilon float64) *mat.Matrix {
	const (
		emIterations = 100
		emEpsilon    = 1e-6
	)
	fMin := fEpsilon
	fMax := 1 - fEpsilon
	I, J := l.Height(), l.Width()
	mu := mat.New(J, 1)
	for j := 0; j < J; j++ {
		muJ := 0.5
		for iter := 0; iter < emIterations; iter++ {
			wuJ := 1 - muJ
			sum := 0.0
			for i := 0; i < I; i++ {
				AA := l.gAA.At(i, j) * muJ * muJ
				aa := l.gaa.At(i, j) * wuJ * wuJ
				Aa := l.gAa.At(i, j) * muJ * wuJ * 2
				sum += (2*AA + Aa) / (2 * (AA + Aa + aa))
			}
			prev := muJ
			muJ = math.Min(math.Max(fMin, sum/float64(I)), fMax)
			if math.Abs(prev-muJ) <= emEpsilon {
				break
			}
		}
		mu.Set(j, 0, muJ)
	}
	return mu
}
