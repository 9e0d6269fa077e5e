package gen

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"ohana/internal/mat"
)

var ErrUnknownExtension = errors.New("unknown genotype matrix extension")

// Read loads a genotype matrix, selecting the variant by file extension:
// .dgm for discrete and .lgm for likelihood. Any other extension is an
// error.
func Read(path string) (Matrix, error) {
	switch filepath.Ext(path) {
	case ".dgm":
		return readDiscrete(path)
	case ".lgm":
		return readLikelihood(path)
	default:
		return nil, fmt.Errorf("%w %q; expected .dgm or .lgm", ErrUnknownExtension, path)
	}
}

func readDiscrete(path string) (*Discrete, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening genotype matrix: %w", err)
	}
	defer file.Close()
	d, err := ParseDiscrete(file)
	if err != nil {
		return nil, fmt.Errorf("error reading discrete genotype matrix %s: %w", path, err)
	}
	return d, nil
}

// ParseDiscrete parses a discrete genotype matrix: the height, the width,
// and then height*width integers in 0..3.
func ParseDiscrete(r io.Reader) (*Discrete, error) {
	sc := mat.NewScanner(r)
	m, err := mat.Read(sc)
	if err != nil {
		return nil, err
	}
	if sc.Scan() {
		return nil, fmt.Errorf("%w, unexpected token %q at end of input",
			mat.ErrInvalidMatrixFile, sc.Text())
	}
	d := &Discrete{rows: m.Rows(), cols: m.Cols(), g: make([]Genotype, m.Len())}
	for i, v := range m.Data() {
		g := Genotype(v)
		if float64(g) != v || g > Missing {
			return nil, fmt.Errorf("%w, invalid genotype value %v",
				mat.ErrInvalidMatrixFile, v)
		}
		d.g[i] = g
	}
	return d, nil
}

func readLikelihood(path string) (*Likelihood, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening genotype matrix: %w", err)
	}
	defer file.Close()
	l, err := ParseLikelihood(file)
	if err != nil {
		return nil, fmt.Errorf("error reading likelihood genotype matrix %s: %w", path, err)
	}
	return l, nil
}

// ParseLikelihood parses a likelihood genotype matrix: three concatenated
// matrices of one shape holding the minor-minor, major-minor, and
// major-major likelihoods.
func ParseLikelihood(r io.Reader) (*Likelihood, error) {
	sc := mat.NewScanner(r)
	gaa, err := mat.Read(sc)
	if err != nil {
		return nil, err
	}
	gAa, err := mat.Read(sc)
	if err != nil {
		return nil, err
	}
	gAA, err := mat.Read(sc)
	if err != nil {
		return nil, err
	}
	if sc.Scan() {
		return nil, fmt.Errorf("%w, unexpected token %q at end of input",
			mat.ErrInvalidMatrixFile, sc.Text())
	}
	return NewLikelihood(gaa, gAa, gAA)
}
