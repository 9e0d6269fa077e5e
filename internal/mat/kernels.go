package mat

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/lapack/lapack64"
)

var (
	ErrSingular    = errors.New("matrix is singular")
	ErrNotPositive = errors.New("matrix is not positive definite")
)

func (m *Matrix) general() blas64.General {
	return blas64.General{Rows: m.rows, Cols: m.cols, Stride: m.cols, Data: m.data}
}

func (m *Matrix) symmetricLower() blas64.Symmetric {
	return blas64.Symmetric{Uplo: blas.Lower, N: m.rows, Stride: m.cols, Data: m.data}
}

func (m *Matrix) triangularLower() blas64.Triangular {
	return blas64.Triangular{Uplo: blas.Lower, Diag: blas.NonUnit, N: m.rows, Stride: m.cols, Data: m.data}
}

// Gemm computes dst = a * b. dst must not alias a or b.
func Gemm(dst, a, b *Matrix) {
	if a.cols != b.rows || dst.rows != a.rows || dst.cols != b.cols {
		panic(fmt.Sprintf("gemm size mismatch %s * %s -> %s",
			a.SizeString(), b.SizeString(), dst.SizeString()))
	}
	blas64.Gemm(blas.NoTrans, blas.NoTrans, 1, a.general(), b.general(), 0, dst.general())
}

// Gemv computes y = a * x for column vectors x and y. y must not alias x.
func Gemv(y, a, x *Matrix) {
	if a.cols != x.rows || y.rows != a.rows || !x.IsColumnVector() || !y.IsColumnVector() {
		panic(fmt.Sprintf("gemv size mismatch %s * %s -> %s",
			a.SizeString(), x.SizeString(), y.SizeString()))
	}
	xv := blas64.Vector{N: x.rows, Inc: 1, Data: x.data}
	yv := blas64.Vector{N: y.rows, Inc: 1, Data: y.data}
	blas64.Gemv(blas.NoTrans, 1, a.general(), xv, 0, yv)
}

// GemvStride computes y = a * x where x is read with the given stride from
// xs, allowing a matrix column to be used without copying.
func GemvStride(y *Matrix, a *Matrix, xs []float64, incx int) {
	xv := blas64.Vector{N: a.cols, Inc: incx, Data: xs}
	yv := blas64.Vector{N: y.rows, Inc: 1, Data: y.data}
	blas64.Gemv(blas.NoTrans, 1, a.general(), xv, 0, yv)
}

// DotStride computes the dot product of two vectors of length n with the
// given strides.
func DotStride(n int, x []float64, incx int, y []float64, incy int) float64 {
	xv := blas64.Vector{N: n, Inc: incx, Data: x}
	yv := blas64.Vector{N: n, Inc: incy, Data: y}
	return blas64.Dot(xv, yv)
}

// Gesv solves A X = B in place on an augmented [A | B] matrix of size
// n x (n + nrhs) using LU factorization with partial pivoting. On return the
// trailing nrhs columns hold the solution.
func (m *Matrix) Gesv() error {
	n := m.rows
	if m.cols <= n {
		panic("gesv requires an augmented [A | B] matrix: " + m.SizeString())
	}
	a := blas64.General{Rows: n, Cols: n, Stride: m.cols, Data: m.data}
	b := blas64.General{Rows: n, Cols: m.cols - n, Stride: m.cols, Data: m.data[n:]}
	ipiv := make([]int, n)
	if !lapack64.Getrf(a, ipiv) {
		return ErrSingular
	}
	lapack64.Getrs(blas.NoTrans, a, b, ipiv)
	return nil
}

// PotrfLower overwrites the lower triangle of a symmetric positive-definite
// matrix with its Cholesky factor. It returns false if the matrix is not
// positive definite; in that case the lower triangle is undefined.
func (m *Matrix) PotrfLower() bool {
	if !m.IsSquare() {
		panic("matrix is not square: " + m.SizeString())
	}
	_, ok := lapack64.Potrf(m.symmetricLower())
	return ok
}

// PotriLower computes the lower triangle of the inverse from a prior
// PotrfLower factorization. It returns false on a singular factor.
func (m *Matrix) PotriLower() bool {
	if !m.IsSquare() {
		panic("matrix is not square: " + m.SizeString())
	}
	_, ok := lapack64.Potri(m.triangularLower())
	return ok
}

// Invert replaces a symmetric positive-definite matrix with its inverse and
// returns log(det) computed from the Cholesky diagonal. It fails exactly
// when the matrix is not positive definite, leaving the contents undefined.
func (m *Matrix) Invert() (logDet float64, err error) {
	if !m.PotrfLower() {
		return 0, ErrNotPositive
	}
	n := m.rows
	for i := 0; i < n; i++ {
		logDet += 2 * math.Log(m.data[i*n+i])
	}
	if !m.PotriLower() {
		return 0, ErrNotPositive
	}
	m.CopyLowerToUpper()
	return logDet, nil
}
