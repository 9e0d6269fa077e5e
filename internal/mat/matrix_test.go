package mat

import (
	"math"
	"strings"
	"testing"
)

const epsilon = 1e-6

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) <= epsilon
}

func TestGemm(t *testing.T) {
	testCases := []struct {
		name     string
		a, b     [][]float64
		expected [][]float64
	}{
		{
			name:     "2x3 times 3x2",
			a:        [][]float64{{1, 2, 3}, {4, 5, 6}},
			b:        [][]float64{{7, 8}, {9, 10}, {11, 12}},
			expected: [][]float64{{58, 64}, {139, 154}},
		},
		{
			name:     "identity",
			a:        [][]float64{{1, 0}, {0, 1}},
			b:        [][]float64{{5, -3}, {2, 9}},
			expected: [][]float64{{5, -3}, {2, 9}},
		},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			a := FromRows(test.a)
			b := FromRows(test.b)
			dst := New(len(test.expected), len(test.expected[0]))
			Gemm(dst, a, b)
			for r := range test.expected {
				for c := range test.expected[r] {
					if !almostEqual(dst.At(r, c), test.expected[r][c]) {
						t.Errorf("cell [%d,%d]: expected %v, found %v",
							r, c, test.expected[r][c], dst.At(r, c))
					}
				}
			}
		})
	}
}

func TestGemv(t *testing.T) {
	a := FromRows([][]float64{{1, 2}, {3, 4}, {5, 6}})
	x := FromRows([][]float64{{7}, {8}})
	y := New(3, 1)
	Gemv(y, a, x)
	expected := []float64{23, 53, 83}
	for r, v := range expected {
		if !almostEqual(y.At(r, 0), v) {
			t.Errorf("row %d: expected %v, found %v", r, v, y.At(r, 0))
		}
	}
}

func TestGesv(t *testing.T) {
	// [A | b] augmented with A = {{2, 1}, {1, 3}}, b = (5, 10)'
	m := FromRows([][]float64{
		{2, 1, 5},
		{1, 3, 10},
	})
	if err := m.Gesv(); err != nil {
		t.Fatal(err)
	}
	if !almostEqual(m.At(0, 2), 1) || !almostEqual(m.At(1, 2), 3) {
		t.Errorf("expected solution (1, 3), found (%v, %v)", m.At(0, 2), m.At(1, 2))
	}
}

func TestGesvSingular(t *testing.T) {
	m := FromRows([][]float64{
		{1, 1, 1},
		{1, 1, 2},
	})
	if err := m.Gesv(); err == nil {
		t.Error("expected an error for a singular system")
	}
}

func TestPotrfLogDet(t *testing.T) {
	a := FromRows([][]float64{
		{4, 12, -16},
		{12, 37, -43},
		{-16, -43, 98},
	})
	chol := a.Clone()
	if !chol.PotrfLower() {
		t.Fatal("potrf failed on a positive-definite matrix")
	}
	diagonal := []float64{2, 1, 3}
	for i, expected := range diagonal {
		if !almostEqual(chol.At(i, i), expected) {
			t.Errorf("diagonal %d: expected %v, found %v", i, expected, chol.At(i, i))
		}
	}

	logDet, err := a.Clone().Invert()
	if err != nil {
		t.Fatal(err)
	}
	expected := 2 * (math.Log(2) + math.Log(1) + math.Log(3))
	if !almostEqual(logDet, expected) {
		t.Errorf("log det: expected %v, found %v", expected, logDet)
	}
}

func TestInvertIdentityProduct(t *testing.T) {
	a := FromRows([][]float64{
		{4, 12, -16},
		{12, 37, -43},
		{-16, -43, 98},
	})
	inv := a.Clone()
	if _, err := inv.Invert(); err != nil {
		t.Fatal(err)
	}
	product := New(3, 3)
	Gemm(product, a, inv)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			expected := 0.0
			if r == c {
				expected = 1
			}
			if !almostEqual(product.At(r, c), expected) {
				t.Errorf("cell [%d,%d]: expected %v, found %v", r, c, expected, product.At(r, c))
			}
		}
	}
}

func TestInvertRejectsIndefinite(t *testing.T) {
	a := FromRows([][]float64{
		{1, 2},
		{2, 1},
	})
	if _, err := a.Invert(); err == nil {
		t.Error("expected an error for an indefinite matrix")
	}
}

func TestTranspose(t *testing.T) {
	a := FromRows([][]float64{{1, 2, 3}, {4, 5, 6}})
	at := a.Transpose()
	if !at.IsSize(3, 2) {
		t.Fatalf("unexpected size %s", at.SizeString())
	}
	for r := 0; r < a.Rows(); r++ {
		for c := 0; c < a.Cols(); c++ {
			if at.At(c, r) != a.At(r, c) {
				t.Errorf("cell [%d,%d] not transposed", r, c)
			}
		}
	}
}

func TestCopyLowerToUpper(t *testing.T) {
	a := FromRows([][]float64{
		{1, 0, 0},
		{2, 3, 0},
		{4, 5, 6},
	})
	a.CopyLowerToUpper()
	if a.At(0, 1) != 2 || a.At(0, 2) != 4 || a.At(1, 2) != 5 {
		t.Errorf("upper triangle not mirrored: %v", a.Data())
	}
}

func TestClampAndSums(t *testing.T) {
	a := FromRows([][]float64{{-1, 0.5}, {2, 0.25}})
	a.Clamp(0, 1)
	if a.At(0, 0) != 0 || a.At(1, 0) != 1 {
		t.Errorf("clamp failed: %v", a.Data())
	}
	if !almostEqual(a.RowSum(0), 0.5) {
		t.Errorf("row sum: expected 0.5, found %v", a.RowSum(0))
	}
	if !almostEqual(a.ColSum(1), 0.75) {
		t.Errorf("column sum: expected 0.75, found %v", a.ColSum(1))
	}
	min, max := a.MinMaxColumn(1)
	if min != 0.25 || max != 0.5 {
		t.Errorf("column min/max: found %v, %v", min, max)
	}
}

func TestReadWrite(t *testing.T) {
	testCases := []struct {
		name    string
		text    string
		rows    int
		cols    int
		wantErr bool
	}{
		{name: "valid", text: "2 3\n1 2 3\n4.5 5 6e-1\n", rows: 2, cols: 3},
		{name: "missing values", text: "2 2\n1 2 3", wantErr: true},
		{name: "non numeric", text: "1 1\nx", wantErr: true},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			sc := NewScanner(strings.NewReader(test.text))
			m, err := Read(sc)
			if test.wantErr {
				if err == nil {
					t.Error("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !m.IsSize(test.rows, test.cols) {
				t.Fatalf("unexpected size %s", m.SizeString())
			}

			round, err := Read(NewScanner(strings.NewReader(m.String())))
			if err != nil {
				t.Fatal(err)
			}
			for i, v := range m.Data() {
				if round.Data()[i] != v {
					t.Errorf("value %d did not round-trip: %v != %v", i, v, round.Data()[i])
				}
			}
		})
	}
}
