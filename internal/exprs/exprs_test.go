package exprs

import (
	"errors"
	"math"
	"strings"
	"testing"
)

const epsilon = 1e-6

func TestEvaluate(t *testing.T) {
	testCases := []struct {
		name       string
		expression string
		args       map[string]float64
		expected   float64
	}{
		{
			name:       "admixture entry",
			expression: "(1-p)*(b+e+g+f+a) + p*(b+d+a)",
			args: map[string]float64{
				"a": 1, "b": 2, "c": 3, "d": 4, "e": 5, "f": 6, "g": 7, "p": 0.5,
			},
			expected: 14.0,
		},
		{
			name:       "precedence",
			expression: "1 + 2 * 3 - 4 / 2",
			expected:   5,
		},
		{
			name:       "parentheses",
			expression: "(1 + 2) * (3 - 4) / 2",
			expected:   -1.5,
		},
		{
			name:       "left association",
			expression: "8 - 4 - 2",
			expected:   2,
		},
		{
			name:       "division chain",
			expression: "16 / 4 / 2",
			expected:   2,
		},
		{
			name:       "decimals",
			expression: "0.5 * 0.25 + 1.125",
			expected:   1.25,
		},
		{
			name:       "identifier with digits and underscores",
			expression: "edge_1 + edge_2",
			args:       map[string]float64{"edge_1": 1.5, "edge_2": 2.5},
			expected:   4,
		},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			expr, err := Parse(test.expression)
			if err != nil {
				t.Fatal(err)
			}
			actual, err := expr.Evaluate(test.args)
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(actual-test.expected) > epsilon {
				t.Errorf("expected %v, found %v", test.expected, actual)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	testCases := []struct {
		name       string
		expression string
		expected   error
	}{
		{name: "unbalanced open", expression: "(1 + 2", expected: ErrMismatchedParens},
		{name: "unbalanced close", expression: "1 + 2)", expected: ErrMismatchedParens},
		{name: "bad symbol", expression: "1 ^ 2", expected: ErrInvalidSymbol},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			if _, err := Parse(test.expression); !errors.Is(err, test.expected) {
				t.Errorf("expected %v, found %v", test.expected, err)
			}
		})
	}
}

func TestEvaluateUndefinedVariable(t *testing.T) {
	expr, err := Parse("a + b")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := expr.Evaluate(map[string]float64{"a": 1}); !errors.Is(err, ErrUndefinedVariable) {
		t.Errorf("expected an undefined-variable error, found %v", err)
	}
}

const agiText = `#         f/ \
#         /   \g
#        /\    \
#       / d\   /\
#     a/    \ /e \
#     / <-p  |b   \c
#    A       B     C
#
# Branch length parameters, range: [0, inf)
a b c d e f g

# Admixture proportion parameters, range: [0, 1]
p

# K value
3

# Matrix entries, total number should be: K*(K-1)/2
# They map to a C matrix, e.g. K=3 maps to:
#   0 1
#   1 2
(1 - p) * (b + e + g + f + a) + p * (b + d + a)
p * a + (1 - p) * (g + f + a)
c + g + f + a
`

func TestParseAGI(t *testing.T) {
	agi, err := ParseAGI(strings.NewReader(agiText))
	if err != nil {
		t.Fatal(err)
	}
	if agi.K != 3 {
		t.Errorf("expected K 3, found %d", agi.K)
	}
	if len(agi.Entries) != 3 {
		t.Errorf("expected 3 entries, found %d", len(agi.Entries))
	}
	if len(agi.BranchNames) != 7 || len(agi.ProportionNames) != 1 {
		t.Errorf("unexpected names %v, %v", agi.BranchNames, agi.ProportionNames)
	}

	args := agi.Args()
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "p"} {
		if _, ok := args[name]; !ok {
			t.Errorf("missing argument %q", name)
		}
	}
}

func TestParseAGIDropsUnusedNames(t *testing.T) {
	text := `a b unused
p
2
a + p * b
`
	agi, err := ParseAGI(strings.NewReader(text))
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range agi.BranchNames {
		if name == "unused" {
			t.Error("unused declaration was kept")
		}
	}
}

func TestParseAGIErrors(t *testing.T) {
	testCases := []struct {
		name string
		text string
	}{
		{name: "duplicate names", text: "a b\na\n2\na + b\n"},
		{name: "undefined variable", text: "a\np\n2\na + x\n"},
		{name: "k too small", text: "a\np\n1\na\n"},
		{name: "missing entries", text: "a\np\n3\na\na\n"},
		{name: "invalid name", text: "a 1b\np\n2\na + p\n"},
		{name: "trailing content", text: "a\np\n2\na + p\na\n"},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			if _, err := ParseAGI(strings.NewReader(test.text)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
