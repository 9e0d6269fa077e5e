package exprs

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

var ErrInvalidAGI = errors.New("invalid admixture graph input")

// AGI is a parsed admixture graph input file: branch-length variable
// names, admixture proportion variable names in (0, 1), the number of
// populations, and K(K-1)/2 expressions giving the lower triangle of the
// covariance matrix row by row. Declared names never used by an expression
// are dropped.
type AGI struct {
	BranchNames     []string
	ProportionNames []string
	K               int
	Entries         []*Expr
}

// ReadAGI parses an admixture graph input file.
func ReadAGI(path string) (*AGI, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening admixture graph input: %w", err)
	}
	defer file.Close()
	agi, err := ParseAGI(file)
	if err != nil {
		return nil, fmt.Errorf("error reading admixture graph input %s: %w", path, err)
	}
	return agi, nil
}

// ParseAGI parses admixture graph input. '#' introduces a line comment;
// blank lines separate nothing in particular and are skipped.
func ParseAGI(r io.Reader) (*AGI, error) {
	lines := bufio.NewScanner(r)
	agi := &AGI{}

	var err error
	if agi.BranchNames, err = readNames(lines); err != nil {
		return nil, err
	}
	if agi.ProportionNames, err = readNames(lines); err != nil {
		return nil, err
	}
	if agi.K, err = readK(lines); err != nil {
		return nil, err
	}
	n := agi.K * (agi.K - 1) / 2
	for i := 0; i < n; i++ {
		line, err := readLine(lines)
		if err != nil {
			return nil, err
		}
		entry, err := Parse(line)
		if err != nil {
			return nil, err
		}
		agi.Entries = append(agi.Entries, entry)
	}
	if line, err := readLine(lines); err == nil {
		return nil, fmt.Errorf("%w, unexpected trailing content %q", ErrInvalidAGI, line)
	}

	// Names must be unique across both sets, and every variable an
	// expression mentions must be declared.
	defined := make(map[string]struct{})
	for _, names := range [][]string{agi.BranchNames, agi.ProportionNames} {
		for _, name := range names {
			if _, dup := defined[name]; dup {
				return nil, fmt.Errorf("%w, duplicate variable name %q", ErrInvalidAGI, name)
			}
			defined[name] = struct{}{}
		}
	}
	used := make(map[string]struct{})
	for _, entry := range agi.Entries {
		for name := range entry.Vars() {
			if _, ok := defined[name]; !ok {
				return nil, fmt.Errorf("%w, %w %q in expression", ErrInvalidAGI,
					ErrUndefinedVariable, name)
			}
			used[name] = struct{}{}
		}
	}
	agi.BranchNames = keepUsed(agi.BranchNames, used)
	agi.ProportionNames = keepUsed(agi.ProportionNames, used)
	return agi, nil
}

// Args returns a fresh variable table with every used variable set to
// zero.
func (agi *AGI) Args() map[string]float64 {
	args := make(map[string]float64)
	for _, name := range agi.BranchNames {
		args[name] = 0
	}
	for _, name := range agi.ProportionNames {
		args[name] = 0
	}
	return args
}

func keepUsed(names []string, used map[string]struct{}) []string {
	kept := names[:0]
	for _, name := range names {
		if _, ok := used[name]; ok {
			kept = append(kept, name)
		}
	}
	return kept
}

// readLine returns the next line that is neither blank nor a comment.
func readLine(lines *bufio.Scanner) (string, error) {
	for lines.Scan() {
		line := strings.TrimSpace(lines.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return line, nil
	}
	if err := lines.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("%w, unexpected end of file", ErrInvalidAGI)
}

func readNames(lines *bufio.Scanner) ([]string, error) {
	line, err := readLine(lines)
	if err != nil {
		return nil, err
	}
	names := strings.Fields(line)
	for _, name := range names {
		if !ValidName(name) {
			return nil, fmt.Errorf("%w, invalid name %q", ErrInvalidAGI, name)
		}
	}
	return names, nil
}

func readK(lines *bufio.Scanner) (int, error) {
	line, err := readLine(lines)
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(line)
	if len(fields) != 1 {
		return 0, fmt.Errorf("%w, invalid population count line %q", ErrInvalidAGI, line)
	}
	k, err := strconv.Atoi(fields[0])
	if err != nil || k < 2 {
		return 0, fmt.Errorf("%w, invalid population count %q", ErrInvalidAGI, fields[0])
	}
	return k, nil
}
