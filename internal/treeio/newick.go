// Package treeio connects covariance matrices and phylogenies: it reads
// and writes Newick trees, maps a rooted tree onto the cells of a
// covariance matrix by shared-branch paths, and rebuilds trees from
// covariance matrices by neighbor joining.
package treeio

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/evolbioinfo/gotree/io/newick"
	"github.com/evolbioinfo/gotree/tree"
)

var (
	ErrInvalidFile   = errors.New("invalid file")
	ErrInvalidFormat = errors.New("invalid format")
)

// ReadNewickFile reads and parses a file holding exactly one Newick tree.
func ReadNewickFile(path string) (*tree.Tree, error) {
	treBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading tree file: %w", err)
	}
	treBytes = bytes.TrimSpace(treBytes)
	if bytes.Count(treBytes, []byte{'\n'}) != 0 || len(treBytes) == 0 {
		return nil, fmt.Errorf("%w, there should be exactly one newick tree in tree file %s",
			ErrInvalidFile, path)
	}
	tre, err := newick.NewParser(bytes.NewReader(treBytes)).Parse()
	if err != nil {
		return nil, fmt.Errorf("%w, error parsing tree newick string from %s: %s",
			ErrInvalidFormat, path, err.Error())
	}
	return tre, nil
}

// WriteNewickFile writes the tree in Newick format, removing the partial
// file if the write fails.
func WriteNewickFile(t *tree.Tree, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create tree file %s: %w", path, err)
	}
	if _, err := fmt.Fprintln(file, t.Newick()); err != nil {
		file.Close()
		os.Remove(path)
		return fmt.Errorf("error writing tree %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("error writing tree %s: %w", path, err)
	}
	return nil
}
