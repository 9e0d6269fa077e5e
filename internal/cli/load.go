// Package cli wires the command-line surface: one file per command, each
// parsing its flags, validating the option combination, assembling the
// inputs, and invoking the corresponding internal package.
package cli

import (
	"errors"

	"golang.org/x/sync/errgroup"

	"ohana/internal/mat"
)

var ErrUsage = errors.New("configuration error")

// loadMatrices reads several matrix files concurrently. Empty paths yield
// nil entries so optional inputs can share one call.
func loadMatrices(paths ...string) ([]*mat.Matrix, error) {
	out := make([]*mat.Matrix, len(paths))
	var group errgroup.Group
	for i, path := range paths {
		i, path := i, path
		if path == "" {
			continue
		}
		group.Go(func() error {
			m, err := mat.ReadFile(path)
			if err != nil {
				return err
			}
			out[i] = m
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
