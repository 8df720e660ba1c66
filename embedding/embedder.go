// Package embedding wraps the external embedding provider. Everything
// persisted with a vector goes through here, so failures are loud: there
// is no zero-vector fallback, as that would corrupt similarity rankings.
package embedding

import (
	"context"
	"strings"

	"github.com/pensionlab/guidancecore/errors"
)

type (
	// Embedder converts texts to fixed-dimension float vectors. The
	// dimension is stable per model version only.
	Embedder interface {
		Embed(ctx context.Context, texts ...string) ([][]float32, error)
		Dimension() int
	}
)

// validateInputs rejects empty or blank texts before they reach the
// provider. A blank text is a caller bug, not a transient failure.
func validateInputs(texts []string) error {
	if len(texts) == 0 {
		return errors.Wrap(errors.ErrInvalidArgument, "no texts to embed")
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return errors.Wrapf(errors.ErrInvalidArgument, "text at index %d is empty", i)
		}
	}
	return nil
}
