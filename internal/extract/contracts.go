// Package extract defines the extraction contract the worker depends on and
// its error taxonomy.
package extract

import (
	"context"
	"errors"

	"github.com/paperflow/paperflow/internal/config"
)

var (
	// ErrExtraction marks unrecoverable extraction failures, such as the
	// remote service reporting that file processing failed. Never retried.
	ErrExtraction = errors.New("extraction failed")

	// ErrRetryExhausted is returned once the retry budget for transient
	// generation failures is spent.
	ErrRetryExhausted = errors.New("extraction retries exhausted")
)

// Extractor is the interface the worker loop depends on.
type Extractor interface {
	// ProcessFile extracts structured data from the file at path according
	// to the profile's field declarations.
	ProcessFile(ctx context.Context, path string, profile *config.Profile) (map[string]any, error)
}
