package analysis

import "context"

// Analyzer is the external model the chainer depends on. It receives the raw
// file bytes and returns unstructured text expected to contain embedded JSON.
// Implementations may time out or return malformed output; callers treat both
// as recoverable.
type Analyzer interface {
	Analyze(ctx context.Context, data []byte, contentType string) (string, error)
}
