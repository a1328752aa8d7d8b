// Package score wraps an external content-classification service as an
// opaque scoring function: content in, probability of abusive content out.
// Classification internals are out of scope for the engine.
package score

import (
	"context"
)

// Client scores content, returning a probability in [0, 1].
type Client interface {
	ScoreText(ctx context.Context, text string) (float64, error)
	ScoreMediaURL(ctx context.Context, url string) (float64, error)
}
