package embed

import (
	"context"
)

// Embedder turns text into fixed-dimension vectors. Implementations must
// return one vector per input, in order.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Model identifies the provider model, used in cache keys
	Model() string
}
