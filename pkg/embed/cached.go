package embed

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/quillback/quill/pkg/metrics"
)

// CachedEmbedder wraps an Embedder with an in-process TTL cache keyed by
// (model, normalized text). Whitespace-only differences hit the same entry.
type CachedEmbedder struct {
	inner Embedder
	cache *expirable.LRU[string, []float32]
}

var _ Embedder = (*CachedEmbedder)(nil)

func NewCachedEmbedder(inner Embedder, size int, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{
		inner: inner,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

func (c *CachedEmbedder) Model() string { return c.inner.Model() }

func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int

	for i, text := range texts {
		if vec, ok := c.cache.Get(c.key(text)); ok {
			metrics.EmbeddingCacheHitsTotal.Inc()
			out[i] = vec
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) > 0 {
		vecs, err := c.inner.EmbedBatch(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		for j, vec := range vecs {
			out[missIdx[j]] = vec
			c.cache.Add(c.key(missTexts[j]), vec)
		}
	}
	return out, nil
}

func (c *CachedEmbedder) key(text string) string {
	return c.inner.Model() + "\x00" + strings.Join(strings.Fields(text), " ")
}
