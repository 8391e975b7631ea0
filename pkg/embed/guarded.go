package embed

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/quillback/quill/pkg/log"
	"github.com/quillback/quill/pkg/metrics"
	"github.com/quillback/quill/pkg/retry"
)

// GuardedEmbedder wraps an Embedder with a token-bucket rate limit and a
// circuit breaker. When a batch call fails it degrades to per-text calls so
// one poisoned input cannot sink the whole batch.
type GuardedEmbedder struct {
	inner   Embedder
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

var _ Embedder = (*GuardedEmbedder)(nil)

// NewGuardedEmbedder builds the guard. rps bounds provider calls per second;
// burst allows short spikes.
func NewGuardedEmbedder(inner Embedder, rps float64, burst int) *GuardedEmbedder {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "embeddings",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithComponent("embed").Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})
	return &GuardedEmbedder{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		breaker: breaker,
	}
}

func (g *GuardedEmbedder) Model() string { return g.inner.Model() }

func (g *GuardedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	out, err := g.call(ctx, texts)
	if err == nil {
		metrics.EmbeddingBatchesTotal.WithLabelValues("ok").Inc()
		return out, nil
	}
	if len(texts) == 1 || !retry.IsTransient(err) {
		metrics.EmbeddingBatchesTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	// Batch failed transiently: degrade to singles so partial progress is
	// possible and the failing input is isolated.
	log.WithComponent("embed").Warn().Err(err).Int("batch", len(texts)).
		Msg("batch embedding failed, degrading to single calls")
	metrics.EmbeddingBatchesTotal.WithLabelValues("degraded").Inc()

	out = make([][]float32, len(texts))
	for i, text := range texts {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		single, err := g.call(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		out[i] = single[0]
	}
	return out, nil
}

func (g *GuardedEmbedder) call(ctx context.Context, texts []string) ([][]float32, error) {
	res, err := g.breaker.Execute(func() (interface{}, error) {
		return g.inner.EmbedBatch(ctx, texts)
	})
	if err != nil {
		return nil, err
	}
	return res.([][]float32), nil
}
