package retrieval

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/quillback/quill/pkg/embed"
	"github.com/quillback/quill/pkg/log"
	"github.com/quillback/quill/pkg/metrics"
	"github.com/quillback/quill/pkg/store"
	"github.com/quillback/quill/pkg/types"
)

const (
	// DefaultTopK applies when the request leaves top_k unset
	DefaultTopK = 5
	// MaxTopK caps the requested result count
	MaxTopK = 50
	// minFetch is the floor for the per-channel candidate pool
	minFetch = 20
)

// Searcher is the slice of the store the retriever needs
type Searcher interface {
	DenseSearch(ctx context.Context, workspaceID uuid.UUID, embedding []float32, limit int) ([]types.ScoredChunk, error)
	SparseSearch(ctx context.Context, workspaceID uuid.UUID, language, query string, limit int) ([]types.ScoredChunk, error)
}

var _ Searcher = (store.Store)(nil)

// Retriever runs the hybrid dense+sparse search and fuses the results
type Retriever struct {
	searcher Searcher
	embedder embed.Embedder
	reranker Reranker
	hybrid   bool
	rrfK     int
}

// Options tunes the retriever. The zero value of RRFK keeps the standard
// damping constant.
type Options struct {
	Hybrid bool
	RRFK   int
}

func NewRetriever(searcher Searcher, embedder embed.Embedder, reranker Reranker) *Retriever {
	return NewRetrieverWithOptions(searcher, embedder, reranker, Options{Hybrid: true})
}

func NewRetrieverWithOptions(searcher Searcher, embedder embed.Embedder, reranker Reranker, opts Options) *Retriever {
	if reranker == nil {
		reranker = NopReranker{}
	}
	return &Retriever{
		searcher: searcher,
		embedder: embedder,
		reranker: reranker,
		hybrid:   opts.Hybrid,
		rrfK:     opts.RRFK,
	}
}

// ClampTopK normalizes a requested top_k into [1, MaxTopK], applying the
// default when unset.
func ClampTopK(topK int) int {
	if topK == 0 {
		return DefaultTopK
	}
	if topK < 1 {
		return 1
	}
	if topK > MaxTopK {
		return MaxTopK
	}
	return topK
}

// fetchK sizes the per-channel candidate pool so fusion has material to
// work with
func fetchK(topK int) int {
	k := topK * 4
	if k < minFetch {
		k = minFetch
	}
	return k
}

// Retrieve runs both channels in parallel and fuses with RRF. The dense
// channel is required; a sparse failure degrades to dense-only with a
// warning rather than failing the query.
func (r *Retriever) Retrieve(ctx context.Context, workspaceID uuid.UUID, language, query string, topK int) ([]types.ScoredChunk, error) {
	topK = ClampTopK(topK)
	limit := fetchK(topK)

	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.RetrievalDuration.WithLabelValues("hybrid"))
	}()

	var dense, sparse []types.ScoredChunk

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vectors, err := r.embedder.EmbedBatch(gctx, []string{query})
		if err != nil {
			return fmt.Errorf("failed to embed query: %w", err)
		}
		dense, err = r.searcher.DenseSearch(gctx, workspaceID, vectors[0], limit)
		if err != nil {
			return fmt.Errorf("dense search failed: %w", err)
		}
		return nil
	})
	if r.hybrid {
		g.Go(func() error {
			var err error
			sparse, err = r.searcher.SparseSearch(gctx, workspaceID, language, query, limit)
			if err != nil {
				// sparse is best-effort
				metrics.RetrievalFallbackTotal.WithLabelValues("sparse").Inc()
				log.WithComponent("retrieval").Warn().Err(err).
					Str("workspace_id", workspaceID.String()).
					Msg("sparse channel failed, continuing dense-only")
				sparse = nil
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := FuseRRFWithK(r.rrfK, dense, sparse)
	fused = r.reranker.Rerank(ctx, query, fused)
	if len(fused) > topK {
		fused = fused[:topK]
	}
	return fused, nil
}
