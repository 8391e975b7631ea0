package retrieval

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/quillback/quill/pkg/log"
	"github.com/quillback/quill/pkg/metrics"
	"github.com/quillback/quill/pkg/types"
)

// Reranker reorders fused candidates before truncation to top_k
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []types.ScoredChunk) []types.ScoredChunk
}

// NopReranker keeps the fused order
type NopReranker struct{}

func (NopReranker) Rerank(_ context.Context, _ string, candidates []types.ScoredChunk) []types.ScoredChunk {
	return candidates
}

// HeuristicReranker blends the fusion score with lexical overlap between
// query and chunk, lightly penalizing very long chunks and favoring chunks
// from newer documents. It needs no model call and is deterministic.
type HeuristicReranker struct{}

func (HeuristicReranker) Rerank(_ context.Context, query string, candidates []types.ScoredChunk) []types.ScoredChunk {
	terms := queryTerms(query)
	if len(terms) == 0 || len(candidates) == 0 {
		return candidates
	}

	out := make([]types.ScoredChunk, len(candidates))
	copy(out, candidates)

	now := time.Now()
	for i := range out {
		overlap := termOverlap(terms, out[i].Content)
		length := float64(len(out[i].Content))
		// longer chunks dilute relevance per character
		lengthPenalty := 1.0 / (1.0 + math.Log1p(length/900))
		out[i].Score = out[i].Score * (1.0 + overlap) * lengthPenalty *
			recencyBonus(now.Sub(out[i].DocumentCreatedAt))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].DocumentID != out[j].DocumentID {
			return out[i].DocumentID.String() < out[j].DocumentID.String()
		}
		return out[i].ChunkIndex < out[j].ChunkIndex
	})
	return out
}

// ModelScorer scores candidates with an external model
type ModelScorer interface {
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
}

// ModelReranker calls an external scoring model, falling back to the fused
// order when the call fails.
type ModelReranker struct {
	scorer ModelScorer
}

func NewModelReranker(scorer ModelScorer) *ModelReranker {
	return &ModelReranker{scorer: scorer}
}

func (m *ModelReranker) Rerank(ctx context.Context, query string, candidates []types.ScoredChunk) []types.ScoredChunk {
	if len(candidates) == 0 {
		return candidates
	}
	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Content
	}

	scores, err := m.scorer.Score(ctx, query, texts)
	if err != nil || len(scores) != len(candidates) {
		metrics.RetrievalFallbackTotal.WithLabelValues("rerank").Inc()
		log.WithComponent("retrieval").Warn().Err(err).
			Msg("model rerank failed, keeping fused order")
		return candidates
	}

	out := make([]types.ScoredChunk, len(candidates))
	copy(out, candidates)
	for i := range out {
		out[i].Score = scores[i]
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].DocumentID != out[j].DocumentID {
			return out[i].DocumentID.String() < out[j].DocumentID.String()
		}
		return out[i].ChunkIndex < out[j].ChunkIndex
	})
	return out
}

// recencyBonus favors chunks from newer documents, decaying to neutral over
// roughly a year. An unknown creation time reads as old and gets no bonus.
func recencyBonus(age time.Duration) float64 {
	days := age.Hours() / 24
	if days < 0 {
		days = 0
	}
	return 1.0 + 0.2*math.Exp(-days/180)
}

func queryTerms(query string) map[string]bool {
	terms := make(map[string]bool)
	for _, f := range strings.Fields(strings.ToLower(query)) {
		f = strings.Trim(f, ".,;:!?\"'()")
		if len(f) >= 3 {
			terms[f] = true
		}
	}
	return terms
}

func termOverlap(terms map[string]bool, content string) float64 {
	lc := strings.ToLower(content)
	var hits int
	for t := range terms {
		if strings.Contains(lc, t) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}
