package retrieval

import (
	"context"
	"math"

	"github.com/quillback/quill/pkg/embed"
)

// EmbeddingScorer implements ModelScorer by re-embedding the candidates and
// scoring each against the query by cosine similarity. It rides the same
// embedding cache as ingestion, so chunks that were just retrieved are
// usually warm.
type EmbeddingScorer struct {
	embedder embed.Embedder
}

var _ ModelScorer = (*EmbeddingScorer)(nil)

func NewEmbeddingScorer(embedder embed.Embedder) *EmbeddingScorer {
	return &EmbeddingScorer{embedder: embedder}
}

func (s *EmbeddingScorer) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	inputs := make([]string, 0, len(texts)+1)
	inputs = append(inputs, query)
	inputs = append(inputs, texts...)

	vectors, err := s.embedder.EmbedBatch(ctx, inputs)
	if err != nil {
		return nil, err
	}

	q := vectors[0]
	scores := make([]float64, len(texts))
	for i, v := range vectors[1:] {
		scores[i] = cosine(q, v)
	}
	return scores, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
