package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillback/quill/pkg/embed"
)

func TestEmbeddingScorerRanksIdenticalTextHighest(t *testing.T) {
	s := NewEmbeddingScorer(embed.NewFakeEmbedder())

	scores, err := s.Score(context.Background(), "vacation policy", []string{
		"vacation policy",
		"completely unrelated text about databases",
	})
	require.NoError(t, err)
	require.Len(t, scores, 2)

	assert.InDelta(t, 1.0, scores[0], 1e-6, "identical text scores as cosine 1")
	assert.Greater(t, scores[0], scores[1])
}

func TestCosineDegenerateInputs(t *testing.T) {
	assert.Equal(t, 0.0, cosine(nil, nil))
	assert.Equal(t, 0.0, cosine([]float32{1, 0}, []float32{0}))
	assert.Equal(t, 0.0, cosine([]float32{0, 0}, []float32{1, 1}))
}
