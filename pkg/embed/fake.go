package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"

	"github.com/quillback/quill/pkg/types"
)

// FakeEmbedder produces deterministic unit vectors derived from the text's
// hash. Used in tests and when FAKE_EMBEDDINGS is set, so the full pipeline
// runs without a provider.
type FakeEmbedder struct{}

var _ Embedder = (*FakeEmbedder)(nil)

func NewFakeEmbedder() *FakeEmbedder { return &FakeEmbedder{} }

func (f *FakeEmbedder) Model() string { return "fake" }

func (f *FakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = fakeVector(text)
	}
	return out, nil
}

// fakeVector expands the sha256 of the text into a normalized vector. Equal
// texts always map to equal vectors.
func fakeVector(text string) []float32 {
	seed := sha256.Sum256([]byte(text))
	vec := make([]float32, types.EmbeddingDim)

	var norm float64
	state := seed
	for i := 0; i < types.EmbeddingDim; i++ {
		if i%8 == 0 && i > 0 {
			state = sha256.Sum256(state[:])
		}
		bits := binary.BigEndian.Uint32(state[(i%8)*4:])
		v := float32(int32(bits)) / float32(math.MaxInt32)
		vec[i] = v
		norm += float64(v) * float64(v)
	}

	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
