package retrieval

import (
	"sort"

	"github.com/google/uuid"

	"github.com/quillback/quill/pkg/types"
)

// rrfK dampens the contribution of lower-ranked results
const rrfK = 60

// FuseRRF merges ranked result lists with reciprocal rank fusion using the
// standard damping constant. A chunk appearing in several lists accumulates
// 1/(k+rank) per list and is marked as coming from both channels. Ties break
// on (document id, chunk index) so output order is stable across runs.
func FuseRRF(lists ...[]types.ScoredChunk) []types.ScoredChunk {
	return FuseRRFWithK(rrfK, lists...)
}

// FuseRRFWithK is FuseRRF with an explicit damping constant
func FuseRRFWithK(k int, lists ...[]types.ScoredChunk) []types.ScoredChunk {
	if k <= 0 {
		k = rrfK
	}
	type entry struct {
		chunk   types.ScoredChunk
		score   float64
		sources map[types.RetrievalSource]bool
	}
	merged := make(map[uuid.UUID]*entry)

	for _, list := range lists {
		for rank, sc := range list {
			e, ok := merged[sc.ChunkID]
			if !ok {
				e = &entry{chunk: sc, sources: make(map[types.RetrievalSource]bool)}
				merged[sc.ChunkID] = e
			}
			e.score += 1.0 / float64(k+rank+1)
			e.sources[sc.Source] = true
		}
	}

	out := make([]types.ScoredChunk, 0, len(merged))
	for _, e := range merged {
		sc := e.chunk
		sc.Score = e.score
		if e.sources[types.RetrievalSourceDense] && e.sources[types.RetrievalSourceSparse] {
			sc.Source = types.RetrievalSourceBoth
		}
		out = append(out, sc)
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
