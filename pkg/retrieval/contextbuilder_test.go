package retrieval

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillback/quill/pkg/types"
)

func titled(title string, index int, content string) types.ScoredChunk {
	return types.ScoredChunk{
		ChunkID:       uuid.New(),
		DocumentID:    uuid.New(),
		DocumentTitle: title,
		ChunkIndex:    index,
		Content:       content,
	}
}

func TestBuildContextMarkers(t *testing.T) {
	built := BuildContext([]types.ScoredChunk{
		titled("Handbook", 2, "vacation rules"),
		titled("Budget", 0, "quarterly numbers"),
	}, 0)

	assert.Contains(t, built.Text, "[Source: Handbook, Part 2]\nvacation rules")
	assert.Contains(t, built.Text, "[Source: Budget, Part 0]\nquarterly numbers")
	assert.Len(t, built.Included, 2)
}

func TestBuildContextBudgetSkipsWhole(t *testing.T) {
	big := titled("Big", 0, strings.Repeat("x", 300))
	small := titled("Small", 1, "short")

	built := BuildContext([]types.ScoredChunk{big, small}, 100)

	assert.NotContains(t, built.Text, "Big", "oversized chunk is skipped, not truncated")
	assert.Contains(t, built.Text, "Small")
	require.Len(t, built.Included, 1)
	assert.Equal(t, small.ChunkID, built.Included[0].ChunkID)
}

func TestBuildContextEmpty(t *testing.T) {
	built := BuildContext(nil, 0)
	assert.Empty(t, built.Text)
	assert.Empty(t, built.Included)
}

func TestBuildContextPreservesOrder(t *testing.T) {
	chunks := []types.ScoredChunk{
		titled("A", 0, "first"),
		titled("B", 0, "second"),
		titled("C", 0, "third"),
	}
	built := BuildContext(chunks, 0)

	posA := strings.Index(built.Text, "first")
	posB := strings.Index(built.Text, "second")
	posC := strings.Index(built.Text, "third")
	assert.Less(t, posA, posB)
	assert.Less(t, posB, posC)
}
