package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillback/quill/pkg/embed"
	"github.com/quillback/quill/pkg/store"
	"github.com/quillback/quill/pkg/types"
)

func seedWorkspace(t *testing.T, st *store.MockStore, contents []string) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	owner := &types.User{ID: uuid.New(), Email: uuid.NewString() + "@example.com", Role: types.RoleEmployee, Active: true}
	require.NoError(t, st.CreateUser(ctx, owner))

	ws := &types.Workspace{
		ID: uuid.New(), Name: uuid.NewString(), OwnerUserID: owner.ID,
		Visibility: types.VisibilityPrivate, FTSLanguage: "simple",
	}
	require.NoError(t, st.CreateWorkspace(ctx, ws))

	doc := &types.Document{
		ID: uuid.New(), WorkspaceID: ws.ID, Title: "doc-" + ws.Name,
		MimeType: "text/plain", Status: types.DocumentStatusPending,
		ContentHash: uuid.NewString(), UploadedByUserID: owner.ID,
	}
	require.NoError(t, st.CreateDocument(ctx, doc))

	embedder := embed.NewFakeEmbedder()
	chunks := make([]*types.Chunk, len(contents))
	for i, content := range contents {
		vecs, err := embedder.EmbedBatch(ctx, []string{content})
		require.NoError(t, err)
		chunks[i] = &types.Chunk{
			ID: uuid.New(), DocumentID: doc.ID, ChunkIndex: i,
			Content: content, Embedding: vecs[0],
		}
	}
	require.NoError(t, st.PersistChunks(ctx, doc.ID, chunks, nil))
	return ws.ID
}

func TestRetrieveReturnsWorkspaceChunks(t *testing.T) {
	st := store.NewMockStore()
	wsID := seedWorkspace(t, st, []string{
		"the vacation policy grants twenty days",
		"expense reports are due monthly",
	})

	r := NewRetriever(st, embed.NewFakeEmbedder(), nil)
	results, err := r.Retrieve(context.Background(), wsID, "simple", "vacation policy", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, sc := range results {
		assert.Equal(t, wsID, sc.WorkspaceID)
	}
}

// Results must never leak across workspaces, even for identical content.
func TestRetrieveTenantIsolation(t *testing.T) {
	st := store.NewMockStore()
	contents := []string{"the secret launch plan is codenamed aurora"}
	wsA := seedWorkspace(t, st, contents)
	wsB := seedWorkspace(t, st, contents)

	r := NewRetriever(st, embed.NewFakeEmbedder(), nil)

	resultsA, err := r.Retrieve(context.Background(), wsA, "simple", "launch plan", 10)
	require.NoError(t, err)
	require.NotEmpty(t, resultsA)
	for _, sc := range resultsA {
		assert.Equal(t, wsA, sc.WorkspaceID)
		assert.NotEqual(t, wsB, sc.WorkspaceID)
	}
}

func TestRetrieveTopKLimit(t *testing.T) {
	st := store.NewMockStore()
	contents := make([]string, 30)
	for i := range contents {
		contents[i] = "informe trimestral numero " + uuid.NewString()
	}
	wsID := seedWorkspace(t, st, contents)

	r := NewRetriever(st, embed.NewFakeEmbedder(), nil)
	results, err := r.Retrieve(context.Background(), wsID, "simple", "informe trimestral", 3)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), 3)
}

// brokenSparse fails the sparse channel only
type brokenSparse struct {
	*store.MockStore
}

func (b brokenSparse) SparseSearch(context.Context, uuid.UUID, string, string, int) ([]types.ScoredChunk, error) {
	return nil, errors.New("fts exploded")
}

func TestRetrieveSparseFallback(t *testing.T) {
	st := store.NewMockStore()
	wsID := seedWorkspace(t, st, []string{"contenido del manual de empleados"})

	r := NewRetriever(brokenSparse{st}, embed.NewFakeEmbedder(), nil)
	results, err := r.Retrieve(context.Background(), wsID, "simple", "manual de empleados", 5)
	require.NoError(t, err, "sparse failure must not fail the query")
	assert.NotEmpty(t, results, "dense results still flow")
}

// brokenDense fails the required channel
type brokenDense struct {
	*store.MockStore
}

func (b brokenDense) DenseSearch(context.Context, uuid.UUID, []float32, int) ([]types.ScoredChunk, error) {
	return nil, errors.New("vector index down")
}

func TestRetrieveDenseFailureIsFatal(t *testing.T) {
	st := store.NewMockStore()
	wsID := seedWorkspace(t, st, []string{"cualquier contenido"})

	r := NewRetriever(brokenDense{st}, embed.NewFakeEmbedder(), nil)
	_, err := r.Retrieve(context.Background(), wsID, "simple", "contenido", 5)
	assert.Error(t, err)
}

func TestClampTopK(t *testing.T) {
	assert.Equal(t, DefaultTopK, ClampTopK(0))
	assert.Equal(t, 1, ClampTopK(-7))
	assert.Equal(t, 10, ClampTopK(10))
	assert.Equal(t, MaxTopK, ClampTopK(500))
}

func TestFetchK(t *testing.T) {
	assert.Equal(t, 20, fetchK(1))
	assert.Equal(t, 20, fetchK(5))
	assert.Equal(t, 40, fetchK(10))
}
