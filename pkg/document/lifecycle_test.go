package document

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillback/quill/pkg/config"
	"github.com/quillback/quill/pkg/errdefs"
	"github.com/quillback/quill/pkg/ingest"
	"github.com/quillback/quill/pkg/objstore"
	"github.com/quillback/quill/pkg/queue"
	"github.com/quillback/quill/pkg/store"
	"github.com/quillback/quill/pkg/types"
	"github.com/quillback/quill/pkg/workspace"
)

type env struct {
	store      *store.MockStore
	queue      *queue.RedisQueue
	objects    *objstore.MemoryStore
	extractors *ingest.ExtractorRegistry
	lifecycle  *Lifecycle
	ws         *types.Workspace
	admin      types.Principal
	owner      types.Principal
	other      types.Principal
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := store.NewMockStore()
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	q := queue.NewRedisQueueWithClient(client)

	cfg := &config.Config{
		MaxUploadBytes:       1 << 20,
		FTSLanguageAllowlist: []string{"spanish", "english", "simple"},
		DefaultFTSLanguage:   "spanish",
	}

	admin := &types.User{ID: uuid.New(), Email: "admin@example.com", Role: types.RoleAdmin, Active: true}
	owner := &types.User{ID: uuid.New(), Email: "owner@example.com", Role: types.RoleEmployee, Active: true}
	other := &types.User{ID: uuid.New(), Email: "other@example.com", Role: types.RoleEmployee, Active: true}
	for _, u := range []*types.User{admin, owner, other} {
		require.NoError(t, st.CreateUser(ctx, u))
	}

	registry := workspace.NewRegistry(st, cfg)
	adminP := types.Principal{UserID: admin.ID, Role: types.RoleAdmin, Active: true}
	ws, err := registry.Create(ctx, adminP, workspace.CreateParams{
		Name: "docs", OwnerUserID: owner.ID,
	})
	require.NoError(t, err)

	objects := objstore.NewMemoryStore()
	extractors := ingest.NewExtractorRegistry()
	lc := NewLifecycle(st, objects, q, registry, extractors, cfg)

	return &env{
		store:      st,
		queue:      q,
		objects:    objects,
		extractors: extractors,
		lifecycle:  lc,
		ws:         ws,
		admin:      adminP,
		owner:      types.Principal{UserID: owner.ID, Role: types.RoleEmployee, Active: true},
		other:      types.Principal{UserID: other.ID, Role: types.RoleEmployee, Active: true},
	}
}

func (e *env) admit(t *testing.T, content string) *AdmitResult {
	t.Helper()
	res, err := e.lifecycle.Admit(context.Background(), e.owner, e.ws.ID, AdmitParams{
		Title:    "manual",
		MimeType: "text/plain",
		Body:     strings.NewReader(content),
		Size:     int64(len(content)),
	})
	require.NoError(t, err)
	return res
}

func TestAdmitCreatesPendingAndEnqueues(t *testing.T) {
	e := newEnv(t)
	res := e.admit(t, "el manual de vacaciones")

	assert.False(t, res.Duplicate)
	assert.Equal(t, types.DocumentStatusPending, res.Document.Status)

	job, err := e.queue.Dequeue(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, res.Document.ID, job.DocumentID)
	assert.Equal(t, e.ws.ID, job.WorkspaceID)
}

func TestAdmitDeduplicates(t *testing.T) {
	e := newEnv(t)
	first := e.admit(t, "contenido identico")
	second := e.admit(t, "contenido identico")

	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Document.ID, second.Document.ID)
}

func TestAdmitDedupNormalizesWhitespace(t *testing.T) {
	e := newEnv(t)
	first := e.admit(t, "contenido   con\nespacios")
	second := e.admit(t, "contenido con espacios")

	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Document.ID, second.Document.ID)
}

func TestAdmitAllowsSameContentAfterDelete(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	first := e.admit(t, "contenido reciclado")
	require.NoError(t, e.lifecycle.Delete(ctx, e.owner, e.ws.ID, first.Document.ID))

	second := e.admit(t, "contenido reciclado")
	assert.False(t, second.Duplicate)
	assert.NotEqual(t, first.Document.ID, second.Document.ID)
}

// stubExtractor stands in for a binary format plugin
type stubExtractor struct{}

func (stubExtractor) Extract(io.Reader) (string, error) { return "extracted text", nil }

func TestAdmitBinarySpoolsAndDeduplicates(t *testing.T) {
	e := newEnv(t)
	e.extractors.Register("application/pdf", stubExtractor{})
	ctx := context.Background()

	blob := bytes.Repeat([]byte{0x25, 0x50, 0x44, 0x46, 0x00}, 2048)
	admit := func() *AdmitResult {
		res, err := e.lifecycle.Admit(ctx, e.owner, e.ws.ID, AdmitParams{
			Title:    "report",
			MimeType: "application/pdf",
			Body:     bytes.NewReader(blob),
			Size:     int64(len(blob)),
		})
		require.NoError(t, err)
		return res
	}

	first := admit()
	assert.False(t, first.Duplicate)

	// the spooled payload round-trips intact
	rd, err := e.objects.Get(ctx, first.Document.StorageKey)
	require.NoError(t, err)
	stored, err := io.ReadAll(rd)
	require.NoError(t, err)
	assert.Equal(t, blob, stored)

	// identical binary content hashes to the same document
	second := admit()
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Document.ID, second.Document.ID)
}

func TestAdmitBinaryRejectsOversize(t *testing.T) {
	e := newEnv(t)
	e.extractors.Register("application/pdf", stubExtractor{})

	big := bytes.Repeat([]byte{1}, (1<<20)+1)
	_, err := e.lifecycle.Admit(context.Background(), e.owner, e.ws.ID, AdmitParams{
		Title:    "huge",
		MimeType: "application/pdf",
		Body:     bytes.NewReader(big),
	})
	assert.Equal(t, errdefs.CodePayloadTooLarge, errdefs.CodeOf(err))
}

func TestAdmitRejectsUnsupportedType(t *testing.T) {
	e := newEnv(t)
	_, err := e.lifecycle.Admit(context.Background(), e.owner, e.ws.ID, AdmitParams{
		Title: "slides", MimeType: "application/vnd.ms-powerpoint",
		Body: strings.NewReader("x"), Size: 1,
	})
	assert.Equal(t, errdefs.CodeUnsupportedMedia, errdefs.CodeOf(err))
}

func TestAdmitRejectsOversize(t *testing.T) {
	e := newEnv(t)
	big := strings.Repeat("x", (1<<20)+1)
	_, err := e.lifecycle.Admit(context.Background(), e.owner, e.ws.ID, AdmitParams{
		Title: "big", MimeType: "text/plain",
		Body: strings.NewReader(big), Size: int64(len(big)),
	})
	assert.Equal(t, errdefs.CodePayloadTooLarge, errdefs.CodeOf(err))
}

func TestAdmitRejectsEmptyTitleAndBody(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.lifecycle.Admit(ctx, e.owner, e.ws.ID, AdmitParams{
		Title: "  ", MimeType: "text/plain", Body: strings.NewReader("x"), Size: 1,
	})
	assert.Equal(t, errdefs.CodeBadRequest, errdefs.CodeOf(err))

	_, err = e.lifecycle.Admit(ctx, e.owner, e.ws.ID, AdmitParams{
		Title: "empty", MimeType: "text/plain", Body: strings.NewReader(""), Size: 0,
	})
	assert.Equal(t, errdefs.CodeBadRequest, errdefs.CodeOf(err))
}

func TestAdmitDeniedForStranger(t *testing.T) {
	e := newEnv(t)
	_, err := e.lifecycle.Admit(context.Background(), e.other, e.ws.ID, AdmitParams{
		Title: "doc", MimeType: "text/plain", Body: strings.NewReader("x"), Size: 1,
	})
	assert.Equal(t, errdefs.CodeNotFound, errdefs.CodeOf(err),
		"stranger must not learn the workspace exists")
}

func TestReprocessTransitions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	res := e.admit(t, "documento a reprocesar")
	docID := res.Document.ID

	// PENDING reprocess is a no-op
	doc, err := e.lifecycle.Reprocess(ctx, e.owner, e.ws.ID, docID)
	require.NoError(t, err)
	assert.Equal(t, types.DocumentStatusPending, doc.Status)

	// PROCESSING conflicts
	claimed, err := e.store.ClaimDocument(ctx, docID)
	require.NoError(t, err)
	require.True(t, claimed)
	_, err = e.lifecycle.Reprocess(ctx, e.owner, e.ws.ID, docID)
	assert.Equal(t, errdefs.CodeConflictState, errdefs.CodeOf(err))

	// FAILED goes back to PENDING
	require.NoError(t, e.store.FailDocument(ctx, docID, "boom"))
	doc, err = e.lifecycle.Reprocess(ctx, e.owner, e.ws.ID, docID)
	require.NoError(t, err)
	assert.Equal(t, types.DocumentStatusPending, doc.Status)
	assert.Empty(t, doc.ErrorMessage)
}

func TestDeleteHidesDocument(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	res := e.admit(t, "documento a borrar")

	require.NoError(t, e.lifecycle.Delete(ctx, e.owner, e.ws.ID, res.Document.ID))

	_, err := e.lifecycle.Get(ctx, e.owner, e.ws.ID, res.Document.ID)
	assert.Equal(t, errdefs.CodeNotFound, errdefs.CodeOf(err))

	// deleting twice is not-found
	err = e.lifecycle.Delete(ctx, e.owner, e.ws.ID, res.Document.ID)
	assert.Equal(t, errdefs.CodeNotFound, errdefs.CodeOf(err))
}

func TestListFilters(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.admit(t, "primer documento")
	second := e.admit(t, "segundo documento")
	require.NoError(t, e.store.FailDocument(ctx, second.Document.ID, "boom"))

	failed, err := e.lifecycle.List(ctx, e.owner, e.ws.ID, store.DocumentFilter{
		Status: types.DocumentStatusFailed,
	})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, second.Document.ID, failed[0].ID)
}

func TestContentHashStableAcrossForms(t *testing.T) {
	ws := uuid.New()
	// NFC vs NFD of "é"
	a := ContentHash(ws, "text/plain", []byte("café con leche"))
	b := ContentHash(ws, "text/plain", []byte("café  con\tleche"))
	assert.Equal(t, a, b)

	// same content in another workspace hashes differently
	c := ContentHash(uuid.New(), "text/plain", []byte("café con leche"))
	assert.NotEqual(t, a, c)
}
