package document

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/quillback/quill/pkg/config"
	"github.com/quillback/quill/pkg/errdefs"
	"github.com/quillback/quill/pkg/ingest"
	"github.com/quillback/quill/pkg/log"
	"github.com/quillback/quill/pkg/metrics"
	"github.com/quillback/quill/pkg/objstore"
	"github.com/quillback/quill/pkg/queue"
	"github.com/quillback/quill/pkg/store"
	"github.com/quillback/quill/pkg/types"
	"github.com/quillback/quill/pkg/workspace"
)

// Lifecycle manages document admission, reprocessing, and deletion inside a
// workspace. Authorization is delegated to the workspace registry.
type Lifecycle struct {
	store      store.Store
	objects    objstore.ObjectStore
	queue      queue.Queue
	registry   *workspace.Registry
	extractors *ingest.ExtractorRegistry
	cfg        *config.Config
}

func NewLifecycle(st store.Store, objects objstore.ObjectStore, q queue.Queue, registry *workspace.Registry, extractors *ingest.ExtractorRegistry, cfg *config.Config) *Lifecycle {
	return &Lifecycle{
		store:      st,
		objects:    objects,
		queue:      q,
		registry:   registry,
		extractors: extractors,
		cfg:        cfg,
	}
}

// AdmitParams describes one upload
type AdmitParams struct {
	Title    string
	Source   string
	MimeType string
	Tags     []string
	Body     io.Reader
	Size     int64
}

// AdmitResult reports the admitted document and whether it was a duplicate
// of an existing live document.
type AdmitResult struct {
	Document  *types.Document
	Duplicate bool
}

// Admit validates and stores an upload, then enqueues ingestion. Content
// identical to an existing live document short-circuits to that document
// instead of creating a second copy.
func (l *Lifecycle) Admit(ctx context.Context, p types.Principal, workspaceID uuid.UUID, params AdmitParams) (*AdmitResult, error) {
	ws, err := l.registry.AuthorizeWrite(ctx, p, workspaceID)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, errdefs.BadRequest("document title is required")
	}
	if !l.extractors.Supported(params.MimeType) {
		return nil, errdefs.UnsupportedMedia(fmt.Sprintf("content type %q is not supported", params.MimeType))
	}
	if params.Size > l.cfg.MaxUploadBytes {
		return nil, errdefs.PayloadTooLarge(fmt.Sprintf("document exceeds the %d byte limit", l.cfg.MaxUploadBytes))
	}

	// Text is buffered because normalization needs the whole content; binary
	// payloads hash incrementally through a disk spool instead. Size may be
	// unknown (streamed); both paths read one byte past the limit to catch
	// oversized bodies either way.
	var (
		payload io.Reader
		size    int64
		hash    string
	)
	if isText(params.MimeType) {
		data, err := io.ReadAll(io.LimitReader(params.Body, l.cfg.MaxUploadBytes+1))
		if err != nil {
			return nil, errdefs.Internal("failed to read upload", err)
		}
		if int64(len(data)) > l.cfg.MaxUploadBytes {
			return nil, errdefs.PayloadTooLarge(fmt.Sprintf("document exceeds the %d byte limit", l.cfg.MaxUploadBytes))
		}
		if len(data) == 0 {
			return nil, errdefs.BadRequest("document body is empty")
		}
		payload = bytes.NewReader(data)
		size = int64(len(data))
		hash = ContentHash(ws.ID, params.MimeType, data)
	} else {
		spool, n, sum, err := l.spoolBinary(ws.ID, params.Body)
		if err != nil {
			return nil, err
		}
		defer discardSpool(spool)
		payload, size, hash = spool, n, sum
	}

	if existing, err := l.store.GetDocumentByHash(ctx, ws.ID, hash); err == nil {
		metrics.DedupHitsTotal.Inc()
		return &AdmitResult{Document: existing, Duplicate: true}, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, errdefs.Internal("failed to check for duplicates", err)
	}

	doc := &types.Document{
		ID:               uuid.New(),
		WorkspaceID:      ws.ID,
		Title:            title,
		Source:           params.Source,
		MimeType:         params.MimeType,
		StorageKey:       fmt.Sprintf("workspaces/%s/documents/%s", ws.ID, uuid.New()),
		Status:           types.DocumentStatusPending,
		Tags:             params.Tags,
		ContentHash:      hash,
		UploadedByUserID: p.UserID,
	}

	if err := l.objects.Put(ctx, doc.StorageKey, payload, size, params.MimeType); err != nil {
		return nil, errdefs.Internal("failed to store document payload", err)
	}

	if err := l.store.CreateDocument(ctx, doc); err != nil {
		if errors.Is(err, store.ErrUniqueViolation) {
			// Lost an admission race: the winner's row is the document.
			winner, gerr := l.store.GetDocumentByHash(ctx, ws.ID, hash)
			if gerr != nil {
				return nil, errdefs.Internal("failed to resolve duplicate document", gerr)
			}
			_ = l.objects.Delete(ctx, doc.StorageKey)
			metrics.DedupHitsTotal.Inc()
			return &AdmitResult{Document: winner, Duplicate: true}, nil
		}
		_ = l.objects.Delete(ctx, doc.StorageKey)
		return nil, errdefs.Internal("failed to create document", err)
	}

	l.audit(ctx, p, types.AuditDocumentCreate, doc.ID, map[string]string{"title": doc.Title})

	if err := l.queue.Enqueue(ctx, &types.IngestJob{
		DocumentID:  doc.ID,
		WorkspaceID: ws.ID,
		Attempt:     1,
	}); err != nil {
		// The document stays PENDING; a reprocess can requeue it.
		log.WithComponent("document").Error().Err(err).
			Str("document_id", doc.ID.String()).
			Msg("failed to enqueue ingestion job")
	}

	return &AdmitResult{Document: doc}, nil
}

// Get returns one document in the workspace
func (l *Lifecycle) Get(ctx context.Context, p types.Principal, workspaceID, id uuid.UUID) (*types.Document, error) {
	if _, err := l.registry.AuthorizeRead(ctx, p, workspaceID); err != nil {
		return nil, err
	}
	doc, err := l.store.GetDocument(ctx, workspaceID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errdefs.NotFound("document not found")
		}
		return nil, errdefs.Internal("failed to load document", err)
	}
	if doc.Deleted() && !p.IsAdmin() {
		return nil, errdefs.NotFound("document not found")
	}
	return doc, nil
}

// List returns the workspace's documents under the given filter
func (l *Lifecycle) List(ctx context.Context, p types.Principal, workspaceID uuid.UUID, filter store.DocumentFilter) ([]*types.Document, error) {
	if _, err := l.registry.AuthorizeRead(ctx, p, workspaceID); err != nil {
		return nil, err
	}
	if filter.IncludeDeleted && !p.IsAdmin() {
		filter.IncludeDeleted = false
	}
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	docs, err := l.store.ListDocuments(ctx, workspaceID, filter)
	if err != nil {
		return nil, errdefs.Internal("failed to list documents", err)
	}
	return docs, nil
}

// Reprocess puts a READY or FAILED document back through ingestion. A
// document currently PROCESSING conflicts; PENDING is a no-op.
func (l *Lifecycle) Reprocess(ctx context.Context, p types.Principal, workspaceID, id uuid.UUID) (*types.Document, error) {
	if _, err := l.registry.AuthorizeWrite(ctx, p, workspaceID); err != nil {
		return nil, err
	}
	doc, err := l.store.GetDocument(ctx, workspaceID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errdefs.NotFound("document not found")
		}
		return nil, errdefs.Internal("failed to load document", err)
	}
	if doc.Deleted() {
		return nil, errdefs.NotFound("document not found")
	}

	switch doc.Status {
	case types.DocumentStatusPending:
		return doc, nil
	case types.DocumentStatusProcessing:
		return nil, errdefs.ConflictState("document is being processed")
	}

	if err := l.store.ResetDocumentForReprocess(ctx, workspaceID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errdefs.ConflictState("document state changed, retry")
		}
		return nil, errdefs.Internal("failed to reset document", err)
	}
	doc.Status = types.DocumentStatusPending
	doc.ErrorMessage = ""

	l.audit(ctx, p, types.AuditDocumentReprocess, id, nil)

	if err := l.queue.Enqueue(ctx, &types.IngestJob{
		DocumentID:  id,
		WorkspaceID: workspaceID,
		Attempt:     1,
	}); err != nil {
		log.WithComponent("document").Error().Err(err).
			Str("document_id", id.String()).
			Msg("failed to enqueue reprocess job")
	}
	return doc, nil
}

// Delete soft-deletes a document. Its chunks disappear from retrieval
// immediately; deleting twice is not-found.
func (l *Lifecycle) Delete(ctx context.Context, p types.Principal, workspaceID, id uuid.UUID) error {
	if _, err := l.registry.AuthorizeWrite(ctx, p, workspaceID); err != nil {
		return err
	}
	if err := l.store.SoftDeleteDocument(ctx, workspaceID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errdefs.NotFound("document not found")
		}
		return errdefs.Internal("failed to delete document", err)
	}
	l.audit(ctx, p, types.AuditDocumentDelete, id, nil)
	return nil
}

// spoolBinary streams the body to a temp file while feeding the dedup hash,
// so binary payloads are never held in memory. The returned file is rewound
// and ready to upload; the caller discards it.
func (l *Lifecycle) spoolBinary(workspaceID uuid.UUID, body io.Reader) (*os.File, int64, string, error) {
	f, err := os.CreateTemp("", "quill-upload-*")
	if err != nil {
		return nil, 0, "", errdefs.Internal("failed to spool upload", err)
	}

	h := sha256.New()
	h.Write([]byte(workspaceID.String()))
	h.Write([]byte(":"))

	n, err := io.Copy(io.MultiWriter(f, h), io.LimitReader(body, l.cfg.MaxUploadBytes+1))
	if err != nil {
		discardSpool(f)
		return nil, 0, "", errdefs.Internal("failed to read upload", err)
	}
	if n > l.cfg.MaxUploadBytes {
		discardSpool(f)
		return nil, 0, "", errdefs.PayloadTooLarge(fmt.Sprintf("document exceeds the %d byte limit", l.cfg.MaxUploadBytes))
	}
	if n == 0 {
		discardSpool(f)
		return nil, 0, "", errdefs.BadRequest("document body is empty")
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		discardSpool(f)
		return nil, 0, "", errdefs.Internal("failed to rewind upload spool", err)
	}
	return f, n, hex.EncodeToString(h.Sum(nil)), nil
}

func discardSpool(f *os.File) {
	_ = f.Close()
	_ = os.Remove(f.Name())
}

func (l *Lifecycle) audit(ctx context.Context, p types.Principal, action string, target uuid.UUID, md map[string]string) {
	event := &types.AuditEvent{Actor: p.UserID, Action: action, TargetID: target, Metadata: md}
	if err := l.store.AppendAudit(ctx, event); err != nil {
		log.WithComponent("document").Error().Err(err).
			Str("action", action).Msg("failed to append audit event")
	}
}

// ContentHash derives the dedup key: sha256 over the workspace id and the
// normalized content, so identical text under different whitespace or
// Unicode forms collides. Binary payloads hash as-is.
func ContentHash(workspaceID uuid.UUID, mimeType string, data []byte) string {
	payload := data
	if isText(mimeType) && utf8.Valid(data) {
		payload = []byte(normalizeText(string(data)))
	}
	h := sha256.New()
	h.Write([]byte(workspaceID.String()))
	h.Write([]byte(":"))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// normalizeText applies NFC then collapses runs of whitespace to one space
func normalizeText(s string) string {
	s = norm.NFC.String(s)
	return strings.Join(strings.Fields(s), " ")
}

func isText(mimeType string) bool {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "text/")
}
