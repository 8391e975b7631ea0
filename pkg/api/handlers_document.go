package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quillback/quill/pkg/document"
	"github.com/quillback/quill/pkg/errdefs"
	"github.com/quillback/quill/pkg/store"
	"github.com/quillback/quill/pkg/types"
)

// documentResponse is the wire form of a document
type documentResponse struct {
	ID           uuid.UUID  `json:"id"`
	WorkspaceID  uuid.UUID  `json:"workspace_id"`
	Title        string     `json:"title"`
	Source       string     `json:"source,omitempty"`
	MimeType     string     `json:"mime_type"`
	Status       string     `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	Tags         []string   `json:"tags,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

func toDocumentResponse(d *types.Document) documentResponse {
	return documentResponse{
		ID:           d.ID,
		WorkspaceID:  d.WorkspaceID,
		Title:        d.Title,
		Source:       d.Source,
		MimeType:     d.MimeType,
		Status:       string(d.Status),
		ErrorMessage: d.ErrorMessage,
		Tags:         d.Tags,
		CreatedAt:    d.CreatedAt,
		DeletedAt:    d.DeletedAt,
	}
}

// uploadDocument admits a multipart upload: a "file" part plus optional
// title, source, and tags fields. Admission always returns 202; a duplicate
// of an existing live document answers with that document and the duplicate
// flag set.
func (s *Server) uploadDocument(w http.ResponseWriter, r *http.Request) {
	wsID, err := pathUUID(r, "workspaceID")
	if err != nil {
		writeProblem(w, r, err)
		return
	}

	if err := r.ParseMultipartForm(1 << 20); err != nil {
		writeProblem(w, r, errdefs.BadRequest("expected multipart form upload"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeProblem(w, r, errdefs.BadRequest("missing file part"))
		return
	}
	defer func() { _ = file.Close() }()

	title := r.FormValue("title")
	if title == "" {
		title = header.Filename
	}
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	var tags []string
	if raw := r.FormValue("tags"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}

	res, err := s.documents.Admit(r.Context(), principalFrom(r.Context()), wsID, document.AdmitParams{
		Title:    title,
		Source:   r.FormValue("source"),
		MimeType: mimeType,
		Tags:     tags,
		Body:     file,
		Size:     header.Size,
	})
	if err != nil {
		writeProblem(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"document":  toDocumentResponse(res.Document),
		"duplicate": res.Duplicate,
	})
}

// ingestText admits inline text without a multipart envelope
func (s *Server) ingestText(w http.ResponseWriter, r *http.Request) {
	wsID, err := pathUUID(r, "workspaceID")
	if err != nil {
		writeProblem(w, r, err)
		return
	}

	var req struct {
		Title   string   `json:"title" validate:"required,min=1,max=500"`
		Content string   `json:"content" validate:"required"`
		Source  string   `json:"source"`
		Tags    []string `json:"tags"`
	}
	if err := s.decode(r, &req); err != nil {
		writeProblem(w, r, err)
		return
	}

	res, err := s.documents.Admit(r.Context(), principalFrom(r.Context()), wsID, document.AdmitParams{
		Title:    req.Title,
		Source:   req.Source,
		MimeType: "text/plain",
		Tags:     req.Tags,
		Body:     strings.NewReader(req.Content),
		Size:     int64(len(req.Content)),
	})
	if err != nil {
		writeProblem(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"document":  toDocumentResponse(res.Document),
		"duplicate": res.Duplicate,
	})
}

func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	wsID, err := pathUUID(r, "workspaceID")
	if err != nil {
		writeProblem(w, r, err)
		return
	}

	q := r.URL.Query()
	limit, offset := pageQuery(q)
	filter := store.DocumentFilter{
		Status:         types.DocumentStatus(q.Get("status")),
		Tag:            q.Get("tag"),
		TitleQuery:     q.Get("q"),
		IncludeDeleted: q.Get("include_deleted") == "true",
		Limit:          limit,
		Offset:         offset,
	}

	docs, err := s.documents.List(r.Context(), principalFrom(r.Context()), wsID, filter)
	if err != nil {
		writeProblem(w, r, err)
		return
	}

	out := make([]documentResponse, len(docs))
	for i, d := range docs {
		out[i] = toDocumentResponse(d)
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": out})
}

func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	wsID, docID, err := docPath(r)
	if err != nil {
		writeProblem(w, r, err)
		return
	}
	doc, err := s.documents.Get(r.Context(), principalFrom(r.Context()), wsID, docID)
	if err != nil {
		writeProblem(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDocumentResponse(doc))
}

func (s *Server) reprocessDocument(w http.ResponseWriter, r *http.Request) {
	wsID, docID, err := docPath(r)
	if err != nil {
		writeProblem(w, r, err)
		return
	}
	doc, err := s.documents.Reprocess(r.Context(), principalFrom(r.Context()), wsID, docID)
	if err != nil {
		writeProblem(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, toDocumentResponse(doc))
}

func (s *Server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	wsID, docID, err := docPath(r)
	if err != nil {
		writeProblem(w, r, err)
		return
	}
	if err := s.documents.Delete(r.Context(), principalFrom(r.Context()), wsID, docID); err != nil {
		writeProblem(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": docID, "deleted": true})
}

func docPath(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	wsID, err := pathUUID(r, "workspaceID")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	docID, err := pathUUID(r, "documentID")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return wsID, docID, nil
}
