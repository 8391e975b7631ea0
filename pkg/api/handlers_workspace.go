package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/quillback/quill/pkg/errdefs"
	"github.com/quillback/quill/pkg/store"
	"github.com/quillback/quill/pkg/types"
	"github.com/quillback/quill/pkg/workspace"
)

// workspaceResponse is the wire form of a workspace
type workspaceResponse struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	OwnerUserID uuid.UUID  `json:"owner_user_id"`
	Visibility  string     `json:"visibility"`
	FTSLanguage string     `json:"fts_language"`
	ArchivedAt  *time.Time `json:"archived_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toWorkspaceResponse(ws *types.Workspace) workspaceResponse {
	return workspaceResponse{
		ID:          ws.ID,
		Name:        ws.Name,
		Description: ws.Description,
		OwnerUserID: ws.OwnerUserID,
		Visibility:  string(ws.Visibility),
		FTSLanguage: ws.FTSLanguage,
		ArchivedAt:  ws.ArchivedAt,
		CreatedAt:   ws.CreatedAt,
	}
}

type createWorkspaceRequest struct {
	Name        string    `json:"name" validate:"required,min=1,max=120"`
	Description string    `json:"description" validate:"max=2000"`
	OwnerUserID uuid.UUID `json:"owner_user_id"`
	Visibility  string    `json:"visibility" validate:"omitempty,oneof=PRIVATE ORG_READ"`
	FTSLanguage string    `json:"fts_language"`
}

func (s *Server) createWorkspace(w http.ResponseWriter, r *http.Request) {
	var req createWorkspaceRequest
	if err := s.decode(r, &req); err != nil {
		writeProblem(w, r, err)
		return
	}

	ws, err := s.registry.Create(r.Context(), principalFrom(r.Context()), workspace.CreateParams{
		Name:        req.Name,
		Description: req.Description,
		OwnerUserID: req.OwnerUserID,
		Visibility:  types.Visibility(req.Visibility),
		FTSLanguage: req.FTSLanguage,
	})
	if err != nil {
		writeProblem(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWorkspaceResponse(ws))
}

func (s *Server) listWorkspaces(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := pageQuery(q)
	page := store.Page{Limit: limit, Offset: offset}
	includeArchived := q.Get("include_archived") == "true"

	list, err := s.registry.List(r.Context(), principalFrom(r.Context()), includeArchived, page)
	if err != nil {
		writeProblem(w, r, err)
		return
	}

	out := make([]workspaceResponse, len(list))
	for i, ws := range list {
		out[i] = toWorkspaceResponse(ws)
	}
	writeJSON(w, http.StatusOK, map[string]any{"workspaces": out})
}

func (s *Server) getWorkspace(w http.ResponseWriter, r *http.Request) {
	wsID, err := pathUUID(r, "workspaceID")
	if err != nil {
		writeProblem(w, r, err)
		return
	}
	ws, err := s.registry.AuthorizeRead(r.Context(), principalFrom(r.Context()), wsID)
	if err != nil {
		writeProblem(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkspaceResponse(ws))
}

type updateWorkspaceRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=120"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	FTSLanguage *string `json:"fts_language"`
}

func (s *Server) updateWorkspace(w http.ResponseWriter, r *http.Request) {
	wsID, err := pathUUID(r, "workspaceID")
	if err != nil {
		writeProblem(w, r, err)
		return
	}
	var req updateWorkspaceRequest
	if err := s.decode(r, &req); err != nil {
		writeProblem(w, r, err)
		return
	}

	ws, err := s.registry.Update(r.Context(), principalFrom(r.Context()), wsID, workspace.UpdateParams{
		Name:        req.Name,
		Description: req.Description,
		FTSLanguage: req.FTSLanguage,
	})
	if err != nil {
		writeProblem(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkspaceResponse(ws))
}

func (s *Server) archiveWorkspace(w http.ResponseWriter, r *http.Request) {
	s.workspaceAction(w, r, s.registry.Archive)
}

func (s *Server) unarchiveWorkspace(w http.ResponseWriter, r *http.Request) {
	s.workspaceAction(w, r, s.registry.Unarchive)
}

func (s *Server) publishWorkspace(w http.ResponseWriter, r *http.Request) {
	s.workspaceAction(w, r, s.registry.Publish)
}

type shareRequest struct {
	UserIDs []uuid.UUID `json:"user_ids"`
}

func (s *Server) shareWorkspace(w http.ResponseWriter, r *http.Request) {
	wsID, err := pathUUID(r, "workspaceID")
	if err != nil {
		writeProblem(w, r, err)
		return
	}
	var req shareRequest
	if err := s.decode(r, &req); err != nil {
		writeProblem(w, r, err)
		return
	}

	if err := s.registry.Share(r.Context(), principalFrom(r.Context()), wsID, req.UserIDs); err != nil {
		writeProblem(w, r, err)
		return
	}
	s.respondWorkspace(w, r, wsID)
}

func (s *Server) getACL(w http.ResponseWriter, r *http.Request) {
	wsID, err := pathUUID(r, "workspaceID")
	if err != nil {
		writeProblem(w, r, err)
		return
	}
	members, err := s.registry.ACLMembers(r.Context(), principalFrom(r.Context()), wsID)
	if err != nil {
		writeProblem(w, r, err)
		return
	}
	if members == nil {
		members = []uuid.UUID{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_ids": members})
}

// workspaceAction factors the archive/unarchive/publish pattern
func (s *Server) workspaceAction(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, p types.Principal, id uuid.UUID) error) {
	wsID, err := pathUUID(r, "workspaceID")
	if err != nil {
		writeProblem(w, r, err)
		return
	}
	if err := fn(r.Context(), principalFrom(r.Context()), wsID); err != nil {
		writeProblem(w, r, err)
		return
	}
	s.respondWorkspace(w, r, wsID)
}

// respondWorkspace returns the current state of a workspace after a
// mutation
func (s *Server) respondWorkspace(w http.ResponseWriter, r *http.Request, wsID uuid.UUID) {
	ws, err := s.registry.AuthorizeRead(r.Context(), principalFrom(r.Context()), wsID)
	if err != nil {
		writeProblem(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkspaceResponse(ws))
}

// decode parses a JSON body and runs struct validation
func (s *Server) decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errdefs.BadRequest("malformed request body")
	}
	if err := s.validate.Struct(v); err != nil {
		return errdefs.BadRequest("invalid request: " + err.Error())
	}
	return nil
}

// pathUUID parses a UUID path parameter
func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, errdefs.NotFound("resource not found")
	}
	return id, nil
}

// intQuery parses an integer query parameter with a default
func intQuery(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// pageQuery converts page and page_size parameters to limit and offset
func pageQuery(q url.Values) (limit, offset int) {
	size := intQuery(q.Get("page_size"), 50)
	if size < 1 {
		size = 50
	}
	page := intQuery(q.Get("page"), 1)
	if page < 1 {
		page = 1
	}
	return size, (page - 1) * size
}
