package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/quillback/quill/pkg/answer"
	"github.com/quillback/quill/pkg/errdefs"
	"github.com/quillback/quill/pkg/types"
)

type askRequest struct {
	Query string `json:"query" validate:"required"`
	TopK  int    `json:"top_k" validate:"omitempty,min=1,max=50"`
}

type askResponse struct {
	Answer  string           `json:"answer"`
	Sources []types.Citation `json:"sources"`
}

// chunkResponse is the wire form of a retrieved chunk
type chunkResponse struct {
	ChunkID       uuid.UUID `json:"chunk_id"`
	DocumentID    uuid.UUID `json:"document_id"`
	DocumentTitle string    `json:"document_title"`
	ChunkIndex    int       `json:"chunk_index"`
	Content       string    `json:"content"`
	Score         float64   `json:"score"`
	Source        string    `json:"source"`
}

// queryWorkspace runs retrieval only, returning scored chunks without
// calling the model
func (s *Server) queryWorkspace(w http.ResponseWriter, r *http.Request) {
	wsID, err := pathUUID(r, "workspaceID")
	if err != nil {
		writeProblem(w, r, err)
		return
	}
	var req askRequest
	if err := s.decode(r, &req); err != nil {
		writeProblem(w, r, err)
		return
	}

	chunks, err := s.generator.Search(r.Context(), principalFrom(r.Context()), wsID, answer.Ask{
		Question: req.Query,
		TopK:     req.TopK,
	})
	if err != nil {
		writeProblem(w, r, err)
		return
	}

	out := make([]chunkResponse, len(chunks))
	for i, c := range chunks {
		out[i] = chunkResponse{
			ChunkID:       c.ChunkID,
			DocumentID:    c.DocumentID,
			DocumentTitle: c.DocumentTitle,
			ChunkIndex:    c.ChunkIndex,
			Content:       c.Content,
			Score:         c.Score,
			Source:        string(c.Source),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"chunks": out})
}

func (s *Server) askBuffered(w http.ResponseWriter, r *http.Request) {
	wsID, err := pathUUID(r, "workspaceID")
	if err != nil {
		writeProblem(w, r, err)
		return
	}
	var req askRequest
	if err := s.decode(r, &req); err != nil {
		writeProblem(w, r, err)
		return
	}

	res, err := s.generator.Answer(r.Context(), principalFrom(r.Context()), wsID, answer.Ask{
		Question: req.Query,
		TopK:     req.TopK,
	})
	if err != nil {
		writeProblem(w, r, err)
		return
	}
	if res.Sources == nil {
		res.Sources = []types.Citation{}
	}
	writeJSON(w, http.StatusOK, askResponse{Answer: res.Answer, Sources: res.Sources})
}

// askStream serves the answer as server-sent events: one sources event,
// token events, and a single terminal done or error event. Errors before
// the first event are plain problem responses; errors after the first
// byte arrive as an error event.
func (s *Server) askStream(w http.ResponseWriter, r *http.Request) {
	wsID, err := pathUUID(r, "workspaceID")
	if err != nil {
		writeProblem(w, r, err)
		return
	}
	var req askRequest
	if err := s.decode(r, &req); err != nil {
		writeProblem(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, r, errdefs.Internal("streaming unsupported", nil))
		return
	}

	// SSE headers go out with the first event so failures before the
	// stream starts can still answer with problem+json
	var started bool
	emit := func(ev answer.Event) error {
		if err := r.Context().Err(); err != nil {
			return err
		}
		if !started {
			started = true
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("Connection", "keep-alive")
		}
		payload, err := sseData(ev)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	err = s.generator.AnswerStream(r.Context(), principalFrom(r.Context()), wsID, answer.Ask{
		Question: req.Query,
		TopK:     req.TopK,
	}, emit)
	if err != nil && !started {
		writeProblem(w, r, err)
	}
}

// sseData renders one event's data payload as JSON
func sseData(ev answer.Event) ([]byte, error) {
	switch ev.Type {
	case answer.EventSources:
		sources := ev.Sources
		if sources == nil {
			sources = []types.Citation{}
		}
		return json.Marshal(map[string]any{"sources": sources})
	case answer.EventToken:
		return json.Marshal(map[string]string{"token": ev.Token})
	case answer.EventDone:
		return json.Marshal(map[string]string{"answer": ev.Answer})
	case answer.EventError:
		return json.Marshal(map[string]string{
			"code":    string(errdefs.CodeOf(ev.Err)),
			"message": publicMessage(ev.Err),
		})
	}
	return json.Marshal(struct{}{})
}

func publicMessage(err error) string {
	var e *errdefs.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
