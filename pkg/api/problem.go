package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/quillback/quill/pkg/errdefs"
	"github.com/quillback/quill/pkg/log"
)

// problem is the RFC 7807 error body. Detail never carries internal error
// text; 5xx responses carry an error id that also appears in the logs.
type problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	Code     string `json:"code"`
	ErrorID  string `json:"error_id,omitempty"`
}

func writeProblem(w http.ResponseWriter, r *http.Request, err error) {
	status := errdefs.StatusOf(err)
	code := errdefs.CodeOf(err)

	p := problem{
		Type:     "about:blank",
		Title:    http.StatusText(status),
		Status:   status,
		Instance: r.URL.Path,
		Code:     string(code),
	}

	var e *errdefs.Error
	if errors.As(err, &e) {
		p.Detail = e.Message
		p.ErrorID = e.ErrorID
	}

	if status >= 500 {
		log.WithComponent("api").Error().Err(err).
			Str("error_id", p.ErrorID).
			Str("path", r.URL.Path).
			Msg("request failed")
		// do not leak internals
		if e == nil {
			p.Detail = "internal error"
		}
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(p)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
