package server

import (
	"errors"
	"net/http"

	"zenoscript/pkg/engine"
	"zenoscript/pkg/middleware"
	"zenoscript/pkg/scriptstore"
)

// badRequest marks client input errors that never reached an engine.
type badRequest struct{ err error }

func (b badRequest) Error() string { return b.err.Error() }
func (b badRequest) Unwrap() error { return b.err }

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Source  string `json:"source,omitempty"`
	Line    int    `json:"line,omitempty"`
	Col     int    `json:"col,omitempty"`
}

func classify(err error) (int, errorBody) {
	var se *engine.ScriptError
	if errors.As(err, &se) {
		body := errorBody{
			Kind:    se.Kind.String(),
			Message: se.Message,
			Source:  se.Source,
			Line:    se.Line,
			Col:     se.Col,
		}
		switch se.Kind {
		case engine.KindCompilation:
			return http.StatusUnprocessableEntity, body
		case engine.KindNoSuchMethod:
			return http.StatusNotFound, body
		}
		return http.StatusInternalServerError, body
	}

	var br badRequest
	switch {
	case errors.As(err, &br), errors.Is(err, scriptstore.ErrInvalidName):
		return http.StatusBadRequest, errorBody{Kind: "bad_request", Message: err.Error()}
	case errors.Is(err, scriptstore.ErrNotFound):
		return http.StatusNotFound, errorBody{Kind: "not_found", Message: err.Error()}
	case errors.Is(err, engine.ErrUnknownEngine):
		return http.StatusNotFound, errorBody{Kind: "unknown_engine", Message: err.Error()}
	}
	return http.StatusInternalServerError, errorBody{Kind: "internal", Message: err.Error()}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "path", r.URL.Path, "error", err)
	}
	middleware.WriteJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   body,
	})
}
