package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/dativo-io/notescrub/internal/marker"
	"github.com/dativo-io/notescrub/internal/normalize"
	"github.com/dativo-io/notescrub/internal/otel"
	"github.com/dativo-io/notescrub/internal/resolver"
	"github.com/dativo-io/notescrub/internal/scrub"
)

// maxNotesPerRequest bounds the notes array of a normalize request.
const maxNotesPerRequest = 1000

type noteRequest struct {
	ID   string  `json:"id,omitempty"`
	Text *string `json:"text"`
}

type normalizeRequest struct {
	ID    string        `json:"id,omitempty"`
	Text  *string       `json:"text"`
	Notes []noteRequest `json:"notes,omitempty"`
}

type noteResponse struct {
	ID      string        `json:"id,omitempty"`
	Text    string        `json:"text"`
	Summary scrub.Summary `json:"summary"`
}

// Unresolved counts markers still present after the normalizer has run.
type explainResponse struct {
	Text       string              `json:"text"`
	Decisions  []resolver.Decision `json:"decisions"`
	Unresolved int                 `json:"unresolved"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"version":    s.version,
		"uptime":     time.Since(s.startTime).String(),
		"categories": s.pipeline.Categories(),
	})
}

func (s *Server) handleNormalize(w http.ResponseWriter, r *http.Request) {
	var req normalizeRequest
	if !s.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	switch {
	case req.Text != nil && len(req.Notes) > 0:
		writeError(w, http.StatusBadRequest, "invalid_request", "send either text or notes, not both")
	case req.Text != nil:
		out, sum := s.pipeline.ProcessContext(ctx, *req.Text)
		writeJSON(w, http.StatusOK, noteResponse{ID: req.ID, Text: out, Summary: sum})
	case len(req.Notes) > maxNotesPerRequest:
		writeError(w, http.StatusBadRequest, "invalid_request",
			fmt.Sprintf("at most %d notes per request", maxNotesPerRequest))
	case len(req.Notes) > 0:
		resp := make([]noteResponse, 0, len(req.Notes))
		for i, n := range req.Notes {
			if n.Text == nil {
				writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("notes[%d]: text is required", i))
				return
			}
			out, sum := s.pipeline.ProcessContext(ctx, *n.Text)
			resp = append(resp, noteResponse{ID: n.ID, Text: out, Summary: sum})
		}
		log.Debug().
			Str("request_id", middleware.GetReqID(ctx)).
			Int("notes", len(resp)).
			Func(otel.LogTraceFields(ctx)).
			Msg("normalized notes")
		writeJSON(w, http.StatusOK, map[string]interface{}{"notes": resp})
	default:
		writeError(w, http.StatusBadRequest, "invalid_request", "text is required")
	}
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	var req normalizeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Text == nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "text is required")
		return
	}
	out, decisions := s.pipeline.Explain(*req.Text)
	if decisions == nil {
		decisions = []resolver.Decision{}
	}
	writeJSON(w, http.StatusOK, explainResponse{
		Text:       out,
		Decisions:  decisions,
		Unresolved: marker.Count(normalize.Apply(out)),
	})
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pipeline.Rules().RuleFile())
}

// decode reads a JSON body capped at maxBodyBytes and writes the error
// response itself when it fails.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large",
				fmt.Sprintf("request body exceeds %d bytes", s.maxBodyBytes))
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	return true
}
