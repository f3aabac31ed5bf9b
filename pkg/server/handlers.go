package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zen-systems/finquery/pkg/adapter"
	"github.com/zen-systems/finquery/pkg/router"
	"github.com/zen-systems/finquery/pkg/workflow"
)

type queryRequest struct {
	Question string `json:"question"`
	Handler  string `json:"handler,omitempty"`
}

type queryResponse struct {
	Answer              string           `json:"answer"`
	RoutingInfo         *router.Decision `json:"routing_info"`
	VisualizationBase64 string           `json:"visualization_base64,omitempty"`
	VisualizationURL    string           `json:"visualization_url,omitempty"`
	CurrentAgent        string           `json:"current_agent"`
	RunID               string           `json:"run_id"`
}

type routeRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[queryRequest](w, r, s.bodyLimit)
	if !ok {
		return
	}

	if err := s.sem.Acquire(r.Context(), 1); err != nil {
		s.logger.Warn("request abandoned while waiting for a worker", "error", err)
		writeError(w, http.StatusServiceUnavailable, "server is busy, try again later")
		return
	}
	defer s.sem.Release(1)

	out, err := s.orch.ProcessQuestion(r.Context(), req.Question, req.Handler)
	if err != nil {
		s.writeRunError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{
		Answer:              out.FinalAnswer,
		RoutingInfo:         out.Decision,
		VisualizationBase64: out.Artifacts.VisualizationBase64,
		VisualizationURL:    out.Artifacts.VisualizationURL,
		CurrentAgent:        out.CurrentHandler,
		RunID:               out.RunID,
	})
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[routeRequest](w, r, s.bodyLimit)
	if !ok {
		return
	}

	decision, err := s.orch.RouteOnly(r.Context(), req.Question)
	if err != nil {
		s.writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusNotFound, "run history is disabled")
		return
	}
	out, ok := s.runs.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) writeRunError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, workflow.ErrEmptyQuestion):
		writeError(w, http.StatusBadRequest, "question is required")
	case errors.Is(err, workflow.ErrUnknownHandler):
		writeError(w, http.StatusBadRequest, err.Error())
	case adapter.IsTransient(err):
		s.logger.Warn("request failed with transient error", "error", err)
		writeError(w, http.StatusServiceUnavailable, "upstream model unavailable, try again later")
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
