package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/fleethub-io/fleethub/internal/pkg/util"
	"github.com/fleethub-io/fleethub/internal/relay/core/model"
)

// sendResponse is the body returned by the POST endpoints. Warnings carries
// the newline-joined reconnect warnings, empty when there were none.
type sendResponse struct {
	Message  string `json:"message"`
	Warnings string `json:"warnings,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleSendStatuses(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	messages, ok := s.decodeMessages(w, r)
	if !ok {
		return
	}

	warnings, err := s.svc.SendStatuses(r.Context(), vars["company"], vars["car"], messages)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sendResponse{Message: "statuses accepted", Warnings: warnings})
}

func (s *Server) handleSendCommands(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	messages, ok := s.decodeMessages(w, r)
	if !ok {
		return
	}

	if err := s.svc.SendCommands(r.Context(), vars["company"], vars["car"], messages); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sendResponse{Message: "commands accepted"})
}

func (s *Server) handleListStatuses(w http.ResponseWriter, r *http.Request) {
	s.handleList(w, r, s.svc.ListStatuses)
}

func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	s.handleList(w, r, s.svc.ListCommands)
}

type listFunc func(ctx context.Context, company, car string, since int64, wait bool) ([]model.Message, error)

func (s *Server) handleList(w http.ResponseWriter, r *http.Request, list listFunc) {
	vars := mux.Vars(r)
	since, wait, ok := s.pollParams(w, r)
	if !ok {
		return
	}

	messages, err := list(r.Context(), vars["company"], vars["car"], since, wait)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, messages)
}

func (s *Server) handleAvailableCars(w http.ResponseWriter, r *http.Request) {
	since, wait, ok := s.pollParams(w, r)
	if !ok {
		return
	}

	cars, err := s.svc.AvailableCars(r.Context(), since, wait)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cars)
}

func (s *Server) handleAvailableDevices(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var moduleID *uint32
	if raw := r.URL.Query().Get("module_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "module_id must be an unsigned integer"})
			return
		}
		v := uint32(id)
		moduleID = &v
	}

	modules, err := s.svc.AvailableDevices(r.Context(), vars["company"], vars["car"], moduleID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if moduleID != nil {
		// Single-module lookups answer with the module itself.
		s.writeJSON(w, http.StatusOK, modules[0])
		return
	}
	s.writeJSON(w, http.StatusOK, modules)
}

// decodeMessages reads the request body as a JSON message batch. Responds
// with 400 itself when the body does not parse.
func (s *Server) decodeMessages(w http.ResponseWriter, r *http.Request) ([]model.Message, bool) {
	var messages []model.Message
	if err := json.NewDecoder(r.Body).Decode(&messages); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed message batch: " + err.Error()})
		return nil, false
	}
	return messages, true
}

// pollParams parses the since/wait query parameters shared by the list
// endpoints. Responds with 400 itself on invalid input.
func (s *Server) pollParams(w http.ResponseWriter, r *http.Request) (since int64, wait bool, ok bool) {
	q := r.URL.Query()

	if raw := q.Get("since"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "since must be a unix millisecond timestamp"})
			return 0, false, false
		}
		since = v
	}
	if raw := q.Get("wait"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "wait must be a boolean"})
			return 0, false, false
		}
		wait = v
	}
	return since, wait, true
}

// writeError maps orchestrator errors onto status codes. List endpoints
// answer 404 with an empty batch so pollers can treat the body uniformly.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, util.ErrInvalid):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, util.ErrNotFound):
		if r.Method == http.MethodGet {
			s.writeJSON(w, http.StatusNotFound, []model.Message{})
			return
		}
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, util.ErrUnavailable):
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	case r.Context().Err() != nil:
		// Client went away mid long-poll; nothing useful to write.
	default:
		s.logger.Error(err, "request failed", "path", r.URL.Path, "method", r.Method)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
