// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/livecap/internal/model"
	"github.com/ManuGH/livecap/internal/session"
)

type sessionSummary struct {
	SessionID string              `json:"session_id"`
	State     model.SessionState  `json:"state"`
	Config    model.SessionConfig `json:"config"`
	CreatedAt time.Time           `json:"created_at"`
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	sessions := s.opts.Supervisor.Sessions()
	out := make([]sessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sessionSummary{
			SessionID: sess.ID,
			State:     sess.State(),
			Config:    sess.Config,
			CreatedAt: sess.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var cfg model.SessionConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	sess, err := s.opts.Supervisor.Create(r.Context(), cfg)
	if err != nil {
		// Admission and validation failures are both client errors; the
		// detail string carries the reason.
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": sess.ID})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sid := chi.URLParam(r, "sid")
	if err := s.opts.Supervisor.Stop(r.Context(), sid); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeDetail(w, http.StatusNotFound, err.Error())
			return
		}
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"stopped": true})
}
