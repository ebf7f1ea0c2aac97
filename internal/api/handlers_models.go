// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/livecap/internal/jobs"
	"github.com/ManuGH/livecap/internal/models"
)

func (s *Server) handleListASR(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Registry.ASRModels())
}

func (s *Server) handleListMT(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Registry.MTModels())
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	caps, err := s.opts.Registry.Capabilities(name)
	if err != nil {
		if errors.Is(err, models.ErrModelNotFound) {
			writeDetail(w, http.StatusNotFound, err.Error())
			return
		}
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, caps)
}

func (s *Server) handleMTLanguages(w http.ResponseWriter, r *http.Request) {
	modelID := chi.URLParam(r, "model_id")
	langs, err := s.opts.Registry.MTLanguages(modelID)
	if err != nil {
		if errors.Is(err, models.ErrModelNotFound) {
			writeDetail(w, http.StatusNotFound, err.Error())
			return
		}
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"model_id":  modelID,
		"languages": langs,
	})
}

type downloadRequest struct {
	RepoID string `json:"repo_id"`
	Type   string `json:"type"`
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	jobID, err := s.opts.Jobs.StartDownload(req.RepoID, jobs.Type(req.Type))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"job_id": jobID,
		"status": "started",
	})
}
