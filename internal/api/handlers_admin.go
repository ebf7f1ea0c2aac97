// SPDX-License-Identifier: MIT

package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/ManuGH/livecap/internal/log"
)

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if s.opts.AdminToken == "" {
		writeDetail(w, http.StatusForbidden, "admin endpoint disabled")
		return
	}

	auth := r.Header.Get("Authorization")
	if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
		writeUnauthorized(w)
		return
	}
	token := strings.TrimPrefix(auth, "Bearer ")
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.AdminToken)) != 1 {
		writeForbidden(w)
		return
	}

	s.opts.Cache.Clear()
	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Info().Msg("cache cleared by admin")
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}
