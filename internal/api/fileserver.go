// SPDX-License-Identifier: MIT

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/livecap/internal/fsutil"
)

// handleOutFile serves session artifacts. Every path is confined to the
// output root; anything unresolvable is a plain 404 so probing reveals
// nothing about the tree.
func (s *Server) handleOutFile(w http.ResponseWriter, r *http.Request) {
	rel := chi.URLParam(r, "*")
	if rel == "" {
		writeDetail(w, http.StatusNotFound, "not found")
		return
	}

	path, err := fsutil.ConfineRelPath(s.opts.OutRoot, rel)
	if err != nil {
		writeDetail(w, http.StatusNotFound, "not found")
		return
	}
	if err := fsutil.IsRegularFile(path); err != nil {
		writeDetail(w, http.StatusNotFound, "not found")
		return
	}
	http.ServeFile(w, r, path)
}
