// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"net/http"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDetail writes the {"detail": ...} error shape clients key on.
func writeDetail(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]string{"detail": detail})
}

func writeUnauthorized(w http.ResponseWriter) {
	writeDetail(w, http.StatusUnauthorized, "missing bearer token")
}

func writeForbidden(w http.ResponseWriter) {
	writeDetail(w, http.StatusForbidden, "invalid bearer token")
}
