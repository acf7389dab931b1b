package mockserver

import (
	"encoding/json"
	"net/http"
)

// The real backend answers with DRF-shaped bodies: a {"detail": ...} string
// for generic outcomes and a field→messages map for validation failures.
// The console's error decoding depends on both shapes, so the double mirrors
// them exactly.

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeFieldErrors(w http.ResponseWriter, fields map[string][]string) {
	writeJSON(w, http.StatusBadRequest, fields)
}

func decodeBody(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		writeDetail(w, http.StatusBadRequest, "Malformed request body.")
		return false
	}

	return true
}
