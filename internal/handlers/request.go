package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads a JSON body into dst, writing a MISSING_DATA response when it cannot
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, CodeMissingData, "", nil)
		return false
	}
	return true
}

// guardianIDFromHeader returns the caller's account id from X-User-Id
func guardianIDFromHeader(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-User-Id"))
}
