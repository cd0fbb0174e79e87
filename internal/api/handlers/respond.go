package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/lendingdesk/lending-api/internal/apperr"
	"github.com/rs/zerolog/log"
)

// errorBody matches the wire shape of error responses.
type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps a service error to its wire status. Internal failures are
// logged and replaced with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.Status(err)
	detail := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		detail = "Internal server error"
	}
	writeJSON(w, status, errorBody{Detail: detail})
}
