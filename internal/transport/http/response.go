package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	"recipe-ingest-service/internal/apperr"
	"recipe-ingest-service/internal/repository/postgresql"
	"recipe-ingest-service/internal/service"
)

type apiError struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, apiError{Message: msg})
}

// writeAppErr maps a service error to its status. Unclassified errors are
// reported as a bare internal error.
func writeAppErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrBusy):
		writeErr(w, http.StatusServiceUnavailable, "ingestion is at capacity, retry later")
		return
	case errors.Is(err, postgresql.ErrNotFound):
		writeErr(w, http.StatusNotFound, "not found")
		return
	}

	kind := apperr.KindOf(err)
	writeJSON(w, statusForKind(kind), apiError{Message: apperr.SafeMessage(err), Kind: string(kind)})
}

func statusForKind(k apperr.Kind) int {
	switch k {
	case apperr.ValidationError:
		return http.StatusBadRequest
	case apperr.UpstreamUnavailable, apperr.ContentUnextractable:
		return http.StatusUnprocessableEntity
	case apperr.AlreadyExists:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
