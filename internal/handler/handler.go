// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/openfest/registrar/internal/apperr"
	"github.com/openfest/registrar/internal/model"
)

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

// writeDomainError maps the error taxonomy onto HTTP statuses in one
// place. Infrastructure failures become a generic 500 without leaking
// internals.
func writeDomainError(w http.ResponseWriter, err error) {
	var domainErr *apperr.Error
	if !errors.As(err, &domainErr) {
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	status := http.StatusBadRequest
	switch domainErr.Kind {
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindForbidden:
		status = http.StatusForbidden
	case apperr.KindConflict, apperr.KindInvalidState:
		status = http.StatusConflict
	case apperr.KindValidation:
		status = http.StatusBadRequest
	}
	writeJSON(w, status, model.ErrorResponse{
		Error: domainErr.Reason,
		Code:  string(domainErr.Kind),
	})
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
