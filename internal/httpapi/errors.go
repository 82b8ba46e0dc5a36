package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"cuehall.org/internal/audit"
	"cuehall.org/internal/authz"
)

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := audit.RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

// handleAuthzError maps the core error taxonomy onto HTTP status codes.
// Transient failures are 503 so clients retry with backoff; denials are
// terminal for the request.
func handleAuthzError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, authz.ErrUnauthenticated):
		writeError(w, r, http.StatusUnauthorized, "unauthenticated")
	case errors.Is(err, authz.ErrForbidden),
		errors.Is(err, authz.ErrNoCompanyContext),
		errors.Is(err, authz.ErrInvalidState):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, authz.ErrProfileNotFound),
		errors.Is(err, authz.ErrCompanyNotFound),
		errors.Is(err, authz.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, authz.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, authz.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case authz.IsTransient(err):
		writeError(w, r, http.StatusServiceUnavailable, "temporarily unavailable")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
