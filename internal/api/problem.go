// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/gridlink/openadr3/internal/log"
	"github.com/gridlink/openadr3/internal/store"
)

// Problem is the RFC 7807 error body. Every instance id is a fresh UUID
// so a 500 can be correlated with the server log line that carries it.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance"`
}

func newProblem(status int, detail string) Problem {
	return Problem{
		Type:     "about:blank",
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   detail,
		Instance: uuid.NewString(),
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	p := newProblem(status, detail)
	if status >= http.StatusInternalServerError {
		logger := log.FromContext(r.Context())
		logger.Error().
			Str("event", "api.internal_error").
			Str("instance", p.Instance).
			Str("path", r.URL.Path).
			Str("detail", detail).
			Msg("request failed")
		// Internal details stay in the log.
		p.Detail = ""
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(p)
}

// writeStoreError maps the store's sentinel taxonomy onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeProblem(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrConflict):
		writeProblem(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrBadRequest):
		writeProblem(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrForbidden):
		writeProblem(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, store.ErrNotImplemented):
		writeProblem(w, r, http.StatusNotImplemented, err.Error())
	default:
		writeProblem(w, r, http.StatusInternalServerError, err.Error())
	}
}

// OAuthError is the token-endpoint error body per RFC 6749 §5.2.
type OAuthError struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
	URI         string `json:"error_uri,omitempty"`
}

const (
	oauthInvalidRequest       = "invalid_request"
	oauthInvalidClient        = "invalid_client"
	oauthUnsupportedGrantType = "unsupported_grant_type"
	oauthServerError          = "server_error"
)

func writeOAuthError(w http.ResponseWriter, status int, code, description string) {
	if code == oauthInvalidClient {
		w.Header().Set("WWW-Authenticate", `Basic realm="VTN"`)
	}
	writeJSON(w, status, OAuthError{Error: code, Description: description})
}
