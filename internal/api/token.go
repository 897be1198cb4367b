// SPDX-License-Identifier: MIT

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gridlink/openadr3/internal/log"
	"github.com/gridlink/openadr3/internal/metrics"
	"github.com/gridlink/openadr3/internal/store"
)

// TokenResponse is the successful token-endpoint body.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// handleToken implements the OAuth2 client-credentials grant. The
// client may authenticate via HTTP Basic or form fields, but not both.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, http.StatusBadRequest, oauthInvalidRequest, "malformed form body")
		return
	}
	if grant := r.PostForm.Get("grant_type"); grant != "client_credentials" {
		writeOAuthError(w, http.StatusBadRequest, oauthUnsupportedGrantType,
			"only the client_credentials grant is supported")
		return
	}

	basicID, basicSecret, hasBasic := r.BasicAuth()
	formID := r.PostForm.Get("client_id")
	formSecret := r.PostForm.Get("client_secret")
	hasForm := formID != "" || formSecret != ""

	var clientID, clientSecret string
	switch {
	case hasBasic && hasForm:
		writeOAuthError(w, http.StatusBadRequest, oauthInvalidRequest,
			"client credentials supplied in both header and body")
		return
	case hasBasic:
		clientID, clientSecret = basicID, basicSecret
	case hasForm:
		clientID, clientSecret = formID, formSecret
	default:
		writeOAuthError(w, http.StatusUnauthorized, oauthInvalidClient, "no client credentials")
		return
	}

	roles, err := s.store.LookupCredential(r.Context(), clientID, clientSecret)
	if errors.Is(err, store.ErrNotFound) {
		writeOAuthError(w, http.StatusUnauthorized, oauthInvalidClient, "unknown client or wrong secret")
		return
	}
	if err != nil {
		writeOAuthError(w, http.StatusInternalServerError, oauthServerError, "")
		return
	}

	token, err := s.signer.Issue(clientID, roles, time.Now())
	if err != nil {
		writeOAuthError(w, http.StatusInternalServerError, oauthServerError, "")
		return
	}

	metrics.TokensIssuedTotal.Inc()
	logger := log.FromContext(r.Context())
	logger.Info().
		Str("event", "auth.token_issued").
		Str("client_id", clientID).
		Msg("issued access token")

	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.signer.TTL() / time.Second),
	})
}
