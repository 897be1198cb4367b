// SPDX-License-Identifier: MIT

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gridlink/openadr3/internal/log"
)

type ctxIdentityKey struct{}

// Errors returned by the extractors; the API layer maps them to 403.
var (
	ErrNoIdentity      = errors.New("request carries no valid bearer token")
	ErrNotBusinessUser = errors.New("caller has no business role")
	ErrNotVenUser      = errors.New("caller has no VEN role")
	ErrNotUserManager  = errors.New("caller is not a user manager")
	ErrNotVenManager   = errors.New("caller is not a VEN manager")
)

// Middleware decodes an Authorization: Bearer header into the request
// context. Requests without a decodable token pass through without an
// identity; the extractors reject them per route.
func Middleware(signer *Signer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			identity, err := signer.Verify(raw)
			if err != nil {
				logger := log.FromContext(r.Context())
				logger.Warn().
					Str("event", "auth.invalid_token").
					Err(err).
					Msg("rejecting bearer token")
				next.ServeHTTP(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), ctxIdentityKey{}, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext returns the decoded caller, if any.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(ctxIdentityKey{}).(*Identity)
	return id, ok
}

// RequireUser extracts any authenticated caller.
func RequireUser(r *http.Request) (*Identity, error) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		return nil, ErrNoIdentity
	}
	return id, nil
}

// RequireBusinessUser extracts a caller holding some business role.
func RequireBusinessUser(r *http.Request) (*Identity, error) {
	id, err := RequireUser(r)
	if err != nil {
		return nil, err
	}
	if !id.Roles.IsBusinessUser() {
		return nil, ErrNotBusinessUser
	}
	return id, nil
}

// RequireVenUser extracts a caller holding at least one VEN role.
func RequireVenUser(r *http.Request) (*Identity, error) {
	id, err := RequireUser(r)
	if err != nil {
		return nil, err
	}
	if !id.Roles.IsVenUser() {
		return nil, ErrNotVenUser
	}
	return id, nil
}

// RequireUserManager extracts a caller holding the UserManager role.
func RequireUserManager(r *http.Request) (*Identity, error) {
	id, err := RequireUser(r)
	if err != nil {
		return nil, err
	}
	if !id.Roles.HasUserManager() {
		return nil, ErrNotUserManager
	}
	return id, nil
}

// RequireVenManager extracts a caller holding the VenManager role.
func RequireVenManager(r *http.Request) (*Identity, error) {
	id, err := RequireUser(r)
	if err != nil {
		return nil, err
	}
	if !id.Roles.HasVenManager() {
		return nil, ErrNotVenManager
	}
	return id, nil
}
