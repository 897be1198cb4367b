// SPDX-License-Identifier: MIT

package client

import (
	"errors"
	"fmt"

	"github.com/gridlink/openadr3/internal/api"
)

// Sentinel errors for by-name lookup and handle mismatches.
var (
	ErrTokenNotBearer      = errors.New("token endpoint returned a non-bearer token type")
	ErrObjectNotFound      = errors.New("no object matched the name")
	ErrDuplicateObject     = errors.New("more than one object matched the name")
	ErrInvalidParentObject = errors.New("object does not reference its parent handle")
)

// TransportError wraps network and request-construction failures.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport: %s", e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// SerdeError wraps JSON encode/decode failures.
type SerdeError struct {
	Err error
}

func (e *SerdeError) Error() string { return fmt.Sprintf("serde: %s", e.Err) }
func (e *SerdeError) Unwrap() error { return e.Err }

// URLError wraps base-url parse failures.
type URLError struct {
	Raw string
	Err error
}

func (e *URLError) Error() string { return fmt.Sprintf("url %q: %s", e.Raw, e.Err) }
func (e *URLError) Unwrap() error { return e.Err }

// ProblemError carries the server's RFC 7807 body.
type ProblemError struct {
	Problem api.Problem
}

func (e *ProblemError) Error() string {
	return fmt.Sprintf("server problem %d %s: %s", e.Problem.Status, e.Problem.Title, e.Problem.Detail)
}

// AuthError carries the token endpoint's OAuth error body.
type AuthError struct {
	OAuth api.OAuthError
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth: %s: %s", e.OAuth.Error, e.OAuth.Description)
}
