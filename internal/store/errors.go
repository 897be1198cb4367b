// SPDX-License-Identifier: MIT

package store

import "errors"

// Store error taxonomy. The API layer maps these to HTTP statuses:
// NotFound→404, Conflict→409, BadRequest→400, Forbidden→403,
// NotImplemented→501; anything else is internal→500. Callers attach
// detail via fmt.Errorf("...: %w", Err...).
var (
	ErrNotFound       = errors.New("object not found")
	ErrConflict       = errors.New("conflict")
	ErrBadRequest     = errors.New("bad request")
	ErrForbidden      = errors.New("forbidden")
	ErrNotImplemented = errors.New("not implemented")
)
