// SPDX-License-Identifier: MIT

// Package oadr models the OpenADR 3.0 wire records shared by the VTN and
// the client runtime.
package oadr

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Identifier validation errors.
var (
	ErrIdentifierLength    = errors.New("identifier must be between 1 and 128 characters")
	ErrIdentifierCharacter = errors.New("identifier may only contain alphanumeric characters, underscores and dashes")
	ErrIdentifierForbidden = errors.New("identifier must not be the word 'null'")
)

// Identifier is a validated object identifier: 1..=128 bytes of
// [A-Za-z0-9_-]. The literal "null" (case-insensitive) is rejected to
// avoid ambiguity with JSON nulls in URL paths.
type Identifier string

// ParseIdentifier validates s and returns it as an Identifier.
func ParseIdentifier(s string) (Identifier, error) {
	if len(s) < 1 || len(s) > 128 {
		return "", ErrIdentifierLength
	}
	for _, c := range []byte(s) {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_' || c == '-':
		default:
			return "", ErrIdentifierCharacter
		}
	}
	if strings.EqualFold(s, "null") {
		return "", ErrIdentifierForbidden
	}
	return Identifier(s), nil
}

// NewUUIDIdentifier mints a fresh random identifier.
func NewUUIDIdentifier() Identifier {
	return Identifier(uuid.NewString())
}

func (i Identifier) String() string { return string(i) }

// UnmarshalJSON validates the identifier at the wire boundary.
func (i *Identifier) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseIdentifier(s)
	if err != nil {
		return fmt.Errorf("identifier %q: %w", s, err)
	}
	*i = parsed
	return nil
}
