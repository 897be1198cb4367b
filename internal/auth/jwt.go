// SPDX-License-Identifier: MIT

package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gridlink/openadr3/internal/oadr"
)

// Claims is the JWT payload carried by every access token: the client id
// as subject plus the user's encoded role set.
type Claims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// Identity is the decoded caller of a protected request.
type Identity struct {
	ClientID string
	Roles    RoleSet
}

// Signer mints and verifies HS256 access tokens with a shared secret.
type Signer struct {
	secret []byte
	ttl    time.Duration
}

// NewSigner returns a Signer using the given shared secret and token
// lifetime.
func NewSigner(secret string, ttl time.Duration) *Signer {
	return &Signer{secret: []byte(secret), ttl: ttl}
}

// TTL returns the configured token lifetime.
func (s *Signer) TTL() time.Duration { return s.ttl }

// Issue mints a signed token for the given client and role set.
func (s *Signer) Issue(clientID string, roles RoleSet, now time.Time) (string, error) {
	claims := Claims{
		Roles: roles.Strings(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   clientID,
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify decodes and validates a bearer token, returning the caller's
// identity. Expired, not-yet-valid and badly signed tokens fail.
func (s *Signer) Verify(tokenString string) (*Identity, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}
	roles, err := ParseRoles(claims.Roles)
	if err != nil {
		return nil, fmt.Errorf("token roles: %w", err)
	}
	return &Identity{ClientID: claims.Subject, Roles: roles}, nil
}

// User is the wire record served by the /users endpoints.
type User struct {
	ID          oadr.Identifier `json:"id"`
	Reference   string          `json:"reference"`
	Description *string         `json:"description,omitempty"`
	Roles       []string        `json:"roles"`
	ClientIDs   []string        `json:"clientIds"`
	CreatedAt   time.Time       `json:"created"`
	ModifiedAt  time.Time       `json:"modified"`
}

// UserContent is the caller-supplied part of a user.
type UserContent struct {
	Reference   string   `json:"reference"`
	Description *string  `json:"description,omitempty"`
	Roles       []string `json:"roles"`
}

// Validate checks the reference and that every role decodes.
func (c *UserContent) Validate() error {
	if len(c.Reference) < 1 || len(c.Reference) > 128 {
		return fmt.Errorf("user reference must be between 1 and 128 characters, got %d", len(c.Reference))
	}
	if _, err := ParseRoles(c.Roles); err != nil {
		return err
	}
	return nil
}

// Credential is a client id / secret pair attached to a user.
type Credential struct {
	ClientID     string `json:"clientID"`
	ClientSecret string `json:"clientSecret"`
}
