// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gridlink/openadr3/internal/auth"
	"github.com/gridlink/openadr3/internal/oadr"
)

// UserFilter narrows a user list query.
type UserFilter struct {
	Pagination
}

// CreateUser persists a new user. User management is restricted to the
// user-manager role; the reference is unique.
func (s *Store) CreateUser(ctx context.Context, content auth.UserContent, caller auth.RoleSet) (*auth.User, error) {
	if err := content.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBadRequest, err)
	}
	if !caller.HasUserManager() {
		return nil, fmt.Errorf("%w: only user managers create users", ErrForbidden)
	}

	var count int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE reference = ?", content.Reference).Scan(&count); err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: user reference %q already exists", ErrConflict, content.Reference)
	}

	now := time.Now().UTC()
	user := &auth.User{
		ID:          oadr.NewUUIDIdentifier(),
		Reference:   content.Reference,
		Description: content.Description,
		Roles:       content.Roles,
		ClientIDs:   []string{},
		CreatedAt:   now,
		ModifiedAt:  now,
	}
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, reference, description, roles, created_at, modified_at) VALUES (?, ?, ?, ?, ?, ?)",
		user.ID.String(), content.Reference, stringOrNil(content.Description), encodeRoles(content.Roles),
		now.Format(timeLayout), now.Format(timeLayout)); err != nil {
		return nil, err
	}
	return user, nil
}

// GetUser retrieves one user with its credential client ids.
func (s *Store) GetUser(ctx context.Context, id oadr.Identifier, caller auth.RoleSet) (*auth.User, error) {
	if !caller.HasUserManager() {
		return nil, fmt.Errorf("%w: only user managers read users", ErrForbidden)
	}
	row := s.db.QueryRowContext(ctx,
		"SELECT id, reference, description, roles, created_at, modified_at FROM users WHERE id = ?", id.String())
	user, err := scanUser(row)
	if err != nil {
		return nil, err
	}
	if user.ClientIDs, err = s.userClientIDs(ctx, user.ID); err != nil {
		return nil, err
	}
	return user, nil
}

// ListUsers returns all users, paginated.
func (s *Store) ListUsers(ctx context.Context, f UserFilter, caller auth.RoleSet) ([]auth.User, error) {
	if !caller.HasUserManager() {
		return nil, fmt.Errorf("%w: only user managers list users", ErrForbidden)
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, reference, description, roles, created_at, modified_at FROM users"+
			" ORDER BY created_at, id LIMIT ? OFFSET ?", f.Limit, f.Skip)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []auth.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].ClientIDs, err = s.userClientIDs(ctx, users[i].ID); err != nil {
			return nil, err
		}
	}
	return users, nil
}

// UpdateUser replaces a user's content. The reference stays unique.
func (s *Store) UpdateUser(ctx context.Context, id oadr.Identifier, content auth.UserContent, caller auth.RoleSet) (*auth.User, error) {
	if err := content.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBadRequest, err)
	}
	existing, err := s.GetUser(ctx, id, caller)
	if err != nil {
		return nil, err
	}

	var count int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE reference = ? AND id != ?", content.Reference, id.String()).Scan(&count); err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: user reference %q already exists", ErrConflict, content.Reference)
	}

	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx,
		"UPDATE users SET reference = ?, description = ?, roles = ?, modified_at = ? WHERE id = ?",
		content.Reference, stringOrNil(content.Description), encodeRoles(content.Roles),
		now.Format(timeLayout), id.String()); err != nil {
		return nil, err
	}
	return &auth.User{
		ID:          id,
		Reference:   content.Reference,
		Description: content.Description,
		Roles:       content.Roles,
		ClientIDs:   existing.ClientIDs,
		CreatedAt:   existing.CreatedAt,
		ModifiedAt:  now,
	}, nil
}

// DeleteUser removes a user and, via cascade, its credentials.
func (s *Store) DeleteUser(ctx context.Context, id oadr.Identifier, caller auth.RoleSet) (*auth.User, error) {
	existing, err := s.GetUser(ctx, id, caller)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id.String()); err != nil {
		return nil, err
	}
	return existing, nil
}

// AddCredential attaches a client id/secret pair to a user. The client
// id is globally unique.
func (s *Store) AddCredential(ctx context.Context, userID oadr.Identifier, cred auth.Credential, caller auth.RoleSet) error {
	if !caller.HasUserManager() {
		return fmt.Errorf("%w: only user managers manage credentials", ErrForbidden)
	}
	if cred.ClientID == "" || cred.ClientSecret == "" {
		return fmt.Errorf("%w: client id and secret must be non-empty", ErrBadRequest)
	}

	var exists int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE id = ?", userID.String()).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}

	var count int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM credentials WHERE client_id = ?", cred.ClientID).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: client id %q already exists", ErrConflict, cred.ClientID)
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO credentials (client_id, user_id, client_secret) VALUES (?, ?, ?)",
		cred.ClientID, userID.String(), cred.ClientSecret)
	return err
}

// DeleteCredential detaches a client id from a user.
func (s *Store) DeleteCredential(ctx context.Context, userID oadr.Identifier, clientID string, caller auth.RoleSet) error {
	if !caller.HasUserManager() {
		return fmt.Errorf("%w: only user managers manage credentials", ErrForbidden)
	}
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM credentials WHERE client_id = ? AND user_id = ?", clientID, userID.String())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: credential %q on user %s", ErrNotFound, clientID, userID)
	}
	return nil
}

// LookupCredential authenticates a client id/secret pair and returns the
// owning user's roles. The secret comparison is constant time; a wrong
// secret and an unknown client id are indistinguishable to the caller.
func (s *Store) LookupCredential(ctx context.Context, clientID, clientSecret string) (auth.RoleSet, error) {
	var storedSecret, rawRoles string
	err := s.db.QueryRowContext(ctx,
		"SELECT c.client_secret, u.roles FROM credentials c JOIN users u ON u.id = c.user_id WHERE c.client_id = ?",
		clientID).Scan(&storedSecret, &rawRoles)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: unknown client", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(storedSecret), []byte(clientSecret)) != 1 {
		return nil, fmt.Errorf("%w: unknown client", ErrNotFound)
	}
	roles, err := auth.ParseRoles(decodeRoles(rawRoles))
	if err != nil {
		return nil, fmt.Errorf("decode stored roles for client %s: %w", clientID, err)
	}
	return roles, nil
}

// BootstrapCredential seeds an all-powerful credential at startup when
// none exists yet, so a fresh deployment can mint its first token.
func (s *Store) BootstrapCredential(ctx context.Context, clientID, clientSecret string) error {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM credentials").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	manager := auth.RoleSet{auth.UserManager(), auth.VenManager(), auth.AnyBusiness()}
	user, err := s.CreateUser(ctx, auth.UserContent{
		Reference: "bootstrap-admin",
		Roles:     manager.Strings(),
	}, manager)
	if err != nil {
		return err
	}
	return s.AddCredential(ctx, user.ID, auth.Credential{ClientID: clientID, ClientSecret: clientSecret}, manager)
}

func (s *Store) userClientIDs(ctx context.Context, userID oadr.Identifier) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT client_id FROM credentials WHERE user_id = ? ORDER BY client_id", userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func encodeRoles(roles []string) string {
	return strings.Join(roles, ",")
}

func decodeRoles(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

func scanUser(row rowScanner) (*auth.User, error) {
	var (
		id, reference, rawRoles, createdAt, modifiedAt string
		description                                    sql.NullString
	)
	err := row.Scan(&id, &reference, &description, &rawRoles, &createdAt, &modifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u := &auth.User{
		ID:        oadr.Identifier(id),
		Reference: reference,
		Roles:     decodeRoles(rawRoles),
		ClientIDs: []string{},
	}
	if description.Valid {
		u.Description = &description.String
	}
	if u.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	if u.ModifiedAt, err = time.Parse(time.RFC3339Nano, modifiedAt); err != nil {
		return nil, err
	}
	return u, nil
}
