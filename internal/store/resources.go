// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gridlink/openadr3/internal/auth"
	"github.com/gridlink/openadr3/internal/oadr"
)

// ResourceFilter narrows a resource list query under one VEN.
type ResourceFilter struct {
	Pagination
	Target *TargetFilter
}

// resourceVisibility compiles the caller's role set into a WHERE
// fragment over the resources table (alias r). Resources inherit their
// VEN's visibility.
func resourceVisibility(caller auth.RoleSet) cond {
	if caller.HasVenManager() {
		return cond{sql: "1=1"}
	}
	venIDs := caller.VenIDs()
	if len(venIDs) == 0 {
		return cond{sql: "0=1"}
	}
	args := make([]any, len(venIDs))
	for i, id := range venIDs {
		args[i] = id.String()
	}
	return cond{sql: fmt.Sprintf("r.ven_id IN (%s)", placeholders(len(venIDs))), args: args}
}

// requireVenWrite checks the caller may manage resources of the given
// VEN: the manager role or the VEN's own role.
func (s *Store) requireVenWrite(ctx context.Context, venID oadr.Identifier, caller auth.RoleSet) error {
	var exists int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM vens WHERE id = ?", venID.String()).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("%w: ven %s", ErrNotFound, venID)
	}
	if !caller.HasVenManager() && !caller.HasVen(venID) {
		return fmt.Errorf("%w: caller may not manage resources of ven %s", ErrForbidden, venID)
	}
	return nil
}

// CreateResource persists a new resource under a VEN.
func (s *Store) CreateResource(ctx context.Context, venID oadr.Identifier, content oadr.ResourceContent, caller auth.RoleSet) (*oadr.Resource, error) {
	if err := content.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBadRequest, err)
	}
	if err := s.requireVenWrite(ctx, venID, caller); err != nil {
		return nil, err
	}

	var count int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM resources WHERE ven_id = ? AND resource_name = ?",
		venID.String(), content.ResourceName).Scan(&count); err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: resource name %q already exists on ven %s", ErrConflict, content.ResourceName, venID)
	}

	now := time.Now().UTC()
	resource := &oadr.Resource{
		ID:         oadr.NewUUIDIdentifier(),
		VenID:      venID,
		CreatedAt:  now,
		ModifiedAt: now,
		Content:    content,
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO resources (id, ven_id, resource_name, content, created_at, modified_at) VALUES (?, ?, ?, ?, ?, ?)",
		resource.ID.String(), venID.String(), content.ResourceName, string(raw),
		now.Format(timeLayout), now.Format(timeLayout)); err != nil {
		return nil, err
	}
	return resource, nil
}

// GetResource retrieves one resource under a VEN. The (ven, resource)
// pair must match; a resource reached through the wrong VEN is NotFound.
func (s *Store) GetResource(ctx context.Context, venID, id oadr.Identifier, caller auth.RoleSet) (*oadr.Resource, error) {
	vis := resourceVisibility(caller)
	args := append([]any{id.String(), venID.String()}, vis.args...)
	row := s.db.QueryRowContext(ctx,
		"SELECT r.id, r.ven_id, r.content, r.created_at, r.modified_at FROM resources r"+
			" WHERE r.id = ? AND r.ven_id = ? AND "+vis.sql, args...)
	return scanResource(row)
}

// ListResources returns the caller-visible resources of one VEN.
func (s *Store) ListResources(ctx context.Context, venID oadr.Identifier, f ResourceFilter, caller auth.RoleSet) ([]oadr.Resource, error) {
	if _, err := s.GetVen(ctx, venID, caller); err != nil {
		return nil, err
	}

	vis := resourceVisibility(caller)
	where := []string{"r.ven_id = ?", vis.sql}
	args := append([]any{venID.String()}, vis.args...)

	if f.Target != nil {
		c, err := resourceTarget(*f.Target)
		if err != nil {
			return nil, err
		}
		where = append(where, c.sql)
		args = append(args, c.args...)
	}

	query := "SELECT r.id, r.ven_id, r.content, r.created_at, r.modified_at FROM resources r WHERE " +
		strings.Join(where, " AND ") +
		" ORDER BY r.created_at, r.id LIMIT ? OFFSET ?"
	args = append(args, f.Limit, f.Skip)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	resources := []oadr.Resource{}
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		resources = append(resources, *r)
	}
	return resources, rows.Err()
}

// UpdateResource replaces a resource's content.
func (s *Store) UpdateResource(ctx context.Context, venID, id oadr.Identifier, content oadr.ResourceContent, caller auth.RoleSet) (*oadr.Resource, error) {
	if err := content.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBadRequest, err)
	}
	if err := s.requireVenWrite(ctx, venID, caller); err != nil {
		return nil, err
	}
	existing, err := s.GetResource(ctx, venID, id, caller)
	if err != nil {
		return nil, err
	}

	var count int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM resources WHERE ven_id = ? AND resource_name = ? AND id != ?",
		venID.String(), content.ResourceName, id.String()).Scan(&count); err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: resource name %q already exists on ven %s", ErrConflict, content.ResourceName, venID)
	}

	now := time.Now().UTC()
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx,
		"UPDATE resources SET resource_name = ?, content = ?, modified_at = ? WHERE id = ?",
		content.ResourceName, string(raw), now.Format(timeLayout), id.String()); err != nil {
		return nil, err
	}
	return &oadr.Resource{ID: id, VenID: venID, CreatedAt: existing.CreatedAt, ModifiedAt: now, Content: content}, nil
}

// DeleteResource removes a resource.
func (s *Store) DeleteResource(ctx context.Context, venID, id oadr.Identifier, caller auth.RoleSet) (*oadr.Resource, error) {
	if err := s.requireVenWrite(ctx, venID, caller); err != nil {
		return nil, err
	}
	existing, err := s.GetResource(ctx, venID, id, caller)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM resources WHERE id = ?", id.String()); err != nil {
		return nil, err
	}
	return existing, nil
}

func scanResource(row rowScanner) (*oadr.Resource, error) {
	var id, venID, raw, createdAt, modifiedAt string
	err := row.Scan(&id, &venID, &raw, &createdAt, &modifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r := &oadr.Resource{ID: oadr.Identifier(id), VenID: oadr.Identifier(venID)}
	if err := json.Unmarshal([]byte(raw), &r.Content); err != nil {
		return nil, fmt.Errorf("decode stored resource %s: %w", id, err)
	}
	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	if r.ModifiedAt, err = time.Parse(time.RFC3339Nano, modifiedAt); err != nil {
		return nil, err
	}
	return r, nil
}
