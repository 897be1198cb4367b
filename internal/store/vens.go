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

// VenFilter narrows a VEN list query.
type VenFilter struct {
	Pagination
	Target *TargetFilter
}

// venVisibility compiles the caller's role set into a WHERE fragment
// over the vens table (alias v): managers see every VEN, a VEN sees
// itself.
func venVisibility(caller auth.RoleSet) cond {
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
	return cond{sql: fmt.Sprintf("v.id IN (%s)", placeholders(len(venIDs))), args: args}
}

// CreateVen persists a new VEN. The ven name is unique.
func (s *Store) CreateVen(ctx context.Context, content oadr.VenContent, caller auth.RoleSet) (*oadr.Ven, error) {
	if err := content.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBadRequest, err)
	}
	if !caller.HasVenManager() {
		return nil, fmt.Errorf("%w: only VEN managers create VENs", ErrForbidden)
	}

	var count int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM vens WHERE ven_name = ?", content.VenName).Scan(&count); err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: ven name %q already exists", ErrConflict, content.VenName)
	}

	now := time.Now().UTC()
	ven := &oadr.Ven{
		ID:         oadr.NewUUIDIdentifier(),
		CreatedAt:  now,
		ModifiedAt: now,
		Content:    content,
		Resources:  []oadr.Resource{},
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO vens (id, ven_name, content, created_at, modified_at) VALUES (?, ?, ?, ?, ?)",
		ven.ID.String(), content.VenName, string(raw),
		now.Format(timeLayout), now.Format(timeLayout)); err != nil {
		return nil, err
	}
	return ven, nil
}

// GetVen retrieves one VEN with its resources. A VEN may retrieve
// itself; managers may retrieve any.
func (s *Store) GetVen(ctx context.Context, id oadr.Identifier, caller auth.RoleSet) (*oadr.Ven, error) {
	vis := venVisibility(caller)
	args := append([]any{id.String()}, vis.args...)
	row := s.db.QueryRowContext(ctx,
		"SELECT v.id, v.content, v.created_at, v.modified_at FROM vens v WHERE v.id = ? AND "+vis.sql, args...)
	ven, err := scanVen(row)
	if err != nil {
		return nil, err
	}
	if ven.Resources, err = s.venResources(ctx, ven.ID); err != nil {
		return nil, err
	}
	return ven, nil
}

// ListVens returns the caller-visible VENs matching the filter.
func (s *Store) ListVens(ctx context.Context, f VenFilter, caller auth.RoleSet) ([]oadr.Ven, error) {
	vis := venVisibility(caller)
	where := []string{vis.sql}
	args := append([]any{}, vis.args...)

	if f.Target != nil {
		c, err := venTarget(*f.Target)
		if err != nil {
			return nil, err
		}
		where = append(where, c.sql)
		args = append(args, c.args...)
	}

	query := "SELECT v.id, v.content, v.created_at, v.modified_at FROM vens v WHERE " +
		strings.Join(where, " AND ") +
		" ORDER BY v.created_at, v.id LIMIT ? OFFSET ?"
	args = append(args, f.Limit, f.Skip)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	vens := []oadr.Ven{}
	for rows.Next() {
		v, err := scanVen(rows)
		if err != nil {
			return nil, err
		}
		vens = append(vens, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range vens {
		if vens[i].Resources, err = s.venResources(ctx, vens[i].ID); err != nil {
			return nil, err
		}
	}
	return vens, nil
}

// UpdateVen replaces a VEN's content; manager-only.
func (s *Store) UpdateVen(ctx context.Context, id oadr.Identifier, content oadr.VenContent, caller auth.RoleSet) (*oadr.Ven, error) {
	if err := content.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBadRequest, err)
	}
	if !caller.HasVenManager() {
		return nil, fmt.Errorf("%w: only VEN managers update VENs", ErrForbidden)
	}
	existing, err := s.GetVen(ctx, id, caller)
	if err != nil {
		return nil, err
	}

	var count int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM vens WHERE ven_name = ? AND id != ?", content.VenName, id.String()).Scan(&count); err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: ven name %q already exists", ErrConflict, content.VenName)
	}

	now := time.Now().UTC()
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx,
		"UPDATE vens SET ven_name = ?, content = ?, modified_at = ? WHERE id = ?",
		content.VenName, string(raw), now.Format(timeLayout), id.String()); err != nil {
		return nil, err
	}
	return &oadr.Ven{ID: id, CreatedAt: existing.CreatedAt, ModifiedAt: now, Content: content, Resources: existing.Resources}, nil
}

// DeleteVen removes a VEN; manager-only, and forbidden while any
// resource still references it.
func (s *Store) DeleteVen(ctx context.Context, id oadr.Identifier, caller auth.RoleSet) (*oadr.Ven, error) {
	if !caller.HasVenManager() {
		return nil, fmt.Errorf("%w: only VEN managers delete VENs", ErrForbidden)
	}
	existing, err := s.GetVen(ctx, id, caller)
	if err != nil {
		return nil, err
	}
	if len(existing.Resources) > 0 {
		return nil, fmt.Errorf("%w: ven %s still has %d resources", ErrForbidden, id, len(existing.Resources))
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM vens WHERE id = ?", id.String()); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *Store) venResources(ctx context.Context, venID oadr.Identifier) ([]oadr.Resource, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT r.id, r.ven_id, r.content, r.created_at, r.modified_at FROM resources r WHERE r.ven_id = ? ORDER BY r.created_at, r.id",
		venID.String())
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

func scanVen(row rowScanner) (*oadr.Ven, error) {
	var id, raw, createdAt, modifiedAt string
	err := row.Scan(&id, &raw, &createdAt, &modifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	v := &oadr.Ven{ID: oadr.Identifier(id)}
	if err := json.Unmarshal([]byte(raw), &v.Content); err != nil {
		return nil, fmt.Errorf("decode stored ven %s: %w", id, err)
	}
	if v.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	if v.ModifiedAt, err = time.Parse(time.RFC3339Nano, modifiedAt); err != nil {
		return nil, err
	}
	return v, nil
}
