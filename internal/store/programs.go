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

// ProgramFilter narrows a program list query.
type ProgramFilter struct {
	Pagination
	Target *TargetFilter
}

// resolveOwner derives the owning business id for a program write from
// the caller's role set: AnyBusiness owns nothing (NULL), a single
// Business role owns its id, anything else is a caller error.
func resolveOwner(caller auth.RoleSet) (*oadr.Identifier, error) {
	if caller.HasAnyBusiness() {
		return nil, nil
	}
	seen := map[oadr.Identifier]struct{}{}
	var ids []oadr.Identifier
	for _, id := range caller.BusinessIDs() {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	switch len(ids) {
	case 1:
		id := ids[0]
		return &id, nil
	case 0:
		return nil, fmt.Errorf("%w: caller holds no business role", ErrForbidden)
	default:
		return nil, fmt.Errorf("%w: caller must resolve to exactly one business id", ErrBadRequest)
	}
}

// CreateProgram persists a new program. VEN_NAME targets are split out
// of the content and materialized as program↔VEN assignments; an unknown
// ven name is a Conflict. The program row and the assignment rows are
// written in one transaction.
func (s *Store) CreateProgram(ctx context.Context, content oadr.ProgramContent, caller auth.RoleSet) (*oadr.Program, error) {
	if err := content.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBadRequest, err)
	}
	owner, err := resolveOwner(caller)
	if err != nil {
		return nil, err
	}

	venNames := content.VenNames()
	stored := content
	stored.Targets = content.NonVenTargets()
	stored.BusinessID = owner

	now := time.Now().UTC()
	program := &oadr.Program{
		ID:         oadr.NewUUIDIdentifier(),
		CreatedAt:  now,
		ModifiedAt: now,
		Content:    stored,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var count int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM programs WHERE program_name = ?", stored.ProgramName).Scan(&count); err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: program name %q already exists", ErrConflict, stored.ProgramName)
	}

	raw, err := json.Marshal(stored)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO programs (id, program_name, business_id, content, created_at, modified_at) VALUES (?, ?, ?, ?, ?, ?)",
		program.ID.String(), stored.ProgramName, identifierOrNil(owner), string(raw),
		now.Format(timeLayout), now.Format(timeLayout)); err != nil {
		return nil, err
	}

	if err := insertVenAssignments(ctx, tx, program.ID, venNames, ErrConflict); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return program, nil
}

// insertVenAssignments resolves ven names to ids and writes the
// program↔VEN relation. missingErr distinguishes create (Conflict) from
// update (BadRequest) semantics for unknown names.
func insertVenAssignments(ctx context.Context, tx *sql.Tx, programID oadr.Identifier, venNames []string, missingErr error) error {
	for _, name := range venNames {
		var venID string
		err := tx.QueryRowContext(ctx, "SELECT id FROM vens WHERE ven_name = ?", name).Scan(&venID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: ven %q does not exist", missingErr, name)
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO program_vens (program_id, ven_id) VALUES (?, ?)",
			programID.String(), venID); err != nil {
			return err
		}
	}
	return nil
}

func identifierOrNil(id *oadr.Identifier) any {
	if id == nil {
		return nil
	}
	return id.String()
}

// GetProgram retrieves one program. Programs hidden by the caller's role
// set are indistinguishable from missing ones.
func (s *Store) GetProgram(ctx context.Context, id oadr.Identifier, caller auth.RoleSet) (*oadr.Program, error) {
	vis := programVisibility(caller)
	args := append([]any{id.String()}, vis.args...)
	row := s.db.QueryRowContext(ctx,
		"SELECT p.id, p.content, p.created_at, p.modified_at FROM programs p WHERE p.id = ? AND "+vis.sql, args...)
	return scanProgram(row)
}

// ListPrograms returns the caller-visible programs matching the filter,
// ordered by creation time.
func (s *Store) ListPrograms(ctx context.Context, f ProgramFilter, caller auth.RoleSet) ([]oadr.Program, error) {
	vis := programVisibility(caller)
	where := []string{vis.sql}
	args := append([]any{}, vis.args...)

	if f.Target != nil {
		c, err := programTarget(*f.Target)
		if err != nil {
			return nil, err
		}
		where = append(where, c.sql)
		args = append(args, c.args...)
	}

	query := "SELECT p.id, p.content, p.created_at, p.modified_at FROM programs p WHERE " +
		strings.Join(where, " AND ") +
		" ORDER BY p.created_at, p.id LIMIT ? OFFSET ?"
	args = append(args, f.Limit, f.Skip)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	programs := []oadr.Program{}
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, err
		}
		programs = append(programs, *p)
	}
	return programs, rows.Err()
}

// UpdateProgram replaces a program's content. Only the owning business
// (or AnyBusiness) may update; the program↔VEN relation is rebuilt from
// the new VEN_NAME targets, and an unknown ven name is a BadRequest.
func (s *Store) UpdateProgram(ctx context.Context, id oadr.Identifier, content oadr.ProgramContent, caller auth.RoleSet) (*oadr.Program, error) {
	if err := content.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBadRequest, err)
	}

	existing, err := s.GetProgram(ctx, id, caller)
	if err != nil {
		return nil, err
	}
	if !caller.CanWriteBusiness(existing.Content.BusinessID) {
		return nil, fmt.Errorf("%w: caller does not own program %s", ErrForbidden, id)
	}

	venNames := content.VenNames()
	stored := content
	stored.Targets = content.NonVenTargets()
	stored.BusinessID = existing.Content.BusinessID

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var count int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM programs WHERE program_name = ? AND id != ?",
		stored.ProgramName, id.String()).Scan(&count); err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: program name %q already exists", ErrConflict, stored.ProgramName)
	}

	now := time.Now().UTC()
	raw, err := json.Marshal(stored)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE programs SET program_name = ?, content = ?, modified_at = ? WHERE id = ?",
		stored.ProgramName, string(raw), now.Format(timeLayout), id.String()); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM program_vens WHERE program_id = ?", id.String()); err != nil {
		return nil, err
	}
	if err := insertVenAssignments(ctx, tx, id, venNames, ErrBadRequest); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &oadr.Program{ID: id, CreatedAt: existing.CreatedAt, ModifiedAt: now, Content: stored}, nil
}

// DeleteProgram removes a program and, via cascade, its events, reports
// and VEN assignments. Only the owning business (or AnyBusiness) may
// delete.
func (s *Store) DeleteProgram(ctx context.Context, id oadr.Identifier, caller auth.RoleSet) (*oadr.Program, error) {
	existing, err := s.GetProgram(ctx, id, caller)
	if err != nil {
		return nil, err
	}
	if !caller.CanWriteBusiness(existing.Content.BusinessID) {
		return nil, fmt.Errorf("%w: caller does not own program %s", ErrForbidden, id)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM programs WHERE id = ?", id.String()); err != nil {
		return nil, err
	}
	return existing, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProgram(row rowScanner) (*oadr.Program, error) {
	var (
		id, raw, createdAt, modifiedAt string
	)
	err := row.Scan(&id, &raw, &createdAt, &modifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p := &oadr.Program{ID: oadr.Identifier(id)}
	if err := json.Unmarshal([]byte(raw), &p.Content); err != nil {
		return nil, fmt.Errorf("decode stored program %s: %w", id, err)
	}
	if p.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	if p.ModifiedAt, err = time.Parse(time.RFC3339Nano, modifiedAt); err != nil {
		return nil, err
	}
	return p, nil
}
