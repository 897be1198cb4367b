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

// EventFilter narrows an event list query.
type EventFilter struct {
	Pagination
	ProgramID *oadr.Identifier
	Target    *TargetFilter
}

// requireProgramWrite loads the referenced program without visibility
// filtering and checks the caller may author events under it.
func (s *Store) requireProgramWrite(ctx context.Context, programID oadr.Identifier, caller auth.RoleSet) error {
	var businessID sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT business_id FROM programs WHERE id = ?", programID.String()).Scan(&businessID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: program %s", ErrNotFound, programID)
	}
	if err != nil {
		return err
	}
	var owner *oadr.Identifier
	if businessID.Valid {
		id := oadr.Identifier(businessID.String)
		owner = &id
	}
	if !caller.CanWriteBusiness(owner) {
		return fmt.Errorf("%w: caller may not write events of program %s", ErrForbidden, programID)
	}
	return nil
}

// CreateEvent persists a new event under its program. The caller must
// have write permission on the referenced program.
func (s *Store) CreateEvent(ctx context.Context, content oadr.EventContent, caller auth.RoleSet) (*oadr.Event, error) {
	if err := content.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBadRequest, err)
	}
	if err := s.requireProgramWrite(ctx, content.ProgramID, caller); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	event := &oadr.Event{
		ID:         oadr.NewUUIDIdentifier(),
		CreatedAt:  now,
		ModifiedAt: now,
		Content:    content,
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO events (id, program_id, event_name, content, created_at, modified_at) VALUES (?, ?, ?, ?, ?, ?)",
		event.ID.String(), content.ProgramID.String(), stringOrNil(content.EventName), string(raw),
		now.Format(timeLayout), now.Format(timeLayout)); err != nil {
		return nil, err
	}
	return event, nil
}

func stringOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// GetEvent retrieves one event; visibility follows the enclosing
// program's visibility.
func (s *Store) GetEvent(ctx context.Context, id oadr.Identifier, caller auth.RoleSet) (*oadr.Event, error) {
	vis := programVisibility(caller)
	args := append([]any{id.String()}, vis.args...)
	row := s.db.QueryRowContext(ctx,
		"SELECT e.id, e.content, e.created_at, e.modified_at FROM events e"+
			" JOIN programs p ON p.id = e.program_id WHERE e.id = ? AND "+vis.sql, args...)
	return scanEvent(row)
}

// ListEvents returns the caller-visible events matching the filter.
func (s *Store) ListEvents(ctx context.Context, f EventFilter, caller auth.RoleSet) ([]oadr.Event, error) {
	vis := programVisibility(caller)
	where := []string{vis.sql}
	args := append([]any{}, vis.args...)

	if f.ProgramID != nil {
		where = append(where, "e.program_id = ?")
		args = append(args, f.ProgramID.String())
	}
	if f.Target != nil {
		c, err := eventTarget(*f.Target)
		if err != nil {
			return nil, err
		}
		where = append(where, c.sql)
		args = append(args, c.args...)
	}

	query := "SELECT e.id, e.content, e.created_at, e.modified_at FROM events e" +
		" JOIN programs p ON p.id = e.program_id WHERE " +
		strings.Join(where, " AND ") +
		" ORDER BY e.created_at, e.id LIMIT ? OFFSET ?"
	args = append(args, f.Limit, f.Skip)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []oadr.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// UpdateEvent replaces an event's content. Moving an event to another
// program requires write permission on both the old and the new program.
// Event names are not unique; no collision check is performed.
func (s *Store) UpdateEvent(ctx context.Context, id oadr.Identifier, content oadr.EventContent, caller auth.RoleSet) (*oadr.Event, error) {
	if err := content.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBadRequest, err)
	}

	existing, err := s.GetEvent(ctx, id, caller)
	if err != nil {
		return nil, err
	}
	if err := s.requireProgramWrite(ctx, existing.Content.ProgramID, caller); err != nil {
		return nil, err
	}
	if content.ProgramID != existing.Content.ProgramID {
		if err := s.requireProgramWrite(ctx, content.ProgramID, caller); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx,
		"UPDATE events SET program_id = ?, event_name = ?, content = ?, modified_at = ? WHERE id = ?",
		content.ProgramID.String(), stringOrNil(content.EventName), string(raw),
		now.Format(timeLayout), id.String()); err != nil {
		return nil, err
	}
	return &oadr.Event{ID: id, CreatedAt: existing.CreatedAt, ModifiedAt: now, Content: content}, nil
}

// DeleteEvent removes an event. The caller must have write permission on
// the enclosing program.
func (s *Store) DeleteEvent(ctx context.Context, id oadr.Identifier, caller auth.RoleSet) (*oadr.Event, error) {
	existing, err := s.GetEvent(ctx, id, caller)
	if err != nil {
		return nil, err
	}
	if err := s.requireProgramWrite(ctx, existing.Content.ProgramID, caller); err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM events WHERE id = ?", id.String()); err != nil {
		return nil, err
	}
	return existing, nil
}

func scanEvent(row rowScanner) (*oadr.Event, error) {
	var id, raw, createdAt, modifiedAt string
	err := row.Scan(&id, &raw, &createdAt, &modifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	e := &oadr.Event{ID: oadr.Identifier(id)}
	if err := json.Unmarshal([]byte(raw), &e.Content); err != nil {
		return nil, fmt.Errorf("decode stored event %s: %w", id, err)
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	if e.ModifiedAt, err = time.Parse(time.RFC3339Nano, modifiedAt); err != nil {
		return nil, err
	}
	return e, nil
}
