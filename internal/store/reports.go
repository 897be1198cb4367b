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

// ReportFilter narrows a report list query. Target filtering on reports
// is not part of the protocol surface; passing one yields NotImplemented.
type ReportFilter struct {
	Pagination
	ProgramID  *oadr.Identifier
	EventID    *oadr.Identifier
	ClientName *string
	Target     *TargetFilter
}

// requireReportWrite checks the caller may submit reports under the
// given program: if the program has VEN assignments the caller must hold
// one of the assigned VEN roles; an unrestricted program accepts any VEN.
func (s *Store) requireReportWrite(ctx context.Context, programID oadr.Identifier, caller auth.RoleSet) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT ven_id FROM program_vens WHERE program_id = ?", programID.String())
	if err != nil {
		return err
	}
	defer rows.Close()

	restricted := false
	for rows.Next() {
		restricted = true
		var venID string
		if err := rows.Scan(&venID); err != nil {
			return err
		}
		if caller.HasVen(oadr.Identifier(venID)) {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if restricted {
		return fmt.Errorf("%w: caller is not a VEN assigned to program %s", ErrForbidden, programID)
	}
	return nil
}

// CreateReport persists a new report. The declared event must belong to
// the declared program; when the program restricts VENs, only assigned
// VENs may submit.
func (s *Store) CreateReport(ctx context.Context, content oadr.ReportContent, caller auth.RoleSet) (*oadr.Report, error) {
	if err := content.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBadRequest, err)
	}

	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM programs WHERE id = ?", content.ProgramID.String()).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: program %s", ErrNotFound, content.ProgramID)
	}

	var eventProgram string
	err = s.db.QueryRowContext(ctx,
		"SELECT program_id FROM events WHERE id = ?", content.EventID.String()).Scan(&eventProgram)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: event %s", ErrNotFound, content.EventID)
	}
	if err != nil {
		return nil, err
	}
	if eventProgram != content.ProgramID.String() {
		return nil, fmt.Errorf("%w: event %s does not belong to program %s", ErrBadRequest, content.EventID, content.ProgramID)
	}

	if err := s.requireReportWrite(ctx, content.ProgramID, caller); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	report := &oadr.Report{
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
		"INSERT INTO reports (id, program_id, event_id, client_name, content, created_at, modified_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		report.ID.String(), content.ProgramID.String(), content.EventID.String(), content.ClientName,
		string(raw), now.Format(timeLayout), now.Format(timeLayout)); err != nil {
		return nil, err
	}
	return report, nil
}

// GetReport retrieves one report; visibility follows the enclosing
// program's visibility.
func (s *Store) GetReport(ctx context.Context, id oadr.Identifier, caller auth.RoleSet) (*oadr.Report, error) {
	vis := programVisibility(caller)
	args := append([]any{id.String()}, vis.args...)
	row := s.db.QueryRowContext(ctx,
		"SELECT r.id, r.content, r.created_at, r.modified_at FROM reports r"+
			" JOIN programs p ON p.id = r.program_id WHERE r.id = ? AND "+vis.sql, args...)
	return scanReport(row)
}

// ListReports returns the caller-visible reports matching the filter.
func (s *Store) ListReports(ctx context.Context, f ReportFilter, caller auth.RoleSet) ([]oadr.Report, error) {
	if f.Target != nil {
		return nil, fmt.Errorf("%w: target filtering on reports", ErrNotImplemented)
	}

	vis := programVisibility(caller)
	where := []string{vis.sql}
	args := append([]any{}, vis.args...)

	if f.ProgramID != nil {
		where = append(where, "r.program_id = ?")
		args = append(args, f.ProgramID.String())
	}
	if f.EventID != nil {
		where = append(where, "r.event_id = ?")
		args = append(args, f.EventID.String())
	}
	if f.ClientName != nil {
		where = append(where, "r.client_name = ?")
		args = append(args, *f.ClientName)
	}

	query := "SELECT r.id, r.content, r.created_at, r.modified_at FROM reports r" +
		" JOIN programs p ON p.id = r.program_id WHERE " +
		strings.Join(where, " AND ") +
		" ORDER BY r.created_at, r.id LIMIT ? OFFSET ?"
	args = append(args, f.Limit, f.Skip)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := []oadr.Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}
	return reports, rows.Err()
}

// UpdateReport replaces a report's content under the same rules as
// creation.
func (s *Store) UpdateReport(ctx context.Context, id oadr.Identifier, content oadr.ReportContent, caller auth.RoleSet) (*oadr.Report, error) {
	if err := content.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBadRequest, err)
	}
	existing, err := s.GetReport(ctx, id, caller)
	if err != nil {
		return nil, err
	}
	if err := s.requireReportWrite(ctx, existing.Content.ProgramID, caller); err != nil {
		return nil, err
	}

	var eventProgram string
	err = s.db.QueryRowContext(ctx,
		"SELECT program_id FROM events WHERE id = ?", content.EventID.String()).Scan(&eventProgram)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: event %s", ErrNotFound, content.EventID)
	}
	if err != nil {
		return nil, err
	}
	if eventProgram != content.ProgramID.String() {
		return nil, fmt.Errorf("%w: event %s does not belong to program %s", ErrBadRequest, content.EventID, content.ProgramID)
	}

	now := time.Now().UTC()
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx,
		"UPDATE reports SET program_id = ?, event_id = ?, client_name = ?, content = ?, modified_at = ? WHERE id = ?",
		content.ProgramID.String(), content.EventID.String(), content.ClientName,
		string(raw), now.Format(timeLayout), id.String()); err != nil {
		return nil, err
	}
	return &oadr.Report{ID: id, CreatedAt: existing.CreatedAt, ModifiedAt: now, Content: content}, nil
}

// DeleteReport removes a report. Deletion is a business-user operation
// on owned programs; the VEN that submitted the report cannot delete it.
func (s *Store) DeleteReport(ctx context.Context, id oadr.Identifier, caller auth.RoleSet) (*oadr.Report, error) {
	existing, err := s.GetReport(ctx, id, caller)
	if err != nil {
		return nil, err
	}
	if err := s.requireProgramWrite(ctx, existing.Content.ProgramID, caller); err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM reports WHERE id = ?", id.String()); err != nil {
		return nil, err
	}
	return existing, nil
}

func scanReport(row rowScanner) (*oadr.Report, error) {
	var id, raw, createdAt, modifiedAt string
	err := row.Scan(&id, &raw, &createdAt, &modifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r := &oadr.Report{ID: oadr.Identifier(id)}
	if err := json.Unmarshal([]byte(raw), &r.Content); err != nil {
		return nil, fmt.Errorf("decode stored report %s: %w", id, err)
	}
	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	if r.ModifiedAt, err = time.Parse(time.RFC3339Nano, modifiedAt); err != nil {
		return nil, err
	}
	return r, nil
}
