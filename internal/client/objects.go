// SPDX-License-Identifier: MIT

package client

import (
	"context"
	"net/http"

	"github.com/gridlink/openadr3/internal/oadr"
)

// GetPrograms lists one page of programs.
func (c *Client) GetPrograms(ctx context.Context, page Page, target *Target) ([]oadr.Program, error) {
	var out []oadr.Program
	if err := c.do(ctx, http.MethodGet, "programs", listQuery(page, target), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetAllPrograms walks pages with increasing skip until a short page.
func (c *Client) GetAllPrograms(ctx context.Context, target *Target) ([]oadr.Program, error) {
	var all []oadr.Program
	page := DefaultPage()
	for {
		batch, err := c.GetPrograms(ctx, page, target)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if int64(len(batch)) < page.Limit {
			return all, nil
		}
		page.Skip += page.Limit
	}
}

// GetProgramByID fetches one program.
func (c *Client) GetProgramByID(ctx context.Context, id oadr.Identifier) (*ProgramHandle, error) {
	var p oadr.Program
	if err := c.do(ctx, http.MethodGet, "programs/"+id.String(), nil, nil, &p); err != nil {
		return nil, err
	}
	return &ProgramHandle{client: c, Program: p}, nil
}

// GetProgramByName resolves a program by its unique name. Zero matches
// is ErrObjectNotFound; the limit=2 request makes a duplicate
// detectable without paging.
func (c *Client) GetProgramByName(ctx context.Context, name string) (*ProgramHandle, error) {
	programs, err := c.GetPrograms(ctx, Page{Skip: 0, Limit: 2},
		&Target{Type: string(oadr.TargetProgramName), Values: []string{name}})
	if err != nil {
		return nil, err
	}
	switch len(programs) {
	case 0:
		return nil, ErrObjectNotFound
	case 1:
		return &ProgramHandle{client: c, Program: programs[0]}, nil
	default:
		return nil, ErrDuplicateObject
	}
}

// CreateProgram creates a program and returns its handle.
func (c *Client) CreateProgram(ctx context.Context, content oadr.ProgramContent) (*ProgramHandle, error) {
	var p oadr.Program
	if err := c.do(ctx, http.MethodPost, "programs", nil, content, &p); err != nil {
		return nil, err
	}
	return &ProgramHandle{client: c, Program: p}, nil
}

// ProgramHandle scopes event operations to one program.
type ProgramHandle struct {
	client  *Client
	Program oadr.Program
}

// GetEvents lists one page of the program's events.
func (h *ProgramHandle) GetEvents(ctx context.Context, page Page, target *Target) ([]oadr.Event, error) {
	q := listQuery(page, target)
	q.Set("programID", h.Program.ID.String())
	var out []oadr.Event
	if err := h.client.do(ctx, http.MethodGet, "events", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetAllEvents walks all event pages of the program.
func (h *ProgramHandle) GetAllEvents(ctx context.Context, target *Target) ([]oadr.Event, error) {
	var all []oadr.Event
	page := DefaultPage()
	for {
		batch, err := h.GetEvents(ctx, page, target)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if int64(len(batch)) < page.Limit {
			return all, nil
		}
		page.Skip += page.Limit
	}
}

// CreateEvent creates an event under this program. A content whose
// program id names a different program is rejected client-side.
func (h *ProgramHandle) CreateEvent(ctx context.Context, content oadr.EventContent) (*EventHandle, error) {
	if content.ProgramID == "" {
		content.ProgramID = h.Program.ID
	}
	if content.ProgramID != h.Program.ID {
		return nil, ErrInvalidParentObject
	}
	var e oadr.Event
	if err := h.client.do(ctx, http.MethodPost, "events", nil, content, &e); err != nil {
		return nil, err
	}
	return &EventHandle{client: h.client, Event: e}, nil
}

// GetEventByID fetches one event.
func (c *Client) GetEventByID(ctx context.Context, id oadr.Identifier) (*EventHandle, error) {
	var e oadr.Event
	if err := c.do(ctx, http.MethodGet, "events/"+id.String(), nil, nil, &e); err != nil {
		return nil, err
	}
	return &EventHandle{client: c, Event: e}, nil
}

// EventHandle scopes report operations to one event.
type EventHandle struct {
	client *Client
	Event  oadr.Event
}

// CreateReport submits a report under this event. Mismatched parent
// references are rejected client-side.
func (h *EventHandle) CreateReport(ctx context.Context, content oadr.ReportContent) (*ReportHandle, error) {
	if content.EventID == "" {
		content.EventID = h.Event.ID
	}
	if content.ProgramID == "" {
		content.ProgramID = h.Event.Content.ProgramID
	}
	if content.EventID != h.Event.ID || content.ProgramID != h.Event.Content.ProgramID {
		return nil, ErrInvalidParentObject
	}
	var rep oadr.Report
	if err := h.client.do(ctx, http.MethodPost, "reports", nil, content, &rep); err != nil {
		return nil, err
	}
	return &ReportHandle{client: h.client, Report: rep}, nil
}

// GetReports lists one page of the event's reports.
func (h *EventHandle) GetReports(ctx context.Context, page Page) ([]oadr.Report, error) {
	q := listQuery(page, nil)
	q.Set("eventID", h.Event.ID.String())
	var out []oadr.Report
	if err := h.client.do(ctx, http.MethodGet, "reports", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetAllReports walks all report pages of the event.
func (h *EventHandle) GetAllReports(ctx context.Context) ([]oadr.Report, error) {
	var all []oadr.Report
	page := DefaultPage()
	for {
		batch, err := h.GetReports(ctx, page)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if int64(len(batch)) < page.Limit {
			return all, nil
		}
		page.Skip += page.Limit
	}
}

// ReportHandle wraps a submitted report.
type ReportHandle struct {
	client *Client
	Report oadr.Report
}
