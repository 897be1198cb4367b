// SPDX-License-Identifier: MIT

package api

import (
	"net/http"

	"github.com/gridlink/openadr3/internal/auth"
	"github.com/gridlink/openadr3/internal/oadr"
	"github.com/gridlink/openadr3/internal/store"
)

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireRole(w, r, auth.RequireUser)
	if !ok {
		return
	}
	q := r.URL.Query()
	pagination, err := parsePagination(q)
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	target, err := parseTargetFilter(q)
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	programID, err := optionalID(q, "programID")
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	eventID, err := optionalID(q, "eventID")
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var clientName *string
	if raw := q.Get("clientName"); raw != "" {
		clientName = &raw
	}

	reports, err := s.store.ListReports(r.Context(), store.ReportFilter{
		Pagination: pagination,
		ProgramID:  programID,
		EventID:    eventID,
		ClientName: clientName,
		Target:     target,
	}, caller.Roles)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireRole(w, r, auth.RequireVenUser)
	if !ok {
		return
	}
	var content oadr.ReportContent
	if !decodeBody(w, r, &content) {
		return
	}
	report, err := s.store.CreateReport(r.Context(), content, caller.Roles)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireRole(w, r, auth.RequireUser)
	if !ok {
		return
	}
	id, err := pathID(r, "reportID")
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	report, err := s.store.GetReport(r.Context(), id, caller.Roles)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleUpdateReport(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireRole(w, r, auth.RequireVenUser)
	if !ok {
		return
	}
	id, err := pathID(r, "reportID")
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var content oadr.ReportContent
	if !decodeBody(w, r, &content) {
		return
	}
	report, err := s.store.UpdateReport(r.Context(), id, content, caller.Roles)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Report deletion is a business-user operation on owned programs; the
// submitting VEN cannot delete its own report.
func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireRole(w, r, auth.RequireBusinessUser)
	if !ok {
		return
	}
	id, err := pathID(r, "reportID")
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	report, err := s.store.DeleteReport(r.Context(), id, caller.Roles)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
