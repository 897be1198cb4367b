// SPDX-License-Identifier: MIT

package api

import (
	"net/http"

	"github.com/gridlink/openadr3/internal/auth"
	"github.com/gridlink/openadr3/internal/oadr"
	"github.com/gridlink/openadr3/internal/store"
)

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
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

	events, err := s.store.ListEvents(r.Context(), store.EventFilter{
		Pagination: pagination,
		ProgramID:  programID,
		Target:     target,
	}, caller.Roles)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireRole(w, r, auth.RequireBusinessUser)
	if !ok {
		return
	}
	var content oadr.EventContent
	if !decodeBody(w, r, &content) {
		return
	}
	event, err := s.store.CreateEvent(r.Context(), content, caller.Roles)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireRole(w, r, auth.RequireUser)
	if !ok {
		return
	}
	id, err := pathID(r, "eventID")
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	event, err := s.store.GetEvent(r.Context(), id, caller.Roles)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireRole(w, r, auth.RequireBusinessUser)
	if !ok {
		return
	}
	id, err := pathID(r, "eventID")
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var content oadr.EventContent
	if !decodeBody(w, r, &content) {
		return
	}
	event, err := s.store.UpdateEvent(r.Context(), id, content, caller.Roles)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireRole(w, r, auth.RequireBusinessUser)
	if !ok {
		return
	}
	id, err := pathID(r, "eventID")
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	event, err := s.store.DeleteEvent(r.Context(), id, caller.Roles)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}
