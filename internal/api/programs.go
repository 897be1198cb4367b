// SPDX-License-Identifier: MIT

package api

import (
	"net/http"

	"github.com/gridlink/openadr3/internal/auth"
	"github.com/gridlink/openadr3/internal/oadr"
	"github.com/gridlink/openadr3/internal/store"
)

func (s *Server) handleListPrograms(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireRole(w, r, auth.RequireUser)
	if !ok {
		return
	}
	pagination, err := parsePagination(r.URL.Query())
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	target, err := parseTargetFilter(r.URL.Query())
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}

	programs, err := s.store.ListPrograms(r.Context(), store.ProgramFilter{
		Pagination: pagination,
		Target:     target,
	}, caller.Roles)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, programs)
}

func (s *Server) handleCreateProgram(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireRole(w, r, auth.RequireBusinessUser)
	if !ok {
		return
	}
	var content oadr.ProgramContent
	if !decodeBody(w, r, &content) {
		return
	}
	program, err := s.store.CreateProgram(r.Context(), content, caller.Roles)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, program)
}

func (s *Server) handleGetProgram(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireRole(w, r, auth.RequireUser)
	if !ok {
		return
	}
	id, err := pathID(r, "programID")
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	program, err := s.store.GetProgram(r.Context(), id, caller.Roles)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, program)
}

func (s *Server) handleUpdateProgram(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireRole(w, r, auth.RequireBusinessUser)
	if !ok {
		return
	}
	id, err := pathID(r, "programID")
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var content oadr.ProgramContent
	if !decodeBody(w, r, &content) {
		return
	}
	program, err := s.store.UpdateProgram(r.Context(), id, content, caller.Roles)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, program)
}

func (s *Server) handleDeleteProgram(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireRole(w, r, auth.RequireBusinessUser)
	if !ok {
		return
	}
	id, err := pathID(r, "programID")
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	program, err := s.store.DeleteProgram(r.Context(), id, caller.Roles)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, program)
}
