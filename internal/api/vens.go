// SPDX-License-Identifier: MIT

package api

import (
	"net/http"

	"github.com/gridlink/openadr3/internal/auth"
	"github.com/gridlink/openadr3/internal/oadr"
	"github.com/gridlink/openadr3/internal/store"
)

func (s *Server) handleListVens(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireRole(w, r, auth.RequireVenManager)
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

	vens, err := s.store.ListVens(r.Context(), store.VenFilter{
		Pagination: pagination,
		Target:     target,
	}, caller.Roles)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vens)
}

func (s *Server) handleCreateVen(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireRole(w, r, auth.RequireVenManager)
	if !ok {
		return
	}
	var content oadr.VenContent
	if !decodeBody(w, r, &content) {
		return
	}
	ven, err := s.store.CreateVen(r.Context(), content, caller.Roles)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ven)
}

// A VEN may fetch itself; everything else needs the manager role. The
// store's visibility clause makes the distinction.
func (s *Server) handleGetVen(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireRole(w, r, auth.RequireUser)
	if !ok {
		return
	}
	id, err := pathID(r, "venID")
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ven, err := s.store.GetVen(r.Context(), id, caller.Roles)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ven)
}

func (s *Server) handleUpdateVen(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireRole(w, r, auth.RequireVenManager)
	if !ok {
		return
	}
	id, err := pathID(r, "venID")
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var content oadr.VenContent
	if !decodeBody(w, r, &content) {
		return
	}
	ven, err := s.store.UpdateVen(r.Context(), id, content, caller.Roles)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ven)
}

func (s *Server) handleDeleteVen(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireRole(w, r, auth.RequireVenManager)
	if !ok {
		return
	}
	id, err := pathID(r, "venID")
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ven, err := s.store.DeleteVen(r.Context(), id, caller.Roles)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ven)
}
