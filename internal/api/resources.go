// SPDX-License-Identifier: MIT

package api

import (
	"net/http"

	"github.com/gridlink/openadr3/internal/auth"
	"github.com/gridlink/openadr3/internal/oadr"
	"github.com/gridlink/openadr3/internal/store"
)

// Resource routes admit the manager or the VEN itself; the store checks
// which one the caller is against the path's ven id.

func (s *Server) handleListResources(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireRole(w, r, auth.RequireUser)
	if !ok {
		return
	}
	venID, err := pathID(r, "venID")
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error())
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

	resources, err := s.store.ListResources(r.Context(), venID, store.ResourceFilter{
		Pagination: pagination,
		Target:     target,
	}, caller.Roles)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resources)
}

func (s *Server) handleCreateResource(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireRole(w, r, auth.RequireUser)
	if !ok {
		return
	}
	venID, err := pathID(r, "venID")
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var content oadr.ResourceContent
	if !decodeBody(w, r, &content) {
		return
	}
	resource, err := s.store.CreateResource(r.Context(), venID, content, caller.Roles)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resource)
}

func (s *Server) handleGetResource(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireRole(w, r, auth.RequireUser)
	if !ok {
		return
	}
	venID, err := pathID(r, "venID")
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	id, err := pathID(r, "resourceID")
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	resource, err := s.store.GetResource(r.Context(), venID, id, caller.Roles)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resource)
}

func (s *Server) handleUpdateResource(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireRole(w, r, auth.RequireUser)
	if !ok {
		return
	}
	venID, err := pathID(r, "venID")
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	id, err := pathID(r, "resourceID")
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var content oadr.ResourceContent
	if !decodeBody(w, r, &content) {
		return
	}
	resource, err := s.store.UpdateResource(r.Context(), venID, id, content, caller.Roles)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resource)
}

func (s *Server) handleDeleteResource(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireRole(w, r, auth.RequireUser)
	if !ok {
		return
	}
	venID, err := pathID(r, "venID")
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	id, err := pathID(r, "resourceID")
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	resource, err := s.store.DeleteResource(r.Context(), venID, id, caller.Roles)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resource)
}
