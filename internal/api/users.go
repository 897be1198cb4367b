// SPDX-License-Identifier: MIT

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gridlink/openadr3/internal/auth"
	"github.com/gridlink/openadr3/internal/store"
)

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireRole(w, r, auth.RequireUserManager)
	if !ok {
		return
	}
	pagination, err := parsePagination(r.URL.Query())
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	users, err := s.store.ListUsers(r.Context(), store.UserFilter{Pagination: pagination}, caller.Roles)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireRole(w, r, auth.RequireUserManager)
	if !ok {
		return
	}
	var content auth.UserContent
	if !decodeBody(w, r, &content) {
		return
	}
	user, err := s.store.CreateUser(r.Context(), content, caller.Roles)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireRole(w, r, auth.RequireUserManager)
	if !ok {
		return
	}
	id, err := pathID(r, "userID")
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := s.store.GetUser(r.Context(), id, caller.Roles)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireRole(w, r, auth.RequireUserManager)
	if !ok {
		return
	}
	id, err := pathID(r, "userID")
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var content auth.UserContent
	if !decodeBody(w, r, &content) {
		return
	}
	user, err := s.store.UpdateUser(r.Context(), id, content, caller.Roles)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireRole(w, r, auth.RequireUserManager)
	if !ok {
		return
	}
	id, err := pathID(r, "userID")
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := s.store.DeleteUser(r.Context(), id, caller.Roles)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// POST /users/{id} attaches a new client credential to the user.
func (s *Server) handleAddCredential(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireRole(w, r, auth.RequireUserManager)
	if !ok {
		return
	}
	id, err := pathID(r, "userID")
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var cred auth.Credential
	if !decodeBody(w, r, &cred) {
		return
	}
	if err := s.store.AddCredential(r.Context(), id, cred, caller.Roles); err != nil {
		writeStoreError(w, r, err)
		return
	}
	user, err := s.store.GetUser(r.Context(), id, caller.Roles)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleDeleteCredential(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireRole(w, r, auth.RequireUserManager)
	if !ok {
		return
	}
	id, err := pathID(r, "userID")
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	clientID := chi.URLParam(r, "clientID")
	if clientID == "" {
		writeProblem(w, r, http.StatusBadRequest, "client id path segment is required")
		return
	}
	if err := s.store.DeleteCredential(r.Context(), id, clientID, caller.Roles); err != nil {
		writeStoreError(w, r, err)
		return
	}
	user, err := s.store.GetUser(r.Context(), id, caller.Roles)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
