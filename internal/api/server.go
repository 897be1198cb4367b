// SPDX-License-Identifier: MIT

// Package api serves the VTN's REST surface: the OpenADR 3.0 entity
// routes, the OAuth2 token endpoint and the ops endpoints.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gridlink/openadr3/internal/auth"
	"github.com/gridlink/openadr3/internal/store"
)

// Server holds the handler dependencies.
type Server struct {
	store  *store.Store
	signer *auth.Signer
}

// NewServer wires the REST handlers to a store and a token signer.
func NewServer(st *store.Store, signer *auth.Signer) *Server {
	return &Server{store: st, signer: signer}
}

// Router assembles the full route table with the middleware chain.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger)
	r.Use(auth.Middleware(s.signer))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusNotFound, "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusMethodNotAllowed, fmt.Sprintf("%s is not allowed here", r.Method))
	})

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Form-encoded, so mounted outside the JSON gate. Brute-force
	// protection via per-IP rate limiting.
	r.With(httprate.LimitByIP(30, time.Minute)).Post("/auth/token", s.handleToken)

	r.Group(func(r chi.Router) {
		r.Use(requireJSON)

		r.Route("/programs", func(r chi.Router) {
			r.Get("/", s.handleListPrograms)
			r.Post("/", s.handleCreateProgram)
			r.Route("/{programID}", func(r chi.Router) {
				r.Get("/", s.handleGetProgram)
				r.Put("/", s.handleUpdateProgram)
				r.Delete("/", s.handleDeleteProgram)
			})
		})

		r.Route("/events", func(r chi.Router) {
			r.Get("/", s.handleListEvents)
			r.Post("/", s.handleCreateEvent)
			r.Route("/{eventID}", func(r chi.Router) {
				r.Get("/", s.handleGetEvent)
				r.Put("/", s.handleUpdateEvent)
				r.Delete("/", s.handleDeleteEvent)
			})
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/", s.handleListReports)
			r.Post("/", s.handleCreateReport)
			r.Route("/{reportID}", func(r chi.Router) {
				r.Get("/", s.handleGetReport)
				r.Put("/", s.handleUpdateReport)
				r.Delete("/", s.handleDeleteReport)
			})
		})

		r.Route("/vens", func(r chi.Router) {
			r.Get("/", s.handleListVens)
			r.Post("/", s.handleCreateVen)
			r.Route("/{venID}", func(r chi.Router) {
				r.Get("/", s.handleGetVen)
				r.Put("/", s.handleUpdateVen)
				r.Delete("/", s.handleDeleteVen)

				r.Route("/resources", func(r chi.Router) {
					r.Get("/", s.handleListResources)
					r.Post("/", s.handleCreateResource)
					r.Route("/{resourceID}", func(r chi.Router) {
						r.Get("/", s.handleGetResource)
						r.Put("/", s.handleUpdateResource)
						r.Delete("/", s.handleDeleteResource)
					})
				})
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", s.handleListUsers)
			r.Post("/", s.handleCreateUser)
			r.Route("/{userID}", func(r chi.Router) {
				r.Get("/", s.handleGetUser)
				r.Put("/", s.handleUpdateUser)
				r.Delete("/", s.handleDeleteUser)
				r.Post("/", s.handleAddCredential)
				r.Delete("/{clientID}", s.handleDeleteCredential)
			})
		})
	})

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeBody parses a JSON request body, treating decode failures as
// caller errors.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeProblem(w, r, http.StatusBadRequest, fmt.Sprintf("invalid request body: %s", err))
		return false
	}
	return true
}

// requireRole runs one of the auth extractors and maps a failure to 403.
func requireRole(w http.ResponseWriter, r *http.Request, extract func(*http.Request) (*auth.Identity, error)) (*auth.Identity, bool) {
	id, err := extract(r)
	if err != nil {
		writeProblem(w, r, http.StatusForbidden, err.Error())
		return nil, false
	}
	return id, true
}
