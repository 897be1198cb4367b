// SPDX-License-Identifier: MIT

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gridlink/openadr3/internal/auth"
	"github.com/gridlink/openadr3/internal/oadr"
	"github.com/gridlink/openadr3/internal/store"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testEnv struct {
	router http.Handler
	store  *store.Store
	signer *auth.Signer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "vtn.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	signer := auth.NewSigner(testSecret, 30*24*time.Hour)
	return &testEnv{
		router: NewServer(st, signer).Router(),
		store:  st,
		signer: signer,
	}
}

func (e *testEnv) token(t *testing.T, roles auth.RoleSet) string {
	t.Helper()
	token, err := e.signer.Issue("test-client", roles, time.Now())
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

var adminRoles = auth.RoleSet{auth.UserManager(), auth.VenManager(), auth.AnyBusiness()}

func decodeList[T any](t *testing.T, rec *httptest.ResponseRecorder) []T {
	t.Helper()
	var out []T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestProgramPagination(t *testing.T) {
	e := newTestEnv(t)
	admin := e.token(t, adminRoles)

	for i := 1; i <= 3; i++ {
		rec := e.do(t, http.MethodPost, "/programs", admin,
			oadr.ProgramContent{ProgramName: fmt.Sprintf("program%d", i)})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	t.Run("skip=1 returns the tail", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/programs?skip=1&limit=50", admin, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		programs := decodeList[oadr.Program](t, rec)
		require.Len(t, programs, 2)
		require.Equal(t, "program2", programs[0].Content.ProgramName)
		require.Equal(t, "program3", programs[1].Content.ProgramName)
	})

	t.Run("skip past the end is empty", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/programs?skip=3", admin, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Empty(t, decodeList[oadr.Program](t, rec))
	})

	t.Run("bounds are validated", func(t *testing.T) {
		for _, q := range []string{"limit=0", "limit=51", "skip=-1"} {
			rec := e.do(t, http.MethodGet, "/programs?"+q, admin, nil)
			require.Equal(t, http.StatusBadRequest, rec.Code, q)
		}
	})
}

func TestProgramNameConflictProblem(t *testing.T) {
	e := newTestEnv(t)
	admin := e.token(t, adminRoles)

	rec := e.do(t, http.MethodPost, "/programs", admin, oadr.ProgramContent{ProgramName: "p"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = e.do(t, http.MethodPost, "/programs", admin, oadr.ProgramContent{ProgramName: "p"})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var p Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	require.Equal(t, http.StatusConflict, p.Status)
	require.NotEmpty(t, p.Instance)
}

func TestVenEventVisibility(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	ven1, err := e.store.CreateVen(ctx, oadr.VenContent{VenName: "ven-1"}, adminRoles)
	require.NoError(t, err)
	ven2, err := e.store.CreateVen(ctx, oadr.VenContent{VenName: "ven-2"}, adminRoles)
	require.NoError(t, err)

	program, err := e.store.CreateProgram(ctx, oadr.ProgramContent{
		ProgramName: "program-3",
		Targets: []oadr.TargetEntry{{
			Label:  oadr.TargetVenName,
			Values: []oadr.Value{oadr.StringValue("ven-1")},
		}},
	}, adminRoles)
	require.NoError(t, err)

	event, err := e.store.CreateEvent(ctx, oadr.EventContent{
		ProgramID: program.ID,
		Intervals: []oadr.EventInterval{{ID: 0}},
	}, adminRoles)
	require.NoError(t, err)

	path := "/events/" + event.ID.String()
	rec := e.do(t, http.MethodGet, path, e.token(t, auth.RoleSet{auth.VEN(ven1.ID)}), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, path, e.token(t, auth.RoleSet{auth.VEN(ven2.ID)}), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoleExtraction(t *testing.T) {
	e := newTestEnv(t)

	t.Run("missing token is forbidden", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/programs", "", nil)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("ven user cannot author programs", func(t *testing.T) {
		venTok := e.token(t, auth.RoleSet{auth.VEN(oadr.Identifier("abc"))})
		rec := e.do(t, http.MethodPost, "/programs", venTok, oadr.ProgramContent{ProgramName: "x"})
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("business user cannot list vens", func(t *testing.T) {
		bizTok := e.token(t, auth.RoleSet{auth.AnyBusiness()})
		rec := e.do(t, http.MethodGet, "/vens", bizTok, nil)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("garbage token is forbidden", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/programs", "not-a-jwt", nil)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestContentTypeGate(t *testing.T) {
	e := newTestEnv(t)
	admin := e.token(t, adminRoles)

	req := httptest.NewRequest(http.MethodPost, "/programs", strings.NewReader(`{"programName":"p"}`))
	req.Header.Set("Authorization", "Bearer "+admin)
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodPatch, "/programs", e.token(t, adminRoles), nil)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestTargetFilterValidation(t *testing.T) {
	e := newTestEnv(t)
	admin := e.token(t, adminRoles)

	rec := e.do(t, http.MethodGet, "/programs?targetType=GROUP", admin, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodGet, "/programs?targetValues=zone-7", admin, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTokenEndpoint(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	roles := auth.RoleSet{auth.AnyBusiness()}
	user, err := e.store.CreateUser(ctx, auth.UserContent{Reference: "ops", Roles: roles.Strings()}, adminRoles)
	require.NoError(t, err)
	require.NoError(t, e.store.AddCredential(ctx, user.ID,
		auth.Credential{ClientID: "acme", ClientSecret: "s3cret"}, adminRoles))

	post := func(form url.Values, basic bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if basic {
			req.SetBasicAuth("acme", "s3cret")
		}
		rec := httptest.NewRecorder()
		e.router.ServeHTTP(rec, req)
		return rec
	}

	t.Run("body credentials succeed", func(t *testing.T) {
		rec := post(url.Values{
			"grant_type":    {"client_credentials"},
			"client_id":     {"acme"},
			"client_secret": {"s3cret"},
		}, false)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var tok TokenResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tok))
		require.Equal(t, "bearer", tok.TokenType)
		require.Positive(t, tok.ExpiresIn)

		identity, err := e.signer.Verify(tok.AccessToken)
		require.NoError(t, err)
		require.Equal(t, "acme", identity.ClientID)
		require.True(t, identity.Roles.HasAnyBusiness())
	})

	t.Run("basic credentials succeed", func(t *testing.T) {
		rec := post(url.Values{"grant_type": {"client_credentials"}}, true)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("both header and body is invalid_request", func(t *testing.T) {
		rec := post(url.Values{
			"grant_type": {"client_credentials"},
			"client_id":  {"acme"},
		}, true)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		var oe OAuthError
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &oe))
		require.Equal(t, "invalid_request", oe.Error)
	})

	t.Run("wrong secret is invalid_client with challenge", func(t *testing.T) {
		rec := post(url.Values{
			"grant_type":    {"client_credentials"},
			"client_id":     {"acme"},
			"client_secret": {"wrong"},
		}, false)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, `Basic realm="VTN"`, rec.Header().Get("WWW-Authenticate"))
		var oe OAuthError
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &oe))
		require.Equal(t, "invalid_client", oe.Error)
	})

	t.Run("no credentials is invalid_client", func(t *testing.T) {
		rec := post(url.Values{"grant_type": {"client_credentials"}}, false)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong grant type", func(t *testing.T) {
		rec := post(url.Values{"grant_type": {"password"}}, true)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		var oe OAuthError
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &oe))
		require.Equal(t, "unsupported_grant_type", oe.Error)
	})
}

func TestHealthz(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
