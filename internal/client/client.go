// SPDX-License-Identifier: MIT

// Package client is the VEN-side runtime for talking to a VTN: token
// acquisition and caching, paginated listing and typed entity access.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gridlink/openadr3/internal/api"
	"github.com/gridlink/openadr3/internal/log"
)

const (
	defaultRefreshMargin = 60 * time.Second
	defaultExpiresIn     = 3600 * time.Second
)

// Credentials is the client-credentials pair used against /auth/token.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Client talks to one VTN. Safe for concurrent use; the token cache is
// guarded by a reader-writer lock.
type Client struct {
	baseURL       *url.URL
	http          *http.Client
	creds         *Credentials
	refreshMargin time.Duration
	now           func() time.Time

	mu          sync.RWMutex
	token       string
	tokenExpiry time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithCredentials enables automatic token acquisition.
func WithCredentials(c Credentials) Option {
	return func(cl *Client) { cl.creds = &c }
}

// WithHTTPClient substitutes the transport.
func WithHTTPClient(h *http.Client) Option {
	return func(cl *Client) { cl.http = h }
}

// WithRefreshMargin overrides how long before expiry a token is
// considered stale.
func WithRefreshMargin(d time.Duration) Option {
	return func(cl *Client) { cl.refreshMargin = d }
}

// New constructs a client for the VTN at base.
func New(base string, opts ...Option) (*Client, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, &URLError{Raw: base, Err: err}
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, &URLError{Raw: base, Err: fmt.Errorf("base url needs a scheme and host")}
	}
	cl := &Client{
		baseURL:       u,
		http:          &http.Client{Timeout: 30 * time.Second},
		refreshMargin: defaultRefreshMargin,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(cl)
	}
	return cl, nil
}

// bearerToken returns a cached token, refreshing it when it is within
// the refresh margin of expiry. Concurrent callers in the refresh
// window may all refresh; the handshake is idempotent.
func (c *Client) bearerToken(ctx context.Context) (string, error) {
	c.mu.RLock()
	token, expiry := c.token, c.tokenExpiry
	c.mu.RUnlock()
	if token != "" && c.now().Add(c.refreshMargin).Before(expiry) {
		return token, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.creds.ClientID},
		"client_secret": {c.creds.ClientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL.JoinPath("auth", "token").String(), strings.NewReader(form.Encode()))
	if err != nil {
		return "", &TransportError{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &TransportError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		var oe api.OAuthError
		if err := json.Unmarshal(body, &oe); err != nil {
			return "", &SerdeError{Err: err}
		}
		return "", &AuthError{OAuth: oe}
	}

	var tok api.TokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", &SerdeError{Err: err}
	}
	if !strings.EqualFold(tok.TokenType, "bearer") {
		return "", ErrTokenNotBearer
	}
	expiresIn := defaultExpiresIn
	if tok.ExpiresIn > 0 {
		expiresIn = time.Duration(tok.ExpiresIn) * time.Second
	}

	c.mu.Lock()
	c.token = tok.AccessToken
	c.tokenExpiry = c.now().Add(expiresIn)
	c.mu.Unlock()

	logger := log.WithComponent("client")
	logger.Debug().
		Str("event", "client.token_refreshed").
		Msg("acquired access token")
	return tok.AccessToken, nil
}

// do performs one authenticated JSON round-trip. A nil out discards the
// response body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return &SerdeError{Err: err}
		}
		reader = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return &TransportError{Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.creds != nil {
		token, err := c.bearerToken(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var p api.Problem
		if err := json.Unmarshal(raw, &p); err != nil || p.Status == 0 {
			p = api.Problem{Status: resp.StatusCode, Title: http.StatusText(resp.StatusCode)}
		}
		return &ProblemError{Problem: p}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &SerdeError{Err: err}
	}
	return nil
}

// Page bounds one list request.
type Page struct {
	Skip  int64
	Limit int64
}

// DefaultPage is the first full page.
func DefaultPage() Page { return Page{Skip: 0, Limit: 50} }

// Target narrows a list request by targetType/targetValues.
type Target struct {
	Type   string
	Values []string
}

func listQuery(page Page, target *Target) url.Values {
	q := url.Values{}
	q.Set("skip", strconv.FormatInt(page.Skip, 10))
	q.Set("limit", strconv.FormatInt(page.Limit, 10))
	if target != nil {
		q.Set("targetType", target.Type)
		for _, v := range target.Values {
			q.Add("targetValues", v)
		}
	}
	return q
}
