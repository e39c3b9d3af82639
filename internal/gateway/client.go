// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package gateway is a client for the hosted backend that owns every row, account
// and stored object of the site. It wraps the backend's three SDKs: postgrest-go
// for the table API (/rest/v1), gotrue-go for the auth API (/auth/v1) and
// storage-go for the storage API (/storage/v1).
//
// The client does not retry, cache or paginate. Each call is a single request and
// its error, if any, carries the backend's message verbatim.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/supabase-community/gotrue-go"
)

// ErrNotFound is returned when a single-row select matches nothing.
var ErrNotFound = errors.New("gateway: no rows")

// ErrUnauthorized matches a rejected or expired access token.
var ErrUnauthorized = errors.New("gateway: unauthorized")

// codeNoRows is the table API error code for a single-row select with zero results.
const codeNoRows = "PGRST116"

// Error is a failure reported by the backend.
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

// Error implements the error interface. The message is the backend's own text.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("gateway request failed with status %d", e.Status)
}

// Is lets errors.Is match ErrNotFound on the no-rows error code and
// ErrUnauthorized on a 401 status.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Code == codeNoRows
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	}
	return false
}

// Observer receives one callback per completed request.
type Observer interface {
	ObserveGatewayCall(op string, status int, d time.Duration)
}

// Config configures a Client.
type Config struct {
	URL     string
	AnonKey string
	Timeout time.Duration
	// Transport carries table and auth requests. Defaults to http.DefaultTransport.
	Transport http.RoundTripper
	Observer  Observer
}

// Client talks to the backend. It is safe for concurrent use: the SDK clients
// keep per-request state, so one is built for every call.
type Client struct {
	baseURL   string
	anonKey   string
	timeout   time.Duration
	transport http.RoundTripper
	observer  Observer
	auth      gotrue.Client

	listenersMu sync.RWMutex
	listeners   map[int]AuthListener
	nextID      int
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing gateway url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("gateway url must be absolute: %q", cfg.URL)
	}
	if cfg.AnonKey == "" {
		return nil, errors.New("gateway anon key is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rt := cfg.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}

	base := u.String()
	return &Client{
		baseURL:   base,
		anonKey:   cfg.AnonKey,
		timeout:   timeout,
		transport: rt,
		observer:  cfg.Observer,
		auth:      gotrue.New("", cfg.AnonKey).WithCustomGoTrueURL(base + "/auth/v1"),
		listeners: make(map[int]AuthListener),
	}, nil
}

type tokenKey struct{}

// WithAccessToken returns a context whose gateway calls act on behalf of the
// signed-in user. Without it, calls use the anonymous key.
func WithAccessToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey{}, token)
}

// AccessToken returns the token stored by WithAccessToken.
func AccessToken(ctx context.Context) string {
	tok, _ := ctx.Value(tokenKey{}).(string)
	return tok
}

// bearer is the token table requests are authorized with.
func (c *Client) bearer(ctx context.Context) string {
	if tok := AccessToken(ctx); tok != "" {
		return tok
	}
	return c.anonKey
}

// call prepares the transport for one SDK request. The SDKs build requests
// without a context, so the transport binds ctx to them.
func (c *Client) call(ctx context.Context, op string) (*observedTransport, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	return &observedTransport{ctx: ctx, base: c.transport, observer: c.observer, op: op}, cancel
}

func (c *Client) observe(op string, status int, d time.Duration) {
	if c.observer != nil {
		c.observer.ObserveGatewayCall(op, status, d)
	}
}

// observedTransport sits under an SDK client for a single call. It attaches the
// call's context, appends extra query parameters, reports the call to the
// Observer and keeps the body of an error response so the backend's own error
// document can be decoded.
type observedTransport struct {
	ctx      context.Context
	base     http.RoundTripper
	observer Observer
	op       string
	query    url.Values

	status  int
	errBody []byte
}

// RoundTrip implements http.RoundTripper.
func (t *observedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(t.ctx)
	if len(t.query) > 0 {
		q := req.URL.Query()
		for k, vs := range t.query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		req.URL.RawQuery = q.Encode()
	}

	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		t.report(0, time.Since(start))
		return nil, err
	}
	t.status = resp.StatusCode
	if resp.StatusCode >= http.StatusBadRequest {
		t.errBody, _ = io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		resp.Body = io.NopCloser(bytes.NewReader(t.errBody))
	}
	t.report(resp.StatusCode, time.Since(start))
	return resp, nil
}

func (t *observedTransport) report(status int, d time.Duration) {
	if t.observer != nil {
		t.observer.ObserveGatewayCall(t.op, status, d)
	}
}

// fail turns an SDK error into an *Error when the backend answered, and wraps
// it with the operation name otherwise.
func (t *observedTransport) fail(err error) error {
	if t.status >= http.StatusBadRequest {
		return decodeError(t.status, t.errBody)
	}
	return fmt.Errorf("%s: %w", t.op, err)
}

// decodeError turns an error body from any of the three APIs into an *Error.
func decodeError(status int, data []byte) error {
	var body struct {
		Code             any    `json:"code"`
		Message          string `json:"message"`
		Msg              string `json:"msg"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		Details          string `json:"details"`
		Hint             string `json:"hint"`
		ErrorCode        string `json:"error_code"`
	}
	e := &Error{Status: status}
	if err := json.Unmarshal(data, &body); err != nil {
		e.Message = strings.TrimSpace(string(data))
		return e
	}

	switch code := body.Code.(type) {
	case string:
		e.Code = code
	case float64:
		e.Code = fmt.Sprintf("%d", int(code))
	}
	if body.ErrorCode != "" {
		e.Code = body.ErrorCode
	}

	switch {
	case body.Message != "":
		e.Message = body.Message
	case body.Msg != "":
		e.Message = body.Msg
	case body.ErrorDescription != "":
		e.Message = body.ErrorDescription
	case body.Error != "":
		e.Message = body.Error
	}
	e.Details = body.Details
	e.Hint = body.Hint
	return e
}

// Health checks that the auth API answers.
func (c *Client) Health(ctx context.Context) error {
	tr, cancel := c.call(ctx, "auth:health")
	defer cancel()
	if _, err := c.authClient(tr).HealthCheck(); err != nil {
		return tr.fail(err)
	}
	return nil
}
