// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package gateway

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"
)

// AuthEvent names a session transition.
type AuthEvent string

// Session transitions reported to listeners.
const (
	EventSignedIn         AuthEvent = "SIGNED_IN"
	EventSignedOut        AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed   AuthEvent = "TOKEN_REFRESHED"
	EventPasswordRecovery AuthEvent = "PASSWORD_RECOVERY"
)

// AuthListener is called after a session transition succeeded. session is nil for
// sign-out and password recovery.
type AuthListener func(ctx context.Context, event AuthEvent, session *Session)

// User is the bare session identity held by the auth API.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

// Session is an issued token pair.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         User   `json:"user"`
}

// Claims are the access token fields the site reads locally.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// ParseClaims decodes an access token without verifying its signature. The result
// is only used to decide when to refresh; GetUser stays the source of truth.
func ParseClaims(accessToken string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return nil, fmt.Errorf("parsing access token: %w", err)
	}
	return claims, nil
}

// Expired reports whether the token expires within the given margin.
func (c *Claims) Expired(margin time.Duration) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return time.Now().Add(margin).After(c.ExpiresAt.Time)
}

// OnAuthStateChange registers a listener and returns a function that removes it.
func (c *Client) OnAuthStateChange(fn AuthListener) func() {
	c.listenersMu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.listenersMu.Unlock()

	return func() {
		c.listenersMu.Lock()
		delete(c.listeners, id)
		c.listenersMu.Unlock()
	}
}

func (c *Client) emit(ctx context.Context, event AuthEvent, session *Session) {
	c.listenersMu.RLock()
	fns := make([]AuthListener, 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.listenersMu.RUnlock()

	for _, fn := range fns {
		fn(ctx, event, session)
	}
}

// GetUser resolves the identity behind an access token.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*User, error) {
	if accessToken == "" {
		return nil, errors.New("no access token")
	}
	tr, cancel := c.call(ctx, "auth:user")
	defer cancel()
	res, err := c.authClient(tr).WithToken(accessToken).GetUser()
	if err != nil {
		return nil, tr.fail(err)
	}
	u := userFrom(res.User)
	return &u, nil
}

// SignUpResult is returned by SignUp. Session is nil while email confirmation is pending.
type SignUpResult struct {
	User    User
	Session *Session
}

// SignUp registers a new account. metadata is stored as the user's metadata.
func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*SignUpResult, error) {
	tr, cancel := c.call(ctx, "auth:signup")
	defer cancel()
	res, err := c.authClient(tr).Signup(types.SignupRequest{Email: email, Password: password, Data: metadata})
	if err != nil {
		return nil, tr.fail(err)
	}

	// The body is a session when auto-confirm is on, otherwise the bare user.
	if res.AccessToken != "" {
		sess := sessionFrom(res.Session)
		c.emit(ctx, EventSignedIn, sess)
		return &SignUpResult{User: sess.User, Session: sess}, nil
	}
	return &SignUpResult{User: userFrom(res.User)}, nil
}

// SignInWithPassword exchanges credentials for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	sess, err := c.token(ctx, types.TokenRequest{GrantType: "password", Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	c.emit(ctx, EventSignedIn, sess)
	return sess, nil
}

// RefreshSession trades a refresh token for a new session.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	sess, err := c.token(ctx, types.TokenRequest{GrantType: "refresh_token", RefreshToken: refreshToken})
	if err != nil {
		return nil, err
	}
	c.emit(ctx, EventTokenRefreshed, sess)
	return sess, nil
}

// ExchangeCode completes an OAuth sign-in started with AuthorizeURL.
func (c *Client) ExchangeCode(ctx context.Context, code, verifier string) (*Session, error) {
	sess, err := c.token(ctx, types.TokenRequest{GrantType: "pkce", Code: code, CodeVerifier: verifier})
	if err != nil {
		return nil, err
	}
	c.emit(ctx, EventSignedIn, sess)
	return sess, nil
}

func (c *Client) token(ctx context.Context, req types.TokenRequest) (*Session, error) {
	tr, cancel := c.call(ctx, "auth:token")
	defer cancel()
	res, err := c.authClient(tr).Token(req)
	if err != nil {
		return nil, tr.fail(err)
	}
	return sessionFrom(res.Session), nil
}

// AuthorizeURL is where the browser is sent to sign in with an OAuth provider.
// It is built locally: the browser, not the server, must follow the redirect.
func (c *Client) AuthorizeURL(provider, redirectTo, codeChallenge string) string {
	q := url.Values{
		"provider":              {provider},
		"redirect_to":           {redirectTo},
		"code_challenge":        {codeChallenge},
		"code_challenge_method": {"s256"},
	}
	return c.baseURL + "/auth/v1/authorize?" + q.Encode()
}

// SignOut revokes the session behind accessToken.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	tr, cancel := c.call(ctx, "auth:logout")
	defer cancel()
	if err := c.authClient(tr).WithToken(accessToken).Logout(); err != nil {
		return tr.fail(err)
	}
	c.emit(ctx, EventSignedOut, nil)
	return nil
}

// ResetPasswordForEmail sends a password reset link that lands on redirectTo.
func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	tr, cancel := c.call(ctx, "auth:recover")
	defer cancel()
	if redirectTo != "" {
		tr.query = url.Values{"redirect_to": {redirectTo}}
	}
	if err := c.authClient(tr).Recover(types.RecoverRequest{Email: email}); err != nil {
		return tr.fail(err)
	}
	c.emit(ctx, EventPasswordRecovery, nil)
	return nil
}

// authClient returns the auth SDK client bound to one call's transport.
func (c *Client) authClient(tr *observedTransport) gotrue.Client {
	return c.auth.WithClient(http.Client{Transport: tr})
}

func userFrom(u types.User) User {
	return User{ID: u.ID.String(), Email: u.Email, UserMetadata: u.UserMetadata}
}

func sessionFrom(s types.Session) *Session {
	return &Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    s.TokenType,
		ExpiresIn:    s.ExpiresIn,
		ExpiresAt:    s.ExpiresAt,
		User:         userFrom(s.User),
	}
}

// NewPKCE returns a code verifier and its S256 challenge.
func NewPKCE() (verifier, challenge string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generating code verifier: %w", err)
	}
	verifier = base64.RawURLEncoding.EncodeToString(buf)
	sum := sha256.Sum256([]byte(verifier))
	return verifier, base64.RawURLEncoding.EncodeToString(sum[:]), nil
}
