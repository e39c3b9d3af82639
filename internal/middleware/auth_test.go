// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/composerunion/composerunion/internal/gateway"
	"github.com/composerunion/composerunion/internal/logging"
	"github.com/composerunion/composerunion/internal/model"
	"github.com/composerunion/composerunion/internal/service"
	"github.com/composerunion/composerunion/internal/session"
	"github.com/composerunion/composerunion/internal/ui"
)

func testToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	return tok
}

// signedInCookie runs one request that stores a session and returns its cookie.
func signedInCookie(t *testing.T, sm *scs.SessionManager, accessToken string) *http.Cookie {
	t.Helper()
	h := sm.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := session.Save(r.Context(), sm, &gateway.Session{
			AccessToken:  accessToken,
			RefreshToken: "refresh-1",
			User:         gateway.User{ID: "user-1", Email: "reader@example.com"},
		})
		require.NoError(t, err)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	for _, c := range rec.Result().Cookies() {
		if c.Name == sm.Cookie.Name {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

type fakeRefresher struct {
	calls int
	err   error
	token string
}

func (f *fakeRefresher) Refresh(_ context.Context, refreshToken string) (*gateway.Session, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &gateway.Session{AccessToken: f.token, RefreshToken: refreshToken + "-next"}, nil
}

// fakeAdmins accepts every token as user-1 unless err is set.
type fakeAdmins struct {
	admins map[model.ID]bool
	userID string
	err    error
	checks int
}

func (f *fakeAdmins) CurrentUser(_ context.Context, _ string) (*gateway.User, error) {
	f.checks++
	if f.err != nil {
		return nil, f.err
	}
	id := f.userID
	if id == "" {
		id = "user-1"
	}
	return &gateway.User{ID: id}, nil
}

func (f *fakeAdmins) IsAdmin(_ context.Context, id model.ID) bool { return f.admins[id] }

// chain wires the middleware in the order the router does.
func chain(sm *scs.SessionManager, refresher TokenRefresher, h http.Handler) http.Handler {
	return sm.LoadAndSave(UIContext(sm)(LoadIdentity(sm, refresher)(h)))
}

func TestLoadIdentity_Anonymous(t *testing.T) {
	sm := session.New(nil, true)
	var got session.Identity
	var token string
	h := chain(sm, &fakeRefresher{}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetIdentity(r)
		token = gateway.AccessToken(r.Context())
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.False(t, got.SignedIn())
	assert.Empty(t, token)
}

func TestLoadIdentity_SignedIn(t *testing.T) {
	sm := session.New(nil, true)
	access := testToken(t, time.Now().Add(time.Hour))
	cookie := signedInCookie(t, sm, access)

	refresher := &fakeRefresher{}
	var got session.Identity
	var token string
	h := chain(sm, refresher, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetIdentity(r)
		token = gateway.AccessToken(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/account", nil)
	req.AddCookie(cookie)
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.True(t, got.SignedIn())
	assert.Equal(t, model.ID("user-1"), got.UserID)
	assert.Equal(t, "reader@example.com", got.Email)
	assert.Equal(t, access, token)
	assert.Zero(t, refresher.calls)
}

func TestLoadIdentity_RefreshesExpiringToken(t *testing.T) {
	sm := session.New(nil, true)
	cookie := signedInCookie(t, sm, testToken(t, time.Now().Add(10*time.Second)))

	fresh := testToken(t, time.Now().Add(time.Hour))
	refresher := &fakeRefresher{token: fresh}
	var got session.Identity
	h := chain(sm, refresher, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetIdentity(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, 1, refresher.calls)
	assert.Equal(t, fresh, got.AccessToken)
	assert.Equal(t, "refresh-1-next", got.RefreshToken)
}

func TestLoadIdentity_FailedRefreshSignsOut(t *testing.T) {
	sm := session.New(nil, true)
	cookie := signedInCookie(t, sm, testToken(t, time.Now().Add(-time.Hour)))

	refresher := &fakeRefresher{err: errors.New("Invalid Refresh Token")}
	var got session.Identity
	h := chain(sm, refresher, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetIdentity(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, 1, refresher.calls)
	assert.False(t, got.SignedIn())
}

func TestRequireSession(t *testing.T) {
	sm := session.New(nil, true)
	verifier := &fakeAdmins{}
	reached := false
	h := chain(sm, nil, RequireSession(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/account", nil))
	assert.False(t, reached)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/signup", rec.Header().Get("Location"))
	assert.Zero(t, verifier.checks, "anonymous requests make no backend call")

	cookie := signedInCookie(t, sm, testToken(t, time.Now().Add(time.Hour)))
	req := httptest.NewRequest(http.MethodGet, "/account", nil)
	req.AddCookie(cookie)
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, reached)
	assert.Equal(t, 1, verifier.checks)
}

func TestRequireSession_RejectedToken(t *testing.T) {
	tests := []struct {
		name     string
		verifier *fakeAdmins
	}{
		{"backend rejects token", &fakeAdmins{err: &gateway.Error{Status: http.StatusUnauthorized, Message: "invalid JWT"}}},
		{"token belongs to another user", &fakeAdmins{userID: "user-2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := session.New(nil, true)
			cookie := signedInCookie(t, sm, testToken(t, time.Now().Add(time.Hour)))
			reached := false
			h := chain(sm, nil, RequireSession(tt.verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				reached = true
			})))

			req := httptest.NewRequest(http.MethodGet, "/account", nil)
			req.AddCookie(cookie)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.False(t, reached)
			assert.Equal(t, "/signup", rec.Header().Get("Location"))
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })

	t.Run("anonymous goes to signup", func(t *testing.T) {
		sm := session.New(nil, true)
		h := chain(sm, nil, RequireAdmin(&fakeAdmins{})(ok))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))
		assert.Equal(t, "/signup", rec.Header().Get("Location"))
	})

	t.Run("non-admin goes home with toast", func(t *testing.T) {
		sm := session.New(nil, true)
		cookie := signedInCookie(t, sm, testToken(t, time.Now().Add(time.Hour)))
		h := chain(sm, nil, RequireAdmin(&fakeAdmins{})(ok))

		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.AddCookie(cookie)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/", rec.Header().Get("Location"))

		var toast *ui.Toast
		next := chain(sm, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			toast = ui.From(r).PopToast()
		}))
		req = httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(cookie)
		next.ServeHTTP(httptest.NewRecorder(), req)
		require.NotNil(t, toast)
		assert.Equal(t, MsgAdminRequired, toast.Message)
		assert.Equal(t, ui.KindError, toast.Kind)
	})

	t.Run("admin passes", func(t *testing.T) {
		sm := session.New(nil, true)
		cookie := signedInCookie(t, sm, testToken(t, time.Now().Add(time.Hour)))
		admins := &fakeAdmins{admins: map[model.ID]bool{"user-1": true}}
		h := chain(sm, nil, RequireAdmin(admins)(ok))

		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.AddCookie(cookie)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusTeapot, rec.Code)
		assert.Equal(t, 1, admins.checks)
	})

	t.Run("admin with revoked token goes to signup", func(t *testing.T) {
		sm := session.New(nil, true)
		cookie := signedInCookie(t, sm, testToken(t, time.Now().Add(time.Hour)))
		admins := &fakeAdmins{admins: map[model.ID]bool{"user-1": true}, err: errors.New("session revoked")}
		h := chain(sm, nil, RequireAdmin(admins)(ok))

		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.AddCookie(cookie)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/signup", rec.Header().Get("Location"))
	})
}

func TestCheckAdminAccess_ReturnsAccessDenied(t *testing.T) {
	sm := session.New(nil, true)
	cookie := signedInCookie(t, sm, testToken(t, time.Now().Add(time.Hour)))

	for name, checker := range map[string]*fakeAdmins{
		"not an admin":  {},
		"token refused": {admins: map[model.ID]bool{"user-1": true}, err: errors.New("invalid JWT")},
	} {
		t.Run(name, func(t *testing.T) {
			var err error
			h := chain(sm, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				err = CheckAdminAccess(w, r, checker)
			}))
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			req.AddCookie(cookie)
			h.ServeHTTP(httptest.NewRecorder(), req)
			assert.ErrorIs(t, err, service.ErrAccessDenied)
		})
	}
}

func TestRequestPath(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(logging.NewRequestPathHandler(slog.NewTextHandler(&buf, nil)))
	h := RequestPath(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.WarnContext(r.Context(), "slow page")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/blog/hello", nil))
	assert.Contains(t, buf.String(), "path=/blog/hello")
}
