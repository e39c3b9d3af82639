// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package middleware provides HTTP middleware for authentication,
// authorization, and request context handling.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"

	"github.com/composerunion/composerunion/internal/gateway"
	"github.com/composerunion/composerunion/internal/logging"
	"github.com/composerunion/composerunion/internal/model"
	"github.com/composerunion/composerunion/internal/service"
	"github.com/composerunion/composerunion/internal/session"
	"github.com/composerunion/composerunion/internal/ui"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

// ContextKeyIdentity is the context key for the signed-in identity.
const ContextKeyIdentity ContextKey = "identity"

// RefreshMargin is how close to expiry an access token may get before it is
// refreshed on the next request.
const RefreshMargin = time.Minute

// MsgAdminRequired is shown to signed-in users who open an admin page.
const MsgAdminRequired = "Access denied. Admin privileges required."

// TokenRefresher renews an expiring session.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*gateway.Session, error)
}

// UserVerifier resolves the backend user behind an access token.
type UserVerifier interface {
	CurrentUser(ctx context.Context, accessToken string) (*gateway.User, error)
}

// AdminChecker decides whether a verified user may use the dashboard.
type AdminChecker interface {
	UserVerifier
	IsAdmin(ctx context.Context, userID model.ID) bool
}

// LoadIdentity creates middleware that reads the signed-in identity from the
// session and makes it available to handlers. Gateway calls made with the
// request context act on behalf of that user. An access token about to expire
// is refreshed; a failed refresh signs the user out.
func LoadIdentity(sm *scs.SessionManager, refresher TokenRefresher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			id := session.Load(ctx, sm)

			if id.SignedIn() && needsRefresh(id.AccessToken) {
				id = refreshIdentity(ctx, sm, refresher, id)
			}

			if id.SignedIn() {
				ctx = gateway.WithAccessToken(ctx, id.AccessToken)
				ctx = logging.WithUserID(ctx, string(id.UserID))
			}
			ctx = context.WithValue(ctx, ContextKeyIdentity, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func needsRefresh(accessToken string) bool {
	claims, err := gateway.ParseClaims(accessToken)
	if err != nil {
		// An unreadable token is left for the backend to reject.
		return false
	}
	return claims.Expired(RefreshMargin)
}

func refreshIdentity(ctx context.Context, sm *scs.SessionManager, refresher TokenRefresher, id session.Identity) session.Identity {
	if id.RefreshToken != "" && refresher != nil {
		s, err := refresher.Refresh(ctx, id.RefreshToken)
		if err == nil {
			session.UpdateTokens(ctx, sm, s)
			id.AccessToken = s.AccessToken
			id.RefreshToken = s.RefreshToken
			return id
		}
		slog.Warn("session refresh failed", "user_id", id.UserID, "error", err)
	}

	if err := session.Clear(ctx, sm); err != nil {
		slog.Error("failed to clear expired session", "error", err)
	}
	return session.Identity{}
}

// GetIdentity returns the identity loaded by LoadIdentity. It is the zero
// Identity for anonymous requests.
func GetIdentity(r *http.Request) session.Identity {
	id, _ := r.Context().Value(ContextKeyIdentity).(session.Identity)
	return id
}

// verifySession confirms with the backend that the session's access token is
// still valid and belongs to the session's user. The cookie alone is not trusted.
func verifySession(r *http.Request, v UserVerifier) (session.Identity, error) {
	id := GetIdentity(r)
	if !id.SignedIn() {
		return id, service.ErrAccessDenied
	}
	u, err := v.CurrentUser(r.Context(), id.AccessToken)
	if err != nil {
		slog.Warn("session verification failed", "user_id", id.UserID, "error", err)
		return id, fmt.Errorf("%w: %w", service.ErrAccessDenied, err)
	}
	if model.ID(u.ID) != id.UserID {
		slog.Warn("session user mismatch", "user_id", id.UserID, "token_user_id", u.ID)
		return id, service.ErrAccessDenied
	}
	return id, nil
}

// RequireSession creates middleware that admits only visitors whose session the
// backend still accepts. Everyone else is sent to the sign-up page.
func RequireSession(v UserVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := verifySession(r, v); err != nil {
				http.Redirect(w, r, "/signup", http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CheckAdminAccess returns nil when the request may use the dashboard, and an
// error wrapping service.ErrAccessDenied otherwise. On error the response has
// already been written: visitors without a valid session go to the sign-up page
// and other users go home with an error toast.
func CheckAdminAccess(w http.ResponseWriter, r *http.Request, checker AdminChecker) error {
	id, err := verifySession(r, checker)
	if err != nil {
		http.Redirect(w, r, "/signup", http.StatusSeeOther)
		return err
	}

	if !checker.IsAdmin(r.Context(), id.UserID) {
		slog.Warn("access denied",
			"status", http.StatusForbidden,
			"method", r.Method,
			"path", r.URL.Path,
			"user_id", id.UserID,
			"remote_addr", r.RemoteAddr,
		)
		ui.From(r).Error(MsgAdminRequired)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return service.ErrAccessDenied
	}
	return nil
}

// RequireAdmin creates middleware that admits only admins.
func RequireAdmin(checker AdminChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if CheckAdminAccess(w, r, checker) == nil {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// RequestPath creates middleware that stores the request path in the context.
// This is used by the logging handler to include the URL in error logs.
func RequestPath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithRequestPath(r.Context(), r.URL.Path)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UIContext creates middleware that attaches the toast and modal state of the
// request. It must run inside the session manager's LoadAndSave.
func UIContext(sm *scs.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, ui.Attach(r, ui.New(sm, r)))
		})
	}
}
