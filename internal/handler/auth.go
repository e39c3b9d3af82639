// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alexedwards/scs/v2"

	"github.com/composerunion/composerunion/internal/gateway"
	"github.com/composerunion/composerunion/internal/middleware"
	"github.com/composerunion/composerunion/internal/render"
	"github.com/composerunion/composerunion/internal/service"
	"github.com/composerunion/composerunion/internal/session"
)

// Authentication messages.
const (
	MsgSignupSuccess     = "Signup successful! Please check your email for verification."
	MsgEmailRegistered   = "This email is already registered. Please log in or use a different email."
	MsgSignupFailed      = "Error: "
	MsgLoginSuccess      = "Logged in successfully!"
	MsgLoginFailed       = "Login Error: "
	MsgOAuthFailed       = "Google Login Error: "
	MsgLoggedOut         = "You have been logged out."
	MsgLogoutFailed      = "Error logging out."
	MsgResetFailed       = "Error sending reset email: "
	MsgResetSent         = "Check your email for the password reset link."
	MsgCredentialsNeeded = "Please enter your email and password."
)

// AuthHandler handles sign-up, log-in and log-out.
type AuthHandler struct {
	renderer        *render.Renderer
	sessionManager  *scs.SessionManager
	auth            *service.AuthService
	loginProtection *middleware.LoginProtection
	logger          *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(renderer *render.Renderer, sm *scs.SessionManager, auth *service.AuthService, lp *middleware.LoginProtection, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		renderer:        renderer,
		sessionManager:  sm,
		auth:            auth,
		loginProtection: lp,
		logger:          logger,
	}
}

// SignupData is the data of the sign-up page.
type SignupData struct {
	Login    bool
	FullName string
	Email    string
}

// ResetData is the data of the password reset page.
type ResetData struct {
	Sent bool
}

// SignupForm renders the sign-up page, or the log-in form with ?mode=login.
// Signed-in users go to their account instead.
func (h *AuthHandler) SignupForm(w http.ResponseWriter, r *http.Request) {
	if middleware.GetIdentity(r).SignedIn() {
		http.Redirect(w, r, RouteAccount, http.StatusSeeOther)
		return
	}

	login := r.URL.Query().Get("mode") == "login"
	title := "Sign Up"
	if login {
		title = "Log In"
	}
	renderPage(w, r, h.renderer, "signup", render.TemplateData{
		Title: title,
		Data:  SignupData{Login: login},
	})
}

// Signup handles POST /signup.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	fullName := strings.TrimSpace(r.FormValue("full_name"))
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")

	if email == "" || password == "" {
		flashError(w, r, RouteSignup, MsgCredentialsNeeded)
		return
	}

	s, err := h.auth.SignUp(r.Context(), fullName, email, password)
	if err != nil {
		if errors.Is(err, service.ErrEmailRegistered) {
			flashError(w, r, RouteSignup, MsgEmailRegistered)
			return
		}
		h.logger.WarnContext(r.Context(), "signup failed", "error", err)
		flashError(w, r, RouteSignup, MsgSignupFailed+service.RemoteMessage(err))
		return
	}

	// A session is only returned when email confirmation is disabled.
	if s != nil {
		if err := session.Save(r.Context(), h.sessionManager, s); err != nil {
			logAndInternalError(w, "failed to store session", "error", err)
			return
		}
	}

	h.logger.InfoContext(r.Context(), "user signed up", "email", email)
	flashSuccess(w, r, RouteRoot, MsgSignupSuccess)
}

// Login handles POST /login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")

	if email == "" || password == "" {
		flashError(w, r, redirectLogin, MsgCredentialsNeeded)
		return
	}

	if h.loginProtection != nil {
		if locked, remaining := h.loginProtection.IsLocked(email); locked {
			h.logger.WarnContext(r.Context(), "login attempt on locked account", "email", email, "remaining", remaining)
			flashError(w, r, redirectLogin, middleware.MsgTooManyAttempts)
			return
		}
	}

	s, err := h.auth.SignIn(r.Context(), email, password)
	if err != nil {
		if h.loginProtection != nil {
			h.loginProtection.RecordFailure(email)
		}
		h.logger.WarnContext(r.Context(), "login failed", "email", email, "error", err)
		flashError(w, r, redirectLogin, MsgLoginFailed+service.RemoteMessage(err))
		return
	}

	if h.loginProtection != nil {
		h.loginProtection.RecordSuccess(email)
	}
	if err := session.Save(r.Context(), h.sessionManager, s); err != nil {
		logAndInternalError(w, "failed to store session", "error", err)
		return
	}

	h.logger.InfoContext(r.Context(), "user logged in", "user_id", s.User.ID)
	flashSuccess(w, r, RouteRoot, MsgLoginSuccess)
}

// OAuthStart handles GET /auth/google. The PKCE verifier waits in the session
// until the provider redirects back.
func (h *AuthHandler) OAuthStart(w http.ResponseWriter, r *http.Request) {
	redirect, verifier, err := h.auth.StartOAuth()
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to start oauth", "error", err)
		flashError(w, r, RouteSignup, MsgOAuthFailed+err.Error())
		return
	}
	h.sessionManager.Put(r.Context(), session.KeyPKCEVerifier, verifier)
	http.Redirect(w, r, redirect, http.StatusFound)
}

// OAuthCallback handles GET /auth/callback.
func (h *AuthHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	verifier := h.sessionManager.PopString(r.Context(), session.KeyPKCEVerifier)

	if desc := q.Get("error_description"); desc != "" || q.Get("error") != "" {
		if desc == "" {
			desc = q.Get("error")
		}
		flashError(w, r, RouteSignup, MsgOAuthFailed+desc)
		return
	}

	s, err := h.auth.CompleteOAuth(r.Context(), q.Get("code"), verifier)
	if err != nil {
		h.logger.WarnContext(r.Context(), "oauth callback failed", "error", err)
		flashError(w, r, RouteSignup, MsgOAuthFailed+service.RemoteMessage(err))
		return
	}
	if err := session.Save(r.Context(), h.sessionManager, s); err != nil {
		logAndInternalError(w, "failed to store session", "error", err)
		return
	}

	h.logger.InfoContext(r.Context(), "user logged in", "user_id", s.User.ID, "provider", service.OAuthProvider)
	flashSuccess(w, r, RouteRoot, MsgLoginSuccess)
}

// Logout handles POST /logout and POST /account/logout. A failed revocation
// keeps the session so the user can try again.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	id := middleware.GetIdentity(r)
	if id.SignedIn() {
		if err := h.auth.SignOut(r.Context(), id.AccessToken); err != nil && !errors.Is(err, gateway.ErrUnauthorized) {
			h.logger.ErrorContext(r.Context(), "logout failed", "user_id", id.UserID, "error", err)
			flashError(w, r, RouteAccount, MsgLogoutFailed)
			return
		}
	}

	if err := session.Clear(r.Context(), h.sessionManager); err != nil {
		logAndInternalError(w, "failed to clear session", "error", err)
		return
	}

	h.logger.InfoContext(r.Context(), "user logged out", "user_id", id.UserID)
	flashInfo(w, r, RouteRoot, MsgLoggedOut)
}

// ResetForm renders the password reset page.
func (h *AuthHandler) ResetForm(w http.ResponseWriter, r *http.Request) {
	renderPage(w, r, h.renderer, "reset_password", render.TemplateData{
		Title: "Reset Password",
		Data:  ResetData{Sent: r.URL.Query().Get("sent") != ""},
	})
}

// Reset handles POST /reset-password.
func (h *AuthHandler) Reset(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.FormValue("email"))
	if email == "" {
		flashError(w, r, RouteResetPassword, MsgCredentialsNeeded)
		return
	}

	if err := h.auth.SendPasswordReset(r.Context(), email); err != nil {
		h.logger.WarnContext(r.Context(), "password reset failed", "error", err)
		flashError(w, r, RouteResetPassword, MsgResetFailed+service.RemoteMessage(err))
		return
	}
	flashInfo(w, r, redirectResetSent, MsgResetSent)
}
