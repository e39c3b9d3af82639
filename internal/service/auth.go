// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/composerunion/composerunion/internal/gateway"
	"github.com/composerunion/composerunion/internal/model"
	"github.com/composerunion/composerunion/internal/store"
)

// ErrEmailRegistered is returned by SignUp for an address that already has an account.
var ErrEmailRegistered = errors.New("email already registered")

// OAuthProvider is the only external identity provider offered.
const OAuthProvider = "google"

// AuthService signs readers up, in and out through the backend's auth API.
type AuthService struct {
	gw          *gateway.Client
	queries     *store.Queries
	logger      *slog.Logger
	callbackURL string
	resetURL    string
}

// NewAuthService creates an AuthService. callbackURL receives OAuth redirects and
// resetURL is linked from password reset emails.
func NewAuthService(gw *gateway.Client, queries *store.Queries, logger *slog.Logger, callbackURL, resetURL string) *AuthService {
	return &AuthService{gw: gw, queries: queries, logger: logger, callbackURL: callbackURL, resetURL: resetURL}
}

// SignUp registers an account and stores its display name on the profile. The
// returned session is nil while email confirmation is pending.
func (s *AuthService) SignUp(ctx context.Context, fullName, email, password string) (*gateway.Session, error) {
	res, err := s.gw.SignUp(ctx, email, password, map[string]any{"full_name": fullName})
	if err != nil {
		if strings.Contains(err.Error(), "already registered") {
			return nil, ErrEmailRegistered
		}
		return nil, err
	}

	if res.Session != nil {
		ctx = gateway.WithAccessToken(ctx, res.Session.AccessToken)
	}
	if err := s.queries.UpdateProfileName(ctx, model.ID(res.User.ID), fullName); err != nil {
		s.logger.Warn("storing name after signup", "user_id", res.User.ID, "error", err)
	}
	return res.Session, nil
}

// SignIn exchanges credentials for a session.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*gateway.Session, error) {
	return s.gw.SignInWithPassword(ctx, email, password)
}

// StartOAuth returns the provider sign-in URL and the PKCE verifier to keep in
// the session until the callback.
func (s *AuthService) StartOAuth() (redirect, verifier string, err error) {
	verifier, challenge, err := gateway.NewPKCE()
	if err != nil {
		return "", "", err
	}
	return s.gw.AuthorizeURL(OAuthProvider, s.callbackURL, challenge), verifier, nil
}

// CompleteOAuth exchanges the callback code for a session.
func (s *AuthService) CompleteOAuth(ctx context.Context, code, verifier string) (*gateway.Session, error) {
	if code == "" || verifier == "" {
		return nil, errors.New("missing authorization code")
	}
	return s.gw.ExchangeCode(ctx, code, verifier)
}

// Refresh renews a session.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*gateway.Session, error) {
	return s.gw.RefreshSession(ctx, refreshToken)
}

// CurrentUser resolves the identity behind an access token.
func (s *AuthService) CurrentUser(ctx context.Context, accessToken string) (*gateway.User, error) {
	return s.gw.GetUser(ctx, accessToken)
}

// SignOut revokes a session.
func (s *AuthService) SignOut(ctx context.Context, accessToken string) error {
	return s.gw.SignOut(ctx, accessToken)
}

// SendPasswordReset emails a reset link.
func (s *AuthService) SendPasswordReset(ctx context.Context, email string) error {
	return s.gw.ResetPasswordForEmail(ctx, email, s.resetURL)
}

// IsAdmin reports whether a user's profile has the admin role. A failed profile
// lookup counts as no profile.
func (s *AuthService) IsAdmin(ctx context.Context, userID model.ID) bool {
	p, err := s.queries.GetProfile(ctx, userID)
	if err != nil {
		s.logger.Warn("admin check: profile lookup failed", "user_id", userID, "error", err)
		return false
	}
	return p.IsAdmin()
}
