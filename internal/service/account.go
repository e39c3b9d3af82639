// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/composerunion/composerunion/internal/model"
	"github.com/composerunion/composerunion/internal/store"
)

// MinBioLength is the minimum trimmed length, in characters, of a writer bio.
const MinBioLength = 50

// Account is what the account page shows.
type Account struct {
	Profile   model.Profile
	Email     string
	RoleLabel string
	CanApply  bool
	IsAdmin   bool
}

// AccountService serves the account page.
type AccountService struct {
	queries *store.Queries
	logger  *slog.Logger
}

// NewAccountService creates an AccountService.
func NewAccountService(queries *store.Queries, logger *slog.Logger) *AccountService {
	return &AccountService{queries: queries, logger: logger}
}

// Load returns the account of a signed-in user. Whether an application is
// pending is read from the user's latest application row.
func (s *AccountService) Load(ctx context.Context, userID model.ID, email string) (*Account, error) {
	profile, err := s.queries.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	latest, err := s.queries.LatestApplication(ctx, userID)
	if err != nil {
		return nil, err
	}
	pending := latest != nil && latest.IsPending()
	return &Account{
		Profile:   profile,
		Email:     email,
		RoleLabel: RoleLabel(profile.Role, pending),
		CanApply:  profile.Role == model.RoleUser && !pending,
		IsAdmin:   profile.IsAdmin(),
	}, nil
}

// RoleLabel renders a role for display, noting a pending writer application.
func RoleLabel(role model.Role, pending bool) string {
	label := cases.Title(language.English).String(string(role))
	if role == model.RoleUser && pending {
		label += " (Application Pending)"
	}
	return label
}

// ValidateBio checks the bio length. The limit counts characters of the trimmed
// text, not words.
func ValidateBio(bio string) error {
	if utf8.RuneCountInString(strings.TrimSpace(bio)) < MinBioLength {
		return ErrBioTooShort
	}
	return nil
}

// Apply files a writer application. A short bio is rejected before any remote
// call. Only readers without a pending application may apply. The application
// row is created first; marking the profile afterwards is best effort, since
// the row alone decides whether an application is pending.
func (s *AccountService) Apply(ctx context.Context, userID model.ID, bio string) error {
	if err := ValidateBio(bio); err != nil {
		return err
	}
	bio = strings.TrimSpace(bio)

	profile, err := s.queries.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	if profile.Role != model.RoleUser {
		return ErrNotEligible
	}
	latest, err := s.queries.LatestApplication(ctx, userID)
	if err != nil {
		return err
	}
	if latest != nil && latest.IsPending() {
		return ErrApplicationPending
	}

	if err := s.queries.CreateApplication(ctx, userID, bio); err != nil {
		return err
	}
	if err := s.queries.MarkApplicationPending(ctx, userID, bio); err != nil {
		s.logger.Warn("marking profile after application", "user_id", userID, "error", err)
	}
	return nil
}
