// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines the rows kept by the remote backend: profiles, blog posts,
// writer applications and newsletter subscribers.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Role is the coarse permission tier of a profile.
type Role string

// Roles. The set is closed; ParseRole rejects anything else.
const (
	RoleUser   Role = "user"
	RoleWriter Role = "writer"
	RoleAdmin  Role = "admin"
)

// ParseRole normalises a stored role value. An empty value is the ordinary user tier.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return RoleUser, nil
	case RoleUser, RoleWriter, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Role) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == nil {
		*r = RoleUser
		return nil
	}
	parsed, err := ParseRole(*s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Writer application statuses.
const (
	ApplicationPending  = "pending"
	ApplicationApproved = "approved"
	ApplicationRejected = "rejected"
)

// Profile is the application-level user record, keyed by the session user id.
type Profile struct {
	ID                      ID        `json:"id"`
	FullName                *string   `json:"full_name"`
	Role                    Role      `json:"role"`
	CreatedAt               time.Time `json:"created_at"`
	WriterApplicationStatus *string   `json:"writer_application_status,omitempty"`
	WriterBio               *string   `json:"writer_bio,omitempty"`
}

// DisplayName returns the full name or the given fallback when none is stored.
func (p *Profile) DisplayName(fallback string) string {
	if p.FullName == nil || *p.FullName == "" {
		return fallback
	}
	return *p.FullName
}

// IsAdmin returns true if the profile has the admin role.
func (p *Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// ProfileRef is the embedded author/applicant projection returned by joined selects.
type ProfileRef struct {
	FullName *string `json:"full_name"`
}

// Name returns the referenced display name or "Unknown".
func (p *ProfileRef) Name() string {
	if p == nil || p.FullName == nil || *p.FullName == "" {
		return "Unknown"
	}
	return *p.FullName
}
