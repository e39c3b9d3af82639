// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"fmt"

	"github.com/composerunion/composerunion/internal/model"
)

// GetProfile returns the profile of a session user.
func (q *Queries) GetProfile(ctx context.Context, id model.ID) (model.Profile, error) {
	var p model.Profile
	_, err := q.gw.From(TableProfiles).Eq("id", id).Single().Execute(ctx, &p)
	if err != nil {
		return p, fmt.Errorf("getting profile %s: %w", id, err)
	}
	return p, nil
}

// ListProfiles returns every profile, newest first.
func (q *Queries) ListProfiles(ctx context.Context) ([]model.Profile, error) {
	var profiles []model.Profile
	_, err := q.gw.From(TableProfiles).Order("created_at", false).Execute(ctx, &profiles)
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	return profiles, nil
}

// ListAuthors returns the profiles allowed to author posts: writers and admins.
func (q *Queries) ListAuthors(ctx context.Context) ([]model.Profile, error) {
	var profiles []model.Profile
	_, err := q.gw.From(TableProfiles).
		Select("id, full_name, role").
		In("role", string(model.RoleWriter), string(model.RoleAdmin)).
		Execute(ctx, &profiles)
	if err != nil {
		return nil, fmt.Errorf("listing authors: %w", err)
	}
	return profiles, nil
}

// UpdateProfileRole sets the role of a profile.
func (q *Queries) UpdateProfileRole(ctx context.Context, id model.ID, role model.Role) error {
	if err := q.gw.From(TableProfiles).Eq("id", id).Update(ctx, map[string]any{"role": role}); err != nil {
		return fmt.Errorf("updating role of %s: %w", id, err)
	}
	return nil
}

// UpdateProfileName sets the display name of a profile.
func (q *Queries) UpdateProfileName(ctx context.Context, id model.ID, fullName string) error {
	if err := q.gw.From(TableProfiles).Eq("id", id).Update(ctx, map[string]any{"full_name": fullName}); err != nil {
		return fmt.Errorf("updating name of %s: %w", id, err)
	}
	return nil
}

// MarkApplicationPending records a pending writer application on the profile.
func (q *Queries) MarkApplicationPending(ctx context.Context, id model.ID, bio string) error {
	patch := map[string]any{
		"writer_application_status": model.ApplicationPending,
		"writer_bio":                bio,
	}
	if err := q.gw.From(TableProfiles).Eq("id", id).Update(ctx, patch); err != nil {
		return fmt.Errorf("marking application of %s: %w", id, err)
	}
	return nil
}

// SetApplicationStatus records the outcome of a writer application on the profile.
func (q *Queries) SetApplicationStatus(ctx context.Context, id model.ID, status string) error {
	patch := map[string]any{"writer_application_status": status}
	if err := q.gw.From(TableProfiles).Eq("id", id).Update(ctx, patch); err != nil {
		return fmt.Errorf("setting application status of %s: %w", id, err)
	}
	return nil
}
