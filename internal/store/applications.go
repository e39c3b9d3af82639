// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"fmt"

	"github.com/composerunion/composerunion/internal/model"
)

// ListApplications returns writer applications with the applicant name, newest first.
func (q *Queries) ListApplications(ctx context.Context) ([]model.WriterApplication, error) {
	var apps []model.WriterApplication
	_, err := q.gw.From(TableApplications).
		Select("*, profiles(full_name)").
		Order("submitted_at", false).
		Execute(ctx, &apps)
	if err != nil {
		return nil, fmt.Errorf("listing applications: %w", err)
	}
	return apps, nil
}

// GetApplication returns one writer application.
func (q *Queries) GetApplication(ctx context.Context, id model.ID) (model.WriterApplication, error) {
	var app model.WriterApplication
	_, err := q.gw.From(TableApplications).Eq("id", id).Single().Execute(ctx, &app)
	if err != nil {
		return app, fmt.Errorf("getting application %s: %w", id, err)
	}
	return app, nil
}

// LatestApplication returns the most recent application of a user, or nil when
// the user never applied.
func (q *Queries) LatestApplication(ctx context.Context, userID model.ID) (*model.WriterApplication, error) {
	var apps []model.WriterApplication
	_, err := q.gw.From(TableApplications).
		Eq("user_id", userID).
		Order("submitted_at", false).
		Limit(1).
		Execute(ctx, &apps)
	if err != nil {
		return nil, fmt.Errorf("getting latest application of %s: %w", userID, err)
	}
	if len(apps) == 0 {
		return nil, nil
	}
	return &apps[0], nil
}

// CreateApplication files a writer application; the backend defaults status to pending.
func (q *Queries) CreateApplication(ctx context.Context, userID model.ID, bio string) error {
	row := map[string]any{"user_id": userID, "bio_text": bio}
	if err := q.gw.From(TableApplications).Insert(ctx, row); err != nil {
		return fmt.Errorf("creating application: %w", err)
	}
	return nil
}

// UpdateApplicationStatus sets the status of an application.
func (q *Queries) UpdateApplicationStatus(ctx context.Context, id model.ID, status string) error {
	if err := q.gw.From(TableApplications).Eq("id", id).Update(ctx, map[string]any{"status": status}); err != nil {
		return fmt.Errorf("updating application %s: %w", id, err)
	}
	return nil
}

// ListSubscribers returns newsletter subscribers, newest first.
func (q *Queries) ListSubscribers(ctx context.Context) ([]model.Subscriber, error) {
	var subs []model.Subscriber
	_, err := q.gw.From(TableSubscribers).Order("created_at", false).Execute(ctx, &subs)
	if err != nil {
		return nil, fmt.Errorf("listing subscribers: %w", err)
	}
	return subs, nil
}

// CreateSubscriber adds a newsletter subscription.
func (q *Queries) CreateSubscriber(ctx context.Context, email string) error {
	if err := q.gw.From(TableSubscribers).Insert(ctx, map[string]any{"email": email}); err != nil {
		return fmt.Errorf("creating subscriber: %w", err)
	}
	return nil
}
