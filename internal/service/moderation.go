// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"log/slog"

	"github.com/composerunion/composerunion/internal/model"
	"github.com/composerunion/composerunion/internal/store"
	"github.com/composerunion/composerunion/internal/util"
)

// ListDateLayout is the short date used in tables and exports.
const ListDateLayout = "1/2/2006"

// Export file names.
const (
	UsersExportName       = "users.csv"
	SubscribersExportName = "newsletter_subscribers.csv"
)

// ModerationService reviews writer applications and lists users and subscribers.
type ModerationService struct {
	queries *store.Queries
	logger  *slog.Logger
}

// NewModerationService creates a ModerationService.
func NewModerationService(queries *store.Queries, logger *slog.Logger) *ModerationService {
	return &ModerationService{queries: queries, logger: logger}
}

// ListApplications returns applications with applicant names, newest first.
func (s *ModerationService) ListApplications(ctx context.Context) ([]model.WriterApplication, error) {
	return s.queries.ListApplications(ctx)
}

// Approve marks an application approved and then promotes the applicant to writer.
// The applicant is the user_id stored on the application row. The two updates
// run in that order. When the promotion fails the status is put back to pending
// and a *PartialApprovalError is returned.
func (s *ModerationService) Approve(ctx context.Context, applicationID model.ID) error {
	app, err := s.queries.GetApplication(ctx, applicationID)
	if err != nil {
		return err
	}
	userID := app.UserID

	if err := s.queries.UpdateApplicationStatus(ctx, applicationID, model.ApplicationApproved); err != nil {
		return err
	}

	err = s.queries.UpdateProfileRole(ctx, userID, model.RoleWriter)
	if err == nil {
		return nil
	}

	perr := &PartialApprovalError{ApplicationID: applicationID, UserID: userID, Err: err}
	if rerr := s.queries.UpdateApplicationStatus(ctx, applicationID, model.ApplicationPending); rerr != nil {
		perr.RollbackErr = rerr
		s.logger.Error("approval left inconsistent",
			"application_id", applicationID, "user_id", userID, "error", err, "rollback_error", rerr)
	} else {
		perr.RolledBack = true
		s.logger.Warn("approval rolled back", "application_id", applicationID, "user_id", userID, "error", err)
	}
	return perr
}

// Reject marks an application rejected and clears the pending mark on the
// applicant's profile, so the applicant may apply again.
func (s *ModerationService) Reject(ctx context.Context, applicationID model.ID) error {
	app, err := s.queries.GetApplication(ctx, applicationID)
	if err != nil {
		return err
	}
	if err := s.queries.UpdateApplicationStatus(ctx, applicationID, model.ApplicationRejected); err != nil {
		return err
	}
	if err := s.queries.SetApplicationStatus(ctx, app.UserID, model.ApplicationRejected); err != nil {
		s.logger.Warn("clearing pending mark after rejection",
			"application_id", applicationID, "user_id", app.UserID, "error", err)
	}
	return nil
}

// ListUsers returns every profile, newest first.
func (s *ModerationService) ListUsers(ctx context.Context) ([]model.Profile, error) {
	return s.queries.ListProfiles(ctx)
}

// ListSubscribers returns every newsletter subscriber, newest first.
func (s *ModerationService) ListSubscribers(ctx context.Context) ([]model.Subscriber, error) {
	return s.queries.ListSubscribers(ctx)
}

// ExportUsers renders the users table as CSV.
func (s *ModerationService) ExportUsers(ctx context.Context) ([]byte, error) {
	users, err := s.queries.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}
	return UsersCSV(users).Bytes(), nil
}

// ExportSubscribers renders the subscribers table as CSV.
func (s *ModerationService) ExportSubscribers(ctx context.Context) ([]byte, error) {
	subs, err := s.queries.ListSubscribers(ctx)
	if err != nil {
		return nil, err
	}
	return SubscribersCSV(subs).Bytes(), nil
}

// UsersCSV builds the users export: Name,Role,Joined.
func UsersCSV(users []model.Profile) *util.CSV {
	c := util.NewCSV("Name", "Role", "Joined")
	for _, u := range users {
		c.Row(u.DisplayName("N/A"), string(u.Role), u.CreatedAt.Format(ListDateLayout))
	}
	return c
}

// SubscribersCSV builds the subscribers export: Email,Subscribed.
func SubscribersCSV(subs []model.Subscriber) *util.CSV {
	c := util.NewCSV("Email", "Subscribed")
	for _, s := range subs {
		c.Row(s.Email, s.CreatedAt.Format(ListDateLayout))
	}
	return c
}
