// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package service holds the page-independent logic of the site: the post editor,
// moderation of applications, users and subscribers, the public blog, account
// self-service and sign-in flows. Every read and write goes through the store and
// the backend behind it; nothing here keeps durable state.
package service

import (
	"errors"
	"fmt"

	"github.com/composerunion/composerunion/internal/gateway"
	"github.com/composerunion/composerunion/internal/model"
)

// Precondition failures. Each is returned before any remote call is made.
var (
	ErrDuplicateSlug = errors.New("a post with this slug already exists")
	ErrBioTooShort   = errors.New("writer bio is too short")
	ErrNoFile        = errors.New("no file selected")
)

// Writer application eligibility failures.
var (
	ErrNotEligible        = errors.New("only readers can apply to become writers")
	ErrApplicationPending = errors.New("a writer application is already pending")
)

// ErrAccessDenied is returned when the session is missing or lacks the required role.
var ErrAccessDenied = errors.New("access denied")

// Image validation failures.
var (
	ErrImageTooLarge    = errors.New("image exceeds the upload size limit")
	ErrUnsupportedImage = errors.New("unsupported image type")
)

// PartialApprovalError reports an approval whose application status was saved
// while the role promotion failed. RolledBack tells whether the status was
// restored to pending afterwards.
type PartialApprovalError struct {
	ApplicationID model.ID
	UserID        model.ID
	Err           error
	RolledBack    bool
	RollbackErr   error
}

func (e *PartialApprovalError) Error() string {
	if e.RolledBack {
		return fmt.Sprintf("promoting user %s failed, application %s reset to pending: %v",
			e.UserID, e.ApplicationID, e.Err)
	}
	return fmt.Sprintf("promoting user %s failed and application %s stays approved: %v (rollback: %v)",
		e.UserID, e.ApplicationID, e.Err, e.RollbackErr)
}

// Unwrap returns the promotion error.
func (e *PartialApprovalError) Unwrap() error {
	return e.Err
}

// RemoteMessage returns the backend's own message for a failed remote call, or
// the error text when the failure did not come from the backend.
func RemoteMessage(err error) string {
	var gerr *gateway.Error
	if errors.As(err, &gerr) {
		return gerr.Error()
	}
	return err.Error()
}
