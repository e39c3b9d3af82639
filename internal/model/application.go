// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// WriterApplication is a request by a reader to be promoted to the writer role.
type WriterApplication struct {
	ID          ID          `json:"id"`
	UserID      ID          `json:"user_id"`
	BioText     string      `json:"bio_text"`
	Status      string      `json:"status"`
	SubmittedAt time.Time   `json:"submitted_at"`
	Applicant   *ProfileRef `json:"profiles,omitempty"`
}

// IsPending returns true while the application awaits an admin decision.
func (a *WriterApplication) IsPending() bool {
	return a.Status == ApplicationPending
}

// BioPreview returns the first 100 characters of the bio followed by an ellipsis.
func (a *WriterApplication) BioPreview() string {
	r := []rune(a.BioText)
	if len(r) > 100 {
		r = r[:100]
	}
	return string(r) + "..."
}

// Subscriber is a newsletter subscription.
type Subscriber struct {
	ID        ID        `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
