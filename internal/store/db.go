// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package store holds the typed table queries the site runs against the backend,
// plus the local SQLite database used only for server-side sessions.
package store

import "github.com/composerunion/composerunion/internal/gateway"

// Remote table names.
const (
	TableProfiles     = "profiles"
	TablePosts        = "blog_posts"
	TableApplications = "writer_applications"
	TableSubscribers  = "newsletter_subscribers"
)

// Queries runs typed table operations through the gateway.
type Queries struct {
	gw *gateway.Client
}

// New creates Queries bound to a gateway client.
func New(gw *gateway.Client) *Queries {
	return &Queries{gw: gw}
}
