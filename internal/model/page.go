// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// BlogPost is a row of the blog_posts table, optionally joined with the author profile.
type BlogPost struct {
	ID          ID          `json:"id"`
	Title       string      `json:"title"`
	Slug        string      `json:"slug"`
	Category    string      `json:"category"`
	ContentHTML string      `json:"content_html"`
	ImageURL    *string     `json:"image_url"`
	AuthorID    ID          `json:"author_id"`
	Published   bool        `json:"published"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   *time.Time  `json:"updated_at"`
	Author      *ProfileRef `json:"profiles,omitempty"`
}

// HasImage reports whether a featured image is set.
func (p *BlogPost) HasImage() bool {
	return p.ImageURL != nil && *p.ImageURL != ""
}

// Image returns the featured image URL or an empty string.
func (p *BlogPost) Image() string {
	if p.ImageURL == nil {
		return ""
	}
	return *p.ImageURL
}

// PostLink is the title/slug projection used for related-post lists.
type PostLink struct {
	Title string `json:"title"`
	Slug  string `json:"slug"`
}
