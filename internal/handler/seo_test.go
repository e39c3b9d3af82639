// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/composerunion/composerunion/internal/store"
)

func TestRobots(t *testing.T) {
	s := newSite(t)

	resp := s.get("/robots.txt")
	require.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, resp.header.Get("Content-Type"), "text/plain")
	assert.Contains(t, resp.body, "Disallow: /admin\n")
	assert.Contains(t, resp.body, "Sitemap: http://site.test/sitemap.xml")
}

func TestSitemap(t *testing.T) {
	s := newSite(t)
	s.seedPost("Live", "live-post", "news", true)
	s.seedPost("Hidden", "hidden-post", "news", false)

	resp := s.get("/sitemap.xml")
	require.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, resp.header.Get("Content-Type"), "application/xml")
	assert.Contains(t, resp.body, "<loc>http://site.test/blog</loc>")
	assert.Contains(t, resp.body, "<loc>http://site.test/blog?category=composition</loc>")
	assert.Contains(t, resp.body, "<loc>http://site.test/post?slug=live-post</loc>")
	assert.NotContains(t, resp.body, "hidden-post")
}

func TestSitemap_BackendError(t *testing.T) {
	s := newSite(t)
	s.backend.Fail(http.MethodGet, "/rest/v1/"+store.TablePosts, http.StatusInternalServerError, "timeout")

	resp := s.get("/sitemap.xml")
	assert.Equal(t, http.StatusServiceUnavailable, resp.status)
}
