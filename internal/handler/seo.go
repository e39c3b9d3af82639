// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"log/slog"
	"net/http"

	"github.com/composerunion/composerunion/internal/seo"
	"github.com/composerunion/composerunion/internal/service"
)

// SEOHandler serves robots.txt and the sitemap.
type SEOHandler struct {
	blog        *service.BlogService
	siteURL     string
	categories  []string
	disallowAll bool
	logger      *slog.Logger
}

// NewSEOHandler creates an SEOHandler. With disallowAll set, robots.txt turns
// every crawler away.
func NewSEOHandler(blog *service.BlogService, siteURL string, categories []string, disallowAll bool, logger *slog.Logger) *SEOHandler {
	return &SEOHandler{
		blog:        blog,
		siteURL:     siteURL,
		categories:  categories,
		disallowAll: disallowAll,
		logger:      logger,
	}
}

// Robots handles GET /robots.txt.
func (h *SEOHandler) Robots(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(seo.Robots(seo.RobotsConfig{
		SiteURL:     h.siteURL,
		DisallowAll: h.disallowAll,
	})))
}

// Sitemap handles GET /sitemap.xml.
func (h *SEOHandler) Sitemap(w http.ResponseWriter, r *http.Request) {
	cards, err := h.blog.Listing(r.Context(), "", false)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to load posts for sitemap", "error", err)
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	posts := make([]seo.SitemapPost, len(cards))
	for i, c := range cards {
		posts[i] = seo.SitemapPost{Slug: c.Post.Slug, UpdatedAt: c.Post.CreatedAt}
		if c.Post.UpdatedAt != nil {
			posts[i].UpdatedAt = *c.Post.UpdatedAt
		}
	}

	out, err := seo.GenerateSitemap(h.siteURL, h.categories, posts)
	if err != nil {
		logAndInternalError(w, "failed to build sitemap", "error", err)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	_, _ = w.Write(out)
}
