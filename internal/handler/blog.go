// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/composerunion/composerunion/internal/gateway"
	"github.com/composerunion/composerunion/internal/render"
	"github.com/composerunion/composerunion/internal/service"
)

// Newsletter messages.
const (
	MsgSubscribed       = "Thank you for subscribing!"
	MsgSubscribeFailed  = "Error subscribing: "
	MsgSubscribeNoEmail = "Please enter your email address."
)

// BlogHandler serves the public listing, post and newsletter pages.
type BlogHandler struct {
	renderer   *render.Renderer
	blog       *service.BlogService
	categories []string
	logger     *slog.Logger
}

// NewBlogHandler creates a BlogHandler. categories feed the listing's filter bar.
func NewBlogHandler(renderer *render.Renderer, blog *service.BlogService, categories []string, logger *slog.Logger) *BlogHandler {
	return &BlogHandler{renderer: renderer, blog: blog, categories: categories, logger: logger}
}

// ListingData is the data of the listing and widget pages.
type ListingData struct {
	Ads        bool
	Category   string
	Categories []string
	Cards      []service.Card
}

// PostData is the data of the post page. Detail is nil when no post matched.
type PostData struct {
	Detail *service.PostDetail
}

// Listing handles GET / and GET /blog. A failed load is logged and renders an
// empty listing.
func (h *BlogHandler) Listing(w http.ResponseWriter, r *http.Request) {
	h.listing(w, r, "blog", true)
}

// Widget handles GET /widget/featured, the embeddable listing without ads.
func (h *BlogHandler) Widget(w http.ResponseWriter, r *http.Request) {
	h.listing(w, r, "widget/featured", false)
}

func (h *BlogHandler) listing(w http.ResponseWriter, r *http.Request, page string, ads bool) {
	category := strings.TrimSpace(r.URL.Query().Get("category"))

	cards, err := h.blog.Listing(r.Context(), category, ads)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to load posts", "category", category, "error", err)
	}

	title := "Blog"
	if category != "" {
		title = category
	}
	renderPage(w, r, h.renderer, page, render.TemplateData{
		Title: title,
		Data: ListingData{
			Ads:        ads,
			Category:   category,
			Categories: h.categories,
			Cards:      cards,
		},
	})
}

// Post handles GET /post?slug=. An unknown slug renders an empty page with a
// 404 status and no notification.
func (h *BlogHandler) Post(w http.ResponseWriter, r *http.Request) {
	slug := r.URL.Query().Get("slug")

	var detail *service.PostDetail
	var err error
	if slug == "" {
		err = gateway.ErrNotFound
	} else {
		detail, err = h.blog.Detail(r.Context(), slug)
	}

	if err != nil {
		if !errors.Is(err, gateway.ErrNotFound) {
			h.logger.ErrorContext(r.Context(), "failed to load post", "slug", slug, "error", err)
		}
		if rerr := h.renderer.RenderStatus(w, r, http.StatusNotFound, "post", render.TemplateData{
			Title: "Post not found",
			Data:  PostData{},
		}); rerr != nil {
			logAndInternalError(w, "failed to render template", "template", "post", "error", rerr)
		}
		return
	}

	renderPage(w, r, h.renderer, "post", render.TemplateData{
		Title:       detail.Post.Title,
		Description: detail.Description,
		Data:        PostData{Detail: detail},
	})
}

// Subscribe handles POST /newsletter and returns to the page the form was on.
func (h *BlogHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	back := localRedirect(r.FormValue("next"), RouteRoot)

	email := strings.TrimSpace(r.FormValue("email"))
	if email == "" {
		flashError(w, r, back, MsgSubscribeNoEmail)
		return
	}

	if err := h.blog.Subscribe(r.Context(), email); err != nil {
		h.logger.WarnContext(r.Context(), "newsletter subscription failed", "error", err)
		flashError(w, r, back, MsgSubscribeFailed+service.RemoteMessage(err))
		return
	}
	flashSuccess(w, r, back, MsgSubscribed)
}
