// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/composerunion/composerunion/internal/middleware"
)

// Handlers are the page controllers mounted by RegisterRoutes.
type Handlers struct {
	Blog    *BlogHandler
	Auth    *AuthHandler
	Account *AccountHandler
	Admin   *AdminHandler
	Health  *HealthHandler
	SEO     *SEOHandler // Optional

	// Admins verifies sessions with the backend and decides dashboard access.
	Admins middleware.AdminChecker
	// AuthLimit rate limits the credential endpoints. Optional.
	AuthLimit func(http.Handler) http.Handler
}

// RegisterRoutes mounts every page and action endpoint. The session, UI and
// identity middleware must already wrap r.
func RegisterRoutes(r chi.Router, h Handlers) {
	if h.Health != nil {
		r.Get("/health", h.Health.Health)
		r.Get("/health/live", h.Health.Liveness)
	}

	if h.SEO != nil {
		r.Get(RouteRobots, h.SEO.Robots)
		r.Get(RouteSitemap, h.SEO.Sitemap)
	}

	registerPublicRoutes(r, h.Blog)
	registerAuthRoutes(r, h.Auth, h.AuthLimit)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession(h.Admins))
		r.Get(RouteAccount, h.Account.Show)
		r.Post(RouteWriterApplication, h.Account.Apply)
		r.Post(RouteAccountLogout, h.Auth.Logout)
	})

	r.Route(RouteAdmin, func(r chi.Router) {
		r.Use(middleware.RequireAdmin(h.Admins))
		registerAdminRoutes(r, h.Admin)
	})
}

func registerPublicRoutes(r chi.Router, h *BlogHandler) {
	r.Get(RouteRoot, h.Listing)
	r.Get(RouteBlog, h.Listing)
	r.Get(RouteWidgetFeatured, h.Widget)
	r.Get(RoutePost, h.Post)
	r.Post(RouteNewsletter, h.Subscribe)
}

func registerAuthRoutes(r chi.Router, h *AuthHandler, limit func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		if limit != nil {
			r.Use(limit)
		}
		r.Get(RouteSignup, h.SignupForm)
		r.Post(RouteSignup, h.Signup)
		r.Post(RouteLogin, h.Login)
		r.Get(RouteResetPassword, h.ResetForm)
		r.Post(RouteResetPassword, h.Reset)
	})
	r.Get(RouteOAuthStart, h.OAuthStart)
	r.Get(RouteOAuthCallback, h.OAuthCallback)
	r.Post(RouteLogout, h.Logout)
}

func registerAdminRoutes(r chi.Router, h *AdminHandler) {
	r.Get(RouteRoot, h.Dashboard)
	r.Get(RoutePostSlug, h.PostSlug)
	r.Post(RoutePosts, h.SubmitPost)
	r.Get(RoutePostsID+RouteSuffixEdit, h.EditPost)
	r.Get(RoutePostsID+RouteSuffixDelete, h.ConfirmDeletePost)
	r.Post(RoutePostsID+RouteSuffixDelete, h.DeletePost)
	r.Post(RouteImages, h.UploadImage)
	r.Post(RouteApplicationsID+RouteSuffixApprove, h.ApproveApplication)
	r.Post(RouteApplicationsID+RouteSuffixReject, h.RejectApplication)
	r.Get(RouteUsersExport, h.ExportUsers)
	r.Get(RouteSubscribersExport, h.ExportSubscribers)
}
