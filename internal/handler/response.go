// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/composerunion/composerunion/internal/render"
	"github.com/composerunion/composerunion/internal/ui"
)

// flashAndRedirect sets a flash message and redirects to the given URL.
// Uses http.StatusSeeOther (303) for POST redirects.
func flashAndRedirect(w http.ResponseWriter, r *http.Request, url, message string, kind ui.Kind) {
	ui.From(r).Notify(message, kind)
	http.Redirect(w, r, url, http.StatusSeeOther)
}

// flashError sets an error flash message and redirects to the given URL.
func flashError(w http.ResponseWriter, r *http.Request, url, message string) {
	flashAndRedirect(w, r, url, message, ui.KindError)
}

// flashSuccess sets a success flash message and redirects to the given URL.
func flashSuccess(w http.ResponseWriter, r *http.Request, url, message string) {
	flashAndRedirect(w, r, url, message, ui.KindSuccess)
}

// flashWarning sets a warning flash message and redirects to the given URL.
func flashWarning(w http.ResponseWriter, r *http.Request, url, message string) {
	flashAndRedirect(w, r, url, message, ui.KindWarning)
}

// flashInfo sets an info flash message and redirects to the given URL.
func flashInfo(w http.ResponseWriter, r *http.Request, url, message string) {
	flashAndRedirect(w, r, url, message, ui.KindInfo)
}

// logAndHTTPError logs an error and writes an HTTP error response.
func logAndHTTPError(w http.ResponseWriter, message string, statusCode int, logMsg string, args ...any) {
	slog.Error(logMsg, args...)
	http.Error(w, message, statusCode)
}

// logAndInternalError logs an error and writes a 500 Internal Server Error response.
func logAndInternalError(w http.ResponseWriter, logMsg string, args ...any) {
	logAndHTTPError(w, "Internal Server Error", http.StatusInternalServerError, logMsg, args...)
}

// renderPage renders a template and turns a failure into a 500.
func renderPage(w http.ResponseWriter, r *http.Request, renderer *render.Renderer, name string, data render.TemplateData) {
	if err := renderer.Render(w, r, name, data); err != nil {
		logAndInternalError(w, "failed to render template", "template", name, "error", err)
	}
}

// localRedirect returns target when it is a path on this site, otherwise fallback.
func localRedirect(target, fallback string) string {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return fallback
	}
	return target
}
