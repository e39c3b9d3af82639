// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/composerunion/composerunion/internal/middleware"
	"github.com/composerunion/composerunion/internal/render"
	"github.com/composerunion/composerunion/internal/service"
	"github.com/composerunion/composerunion/internal/ui"
)

// Account messages.
const (
	MsgAccountLoadFailed = "Error loading user data."
	MsgBioTooShort       = "Please provide a more detailed bio (minimum 50 words)."
	MsgApplicationSent   = "Writer application submitted successfully! We will review it shortly."
	MsgApplicationFailed = "Error submitting application: "
	MsgNotEligible       = "Only readers can apply to become writers."
	MsgAlreadyApplied    = "Your writer application is already pending review."
)

// AccountHandler serves the account page of a signed-in reader.
type AccountHandler struct {
	renderer *render.Renderer
	accounts *service.AccountService
	logger   *slog.Logger
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(renderer *render.Renderer, accounts *service.AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{renderer: renderer, accounts: accounts, logger: logger}
}

// AccountData is the data of the account page. Bio holds a rejected draft.
type AccountData struct {
	Account *service.Account
	Bio     string
}

// Show handles GET /account.
func (h *AccountHandler) Show(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "")
}

func (h *AccountHandler) render(w http.ResponseWriter, r *http.Request, bio string) {
	id := middleware.GetIdentity(r)

	acct, err := h.accounts.Load(r.Context(), id.UserID, id.Email)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to load account", "user_id", id.UserID, "error", err)
		ui.From(r).Error(MsgAccountLoadFailed)
	}

	renderPage(w, r, h.renderer, "account", render.TemplateData{
		Title: "My Account",
		Data:  AccountData{Account: acct, Bio: bio},
	})
}

// Apply handles POST /account/writer-application. A short bio is sent back
// with the form still open.
func (h *AccountHandler) Apply(w http.ResponseWriter, r *http.Request) {
	id := middleware.GetIdentity(r)
	bio := r.FormValue("bio")

	err := h.accounts.Apply(r.Context(), id.UserID, bio)
	switch {
	case errors.Is(err, service.ErrBioTooShort):
		ui.From(r).Warning(MsgBioTooShort)
		h.render(w, r, bio)
	case errors.Is(err, service.ErrNotEligible):
		flashError(w, r, RouteAccount, MsgNotEligible)
	case errors.Is(err, service.ErrApplicationPending):
		flashInfo(w, r, RouteAccount, MsgAlreadyApplied)
	case err != nil:
		h.logger.ErrorContext(r.Context(), "writer application failed", "user_id", id.UserID, "error", err)
		flashError(w, r, RouteAccount, MsgApplicationFailed+service.RemoteMessage(err))
	default:
		h.logger.InfoContext(r.Context(), "writer application submitted", "user_id", id.UserID)
		flashSuccess(w, r, RouteAccount, MsgApplicationSent)
	}
}
