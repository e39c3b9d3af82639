// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package ui is the per-request notification and dialog surface. A toast set
// by one request is shown by the next rendered page; a modal lives only for the
// page it is shown on.
package ui

import (
	"context"
	"net/http"

	"github.com/alexedwards/scs/v2"
)

// Kind is the style of a toast.
type Kind string

// Toast kinds.
const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

// Session keys holding the pending toast.
const (
	flashKey     = "flash"
	flashTypeKey = "flash_type"
)

// Toast is a notification message.
type Toast struct {
	Message string
	Kind    Kind
}

// Modal is a confirmation dialog. Confirming posts to Action; cancelling goes
// to CancelURL without any remote call.
type Modal struct {
	Title        string
	Message      string
	Action       string
	ConfirmLabel string
	CancelURL    string
}

// Context holds the toast and modal state of one request.
type Context struct {
	sm    *scs.SessionManager
	ctx   context.Context
	modal *Modal
}

type ctxKey struct{}

// New creates a Context bound to the request's session.
func New(sm *scs.SessionManager, r *http.Request) *Context {
	return &Context{sm: sm, ctx: r.Context()}
}

// Attach returns r with c stored in its context.
func Attach(r *http.Request, c *Context) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), ctxKey{}, c))
}

// From returns the Context attached to r. A detached Context that drops toasts
// is returned when none was attached.
func From(r *http.Request) *Context {
	if c, ok := r.Context().Value(ctxKey{}).(*Context); ok {
		return c
	}
	return &Context{ctx: r.Context()}
}

// Notify queues a toast for the next rendered page.
func (c *Context) Notify(message string, kind Kind) {
	if c.sm == nil {
		return
	}
	c.sm.Put(c.ctx, flashKey, message)
	c.sm.Put(c.ctx, flashTypeKey, string(kind))
}

// Info queues an info toast.
func (c *Context) Info(message string) { c.Notify(message, KindInfo) }

// Success queues a success toast.
func (c *Context) Success(message string) { c.Notify(message, KindSuccess) }

// Warning queues a warning toast.
func (c *Context) Warning(message string) { c.Notify(message, KindWarning) }

// Error queues an error toast.
func (c *Context) Error(message string) { c.Notify(message, KindError) }

// PopToast removes and returns the pending toast, if any.
func (c *Context) PopToast() *Toast {
	if c.sm == nil {
		return nil
	}
	msg := c.sm.PopString(c.ctx, flashKey)
	if msg == "" {
		return nil
	}
	kind := Kind(c.sm.PopString(c.ctx, flashTypeKey))
	if kind == "" {
		kind = KindInfo
	}
	return &Toast{Message: msg, Kind: kind}
}

// ShowModal opens a dialog on the page being rendered.
func (c *Context) ShowModal(m Modal) {
	if m.ConfirmLabel == "" {
		m.ConfirmLabel = "Confirm"
	}
	c.modal = &m
}

// HideModal closes the dialog.
func (c *Context) HideModal() {
	c.modal = nil
}

// Modal returns the open dialog or nil.
func (c *Context) Modal() *Modal {
	return c.modal
}
