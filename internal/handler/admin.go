// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/composerunion/composerunion/internal/model"
	"github.com/composerunion/composerunion/internal/render"
	"github.com/composerunion/composerunion/internal/service"
	"github.com/composerunion/composerunion/internal/ui"
	"github.com/composerunion/composerunion/internal/util"
)

// Dashboard messages.
const (
	MsgPostSaved           = "Post saved successfully!"
	MsgPostSavedBadSlug    = "Post saved, but its slug is not URL-friendly. Use lowercase letters, digits and single hyphens."
	MsgDuplicateSlug       = "A post with this slug already exists. Please choose a different title or slug."
	MsgPostSaveFailed      = "Error saving post: "
	MsgPostLoadFailed      = "Error loading post: "
	MsgPostDeleted         = "Post deleted successfully!"
	MsgPostDeleteFailed    = "Error deleting post: "
	MsgConfirmDeleteTitle  = "Confirm Deletion"
	MsgConfirmDeletePost   = "Are you sure you want to delete this post?"
	MsgImageUploadFailed   = "Failed to upload image for post content."
	MsgApproved            = "Application approved! User is now a writer."
	MsgApproveFailed       = "Error approving application: "
	MsgRejected            = "Application rejected."
	MsgRejectFailed        = "Error rejecting application: "
	MsgExportFailed        = "Error exporting data: "
	MsgDashboardLoadFailed = "Error loading data: "
)

// maxUploadRequest bounds a multipart request: the image plus the form fields.
const maxUploadRequest = service.MaxImageSize + 1<<20

// AdminHandler serves the dashboard: the post editor and the moderation tables.
type AdminHandler struct {
	renderer   *render.Renderer
	editor     *service.EditorService
	moderation *service.ModerationService
	categories []string
	logger     *slog.Logger
}

// NewAdminHandler creates an AdminHandler. categories are suggested in the
// post form.
func NewAdminHandler(renderer *render.Renderer, editor *service.EditorService, moderation *service.ModerationService, categories []string, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		renderer:   renderer,
		editor:     editor,
		moderation: moderation,
		categories: categories,
		logger:     logger,
	}
}

// DashboardData is the data of the dashboard. Only the active tab's tables
// are loaded.
type DashboardData struct {
	Tab          string
	Form         service.PostForm
	State        service.EditorState
	Categories   []string
	Authors      []model.Profile
	Posts        []model.BlogPost
	Applications []model.WriterApplication
	Users        []model.Profile
	Subscribers  []model.Subscriber
}

// Dashboard handles GET /admin?tab=.
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	tab := r.URL.Query().Get("tab")
	switch tab {
	case TabPosts, TabApplications, TabUsers, TabSubscribers:
	default:
		tab = TabPosts
	}
	h.renderDashboard(w, r, tab, service.PostForm{}, service.EmptyEditor())
}

// renderDashboard loads the tab's tables and renders it. A failed load is
// reported and leaves that table empty.
func (h *AdminHandler) renderDashboard(w http.ResponseWriter, r *http.Request, tab string, form service.PostForm, state service.EditorState) {
	ctx := r.Context()
	data := DashboardData{Tab: tab, Form: form, State: state, Categories: h.categories}

	var err error
	switch tab {
	case TabPosts:
		if data.Authors, err = h.editor.ListAuthors(ctx); err != nil {
			h.loadFailed(r, "authors", err)
		}
		if data.Posts, err = h.editor.ListPosts(ctx); err != nil {
			h.loadFailed(r, "posts", err)
		}
	case TabApplications:
		if data.Applications, err = h.moderation.ListApplications(ctx); err != nil {
			h.loadFailed(r, "applications", err)
		}
	case TabUsers:
		if data.Users, err = h.moderation.ListUsers(ctx); err != nil {
			h.loadFailed(r, "users", err)
		}
	case TabSubscribers:
		if data.Subscribers, err = h.moderation.ListSubscribers(ctx); err != nil {
			h.loadFailed(r, "subscribers", err)
		}
	}

	renderPage(w, r, h.renderer, "admin/dashboard", render.TemplateData{
		Title: "Admin Dashboard",
		Data:  data,
	})
}

func (h *AdminHandler) loadFailed(r *http.Request, table string, err error) {
	h.logger.ErrorContext(r.Context(), "failed to load dashboard table", "table", table, "error", err)
	ui.From(r).Error(MsgDashboardLoadFailed + service.RemoteMessage(err))
}

// PostSlug handles GET /admin/posts/slug?title=, the live slug preview.
func (h *AdminHandler) PostSlug(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"slug": h.editor.DeriveSlug(r.URL.Query().Get("title")),
	})
}

// SubmitPost handles POST /admin/posts. A form carrying an id updates that post;
// otherwise a new post is created. On failure the form is shown again as
// submitted.
func (h *AdminHandler) SubmitPost(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadRequest)
	if err := r.ParseMultipartForm(service.MaxImageSize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		h.logger.WarnContext(r.Context(), "invalid post form", "error", err)
		flashError(w, r, redirectAdminPosts, MsgPostSaveFailed+err.Error())
		return
	}

	form := service.PostForm{
		ID:          model.ID(strings.TrimSpace(r.FormValue("id"))),
		Title:       r.FormValue("title"),
		Slug:        r.FormValue("slug"),
		Category:    r.FormValue("category"),
		ContentHTML: r.FormValue("content_html"),
		AuthorID:    model.ID(r.FormValue("author_id")),
		Published:   r.FormValue("published") != "",
	}

	image, closeImage, err := formImage(r, "image")
	if err != nil {
		flashError(w, r, redirectAdminPosts, MsgPostSaveFailed+err.Error())
		return
	}
	defer closeImage()
	form.Image = image

	state, err := h.editor.Submit(r.Context(), form)
	if err != nil {
		msg := MsgPostSaveFailed + service.RemoteMessage(err)
		if errors.Is(err, service.ErrDuplicateSlug) {
			msg = MsgDuplicateSlug
		}
		h.logger.WarnContext(r.Context(), "failed to save post", "post_id", form.ID, "slug", form.Slug, "error", err)
		ui.From(r).Error(msg)

		form.Image = nil
		form.ImageURL = h.currentImage(r.Context(), state)
		h.renderDashboard(w, r, TabPosts, form, state)
		return
	}

	h.logger.InfoContext(r.Context(), "post saved", "post_id", form.ID, "slug", form.Slug)
	if !util.IsValidSlug(form.Slug) {
		flashWarning(w, r, redirectAdminPosts, MsgPostSavedBadSlug)
		return
	}
	flashSuccess(w, r, redirectAdminPosts, MsgPostSaved)
}

// currentImage returns the stored image of the post being edited so the
// re-shown form keeps its preview.
func (h *AdminHandler) currentImage(ctx context.Context, state service.EditorState) string {
	if state.Mode != service.ModeEditingExisting {
		return ""
	}
	form, _, err := h.editor.Load(ctx, state.PostID)
	if err != nil {
		return ""
	}
	return form.ImageURL
}

// EditPost handles GET /admin/posts/{id}/edit.
func (h *AdminHandler) EditPost(w http.ResponseWriter, r *http.Request) {
	id := model.ID(chi.URLParam(r, "id"))

	form, state, err := h.editor.Load(r.Context(), id)
	if err != nil {
		h.logger.WarnContext(r.Context(), "failed to load post", "post_id", id, "error", err)
		flashError(w, r, redirectAdminPosts, MsgPostLoadFailed+service.RemoteMessage(err))
		return
	}
	h.renderDashboard(w, r, TabPosts, form, state)
}

// ConfirmDeletePost handles GET /admin/posts/{id}/delete. It only shows the
// confirmation dialog; cancelling returns to the posts tab without a remote call.
func (h *AdminHandler) ConfirmDeletePost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ui.From(r).ShowModal(ui.Modal{
		Title:        MsgConfirmDeleteTitle,
		Message:      MsgConfirmDeletePost,
		Action:       fmt.Sprintf(redirectAdminPostsID, id) + RouteSuffixDelete,
		ConfirmLabel: "Delete",
		CancelURL:    redirectAdminPosts,
	})
	h.renderDashboard(w, r, TabPosts, service.PostForm{}, service.EmptyEditor())
}

// DeletePost handles POST /admin/posts/{id}/delete.
func (h *AdminHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	id := model.ID(chi.URLParam(r, "id"))

	if err := h.editor.Delete(r.Context(), id); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to delete post", "post_id", id, "error", err)
		flashError(w, r, redirectAdminPosts, MsgPostDeleteFailed+service.RemoteMessage(err))
		return
	}

	h.logger.InfoContext(r.Context(), "post deleted", "post_id", id)
	flashSuccess(w, r, redirectAdminPosts, MsgPostDeleted)
}

// UploadImage handles POST /admin/images for images placed inside a post body.
// It responds with {"url": ...}.
func (h *AdminHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadRequest)
	if err := r.ParseMultipartForm(service.MaxImageSize); err != nil {
		writeJSONError(w, http.StatusBadRequest, MsgImageUploadFailed)
		return
	}

	image, closeImage, err := formImage(r, "image")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, MsgImageUploadFailed)
		return
	}
	defer closeImage()

	url, err := h.editor.UploadInlineImage(r.Context(), image)
	if err != nil {
		h.logger.WarnContext(r.Context(), "inline image upload failed", "error", err)
		status := http.StatusBadGateway
		if errors.Is(err, service.ErrNoFile) || errors.Is(err, service.ErrImageTooLarge) || errors.Is(err, service.ErrUnsupportedImage) {
			status = http.StatusBadRequest
		}
		writeJSONError(w, status, MsgImageUploadFailed+" "+service.RemoteMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// formImage returns the uploaded file of a form field, or nil when none was
// chosen. The returned function closes the file.
func formImage(r *http.Request, field string) (*service.ImageFile, func(), error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, func() {}, nil
		}
		return nil, func() {}, err
	}
	return imageFile(file, header), func() { _ = file.Close() }, nil
}

func imageFile(file multipart.File, header *multipart.FileHeader) *service.ImageFile {
	return &service.ImageFile{
		Filename:    header.Filename,
		Size:        header.Size,
		ContentType: header.Header.Get(HeaderContentType),
		Body:        file,
	}
}

// ApproveApplication handles POST /admin/applications/{id}/approve.
func (h *AdminHandler) ApproveApplication(w http.ResponseWriter, r *http.Request) {
	id := model.ID(chi.URLParam(r, "id"))

	if err := h.moderation.Approve(r.Context(), id); err != nil {
		var partial *service.PartialApprovalError
		if errors.As(err, &partial) {
			flashError(w, r, redirectAdminApplications, MsgApproveFailed+partial.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to approve application", "application_id", id, "error", err)
		flashError(w, r, redirectAdminApplications, MsgApproveFailed+service.RemoteMessage(err))
		return
	}

	h.logger.InfoContext(r.Context(), "application approved", "application_id", id)
	flashSuccess(w, r, redirectAdminApplications, MsgApproved)
}

// RejectApplication handles POST /admin/applications/{id}/reject.
func (h *AdminHandler) RejectApplication(w http.ResponseWriter, r *http.Request) {
	id := model.ID(chi.URLParam(r, "id"))

	if err := h.moderation.Reject(r.Context(), id); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to reject application", "application_id", id, "error", err)
		flashError(w, r, redirectAdminApplications, MsgRejectFailed+service.RemoteMessage(err))
		return
	}

	h.logger.InfoContext(r.Context(), "application rejected", "application_id", id)
	flashInfo(w, r, redirectAdminApplications, MsgRejected)
}

// ExportUsers handles GET /admin/users/export.
func (h *AdminHandler) ExportUsers(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, service.UsersExportName, redirectAdminUsers, h.moderation.ExportUsers)
}

// ExportSubscribers handles GET /admin/subscribers/export.
func (h *AdminHandler) ExportSubscribers(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, service.SubscribersExportName, redirectAdminSubscribers, h.moderation.ExportSubscribers)
}

func (h *AdminHandler) export(w http.ResponseWriter, r *http.Request, filename, back string, build func(context.Context) ([]byte, error)) {
	data, err := build(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "export failed", "file", filename, "error", err)
		flashError(w, r, back, MsgExportFailed+service.RemoteMessage(err))
		return
	}

	w.Header().Set(HeaderContentType, "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write(data)
}
