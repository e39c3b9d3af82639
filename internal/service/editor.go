// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/composerunion/composerunion/internal/model"
	"github.com/composerunion/composerunion/internal/store"
	"github.com/composerunion/composerunion/internal/util"
)

// EditorMode is the state of the post form.
type EditorMode int

// Editor modes.
const (
	ModeEmpty EditorMode = iota
	ModeEditingNew
	ModeEditingExisting
)

func (m EditorMode) String() string {
	switch m {
	case ModeEditingNew:
		return "editing-new"
	case ModeEditingExisting:
		return "editing-existing"
	default:
		return "empty"
	}
}

// EditorState is the post form state. PostID is set only in ModeEditingExisting.
type EditorState struct {
	Mode   EditorMode
	PostID model.ID
}

// EmptyEditor is the cleared form.
func EmptyEditor() EditorState { return EditorState{Mode: ModeEmpty} }

// EditingNew is a form holding a post that has not been saved yet.
func EditingNew() EditorState { return EditorState{Mode: ModeEditingNew} }

// EditingExisting is a form bound to a stored post.
func EditingExisting(id model.ID) EditorState {
	return EditorState{Mode: ModeEditingExisting, PostID: id}
}

// PostForm is the content of the post form. A non-empty ID binds it to a stored post.
type PostForm struct {
	ID          model.ID
	Title       string
	Slug        string
	Category    string
	ContentHTML string
	AuthorID    model.ID
	Published   bool
	ImageURL    string // current image, shown as preview only
	Image       *ImageFile
}

// State returns the editor state the form is in.
func (f PostForm) State() EditorState {
	if f.ID != "" {
		return EditingExisting(f.ID)
	}
	return EditingNew()
}

// ShowPreview reports whether the image preview is visible.
func (f PostForm) ShowPreview() bool {
	return f.ImageURL != ""
}

// EditorService creates, updates and deletes posts.
type EditorService struct {
	queries *store.Queries
	images  *ImageService
	now     func() time.Time
}

// NewEditorService creates an EditorService.
func NewEditorService(queries *store.Queries, images *ImageService) *EditorService {
	return &EditorService{queries: queries, images: images, now: time.Now}
}

// DeriveSlug computes the slug suggested for a title.
func (s *EditorService) DeriveSlug(title string) string {
	return util.Slugify(title)
}

// ListPosts returns every post with its author, newest first.
func (s *EditorService) ListPosts(ctx context.Context) ([]model.BlogPost, error) {
	return s.queries.ListPosts(ctx)
}

// ListAuthors returns the profiles offered in the author dropdown.
func (s *EditorService) ListAuthors(ctx context.Context) ([]model.Profile, error) {
	return s.queries.ListAuthors(ctx)
}

// Load fills the form from a stored post.
func (s *EditorService) Load(ctx context.Context, id model.ID) (PostForm, EditorState, error) {
	post, err := s.queries.GetPostByID(ctx, id)
	if err != nil {
		return PostForm{}, EmptyEditor(), err
	}
	form := PostForm{
		ID:          post.ID,
		Title:       post.Title,
		Slug:        post.Slug,
		Category:    post.Category,
		ContentHTML: post.ContentHTML,
		AuthorID:    post.AuthorID,
		Published:   post.Published,
		ImageURL:    post.Image(),
	}
	return form, EditingExisting(post.ID), nil
}

// Submit saves the form. On success the editor returns to the empty state; on
// failure it stays in the form's own state so the operator can correct it.
//
// A new image is uploaded first and a failed upload saves nothing. Existing posts
// are updated in place with a fresh updated_at. New posts are inserted only when
// no post, published or not, already uses the slug. Fields are not otherwise
// validated: an empty form is inserted as is.
func (s *EditorService) Submit(ctx context.Context, form PostForm) (EditorState, error) {
	state := form.State()

	var imageURL *string
	if form.Image != nil {
		url, err := s.images.Upload(ctx, form.Image)
		if err != nil {
			return state, fmt.Errorf("uploading featured image: %w", err)
		}
		imageURL = &url
	}

	params := store.PostParams{
		Title:       form.Title,
		Slug:        form.Slug,
		Category:    form.Category,
		ContentHTML: form.ContentHTML,
		AuthorID:    string(form.AuthorID),
		Published:   form.Published,
		ImageURL:    imageURL,
	}

	if state.Mode == ModeEditingExisting {
		if err := s.queries.UpdatePost(ctx, state.PostID, params, s.now().UTC()); err != nil {
			return state, err
		}
		return EmptyEditor(), nil
	}

	n, err := s.queries.CountPostsBySlug(ctx, form.Slug)
	if err != nil {
		return state, fmt.Errorf("checking for duplicate slug: %w", err)
	}
	if n > 0 {
		return state, ErrDuplicateSlug
	}
	if err := s.queries.CreatePost(ctx, params); err != nil {
		return state, err
	}
	return EmptyEditor(), nil
}

// Delete removes a post. Callers confirm with the operator first.
func (s *EditorService) Delete(ctx context.Context, id model.ID) error {
	return s.queries.DeletePost(ctx, id)
}

// UploadInlineImage stores an image placed inside a post body and returns its URL.
func (s *EditorService) UploadInlineImage(ctx context.Context, f *ImageFile) (string, error) {
	return s.images.Upload(ctx, f)
}
