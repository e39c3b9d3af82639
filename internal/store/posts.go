// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/composerunion/composerunion/internal/model"
)

const postWithAuthor = "*, profiles(full_name)"

// PostParams is the writable part of a blog post. ImageURL is omitted from the
// payload when nil so an update keeps the stored image.
type PostParams struct {
	Title       string  `json:"title"`
	Slug        string  `json:"slug"`
	Category    string  `json:"category"`
	ContentHTML string  `json:"content_html"`
	AuthorID    string  `json:"author_id"`
	Published   bool    `json:"published"`
	ImageURL    *string `json:"image_url,omitempty"`
}

type updatePostParams struct {
	PostParams
	UpdatedAt time.Time `json:"updated_at"`
}

// ListPosts returns every post with its author name, newest first.
func (q *Queries) ListPosts(ctx context.Context) ([]model.BlogPost, error) {
	var posts []model.BlogPost
	_, err := q.gw.From(TablePosts).
		Select(postWithAuthor).
		Order("created_at", false).
		Execute(ctx, &posts)
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	return posts, nil
}

// ListPublishedPosts returns published posts, newest first. An empty category
// means all categories.
func (q *Queries) ListPublishedPosts(ctx context.Context, category string) ([]model.BlogPost, error) {
	query := q.gw.From(TablePosts).
		Select(postWithAuthor).
		Eq("published", true).
		Order("created_at", false)
	if category != "" {
		query = query.Eq("category", category)
	}

	var posts []model.BlogPost
	if _, err := query.Execute(ctx, &posts); err != nil {
		return nil, fmt.Errorf("listing published posts: %w", err)
	}
	return posts, nil
}

// GetPostByID returns one post. A missing row matches gateway.ErrNotFound.
func (q *Queries) GetPostByID(ctx context.Context, id model.ID) (model.BlogPost, error) {
	var post model.BlogPost
	_, err := q.gw.From(TablePosts).Eq("id", id).Single().Execute(ctx, &post)
	if err != nil {
		return post, fmt.Errorf("getting post %s: %w", id, err)
	}
	return post, nil
}

// GetPostBySlug returns one post with its author name.
func (q *Queries) GetPostBySlug(ctx context.Context, slug string) (model.BlogPost, error) {
	var post model.BlogPost
	_, err := q.gw.From(TablePosts).Select(postWithAuthor).Eq("slug", slug).Single().Execute(ctx, &post)
	if err != nil {
		return post, fmt.Errorf("getting post by slug %q: %w", slug, err)
	}
	return post, nil
}

// ListRelatedPosts returns up to limit published posts of a category other than excludeID.
func (q *Queries) ListRelatedPosts(ctx context.Context, category string, excludeID model.ID, limit int) ([]model.PostLink, error) {
	var links []model.PostLink
	_, err := q.gw.From(TablePosts).
		Select("title, slug").
		Eq("category", category).
		Eq("published", true).
		Neq("id", excludeID).
		Limit(limit).
		Execute(ctx, &links)
	if err != nil {
		return nil, fmt.Errorf("listing related posts: %w", err)
	}
	return links, nil
}

// CountPostsBySlug returns how many posts, published or not, use slug.
func (q *Queries) CountPostsBySlug(ctx context.Context, slug string) (int, error) {
	n, err := q.gw.From(TablePosts).Select("id").Eq("slug", slug).Limit(1).Count().Execute(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("counting posts by slug: %w", err)
	}
	return n, nil
}

// CreatePost inserts a post.
func (q *Queries) CreatePost(ctx context.Context, p PostParams) error {
	if err := q.gw.From(TablePosts).Insert(ctx, p); err != nil {
		return fmt.Errorf("creating post: %w", err)
	}
	return nil
}

// UpdatePost rewrites a post in place and stamps its modification time.
func (q *Queries) UpdatePost(ctx context.Context, id model.ID, p PostParams, updatedAt time.Time) error {
	err := q.gw.From(TablePosts).Eq("id", id).Update(ctx, updatePostParams{PostParams: p, UpdatedAt: updatedAt})
	if err != nil {
		return fmt.Errorf("updating post %s: %w", id, err)
	}
	return nil
}

// DeletePost removes a post.
func (q *Queries) DeletePost(ctx context.Context, id model.ID) error {
	if err := q.gw.From(TablePosts).Eq("id", id).Delete(ctx); err != nil {
		return fmt.Errorf("deleting post %s: %w", id, err)
	}
	return nil
}
