// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/composerunion/composerunion/internal/gateway"
	"github.com/composerunion/composerunion/internal/model"
	"github.com/composerunion/composerunion/internal/store"
	"github.com/composerunion/composerunion/internal/util"
)

// Listing constants.
const (
	ExcerptLength     = 150
	DescriptionLength = 160
	RelatedLimit      = 5
	AdEvery           = 3
)

// DetailDateLayout is the long date shown on a post page.
const DetailDateLayout = "January 2, 2006"

// Card is one post in a listing. AdAfter is set when an advertisement slot
// follows the card.
type Card struct {
	Post    model.BlogPost
	Excerpt string
	Date    string
	AdAfter bool
}

// PostDetail is a post page.
type PostDetail struct {
	Post        model.BlogPost
	Description string
	AuthorName  string
	Date        string
	Related     []model.PostLink
}

// BlogService reads published posts for the public pages.
type BlogService struct {
	queries *store.Queries
	logger  *slog.Logger
}

// NewBlogService creates a BlogService.
func NewBlogService(queries *store.Queries, logger *slog.Logger) *BlogService {
	return &BlogService{queries: queries, logger: logger}
}

// Listing returns published posts as cards, newest first. An empty category lists
// every category. With ads set, every third card (3, 6, 9, ...) is followed by an
// advertisement slot; the single-category widget passes false.
func (s *BlogService) Listing(ctx context.Context, category string, ads bool) ([]Card, error) {
	posts, err := s.queries.ListPublishedPosts(ctx, category)
	if err != nil {
		return nil, err
	}
	return Cards(posts, ads), nil
}

// Cards turns posts into listing cards.
func Cards(posts []model.BlogPost, ads bool) []Card {
	cards := make([]Card, len(posts))
	for i, p := range posts {
		cards[i] = Card{
			Post:    p,
			Excerpt: util.Excerpt(p.ContentHTML, ExcerptLength),
			Date:    p.CreatedAt.Format(ListDateLayout),
			AdAfter: ads && (i+1)%AdEvery == 0,
		}
	}
	return cards
}

// Detail resolves a post by slug along with up to five related posts. It
// returns gateway.ErrNotFound, logged at warn level, when no post matches.
// Related posts are best effort: a failure leaves the list empty.
func (s *BlogService) Detail(ctx context.Context, slug string) (*PostDetail, error) {
	post, err := s.queries.GetPostBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			s.logger.Warn("post not found", "slug", slug)
		}
		return nil, err
	}

	d := &PostDetail{
		Post:        post,
		Description: util.PlainText(post.ContentHTML, DescriptionLength),
		AuthorName:  post.Author.Name(),
		Date:        post.CreatedAt.Format(DetailDateLayout),
	}

	related, err := s.queries.ListRelatedPosts(ctx, post.Category, post.ID, RelatedLimit)
	if err != nil {
		s.logger.Error("loading related posts", "slug", slug, "error", err)
	} else {
		d.Related = related
	}
	return d, nil
}

// Subscribe adds an email to the newsletter.
func (s *BlogService) Subscribe(ctx context.Context, email string) error {
	return s.queries.CreateSubscriber(ctx, email)
}
