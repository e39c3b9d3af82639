// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package seo renders robots.txt and the XML sitemap of the public blog.
package seo

import (
	"encoding/xml"
	"net/url"
	"strings"
	"time"
)

// XMLNamespace is the sitemap XML namespace.
const XMLNamespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

// ChangeFreq represents the change frequency of a URL.
type ChangeFreq string

// Change frequencies used by the blog.
const (
	ChangeFreqDaily  ChangeFreq = "daily"
	ChangeFreqWeekly ChangeFreq = "weekly"
)

// SitemapURL represents a single URL entry in the sitemap.
type SitemapURL struct {
	Loc        string     `xml:"loc"`
	LastMod    string     `xml:"lastmod,omitempty"`
	ChangeFreq ChangeFreq `xml:"changefreq,omitempty"`
	Priority   string     `xml:"priority,omitempty"`
}

// Sitemap represents the complete sitemap document.
type Sitemap struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []SitemapURL `xml:"url"`
}

// SitemapPost is a published post listed in the sitemap.
type SitemapPost struct {
	Slug      string
	UpdatedAt time.Time
}

// SitemapBuilder builds sitemap XML for the blog.
type SitemapBuilder struct {
	siteURL string
	urls    []SitemapURL
}

// NewSitemapBuilder creates a new sitemap builder.
func NewSitemapBuilder(siteURL string) *SitemapBuilder {
	return &SitemapBuilder{
		siteURL: strings.TrimSuffix(siteURL, "/"),
		urls:    make([]SitemapURL, 0),
	}
}

// AddListing adds the blog listing, filtered to category when it is set.
func (b *SitemapBuilder) AddListing(category string) {
	u := SitemapURL{
		Loc:        b.siteURL + "/blog",
		ChangeFreq: ChangeFreqDaily,
		Priority:   "1.0",
	}
	if category != "" {
		u.Loc += "?category=" + url.QueryEscape(category)
		u.Priority = "0.6"
	}
	b.urls = append(b.urls, u)
}

// AddPost adds a post page.
func (b *SitemapBuilder) AddPost(post SitemapPost) {
	u := SitemapURL{
		Loc:        b.siteURL + "/post?slug=" + url.QueryEscape(post.Slug),
		ChangeFreq: ChangeFreqWeekly,
		Priority:   "0.8",
	}
	if !post.UpdatedAt.IsZero() {
		u.LastMod = post.UpdatedAt.UTC().Format(time.RFC3339)
	}
	b.urls = append(b.urls, u)
}

// Build generates the sitemap XML.
func (b *SitemapBuilder) Build() ([]byte, error) {
	sitemap := Sitemap{
		XMLNS: XMLNamespace,
		URLs:  b.urls,
	}

	output := []byte(xml.Header)
	xmlBytes, err := xml.MarshalIndent(sitemap, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(output, xmlBytes...), nil
}

// GenerateSitemap lists the blog, one listing per category and every post.
func GenerateSitemap(siteURL string, categories []string, posts []SitemapPost) ([]byte, error) {
	builder := NewSitemapBuilder(siteURL)
	builder.AddListing("")
	for _, c := range categories {
		builder.AddListing(c)
	}
	for _, p := range posts {
		builder.AddPost(p)
	}
	return builder.Build()
}
