// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package util provides small string helpers shared by the handlers and services:
// slug derivation, plain-text projection of post bodies, CSV lines and filename checks.
package util

import (
	"regexp"
	"strings"

	"github.com/mozillazg/go-unidecode"
)

// slugRegex matches every run of characters that may not appear in a slug.
var slugRegex = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify converts a title to a URL-friendly slug: non-ASCII letters are
// transliterated, the result is lowercased, every run of other characters
// becomes one hyphen, and leading and trailing hyphens are dropped.
// Slugify(Slugify(s)) == Slugify(s) for every s.
func Slugify(s string) string {
	result := strings.ToLower(unidecode.Unidecode(s))
	result = slugRegex.ReplaceAllString(result, "-")
	return strings.Trim(result, "-")
}

// IsValidSlug checks if a string is a valid slug format.
func IsValidSlug(s string) bool {
	if s == "" {
		return false
	}

	for _, r := range s {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-') {
			return false
		}
	}

	if s[0] == '-' || s[len(s)-1] == '-' {
		return false
	}

	return !strings.Contains(s, "--")
}
