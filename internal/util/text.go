// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import (
	"regexp"
	"strings"
)

// tagRegex matches anything that looks like a markup tag. It is a pattern, not a
// parser: a '<' inside text swallows everything up to the next '>'.
var tagRegex = regexp.MustCompile(`<[^>]*>`)

// StripTags removes markup tags from s.
func StripTags(s string) string {
	return tagRegex.ReplaceAllString(s, "")
}

// Excerpt returns the plain-text projection of the first n bytes of an HTML body
// followed by "...". The cut happens before tags are stripped, so a tag split by
// the cut is left as literal text. The cut never splits a UTF-8 sequence.
func Excerpt(html string, n int) string {
	return StripTags(truncateBytes(html, n)) + "..."
}

// PlainText strips tags from an HTML body and cuts the text to n characters
// without an ellipsis. Used for meta descriptions.
func PlainText(html string, n int) string {
	r := []rune(strings.TrimSpace(StripTags(html)))
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}

func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
