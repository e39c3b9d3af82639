// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestStripTags(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"<p>Hello <strong>there</strong></p>", "Hello there"},
		{"no markup", "no markup"},
		{`<img src="a.png" alt="x">caption`, "caption"},
		{"1 < 2 and 3 > 2", "1  2"},
	}
	for _, tt := range tests {
		if got := StripTags(tt.in); got != tt.want {
			t.Errorf("StripTags(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExcerpt(t *testing.T) {
	body := "<p>" + strings.Repeat("a", 200) + "</p>"
	got := Excerpt(body, 150)
	if want := strings.Repeat("a", 147) + "..."; got != want {
		t.Errorf("Excerpt() = %q, want %q", got, want)
	}

	if got := Excerpt("<p>short</p>", 150); got != "short..." {
		t.Errorf("Excerpt(short) = %q", got)
	}

	// A cut inside a tag leaves the tag fragment as text.
	if got := Excerpt("ab<strong>cd", 5); got != "ab<st..." {
		t.Errorf("Excerpt(cut tag) = %q", got)
	}
}

func TestExcerpt_MultibyteBoundary(t *testing.T) {
	got := Excerpt(strings.Repeat("é", 100), 151)
	if !utf8.ValidString(got) {
		t.Fatalf("Excerpt produced invalid UTF-8: %q", got)
	}
	if want := strings.Repeat("é", 75) + "..."; got != want {
		t.Errorf("Excerpt() = %q, want %q", got, want)
	}
}

func TestPlainText(t *testing.T) {
	if got := PlainText("  <h1>Title</h1><p>Body text</p>", 8); got != "TitleBod" {
		t.Errorf("PlainText() = %q", got)
	}
}

func TestCSV(t *testing.T) {
	c := NewCSV("Email", "Subscribed")
	c.Row("a@example.com", "1/2/2025")
	c.Row("b,c@example.com", "1/3/2025")

	want := "Email,Subscribed\na@example.com,1/2/2025\nb,c@example.com,1/3/2025"
	if got := c.String(); got != want {
		t.Errorf("CSV = %q, want %q", got, want)
	}
	if lines := strings.Count(c.String(), "\n") + 1; lines != 3 {
		t.Errorf("lines = %d, want 3", lines)
	}
}
