// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import "testing"

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "simple filename", input: "image.jpg", want: "image.jpg"},
		{name: "filename with spaces", input: "my image.jpg", want: "my image.jpg"},
		{name: "path traversal attempt", input: "../../../etc/passwd", want: "passwd"},
		{name: "windows path", input: `C:\Users\me\photo.png`, want: "photo.png"},
		{name: "single dot", input: ".", wantErr: true},
		{name: "double dot", input: "..", wantErr: true},
		{name: "empty string", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeFilename(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("SanitizeFilename() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("SanitizeFilename() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFileExtension(t *testing.T) {
	tests := map[string]string{
		"photo.JPG":      ".jpg",
		"archive.tar.gz": ".gz",
		"noext":          "",
		"../x/pic.webp":  ".webp",
		"":               "",
	}
	for in, want := range tests {
		if got := FileExtension(in); got != want {
			t.Errorf("FileExtension(%q) = %q, want %q", in, got, want)
		}
	}
}
