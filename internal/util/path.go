// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SanitizeFilename extracts only the base filename, removing any directory
// components. Returns an error if nothing usable is left.
func SanitizeFilename(filename string) (string, error) {
	safe := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	if safe == "." || safe == ".." || safe == "" || safe == string(filepath.Separator) {
		return "", fmt.Errorf("invalid filename: %q", filename)
	}
	return safe, nil
}

// FileExtension returns the lowercased extension of an uploaded filename,
// including the dot, or an empty string.
func FileExtension(filename string) string {
	safe, err := SanitizeFilename(filename)
	if err != nil {
		return ""
	}
	return strings.ToLower(filepath.Ext(safe))
}
