// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import "strings"

// CSV builds comma-joined lines with a header row. Fields are written as is:
// a comma or newline inside a field is not quoted and shifts the columns of
// that row.
type CSV struct {
	b strings.Builder
}

// NewCSV starts a document with the given header.
func NewCSV(header ...string) *CSV {
	c := &CSV{}
	c.b.WriteString(strings.Join(header, ","))
	return c
}

// Row appends one line.
func (c *CSV) Row(fields ...string) {
	c.b.WriteByte('\n')
	c.b.WriteString(strings.Join(fields, ","))
}

// String returns the document.
func (c *CSV) String() string {
	return c.b.String()
}

// Bytes returns the document as a byte slice.
func (c *CSV) Bytes() []byte {
	return []byte(c.b.String())
}
