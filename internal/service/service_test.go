// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/composerunion/composerunion/internal/store"
	"github.com/composerunion/composerunion/internal/testutil"
)

// memStore is an objstore.Store kept in memory.
type memStore struct {
	objects map[string]string
	types   map[string]string
	err     error
}

func newMemStore() *memStore {
	return &memStore{objects: map[string]string{}, types: map[string]string{}}
}

func (m *memStore) Upload(_ context.Context, name string, r io.Reader, _ int64, contentType string) error {
	if m.err != nil {
		return m.err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[name] = string(b)
	m.types[name] = contentType
	return nil
}

func (m *memStore) PublicURL(name string) string {
	return "https://img.example.com/" + name
}

var errStorage = errors.New("new row violates row-level security policy")

func newFixture(t *testing.T) (*store.Queries, *testutil.Backend) {
	t.Helper()
	b := testutil.NewBackend(t)
	return store.New(b.Client()), b
}
